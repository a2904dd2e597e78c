package handler

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"jobtrail/internal/domain"
	"jobtrail/internal/middleware"
	"jobtrail/internal/services"
	"jobtrail/internal/transport/httpdto"
	jobtrail_errors "jobtrail/pkg/errors"
	"jobtrail/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type UploadHandler struct {
	service    *services.UploadService
	log        *logger.Logger
	production bool
}

func NewUploadHandler(service *services.UploadService, log *logger.Logger, production bool) *UploadHandler {
	if log == nil {
		log = logger.NewNop()
	}
	return &UploadHandler{service: service, log: log, production: production}
}

// CreateSignedUpload handles POST /uploads/create (upload phase 1).
func (h *UploadHandler) CreateSignedUpload(c *gin.Context) {
	var req httpdto.CreateSignedUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	plan, err := h.service.CreateSignedUpload(c.Request.Context(), req.Filename, req.ContentType, req.Origin)
	if err != nil {
		h.fail(c, err, "upload negotiation failed")
		return
	}

	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.CreateSignedUploadResponse{
		UploadURL:  plan.UploadURL,
		URL:        plan.URL,
		StorageKey: plan.StorageKey,
		Relay:      plan.Relay,
	}))
}

// Save handles POST /uploads: either a phase-3 metadata persist after a
// client PUT, or a phase-2b server relay carrying base64 bytes.
func (h *UploadHandler) Save(c *gin.Context) {
	var req httpdto.SaveUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid request", "INVALID_REQUEST"))
		return
	}

	var jobID *uuid.UUID
	if req.JobID != "" {
		parsed, err := uuid.Parse(req.JobID)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid job id", "INVALID_REQUEST"))
			return
		}
		jobID = &parsed
	}

	var a domain.Attachment
	var err error
	if req.ContentBase64 != "" {
		var content []byte
		content, err = base64.StdEncoding.DecodeString(req.ContentBase64)
		if err != nil {
			c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid base64 content", "INVALID_REQUEST"))
			return
		}
		middleware.RecordUpload(int64(len(content)))
		a, err = h.service.SaveAndRecord(c.Request.Context(), services.SaveInput{
			JobID:       jobID,
			Filename:    req.Filename,
			Content:     content,
			ContentType: req.ContentType,
			UploadURL:   req.UploadURL,
		})
	} else {
		a, err = h.service.Record(c.Request.Context(), services.RecordInput{
			JobID:       jobID,
			Filename:    req.Filename,
			URL:         req.URL,
			StorageKey:  req.StorageKey,
			Size:        req.Size,
			ContentType: req.ContentType,
		})
	}
	if err != nil {
		h.fail(c, err, "upload failed")
		return
	}

	c.JSON(http.StatusCreated, httpdto.NewSuccessResponse(toAttachmentDTO(a)))
}

// Get handles GET /uploads/:id, streaming or redirecting to the bytes.
func (h *UploadHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid upload id", "INVALID_REQUEST"))
		return
	}

	res, err := h.service.Resolve(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "download failed")
		return
	}

	if res.Mode == services.ResolveRedirect {
		c.Redirect(http.StatusFound, res.Redirect)
		return
	}
	defer res.Body.Close()
	c.DataFromReader(http.StatusOK, res.Attachment.SizeBytes, res.Attachment.ContentType, res.Body, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", res.Attachment.Filename),
	})
}

// Delete handles DELETE /uploads/:id.
func (h *UploadHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid upload id", "INVALID_REQUEST"))
		return
	}

	a, err := h.service.Delete(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err, "delete failed")
		return
	}

	resp := httpdto.DeleteUploadResponse{ID: a.ID.String()}
	if a.JobID != nil {
		resp.JobID = a.JobID.String()
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(resp))
}

// ListJobUploads handles GET /jobs/:id/uploads.
func (h *UploadHandler) ListJobUploads(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid job id", "INVALID_REQUEST"))
		return
	}

	rows, err := h.service.ListByJob(c.Request.Context(), jobID)
	if err != nil {
		h.fail(c, err, "list failed")
		return
	}

	uploads := make([]httpdto.AttachmentDTO, 0, len(rows))
	for _, a := range rows {
		uploads = append(uploads, toAttachmentDTO(a))
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"uploads": uploads}))
}

// DeleteJobUploads handles DELETE /jobs/:id/uploads (owner cascade).
func (h *UploadHandler) DeleteJobUploads(c *gin.Context) {
	jobID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("invalid job id", "INVALID_REQUEST"))
		return
	}

	deleted, err := h.service.DeleteByJob(c.Request.Context(), jobID)
	if err != nil {
		h.fail(c, err, "delete failed")
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.DeleteJobUploadsResponse{Deleted: deleted}))
}

// BlobProxy handles GET /blob-proxy?key=..., streaming bytes through the
// server for keys without a public URL.
func (h *UploadHandler) BlobProxy(c *gin.Context) {
	key := c.Query("key")
	if key == "" {
		c.JSON(http.StatusBadRequest, httpdto.NewErrorResponse("key is required", "INVALID_REQUEST"))
		return
	}

	a, body, err := h.service.OpenByKey(c.Request.Context(), key)
	if err != nil {
		h.fail(c, err, "download failed")
		return
	}
	defer body.Close()
	c.DataFromReader(http.StatusOK, a.SizeBytes, a.ContentType, body, map[string]string{
		"Content-Disposition": fmt.Sprintf("inline; filename=%q", a.Filename),
	})
}

// fail maps the error taxonomy to status codes. Detailed error text is only
// exposed outside production.
func (h *UploadHandler) fail(c *gin.Context, err error, generic string) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch {
	case errors.Is(err, jobtrail_errors.ErrInvalidInput):
		status, code = http.StatusBadRequest, "INVALID_REQUEST"
	case errors.Is(err, jobtrail_errors.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
	case errors.Is(err, jobtrail_errors.ErrTooLarge):
		status, code = http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE"
	case errors.Is(err, jobtrail_errors.ErrUpstream), errors.Is(err, jobtrail_errors.ErrNotConfigured):
		status, code = http.StatusBadGateway, "UPSTREAM_FAILURE"
	}

	h.log.WithContext(c.Request.Context()).Error(generic, zap.Error(err))
	msg := generic
	if !h.production {
		msg = err.Error()
	}
	c.JSON(status, httpdto.NewErrorResponse(msg, code))
}

func toAttachmentDTO(a domain.Attachment) httpdto.AttachmentDTO {
	dto := httpdto.AttachmentDTO{
		ID:          a.ID.String(),
		Filename:    a.Filename,
		StorageKey:  a.StorageKey,
		Size:        a.SizeBytes,
		ContentType: a.ContentType,
		CreatedAt:   a.CreatedAt,
	}
	if a.JobID != nil {
		dto.JobID = a.JobID.String()
	}
	if a.URL != nil {
		dto.URL = *a.URL
	}
	return dto
}
