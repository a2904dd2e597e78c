package handler_test

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"jobtrail/internal/config"
	"jobtrail/internal/domain"
	"jobtrail/internal/repository"
	"jobtrail/internal/router"
	"jobtrail/internal/storage"
	"jobtrail/internal/transport/httpdto"
	"jobtrail/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type env struct {
	engine *gin.Engine
	jobs   *repository.MemoryJobStore
}

func newEnv(t *testing.T) *env {
	t.Helper()
	blobCfg := config.Blob{UploadsDir: t.TempDir()}
	jobs := repository.NewMemoryJobStore()
	engine := router.Setup(router.Config{
		Logger:      logger.NewNop(),
		Attachments: repository.NewMemoryAttachmentStore(),
		Jobs:        jobs,
		Gateway:     storage.NewGateway(func() config.Blob { return blobCfg }, logger.NewNop()),
	})
	return &env{engine: engine, jobs: jobs}
}

func (e *env) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.engine.ServeHTTP(w, req)
	return w
}

func decodeData[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var resp httpdto.Response[T]
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response %q: %v", w.Body.String(), err)
	}
	if !resp.Success {
		t.Fatalf("response not successful: %s", w.Body.String())
	}
	return resp.Data
}

func (e *env) seedJob(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	e.jobs.Put(domain.Job{ID: id, Title: "SRE", Company: "Initech"})
	return id
}

func (e *env) upload(t *testing.T, jobID uuid.UUID, filename string, content []byte) httpdto.AttachmentDTO {
	t.Helper()
	w := e.do(t, http.MethodPost, "/uploads", gin.H{
		"jobId":         jobID.String(),
		"filename":      filename,
		"contentType":   "application/pdf",
		"contentBase64": base64.StdEncoding.EncodeToString(content),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("POST /uploads = %d: %s", w.Code, w.Body.String())
	}
	return decodeData[httpdto.AttachmentDTO](t, w)
}

func TestCreateSignedUploadEndpoint(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/uploads/create", gin.H{
		"filename":    "resume.pdf",
		"contentType": "application/pdf",
		"origin":      "https://app.example.com",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	data := decodeData[httpdto.CreateSignedUploadResponse](t, w)
	if !data.Relay {
		t.Error("relay = false, want true without a remote backend")
	}
	if data.UploadURL != "" {
		t.Errorf("uploadUrl = %q, want empty", data.UploadURL)
	}
	if data.StorageKey != "uploads/resume.pdf" {
		t.Errorf("storageKey = %q", data.StorageKey)
	}
}

func TestCreateSignedUploadRejectsMissingFilename(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/uploads/create", gin.H{"contentType": "application/pdf"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestUploadLifecycle(t *testing.T) {
	e := newEnv(t)
	jobID := e.seedJob(t)
	content := []byte("the resume body")

	a := e.upload(t, jobID, "resume.pdf", content)
	if a.StorageKey != "uploads/resume.pdf" {
		t.Errorf("storageKey = %q", a.StorageKey)
	}
	if a.Size != int64(len(content)) {
		t.Errorf("size = %d, want %d", a.Size, len(content))
	}
	if a.JobID != jobID.String() {
		t.Errorf("jobId = %q, want %q", a.JobID, jobID)
	}

	// Bytes round trip through GET /uploads/:id.
	w := e.do(t, http.MethodGet, "/uploads/"+a.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET = %d: %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != string(content) {
		t.Errorf("body = %q, want %q", got, content)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("content type = %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); cd != `inline; filename="resume.pdf"` {
		t.Errorf("content disposition = %q", cd)
	}

	// Delete, then the id is gone.
	w = e.do(t, http.MethodDelete, "/uploads/"+a.ID, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("DELETE = %d: %s", w.Code, w.Body.String())
	}
	del := decodeData[httpdto.DeleteUploadResponse](t, w)
	if del.ID != a.ID || del.JobID != jobID.String() {
		t.Errorf("delete response = %+v", del)
	}

	w = e.do(t, http.MethodGet, "/uploads/"+a.ID, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("GET after delete = %d, want 404", w.Code)
	}
}

func TestSaveRejectsBadInput(t *testing.T) {
	e := newEnv(t)

	cases := []struct {
		name string
		body gin.H
	}{
		{"missing filename", gin.H{"contentBase64": "aGk="}},
		{"bad base64", gin.H{"filename": "a.txt", "contentBase64": "%%%not-base64%%%"}},
		{"bad job id", gin.H{"filename": "a.txt", "jobId": "not-a-uuid", "contentBase64": "aGk="}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := e.do(t, http.MethodPost, "/uploads", tc.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestSaveDirectRecord(t *testing.T) {
	e := newEnv(t)
	jobID := e.seedJob(t)

	w := e.do(t, http.MethodPost, "/uploads", gin.H{
		"jobId":       jobID.String(),
		"filename":    "resume.pdf",
		"contentType": "application/pdf",
		"url":         "https://cdn.example.com/uploads/id/resume.pdf",
		"storageKey":  "uploads/id/resume.pdf",
		"size":        2048,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	a := decodeData[httpdto.AttachmentDTO](t, w)
	if a.URL != "https://cdn.example.com/uploads/id/resume.pdf" || a.Size != 2048 {
		t.Errorf("attachment = %+v", a)
	}

	// The redirect target for a non-local key is the stored URL.
	w = e.do(t, http.MethodGet, "/uploads/"+a.ID, nil)
	if w.Code != http.StatusFound {
		t.Fatalf("GET = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://cdn.example.com/uploads/id/resume.pdf" {
		t.Errorf("Location = %q", loc)
	}
}

func TestGetUnknownUpload(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/uploads/"+uuid.NewString(), nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	w = e.do(t, http.MethodGet, "/uploads/not-a-uuid", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestJobUploadsListAndCascade(t *testing.T) {
	e := newEnv(t)
	jobID := e.seedJob(t)

	e.upload(t, jobID, "resume.pdf", []byte("one"))
	e.upload(t, jobID, "cover.pdf", []byte("two"))

	w := e.do(t, http.MethodGet, fmt.Sprintf("/jobs/%s/uploads", jobID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list = %d: %s", w.Code, w.Body.String())
	}
	list := decodeData[struct {
		Uploads []httpdto.AttachmentDTO `json:"uploads"`
	}](t, w)
	if len(list.Uploads) != 2 {
		t.Fatalf("uploads = %d, want 2", len(list.Uploads))
	}
	if list.Uploads[0].Filename != "resume.pdf" || list.Uploads[1].Filename != "cover.pdf" {
		t.Errorf("order = %q, %q", list.Uploads[0].Filename, list.Uploads[1].Filename)
	}

	w = e.do(t, http.MethodDelete, fmt.Sprintf("/jobs/%s/uploads", jobID), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("cascade = %d: %s", w.Code, w.Body.String())
	}
	del := decodeData[httpdto.DeleteJobUploadsResponse](t, w)
	if del.Deleted != 2 {
		t.Errorf("deleted = %d, want 2", del.Deleted)
	}

	w = e.do(t, http.MethodGet, fmt.Sprintf("/jobs/%s/uploads", jobID), nil)
	list = decodeData[struct {
		Uploads []httpdto.AttachmentDTO `json:"uploads"`
	}](t, w)
	if len(list.Uploads) != 0 {
		t.Errorf("uploads after cascade = %d, want 0", len(list.Uploads))
	}
}

func TestBlobProxy(t *testing.T) {
	e := newEnv(t)
	jobID := e.seedJob(t)
	a := e.upload(t, jobID, "notes.txt", []byte("proxied bytes"))

	w := e.do(t, http.MethodGet, "/blob-proxy?key="+a.StorageKey, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if got := w.Body.String(); got != "proxied bytes" {
		t.Errorf("body = %q", got)
	}

	w = e.do(t, http.MethodGet, "/blob-proxy", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing key = %d, want 400", w.Code)
	}
	w = e.do(t, http.MethodGet, "/blob-proxy?key=uploads/nope.txt", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown key = %d, want 404", w.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	e := newEnv(t)

	for _, path := range []string{"/health", "/ready"} {
		w := e.do(t, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
	}
}
