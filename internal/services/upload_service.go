package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"jobtrail/internal/domain"
	"jobtrail/internal/repository"
	"jobtrail/internal/storage"
	jobtrail_errors "jobtrail/pkg/errors"
	"jobtrail/pkg/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UploadService coordinates the two-phase upload protocol: negotiate a signed
// upload target, get the bytes into a backend (client PUT or server relay),
// then persist the matching metadata row.
type UploadService struct {
	attachments repository.AttachmentStore
	jobs        repository.JobStore
	gateway     *storage.Gateway
	log         *logger.Logger
	http        *http.Client
}

func NewUploadService(attachments repository.AttachmentStore, jobs repository.JobStore, gateway *storage.Gateway, log *logger.Logger) *UploadService {
	if log == nil {
		log = logger.NewNop()
	}
	return &UploadService{
		attachments: attachments,
		jobs:        jobs,
		gateway:     gateway,
		log:         log,
		http:        &http.Client{Timeout: 60 * time.Second},
	}
}

// UploadPlan is the phase-1 negotiation result handed to the client. Relay
// tells the client to send bytes through the server instead of PUTting to
// UploadURL itself, either because no signed URL exists or because the signed
// URL is cross-origin for the page that asked.
type UploadPlan struct {
	UploadURL  string
	URL        string
	StorageKey string
	Relay      bool
}

// CreateSignedUpload negotiates an upload target for filename.
func (s *UploadService) CreateSignedUpload(ctx context.Context, filename, contentType, pageOrigin string) (UploadPlan, error) {
	if filename == "" {
		return UploadPlan{}, fmt.Errorf("%w: filename is required", jobtrail_errors.ErrInvalidInput)
	}

	signed, outcome, err := s.gateway.CreateSignedUploadURL(ctx, filename, contentType)
	if err != nil {
		return UploadPlan{}, err
	}
	if outcome.Degraded {
		s.log.WithContext(ctx).Warn("upload negotiation degraded",
			zap.String("backend", string(outcome.Backend)),
			zap.String("reason", outcome.Reason))
	}

	return UploadPlan{
		UploadURL:  signed.UploadURL,
		URL:        signed.URL,
		StorageKey: signed.StorageKey,
		Relay:      NeedsServerRelay(signed.UploadURL, pageOrigin),
	}, nil
}

// NeedsServerRelay reports whether bytes must travel through the server: no
// signed URL exists, or the signed URL's origin differs from the page origin
// (providers commonly reject cross-origin browser PUTs).
func NeedsServerRelay(uploadURL, pageOrigin string) bool {
	if uploadURL == "" {
		return true
	}
	if pageOrigin == "" {
		return false
	}
	target, err := url.Parse(uploadURL)
	if err != nil {
		return true
	}
	page, err := url.Parse(pageOrigin)
	if err != nil {
		return false
	}
	return target.Scheme != page.Scheme || target.Host != page.Host
}

// SaveInput is the phase-2b server-relay request: raw bytes plus an optional
// signed upload URL the server should PUT to on the client's behalf.
type SaveInput struct {
	JobID       *uuid.UUID
	Filename    string
	Content     []byte
	ContentType string
	UploadURL   string
}

// SaveAndRecord transfers bytes (relay PUT or direct gateway save) and then
// persists the metadata row. A relay PUT failure is a hard error; falling
// back to a client-side cross-origin PUT would only reproduce the failure.
func (s *UploadService) SaveAndRecord(ctx context.Context, in SaveInput) (domain.Attachment, error) {
	if in.Filename == "" || len(in.Content) == 0 {
		return domain.Attachment{}, fmt.Errorf("%w: filename and content are required", jobtrail_errors.ErrInvalidInput)
	}

	var result storage.SaveResult
	if in.UploadURL != "" {
		if err := s.relayPut(ctx, in.UploadURL, in.Content, in.ContentType); err != nil {
			return domain.Attachment{}, err
		}
		key, publicURL := s.gateway.ResolveUploadTarget(in.UploadURL)
		result = storage.SaveResult{StorageKey: key, URL: publicURL, Size: int64(len(in.Content))}
	} else {
		var outcome storage.Outcome
		var err error
		result, outcome, err = s.gateway.Save(ctx, in.Filename, in.Content, in.ContentType)
		if err != nil {
			return domain.Attachment{}, err
		}
		if outcome.Degraded {
			s.log.WithContext(ctx).Warn("upload degraded to fallback backend",
				zap.String("backend", string(outcome.Backend)),
				zap.String("reason", outcome.Reason))
		}
	}

	return s.persist(ctx, in.JobID, in.Filename, result.StorageKey, result.URL, result.Size, in.ContentType)
}

func (s *UploadService) relayPut(ctx context.Context, uploadURL string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: relay put: %v", jobtrail_errors.ErrUpstream, err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.ContentLength = int64(len(data))

	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: relay put: %v", jobtrail_errors.ErrUpstream, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: relay put: status %d", jobtrail_errors.ErrUpstream, resp.StatusCode)
	}
	return nil
}

// RecordInput is the phase-3 direct persist request, used after the client
// completed its own PUT to a signed URL.
type RecordInput struct {
	JobID       *uuid.UUID
	Filename    string
	URL         string
	StorageKey  string
	Size        int64
	ContentType string
}

// Record persists metadata for bytes already transferred by the client.
func (s *UploadService) Record(ctx context.Context, in RecordInput) (domain.Attachment, error) {
	if in.Filename == "" || in.StorageKey == "" {
		return domain.Attachment{}, fmt.Errorf("%w: filename and storage key are required", jobtrail_errors.ErrInvalidInput)
	}
	return s.persist(ctx, in.JobID, in.Filename, in.StorageKey, in.URL, in.Size, in.ContentType)
}

func (s *UploadService) persist(ctx context.Context, jobID *uuid.UUID, filename, key, fileURL string, size int64, contentType string) (domain.Attachment, error) {
	a := domain.Attachment{
		ID:          uuid.New(),
		JobID:       jobID,
		Filename:    filename,
		StorageKey:  key,
		SizeBytes:   size,
		ContentType: contentType,
	}
	if fileURL != "" {
		a.URL = &fileURL
	}

	if err := s.attachments.Insert(ctx, &a); err != nil {
		return domain.Attachment{}, err
	}

	if jobID != nil {
		if err := s.mergeIntoJob(ctx, *jobID, a); err != nil {
			// The attachment row exists but the job's files list was not
			// updated. No automatic reconciliation; surface the failure.
			return domain.Attachment{}, err
		}
	}
	return a, nil
}

func (s *UploadService) mergeIntoJob(ctx context.Context, jobID uuid.UUID, a domain.Attachment) error {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return err
	}
	fileURL := ""
	if a.URL != nil {
		fileURL = *a.URL
	}
	job.MergeFile(domain.JobFile{
		ID:          a.ID.String(),
		Filename:    a.Filename,
		URL:         fileURL,
		StorageKey:  a.StorageKey,
		SizeBytes:   a.SizeBytes,
		ContentType: a.ContentType,
	})
	return s.jobs.Patch(ctx, jobID, map[string]interface{}{"files": job.Files})
}

// ResolutionMode says how the caller should serve the bytes.
type ResolutionMode int

const (
	ResolveStream ResolutionMode = iota
	ResolveRedirect
)

// Resolution is the answer to "how do I serve attachment id": stream a local
// file, or redirect to a signed or stored URL.
type Resolution struct {
	Mode       ResolutionMode
	Redirect   string
	Body       io.ReadCloser
	Attachment domain.Attachment
}

// Resolve locates the bytes behind an attachment: local file stream first,
// then a signed GET redirect, then the stored public URL.
func (s *UploadService) Resolve(ctx context.Context, id uuid.UUID) (Resolution, error) {
	a, err := s.attachments.GetByID(ctx, id)
	if err != nil {
		return Resolution{}, err
	}

	local := s.gateway.Local()
	if local.Exists(a.StorageKey) {
		body, err := local.Open(a.StorageKey)
		if err == nil {
			return Resolution{Mode: ResolveStream, Body: body, Attachment: a}, nil
		}
	}

	if signed, ok, err := s.gateway.CreateSignedDownloadURL(ctx, a.StorageKey, a.ContentType); err != nil {
		return Resolution{}, err
	} else if ok {
		return Resolution{Mode: ResolveRedirect, Redirect: signed, Attachment: a}, nil
	}

	if a.URL != nil && *a.URL != "" {
		return Resolution{Mode: ResolveRedirect, Redirect: *a.URL, Attachment: a}, nil
	}
	return Resolution{}, fmt.Errorf("%w: attachment %s has no retrievable location", jobtrail_errors.ErrNotFound, id)
}

// OpenByKey streams bytes for a storage key through the server, with the
// metadata row for content type and disposition. Used by the proxy endpoint.
func (s *UploadService) OpenByKey(ctx context.Context, key string) (domain.Attachment, io.ReadCloser, error) {
	a, err := s.attachments.GetByStorageKey(ctx, key)
	if err != nil {
		return domain.Attachment{}, nil, err
	}
	body, err := s.gateway.GetObject(ctx, key)
	if err != nil {
		return domain.Attachment{}, nil, err
	}
	return a, body, nil
}

// ListByJob returns a job's attachments in insertion order.
func (s *UploadService) ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.Attachment, error) {
	return s.attachments.ListByJob(ctx, jobID)
}

// Delete removes backing bytes (best effort) and then the metadata row. A
// failed storage delete never blocks the row removal.
func (s *UploadService) Delete(ctx context.Context, id uuid.UUID) (domain.Attachment, error) {
	a, err := s.attachments.GetByID(ctx, id)
	if err != nil {
		return domain.Attachment{}, err
	}

	fileURL := ""
	if a.URL != nil {
		fileURL = *a.URL
	}
	if removed, err := s.gateway.Delete(ctx, a.StorageKey, fileURL); err != nil || !removed {
		s.log.WithContext(ctx).Warn("storage delete was a no-op",
			zap.String("key", a.StorageKey), zap.Error(err))
	}

	if _, err := s.attachments.Delete(ctx, a.ID); err != nil {
		return domain.Attachment{}, err
	}

	if a.JobID != nil {
		s.removeFromJob(ctx, *a.JobID, a.ID)
	}
	return a, nil
}

// DeleteByJob cascades a job deletion: best-effort storage delete per row,
// then the rows themselves. Returns how many rows were removed.
func (s *UploadService) DeleteByJob(ctx context.Context, jobID uuid.UUID) (int64, error) {
	rows, err := s.attachments.ListByJob(ctx, jobID)
	if err != nil {
		return 0, err
	}
	for _, a := range rows {
		fileURL := ""
		if a.URL != nil {
			fileURL = *a.URL
		}
		if removed, err := s.gateway.Delete(ctx, a.StorageKey, fileURL); err != nil || !removed {
			s.log.WithContext(ctx).Warn("storage delete was a no-op",
				zap.String("key", a.StorageKey), zap.Error(err))
		}
	}
	return s.attachments.DeleteByJob(ctx, jobID)
}

// removeFromJob drops the attachment from the job's files list, best effort.
func (s *UploadService) removeFromJob(ctx context.Context, jobID, attachmentID uuid.UUID) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return
	}
	var kept []domain.JobFile
	for _, f := range job.Files {
		if f.ID != attachmentID.String() {
			kept = append(kept, f)
		}
	}
	if len(kept) == len(job.Files) {
		return
	}
	if err := s.jobs.Patch(ctx, jobID, map[string]interface{}{"files": kept}); err != nil {
		s.log.WithContext(ctx).Warn("failed to prune job files list",
			zap.String("job_id", jobID.String()), zap.Error(err))
	}
}
