package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"jobtrail/internal/config"
	"jobtrail/internal/domain"
	"jobtrail/internal/repository"
	"jobtrail/internal/storage"
	jobtrail_errors "jobtrail/pkg/errors"
	"jobtrail/pkg/logger"

	"github.com/google/uuid"
)

type fixture struct {
	service     *UploadService
	attachments *repository.MemoryAttachmentStore
	jobs        *repository.MemoryJobStore
	blobCfg     config.Blob
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	blobCfg := config.Blob{UploadsDir: t.TempDir()}
	attachments := repository.NewMemoryAttachmentStore()
	jobs := repository.NewMemoryJobStore()
	gateway := storage.NewGateway(func() config.Blob { return blobCfg }, logger.NewNop())
	return &fixture{
		service:     NewUploadService(attachments, jobs, gateway, logger.NewNop()),
		attachments: attachments,
		jobs:        jobs,
		blobCfg:     blobCfg,
	}
}

func (f *fixture) seedJob(t *testing.T) uuid.UUID {
	t.Helper()
	id := uuid.New()
	f.jobs.Put(domain.Job{ID: id, Title: "Backend Engineer", Company: "Acme"})
	return id
}

func TestNeedsServerRelay(t *testing.T) {
	cases := []struct {
		name       string
		uploadURL  string
		pageOrigin string
		want       bool
	}{
		{"no signed url", "", "https://app.example.com", true},
		{"cross origin", "https://bucket.s3.example.com/k?sig=1", "https://app.example.com", true},
		{"same origin", "https://app.example.com/k?sig=1", "https://app.example.com", false},
		{"origin unknown", "https://bucket.s3.example.com/k", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NeedsServerRelay(tc.uploadURL, tc.pageOrigin); got != tc.want {
				t.Errorf("NeedsServerRelay(%q, %q) = %v, want %v", tc.uploadURL, tc.pageOrigin, got, tc.want)
			}
		})
	}
}

func TestCreateSignedUploadLocalPlan(t *testing.T) {
	f := newFixture(t)

	plan, err := f.service.CreateSignedUpload(context.Background(), "resume.pdf", "application/pdf", "https://app.example.com")
	if err != nil {
		t.Fatalf("CreateSignedUpload: %v", err)
	}
	if plan.UploadURL != "" {
		t.Errorf("UploadURL = %q, want empty", plan.UploadURL)
	}
	if !plan.Relay {
		t.Error("Relay = false, want true for local backend")
	}
	if plan.StorageKey != "uploads/resume.pdf" {
		t.Errorf("StorageKey = %q", plan.StorageKey)
	}
}

func TestCreateSignedUploadRequiresFilename(t *testing.T) {
	f := newFixture(t)
	_, err := f.service.CreateSignedUpload(context.Background(), "", "application/pdf", "")
	if !errors.Is(err, jobtrail_errors.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput", err)
	}
}

func TestSaveAndRecordPersistsAndMerges(t *testing.T) {
	f := newFixture(t)
	jobID := f.seedJob(t)

	a, err := f.service.SaveAndRecord(context.Background(), SaveInput{
		JobID:       &jobID,
		Filename:    "resume.pdf",
		Content:     []byte("resume bytes"),
		ContentType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("SaveAndRecord: %v", err)
	}
	if a.ID == uuid.Nil {
		t.Error("attachment id not assigned")
	}
	if a.StorageKey != "uploads/resume.pdf" {
		t.Errorf("StorageKey = %q", a.StorageKey)
	}

	job, err := f.jobs.Get(context.Background(), jobID)
	if err != nil {
		t.Fatalf("Get job: %v", err)
	}
	if len(job.Files) != 1 {
		t.Fatalf("job files = %d, want 1", len(job.Files))
	}
	if job.Files[0].ID != a.ID.String() {
		t.Errorf("merged file id = %q, want %q", job.Files[0].ID, a.ID)
	}
}

func TestSecondUploadMergesNotReplaces(t *testing.T) {
	f := newFixture(t)
	jobID := f.seedJob(t)
	ctx := context.Background()

	first, err := f.service.SaveAndRecord(ctx, SaveInput{
		JobID: &jobID, Filename: "resume.pdf", Content: []byte("one"), ContentType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	if _, err := f.service.SaveAndRecord(ctx, SaveInput{
		JobID: &jobID, Filename: "cover.pdf", Content: []byte("two"), ContentType: "application/pdf",
	}); err != nil {
		t.Fatalf("second upload: %v", err)
	}

	job, _ := f.jobs.Get(ctx, jobID)
	if len(job.Files) != 2 {
		t.Fatalf("job files = %d, want 2", len(job.Files))
	}
	if job.Files[0].ID != first.ID.String() || job.Files[0].Filename != "resume.pdf" {
		t.Errorf("first file mutated: %+v", job.Files[0])
	}
}

func TestSaveAndRecordValidation(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.SaveAndRecord(context.Background(), SaveInput{Filename: "a.txt"})
	if !errors.Is(err, jobtrail_errors.ErrInvalidInput) {
		t.Errorf("empty content: error = %v, want ErrInvalidInput", err)
	}
	_, err = f.service.SaveAndRecord(context.Background(), SaveInput{Content: []byte("x")})
	if !errors.Is(err, jobtrail_errors.ErrInvalidInput) {
		t.Errorf("empty filename: error = %v, want ErrInvalidInput", err)
	}
}

func TestSaveAndRecordOrphanUpload(t *testing.T) {
	f := newFixture(t)

	a, err := f.service.SaveAndRecord(context.Background(), SaveInput{
		Filename: "loose.txt", Content: []byte("x"), ContentType: "text/plain",
	})
	if err != nil {
		t.Fatalf("SaveAndRecord: %v", err)
	}
	if a.JobID != nil {
		t.Error("expected orphaned attachment with no job")
	}
}

func TestServerRelayPut(t *testing.T) {
	var received []byte
	var gotContentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method = %s, want PUT", r.Method)
		}
		received, _ = io.ReadAll(r.Body)
		gotContentType = r.Header.Get("Content-Type")
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := newFixture(t)
	jobID := f.seedJob(t)

	a, err := f.service.SaveAndRecord(context.Background(), SaveInput{
		JobID:       &jobID,
		Filename:    "resume.pdf",
		Content:     []byte("relayed"),
		ContentType: "application/pdf",
		UploadURL:   srv.URL + "/uploads/id/resume.pdf?sig=x",
	})
	if err != nil {
		t.Fatalf("SaveAndRecord: %v", err)
	}
	if string(received) != "relayed" {
		t.Errorf("server received %q", received)
	}
	if gotContentType != "application/pdf" {
		t.Errorf("content type = %q", gotContentType)
	}
	if a.StorageKey != "uploads/id/resume.pdf" {
		t.Errorf("StorageKey = %q", a.StorageKey)
	}
}

func TestServerRelayPutFailureIsHard(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	f := newFixture(t)
	jobID := f.seedJob(t)

	_, err := f.service.SaveAndRecord(context.Background(), SaveInput{
		JobID:       &jobID,
		Filename:    "resume.pdf",
		Content:     []byte("relayed"),
		ContentType: "application/pdf",
		UploadURL:   srv.URL + "/signed",
	})
	if !errors.Is(err, jobtrail_errors.ErrUpstream) {
		t.Fatalf("error = %v, want ErrUpstream", err)
	}

	// No metadata row may exist for a failed transfer.
	rows, _ := f.attachments.ListByJob(context.Background(), jobID)
	if len(rows) != 0 {
		t.Errorf("attachment rows after failed relay = %d, want 0", len(rows))
	}
}

func TestRecordDirectPersist(t *testing.T) {
	f := newFixture(t)
	jobID := f.seedJob(t)

	a, err := f.service.Record(context.Background(), RecordInput{
		JobID:       &jobID,
		Filename:    "resume.pdf",
		URL:         "https://cdn.example.com/uploads/id/resume.pdf",
		StorageKey:  "uploads/id/resume.pdf",
		Size:        1024,
		ContentType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if a.URL == nil || *a.URL != "https://cdn.example.com/uploads/id/resume.pdf" {
		t.Errorf("URL = %v", a.URL)
	}

	job, _ := f.jobs.Get(context.Background(), jobID)
	if len(job.Files) != 1 {
		t.Errorf("job files = %d, want 1", len(job.Files))
	}
}

func TestResolveStreamsLocalBytes(t *testing.T) {
	f := newFixture(t)
	content := []byte("local bytes here")

	a, err := f.service.SaveAndRecord(context.Background(), SaveInput{
		Filename: "doc.txt", Content: content, ContentType: "text/plain",
	})
	if err != nil {
		t.Fatalf("SaveAndRecord: %v", err)
	}

	res, err := f.service.Resolve(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Mode != ResolveStream {
		t.Fatalf("Mode = %v, want stream", res.Mode)
	}
	defer res.Body.Close()
	got, _ := io.ReadAll(res.Body)
	if string(got) != string(content) {
		t.Errorf("round trip = %q, want %q", got, content)
	}
}

func TestResolveFallsBackToStoredURL(t *testing.T) {
	f := newFixture(t)
	jobID := f.seedJob(t)

	a, err := f.service.Record(context.Background(), RecordInput{
		JobID:      &jobID,
		Filename:   "resume.pdf",
		URL:        "https://cdn.example.com/k1",
		StorageKey: "k1",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}

	res, err := f.service.Resolve(context.Background(), a.ID)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if res.Mode != ResolveRedirect || res.Redirect != "https://cdn.example.com/k1" {
		t.Errorf("resolution = %+v", res)
	}
}

func TestResolveUnknownID(t *testing.T) {
	f := newFixture(t)
	if _, err := f.service.Resolve(context.Background(), uuid.New()); !errors.Is(err, jobtrail_errors.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestDeleteRemovesBytesRowAndJobEntry(t *testing.T) {
	f := newFixture(t)
	jobID := f.seedJob(t)
	ctx := context.Background()

	a, err := f.service.SaveAndRecord(ctx, SaveInput{
		JobID: &jobID, Filename: "resume.pdf", Content: []byte("x"), ContentType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("SaveAndRecord: %v", err)
	}

	deleted, err := f.service.Delete(ctx, a.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if deleted.ID != a.ID {
		t.Errorf("deleted id = %s, want %s", deleted.ID, a.ID)
	}

	if _, err := f.attachments.GetByID(ctx, a.ID); !errors.Is(err, jobtrail_errors.ErrNotFound) {
		t.Error("attachment row still present")
	}
	if storage.NewLocalStore(f.blobCfg.UploadsDir).Exists(a.StorageKey) {
		t.Error("local bytes still present")
	}
	job, _ := f.jobs.Get(ctx, jobID)
	if len(job.Files) != 0 {
		t.Errorf("job files = %d, want 0", len(job.Files))
	}

	// Second delete: the id is gone, which is not-found, not a crash.
	if _, err := f.service.Delete(ctx, a.ID); !errors.Is(err, jobtrail_errors.ErrNotFound) {
		t.Errorf("second delete error = %v, want ErrNotFound", err)
	}
}

func TestDeleteByJobCascadesDespiteStorageFailures(t *testing.T) {
	f := newFixture(t)
	jobID := f.seedJob(t)
	ctx := context.Background()

	// Rows whose keys have no backing bytes anywhere: every storage delete
	// is a no-op, and the rows must still be purged.
	for _, name := range []string{"ghost-1.pdf", "ghost-2.pdf"} {
		if _, err := f.service.Record(ctx, RecordInput{
			JobID:      &jobID,
			Filename:   name,
			URL:        "https://cdn.example.com/" + name,
			StorageKey: "missing/" + name,
		}); err != nil {
			t.Fatalf("Record %s: %v", name, err)
		}
	}

	count, err := f.service.DeleteByJob(ctx, jobID)
	if err != nil {
		t.Fatalf("DeleteByJob: %v", err)
	}
	if count != 2 {
		t.Errorf("deleted count = %d, want 2", count)
	}
	rows, _ := f.attachments.ListByJob(ctx, jobID)
	if len(rows) != 0 {
		t.Errorf("remaining rows = %d, want 0", len(rows))
	}
}

func TestOpenByKeyStreamsWithMetadata(t *testing.T) {
	f := newFixture(t)

	a, err := f.service.SaveAndRecord(context.Background(), SaveInput{
		Filename: "notes.txt", Content: []byte("proxy me"), ContentType: "text/plain",
	})
	if err != nil {
		t.Fatalf("SaveAndRecord: %v", err)
	}

	meta, body, err := f.service.OpenByKey(context.Background(), a.StorageKey)
	if err != nil {
		t.Fatalf("OpenByKey: %v", err)
	}
	defer body.Close()
	if meta.Filename != "notes.txt" || meta.ContentType != "text/plain" {
		t.Errorf("metadata = %+v", meta)
	}
	got, _ := io.ReadAll(body)
	if string(got) != "proxy me" {
		t.Errorf("bytes = %q", got)
	}
}

func TestAttachmentJSONShape(t *testing.T) {
	f := newFixture(t)
	a, err := f.service.SaveAndRecord(context.Background(), SaveInput{
		Filename: "resume.pdf", Content: []byte("x"), ContentType: "application/pdf",
	})
	if err != nil {
		t.Fatalf("SaveAndRecord: %v", err)
	}
	raw, err := json.Marshal(a)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	json.Unmarshal(raw, &m)
	if _, ok := m["storage_key"]; !ok {
		t.Errorf("json = %s, missing storage_key", raw)
	}
}
