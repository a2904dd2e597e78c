package repository

import (
	"context"
	"sync"
	"time"

	"jobtrail/internal/domain"
	jobtrail_errors "jobtrail/pkg/errors"

	"github.com/google/uuid"
)

// MemoryAttachmentStore keeps attachment rows in memory, preserving
// insertion order. Used in tests and when the service runs without Postgres.
type MemoryAttachmentStore struct {
	mu   sync.Mutex
	rows []domain.Attachment
}

func NewMemoryAttachmentStore() *MemoryAttachmentStore {
	return &MemoryAttachmentStore{}
}

func (s *MemoryAttachmentStore) Insert(_ context.Context, a *domain.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	for _, row := range s.rows {
		if row.ID == a.ID {
			return jobtrail_errors.ErrAlreadyExists
		}
	}
	s.rows = append(s.rows, *a)
	return nil
}

func (s *MemoryAttachmentStore) GetByID(_ context.Context, id uuid.UUID) (domain.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ID == id {
			return row, nil
		}
	}
	return domain.Attachment{}, jobtrail_errors.ErrNotFound
}

func (s *MemoryAttachmentStore) GetByStorageKey(_ context.Context, key string) (domain.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.StorageKey == key {
			return row, nil
		}
	}
	return domain.Attachment{}, jobtrail_errors.ErrNotFound
}

func (s *MemoryAttachmentStore) ListByJob(_ context.Context, jobID uuid.UUID) ([]domain.Attachment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Attachment
	for _, row := range s.rows {
		if row.JobID != nil && *row.JobID == jobID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *MemoryAttachmentStore) Delete(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, row := range s.rows {
		if row.ID == id {
			s.rows = append(s.rows[:i], s.rows[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryAttachmentStore) DeleteByJob(_ context.Context, jobID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []domain.Attachment
	var removed int64
	for _, row := range s.rows {
		if row.JobID != nil && *row.JobID == jobID {
			removed++
			continue
		}
		kept = append(kept, row)
	}
	s.rows = kept
	return removed, nil
}

// MemoryJobStore keeps job records in memory. Same role as
// MemoryAttachmentStore.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]domain.Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[uuid.UUID]domain.Job)}
}

// Put seeds a job record. Used by tests and the no-database dev mode.
func (s *MemoryJobStore) Put(j domain.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

func (s *MemoryJobStore) Get(_ context.Context, id uuid.UUID) (domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.Job{}, jobtrail_errors.ErrNotFound
	}
	return j, nil
}

func (s *MemoryJobStore) Patch(_ context.Context, id uuid.UUID, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return jobtrail_errors.ErrNotFound
	}
	if files, ok := fields["files"].([]domain.JobFile); ok {
		j.Files = files
	}
	if status, ok := fields["status"].(string); ok {
		j.Status = status
	}
	j.UpdatedAt = time.Now()
	s.jobs[id] = j
	return nil
}
