package repository

import (
	"context"

	"jobtrail/internal/domain"

	"github.com/google/uuid"
)

// AttachmentStore persists attachment metadata keyed by attachment id.
type AttachmentStore interface {
	// Insert assigns the id and creation time, then stores the row.
	Insert(ctx context.Context, a *domain.Attachment) error
	GetByID(ctx context.Context, id uuid.UUID) (domain.Attachment, error)
	GetByStorageKey(ctx context.Context, key string) (domain.Attachment, error)
	// ListByJob returns a job's attachments in insertion order.
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.Attachment, error)
	// Delete removes one row. Returns false, not an error, when the id is
	// already gone.
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	// DeleteByJob removes all rows for a job and returns how many went.
	DeleteByJob(ctx context.Context, jobID uuid.UUID) (int64, error)
}

// JobStore is the collaborator owning job-application records. This service
// only reads jobs and patches their files list.
type JobStore interface {
	Get(ctx context.Context, id uuid.UUID) (domain.Job, error)
	Patch(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
}
