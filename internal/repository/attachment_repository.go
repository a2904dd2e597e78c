package repository

import (
	"context"
	"errors"
	"time"

	"jobtrail/internal/domain"
	jobtrail_errors "jobtrail/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PostgresAttachmentStore struct {
	db *gorm.DB
}

func NewAttachmentStore(db *gorm.DB) AttachmentStore {
	return &PostgresAttachmentStore{db: db}
}

func (r *PostgresAttachmentStore) Insert(ctx context.Context, a *domain.Attachment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now()
	}
	res := r.db.WithContext(ctx).Create(a)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return jobtrail_errors.ErrAlreadyExists
		}
		return res.Error
	}
	return nil
}

func (r *PostgresAttachmentStore) GetByID(ctx context.Context, id uuid.UUID) (domain.Attachment, error) {
	var a domain.Attachment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Attachment{}, jobtrail_errors.ErrNotFound
		}
		return domain.Attachment{}, err
	}
	return a, nil
}

func (r *PostgresAttachmentStore) GetByStorageKey(ctx context.Context, key string) (domain.Attachment, error) {
	var a domain.Attachment
	err := r.db.WithContext(ctx).Where("storage_key = ?", key).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Attachment{}, jobtrail_errors.ErrNotFound
		}
		return domain.Attachment{}, err
	}
	return a, nil
}

func (r *PostgresAttachmentStore) ListByJob(ctx context.Context, jobID uuid.UUID) ([]domain.Attachment, error) {
	var rows []domain.Attachment
	err := r.db.WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PostgresAttachmentStore) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(&domain.Attachment{}, "id = ?", id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PostgresAttachmentStore) DeleteByJob(ctx context.Context, jobID uuid.UUID) (int64, error) {
	res := r.db.WithContext(ctx).Delete(&domain.Attachment{}, "job_id = ?", jobID)
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
