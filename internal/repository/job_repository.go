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

type PostgresJobStore struct {
	db *gorm.DB
}

func NewJobStore(db *gorm.DB) JobStore {
	return &PostgresJobStore{db: db}
}

func (r *PostgresJobStore) Get(ctx context.Context, id uuid.UUID) (domain.Job, error) {
	var j domain.Job
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&j).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Job{}, jobtrail_errors.ErrNotFound
		}
		return domain.Job{}, err
	}
	return j, nil
}

func (r *PostgresJobStore) Patch(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	res := r.db.WithContext(ctx).
		Model(&domain.Job{}).
		Where("id = ?", id).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return jobtrail_errors.ErrNotFound
	}
	return nil
}
