package domain

import (
	"time"

	"github.com/google/uuid"
)

// Attachment represents one stored file, linked to at most one job record.
// URL may be nil when the backend only serves bytes through signed GETs.
type Attachment struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	JobID       *uuid.UUID `gorm:"type:uuid;index" json:"job_id,omitempty"`
	Filename    string     `gorm:"type:text;not null" json:"filename"`
	StorageKey  string     `gorm:"type:text;not null;index" json:"storage_key"`
	URL         *string    `gorm:"type:text" json:"url,omitempty"`
	SizeBytes   int64      `gorm:"not null" json:"size_bytes"`
	ContentType string     `gorm:"type:text;not null" json:"content_type"`
	CreatedAt   time.Time  `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Attachment) TableName() string {
	return "attachments"
}
