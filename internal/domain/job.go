package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobFile is the attachment summary merged into a job's files list.
type JobFile struct {
	ID          string `json:"id"`
	Filename    string `json:"filename"`
	URL         string `json:"url,omitempty"`
	StorageKey  string `json:"storage_key"`
	SizeBytes   int64  `json:"size_bytes"`
	ContentType string `json:"content_type"`
}

// Job is the owning application record. This service only ever touches the
// files list; everything else belongs to the tracker UI.
type Job struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Title     string    `gorm:"type:text;not null" json:"title"`
	Company   string    `gorm:"type:text" json:"company"`
	Status    string    `gorm:"type:text;default:'applied'" json:"status"`
	Files     []JobFile `gorm:"serializer:json;type:jsonb" json:"files"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Job) TableName() string {
	return "jobs"
}

// MergeFile appends f to the job's files list, replacing an existing entry
// with the same id instead of duplicating it. Existing entries are preserved.
func (j *Job) MergeFile(f JobFile) {
	for i, existing := range j.Files {
		if existing.ID == f.ID {
			j.Files[i] = f
			return
		}
	}
	j.Files = append(j.Files, f)
}
