package database

import (
	"fmt"
	"log"

	"jobtrail/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SeedConfig holds configuration for seeding demo data
type SeedConfig struct {
	JobCount int
}

// DefaultSeedConfig returns default seed configuration
func DefaultSeedConfig() *SeedConfig {
	return &SeedConfig{JobCount: 3}
}

// SeedResult holds the result of the seeding operation
type SeedResult struct {
	Jobs []domain.Job
}

var demoJobs = []struct {
	title   string
	company string
	status  string
}{
	{"Backend Engineer", "Acme Corp", "applied"},
	{"Platform Engineer", "Initech", "interviewing"},
	{"Site Reliability Engineer", "Globex", "applied"},
	{"Staff Engineer", "Umbrella Labs", "offer"},
	{"Infrastructure Engineer", "Hooli", "applied"},
}

// Seed inserts demo job records for local development. Re-running is safe:
// rows are matched on title and company and left alone if present.
func Seed(db *gorm.DB, cfg *SeedConfig) (*SeedResult, error) {
	if cfg == nil {
		cfg = DefaultSeedConfig()
	}
	count := cfg.JobCount
	if count > len(demoJobs) {
		count = len(demoJobs)
	}

	log.Println("Seeding demo jobs...")
	result := &SeedResult{}

	for _, d := range demoJobs[:count] {
		job := domain.Job{
			ID:      uuid.New(),
			Title:   d.title,
			Company: d.company,
			Status:  d.status,
			Files:   []domain.JobFile{},
		}
		res := db.Where("title = ? AND company = ?", d.title, d.company).FirstOrCreate(&job)
		if res.Error != nil {
			return nil, fmt.Errorf("seed job %q: %w", d.title, res.Error)
		}
		result.Jobs = append(result.Jobs, job)
	}

	log.Printf("Seeded %d jobs", len(result.Jobs))
	return result, nil
}
