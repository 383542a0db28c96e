// Package gorm provides GORM model definitions and repositories
package gorm

import (
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/job"
	"gorm.io/datatypes"
)

// JobModel represents the GORM model for generation jobs
type JobModel struct {
	ID            string     `gorm:"type:varchar(36);primaryKey"`
	UserID        string     `gorm:"type:varchar(128);index"`
	Status        string     `gorm:"type:varchar(64);not null"`
	ProcessedStep string     `gorm:"type:varchar(64)"`
	ClaimedAt     *time.Time `gorm:"index"`
	Finished      bool       `gorm:"not null;default:false;index:idx_jobs_resumable,priority:1"`
	Error         bool       `gorm:"not null;default:false"`
	IsCancelled   bool       `gorm:"not null;default:false"`
	ErrorMessage  string     `gorm:"type:text"`
	ErrorCode     string     `gorm:"type:varchar(64)"`
	ErrorDetails  string     `gorm:"type:text"`
	DietID        string     `gorm:"type:varchar(36)"`

	ProgressLog  datatypes.JSONSlice[string]             `gorm:"type:json"`
	Input        datatypes.JSONType[job.Input]            `gorm:"type:json"`
	Intermediate datatypes.JSONType[job.IntermediateData] `gorm:"type:json"`

	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time `gorm:"index:idx_jobs_resumable,priority:2"`
}

func (JobModel) TableName() string { return "jobs" }

// DietModel stores the diet document alongside the columns it is looked
// up by.
type DietModel struct {
	ID          string         `gorm:"type:varchar(36);primaryKey"`
	OrderNumber int64          `gorm:"uniqueIndex"`
	UserID      string         `gorm:"type:varchar(128);index"`
	JobID       string         `gorm:"type:varchar(36);uniqueIndex"`
	Status      string         `gorm:"type:varchar(32)"`
	TotalPrice  float64        `gorm:"type:decimal(12,2)"`
	Document    datatypes.JSON `gorm:"type:json;not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (DietModel) TableName() string { return "diets" }

// CatalogIndexModel holds the single catalog index document.
type CatalogIndexModel struct {
	Name      string         `gorm:"type:varchar(64);primaryKey"`
	Document  datatypes.JSON `gorm:"type:json;not null"`
	UpdatedAt time.Time
}

func (CatalogIndexModel) TableName() string { return "catalog_index" }

// CounterModel is a named sequence.
type CounterModel struct {
	Name  string `gorm:"type:varchar(64);primaryKey"`
	Value int64  `gorm:"not null;default:0"`
}

func (CounterModel) TableName() string { return "counters" }

// AllModels lists every model for auto-migration.
func AllModels() []interface{} {
	return []interface{}{&JobModel{}, &DietModel{}, &CatalogIndexModel{}, &CounterModel{}}
}
