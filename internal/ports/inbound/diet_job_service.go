// Package inbound defines the interfaces for inbound ports (primary/driving adapters)
// These are the interfaces that the application exposes to the outside world
package inbound

import (
	"context"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/job"
	"github.com/alchemorsel/dietgen/internal/domain/profile"
)

// DietJobService defines the use cases around diet generation
type DietJobService interface {
	// Commands
	CreateJob(ctx context.Context, cmd CreateJobCommand) (*CreateJobResult, error)
	CancelJob(ctx context.Context, jobID, userID string) error
	RecalculateDiet(ctx context.Context, dietID, userID string) (*diet.Diet, error)

	// Queries
	GetJob(ctx context.Context, jobID, userID string) (*JobDTO, error)
	GetDiet(ctx context.Context, dietID, userID string) (*diet.Diet, error)
}

// CreateJobCommand contains data for seeding a job. SelectedGoals[0] is
// the free-text request.
type CreateJobCommand struct {
	JobID         string                `json:"jobId" validate:"omitempty,uuid"`
	UserID        string                `json:"-" validate:"required"`
	HealthProfile profile.HealthProfile `json:"healthProfile"`
	Address       profile.Address       `json:"address"`
	SelectedGoals []string              `json:"selectedGoals" validate:"required,min=1,dive,max=2000"`
	AIProvider    string                `json:"aiProvider" validate:"omitempty,oneof=GEMINI OPENAI OLLAMA"`
}

// CreateJobResult is returned on creation
type CreateJobResult struct {
	Success bool   `json:"success"`
	JobID   string `json:"jobId"`
}

// JobDTO is the externally visible job record
type JobDTO struct {
	ID           string     `json:"id"`
	Status       job.Status `json:"status"`
	ProgressLog  []string   `json:"progressLog"`
	Finished     bool       `json:"finished"`
	Error        bool       `json:"error"`
	IsCancelled  bool       `json:"isCancelled"`
	ErrorMessage string     `json:"errorMessage,omitempty"`
	ErrorCode    string     `json:"errorCode,omitempty"`
	DietID       string     `json:"dietId,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// NewJobDTO projects a job. ErrorDetails stays server-side.
func NewJobDTO(j *job.Job) *JobDTO {
	return &JobDTO{
		ID:           j.ID,
		Status:       j.Status,
		ProgressLog:  append([]string(nil), j.ProgressLog...),
		Finished:     j.Finished,
		Error:        j.Error,
		IsCancelled:  j.IsCancelled,
		ErrorMessage: j.ErrorMessage,
		ErrorCode:    j.ErrorCode,
		DietID:       j.DietID,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}
