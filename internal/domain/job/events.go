package job

import "time"

// Event names dispatched for jobs.
const (
	EventNameCreated         = "job.created"
	EventNameUpdated         = "job.updated"
	EventNameFinished        = "job.finished"
	EventNameCancelRequested = "job.cancel_requested"
)

// CreatedEvent is raised when a job is seeded
type CreatedEvent struct {
	JobID     string
	UserID    string
	CreatedAt time.Time
}

func (e CreatedEvent) EventName() string     { return EventNameCreated }
func (e CreatedEvent) OccurredAt() time.Time { return e.CreatedAt }

// UpdatedEvent is raised on every committed step
type UpdatedEvent struct {
	JobID     string
	Status    Status
	Finished  bool
	UpdatedAt time.Time
}

func (e UpdatedEvent) EventName() string     { return EventNameUpdated }
func (e UpdatedEvent) OccurredAt() time.Time { return e.UpdatedAt }

// FinishedEvent is raised when a job reaches a terminal state
type FinishedEvent struct {
	JobID      string
	Status     Status
	DietID     string
	FinishedAt time.Time
}

func (e FinishedEvent) EventName() string     { return EventNameFinished }
func (e FinishedEvent) OccurredAt() time.Time { return e.FinishedAt }

// CancelRequestedEvent is raised by the cancellation entry point
type CancelRequestedEvent struct {
	JobID       string
	RequestedAt time.Time
}

func (e CancelRequestedEvent) EventName() string     { return EventNameCancelRequested }
func (e CancelRequestedEvent) OccurredAt() time.Time { return e.RequestedAt }
