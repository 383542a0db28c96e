package diet

import "time"

// CreatedEvent is raised when the final stage persists a diet
type CreatedEvent struct {
	DietID      string
	JobID       string
	OrderNumber int64
	CreatedAt   time.Time
}

func (e CreatedEvent) EventName() string {
	return "diet.created"
}

func (e CreatedEvent) OccurredAt() time.Time {
	return e.CreatedAt
}

// RecalculatedEvent is raised when a diet is rebuilt on a budget
type RecalculatedEvent struct {
	DietID         string
	RecalculatedAt time.Time
}

func (e RecalculatedEvent) EventName() string {
	return "diet.recalculated"
}

func (e RecalculatedEvent) OccurredAt() time.Time {
	return e.RecalculatedAt
}
