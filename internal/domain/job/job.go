// Package job models a diet generation attempt as a persisted, step-wise
// state machine.
package job

import (
	"errors"
	"strings"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/profile"
	"github.com/alchemorsel/dietgen/internal/domain/shared"
)

var (
	ErrJobNotFound    = errors.New("job not found")
	ErrNotOwner       = errors.New("only the job owner can perform this action")
	ErrAlreadyDone    = errors.New("job already finished")
	ErrEmptyPrompt    = errors.New("selectedGoals[0] must hold the request text")
	ErrUnknownStatus  = errors.New("status is not a pipeline step")
	ErrStaleJobUpdate = errors.New("job status changed while the step ran")
)

// Status is the name of the step a job is on, as shown to users.
type Status string

const (
	StatusStarting     Status = "Iniciando"
	StatusInterpreting Status = "Interpretando Prompt"
	StatusAnalyzing    Status = "Analisando Perfil"
	StatusSelecting    Status = "Selecionando com AI"
	StatusConsulting   Status = "Consultando AI"
	StatusFinalizing   Status = "Finalizando Processo"

	StatusCompleted Status = "Concluído"
	StatusFailed    Status = "Erro na Geração"
	StatusCancelled Status = "Cancelado pelo Usuário"
)

// Steps lists the pipeline statuses in execution order.
var Steps = []Status{
	StatusStarting,
	StatusInterpreting,
	StatusAnalyzing,
	StatusSelecting,
	StatusConsulting,
	StatusFinalizing,
}

// IsStep reports whether s names a pipeline step.
func (s Status) IsStep() bool {
	for _, step := range Steps {
		if step == s {
			return true
		}
	}
	return false
}

// Next returns the status that follows s. The last step is followed by
// StatusCompleted.
func (s Status) Next() (Status, bool) {
	for i, step := range Steps {
		if step != s {
			continue
		}
		if i == len(Steps)-1 {
			return StatusCompleted, true
		}
		return Steps[i+1], true
	}
	return "", false
}

// Provider tags accepted in job input.
const (
	ProviderGemini = "GEMINI"
	ProviderOpenAI = "OPENAI"
	ProviderOllama = "OLLAMA"
)

// Input is the immutable request a job was created from.
type Input struct {
	HealthProfile profile.HealthProfile `json:"healthProfile"`
	Address       profile.Address       `json:"address"`
	SelectedGoals []string              `json:"selectedGoals"`
	AIProvider    string                `json:"aiProvider"`
}

// Prompt is the free-text request, carried in SelectedGoals[0].
func (in Input) Prompt() string {
	if len(in.SelectedGoals) == 0 {
		return ""
	}
	return strings.TrimSpace(in.SelectedGoals[0])
}

// Job is one end-to-end generation attempt.
type Job struct {
	shared.AggregateRoot

	ID            string
	UserID        string
	Status        Status
	ProcessedStep Status
	ClaimedAt     *time.Time
	ProgressLog   []string
	Input         Input
	Intermediate  IntermediateData
	Finished      bool
	Error         bool
	IsCancelled   bool
	ErrorMessage  string
	ErrorCode     string
	ErrorDetails  string
	DietID        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// New seeds a job in StatusStarting.
func New(id, userID string, in Input, now time.Time) (*Job, error) {
	if in.Prompt() == "" {
		return nil, ErrEmptyPrompt
	}
	if in.AIProvider == "" {
		in.AIProvider = ProviderGemini
	}
	j := &Job{
		ID:          id,
		UserID:      userID,
		Status:      StatusStarting,
		ProgressLog: []string{"Pedido recebido. Preparando a geração da sua dieta."},
		Input:       in,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	j.AddEvent(CreatedEvent{JobID: id, UserID: userID, CreatedAt: now})
	return j, nil
}

// State projects the fields the transition function reads.
func (j *Job) State() State {
	return State{Status: j.Status, Finished: j.Finished, Error: j.Error, Cancelled: j.IsCancelled}
}

// Cancel flags the job for cancellation. The running step is not
// interrupted; the next trigger observes the flag.
func (j *Job) Cancel(userID string, now time.Time) error {
	if j.UserID != "" && j.UserID != userID {
		return ErrNotOwner
	}
	if j.Finished {
		return ErrAlreadyDone
	}
	if j.IsCancelled {
		return nil
	}
	j.IsCancelled = true
	j.UpdatedAt = now
	j.AddEvent(CancelRequestedEvent{JobID: j.ID, RequestedAt: now})
	return nil
}

// Apply writes a transition result onto the job.
func (j *Job) Apply(next State, effects []Effect, now time.Time) {
	j.Status = next.Status
	j.Finished = next.Finished
	j.Error = next.Error
	j.IsCancelled = j.IsCancelled || next.Cancelled

	for _, e := range effects {
		switch e.Kind {
		case EffectAppendLog:
			j.ProgressLog = append(j.ProgressLog, e.Lines...)
		case EffectPersistIntermediate:
			j.Intermediate = j.Intermediate.Merge(e.Data)
		case EffectEmitDiet:
			j.DietID = e.DietID
		case EffectMarkError:
			if e.Failure != nil {
				j.ErrorCode = e.Failure.Code
				j.ErrorMessage = e.Failure.Message
				j.ErrorDetails = e.Failure.Details
			}
		case EffectMarkFinished:
			j.AddEvent(FinishedEvent{JobID: j.ID, Status: j.Status, DietID: j.DietID, FinishedAt: now})
		}
	}

	j.UpdatedAt = now
	j.AddEvent(UpdatedEvent{JobID: j.ID, Status: j.Status, Finished: j.Finished, UpdatedAt: now})
}
