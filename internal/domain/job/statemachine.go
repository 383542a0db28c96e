package job

import apperrors "github.com/alchemorsel/dietgen/pkg/errors"

// State is the slice of a job the transition function depends on.
type State struct {
	Status    Status
	Finished  bool
	Error     bool
	Cancelled bool
}

// EventKind names what happened while handling a trigger.
type EventKind string

const (
	EventStepSucceeded  EventKind = "step_succeeded"
	EventStepFailed     EventKind = "step_failed"
	EventCancelObserved EventKind = "cancel_observed"
)

// Failure is the classified error stored on a failed job.
type Failure struct {
	Code    string
	Message string
	Details string
}

// Event is the outcome of one step.
type Event struct {
	Kind    EventKind
	Log     []string
	Data    IntermediateData
	DietID  string
	Failure *Failure
}

// EffectKind names a write the orchestrator performs on the job record.
type EffectKind string

const (
	EffectAppendLog           EffectKind = "append_log"
	EffectPersistIntermediate EffectKind = "persist_intermediate"
	EffectEmitDiet            EffectKind = "emit_diet"
	EffectMarkFinished        EffectKind = "mark_finished"
	EffectMarkError           EffectKind = "mark_error"
)

// Effect is one write resulting from a transition.
type Effect struct {
	Kind    EffectKind
	Lines   []string
	Data    IntermediateData
	DietID  string
	Failure *Failure
}

const (
	logCancelled = "Geração cancelada pelo usuário."
	logFailed    = "Erro: "
	logCompleted = "Dieta gerada com sucesso!"
)

// Transition computes the next state and effects. It is pure; finished
// states absorb every event.
func Transition(s State, ev Event) (State, []Effect) {
	if s.Finished {
		return s, nil
	}

	switch ev.Kind {
	case EventCancelObserved:
		next := State{Status: StatusCancelled, Finished: true, Cancelled: true}
		return next, []Effect{
			{Kind: EffectAppendLog, Lines: append(append([]string(nil), ev.Log...), logCancelled)},
			{Kind: EffectMarkFinished},
		}

	case EventStepFailed:
		f := ev.Failure
		if f == nil {
			f = &Failure{Code: string(apperrors.CodeInternal), Message: apperrors.GenericMessage}
		}
		next := State{Status: StatusFailed, Finished: true, Error: true, Cancelled: s.Cancelled}
		return next, []Effect{
			{Kind: EffectAppendLog, Lines: append(append([]string(nil), ev.Log...), logFailed+f.Message)},
			{Kind: EffectMarkError, Failure: f},
			{Kind: EffectMarkFinished},
		}

	case EventStepSucceeded:
		to, ok := s.Status.Next()
		if !ok {
			return Transition(s, Event{Kind: EventStepFailed, Failure: &Failure{
				Code:    string(apperrors.CodeInternal),
				Message: apperrors.GenericMessage,
				Details: ErrUnknownStatus.Error() + ": " + string(s.Status),
			}})
		}
		next := State{Status: to, Cancelled: s.Cancelled}
		effects := []Effect{{Kind: EffectPersistIntermediate, Data: ev.Data}}
		if len(ev.Log) > 0 {
			effects = append([]Effect{{Kind: EffectAppendLog, Lines: ev.Log}}, effects...)
		}
		if to == StatusCompleted {
			next.Finished = true
			effects = append(effects,
				Effect{Kind: EffectEmitDiet, DietID: ev.DietID},
				Effect{Kind: EffectAppendLog, Lines: []string{logCompleted}},
				Effect{Kind: EffectMarkFinished},
			)
		}
		return next, effects
	}

	return s, nil
}
