// Package outbound defines the interfaces for outbound ports (secondary/driven adapters)
// These are the interfaces that the application uses to interact with external systems
package outbound

import (
	"context"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/food"
	"github.com/alchemorsel/dietgen/internal/domain/job"
)

// JobRepository persists job records. Only the orchestrator writes step
// results; the service layer creates and cancels.
type JobRepository interface {
	Create(ctx context.Context, j *job.Job) error
	FindByID(ctx context.Context, id string) (*job.Job, error)

	// ClaimStep marks status as being processed. It succeeds only when the
	// job is unfinished, still on status, and the step is unclaimed or its
	// claim is older than lease.
	ClaimStep(ctx context.Context, id string, status job.Status, now time.Time, lease time.Duration) (bool, error)

	// RenewClaim moves the claim taken at claimedAt to now. It reports false
	// when the job left status or another delivery has taken the claim since.
	RenewClaim(ctx context.Context, id string, status job.Status, claimedAt, now time.Time) (bool, error)

	// CommitStep writes the step result if the job is still on expected.
	// It returns job.ErrStaleJobUpdate otherwise. IsCancelled is never cleared.
	CommitStep(ctx context.Context, j *job.Job, expected job.Status) error

	// MarkCancelled sets the cancellation flag.
	MarkCancelled(ctx context.Context, id string, now time.Time) error

	// FindResumable lists unfinished jobs not updated since idleSince whose
	// current status is unclaimed or was claimed before claimedBefore,
	// oldest first.
	FindResumable(ctx context.Context, idleSince, claimedBefore time.Time, limit int) ([]string, error)
}

// DietRepository persists final diets. A job has at most one diet: Save
// returns diet.ErrDietExists for a new diet whose job already has one.
type DietRepository interface {
	Save(ctx context.Context, d *diet.Diet) error
	FindByID(ctx context.Context, id string) (*diet.Diet, error)
	FindByJobID(ctx context.Context, jobID string) (*diet.Diet, error)
}

// CatalogIndexRepository reads and writes the precomputed catalog index.
// A missing index is returned as (nil, nil).
type CatalogIndexRepository interface {
	Load(ctx context.Context) (*food.CatalogIndex, error)
	Store(ctx context.Context, idx food.CatalogIndex) error
}

// CounterRepository issues global sequential numbers.
type CounterRepository interface {
	Next(ctx context.Context, name string) (int64, error)
}
