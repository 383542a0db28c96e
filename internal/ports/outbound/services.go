package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/profile"
)

// CompletionRequest is a single text-completion call.
type CompletionRequest struct {
	Prompt string
	// JSON asks the provider for a JSON-only reply.
	JSON bool
}

// ErrRequestRejected wraps provider replies that retrying cannot fix, such
// as bad credentials or a malformed request.
var ErrRequestRejected = errors.New("provider rejected the request")

// CompletionProvider is one text-completion vendor.
type CompletionProvider interface {
	Name() string
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Completer selects a provider by tag and completes with retries.
type Completer interface {
	Complete(ctx context.Context, provider string, req CompletionRequest) (string, error)
}

// JobQueue delivers job ids to the worker. Deliveries may repeat.
type JobQueue interface {
	Enqueue(ctx context.Context, jobID string) error
	// Dequeue blocks until a job id is available, ctx is done, or wait
	// elapses; it returns "" on timeout.
	Dequeue(ctx context.Context, wait time.Duration) (string, error)
	Close() error
}

// CatalogCache is the in-process cache for the catalog index.
type CatalogCache interface {
	Get(key string) (interface{}, bool)
	Set(key string, value interface{}, ttl time.Duration)
	Delete(key string)
}

// Coordinates is a geocoded point.
type Coordinates struct {
	Latitude  float64
	Longitude float64
}

// Geocoder resolves an address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, addr profile.Address) (Coordinates, error)
}

// RideEstimator quotes a delivery ride between two points.
type RideEstimator interface {
	Estimate(ctx context.Context, from, to Coordinates) (diet.Delivery, error)
}

// ChargeRequest describes a charge to issue.
type ChargeRequest struct {
	Reference   string
	Amount      float64
	Description string
	UserID      string
}

// PaymentGateway issues and cancels payable charges.
type PaymentGateway interface {
	CreateCharge(ctx context.Context, req ChargeRequest) (*diet.Charge, error)
	CancelCharge(ctx context.Context, chargeID string) error
}
