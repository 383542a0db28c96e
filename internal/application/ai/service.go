// Package ai provides the application layer for text-completion calls and
// the pipeline stages built on them.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	apperrors "github.com/alchemorsel/dietgen/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrEmptyCompletion is returned for blank provider replies.
var ErrEmptyCompletion = errors.New("provider returned an empty completion")

// Observer receives one observation per provider attempt.
type Observer interface {
	ObserveCompletion(provider string, attempt int, duration time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) ObserveCompletion(string, int, time.Duration, error) {}

// Options configure the completion service.
type Options struct {
	Retry   RetryPolicy
	Timeout time.Duration
	// RatePerMinute caps calls per provider; zero disables limiting.
	RatePerMinute int
	Observer      Observer
}

// CompletionService routes completion requests to a provider by tag,
// applying rate limiting, a per-call deadline and the retry policy.
type CompletionService struct {
	providers map[string]outbound.CompletionProvider
	limiters  map[string]*rate.Limiter
	opts      Options
	logger    *zap.Logger
}

var _ outbound.Completer = (*CompletionService)(nil)

// NewCompletionService registers providers under their upper-cased names.
func NewCompletionService(providers []outbound.CompletionProvider, opts Options, logger *zap.Logger) *CompletionService {
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	s := &CompletionService{
		providers: make(map[string]outbound.CompletionProvider, len(providers)),
		limiters:  make(map[string]*rate.Limiter, len(providers)),
		opts:      opts,
		logger:    logger.Named("completion-service"),
	}
	for _, p := range providers {
		name := strings.ToUpper(p.Name())
		s.providers[name] = p
		if opts.RatePerMinute > 0 {
			s.limiters[name] = rate.NewLimiter(rate.Limit(float64(opts.RatePerMinute)/60), opts.RatePerMinute)
		}
	}
	s.logger.Info("Completion service initialized",
		zap.Strings("providers", s.Providers()),
		zap.Int("max_attempts", opts.Retry.MaxAttempts),
		zap.Duration("timeout", opts.Timeout))
	return s
}

// Providers lists registered provider tags.
func (s *CompletionService) Providers() []string {
	out := make([]string, 0, len(s.providers))
	for name := range s.providers {
		out = append(out, name)
	}
	return out
}

// Complete sends req to the tagged provider. Exhausted retries surface as
// an EXTERNAL_SERVICE_ERROR.
func (s *CompletionService) Complete(ctx context.Context, provider string, req outbound.CompletionRequest) (string, error) {
	name := strings.ToUpper(strings.TrimSpace(provider))
	p, ok := s.providers[name]
	if !ok {
		return "", apperrors.NewValidationError(fmt.Sprintf("unknown AI provider %q", provider))
	}

	var reply string
	attempts, err := s.opts.Retry.Do(ctx, func(attempt int) error {
		if lim := s.limiters[name]; lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return Permanent(err)
			}
		}

		callCtx, cancel := ctx, context.CancelFunc(func() {})
		if s.opts.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		}
		defer cancel()

		start := time.Now()
		out, err := p.Complete(callCtx, req)
		if err == nil && strings.TrimSpace(out) == "" {
			err = ErrEmptyCompletion
		}
		s.opts.Observer.ObserveCompletion(name, attempt, time.Since(start), err)

		if err != nil {
			s.logger.Warn("Completion attempt failed",
				zap.String("provider", name),
				zap.Int("attempt", attempt),
				zap.Error(err))
			if errors.Is(err, outbound.ErrRequestRejected) {
				return Permanent(err)
			}
			return err
		}
		reply = out
		return nil
	})
	if err != nil {
		s.logger.Error("Completion failed",
			zap.String("provider", name),
			zap.Int("attempts", attempts),
			zap.Error(err))
		return "", apperrors.NewExternalServiceError(name, err)
	}
	return reply, nil
}
