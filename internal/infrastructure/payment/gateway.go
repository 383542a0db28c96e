// Package payment issues and cancels the payable charges attached to diets.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/alchemorsel/dietgen/internal/domain/diet"
	"github.com/alchemorsel/dietgen/internal/domain/nutrition"
	"github.com/alchemorsel/dietgen/internal/infrastructure/config"
	"github.com/alchemorsel/dietgen/internal/infrastructure/httpclient"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrInvalidAmount  = errors.New("charge amount must be positive")
	ErrChargeNotFound = errors.New("charge not found")
)

// HTTPGateway talks to a charge API:
// POST {base}/charges creates, DELETE {base}/charges/{id} cancels.
type HTTPGateway struct {
	baseURL string
	apiKey  string
	http    *http.Client
	now     func() time.Time
	logger  *zap.Logger
}

var _ outbound.PaymentGateway = (*HTTPGateway)(nil)

// NewHTTPGateway creates a charge API client
func NewHTTPGateway(cfg config.PaymentConfig, logger *zap.Logger) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    httpclient.New(cfg.Timeout),
		now:     time.Now,
		logger:  logger.Named("payment-gateway"),
	}
}

type chargeRequest struct {
	Reference   string `json:"reference"`
	AmountCents int64  `json:"amountCents"`
	Description string `json:"description"`
	Customer    string `json:"customer"`
}

type chargeResponse struct {
	ID          string `json:"id"`
	AmountCents int64  `json:"amountCents"`
	PaymentURL  string `json:"paymentUrl"`
}

func (g *HTTPGateway) headers() map[string]string {
	h := map[string]string{}
	if g.apiKey != "" {
		h["Authorization"] = "Bearer " + g.apiKey
	}
	return h
}

func (g *HTTPGateway) CreateCharge(ctx context.Context, req outbound.ChargeRequest) (*diet.Charge, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	body := chargeRequest{
		Reference:   req.Reference,
		AmountCents: toCents(req.Amount),
		Description: req.Description,
		Customer:    req.UserID,
	}
	headers := g.headers()
	headers["Idempotency-Key"] = req.Reference + ":" + fmt.Sprint(body.AmountCents)

	var resp chargeResponse
	if err := httpclient.PostJSON(ctx, g.http, "payment", g.baseURL+"/charges", headers, body, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("payment gateway returned no charge id")
	}

	g.logger.Info("Charge created",
		zap.String("charge_id", resp.ID),
		zap.String("reference", req.Reference),
		zap.Int64("amount_cents", body.AmountCents))
	return &diet.Charge{
		ID:         resp.ID,
		Amount:     nutrition.Round2(float64(resp.AmountCents) / 100),
		PaymentURL: resp.PaymentURL,
		CreatedAt:  g.now(),
	}, nil
}

// CancelCharge treats an already missing charge as cancelled.
func (g *HTTPGateway) CancelCharge(ctx context.Context, chargeID string) error {
	headers := g.headers()
	err := httpclient.Do(ctx, g.http, http.MethodDelete, "payment", g.baseURL+"/charges/"+url.PathEscape(chargeID), headers, nil, nil)
	var statusErr *httpclient.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
		g.logger.Warn("Charge already gone", zap.String("charge_id", chargeID))
		return nil
	}
	if err != nil {
		return err
	}
	g.logger.Info("Charge cancelled", zap.String("charge_id", chargeID))
	return nil
}

func toCents(amount float64) int64 {
	return int64(nutrition.Round2(amount)*100 + 0.5)
}

// MemoryGateway keeps charges in process for development and tests.
type MemoryGateway struct {
	mu      sync.Mutex
	charges map[string]*memoryCharge
	now     func() time.Time
}

type memoryCharge struct {
	charge    diet.Charge
	reference string
	cancelled bool
}

var _ outbound.PaymentGateway = (*MemoryGateway)(nil)

// NewMemoryGateway creates an empty in-memory gateway
func NewMemoryGateway() *MemoryGateway {
	return &MemoryGateway{charges: make(map[string]*memoryCharge), now: time.Now}
}

func (g *MemoryGateway) CreateCharge(_ context.Context, req outbound.ChargeRequest) (*diet.Charge, error) {
	if req.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	id := uuid.NewString()
	c := diet.Charge{
		ID:         id,
		Amount:     nutrition.Round2(req.Amount),
		PaymentURL: "https://pay.local/charges/" + id,
		CreatedAt:  g.now(),
	}
	g.mu.Lock()
	g.charges[id] = &memoryCharge{charge: c, reference: req.Reference}
	g.mu.Unlock()
	return &c, nil
}

func (g *MemoryGateway) CancelCharge(_ context.Context, chargeID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.charges[chargeID]
	if !ok {
		return ErrChargeNotFound
	}
	c.cancelled = true
	return nil
}

// Active reports whether the charge exists and is not cancelled.
func (g *MemoryGateway) Active(chargeID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	c, ok := g.charges[chargeID]
	return ok && !c.cancelled
}

// NewGateway returns the configured gateway, nil when payments are
// disabled.
func NewGateway(cfg config.PaymentConfig, logger *zap.Logger) outbound.PaymentGateway {
	switch {
	case !cfg.Enabled:
		return nil
	case cfg.BaseURL == "":
		logger.Warn("Payment base URL not set, keeping charges in memory")
		return NewMemoryGateway()
	default:
		return NewHTTPGateway(cfg, logger)
	}
}
