package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alchemorsel/dietgen/internal/infrastructure/config"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHTTPGatewayCreateAndCancel(t *testing.T) {
	var (
		mu      sync.Mutex
		deleted []string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer pay-key", r.Header.Get("Authorization"))
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/charges":
			var req chargeRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, int64(12346), req.AmountCents)
			assert.Equal(t, "job-1", req.Reference)
			assert.Equal(t, "job-1:12346", r.Header.Get("Idempotency-Key"))
			_ = json.NewEncoder(w).Encode(chargeResponse{ID: "ch_1", AmountCents: req.AmountCents, PaymentURL: "https://pay/ch_1"})
		case r.Method == http.MethodDelete:
			mu.Lock()
			deleted = append(deleted, r.URL.Path)
			mu.Unlock()
			if r.URL.Path == "/charges/gone" {
				http.NotFound(w, r)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	g := NewHTTPGateway(config.PaymentConfig{BaseURL: srv.URL + "/", APIKey: "pay-key", Timeout: time.Second}, zap.NewNop())
	ctx := context.Background()

	c, err := g.CreateCharge(ctx, outbound.ChargeRequest{Reference: "job-1", Amount: 123.456, UserID: "user-1"})
	require.NoError(t, err)
	assert.Equal(t, "ch_1", c.ID)
	assert.Equal(t, 123.46, c.Amount)
	assert.Equal(t, "https://pay/ch_1", c.PaymentURL)

	require.NoError(t, g.CancelCharge(ctx, "ch_1"))
	require.NoError(t, g.CancelCharge(ctx, "gone"))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"/charges/ch_1", "/charges/gone"}, deleted)
}

func TestHTTPGatewayPropagatesFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer srv.Close()

	g := NewHTTPGateway(config.PaymentConfig{BaseURL: srv.URL}, zap.NewNop())
	_, err := g.CreateCharge(context.Background(), outbound.ChargeRequest{Reference: "r", Amount: 10})
	assert.Error(t, err)
	assert.Error(t, g.CancelCharge(context.Background(), "x"))

	_, err = g.CreateCharge(context.Background(), outbound.ChargeRequest{Reference: "r", Amount: 0})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestMemoryGateway(t *testing.T) {
	g := NewMemoryGateway()
	ctx := context.Background()

	c, err := g.CreateCharge(ctx, outbound.ChargeRequest{Reference: "job-1", Amount: 50.005})
	require.NoError(t, err)
	assert.NotEmpty(t, c.ID)
	assert.True(t, g.Active(c.ID))

	require.NoError(t, g.CancelCharge(ctx, c.ID))
	assert.False(t, g.Active(c.ID))
	assert.ErrorIs(t, g.CancelCharge(ctx, "missing"), ErrChargeNotFound)
}

func TestNewGatewaySelection(t *testing.T) {
	assert.Nil(t, NewGateway(config.PaymentConfig{}, zap.NewNop()))
	assert.IsType(t, &MemoryGateway{}, NewGateway(config.PaymentConfig{Enabled: true}, zap.NewNop()))
	assert.IsType(t, &HTTPGateway{}, NewGateway(config.PaymentConfig{Enabled: true, BaseURL: "http://pay"}, zap.NewNop()))
}
