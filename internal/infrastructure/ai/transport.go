// Package ai holds the settings shared by the completion provider clients
// and their health checks.
package ai

import (
	"net/http"
	"time"

	"github.com/alchemorsel/dietgen/internal/infrastructure/config"
	"github.com/alchemorsel/dietgen/internal/infrastructure/httpclient"
)

// Settings are the generation knobs shared by every provider.
type Settings struct {
	Temperature float64
	MaxTokens   int
	// HTTPTimeout bounds a single HTTP exchange. The completion service
	// applies its own per-call deadline on top.
	HTTPTimeout time.Duration
}

// SettingsFrom extracts the shared knobs from configuration.
func SettingsFrom(cfg config.AIConfig) Settings {
	return Settings{Temperature: cfg.Temperature, MaxTokens: cfg.MaxTokens, HTTPTimeout: cfg.Timeout}
}

// NewHTTPClient returns a traced client with the configured timeout.
func (s Settings) NewHTTPClient() *http.Client {
	timeout := s.HTTPTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return httpclient.New(timeout)
}
