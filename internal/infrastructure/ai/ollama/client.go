// Package ollama provides the local Ollama chat provider
package ollama

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/alchemorsel/dietgen/internal/infrastructure/ai"
	"github.com/alchemorsel/dietgen/internal/infrastructure/config"
	"github.com/alchemorsel/dietgen/internal/infrastructure/httpclient"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	"go.uber.org/zap"
)

// Name is the provider tag.
const Name = "OLLAMA"

// Client implements outbound.CompletionProvider using the Ollama API
type Client struct {
	baseURL  string
	model    string
	settings ai.Settings
	http     *http.Client
	logger   *zap.Logger
}

var _ outbound.CompletionProvider = (*Client)(nil)

// NewClient creates a new Ollama client
func NewClient(cfg config.ProviderConfig, settings ai.Settings, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	model := cfg.Model
	if model == "" {
		model = "llama3.2:3b"
	}

	logger.Info("Ollama client initialized",
		zap.String("base_url", baseURL),
		zap.String("model", model))

	return &Client{
		baseURL:  baseURL,
		model:    model,
		settings: settings,
		http:     settings.NewHTTPClient(),
		logger:   logger.Named("ollama-client"),
	}
}

// Ollama API structures
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ChatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

type ChatResponse struct {
	Model        string      `json:"model"`
	Message      ChatMessage `json:"message"`
	Done         bool        `json:"done"`
	EvalCount    int         `json:"eval_count,omitempty"`
	EvalDuration int64       `json:"eval_duration,omitempty"`
}

var errIncomplete = errors.New("incomplete response from Ollama")

func (c *Client) Name() string { return Name }

// Complete sends a non-streaming chat request.
func (c *Client) Complete(ctx context.Context, req outbound.CompletionRequest) (string, error) {
	system := "Você é um nutricionista brasileiro. Responda sempre em português."
	if req.JSON {
		system += " Responda apenas com JSON válido, sem markdown nem texto adicional."
	}
	options := map[string]interface{}{
		"temperature": c.settings.Temperature,
		"num_ctx":     4096,
	}
	if c.settings.MaxTokens > 0 {
		options["num_predict"] = c.settings.MaxTokens
	}

	body := ChatRequest{
		Model: c.model,
		Messages: []ChatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: req.Prompt},
		},
		Stream:  false,
		Options: options,
	}

	var resp ChatResponse
	if err := httpclient.PostJSON(ctx, c.http, "ollama", c.baseURL+"/api/chat", nil, body, &resp); err != nil {
		return "", err
	}
	if !resp.Done {
		return "", errIncomplete
	}

	c.logger.Debug("Ollama chat completion successful",
		zap.String("model", resp.Model),
		zap.Int64("eval_duration", resp.EvalDuration),
		zap.Int("eval_count", resp.EvalCount))
	return resp.Message.Content, nil
}

// HealthCheck verifies the Ollama service is reachable.
func (c *Client) HealthCheck(ctx context.Context) error {
	return httpclient.Get(ctx, c.http, "ollama", c.baseURL+"/api/tags", nil)
}
