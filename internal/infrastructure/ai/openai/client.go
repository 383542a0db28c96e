// Package openai provides the OpenAI chat completions provider
package openai

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
const Name = "OPENAI"

const (
	systemPrompt = "Você é um nutricionista brasileiro. Responda sempre em português."
	jsonOnly     = "Responda apenas com JSON válido, sem markdown nem texto adicional."
)

// Client implements outbound.CompletionProvider using the OpenAI API
type Client struct {
	apiKey   string
	baseURL  string
	model    string
	settings ai.Settings
	http     *http.Client
	logger   *zap.Logger
}

var _ outbound.CompletionProvider = (*Client)(nil)

// NewClient creates a new OpenAI client
func NewClient(cfg config.ProviderConfig, settings ai.Settings, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	logger.Info("OpenAI client initialized",
		zap.String("model", model),
		zap.Bool("has_key", cfg.APIKey != ""))
	return &Client{
		apiKey:   cfg.APIKey,
		baseURL:  baseURL,
		model:    model,
		settings: settings,
		http:     settings.NewHTTPClient(),
		logger:   logger.Named("openai-client"),
	}
}

// OpenAI API structures
type ChatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatCompletionResponse struct {
	Choices []Choice `json:"choices"`
	Usage   Usage    `json:"usage"`
}

type Choice struct {
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

var errNoChoices = errors.New("no response choices returned")

func (c *Client) Name() string { return Name }

// Complete sends one chat completion. The json_object response format is
// not used because some replies are top-level arrays.
func (c *Client) Complete(ctx context.Context, req outbound.CompletionRequest) (string, error) {
	system := systemPrompt
	if req.JSON {
		system += " " + jsonOnly
	}
	body := ChatCompletionRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: req.Prompt},
		},
		Temperature: c.settings.Temperature,
		MaxTokens:   c.settings.MaxTokens,
	}

	var resp ChatCompletionResponse
	err := httpclient.PostJSON(ctx, c.http, "openai", c.baseURL+"/chat/completions",
		map[string]string{"Authorization": "Bearer " + c.apiKey}, body, &resp)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errNoChoices
	}

	c.logger.Debug("OpenAI API call successful",
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
		zap.String("finish_reason", resp.Choices[0].FinishReason))
	return resp.Choices[0].Message.Content, nil
}

// HealthCheck lists models, which needs a valid key.
func (c *Client) HealthCheck(ctx context.Context) error {
	return httpclient.Get(ctx, c.http, "openai", c.baseURL+"/models",
		map[string]string{"Authorization": "Bearer " + c.apiKey})
}
