// Package gemini provides the Google Gemini generateContent provider
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/alchemorsel/dietgen/internal/infrastructure/ai"
	"github.com/alchemorsel/dietgen/internal/infrastructure/config"
	"github.com/alchemorsel/dietgen/internal/infrastructure/httpclient"
	"github.com/alchemorsel/dietgen/internal/ports/outbound"
	"go.uber.org/zap"
)

// Name is the provider tag.
const Name = "GEMINI"

// Client implements outbound.CompletionProvider using the Gemini API
type Client struct {
	apiKey   string
	baseURL  string
	model    string
	settings ai.Settings
	http     *http.Client
	logger   *zap.Logger
}

var _ outbound.CompletionProvider = (*Client)(nil)

// NewClient creates a new Gemini client
func NewClient(cfg config.ProviderConfig, settings ai.Settings, logger *zap.Logger) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-1.5-flash"
	}
	logger.Info("Gemini client initialized",
		zap.String("model", model),
		zap.Bool("has_key", cfg.APIKey != ""))
	return &Client{
		apiKey:   cfg.APIKey,
		baseURL:  baseURL,
		model:    model,
		settings: settings,
		http:     settings.NewHTTPClient(),
		logger:   logger.Named("gemini-client"),
	}
}

// Gemini API structures
type GenerateRequest struct {
	Contents         []Content         `json:"contents"`
	GenerationConfig *GenerationConfig `json:"generationConfig,omitempty"`
}

type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

type Part struct {
	Text string `json:"text"`
}

type GenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type GenerateResponse struct {
	Candidates    []Candidate   `json:"candidates"`
	UsageMetadata UsageMetadata `json:"usageMetadata"`
}

type Candidate struct {
	Content      Content `json:"content"`
	FinishReason string  `json:"finishReason"`
}

type UsageMetadata struct {
	PromptTokenCount     int `json:"promptTokenCount"`
	CandidatesTokenCount int `json:"candidatesTokenCount"`
}

var errNoCandidates = errors.New("no candidates returned")

func (c *Client) Name() string { return Name }

// Complete calls generateContent. JSON requests set the JSON response
// mime type, which accepts both objects and arrays.
func (c *Client) Complete(ctx context.Context, req outbound.CompletionRequest) (string, error) {
	body := GenerateRequest{
		Contents: []Content{{Role: "user", Parts: []Part{{Text: req.Prompt}}}},
		GenerationConfig: &GenerationConfig{
			Temperature:     c.settings.Temperature,
			MaxOutputTokens: c.settings.MaxTokens,
		},
	}
	if req.JSON {
		body.GenerationConfig.ResponseMimeType = "application/json"
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	var resp GenerateResponse
	if err := httpclient.PostJSON(ctx, c.http, "gemini", endpoint, map[string]string{"x-goog-api-key": c.apiKey}, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Candidates) == 0 {
		return "", errNoCandidates
	}

	var out strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		out.WriteString(p.Text)
	}

	c.logger.Debug("Gemini API call successful",
		zap.Int("prompt_tokens", resp.UsageMetadata.PromptTokenCount),
		zap.Int("candidate_tokens", resp.UsageMetadata.CandidatesTokenCount),
		zap.String("finish_reason", resp.Candidates[0].FinishReason))
	return out.String(), nil
}

// HealthCheck fetches the configured model's metadata.
func (c *Client) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/models/%s", c.baseURL, url.PathEscape(c.model))
	return httpclient.Get(ctx, c.http, "gemini", endpoint, map[string]string{"x-goog-api-key": c.apiKey})
}
