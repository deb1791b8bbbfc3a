// Package openrouter builds eino chat models served through OpenRouter's
// OpenAI-compatible endpoint.
package openrouter

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	openaimodel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
)

const (
	refererHeader = "HTTP-Referer"
	titleHeader   = "X-Title"
)

// reasoningExcluded lists models whose reasoning tokens leak into tool-call
// arguments and structured verdicts.
var reasoningExcluded = map[string]bool{
	"x-ai/grok-4.1-fast":   true,
	"deepseek/deepseek-r1": true,
}

// Config describes one model endpoint. A zero Temperature is deterministic,
// which is what the verdict parsers expect.
type Config struct {
	BaseURL            string
	APIKey             string
	Model              string
	MaxCompletionToken *int
	Temperature        float32
	Timeout            time.Duration
	// SiteURL and SiteName are sent as OpenRouter app attribution.
	SiteURL  string
	SiteName string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return fmt.Errorf("openrouter: api key is required")
	}
	if strings.TrimSpace(c.Model) == "" {
		return fmt.Errorf("openrouter: model is required")
	}
	return nil
}

// NewChatModel returns a tool-calling chat model for c.Model.
func (c Config) NewChatModel(ctx context.Context) (model.ToolCallingChatModel, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	temperature := c.Temperature
	conf := &openaimodel.ChatModelConfig{
		BaseURL:     strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"),
		APIKey:      strings.TrimSpace(c.APIKey),
		Model:       strings.TrimSpace(c.Model),
		MaxTokens:   c.MaxCompletionToken,
		Temperature: &temperature,
		HTTPClient:  c.httpClient(),
		ExtraFields: c.extraFields(),
	}

	m, err := openaimodel.NewChatModel(ctx, conf)
	if err != nil {
		return nil, fmt.Errorf("openrouter: create chat model %q: %w", conf.Model, err)
	}
	return m, nil
}

func (c Config) extraFields() map[string]any {
	if !reasoningExcluded[strings.TrimSpace(c.Model)] {
		return nil
	}
	return map[string]any{
		"reasoning": map[string]any{
			"exclude": true,
			"effort":  "none",
		},
	}
}

func (c Config) httpClient() *http.Client {
	client := &http.Client{Timeout: c.Timeout}
	referer := strings.TrimSpace(c.SiteURL)
	title := strings.TrimSpace(c.SiteName)
	if referer != "" || title != "" {
		client.Transport = &attributionTransport{
			base:    http.DefaultTransport,
			referer: referer,
			title:   title,
		}
	}
	return client
}

type attributionTransport struct {
	base    http.RoundTripper
	referer string
	title   string
}

func (t *attributionTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	if t.referer != "" {
		req.Header.Set(refererHeader, t.referer)
	}
	if t.title != "" {
		req.Header.Set(titleHeader, t.title)
	}
	return t.base.RoundTrip(req)
}
