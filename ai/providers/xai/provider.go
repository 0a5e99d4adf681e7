// Package xai implements the xAI Grok provider, used as the first
// external fallback when Groq is unavailable.
package xai

import (
	"context"

	"github.com/iris-se/iris/ai"
	"github.com/iris-se/iris/ai/providers"
	"github.com/iris-se/iris/core"
)

const (
	defaultBaseURL = "https://api.x.ai/v1"
	defaultModel   = "grok-beta"
	maxTokensCap   = 4096
)

// Provider talks to the xAI chat completion API.
type Provider struct {
	client *providers.Client
}

// New creates an xAI provider from settings. The API key must be set.
func New(settings *core.Settings, logger core.Logger) *Provider {
	baseURL := settings.XAIBaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Provider{
		client: providers.NewClient("xai", baseURL, settings.XAIAPIKey,
			defaultModel, maxTokensCap, settings.XAITimeout, logger),
	}
}

// Name returns "xai"
func (p *Provider) Name() string {
	return "xai"
}

// Analyze runs a completion. Streaming requests are served non-streaming
// since the Grok endpoint handles SSE inconsistently.
func (p *Provider) Analyze(ctx context.Context, req ai.Request) (*ai.AnalysisResult, error) {
	req.Stream = false
	return p.client.Chat(ctx, req)
}

// AnalyzeStream delivers the whole answer as a single chunk.
func (p *Provider) AnalyzeStream(ctx context.Context, req ai.Request, callback ai.StreamCallback) error {
	result, err := p.Analyze(ctx, req)
	if err != nil {
		return err
	}
	return callback(result.Answer)
}

type factory struct{}

func (factory) Name() string { return "xai" }

func (factory) Available(settings *core.Settings) bool {
	return settings != nil && settings.XAIAPIKey != ""
}

func (factory) Create(settings *core.Settings, logger core.Logger) ai.Provider {
	return New(settings, logger)
}

func init() {
	ai.MustRegister(factory{})
}
