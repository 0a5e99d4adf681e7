// Package groq implements the Groq Cloud provider, serving Kimi K2 with
// streaming support. It is the primary provider for the snabb and smart
// profiles.
package groq

import (
	"context"

	"github.com/iris-se/iris/ai"
	"github.com/iris-se/iris/ai/providers"
	"github.com/iris-se/iris/core"
)

const (
	defaultBaseURL = "https://api.groq.com/openai/v1"
	defaultModel   = "moonshotai/kimi-k2-instruct-0905"
	maxTokensCap   = 8192
)

// Provider talks to the Groq chat completion API.
type Provider struct {
	client *providers.Client
}

// New creates a Groq provider from settings. The API key must be set.
func New(settings *core.Settings, logger core.Logger) *Provider {
	return &Provider{
		client: providers.NewClient("groq", defaultBaseURL, settings.GroqAPIKey,
			defaultModel, maxTokensCap, settings.GroqTimeout, logger),
	}
}

// Name returns "groq"
func (p *Provider) Name() string {
	return "groq"
}

// Analyze runs a completion. With req.Stream set the response is streamed
// from the API but returned assembled, with estimated token usage.
func (p *Provider) Analyze(ctx context.Context, req ai.Request) (*ai.AnalysisResult, error) {
	if req.Stream {
		return p.client.ChatStreamAssembled(ctx, req)
	}
	return p.client.Chat(ctx, req)
}

// AnalyzeStream streams completion chunks through the callback.
func (p *Provider) AnalyzeStream(ctx context.Context, req ai.Request, callback ai.StreamCallback) error {
	return p.client.ChatStream(ctx, req, callback)
}

type factory struct{}

func (factory) Name() string { return "groq" }

func (factory) Available(settings *core.Settings) bool {
	return settings != nil && settings.GroqAPIKey != ""
}

func (factory) Create(settings *core.Settings, logger core.Logger) ai.Provider {
	return New(settings, logger)
}

func init() {
	ai.MustRegister(factory{})
}
