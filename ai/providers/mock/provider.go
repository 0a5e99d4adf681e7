// Package mock provides a scripted provider for tests.
package mock

import (
	"context"

	"github.com/iris-se/iris/ai"
)

// Provider is a test double with pluggable behavior. The zero value
// answers every request with a static result.
type Provider struct {
	// ProviderName defaults to "mock"
	ProviderName string

	// AnalyzeFunc overrides Analyze when set
	AnalyzeFunc func(ctx context.Context, req ai.Request) (*ai.AnalysisResult, error)

	// StreamChunks are delivered by AnalyzeStream when set
	StreamChunks []string

	// Calls counts Analyze invocations
	Calls int

	// LastRequest records the most recent request
	LastRequest ai.Request
}

// Name returns the configured provider name
func (p *Provider) Name() string {
	if p.ProviderName == "" {
		return "mock"
	}
	return p.ProviderName
}

// Analyze runs the scripted behavior.
func (p *Provider) Analyze(ctx context.Context, req ai.Request) (*ai.AnalysisResult, error) {
	p.Calls++
	p.LastRequest = req
	if p.AnalyzeFunc != nil {
		return p.AnalyzeFunc(ctx, req)
	}
	return &ai.AnalysisResult{
		Answer:     "Mockat svar",
		Model:      req.Model,
		Provider:   p.Name(),
		Kind:       ai.KindAnalysis,
		TokensUsed: 10,
	}, nil
}

// AnalyzeStream delivers the scripted chunks, or the Analyze answer as a
// single chunk when no chunks are configured.
func (p *Provider) AnalyzeStream(ctx context.Context, req ai.Request, callback ai.StreamCallback) error {
	if len(p.StreamChunks) > 0 {
		p.Calls++
		p.LastRequest = req
		for _, chunk := range p.StreamChunks {
			if err := callback(chunk); err != nil {
				return err
			}
		}
		return nil
	}

	result, err := p.Analyze(ctx, req)
	if err != nil {
		return err
	}
	return callback(result.Answer)
}
