// Package ai orchestrates analysis of Swedish-language queries across
// multiple AI providers with automatic fallback.
package ai

import "context"

// Result kinds, carried in the typ field of every analysis result.
const (
	KindAnalysis  = "ai_analysis"
	KindStreaming = "ai_analysis_streaming"
	KindRuleBased = "rule_based"
	KindError     = "error"
)

// Request carries one analysis request to a provider.
type Request struct {
	// Query is the user's question in Swedish
	Query string

	// Context is the formatted data from the Swedish sources
	Context string

	// Model overrides the provider's default model when non-empty
	Model string

	// Temperature in [0.0, 1.0]; providers clamp out-of-range values
	Temperature float64

	// MaxTokens caps the response length; providers clamp to their limit
	MaxTokens int

	// Stream asks for incremental delivery when the provider supports it
	Stream bool
}

// AnalysisResult is the answer from a provider. The JSON field names are
// part of the public API surface and stay in Swedish.
type AnalysisResult struct {
	Answer         string `json:"svar"`
	Model          string `json:"modell"`
	Provider       string `json:"provider"`
	Kind           string `json:"typ"`
	TokensUsed     int    `json:"tokens_used"`
	Error          string `json:"error,omitempty"`
	Recommendation string `json:"rekommendation,omitempty"`
}

// StreamCallback receives response chunks as they arrive. Returning an
// error aborts the stream.
type StreamCallback func(chunk string) error

// Provider is one AI backend. Implementations live under ai/providers
// and register themselves with the registry in their init functions.
type Provider interface {
	// Analyze answers the request. When req.Stream is set and the
	// provider supports streaming, the full response is still returned
	// assembled; use AnalyzeStream for incremental delivery.
	Analyze(ctx context.Context, req Request) (*AnalysisResult, error)

	// AnalyzeStream delivers the response incrementally through the
	// callback. Providers without streaming support send the whole
	// answer as a single chunk.
	AnalyzeStream(ctx context.Context, req Request, callback StreamCallback) error

	// Name returns the provider identifier (groq, xai, lokal)
	Name() string
}
