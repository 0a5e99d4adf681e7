package ai

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iris-se/iris/core"
	"github.com/iris-se/iris/resilience"
	"github.com/iris-se/iris/sources"
)

// Analyzer runs analysis requests against the provider chosen by the
// profile, guarded by per-provider circuit breakers with retry, and falls
// back along the fixed chain groq, xai, lokal when a provider fails. The
// local provider cannot fail, so the chain normally always produces an
// answer; total exhaustion yields an error-kind result, never an error
// return.
type Analyzer struct {
	settings *core.Settings
	logger   core.Logger
	breakers *resilience.Registry
	retry    *resilience.RetryConfig

	// create builds providers; overridable in tests
	create func(name string, settings *core.Settings, logger core.Logger) (Provider, bool)

	mu    sync.Mutex
	cache map[string]Provider
}

// AnalyzerOption configures an Analyzer
type AnalyzerOption func(*Analyzer)

// WithLogger sets the logger
func WithLogger(logger core.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithBreakers shares a breaker registry with the rest of the service
func WithBreakers(breakers *resilience.Registry) AnalyzerOption {
	return func(a *Analyzer) {
		if breakers != nil {
			a.breakers = breakers
		}
	}
}

// WithRetryConfig overrides the per-provider retry policy
func WithRetryConfig(retry *resilience.RetryConfig) AnalyzerOption {
	return func(a *Analyzer) {
		if retry != nil {
			a.retry = retry
		}
	}
}

// WithProviderCreator replaces the registry-backed provider construction.
// Mainly for tests.
func WithProviderCreator(create func(name string, settings *core.Settings, logger core.Logger) (Provider, bool)) AnalyzerOption {
	return func(a *Analyzer) {
		if create != nil {
			a.create = create
		}
	}
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(settings *core.Settings, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		settings: settings,
		logger:   &core.NoOpLogger{},
		breakers: resilience.NewRegistry(),
		retry: &resilience.RetryConfig{
			MaxRetries:      2,
			BaseDelay:       time.Second,
			MaxDelay:        10 * time.Second,
			ExponentialBase: 2.0,
			Jitter:          true,
		},
		create: CreateProvider,
		cache:  make(map[string]Provider),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze answers the query using the profile's provider, with automatic
// fallback. The returned result always carries a typ field; when every
// provider in the chain fails the result has typ "error" and provider
// "none", and the returned error is still nil.
func (a *Analyzer) Analyze(ctx context.Context, query string, collected sources.Collected, profile core.Profile) (*AnalysisResult, error) {
	req := Request{
		Query:       query,
		Context:     BuildContext(collected),
		Model:       profile.Model,
		Temperature: profile.Temperature,
		MaxTokens:   profile.MaxTokens,
		Stream:      profile.Streaming,
	}

	primary := profile.Provider
	if primary == "" {
		primary = "lokal"
	}

	a.logger.Info("Analyserar fråga", map[string]interface{}{
		"operation": "analyze_start",
		"provider":  primary,
		"model":     req.Model,
		"streaming": req.Stream,
	})

	attempted := map[string]bool{primary: true}

	provider, ok := a.provider(primary)
	if !ok {
		a.logger.Warn("Provider inte tillgänglig, ersätter", map[string]interface{}{
			"operation": "analyze_provider_unavailable",
			"provider":  primary,
		})
		provider, ok = a.substitute(attempted)
	}

	if ok {
		attempt := req
		if provider.Name() == "lokal" {
			attempt.Model = "lokal"
		}
		result, err := a.analyzeWith(ctx, provider, attempt)
		if err == nil {
			a.logger.Info("Analys slutförd", map[string]interface{}{
				"operation": "analyze_done",
				"provider":  provider.Name(),
				"tokens":    result.TokensUsed,
			})
			return result, nil
		}
		a.logger.Error("Provider misslyckades", map[string]interface{}{
			"operation": "analyze_provider_failed",
			"provider":  provider.Name(),
			"error":     err.Error(),
		})
	}

	return a.tryFallbacks(ctx, req, attempted), nil
}

// substitute picks the first available provider in the fallback chain
// that has not been attempted. A substitute stands in for an unavailable
// provider and receives the caller's request unchanged; only a failed
// call triggers the adjusted fallback walk.
func (a *Analyzer) substitute(attempted map[string]bool) (Provider, bool) {
	for _, name := range fallbackOrder {
		if attempted[name] {
			continue
		}
		if provider, ok := a.provider(name); ok {
			attempted[name] = true
			return provider, true
		}
	}
	return nil, false
}

// tryFallbacks walks the remaining chain with a steadier temperature and
// streaming disabled.
func (a *Analyzer) tryFallbacks(ctx context.Context, req Request, attempted map[string]bool) *AnalysisResult {
	fallback := req
	fallback.Stream = false
	if req.Temperature > 0 {
		fallback.Temperature = maxFloat(0.1, req.Temperature*0.8)
	} else {
		fallback.Temperature = 0.5
	}

	for _, name := range fallbackOrder {
		if attempted[name] {
			continue
		}
		attempted[name] = true

		provider, ok := a.provider(name)
		if !ok {
			continue
		}

		a.logger.Info("Försöker fallback-provider", map[string]interface{}{
			"operation": "analyze_fallback",
			"provider":  name,
		})

		attempt := fallback
		if name == "lokal" {
			attempt.Model = "lokal"
		}

		result, err := a.analyzeWith(ctx, provider, attempt)
		if err == nil {
			a.logger.Info("Fallback lyckades", map[string]interface{}{
				"operation": "analyze_fallback_done",
				"provider":  name,
			})
			return result
		}

		a.logger.Error("Fallback misslyckades", map[string]interface{}{
			"operation": "analyze_fallback_failed",
			"provider":  name,
			"error":     err.Error(),
		})
	}

	return errorResult(req.Query, core.ErrAllProvidersFailed)
}

// AnalyzeStream streams the answer through the callback using the
// profile's provider (or its substitute when unavailable), guarded by
// that provider's circuit breaker; a streaming failure or an open breaker
// falls back to a regular Analyze pass so the caller still gets an
// answer, delivered as a single chunk.
func (a *Analyzer) AnalyzeStream(ctx context.Context, query string, collected sources.Collected, profile core.Profile, callback StreamCallback) error {
	req := Request{
		Query:       query,
		Context:     BuildContext(collected),
		Model:       profile.Model,
		Temperature: profile.Temperature,
		MaxTokens:   profile.MaxTokens,
		Stream:      true,
	}

	primary := profile.Provider
	if primary == "" {
		primary = "lokal"
	}

	attempted := map[string]bool{primary: true}

	provider, ok := a.provider(primary)
	if !ok {
		a.logger.Warn("Provider inte tillgänglig, ersätter", map[string]interface{}{
			"operation": "stream_provider_unavailable",
			"provider":  primary,
		})
		provider, ok = a.substitute(attempted)
	}

	if ok {
		attempt := req
		if provider.Name() == "lokal" {
			attempt.Model = "lokal"
		}
		err := a.breakers.Get(provider.Name()).Execute(ctx, func() error {
			return provider.AnalyzeStream(ctx, attempt, callback)
		})
		if err == nil {
			return nil
		}
		a.logger.Error("Streaming misslyckades, faller tillbaka", map[string]interface{}{
			"operation": "stream_failed",
			"provider":  provider.Name(),
			"error":     err.Error(),
		})
	}

	result := a.tryFallbacks(ctx, req, attempted)
	return callback(result.Answer)
}

// analyzeWith runs one provider call guarded by the provider's circuit
// breaker, with retry inside the breaker so an exhausted retry sequence
// counts as a single breaker failure.
func (a *Analyzer) analyzeWith(ctx context.Context, provider Provider, req Request) (*AnalysisResult, error) {
	var result *AnalysisResult
	name := provider.Name()

	err := a.breakers.Get(name).Execute(ctx, func() error {
		return resilience.Retry(ctx, a.retry, func() error {
			var callErr error
			result, callErr = provider.Analyze(ctx, req)
			return callErr
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// provider returns the cached provider instance, creating it on first
// use. A provider that cannot be created with the current settings is
// reported unavailable rather than cached.
func (a *Analyzer) provider(name string) (Provider, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if p, ok := a.cache[name]; ok {
		return p, true
	}

	p, ok := a.create(name, a.settings, a.logger)
	if !ok {
		return nil, false
	}
	a.cache[name] = p
	return p, true
}

// AvailableProviders returns the usable provider names for the current
// settings.
func (a *Analyzer) AvailableProviders() []string {
	return AvailableProviders(a.settings)
}

// BreakerStatistics exposes provider breaker health for monitoring.
func (a *Analyzer) BreakerStatistics() map[string]resilience.Statistics {
	return a.breakers.Statistics()
}

func errorResult(query string, err error) *AnalysisResult {
	return &AnalysisResult{
		Answer: fmt.Sprintf(
			"Kunde inte analysera frågan '%s' på grund av tekniska problem. Alla AI-providers är tillfälligt otillgängliga.",
			query),
		Model:          "error",
		Provider:       "none",
		Kind:           KindError,
		TokensUsed:     0,
		Error:          err.Error(),
		Recommendation: "Försök igen senare eller kontakta support om problemet kvarstår.",
	}
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}
