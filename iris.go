// Package iris is the service facade: it picks the sources for the
// requested profile, collects their data, runs the AI analysis with
// provider fallback, and degrades gracefully when everything fails.
package iris

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iris-se/iris/ai"
	"github.com/iris-se/iris/collector"
	"github.com/iris-se/iris/core"
	"github.com/iris-se/iris/degrade"
	"github.com/iris-se/iris/resilience"
	"github.com/iris-se/iris/sources"

	// Register the AI providers
	_ "github.com/iris-se/iris/ai/providers/groq"
	_ "github.com/iris-se/iris/ai/providers/lokal"
	_ "github.com/iris-se/iris/ai/providers/xai"
)

// Response is the answer to one query.
type Response struct {
	RequestID string                   `json:"request_id"`
	Query     string                   `json:"query"`
	Profile   string                   `json:"profile"`
	Result    *ai.AnalysisResult       `json:"result,omitempty"`
	Fallback  *degrade.FallbackPayload `json:"fallback,omitempty"`
	Sources   sources.Collected        `json:"sources"`
	Degraded  bool                     `json:"degraded"`
	Duration  time.Duration            `json:"duration_ms"`
}

// Service wires the collection and analysis pipeline together. All
// components share one circuit breaker registry so source and provider
// health is visible in one place.
type Service struct {
	settings  *core.Settings
	logger    core.Logger
	breakers  *resilience.Registry
	sources   *sources.Sources
	collector *collector.Collector
	analyzer  *ai.Analyzer
	fallbacks *degrade.Cache
}

// Option configures a Service
type Option func(*serviceConfig)

type serviceConfig struct {
	logger  core.Logger
	memory  core.Memory
	metrics resilience.MetricsCollector
	sources *sources.Sources
}

// WithLogger sets the logger used by all components
func WithLogger(logger core.Logger) Option {
	return func(c *serviceConfig) { c.logger = logger }
}

// WithMemory sets the store used for source and fallback caching
func WithMemory(memory core.Memory) Option {
	return func(c *serviceConfig) { c.memory = memory }
}

// WithMetrics sets the circuit breaker metrics collector
func WithMetrics(metrics resilience.MetricsCollector) Option {
	return func(c *serviceConfig) { c.metrics = metrics }
}

// WithSources replaces the source integrations, mainly for tests
func WithSources(src *sources.Sources) Option {
	return func(c *serviceConfig) { c.sources = src }
}

// New creates a Service. When settings carry a Redis URL the caches run
// on Redis, otherwise on the in-process store.
func New(settings *core.Settings, opts ...Option) (*Service, error) {
	if settings == nil {
		return nil, fmt.Errorf("settings krävs: %w", core.ErrMissingConfiguration)
	}

	cfg := &serviceConfig{logger: &core.NoOpLogger{}}
	for _, opt := range opts {
		opt(cfg)
	}

	memory := cfg.memory
	if memory == nil {
		memory = newDefaultMemory(settings, cfg.logger)
	}

	breakerOpts := []resilience.RegistryOption{resilience.WithLogger(cfg.logger)}
	if cfg.metrics != nil {
		breakerOpts = append(breakerOpts, resilience.WithMetrics(cfg.metrics))
	}
	breakers := resilience.NewRegistry(breakerOpts...)

	src := cfg.sources
	if src == nil {
		src = sources.New(settings, sources.WithLogger(cfg.logger))
	}

	s := &Service{
		settings: settings,
		logger:   cfg.logger,
		breakers: breakers,
		sources:  src,
		collector: collector.New(src, breakers, settings,
			collector.WithLogger(cfg.logger),
			collector.WithMemory(memory)),
		analyzer: ai.NewAnalyzer(settings,
			ai.WithLogger(cfg.logger),
			ai.WithBreakers(breakers)),
		fallbacks: degrade.NewCache(memory, cfg.logger),
	}

	cfg.logger.Info("IRIS-tjänsten initialiserad", map[string]interface{}{
		"operation": "service_init",
		"providers": s.analyzer.AvailableProviders(),
	})
	return s, nil
}

// newDefaultMemory connects to Redis when configured and falls back to
// the in-process store when the connection fails.
func newDefaultMemory(settings *core.Settings, logger core.Logger) core.Memory {
	if settings.RedisURL != "" {
		redisMemory, err := core.NewRedisMemory(context.Background(), core.RedisMemoryOptions{
			RedisURL: settings.RedisURL,
			Logger:   logger,
		})
		if err == nil {
			return redisMemory
		}
		logger.Warn("Redis otillgängligt, använder minnescache", map[string]interface{}{
			"operation": "memory_fallback",
			"error":     err.Error(),
		})
	}
	return core.NewMemoryStore()
}

// Ask answers the query using the named profile. A failing pipeline
// never surfaces as an error: when analysis is impossible the response
// carries a degraded fallback payload instead of a result.
func (s *Service) Ask(ctx context.Context, query, profileName string) (*Response, error) {
	started := time.Now()
	requestID := uuid.NewString()

	profile := s.settings.ProfileConfig(profileName)
	sourceNames := s.settings.SourcesForProfile(profileName)

	s.logger.Info("Behandlar fråga", map[string]interface{}{
		"operation":  "ask_start",
		"request_id": requestID,
		"profile":    profileName,
		"sources":    sourceNames,
	})

	collected := s.collect(ctx, query, sourceNames)
	result, err := s.analyzer.Analyze(ctx, query, collected, profile)
	if err != nil {
		return nil, err
	}

	response := &Response{
		RequestID: requestID,
		Query:     query,
		Profile:   profileName,
		Sources:   collected,
		Duration:  time.Since(started),
	}

	if result.Kind == ai.KindError {
		response.Degraded = true
		response.Fallback = s.fallbackFor(ctx, query, result)
		s.logger.Warn("Fråga besvarad i degraderat läge", map[string]interface{}{
			"operation":  "ask_degraded",
			"request_id": requestID,
		})
		return response, nil
	}

	response.Result = result
	s.fallbacks.Save(ctx, query, result)

	s.logger.Info("Fråga besvarad", map[string]interface{}{
		"operation":   "ask_done",
		"request_id":  requestID,
		"provider":    result.Provider,
		"tokens":      result.TokensUsed,
		"duration_ms": time.Since(started).Milliseconds(),
	})
	return response, nil
}

// AskStream answers the query with streaming delivery. Source collection
// still happens up front; only the AI answer streams.
func (s *Service) AskStream(ctx context.Context, query, profileName string, callback ai.StreamCallback) error {
	profile := s.settings.ProfileConfig(profileName)
	sourceNames := s.settings.SourcesForProfile(profileName)

	collected := s.collect(ctx, query, sourceNames)
	return s.analyzer.AnalyzeStream(ctx, query, collected, profile, callback)
}

// collect gathers source data, tolerating a profile with no usable
// sources.
func (s *Service) collect(ctx context.Context, query string, sourceNames []string) sources.Collected {
	collected, err := s.collector.Collect(ctx, query, sourceNames)
	if err != nil {
		if !errors.Is(err, core.ErrNoSources) {
			s.logger.Error("Datainsamling misslyckades", map[string]interface{}{
				"operation": "ask_collect_failed",
				"error":     err.Error(),
			})
		}
		return sources.Collected{}
	}
	return collected
}

// fallbackFor builds the degraded payload, preferring an earlier cached
// answer for the same query.
func (s *Service) fallbackFor(ctx context.Context, query string, result *ai.AnalysisResult) *degrade.FallbackPayload {
	var cached ai.AnalysisResult
	if s.fallbacks.Load(ctx, query, &cached) && cached.Answer != "" {
		payload := degrade.ProvideFallbackResponse(query, "ProviderFailure", errors.New(result.Error))
		payload.FallbackAnswer = cached.Answer
		payload.Message = "Tjänsten är tillfälligt otillgänglig. Här är det senaste kända svaret:"
		return &payload
	}

	payload := degrade.ProvideFallbackResponse(query, "ProviderFailure", errors.New(result.Error))
	return &payload
}

// AvailableProviders returns the usable AI providers for the current
// settings.
func (s *Service) AvailableProviders() []string {
	return s.analyzer.AvailableProviders()
}

// BreakerStatistics exposes the health of every circuit breaker, data
// sources and AI providers alike.
func (s *Service) BreakerStatistics() map[string]resilience.Statistics {
	return s.breakers.Statistics()
}

// AnalyzeServiceErrors grades the recent failures of one guarded
// service.
func (s *Service) AnalyzeServiceErrors(name string) resilience.ErrorAnalysis {
	return s.breakers.Analyze(name)
}
