// Package collector gathers data from the configured Swedish sources in
// parallel, with per-source circuit breakers and an optional cache so a
// failing source never takes the whole collection down.
package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iris-se/iris/core"
	"github.com/iris-se/iris/resilience"
	"github.com/iris-se/iris/sources"
)

const defaultMaxConcurrency = 5

// Collector fans out to data sources and assembles partial results.
type Collector struct {
	sources        *sources.Sources
	breakers       *resilience.Registry
	settings       *core.Settings
	logger         core.Logger
	memory         core.Memory
	maxConcurrency int
}

// Option configures a Collector
type Option func(*Collector)

// WithLogger sets the logger
func WithLogger(logger core.Logger) Option {
	return func(c *Collector) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMemory enables result caching through the given store
func WithMemory(memory core.Memory) Option {
	return func(c *Collector) { c.memory = memory }
}

// WithMaxConcurrency caps the number of sources fetched at once
func WithMaxConcurrency(n int) Option {
	return func(c *Collector) {
		if n > 0 {
			c.maxConcurrency = n
		}
	}
}

// New creates a Collector. The breaker registry is shared with the rest
// of the service so source health is visible everywhere.
func New(src *sources.Sources, breakers *resilience.Registry, settings *core.Settings, opts ...Option) *Collector {
	c := &Collector{
		sources:        src,
		breakers:       breakers,
		settings:       settings,
		logger:         &core.NoOpLogger{},
		maxConcurrency: defaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Collect fetches all named sources concurrently and returns one result
// per source. A failed source becomes an unavailable record with its
// error message; only an empty source list is an error for the caller.
func (c *Collector) Collect(ctx context.Context, query string, sourceNames []string) (sources.Collected, error) {
	if len(sourceNames) == 0 {
		return nil, core.ErrNoSources
	}

	collectionID := uuid.NewString()
	started := time.Now()

	c.logger.Info("Samlar data från källor", map[string]interface{}{
		"operation":     "collect_start",
		"collection_id": collectionID,
		"sources":       sourceNames,
	})

	collected := make(sources.Collected, len(sourceNames))
	var mu sync.Mutex
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, c.maxConcurrency)

	for _, name := range sourceNames {
		wg.Add(1)
		go func(source string) {
			semaphore <- struct{}{}
			defer func() {
				<-semaphore
				if r := recover(); r != nil {
					c.logger.Error("Panik vid datahämtning", map[string]interface{}{
						"operation":     "collect_panic",
						"collection_id": collectionID,
						"source":        source,
						"panic":         fmt.Sprintf("%v", r),
					})
					mu.Lock()
					collected[source] = sources.Result{
						Source:    source,
						Available: false,
						Error:     fmt.Sprintf("intern panik: %v", r),
						Timestamp: time.Now().UTC(),
					}
					mu.Unlock()
				}
				wg.Done()
			}()

			result := c.collectOne(ctx, collectionID, source, query)
			mu.Lock()
			collected[source] = result
			mu.Unlock()
		}(name)
	}
	wg.Wait()

	c.logger.Info("Datainsamling klar", map[string]interface{}{
		"operation":     "collect_done",
		"collection_id": collectionID,
		"duration_ms":   time.Since(started).Milliseconds(),
		"available":     countAvailable(collected),
		"total":         len(collected),
	})

	return collected, nil
}

// collectOne fetches a single source through its circuit breaker,
// consulting the cache first when one is configured.
func (c *Collector) collectOne(ctx context.Context, collectionID, source, query string) sources.Result {
	if cached, ok := c.fromCache(ctx, source, query); ok {
		c.logger.Debug("Källa besvarad från cache", map[string]interface{}{
			"operation":     "collect_cache_hit",
			"collection_id": collectionID,
			"source":        source,
		})
		return cached
	}

	var result sources.Result
	breaker := c.breakers.Get(source)
	err := breaker.Execute(ctx, func() error {
		var fetchErr error
		result, fetchErr = c.sources.Fetch(ctx, source, query)
		return fetchErr
	})
	if err != nil {
		c.logger.Warn("Källa otillgänglig", map[string]interface{}{
			"operation":     "collect_source_failed",
			"collection_id": collectionID,
			"source":        source,
			"error":         err.Error(),
		})
		return sources.Result{
			Source:    source,
			Available: false,
			Error:     err.Error(),
			Timestamp: time.Now().UTC(),
		}
	}

	c.toCache(ctx, source, query, result)
	return result
}

func (c *Collector) cacheKey(source, query string) string {
	if source == "smhi" || source == "svenska_nyheter" {
		// These depend on the query text
		return fmt.Sprintf("källa:%s:%s", source, query)
	}
	return fmt.Sprintf("källa:%s", source)
}

func (c *Collector) fromCache(ctx context.Context, source, query string) (sources.Result, bool) {
	if c.memory == nil {
		return sources.Result{}, false
	}
	raw, err := c.memory.Get(ctx, c.cacheKey(source, query))
	if err != nil || raw == "" {
		return sources.Result{}, false
	}
	var result sources.Result
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return sources.Result{}, false
	}
	return result, true
}

func (c *Collector) toCache(ctx context.Context, source, query string, result sources.Result) {
	if c.memory == nil || !result.Available {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	var ttl time.Duration
	if c.settings != nil {
		ttl = c.settings.SourceCacheTTL(source)
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if err := c.memory.Set(ctx, c.cacheKey(source, query), string(raw), ttl); err != nil {
		c.logger.Warn("Kunde inte cacha källresultat", map[string]interface{}{
			"operation": "collect_cache_write_failed",
			"source":    source,
			"error":     err.Error(),
		})
	}
}

func countAvailable(collected sources.Collected) int {
	n := 0
	for _, result := range collected {
		if result.Available {
			n++
		}
	}
	return n
}
