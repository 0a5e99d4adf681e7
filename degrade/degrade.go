// Package degrade produces useful Swedish fallback responses when the
// analysis pipeline cannot serve a query, and keeps a cache of earlier
// answers to fall back on.
package degrade

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/iris-se/iris/core"
)

// retryAfter is how far ahead the suggested retry time lies.
const retryAfter = 5 * time.Minute

// FallbackPayload is the degraded-mode response. The JSON field names
// are part of the public API surface and stay in Swedish.
type FallbackPayload struct {
	Kind           string `json:"typ"`
	Message        string `json:"meddelande"`
	FallbackAnswer string `json:"fallback_svar"`
	OriginalQuery  string `json:"original_fråga"`
	ErrorType      string `json:"fel_typ"`
	ErrorMessage   string `json:"fel_meddelande"`
	Timestamp      string `json:"tidsstämpel"`
	Status         string `json:"status"`
	NextRetry      string `json:"nästa_försök"`
	Recommendation string `json:"rekommendation"`
}

// ProvideFallbackResponse builds a degraded-mode answer for the query.
// The content points the user at the official Swedish source matching
// the query's intent. Pure apart from reading the clock.
func ProvideFallbackResponse(query string, errorType string, err error) FallbackPayload {
	now := time.Now()

	message := ""
	if err != nil {
		message = truncate(err.Error(), 200)
	}

	return FallbackPayload{
		Kind:           "fallback",
		Message:        "Tjänsten är tillfälligt otillgänglig. Här är vad vi vet:",
		FallbackAnswer: fallbackContent(query),
		OriginalQuery:  query,
		ErrorType:      errorType,
		ErrorMessage:   message,
		Timestamp:      now.Format(time.RFC3339),
		Status:         "degraded",
		NextRetry:      now.Add(retryAfter).Format(time.RFC3339),
		Recommendation: "Försök igen om några minuter eller kontakta support om problemet kvarstår.",
	}
}

// intent keyword sets, checked in order.
var intents = []struct {
	keywords []string
	answer   string
}{
	{
		[]string{"väder", "temperatur", "regn", "sol"},
		"Väderinformation är tillfälligt otillgänglig. Du kan kontrollera SMHI.se direkt eller försöka igen senare.",
	},
	{
		[]string{"aktie", "omx", "börsen", "kurs"},
		"Finansiell information är tillfälligt otillgänglig. Kontrollera Avanza, Nordnet eller Stockholmsbörsen direkt.",
	},
	{
		[]string{"nyheter", "nyhet", "aktuellt"},
		"Nyhetsuppdateringar är tillfälligt otillgängliga. Besök SVT.se, DN.se eller Aftonbladet.se för senaste nyheterna.",
	},
	{
		[]string{"statistik", "scb", "befolkning", "siffror"},
		"Statistisk information från SCB är tillfälligt otillgänglig. Besök SCB.se direkt för officiell svensk statistik.",
	},
}

func fallbackContent(query string) string {
	queryLower := strings.ToLower(query)
	for _, intent := range intents {
		for _, keyword := range intent.keywords {
			if strings.Contains(queryLower, keyword) {
				return intent.answer
			}
		}
	}
	return fmt.Sprintf(
		"Kunde inte behandla din fråga '%s' just nu på grund av tekniska problem. Våra system arbetar för att lösa problemet. Försök igen om några minuter.",
		query)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

// Cache keeps successful responses around so they can be served when the
// live pipeline is down.
type Cache struct {
	memory core.Memory
	logger core.Logger
	ttl    time.Duration
}

// NewCache creates a fallback cache over the given store. A nil store
// disables the cache; both methods then act as no-ops.
func NewCache(memory core.Memory, logger core.Logger) *Cache {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Cache{memory: memory, logger: logger, ttl: time.Hour}
}

// Save stores a response under the key for later degraded-mode use.
func (c *Cache) Save(ctx context.Context, key string, value interface{}) {
	if c.memory == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := c.memory.Set(ctx, "fallback:"+key, string(raw), c.ttl); err != nil {
		c.logger.Warn("Kunde inte spara fallback i cache", map[string]interface{}{
			"operation": "fallback_cache_save_failed",
			"error":     err.Error(),
		})
	}
}

// Load retrieves a cached response into out. Returns false when nothing
// usable is cached.
func (c *Cache) Load(ctx context.Context, key string, out interface{}) bool {
	if c.memory == nil {
		return false
	}
	raw, err := c.memory.Get(ctx, "fallback:"+key)
	if err != nil {
		c.logger.Warn("Kunde inte hämta fallback från cache", map[string]interface{}{
			"operation": "fallback_cache_load_failed",
			"error":     err.Error(),
		})
		return false
	}
	if raw == "" {
		return false
	}
	return json.Unmarshal([]byte(raw), out) == nil
}
