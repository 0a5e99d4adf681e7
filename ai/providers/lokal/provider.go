// Package lokal implements the rule-based provider that runs entirely
// in-process. It serves the privat profile and is the final fallback in
// the provider chain, so it never fails and needs no configuration.
package lokal

import (
	"context"
	"strings"

	"github.com/iris-se/iris/ai"
	"github.com/iris-se/iris/ai/providers"
	"github.com/iris-se/iris/core"
)

// Provider is the local rule-based analyzer.
type Provider struct {
	logger core.Logger
}

// New creates a local provider.
func New(logger core.Logger) *Provider {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &Provider{logger: logger}
}

// Name returns "lokal"
func (p *Provider) Name() string {
	return "lokal"
}

// observation maps context keywords to a canned finding. Order matters
// for stable output.
var observations = []struct {
	keywords []string
	text     string
}{
	{[]string{"omx", "finansiell"}, "- Finansiell data från OMX Stockholm visar aktuell börsaktivitet."},
	{[]string{"scb", "statistik"}, "- Statistik från SCB ger officiella svenska siffror."},
	{[]string{"smhi", "väder"}, "- Väderdata från SMHI ger prognoser för Sverige."},
	{[]string{"nyheter", "news"}, "- Aktuella nyheter från svenska medier."},
}

// Analyze produces a deterministic rule-based answer from the query and
// whatever context keywords are present. Temperature is ignored.
func (p *Provider) Analyze(ctx context.Context, req ai.Request) (*ai.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p.logger.Info("Använder lokal regelbaserad analys", map[string]interface{}{
		"operation": "local_analyze",
	})

	parts := []string{
		"Baserat på din fråga '" + req.Query + "' och tillgängliga svenska källor:",
	}

	contextLower := strings.ToLower(req.Context)
	for _, obs := range observations {
		for _, keyword := range obs.keywords {
			if strings.Contains(contextLower, keyword) {
				parts = append(parts, obs.text)
				break
			}
		}
	}

	parts = append(parts,
		"\nOBS: Detta är en lokal regelbaserad analys.",
		"För mer detaljerad AI-analys, använd 'snabb' eller 'smart' profil med externa AI-providers.")

	answer := strings.Join(parts, "\n")
	model := req.Model
	if model == "" {
		model = "lokal"
	}

	return &ai.AnalysisResult{
		Answer:     answer,
		Model:      model,
		Provider:   "lokal",
		Kind:       ai.KindRuleBased,
		TokensUsed: providers.EstimateTokens(answer),
	}, nil
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

func (factory) Name() string { return "lokal" }

// Available always returns true; the local provider needs nothing.
func (factory) Available(*core.Settings) bool { return true }

func (factory) Create(settings *core.Settings, logger core.Logger) ai.Provider {
	return New(logger)
}

func init() {
	ai.MustRegister(factory{})
}
