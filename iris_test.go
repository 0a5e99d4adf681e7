package iris

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iris-se/iris/ai"
	"github.com/iris-se/iris/ai/providers/mock"
	"github.com/iris-se/iris/core"
)

func testSettings() *core.Settings {
	return &core.Settings{
		NewsAPIKey: "demo",
		Profiles:   core.DefaultProfiles(),
		Sources:    core.DefaultSources(),
	}
}

func TestNewRequiresSettings(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, core.ErrMissingConfiguration)
}

func TestAskPrivatProfileStaysLocal(t *testing.T) {
	s, err := New(testSettings())
	require.NoError(t, err)

	response, err := s.Ask(context.Background(), "Hur är vädret i Stockholm?", "privat")
	require.NoError(t, err)

	require.NotNil(t, response.Result)
	assert.Equal(t, "lokal", response.Result.Provider)
	assert.Equal(t, ai.KindRuleBased, response.Result.Kind)
	assert.False(t, response.Degraded)
	assert.Contains(t, response.Result.Answer, "SMHI")

	// privat skips sources that need external API keys
	assert.NotContains(t, response.Sources, "svenska_nyheter")
	assert.Contains(t, response.Sources, "smhi")
	assert.Contains(t, response.Sources, "scb")
}

func TestAskFallsBackToLocalWithoutAPIKeys(t *testing.T) {
	// The smart profile wants groq, but no keys are configured, so the
	// chain walks down to the local provider.
	s, err := New(testSettings())
	require.NoError(t, err)

	response, err := s.Ask(context.Background(), "Hur mår svensk ekonomi?", "smart")
	require.NoError(t, err)

	require.NotNil(t, response.Result)
	assert.Equal(t, "lokal", response.Result.Provider)
	assert.Equal(t, ai.KindRuleBased, response.Result.Kind)
}

func TestAskUnknownProfileUsesSmart(t *testing.T) {
	s, err := New(testSettings())
	require.NoError(t, err)

	response, err := s.Ask(context.Background(), "test", "finns_inte")
	require.NoError(t, err)
	require.NotNil(t, response.Result)
	assert.NotEmpty(t, response.Result.Answer)
}

func TestAskResponseMetadata(t *testing.T) {
	s, err := New(testSettings())
	require.NoError(t, err)

	response, err := s.Ask(context.Background(), "Statistik om befolkning", "privat")
	require.NoError(t, err)

	assert.NotEmpty(t, response.RequestID)
	assert.Equal(t, "Statistik om befolkning", response.Query)
	assert.Equal(t, "privat", response.Profile)
	assert.NotZero(t, response.Duration)
}

func TestAskStreamDeliversChunks(t *testing.T) {
	s, err := New(testSettings())
	require.NoError(t, err)

	var chunks []string
	err = s.AskStream(context.Background(), "Hur är vädret?", "privat", func(chunk string) error {
		chunks = append(chunks, chunk)
		return nil
	})
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	assert.Contains(t, chunks[0], "regelbaserad analys")
}

func TestBreakerStatisticsCoverSources(t *testing.T) {
	s, err := New(testSettings())
	require.NoError(t, err)

	_, err = s.Ask(context.Background(), "test", "privat")
	require.NoError(t, err)

	stats := s.BreakerStatistics()
	for _, name := range []string{"scb", "omx", "smhi"} {
		breaker, ok := stats[name]
		require.True(t, ok, "missing breaker for %s", name)
		assert.Equal(t, "closed", breaker.State)
		assert.GreaterOrEqual(t, breaker.SuccessCount, 1)
	}
}

func TestAvailableProvidersAlwaysIncludesLocal(t *testing.T) {
	s, err := New(testSettings())
	require.NoError(t, err)

	providers := s.AvailableProviders()
	assert.Contains(t, providers, "lokal")
	assert.NotContains(t, providers, "groq")

	settings := testSettings()
	settings.GroqAPIKey = "gsk_test"
	s, err = New(settings)
	require.NoError(t, err)
	assert.Equal(t, []string{"groq", "lokal"}, s.AvailableProviders())
}

// mockFactory registers the scripted test provider under its own name so
// a profile can select it.
type mockFactory struct {
	provider *mock.Provider
}

func (f *mockFactory) Name() string                     { return "mock" }
func (f *mockFactory) Available(*core.Settings) bool    { return true }
func (f *mockFactory) Create(*core.Settings, core.Logger) ai.Provider {
	return f.provider
}

var testMock = &mock.Provider{}

func init() {
	ai.MustRegister(&mockFactory{provider: testMock})
}

func TestAskWithCustomProviderProfile(t *testing.T) {
	settings := testSettings()
	settings.Profiles["test"] = core.Profile{
		Provider:    "mock",
		Model:       "mock-modell",
		Temperature: 0.5,
		MaxTokens:   256,
		MaxSources:  1,
	}

	s, err := New(settings)
	require.NoError(t, err)

	response, err := s.Ask(context.Background(), "testfråga", "test")
	require.NoError(t, err)

	require.NotNil(t, response.Result)
	assert.Equal(t, "mock", response.Result.Provider)
	assert.Equal(t, "Mockat svar", response.Result.Answer)
	assert.Equal(t, "testfråga", testMock.LastRequest.Query)
	assert.Equal(t, "mock-modell", testMock.LastRequest.Model)

	assert.Contains(t, s.AvailableProviders(), "mock")
}

func TestAnalyzeServiceErrors(t *testing.T) {
	s, err := New(testSettings())
	require.NoError(t, err)

	analysis := s.AnalyzeServiceErrors("scb")
	assert.Equal(t, "scb", analysis.Service)
	assert.Equal(t, "low", analysis.Severity)
}
