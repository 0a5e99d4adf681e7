package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfileConfigFallsBackToSmart(t *testing.T) {
	s := &Settings{Profiles: DefaultProfiles()}

	profile := s.ProfileConfig("finns_inte")
	assert.Equal(t, "groq", profile.Provider)
	assert.Equal(t, 5, profile.MaxSources)

	privat := s.ProfileConfig("privat")
	assert.Equal(t, "lokal", privat.Provider)
	assert.False(t, privat.ExternalCalls)
}

func TestSourcesForProfilePrivatSkipsAPIKeySources(t *testing.T) {
	s := &Settings{Profiles: DefaultProfiles(), Sources: DefaultSources()}

	selected := s.SourcesForProfile("privat")
	assert.Equal(t, []string{"omx", "scb", "smhi"}, selected)
}

func TestSourcesForProfileSmartIncludesNews(t *testing.T) {
	s := &Settings{Profiles: DefaultProfiles(), Sources: DefaultSources()}

	selected := s.SourcesForProfile("smart")
	assert.Contains(t, selected, "svenska_nyheter")
	assert.LessOrEqual(t, len(selected), 5)
}

func TestSourcesForProfileCapsAtMaxSources(t *testing.T) {
	s := &Settings{Profiles: DefaultProfiles(), Sources: DefaultSources()}

	selected := s.SourcesForProfile("snabb")
	assert.Len(t, selected, 2)
}

func TestSourcesForProfileSkipsUnreliableSources(t *testing.T) {
	s := &Settings{
		Profiles: DefaultProfiles(),
		Sources: map[string]SourceConfig{
			"bra":    {Reliability: "hög"},
			"dålig":  {Reliability: "låg"},
			"bäst":   {Reliability: "mycket hög"},
			"okänd":  {},
		},
	}

	selected := s.SourcesForProfile("smart")
	assert.ElementsMatch(t, []string{"bra", "bäst"}, selected)
}

func TestSourceCacheTTL(t *testing.T) {
	s := &Settings{Sources: DefaultSources()}

	assert.Equal(t, 3600*time.Second, s.SourceCacheTTL("scb"))
	assert.Equal(t, 300*time.Second, s.SourceCacheTTL("omx"))
	assert.Equal(t, time.Hour, s.SourceCacheTTL("finns_inte"))
}

func TestLoadSettingsFromEnvironment(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("GROQ_TIMEOUT_SECONDS", "20")
	t.Setenv("IRIS_ENVIRONMENT", "production")

	s := LoadSettings()
	assert.Equal(t, "gsk_test", s.GroqAPIKey)
	assert.Equal(t, 20*time.Second, s.GroqTimeout)
	assert.True(t, s.IsProduction())
	assert.Equal(t, "https://api.x.ai/v1", s.XAIBaseURL)
	assert.NotEmpty(t, s.Profiles)
	assert.NotEmpty(t, s.Sources)
}

func TestLoadProfilesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
profiles:
  turbo:
    beskrivning: "Extra snabb"
    ai_provider: groq
    ai_model: "moonshotai/kimi-k2-instruct-0905"
    temperature: 0.4
    max_tokens: 1024
    streaming: true
    max_källor: 1
    externa_anrop: true
`), 0o644))

	s := &Settings{Profiles: DefaultProfiles()}
	require.NoError(t, s.LoadProfilesFile(path))

	turbo, ok := s.Profiles["turbo"]
	require.True(t, ok)
	assert.Equal(t, "groq", turbo.Provider)
	assert.Equal(t, 0.4, turbo.Temperature)
	assert.Equal(t, 1, turbo.MaxSources)
	assert.True(t, turbo.ExternalCalls)
}

func TestLoadProfilesFileMissingKeepsDefaults(t *testing.T) {
	s := &Settings{Profiles: DefaultProfiles()}
	require.NoError(t, s.LoadProfilesFile("/finns/inte/profiles.yaml"))
	assert.Contains(t, s.Profiles, "smart")
}

func TestLoadSourcesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
svenska_källor:
  riksbanken:
    namn: "Riksbanken"
    url: "https://api.riksbank.se"
    typ: "finansiell"
    cache: 600
    tillförlitlighet: "mycket hög"
    kräver_api_nyckel: false
`), 0o644))

	s := &Settings{Sources: DefaultSources()}
	require.NoError(t, s.LoadSourcesFile(path))

	rb, ok := s.Sources["riksbanken"]
	require.True(t, ok)
	assert.Equal(t, "Riksbanken", rb.Name)
	assert.Equal(t, 600, rb.CacheTTL)
	assert.False(t, rb.RequiresAPIKey)
}

func TestLoadProfilesFileInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles: [trasig"), 0o644))

	s := &Settings{Profiles: DefaultProfiles()}
	assert.Error(t, s.LoadProfilesFile(path))
}
