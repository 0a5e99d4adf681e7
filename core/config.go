package core

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is a named operating mode controlling which AI provider, how many
// data sources, and what external-call policy applies to a query.
type Profile struct {
	Description   string  `yaml:"beskrivning"`
	Provider      string  `yaml:"ai_provider"`
	Model         string  `yaml:"ai_model"`
	Temperature   float64 `yaml:"temperature"`
	MaxTokens     int     `yaml:"max_tokens"`
	Streaming     bool    `yaml:"streaming"`
	MaxSources    int     `yaml:"max_källor"`
	CacheTTL      int     `yaml:"cache_ttl"`
	ExternalCalls bool    `yaml:"externa_anrop"`
}

// SourceConfig describes a Swedish data source.
type SourceConfig struct {
	Name           string `yaml:"namn"`
	URL            string `yaml:"url"`
	Type           string `yaml:"typ"`
	CacheTTL       int    `yaml:"cache"`
	Reliability    string `yaml:"tillförlitlighet"`
	RequiresAPIKey bool   `yaml:"kräver_api_nyckel"`
}

// Settings holds process-wide configuration: provider credentials, profile
// definitions and the Swedish data source catalogue.
type Settings struct {
	// Groq Cloud (primary for the snabb profile)
	GroqAPIKey  string
	GroqTimeout time.Duration

	// xAI (smart profile, fallback)
	XAIAPIKey  string
	XAIBaseURL string
	XAITimeout time.Duration

	// NewsData.io key for svenska_nyheter ("demo" selects canned headlines)
	NewsAPIKey string

	// Optional Redis cache backing core.Memory implementations
	RedisURL string

	Environment string
	LogLevel    string

	Profiles map[string]Profile
	Sources  map[string]SourceConfig
}

// LoadSettings builds Settings from environment variables, falling back to
// the built-in profile and source catalogues.
func LoadSettings() *Settings {
	s := &Settings{
		GroqAPIKey:  os.Getenv("GROQ_API_KEY"),
		GroqTimeout: envDuration("GROQ_TIMEOUT_SECONDS", 10*time.Second),
		XAIAPIKey:   os.Getenv("XAI_API_KEY"),
		XAIBaseURL:  envDefault("XAI_BASE_URL", "https://api.x.ai/v1"),
		XAITimeout:  envDuration("XAI_TIMEOUT_SECONDS", 30*time.Second),
		NewsAPIKey:  os.Getenv("NEWS_API_KEY"),
		RedisURL:    os.Getenv("REDIS_URL"),
		Environment: envDefault("IRIS_ENVIRONMENT", "development"),
		LogLevel:    envDefault("LOG_LEVEL", "info"),
		Profiles:    DefaultProfiles(),
		Sources:     DefaultSources(),
	}
	return s
}

// LoadProfilesFile replaces the profile catalogue with the contents of a
// profiles.yaml file. The built-in defaults remain when the file is missing.
func (s *Settings) LoadProfilesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading profiles file: %w", err)
	}

	var parsed struct {
		Profiles map[string]Profile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parsing profiles file: %w", err)
	}
	if len(parsed.Profiles) > 0 {
		s.Profiles = parsed.Profiles
	}
	return nil
}

// LoadSourcesFile replaces the source catalogue from a sources.yaml file.
func (s *Settings) LoadSourcesFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading sources file: %w", err)
	}

	var parsed struct {
		Sources map[string]SourceConfig `yaml:"svenska_källor"`
	}
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("parsing sources file: %w", err)
	}
	if len(parsed.Sources) > 0 {
		s.Sources = parsed.Sources
	}
	return nil
}

// ProfileConfig returns the configuration for a named profile, falling back
// to the smart profile for unknown names.
func (s *Settings) ProfileConfig(name string) Profile {
	if p, ok := s.Profiles[name]; ok {
		return p
	}
	return s.Profiles["smart"]
}

// SourcesForProfile selects data sources appropriate for a profile: the
// privat profile skips sources requiring external API keys, and the result
// is capped at the profile's max source count.
func (s *Settings) SourcesForProfile(name string) []string {
	profile := s.ProfileConfig(name)
	maxSources := profile.MaxSources
	if maxSources <= 0 {
		maxSources = 3
	}

	names := make([]string, 0, len(s.Sources))
	for sourceName := range s.Sources {
		names = append(names, sourceName)
	}
	sort.Strings(names)

	selected := make([]string, 0, maxSources)
	for _, sourceName := range names {
		cfg := s.Sources[sourceName]
		if !profile.ExternalCalls && cfg.RequiresAPIKey {
			continue
		}
		if cfg.Reliability != "mycket hög" && cfg.Reliability != "hög" {
			continue
		}
		selected = append(selected, sourceName)
		if len(selected) >= maxSources {
			break
		}
	}
	return selected
}

// SourceCacheTTL returns the cache TTL for a data source.
func (s *Settings) SourceCacheTTL(name string) time.Duration {
	if cfg, ok := s.Sources[name]; ok && cfg.CacheTTL > 0 {
		return time.Duration(cfg.CacheTTL) * time.Second
	}
	return time.Hour
}

// IsProduction reports whether the process runs in production mode.
func (s *Settings) IsProduction() bool {
	return s.Environment == "production"
}

// DefaultProfiles returns the built-in AI profiles used when no
// profiles.yaml is present.
func DefaultProfiles() map[string]Profile {
	return map[string]Profile{
		"snabb": {
			Description:   "Snabba svar under 2 sekunder",
			Provider:      "groq",
			Model:         "moonshotai/kimi-k2-instruct-0905",
			Temperature:   0.6,
			MaxTokens:     2048,
			Streaming:     true,
			MaxSources:    2,
			CacheTTL:      300,
			ExternalCalls: true,
		},
		"smart": {
			Description:   "Balanserad analys med flera källor",
			Provider:      "groq",
			Model:         "moonshotai/kimi-k2-instruct-0905",
			Temperature:   0.7,
			MaxTokens:     4096,
			Streaming:     false,
			MaxSources:    5,
			CacheTTL:      600,
			ExternalCalls: true,
		},
		"privat": {
			Description:   "Helt lokal bearbetning utan externa API:er",
			Provider:      "lokal",
			Model:         "lokal",
			Temperature:   0,
			MaxTokens:     1024,
			Streaming:     false,
			MaxSources:    3,
			CacheTTL:      1800,
			ExternalCalls: false,
		},
	}
}

// DefaultSources returns the built-in Swedish data source catalogue.
func DefaultSources() map[string]SourceConfig {
	return map[string]SourceConfig{
		"scb": {
			Name:        "Statistiska centralbyrån",
			URL:         "https://api.scb.se/OV0104/v1/doris/sv/ssd/",
			Type:        "statistik",
			CacheTTL:    3600,
			Reliability: "mycket hög",
		},
		"omx": {
			Name:        "OMX Stockholm",
			URL:         "https://query1.finance.yahoo.com/v8/finance/chart/^OMX",
			Type:        "finansiell",
			CacheTTL:    300,
			Reliability: "hög",
		},
		"svenska_nyheter": {
			Name:           "Svenska Nyheter",
			URL:            "https://newsdata.io/api/1/news",
			Type:           "nyheter",
			CacheTTL:       900,
			Reliability:    "hög",
			RequiresAPIKey: true,
		},
		"smhi": {
			Name:        "SMHI Väderdata",
			URL:         "https://opendata-download-metfcst.smhi.se/api",
			Type:        "väder",
			CacheTTL:    1800,
			Reliability: "mycket hög",
		},
	}
}

func envDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
