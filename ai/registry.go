package ai

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/iris-se/iris/core"
)

// ProviderFactory creates providers from settings. Factories register
// themselves from init() in the provider packages, so importing a
// provider package (usually with a blank import) makes it available.
type ProviderFactory interface {
	// Name returns the provider identifier
	Name() string

	// Available reports whether the provider can run with these settings
	Available(settings *core.Settings) bool

	// Create builds a provider instance. Called only when Available.
	Create(settings *core.Settings, logger core.Logger) Provider
}

type providerRegistry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

var registry = &providerRegistry{
	factories: make(map[string]ProviderFactory),
}

// Register registers a provider factory. Typically called from init()
// in provider packages.
func Register(factory ProviderFactory) error {
	if factory == nil {
		return fmt.Errorf("factory cannot be nil")
	}
	name := strings.ToLower(factory.Name())
	if name == "" {
		return fmt.Errorf("factory.Name() cannot be empty")
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.factories[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}
	registry.factories[name] = factory
	return nil
}

// MustRegister registers a provider factory and panics on error. Use in
// init() functions where errors cannot be handled.
func MustRegister(factory ProviderFactory) {
	if err := Register(factory); err != nil {
		panic(fmt.Sprintf("failed to register provider: %v", err))
	}
}

// CreateProvider builds the named provider when it is registered and
// available with the given settings. Names are case-insensitive.
func CreateProvider(name string, settings *core.Settings, logger core.Logger) (Provider, bool) {
	registry.mu.RLock()
	factory, exists := registry.factories[strings.ToLower(name)]
	registry.mu.RUnlock()

	if !exists || !factory.Available(settings) {
		return nil, false
	}
	return factory.Create(settings, logger), true
}

// AvailableProviders returns the names of all providers usable with the
// given settings, in fallback order. The local provider is always last
// and always present once its package is imported.
func AvailableProviders(settings *core.Settings) []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	available := make([]string, 0, len(registry.factories))
	for _, name := range fallbackOrder {
		if factory, ok := registry.factories[name]; ok && factory.Available(settings) {
			available = append(available, name)
		}
	}
	// Registered providers outside the canonical chain come last
	var extras []string
	for name, factory := range registry.factories {
		if !inFallbackOrder(name) && factory.Available(settings) {
			extras = append(extras, name)
		}
	}
	sort.Strings(extras)
	return append(available, extras...)
}

// fallbackOrder is the fixed provider chain: fastest external provider
// first, the local rule-based provider as the final safety net.
var fallbackOrder = []string{"groq", "xai", "lokal"}

func inFallbackOrder(name string) bool {
	for _, n := range fallbackOrder {
		if n == name {
			return true
		}
	}
	return false
}
