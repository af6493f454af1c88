package providers

import (
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Registry holds the configured structured clients keyed by provider tag.
type Registry struct {
	mu       sync.RWMutex
	clients  map[Provider]StructuredClient
	limiters map[Provider]*RateLimiter
	logger   *slog.Logger
}

// NewRegistry creates a new empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		clients:  make(map[Provider]StructuredClient),
		limiters: make(map[Provider]*RateLimiter),
		logger:   slog.Default(),
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// Register adds or replaces the client for a provider.
func (r *Registry) Register(p Provider, client StructuredClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[p] = client
	if r.logger != nil {
		r.logger.Info("registered provider", "provider", string(p))
	}
}

// Get returns the client for a provider tag. Unknown or unconfigured tags
// yield *UnknownProviderError.
func (r *Registry) Get(tag string) (StructuredClient, error) {
	p, err := ParseProvider(tag)
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[p]
	if !ok {
		return nil, &UnknownProviderError{Provider: tag}
	}
	return client, nil
}

// Has checks if a provider is registered.
func (r *Registry) Has(p Provider) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[p]
	return ok
}

// List returns the registered provider tags, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for p := range r.clients {
		names = append(names, string(p))
	}
	sort.Strings(names)
	return names
}

// LimiterStatus reports the rate limiter of a provider registered from
// configuration. ok is false when the provider is unlimited.
func (r *Registry) LimiterStatus(p Provider) (status RateLimiterStatus, ok bool) {
	r.mu.RLock()
	limiter := r.limiters[p]
	r.mu.RUnlock()
	if limiter == nil {
		return RateLimiterStatus{}, false
	}
	return limiter.Status(), true
}

// Close releases clients that hold SDK resources.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for _, client := range r.clients {
		if inner, ok := client.(*limitedClient); ok {
			client = inner.StructuredClient
		}
		if closer, ok := client.(interface{ Close() error }); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// RegistryConfig defines the providers to instantiate from config.
type RegistryConfig struct {
	Providers map[string]ProviderConfig
}

// ProviderConfig matches config.ProviderCfg with a resolved API key.
type ProviderConfig struct {
	Type      string // "openai", "gemini", "mistral", "groq"
	Model     string // Default model
	APIKey    string // Resolved API key
	BaseURL   string // Optional endpoint override
	RateLimit int    // Requests per minute (0 = unlimited)
	Timeout   time.Duration
	Enabled   bool
}

// NewRegistryFromConfig creates a registry with providers based on
// configuration. Only enabled providers with an API key are registered.
func NewRegistryFromConfig(cfg RegistryConfig, logger *slog.Logger) *Registry {
	r := NewRegistry()
	if logger != nil {
		r.SetLogger(logger)
	}

	names := make([]string, 0, len(cfg.Providers))
	for name := range cfg.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		provCfg := cfg.Providers[name]
		if !provCfg.Enabled || provCfg.APIKey == "" {
			continue
		}
		typ := provCfg.Type
		if typ == "" {
			typ = name
		}
		p, err := ParseProvider(typ)
		if err != nil {
			r.logger.Warn("skipping provider with unknown type", "name", name, "type", typ)
			continue
		}
		client := createClient(p, provCfg)
		limiter := NewRateLimiter(provCfg.RateLimit)
		r.Register(p, WithRateLimit(client, limiter))
		if limiter != nil {
			r.limiters[p] = limiter
		}
	}
	return r
}

// createClient creates a client based on provider type.
func createClient(p Provider, cfg ProviderConfig) StructuredClient {
	switch p {
	case OpenAI:
		return NewOpenAIClient(OpenAIConfig{
			APIKey:       cfg.APIKey,
			DefaultModel: cfg.Model,
			BaseURL:      cfg.BaseURL,
			Timeout:      cfg.Timeout,
		})
	case Groq:
		return NewGroqClient(GroqConfig{
			APIKey:       cfg.APIKey,
			DefaultModel: cfg.Model,
			BaseURL:      cfg.BaseURL,
			Timeout:      cfg.Timeout,
		})
	case Gemini:
		return NewGeminiClient(GeminiConfig{
			APIKey:       cfg.APIKey,
			DefaultModel: cfg.Model,
			Timeout:      cfg.Timeout,
		})
	default:
		return NewMistralClient(MistralConfig{
			APIKey:       cfg.APIKey,
			DefaultModel: cfg.Model,
			BaseURL:      cfg.BaseURL,
			Timeout:      cfg.Timeout,
		})
	}
}
