package providers

import (
	"os"
)

// TestConfig holds provider API keys loaded from environment variables.
// This allows tests to use the same configuration pattern as production.
type TestConfig struct {
	OpenAIAPIKey  string
	GeminiAPIKey  string
	MistralAPIKey string
	GroqAPIKey    string
}

// LoadTestConfig loads provider API keys from environment variables.
// Returns a TestConfig with whatever keys are available.
func LoadTestConfig() TestConfig {
	return TestConfig{
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:  os.Getenv("GEMINI_API_KEY"),
		MistralAPIKey: os.Getenv("MISTRAL_API_KEY"),
		GroqAPIKey:    os.Getenv("GROQ_API_KEY"),
	}
}

// Key returns the API key for a provider.
func (c TestConfig) Key(p Provider) string {
	switch p {
	case OpenAI:
		return c.OpenAIAPIKey
	case Gemini:
		return c.GeminiAPIKey
	case Mistral:
		return c.MistralAPIKey
	case Groq:
		return c.GroqAPIKey
	}
	return ""
}

// Has returns true if the provider's API key is configured.
func (c TestConfig) Has(p Provider) bool {
	return c.Key(p) != ""
}

// HasAny returns true if any provider is configured.
func (c TestConfig) HasAny() bool {
	for _, p := range AllProviders {
		if c.Has(p) {
			return true
		}
	}
	return false
}

// ToRegistryConfig converts test config to a RegistryConfig for the provider registry.
// Only includes providers that have API keys configured.
func (c TestConfig) ToRegistryConfig() RegistryConfig {
	cfg := RegistryConfig{Providers: make(map[string]ProviderConfig)}
	for _, p := range AllProviders {
		if !c.Has(p) {
			continue
		}
		cfg.Providers[string(p)] = ProviderConfig{
			Type:    string(p),
			Model:   DefaultModels[p],
			APIKey:  c.Key(p),
			Enabled: true,
		}
	}
	return cfg
}
