package prompts

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"
)

// Resolver resolves prompts with file overrides.
// Resolution order: override file > embedded default
type Resolver struct {
	embedded  map[string]EmbeddedPrompt
	overrides map[string]string // key -> file path
	mu        sync.RWMutex
	logger    *slog.Logger
}

// NewResolver creates a new prompt resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		embedded:  make(map[string]EmbeddedPrompt),
		overrides: make(map[string]string),
		logger:    logger,
	}
}

// Register registers an embedded prompt.
func (r *Resolver) Register(prompt EmbeddedPrompt) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prompt.Hash == "" {
		prompt.Hash = HashText(prompt.Text)
	}

	r.embedded[prompt.Key] = prompt
	r.logger.Debug("registered embedded prompt", "key", prompt.Key)
}

// SetOverride makes key resolve to the contents of path. An empty path
// removes the override.
func (r *Resolver) SetOverride(key, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if strings.TrimSpace(path) == "" {
		delete(r.overrides, key)
		return
	}
	r.overrides[key] = path
}

// Resolve returns the override text for key if one is configured,
// otherwise the embedded default. A configured override that cannot be read
// is an error rather than a silent fallback.
func (r *Resolver) Resolve(key string) (*ResolvedPrompt, error) {
	r.mu.RLock()
	path, hasOverride := r.overrides[key]
	embedded, hasEmbedded := r.embedded[key]
	r.mu.RUnlock()

	if hasOverride {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read prompt override %s for %s: %w", path, key, err)
		}
		text := string(data)
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("prompt override %s for %s is empty", path, key)
		}
		return &ResolvedPrompt{
			Key:        key,
			Text:       text,
			IsOverride: true,
			Source:     path,
			Hash:       HashText(text),
		}, nil
	}

	if !hasEmbedded {
		return nil, fmt.Errorf("prompt not found: %s", key)
	}

	return &ResolvedPrompt{
		Key:    key,
		Text:   embedded.Text,
		Source: "embedded",
		Hash:   embedded.Hash,
	}, nil
}

// GetEmbedded returns the embedded default for a key.
func (r *Resolver) GetEmbedded(key string) (*EmbeddedPrompt, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.embedded[key]
	return &p, ok
}

// AllEmbedded returns all registered embedded prompts sorted by key.
func (r *Resolver) AllEmbedded() []EmbeddedPrompt {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]EmbeddedPrompt, 0, len(r.embedded))
	for _, p := range r.embedded {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}
