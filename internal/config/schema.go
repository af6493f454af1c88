package config

import (
	"time"

	"github.com/hemapex/hemapex/internal/pipeline"
	"github.com/hemapex/hemapex/internal/providers"
	"github.com/hemapex/hemapex/internal/reconcile"
)

// Config holds hemapex configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Providers  map[string]ProviderCfg `mapstructure:"providers" yaml:"providers"`
	Extraction ExtractionCfg          `mapstructure:"extraction" yaml:"extraction"`
	Run        RunCfg                 `mapstructure:"run" yaml:"run"`
	Data       DataCfg                `mapstructure:"data" yaml:"data"`
	Compare    CompareCfg             `mapstructure:"compare" yaml:"compare"`
}

// ProviderCfg configures an LLM provider.
type ProviderCfg struct {
	Type           string `mapstructure:"type" yaml:"type"`                       // "openai", "gemini", "mistral", "groq"
	Model          string `mapstructure:"model" yaml:"model"`                     // Default model
	APIKey         string `mapstructure:"api_key" yaml:"api_key"`                 // API key (supports ${ENV_VAR} syntax)
	BaseURL        string `mapstructure:"base_url" yaml:"base_url,omitempty"`     // Endpoint override
	RateLimit      int    `mapstructure:"rate_limit" yaml:"rate_limit"`           // Requests per minute, 0 = unlimited
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"` // 0 = client default
	Enabled        bool   `mapstructure:"enabled" yaml:"enabled"`
}

// ExtractionCfg selects the provider and instructions for extraction runs.
type ExtractionCfg struct {
	Provider    string  `mapstructure:"provider" yaml:"provider"`
	Model       string  `mapstructure:"model" yaml:"model"` // empty = provider default
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	// Instruction overrides: paths to text files replacing the embedded
	// system prompts. Empty = embedded.
	TreatmentInstructions string `mapstructure:"treatment_instructions" yaml:"treatment_instructions"`
	RelapseInstructions   string `mapstructure:"relapse_instructions" yaml:"relapse_instructions"`
}

// RunCfg mirrors pipeline.RunConfig.
type RunCfg struct {
	Mode       string `mapstructure:"mode" yaml:"mode"` // "test" or "full"
	Overwrite  bool   `mapstructure:"overwrite" yaml:"overwrite"`
	SampleSize int    `mapstructure:"sample_size" yaml:"sample_size"`
}

// DataCfg locates input datasets. Relative paths resolve against the home
// directory.
type DataCfg struct {
	Notes                 string `mapstructure:"notes" yaml:"notes"`
	RelapseNotes          string `mapstructure:"relapse_notes" yaml:"relapse_notes"`
	NotesDelimiter        string `mapstructure:"notes_delimiter" yaml:"notes_delimiter"`
	Reference             string `mapstructure:"reference" yaml:"reference"`
	ReferenceDelimiter    string `mapstructure:"reference_delimiter" yaml:"reference_delimiter"`
	Eligible              string `mapstructure:"eligible" yaml:"eligible"`
	EligibilityWindowDays int    `mapstructure:"eligibility_window_days" yaml:"eligibility_window_days"`
	IDColumn              string `mapstructure:"id_column" yaml:"id_column"`
	TextColumn            string `mapstructure:"text_column" yaml:"text_column"`
	DateColumn            string `mapstructure:"date_column" yaml:"date_column"`
}

// CompareCfg configures reconciliation.
type CompareCfg struct {
	ToleranceDays int      `mapstructure:"tolerance_days" yaml:"tolerance_days"`
	Drugs         []string `mapstructure:"drugs" yaml:"drugs"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	run := pipeline.DefaultRunConfig()
	cols := pipeline.DefaultNoteColumns()
	return &Config{
		Providers: map[string]ProviderCfg{
			"openai": {
				Type:           "openai",
				Model:          providers.DefaultModels[providers.OpenAI],
				APIKey:         "${OPENAI_API_KEY}",
				TimeoutSeconds: 120,
				Enabled:        true,
			},
			"gemini": {
				Type:           "gemini",
				Model:          providers.DefaultModels[providers.Gemini],
				APIKey:         "${GEMINI_API_KEY}",
				TimeoutSeconds: 120,
				Enabled:        true,
			},
			"mistral": {
				Type:           "mistral",
				Model:          providers.DefaultModels[providers.Mistral],
				APIKey:         "${MISTRAL_API_KEY}",
				TimeoutSeconds: 120,
				Enabled:        true,
			},
			"groq": {
				Type:           "groq",
				Model:          providers.DefaultModels[providers.Groq],
				APIKey:         "${GROQ_API_KEY}",
				RateLimit:      30,
				TimeoutSeconds: 120,
				Enabled:        true,
			},
		},
		Extraction: ExtractionCfg{
			Provider: "openai",
		},
		Run: RunCfg{
			Mode:       string(run.Mode),
			Overwrite:  run.Overwrite,
			SampleSize: run.SampleSize,
		},
		Data: DataCfg{
			Notes:                 "data/latest_notes.csv",
			RelapseNotes:          "data/tmo_notes.csv",
			NotesDelimiter:        ",",
			Reference:             "data/reference.csv",
			ReferenceDelimiter:    ";",
			Eligible:              "data/eligible_rghc.txt",
			EligibilityWindowDays: 30,
			IDColumn:              cols.ID,
			TextColumn:            cols.Text,
			DateColumn:            cols.Date,
		},
		Compare: CompareCfg{
			ToleranceDays: reconcile.DefaultToleranceDays,
			Drugs:         append([]string(nil), reconcile.DefaultDrugs...),
		},
	}
}

// GetProvider returns a provider config by name.
func (c *Config) GetProvider(name string) (ProviderCfg, bool) {
	cfg, ok := c.Providers[name]
	return cfg, ok
}

// EnabledProviders returns all enabled providers.
func (c *Config) EnabledProviders() map[string]ProviderCfg {
	result := make(map[string]ProviderCfg)
	for name, cfg := range c.Providers {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// ToProviderRegistryConfig converts the enabled providers to a format
// suitable for providers.Registry. It resolves all ${ENV_VAR} references in
// API keys.
func (c *Config) ToProviderRegistryConfig() providers.RegistryConfig {
	enabled := c.EnabledProviders()
	cfg := providers.RegistryConfig{
		Providers: make(map[string]providers.ProviderConfig, len(enabled)),
	}
	for name, p := range enabled {
		cfg.Providers[name] = providers.ProviderConfig{
			Type:      p.Type,
			Model:     p.Model,
			APIKey:    ResolveEnvVars(p.APIKey),
			BaseURL:   p.BaseURL,
			RateLimit: p.RateLimit,
			Timeout:   time.Duration(p.TimeoutSeconds) * time.Second,
			Enabled:   p.Enabled,
		}
	}
	return cfg
}

// RunConfig converts the run section into a validated pipeline.RunConfig.
func (c *Config) RunConfig() (pipeline.RunConfig, error) {
	mode, err := pipeline.ParseMode(c.Run.Mode)
	if err != nil {
		return pipeline.RunConfig{}, err
	}
	run := pipeline.RunConfig{
		Mode:       mode,
		Overwrite:  c.Run.Overwrite,
		SampleSize: c.Run.SampleSize,
	}
	return run, run.Validate()
}

// NoteColumns returns the configured notes layout.
func (c *Config) NoteColumns() pipeline.NoteColumns {
	return pipeline.NoteColumns{
		ID:   c.Data.IDColumn,
		Text: c.Data.TextColumn,
		Date: c.Data.DateColumn,
	}
}

// Delimiter converts a configured delimiter to a CSV rune. Empty means ','
// and "\t" or "tab" mean a tab.
func Delimiter(s string) rune {
	switch s {
	case "":
		return ','
	case `\t`, "tab":
		return '\t'
	}
	return []rune(s)[0]
}
