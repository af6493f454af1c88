package config

import (
	"errors"
	"fmt"
	"sort"
	"unicode"
)

// ErrNoDefault is returned when no default value exists for a config key.
var ErrNoDefault = errors.New("no default exists")

// ErrInvalidKey is returned when a config key contains invalid characters.
var ErrInvalidKey = errors.New("invalid config key")

// Entry is one documented configuration key with its default value.
type Entry struct {
	Key         string `json:"key"`
	Value       any    `json:"value"`
	Description string `json:"description"`
}

// DefaultEntries returns every known key with its default, flattened from
// DefaultConfig. The Manager seeds viper from these so that each key can be
// overridden individually by file or environment.
func DefaultEntries() []Entry {
	d := DefaultConfig()

	names := make([]string, 0, len(d.Providers))
	for name := range d.Providers {
		names = append(names, name)
	}
	sort.Strings(names)

	var entries []Entry
	for _, name := range names {
		p := d.Providers[name]
		prefix := "providers." + name + "."
		entries = append(entries,
			Entry{prefix + "type", p.Type, fmt.Sprintf("Provider type for %s", name)},
			Entry{prefix + "model", p.Model, fmt.Sprintf("Default model for %s", name)},
			Entry{prefix + "api_key", p.APIKey, fmt.Sprintf("%s API key (uses environment variable)", name)},
			Entry{prefix + "base_url", p.BaseURL, fmt.Sprintf("Endpoint override for %s (empty = official API)", name)},
			Entry{prefix + "rate_limit", p.RateLimit, fmt.Sprintf("Rate limit in requests per minute for %s (0 = unlimited)", name)},
			Entry{prefix + "timeout_seconds", p.TimeoutSeconds, fmt.Sprintf("HTTP timeout in seconds for %s requests", name)},
			Entry{prefix + "enabled", p.Enabled, fmt.Sprintf("Whether the %s provider is enabled", name)},
		)
	}

	return append(entries,
		// Extraction
		Entry{"extraction.provider", d.Extraction.Provider, "Provider tag used by extract and relapse runs"},
		Entry{"extraction.model", d.Extraction.Model, "Model override (empty = provider default)"},
		Entry{"extraction.temperature", d.Extraction.Temperature, "Sampling temperature for extraction calls"},
		Entry{"extraction.treatment_instructions", d.Extraction.TreatmentInstructions, "File replacing the embedded treatment-line instruction"},
		Entry{"extraction.relapse_instructions", d.Extraction.RelapseInstructions, "File replacing the embedded relapse instruction"},

		// Run
		Entry{"run.mode", d.Run.Mode, "Run mode: test processes sample_size notes, full processes all"},
		Entry{"run.overwrite", d.Run.Overwrite, "Re-extract patients that already have an output file"},
		Entry{"run.sample_size", d.Run.SampleSize, "Number of notes processed in test mode"},

		// Data
		Entry{"data.notes", d.Data.Notes, "Notes CSV for treatment-line extraction"},
		Entry{"data.relapse_notes", d.Data.RelapseNotes, "Notes CSV for relapse extraction"},
		Entry{"data.notes_delimiter", d.Data.NotesDelimiter, "Field delimiter of the notes CSVs"},
		Entry{"data.reference", d.Data.Reference, "Curated reference CSV"},
		Entry{"data.reference_delimiter", d.Data.ReferenceDelimiter, "Field delimiter of the reference CSV"},
		Entry{"data.eligible", d.Data.Eligible, "Eligible patient id list (one per line)"},
		Entry{"data.eligibility_window_days", d.Data.EligibilityWindowDays, "A note is fresh when it postdates the latest reference date by fewer days than this"},
		Entry{"data.id_column", d.Data.IDColumn, "Patient identifier column"},
		Entry{"data.text_column", d.Data.TextColumn, "Note text column"},
		Entry{"data.date_column", d.Data.DateColumn, "Note date column"},

		// Compare
		Entry{"compare.tolerance_days", d.Compare.ToleranceDays, "Largest gap in days at which two dates agree"},
		Entry{"compare.drugs", d.Compare.Drugs, "Canonical drug vocabulary applied to extracted drug lists"},
	)
}

// GetDefault returns the default value for a config key.
// Returns nil if no default exists for the key.
func GetDefault(key string) *Entry {
	for _, entry := range DefaultEntries() {
		if entry.Key == key {
			return &entry
		}
	}
	return nil
}

// RequireDefault is GetDefault returning ErrNoDefault for unknown keys.
func RequireDefault(key string) (*Entry, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	if def := GetDefault(key); def != nil {
		return def, nil
	}
	return nil, fmt.Errorf("%w for key %q", ErrNoDefault, key)
}

// ValidateKey checks if a config key contains only allowed characters.
// Valid keys contain: letters, digits, dots, underscores, and hyphens.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("%w: key cannot be empty", ErrInvalidKey)
	}
	for i, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '_' && r != '-' {
			return fmt.Errorf("%w: invalid character %q at position %d", ErrInvalidKey, r, i)
		}
	}
	if key[0] == '.' || key[len(key)-1] == '.' {
		return fmt.Errorf("%w: key cannot start or end with a dot", ErrInvalidKey)
	}
	return nil
}
