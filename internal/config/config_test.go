package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/hemapex/hemapex/internal/pipeline"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if len(cfg.Providers) != 4 {
		t.Errorf("expected 4 default providers, got %d", len(cfg.Providers))
	}
	if cfg.Providers["openai"].APIKey != "${OPENAI_API_KEY}" {
		t.Error("expected openai API key placeholder")
	}
	if cfg.Compare.ToleranceDays != 30 {
		t.Errorf("expected 30 day tolerance, got %d", cfg.Compare.ToleranceDays)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		t.Setenv("TEST_API_KEY", "secret123")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestNewManager(t *testing.T) {
	t.Run("defaults without a file", func(t *testing.T) {
		mgr, err := NewManager("", t.TempDir())
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if mgr.ConfigFile() != "" {
			t.Errorf("expected no config file, got %s", mgr.ConfigFile())
		}
		if got := mgr.Get(); !reflect.DeepEqual(got, DefaultConfig()) {
			t.Errorf("loaded defaults differ from DefaultConfig():\n got %+v\nwant %+v", got, DefaultConfig())
		}
	})

	t.Run("file overrides single keys", func(t *testing.T) {
		configFile := filepath.Join(t.TempDir(), "config.yaml")
		configContent := `
providers:
  openai:
    model: gpt-4.1-mini
  local:
    type: openai
    base_url: http://localhost:8080/v1
    api_key: literal
    enabled: true
run:
  mode: test
  sample_size: 5
`
		if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		mgr, err := NewManager(configFile, "")
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		openai := cfg.Providers["openai"]
		if openai.Model != "gpt-4.1-mini" {
			t.Errorf("expected model override, got %s", openai.Model)
		}
		if openai.APIKey != "${OPENAI_API_KEY}" || !openai.Enabled {
			t.Errorf("expected untouched defaults, got %+v", openai)
		}
		if local, ok := cfg.GetProvider("local"); !ok || local.BaseURL != "http://localhost:8080/v1" {
			t.Errorf("expected local provider, got %+v", local)
		}

		run, err := cfg.RunConfig()
		if err != nil {
			t.Fatalf("RunConfig() error = %v", err)
		}
		if run != (pipeline.RunConfig{Mode: pipeline.ModeTest, SampleSize: 5}) {
			t.Errorf("RunConfig() = %+v", run)
		}
	})

	t.Run("home config file", func(t *testing.T) {
		home := t.TempDir()
		if err := os.WriteFile(filepath.Join(home, "config.yaml"), []byte("extraction:\n  provider: gemini\n"), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		mgr, err := NewManager("", home)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		if mgr.Get().Extraction.Provider != "gemini" {
			t.Errorf("expected gemini, got %s", mgr.Get().Extraction.Provider)
		}
	})

	t.Run("environment overrides", func(t *testing.T) {
		t.Setenv("HEMAPEX_RUN_OVERWRITE", "true")
		t.Setenv("HEMAPEX_COMPARE_TOLERANCE_DAYS", "15")

		mgr, err := NewManager("", t.TempDir())
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}
		cfg := mgr.Get()
		if !cfg.Run.Overwrite || cfg.Compare.ToleranceDays != 15 {
			t.Errorf("env overrides not applied: run=%+v compare.tolerance_days=%d", cfg.Run, cfg.Compare.ToleranceDays)
		}
	})

	t.Run("missing explicit file", func(t *testing.T) {
		if _, err := NewManager(filepath.Join(t.TempDir(), "nope.yaml"), ""); err == nil {
			t.Error("expected error for missing explicit config file")
		}
	})
}

func TestManager_Lookup(t *testing.T) {
	mgr, err := NewManager("", t.TempDir())
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	v, err := mgr.Lookup("providers.groq.rate_limit")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if v != 30 {
		t.Errorf("Lookup() = %v, want 30", v)
	}

	if _, err := mgr.Lookup("no.such.key"); err == nil {
		t.Error("expected error for unknown key")
	}
	if _, err := mgr.Lookup("bad key"); err == nil {
		t.Error("expected error for invalid key")
	}
}

func TestToProviderRegistryConfig(t *testing.T) {
	t.Setenv("TEST_MISTRAL_KEY", "m-key")

	cfg := &Config{Providers: map[string]ProviderCfg{
		"mistral": {Type: "mistral", APIKey: "${TEST_MISTRAL_KEY}", TimeoutSeconds: 30, RateLimit: 10, Enabled: true},
		"gemini":  {Type: "gemini", APIKey: "g-key", Enabled: false},
	}}

	providersCfg := cfg.ToProviderRegistryConfig().Providers
	if _, ok := providersCfg["gemini"]; ok {
		t.Error("disabled provider should not be converted")
	}
	got := providersCfg["mistral"]
	if got.APIKey != "m-key" {
		t.Errorf("expected resolved key, got %q", got.APIKey)
	}
	if got.Timeout != 30*time.Second || got.RateLimit != 10 || !got.Enabled {
		t.Errorf("unexpected provider config %+v", got)
	}
}

func TestRunConfigInvalidMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Run.Mode = "sometimes"
	if _, err := cfg.RunConfig(); err == nil {
		t.Error("expected error for invalid mode")
	}
}

func TestDelimiter(t *testing.T) {
	tests := map[string]rune{"": ',', ",": ',', ";": ';', `\t`: '\t', "tab": '\t'}
	for in, want := range tests {
		if got := Delimiter(in); got != want {
			t.Errorf("Delimiter(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := WriteDefault(path); err != nil {
		t.Fatalf("WriteDefault() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read written config: %v", err)
	}
	if !strings.HasPrefix(string(data), "# hemapex configuration") {
		t.Error("expected header comment")
	}

	mgr, err := NewManager(path, "")
	if err != nil {
		t.Fatalf("failed to load written config: %v", err)
	}
	if !reflect.DeepEqual(mgr.Get(), DefaultConfig()) {
		t.Errorf("written defaults do not load back to DefaultConfig()")
	}
}
