package home

import (
	"os"
	"path/filepath"
	"testing"
)

func TestNew(t *testing.T) {
	t.Run("with explicit path", func(t *testing.T) {
		dir, err := New("/tmp/test-hemapex")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if dir.Path() != "/tmp/test-hemapex" {
			t.Errorf("expected path /tmp/test-hemapex, got %s", dir.Path())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		dir, err := New("")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		home, _ := os.UserHomeDir()
		expected := filepath.Join(home, DefaultDirName)
		if dir.Path() != expected {
			t.Errorf("expected path %s, got %s", expected, dir.Path())
		}
	})
}

func TestDir_Paths(t *testing.T) {
	dir, _ := New("/tmp/test-hemapex")

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"DataPath", dir.DataPath(), "/tmp/test-hemapex/data"},
		{"ConfigPath", dir.ConfigPath(), "/tmp/test-hemapex/config.yaml"},
		{"PatientDir", dir.PatientDir("", "openai"), "/tmp/test-hemapex/results/openai_rghc"},
		{"relapse PatientDir", dir.PatientDir("tmo_", "openai"), "/tmp/test-hemapex/results/tmo_openai_rghc"},
		{"AggregateDir", dir.AggregateDir("", "gemini"), "/tmp/test-hemapex/results/gemini_full_result"},
		{"LogPath", dir.LogPath("log", "2025-01-02_03-04-05"), "/tmp/test-hemapex/logs/log_2025-01-02_03-04-05.log"},
		{"CallLogPath", dir.CallLogPath("tmo", "ts"), "/tmp/test-hemapex/logs/tmo_calls_ts.jsonl"},
		{"DiffPath", dir.DiffPath("ts"), "/tmp/test-hemapex/results/compare_ts_diff.csv"},
		{"Resolve relative", dir.Resolve("data/notes.csv"), "/tmp/test-hemapex/data/notes.csv"},
		{"Resolve absolute", dir.Resolve("/srv/notes.csv"), "/srv/notes.csv"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, tt.got)
			}
		})
	}
}

func TestDir_EnsureExists(t *testing.T) {
	tmpDir := t.TempDir()
	hemapexDir := filepath.Join(tmpDir, "hemapex-test")

	dir, err := New(hemapexDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if dir.Exists() {
		t.Error("directory should not exist before EnsureExists")
	}

	if err := dir.EnsureExists(); err != nil {
		t.Fatalf("EnsureExists failed: %v", err)
	}

	if !dir.Exists() {
		t.Error("directory should exist after EnsureExists")
	}

	for _, sub := range []string{dir.DataPath(), dir.ResultsPath(), dir.LogsPath()} {
		if _, err := os.Stat(sub); os.IsNotExist(err) {
			t.Errorf("%s should exist after EnsureExists", sub)
		}
	}
}

func TestDir_ConfigExists(t *testing.T) {
	tmpDir := t.TempDir()
	dir, _ := New(tmpDir)

	if dir.ConfigExists() {
		t.Error("config should not exist initially")
	}

	configPath := dir.ConfigPath()
	if err := os.WriteFile(configPath, []byte("test: true\n"), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	if !dir.ConfigExists() {
		t.Error("config should exist after creation")
	}
}
