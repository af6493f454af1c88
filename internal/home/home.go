package home

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default name for the hemapex home directory.
	DefaultDirName = ".hemapex"

	// DataDirName is the subdirectory for input datasets.
	DataDirName = "data"

	// ResultsDirName is the subdirectory for extraction and comparison outputs.
	ResultsDirName = "results"

	// LogsDirName is the subdirectory for run logs and call logs.
	LogsDirName = "logs"

	// ConfigFileName is the default config file name.
	ConfigFileName = "config.yaml"
)

// Dir represents the hemapex home directory structure.
type Dir struct {
	path string
}

// New creates a new Dir with the given path.
// If path is empty, uses the default (~/.hemapex).
func New(path string) (*Dir, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get user home directory: %w", err)
		}
		path = filepath.Join(home, DefaultDirName)
	}

	return &Dir{path: path}, nil
}

// Path returns the root path of the home directory.
func (d *Dir) Path() string {
	return d.path
}

// DataPath returns the path to the data directory.
func (d *Dir) DataPath() string {
	return filepath.Join(d.path, DataDirName)
}

// ResultsPath returns the path to the results directory.
func (d *Dir) ResultsPath() string {
	return filepath.Join(d.path, ResultsDirName)
}

// LogsPath returns the path to the logs directory.
func (d *Dir) LogsPath() string {
	return filepath.Join(d.path, LogsDirName)
}

// ConfigPath returns the path to the default config file.
func (d *Dir) ConfigPath() string {
	return filepath.Join(d.path, ConfigFileName)
}

// Resolve returns p unchanged when absolute, else joined onto the home path.
func (d *Dir) Resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(d.path, p)
}

// EnsureExists creates the home directory and subdirectories if they don't exist.
func (d *Dir) EnsureExists() error {
	for _, sub := range []string{d.DataPath(), d.ResultsPath(), d.LogsPath()} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", sub, err)
		}
	}
	return nil
}

// Exists returns true if the home directory exists.
func (d *Dir) Exists() bool {
	_, err := os.Stat(d.path)
	return err == nil
}

// ConfigExists returns true if the config file exists in the home directory.
func (d *Dir) ConfigExists() bool {
	_, err := os.Stat(d.ConfigPath())
	return err == nil
}

// PatientDir returns the directory for per-patient outputs of a run kind.
// prefix is "" for treatment lines and "tmo_" for relapse runs.
func (d *Dir) PatientDir(prefix, provider string) string {
	return filepath.Join(d.ResultsPath(), fmt.Sprintf("%s%s_rghc", prefix, provider))
}

// AggregateDir returns the directory for whole-run aggregates of a run kind.
func (d *Dir) AggregateDir(prefix, provider string) string {
	return filepath.Join(d.ResultsPath(), fmt.Sprintf("%s%s_full_result", prefix, provider))
}

// LogPath returns the path of a run log.
func (d *Dir) LogPath(prefix, timestamp string) string {
	return filepath.Join(d.LogsPath(), fmt.Sprintf("%s_%s.log", prefix, timestamp))
}

// CallLogPath returns the path of a run's provider call log.
func (d *Dir) CallLogPath(prefix, timestamp string) string {
	return filepath.Join(d.LogsPath(), fmt.Sprintf("%s_calls_%s.jsonl", prefix, timestamp))
}

// DiffPath returns the path of a comparison's cell-level diff table.
func (d *Dir) DiffPath(timestamp string) string {
	return filepath.Join(d.ResultsPath(), fmt.Sprintf("compare_%s_diff.csv", timestamp))
}
