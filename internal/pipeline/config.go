// Package pipeline drives batch extraction over a notes dataset.
//
// Patients are processed one at a time in source order. Each validated
// result is written to its own file with write-then-rename, so an existing
// file is a trustworthy checkpoint and an interrupted run can resume.
package pipeline

import (
	"fmt"
	"strings"
)

// Mode selects how many notes a run processes.
type Mode string

const (
	// ModeTest processes at most RunConfig.SampleSize notes.
	ModeTest Mode = "test"
	// ModeFull processes every selected note.
	ModeFull Mode = "full"
)

// DefaultSampleSize is the number of notes a test run processes.
const DefaultSampleSize = 2

// ParseMode parses "test" or "full".
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeTest:
		return ModeTest, nil
	case ModeFull, "":
		return ModeFull, nil
	}
	return "", fmt.Errorf("unknown run mode %q (want test or full)", s)
}

// RunConfig controls a batch run. It is passed by value and never mutated.
type RunConfig struct {
	Mode       Mode
	Overwrite  bool
	SampleSize int
}

// DefaultRunConfig returns a full, resumable run.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		Mode:       ModeFull,
		SampleSize: DefaultSampleSize,
	}
}

// Validate checks the configuration.
func (c RunConfig) Validate() error {
	switch c.Mode {
	case ModeTest:
		if c.SampleSize <= 0 {
			return fmt.Errorf("sample size must be positive in test mode, got %d", c.SampleSize)
		}
	case ModeFull:
	default:
		return fmt.Errorf("unknown run mode %q", c.Mode)
	}
	return nil
}
