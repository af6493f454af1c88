package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/hemapex/hemapex/internal/extract"
	"github.com/hemapex/hemapex/internal/llmcall"
	"github.com/hemapex/hemapex/internal/schema"
)

// RawSuffix is appended to the patient id for unvalidated provider output.
const RawSuffix = ".raw.txt"

// TimestampLayout formats run timestamps in aggregate file names.
const TimestampLayout = "2006-01-02_15-04-05"

// Config configures a Runner.
type Config[T any] struct {
	Extractor *extract.Extractor
	Target    schema.Target[T]
	Sink      Sink[T]

	// Request carries provider, model and instruction. Text is set per note.
	Request extract.Request

	// PatientDir receives one file per patient; AggregateDir receives the
	// whole-run aggregate.
	PatientDir   string
	AggregateDir string

	Run RunConfig

	// Recorder, when set, receives one entry per provider call.
	Recorder    *llmcall.Recorder
	PromptKey   string
	PromptHash  string
	Temperature float64
	RunID       string

	Logger *slog.Logger
	Now    func() time.Time
}

// Stats summarizes a run.
type Stats struct {
	Selected      int           `json:"selected"`
	Skipped       int           `json:"skipped"`
	Validated     int           `json:"validated"`
	Raw           int           `json:"raw"`
	Empty         int           `json:"empty"`
	Failed        int           `json:"failed"`
	Warnings      int           `json:"warnings"`
	AggregatePath string        `json:"aggregate_path,omitempty"`
	Duration      time.Duration `json:"duration"`
}

// Processed returns the number of patients that were not skipped.
func (s Stats) Processed() int {
	return s.Validated + s.Raw + s.Empty + s.Failed
}

// Runner runs one extraction target over a list of notes.
type Runner[T any] struct {
	cfg    Config[T]
	logger *slog.Logger
	now    func() time.Time
}

// NewRunner validates cfg and creates a Runner.
func NewRunner[T any](cfg Config[T]) (*Runner[T], error) {
	if cfg.Extractor == nil {
		return nil, fmt.Errorf("extractor is required")
	}
	if cfg.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	if cfg.PatientDir == "" || cfg.AggregateDir == "" {
		return nil, fmt.Errorf("patient and aggregate directories are required")
	}
	if err := cfg.Run.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Runner[T]{
		cfg:    cfg,
		logger: logger.With("target", cfg.Target.Name),
		now:    now,
	}, nil
}

// PatientPath returns the checkpoint file for a patient.
func (r *Runner[T]) PatientPath(patientID string) string {
	return filepath.Join(r.cfg.PatientDir, patientID+r.cfg.Sink.Ext())
}

// RawPath returns the raw-fallback file for a patient.
func (r *Runner[T]) RawPath(patientID string) string {
	return filepath.Join(r.cfg.PatientDir, patientID+RawSuffix)
}

// Run processes notes sequentially. Per-patient failures are logged and
// counted; only an unknown provider or a cancelled context stops the run.
// The aggregate is written unless the provider is unknown.
func (r *Runner[T]) Run(ctx context.Context, notes []Note) (Stats, error) {
	start := r.now()
	timestamp := start.Format(TimestampLayout)
	stats := Stats{Selected: len(notes)}

	for _, dir := range []string{r.cfg.PatientDir, r.cfg.AggregateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return stats, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	r.logger.Info("starting extraction run",
		"patients", len(notes),
		"mode", string(r.cfg.Run.Mode),
		"overwrite", r.cfg.Run.Overwrite,
		"provider", r.cfg.Request.Provider)

	var runErr error
	for i, note := range notes {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		if err := r.processNote(ctx, note, &stats); err != nil {
			runErr = err
			break
		}
		r.logger.Debug("progress", "done", i+1, "total", len(notes))
	}

	if extract.IsUnknownProvider(runErr) {
		stats.Duration = r.now().Sub(start)
		return stats, runErr
	}

	path, err := r.writeAggregate(len(notes), timestamp)
	if err != nil {
		r.logger.Error("failed to write aggregate", "error", err)
		if runErr == nil {
			runErr = err
		}
	} else {
		stats.AggregatePath = path
		r.logger.Info("full extraction saved", "path", path)
	}

	stats.Duration = r.now().Sub(start)
	r.logger.Info("extraction run complete",
		"selected", stats.Selected,
		"skipped", stats.Skipped,
		"validated", stats.Validated,
		"raw", stats.Raw,
		"empty", stats.Empty,
		"failed", stats.Failed,
		"duration", stats.Duration)
	return stats, runErr
}

func (r *Runner[T]) processNote(ctx context.Context, note Note, stats *Stats) error {
	logger := r.logger.With("rghc", note.PatientID)
	logger.Info("processing patient")

	if err := ValidatePatientID(note.PatientID); err != nil {
		logger.Error("skipping patient", "error", err)
		stats.Failed++
		return nil
	}

	outPath := r.PatientPath(note.PatientID)
	if !r.cfg.Run.Overwrite && fileExists(outPath) {
		logger.Info("patient already processed", "path", outPath)
		stats.Skipped++
		return nil
	}

	req := r.cfg.Request
	req.Text = note.Text
	result, err := extract.Extract(ctx, r.cfg.Extractor, req, r.cfg.Target)
	if err != nil {
		return err
	}
	stats.Warnings += len(result.Warnings)

	llmcall.Record(r.cfg.Recorder, result, llmcall.RecordOptions{
		PatientID:   note.PatientID,
		RunID:       r.cfg.RunID,
		Target:      r.cfg.Target.Name,
		PromptKey:   r.cfg.PromptKey,
		PromptHash:  r.cfg.PromptHash,
		Temperature: r.cfg.Temperature,
	})

	switch result.Outcome {
	case extract.OutcomeValidated:
		data, err := r.cfg.Sink.Encode(note.PatientID, result.Value)
		if err == nil {
			err = writeFileAtomic(outPath, data)
		}
		if err != nil {
			logger.Error("failed to save response", "error", err)
			stats.Failed++
			return nil
		}
		r.cfg.Sink.Add(note.PatientID, result.Value)
		stats.Validated++
		logger.Info("response saved", "path", outPath)

		// A fallback from an earlier run is superseded.
		if err := os.Remove(r.RawPath(note.PatientID)); err == nil {
			logger.Info("removed stale raw response", "path", r.RawPath(note.PatientID))
		} else if !errors.Is(err, fs.ErrNotExist) {
			logger.Warn("failed to remove stale raw response", "error", err)
		}

	case extract.OutcomeRaw:
		rawPath := r.RawPath(note.PatientID)
		if err := writeFileAtomic(rawPath, []byte(result.Raw)); err != nil {
			logger.Error("failed to save raw response", "error", err)
			stats.Failed++
			return nil
		}
		stats.Raw++
		logger.Warn("raw response saved for repair", "path", rawPath, "error", result.Err)

	default:
		stats.Empty++
		logger.Error("no usable response", "error", result.Err)
	}
	return nil
}

func (r *Runner[T]) writeAggregate(selected int, timestamp string) (string, error) {
	data, err := r.cfg.Sink.Aggregate()
	if err != nil {
		return "", err
	}
	path := filepath.Join(r.cfg.AggregateDir, r.cfg.Sink.AggregateName(selected, timestamp))
	if err := writeFileAtomic(path, data); err != nil {
		return "", err
	}
	return path, nil
}
