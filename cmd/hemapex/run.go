package main

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/hemapex/hemapex/internal/config"
	"github.com/hemapex/hemapex/internal/extract"
	"github.com/hemapex/hemapex/internal/llmcall"
	"github.com/hemapex/hemapex/internal/pipeline"
	"github.com/hemapex/hemapex/internal/prompts"
	"github.com/hemapex/hemapex/internal/providers"
	"github.com/hemapex/hemapex/internal/schema"
)

// runFlags are shared by the batch extraction commands. Unset flags fall
// back to the configuration file.
type runFlags struct {
	provider   string
	model      string
	mode       string
	overwrite  bool
	sampleSize int
	notes      string
	eligible   string
	all        bool
}

func (f *runFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.provider, "provider", "", "provider tag: openai, gemini, mistral or groq (default from config)")
	cmd.Flags().StringVar(&f.model, "model", "", "model override (default: provider default)")
	cmd.Flags().StringVar(&f.mode, "mode", "", "run mode: test or full (default from config)")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "re-extract patients that already have an output file")
	cmd.Flags().IntVar(&f.sampleSize, "sample-size", 0, "notes processed in test mode (default from config)")
	cmd.Flags().StringVar(&f.notes, "notes", "", "notes CSV (default from config)")
	cmd.Flags().StringVar(&f.eligible, "eligible", "", "eligible patient id list (default from config)")
	cmd.Flags().BoolVar(&f.all, "all", false, "ignore the eligibility list")
}

// apply merges explicitly set flags into cfg.
func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.Extraction.Provider = f.provider
	}
	if flags.Changed("model") {
		cfg.Extraction.Model = f.model
	}
	if flags.Changed("mode") {
		cfg.Run.Mode = f.mode
	}
	if flags.Changed("overwrite") {
		cfg.Run.Overwrite = f.overwrite
	}
	if flags.Changed("sample-size") {
		cfg.Run.SampleSize = f.sampleSize
	}
}

// runKind describes one kind of batch extraction.
// eligibility enables the configured eligibility list by default.
type runKind[T any] struct {
	logPrefix   string
	dirPrefix   string
	notesPath   func(*config.Config) string
	eligibility bool
	target      schema.Target[T]
	sink        pipeline.Sink[T]
	promptKey   string
}

type runSummary struct {
	RunID     string `json:"run_id" yaml:"run_id"`
	Target    string `json:"target" yaml:"target"`
	Provider  string `json:"provider" yaml:"provider"`
	Model     string `json:"model,omitempty" yaml:"model,omitempty"`
	Mode      string `json:"mode" yaml:"mode"`
	Selected  int    `json:"selected" yaml:"selected"`
	Processed int    `json:"processed" yaml:"processed"`
	Skipped   int    `json:"skipped" yaml:"skipped"`
	Validated int    `json:"validated" yaml:"validated"`
	Raw       int    `json:"raw" yaml:"raw"`
	Empty     int    `json:"empty" yaml:"empty"`
	Failed    int    `json:"failed" yaml:"failed"`
	Warnings  int    `json:"warnings" yaml:"warnings"`
	Duration  string `json:"duration" yaml:"duration"`
	LogFile   string `json:"log_file" yaml:"log_file"`
	CallLog   string `json:"call_log" yaml:"call_log"`
	Aggregate string `json:"aggregate,omitempty" yaml:"aggregate,omitempty"`

	RateLimitWaited string `json:"rate_limit_waited,omitempty" yaml:"rate_limit_waited,omitempty"`
}

func runExtraction[T any](cmd *cobra.Command, flags *runFlags, kind runKind[T]) error {
	a, err := newApp(kind.logPrefix)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	cfg := *a.cfg
	flags.apply(cmd, &cfg)

	run, err := cfg.RunConfig()
	if err != nil {
		return err
	}
	provider, err := providers.ParseProvider(cfg.Extraction.Provider)
	if err != nil {
		return err
	}
	if pc, ok := cfg.GetProvider(string(provider)); !ok || !pc.Enabled {
		return fmt.Errorf("provider %s is not enabled in the configuration", provider)
	}

	notesPath := kind.notesPath(&cfg)
	if flags.notes != "" {
		notesPath = flags.notes
	}
	notes, err := pipeline.LoadNotes(a.home.Resolve(notesPath), cfg.NoteColumns(), config.Delimiter(cfg.Data.NotesDelimiter))
	if err != nil {
		return fmt.Errorf("failed to load notes: %w", err)
	}

	eligible, err := loadEligibility(a, flags, kind.eligibility)
	if err != nil {
		return err
	}
	selected := pipeline.SelectNotes(notes, eligible, run)
	logger.Info("starting extraction run",
		"target", kind.target.Name,
		"provider", provider,
		"mode", run.Mode,
		"patients", len(selected),
		"notes", len(notes))

	prompt, err := a.resolver().Resolve(kind.promptKey)
	if err != nil {
		return err
	}
	logger.Info("instruction resolved", "key", prompt.Key, "source", prompt.Source, "hash", prompts.ShortHash(prompt.Text))

	registry := providers.NewRegistryFromConfig(cfg.ToProviderRegistryConfig(), logger)
	defer registry.Close()
	if !registry.Has(provider) {
		return fmt.Errorf("provider %s has no API key (configured providers: %v)", provider, registry.List())
	}
	extractor := extract.New(extract.Config{
		Registry:    registry,
		Logger:      logger,
		Temperature: cfg.Extraction.Temperature,
	})

	callLog := a.home.CallLogPath(kind.logPrefix, a.timestamp)
	recorder, err := llmcall.OpenRecorder(callLog, logger)
	if err != nil {
		return err
	}
	defer recorder.Close()

	runID := uuid.New().String()
	runner, err := pipeline.NewRunner(pipeline.Config[T]{
		Extractor: extractor,
		Target:    kind.target,
		Sink:      kind.sink,
		Request: extract.Request{
			Provider:    string(provider),
			Model:       cfg.Extraction.Model,
			Instruction: prompt.Text,
		},
		PatientDir:   a.home.PatientDir(kind.dirPrefix, string(provider)),
		AggregateDir: a.home.AggregateDir(kind.dirPrefix, string(provider)),
		Run:          run,
		Recorder:     recorder,
		PromptKey:    prompt.Key,
		PromptHash:   prompt.Hash,
		Temperature:  cfg.Extraction.Temperature,
		RunID:        runID,
		Logger:       logger,
	})
	if err != nil {
		return err
	}

	stats, runErr := runner.Run(cmd.Context(), selected)
	summary := runSummary{
		RunID:     runID,
		Provider:  string(provider),
		Model:     cfg.Extraction.Model,
		Target:    kind.target.Name,
		Mode:      string(run.Mode),
		Selected:  stats.Selected,
		Processed: stats.Processed(),
		Skipped:   stats.Skipped,
		Validated: stats.Validated,
		Raw:       stats.Raw,
		Empty:     stats.Empty,
		Failed:    stats.Failed,
		Warnings:  stats.Warnings,
		Duration:  stats.Duration.Round(time.Millisecond).String(),
		LogFile:   a.logPath,
		CallLog:   callLog,
		Aggregate: stats.AggregatePath,
	}
	if status, ok := registry.LimiterStatus(provider); ok {
		summary.RateLimitWaited = status.TotalWaited.Round(time.Millisecond).String()
	}
	if err := printOutput(summary); err != nil {
		return err
	}
	return runErr
}

// loadEligibility returns nil (no filter) when the list is not wanted or,
// for the default path, not present.
func loadEligibility(a *app, flags *runFlags, byDefault bool) ([]string, error) {
	if flags.all {
		return nil, nil
	}
	path := flags.eligible
	explicit := path != ""
	if !explicit {
		if !byDefault {
			return nil, nil
		}
		path = a.cfg.Data.Eligible
	}

	ids, err := pipeline.LoadPatientIDs(a.home.Resolve(path))
	if err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			a.logger.Warn("no eligibility list, processing every note", "path", a.home.Resolve(path))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load eligibility list: %w", err)
	}
	a.logger.Info("loaded eligibility list", "path", a.home.Resolve(path), "patients", len(ids))
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
