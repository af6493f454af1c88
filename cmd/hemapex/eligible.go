package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hemapex/hemapex/internal/cohort"
	"github.com/hemapex/hemapex/internal/config"
	"github.com/hemapex/hemapex/internal/pipeline"
	"github.com/hemapex/hemapex/internal/reconcile"
)

var (
	eligibleReference  string
	eligibleNotes      string
	eligibleOut        string
	eligibleWindowDays int
	eligibleVerbose    bool
)

type eligibleSummary struct {
	Reference  string             `json:"reference" yaml:"reference"`
	Notes      string             `json:"notes" yaml:"notes"`
	WindowDays int                `json:"window_days" yaml:"window_days"`
	Evaluated  int                `json:"evaluated" yaml:"evaluated"`
	Eligible   int                `json:"eligible" yaml:"eligible"`
	Output     string             `json:"output" yaml:"output"`
	Candidates []cohort.Candidate `json:"candidates,omitempty" yaml:"candidates,omitempty"`
}

var eligibleCmd = &cobra.Command{
	Use:   "eligible",
	Short: "Select patients whose notes are close to their reference records",
	Long: `Select the cohort for extraction.

For each patient present in both the notes and the reference, the latest
note date is compared with the latest date found in any date column of the
reference. Patients whose gap is below the window are written, one id per
line, to the eligibility list read by "hemapex extract".`,
	RunE: runEligible,
}

func init() {
	eligibleCmd.Flags().StringVar(&eligibleReference, "reference", "", "reference CSV (default from config)")
	eligibleCmd.Flags().StringVar(&eligibleNotes, "notes", "", "notes CSV (default from config)")
	eligibleCmd.Flags().StringVar(&eligibleOut, "out", "", "eligibility list to write (default from config)")
	eligibleCmd.Flags().IntVar(&eligibleWindowDays, "window-days", 0, "maximum gap in days (default from config)")
	eligibleCmd.Flags().BoolVar(&eligibleVerbose, "verbose", false, "include every candidate in the output")
	rootCmd.AddCommand(eligibleCmd)
}

func runEligible(cmd *cobra.Command, args []string) error {
	a, err := newApp("eligible")
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	referencePath := pick(eligibleReference, a.home.Resolve(cfg.Data.Reference))
	notesPath := pick(eligibleNotes, a.home.Resolve(cfg.Data.Notes))
	outPath := pick(eligibleOut, a.home.Resolve(cfg.Data.Eligible))

	reference, err := reconcile.LoadTable(referencePath, reconcile.ReadOptions{
		Comma:    config.Delimiter(cfg.Data.ReferenceDelimiter),
		IDColumn: cfg.Data.IDColumn,
	})
	if err != nil {
		return fmt.Errorf("failed to load reference table: %w", err)
	}
	notes, err := pipeline.LoadNotes(notesPath, cfg.NoteColumns(), config.Delimiter(cfg.Data.NotesDelimiter))
	if err != nil {
		return fmt.Errorf("failed to load notes: %w", err)
	}

	sel := cohort.NewSelector(a.logger)
	sel.IDColumn = cfg.Data.IDColumn
	sel.WindowDays = cfg.Data.EligibilityWindowDays
	if cmd.Flags().Changed("window-days") {
		sel.WindowDays = eligibleWindowDays
	}
	candidates := sel.Evaluate(reference, notes)
	ids := cohort.Eligible(candidates)

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return err
	}
	f, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("failed to create eligibility list: %w", err)
	}
	if err := pipeline.WritePatientIDs(f, ids); err != nil {
		f.Close()
		return fmt.Errorf("failed to write eligibility list: %w", err)
	}
	if err := f.Close(); err != nil {
		return err
	}
	a.logger.Info("eligibility list written", "path", outPath, "eligible", len(ids), "evaluated", len(candidates))

	summary := eligibleSummary{
		Reference:  referencePath,
		Notes:      notesPath,
		WindowDays: sel.WindowDays,
		Evaluated:  len(candidates),
		Eligible:   len(ids),
		Output:     outPath,
	}
	if eligibleVerbose {
		summary.Candidates = candidates
	}
	return printOutput(summary)
}

func pick(flag, fallback string) string {
	if flag != "" {
		return flag
	}
	return fallback
}
