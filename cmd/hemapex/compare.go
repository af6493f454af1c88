package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hemapex/hemapex/internal/config"
	"github.com/hemapex/hemapex/internal/providers"
	"github.com/hemapex/hemapex/internal/reconcile"
	"github.com/hemapex/hemapex/internal/schema"
)

var (
	compareExtracted     string
	compareReference     string
	compareProvider      string
	compareToleranceDays int
	compareDiff          bool
)

type compareSummary struct {
	Extracted         string                 `json:"extracted" yaml:"extracted"`
	Reference         string                 `json:"reference" yaml:"reference"`
	ToleranceDays     int                    `json:"tolerance_days" yaml:"tolerance_days"`
	CleanedCells      int                    `json:"cleaned_cells" yaml:"cleaned_cells"`
	Patients          int                    `json:"patients" yaml:"patients"`
	LineCountMismatch int                    `json:"line_count_mismatches" yaml:"line_count_mismatches"`
	Mismatched        []reconcile.LineCount  `json:"mismatched,omitempty" yaml:"mismatched,omitempty"`
	Agreements        int                    `json:"agreements" yaml:"agreements"`
	Comparisons       int                    `json:"comparisons" yaml:"comparisons"`
	AgreementRate     string                 `json:"agreement_rate" yaml:"agreement_rate"`
	ByField           []reconcile.FieldTally `json:"by_field" yaml:"by_field"`
	DiffFile          string                 `json:"diff_file,omitempty" yaml:"diff_file,omitempty"`
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare extracted treatment lines against the reference dataset",
	Long: `Compare an extracted aggregate CSV against the curated reference.

Patients are first compared by number of treatment lines. Patients whose
counts agree are then compared field by field: dates agree within the
tolerance window, text fields agree after case and whitespace folding.
Drug columns of the extracted table are restricted to the known drug
vocabulary before comparison; the reference is compared as curated.

When --extracted is omitted the newest aggregate of the configured provider
is used.`,
	RunE: runCompare,
}

func init() {
	compareCmd.Flags().StringVar(&compareExtracted, "extracted", "", "extracted aggregate CSV (default: newest run of --provider)")
	compareCmd.Flags().StringVar(&compareReference, "reference", "", "reference CSV (default from config)")
	compareCmd.Flags().StringVar(&compareProvider, "provider", "", "provider whose newest aggregate is compared (default from config)")
	compareCmd.Flags().IntVar(&compareToleranceDays, "tolerance-days", 0, "date agreement window in days (default from config)")
	compareCmd.Flags().BoolVar(&compareDiff, "diff", true, "write the per-cell diff CSV")
	rootCmd.AddCommand(compareCmd)
}

func runCompare(cmd *cobra.Command, args []string) error {
	a, err := newApp("compare")
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	extractedPath := compareExtracted
	if extractedPath == "" {
		tag := cfg.Extraction.Provider
		if compareProvider != "" {
			tag = compareProvider
		}
		provider, err := providers.ParseProvider(tag)
		if err != nil {
			return err
		}
		extractedPath, err = latestFile(a.home.AggregateDir("", string(provider)), ".csv")
		if err != nil {
			return fmt.Errorf("no extracted aggregate found: %w", err)
		}
	}
	referencePath := a.home.Resolve(cfg.Data.Reference)
	if compareReference != "" {
		referencePath = compareReference
	}

	// Extracted aggregates always carry the rghc column; the reference uses
	// the configured id column.
	extracted, err := reconcile.LoadTable(extractedPath, reconcile.ReadOptions{})
	if err != nil {
		return fmt.Errorf("failed to load extracted table: %w", err)
	}
	reference, err := reconcile.LoadTable(referencePath, reconcile.ReadOptions{
		Comma:    config.Delimiter(cfg.Data.ReferenceDelimiter),
		IDColumn: cfg.Data.IDColumn,
	})
	if err != nil {
		return fmt.Errorf("failed to load reference table: %w", err)
	}
	reference.RenameColumn(cfg.Data.IDColumn, schema.ColumnPatientID)
	if !reference.HasColumn(schema.ColumnPatientID) {
		return fmt.Errorf("reference table %s has no %q column", referencePath, cfg.Data.IDColumn)
	}

	cmp := reconcile.NewComparator()
	cmp.ToleranceDays = cfg.Compare.ToleranceDays
	if cmd.Flags().Changed("tolerance-days") {
		cmp.ToleranceDays = compareToleranceDays
	}
	vocab := reconcile.NewVocabulary(cfg.Compare.Drugs)
	a.logger.Debug("drug vocabulary loaded", "drugs", vocab.Len())
	report, cleaned := cmp.Run(extracted, reference, vocab, schema.TreatmentDrugFields)

	a.logger.Info("comparison complete",
		"extracted", extractedPath,
		"reference", referencePath,
		"patients", len(report.Structural.Patients),
		"mismatched", report.Structural.Mismatched,
		"agreements", report.Fields.Agreements,
		"comparisons", report.Fields.Comparisons)

	summary := compareSummary{
		Extracted:         extractedPath,
		Reference:         referencePath,
		ToleranceDays:     cmp.ToleranceDays,
		CleanedCells:      cleaned,
		Patients:          len(report.Structural.Patients),
		LineCountMismatch: report.Structural.Mismatched,
		Agreements:        report.Fields.Agreements,
		Comparisons:       report.Fields.Comparisons,
		AgreementRate:     fmt.Sprintf("%.2f%%", report.Fields.Rate()*100),
		ByField:           report.Fields.ByField,
	}
	for _, p := range report.Structural.Patients {
		if p.Difference != 0 {
			summary.Mismatched = append(summary.Mismatched, p)
		}
	}

	if compareDiff {
		path := a.home.DiffPath(a.timestamp)
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("failed to create diff file: %w", err)
		}
		if err := reconcile.WriteDiffCSV(f, report.Fields.Diffs); err != nil {
			f.Close()
			return fmt.Errorf("failed to write diff file: %w", err)
		}
		if err := f.Close(); err != nil {
			return err
		}
		summary.DiffFile = path
	}

	return printOutput(summary)
}
