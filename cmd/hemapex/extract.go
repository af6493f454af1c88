package main

import (
	"github.com/spf13/cobra"

	"github.com/hemapex/hemapex/internal/config"
	"github.com/hemapex/hemapex/internal/pipeline"
	"github.com/hemapex/hemapex/internal/prompts/treatment"
	"github.com/hemapex/hemapex/internal/schema"
)

var extractFlags runFlags

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract treatment lines from clinical notes",
	Long: `Extract structured treatment lines for every selected patient.

Each validated result is written to results/<provider>_rghc/<rghc>.csv and
all results of the run to results/<provider>_full_result/<n>_rghc_<ts>.csv.
Patients that already have an output file are skipped unless --overwrite is
set. Responses that fail schema validation are saved as <rghc>.raw.txt.

Examples:
  hemapex extract --mode test --sample-size 2
  hemapex extract --provider gemini
  hemapex extract --provider mistral --model mistral-large-latest --all`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtraction(cmd, &extractFlags, runKind[schema.TreatmentLines]{
			logPrefix:   "log",
			dirPrefix:   "",
			notesPath:   func(c *config.Config) string { return c.Data.Notes },
			eligibility: true,
			target:      schema.TreatmentLinesTarget,
			sink:        pipeline.NewTreatmentSink(),
			promptKey:   treatment.SystemPromptKey,
		})
	},
}

func init() {
	extractFlags.bind(extractCmd)
	rootCmd.AddCommand(extractCmd)
}
