package main

import (
	"github.com/spf13/cobra"

	"github.com/hemapex/hemapex/internal/config"
	"github.com/hemapex/hemapex/internal/pipeline"
	"github.com/hemapex/hemapex/internal/prompts/relapse"
	"github.com/hemapex/hemapex/internal/schema"
)

var relapseFlags runFlags

var relapseCmd = &cobra.Command{
	Use:   "relapse",
	Short: "Extract post-transplant relapse status from clinical notes",
	Long: `Extract relapse status and date after autologous transplant.

Results are written to results/tmo_<provider>_rghc/<rghc>.json and the run
aggregate to results/tmo_<provider>_full_result/tmo_rghc_<ts>.json, keyed
by patient. Every note in the relapse notes file is processed unless
--eligible names a patient list.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runExtraction(cmd, &relapseFlags, runKind[schema.Relapse]{
			logPrefix:   "tmo",
			dirPrefix:   "tmo_",
			notesPath:   func(c *config.Config) string { return c.Data.RelapseNotes },
			eligibility: false,
			target:      schema.RelapseTarget,
			sink:        pipeline.NewRelapseSink(),
			promptKey:   relapse.SystemPromptKey,
		})
	},
}

func init() {
	relapseFlags.bind(relapseCmd)
	rootCmd.AddCommand(relapseCmd)
}
