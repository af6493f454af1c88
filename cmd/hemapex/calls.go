package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hemapex/hemapex/internal/home"
	"github.com/hemapex/hemapex/internal/llmcall"
)

var (
	callsFiles    []string
	callsFilter   llmcall.QueryFilter
	callsList     bool
	callsAfterArg string
)

type callsSummary struct {
	Files   []string        `json:"files" yaml:"files"`
	Summary llmcall.Summary `json:"summary" yaml:"summary"`
	Calls   []llmcall.Call  `json:"calls,omitempty" yaml:"calls,omitempty"`
}

var callsCmd = &cobra.Command{
	Use:   "calls",
	Short: "Summarize recorded provider calls",
	Long: `Summarize the provider calls recorded by extract and relapse runs.

By default every call log in <home>/logs is read. Filters narrow the calls
to one run, patient, outcome, provider or target.

Examples:
  hemapex calls
  hemapex calls --run 3f0c... --outcome raw --list
  hemapex calls --rghc 12345 --list -o json`,
	RunE: runCalls,
}

func init() {
	callsCmd.Flags().StringSliceVar(&callsFiles, "file", nil, "call log to read (repeatable; default: all logs in the home directory)")
	callsCmd.Flags().StringVar(&callsFilter.RunID, "run", "", "only calls of this run id")
	callsCmd.Flags().StringVar(&callsFilter.PatientID, "rghc", "", "only calls for this patient")
	callsCmd.Flags().StringVar(&callsFilter.Outcome, "outcome", "", "only calls with this outcome: validated, raw or empty")
	callsCmd.Flags().StringVar(&callsFilter.Provider, "provider", "", "only calls to this provider")
	callsCmd.Flags().StringVar(&callsFilter.Target, "target", "", "only calls for this target: treatment_lines or relapse")
	callsCmd.Flags().StringVar(&callsAfterArg, "after", "", "only calls after this time (RFC 3339)")
	callsCmd.Flags().IntVar(&callsFilter.Limit, "limit", 0, "maximum number of calls (0 = no limit)")
	callsCmd.Flags().BoolVar(&callsList, "list", false, "include the matching calls in the output")
	rootCmd.AddCommand(callsCmd)
}

func runCalls(cmd *cobra.Command, args []string) error {
	filter := callsFilter
	if callsAfterArg != "" {
		after, err := parseAfter(callsAfterArg)
		if err != nil {
			return err
		}
		filter.After = &after
	}

	paths := callsFiles
	if len(paths) == 0 {
		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if !h.Exists() {
			return fmt.Errorf("home directory %s does not exist", h.Path())
		}
		paths, err = filepath.Glob(filepath.Join(h.LogsPath(), "*_calls_*.jsonl"))
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no call logs in %s", h.LogsPath())
		}
	}

	calls, err := llmcall.LoadFiles(paths, filter)
	if err != nil {
		return err
	}
	out := callsSummary{
		Files:   paths,
		Summary: llmcall.Summarize(calls),
	}
	if callsList {
		out.Calls = calls
	}
	return writeOutput(cmd.OutOrStdout(), out)
}
