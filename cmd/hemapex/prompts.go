package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hemapex/hemapex/internal/config"
	"github.com/hemapex/hemapex/internal/home"
	"github.com/hemapex/hemapex/internal/prompts"
)

var promptsEmbedded bool

type promptInfo struct {
	Key          string `json:"key" yaml:"key"`
	Description  string `json:"description" yaml:"description"`
	Source       string `json:"source" yaml:"source"`
	Hash         string `json:"hash" yaml:"hash"`
	EmbeddedHash string `json:"embedded_hash" yaml:"embedded_hash"`
}

var promptsCmd = &cobra.Command{
	Use:   "prompts [key]",
	Short: "List extraction instructions or print one",
	Long: `Without arguments, list every instruction key with the source that a run
would use (the embedded default or the override file named in the
configuration) and its hash.

With a key, print the instruction text a run would send. --embedded prints
the built-in default instead, which is a convenient starting point for an
override file:

  hemapex prompts extract.treatment.system --embedded > instructions.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrompts,
}

func init() {
	promptsCmd.Flags().BoolVar(&promptsEmbedded, "embedded", false, "print the built-in default even when an override is configured")
	rootCmd.AddCommand(promptsCmd)
}

func runPrompts(cmd *cobra.Command, args []string) error {
	h, err := home.New(homeDir)
	if err != nil {
		return err
	}
	mgr, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return err
	}
	a := &app{home: h, cfg: mgr.Get(), logger: slog.Default()}
	r := a.resolver()
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		key := args[0]
		if promptsEmbedded {
			p, ok := r.GetEmbedded(key)
			if !ok {
				return fmt.Errorf("prompt not found: %s", key)
			}
			_, err := fmt.Fprint(out, p.Text)
			return err
		}
		p, err := r.Resolve(key)
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(out, p.Text)
		return err
	}

	var infos []promptInfo
	for _, e := range r.AllEmbedded() {
		info := promptInfo{
			Key:          e.Key,
			Description:  e.Description,
			EmbeddedHash: prompts.ShortHash(e.Text),
		}
		p, err := r.Resolve(e.Key)
		if err != nil {
			return err
		}
		info.Source = p.Source
		info.Hash = prompts.ShortHash(p.Text)
		infos = append(infos, info)
	}
	return writeOutput(out, infos)
}
