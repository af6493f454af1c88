package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/hemapex/hemapex/internal/config"
	"github.com/hemapex/hemapex/internal/home"
	"github.com/hemapex/hemapex/internal/pipeline"
	"github.com/hemapex/hemapex/internal/prompts"
	"github.com/hemapex/hemapex/internal/prompts/relapse"
	"github.com/hemapex/hemapex/internal/prompts/treatment"
)

// app is the per-invocation environment shared by commands.
type app struct {
	home      *home.Dir
	cfg       *config.Config
	cfgFile   string
	logger    *slog.Logger
	logFile   *os.File
	logPath   string
	timestamp string
}

// newApp resolves the home directory, loads configuration and opens the run
// log <home>/logs/<logPrefix>_<timestamp>.log, mirrored to stderr.
func newApp(logPrefix string) (*app, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, err
	}

	mgr, err := config.NewManager(cfgFile, h.Path())
	if err != nil {
		return nil, err
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return nil, fmt.Errorf("invalid --log-level: %w", err)
	}

	a := &app{
		home:      h,
		cfg:       mgr.Get(),
		cfgFile:   mgr.ConfigFile(),
		timestamp: time.Now().Format(pipeline.TimestampLayout),
	}

	a.logPath = h.LogPath(logPrefix, a.timestamp)
	f, err := os.OpenFile(a.logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	a.logFile = f
	a.logger = slog.New(slog.NewTextHandler(io.MultiWriter(f, os.Stderr), &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(a.logger)

	a.logger.Debug("configuration loaded", "home", h.Path(), "config_file", a.cfgFile)
	return a, nil
}

// Close flushes and closes the run log.
func (a *app) Close() {
	if a.logFile != nil {
		a.logFile.Close()
	}
}

// resolver registers the embedded prompts and applies configured overrides.
func (a *app) resolver() *prompts.Resolver {
	r := prompts.NewResolver(a.logger)
	treatment.RegisterPrompts(r)
	relapse.RegisterPrompts(r)
	r.SetOverride(treatment.SystemPromptKey, a.home.Resolve(a.cfg.Extraction.TreatmentInstructions))
	r.SetOverride(relapse.SystemPromptKey, a.home.Resolve(a.cfg.Extraction.RelapseInstructions))
	return r
}

// printOutput writes v to stdout in the --output format.
func printOutput(v any) error {
	return writeOutput(os.Stdout, v)
}

func writeOutput(w io.Writer, v any) error {
	var (
		data []byte
		err  error
	)
	if outputFormat == "json" {
		data, err = json.MarshalIndent(v, "", "  ")
		data = append(data, '\n')
	} else {
		data, err = yaml.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

// latestFile returns the most recently modified file in dir with suffix.
func latestFile(dir, suffix string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	type candidate struct {
		path string
		mod  time.Time
	}
	var files []candidate
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{filepath.Join(dir, e.Name()), info.ModTime()})
	}
	if len(files) == 0 {
		return "", fmt.Errorf("no %s files in %s", suffix, dir)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].mod.After(files[j].mod) })
	return files[0].path, nil
}

func fileExistsAt(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func parseAfter(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --after %q: %w", v, err)
	}
	return t, nil
}
