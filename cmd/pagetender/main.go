package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/natwellis/pagetender/pkg/config"
	pterrors "github.com/natwellis/pagetender/pkg/errors"
	"github.com/natwellis/pagetender/pkg/gitops"
	"github.com/natwellis/pagetender/pkg/model"
	"github.com/natwellis/pagetender/pkg/pipeline"
	"github.com/natwellis/pagetender/pkg/storage"
	"github.com/natwellis/pagetender/pkg/terminal"
)

// Version information - set via ldflags during build
var (
	version   = "1.0.0-dev"
	commit    = "unknown"
	buildDate = "unknown"
)

type startupOptions struct {
	mode        string
	modelID     string
	temperature float64
	tempSet     bool
	pagePath    string
	configPath  string
	dryRun      bool
	quiet       bool
	showVersion bool
	recent      int
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	opts, err := parseStartupOptions(args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitGeneric
	}
	if opts.showVersion {
		fmt.Printf("pagetender %s (%s, built %s)\n", version, commit, buildDate)
		return exitOK
	}

	out := terminal.New(opts.quiet)

	// .env is optional; environment variables win over it either way.
	_ = godotenv.Load()

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		out.Error("loading config: %v", err)
		return exitCodeForError(err)
	}
	applyFlagOverrides(cfg, opts)
	if err := cfg.Validate(); err != nil {
		out.Error("invalid config: %v", err)
		return exitCodeForError(err)
	}

	if opts.recent > 0 {
		if err := showRecent(out, cfg, opts.recent); err != nil {
			out.Error("%v", err)
			return exitCodeForError(err)
		}
		return exitOK
	}

	mode := pipeline.Mode(opts.mode)
	if mode != pipeline.ModeLLM && mode != pipeline.ModeCounter {
		out.Error("unknown mode %q (want llm or counter)", opts.mode)
		return exitGeneric
	}

	if mode == pipeline.ModeLLM && cfg.Model.APIKey == "" {
		out.Error("no API key configured (set OPENAI_API_KEY)")
		return exitConfig
	}

	providers := buildRegistry(cfg)

	var committer pipeline.Committer
	if cfg.Commit.Enabled {
		committer = gitops.NewCommitter(cfg.Commit.RepoPath, cfg.Commit.AuthorName, cfg.Commit.AuthorEmail)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := pipeline.NewRunner(cfg, providers, committer)
	result, err := runner.Run(ctx, pipeline.Options{Mode: mode, DryRun: opts.dryRun})
	if err != nil {
		out.Error("%v", err)
		if result != nil && result.LogPath != "" {
			out.Detail("run record: %s", result.LogPath)
		}
		return exitCodeForError(err)
	}

	report(out, cfg, result)
	return exitOK
}

func parseStartupOptions(args []string) (*startupOptions, error) {
	opts := &startupOptions{}

	fs := flag.NewFlagSet("pagetender", flag.ContinueOnError)
	fs.StringVar(&opts.mode, "mode", "llm", "snippet source: llm or counter")
	fs.StringVar(&opts.modelID, "model", "", "override the configured model")
	fs.Float64Var(&opts.temperature, "temperature", 0, "override the sampling temperature")
	fs.StringVar(&opts.pagePath, "page", "", "override the page path")
	fs.StringVar(&opts.configPath, "config", "", "explicit config file (skips the lookup hierarchy)")
	fs.BoolVar(&opts.dryRun, "dry-run", false, "run the pipeline without writing the page, state, or commits")
	fs.IntVar(&opts.recent, "recent", 0, "print the N most recent archived runs and exit")
	fs.BoolVar(&opts.quiet, "quiet", false, "suppress status output")
	fs.BoolVar(&opts.showVersion, "version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "temperature" {
			opts.tempSet = true
		}
	})
	if rest := fs.Args(); len(rest) > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", rest)
	}
	return opts, nil
}

// applyFlagOverrides layers explicit flags over the loaded config. Flags
// beat files and environment.
func applyFlagOverrides(cfg *config.Config, opts *startupOptions) {
	if opts.modelID != "" {
		cfg.Model.ID = opts.modelID
	}
	if opts.tempSet {
		cfg.Model.Temperature = opts.temperature
	}
	if opts.pagePath != "" {
		cfg.Page.Path = opts.pagePath
	}
}

func buildRegistry(cfg *config.Config) *model.Registry {
	openai := model.NewOpenAIProvider(cfg.Model.APIKey, cfg.Model.BaseURL)
	if cfg.Model.RequestTimeout > 0 {
		openai.SetTimeout(cfg.Model.RequestTimeout)
	}
	return model.NewRegistry(openai)
}

func report(out *terminal.Writer, cfg *config.Config, result *pipeline.Result) {
	switch result.Outcome {
	case "fallback":
		out.Warn("candidate rejected, published the fallback snippet")
	default:
		out.Success("candidate accepted")
	}

	if result.DryRun {
		out.Info("dry run: page, state, and repository untouched")
	} else {
		out.Success("page updated: %s", cfg.Page.Path)
	}
	out.Detail("iteration %d", result.Counter)
	if result.Estimate.PromptTokens > 0 || result.Estimate.CompletionTokens > 0 {
		out.Detail("tokens: %d prompt, %d completion ($%.6f)",
			result.Estimate.PromptTokens, result.Estimate.CompletionTokens, result.Estimate.CostUSD)
	}
	if result.CommitHash != "" {
		out.Detail("commit: %s", shortHash(result.CommitHash))
	}
	if result.LogPath != "" {
		out.Detail("run record: %s", result.LogPath)
	}
}

// showRecent prints the most recent archived runs, newest first.
func showRecent(out *terminal.Writer, cfg *config.Config, limit int) error {
	store, err := storage.New(cfg.Paths.StateDB)
	if err != nil {
		return pterrors.Wrap(err, pterrors.ErrCodeStateRead, "opening state store")
	}
	defer store.Close()

	runs, err := store.RecentRuns(limit)
	if err != nil {
		return pterrors.Wrap(err, pterrors.ErrCodeStateRead, "reading run archive")
	}
	if len(runs) == 0 {
		out.Info("no archived runs")
		return nil
	}

	out.Header(fmt.Sprintf("last %d runs", len(runs)))
	for _, rec := range runs {
		out.Detail("%s", formatRunRow(rec))
	}
	return nil
}

func formatRunRow(rec storage.RunRecord) string {
	line := fmt.Sprintf("%s  %s  %-7s  %-8s  iter %d",
		rec.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		rec.ID, rec.Status, rec.ValidationOutcome, rec.Counter)
	if rec.Error != "" {
		line += "  " + rec.Error
	}
	return line
}

func shortHash(hash string) string {
	if len(hash) > 8 {
		return hash[:8]
	}
	return hash
}
