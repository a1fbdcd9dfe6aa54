package pipeline

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/natwellis/pagetender/pkg/config"
	"github.com/natwellis/pagetender/pkg/cost"
	pterrors "github.com/natwellis/pagetender/pkg/errors"
	"github.com/natwellis/pagetender/pkg/logging"
	"github.com/natwellis/pagetender/pkg/model"
	"github.com/natwellis/pagetender/pkg/page"
	"github.com/natwellis/pagetender/pkg/prompts"
	"github.com/natwellis/pagetender/pkg/runlog"
	"github.com/natwellis/pagetender/pkg/storage"
)

// Mode selects how the candidate snippet is produced.
type Mode string

const (
	// ModeLLM asks the configured language model for a snippet.
	ModeLLM Mode = "llm"
	// ModeCounter produces a deterministic snippet from the iteration
	// counter, no network involved.
	ModeCounter Mode = "counter"
)

// Options are the per-invocation knobs.
type Options struct {
	Mode   Mode
	DryRun bool
}

// Committer is the version-control collaborator.
type Committer interface {
	CommitPaths(paths []string, message string, when time.Time) (string, error)
}

// Result summarizes one pipeline run.
type Result struct {
	RunID      string
	Outcome    string // accepted or fallback
	Snippet    string // what landed in the editable region
	CommitHash string
	LogPath    string
	Counter    int
	Estimate   cost.Estimate
	DryRun     bool
}

// Runner wires the pipeline's collaborators. One Runner performs one
// synchronous run per Run call; there is no internal concurrency.
type Runner struct {
	cfg       *config.Config
	providers *model.Registry
	committer Committer
	now       func() time.Time
}

// Option customizes a Runner.
type Option func(*Runner)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner builds a Runner. committer may be nil when commits are
// disabled in config.
func NewRunner(cfg *config.Config, providers *model.Registry, committer Committer, opts ...Option) *Runner {
	r := &Runner{
		cfg:       cfg,
		providers: providers,
		committer: committer,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// run carries the mutable state of one invocation.
type run struct {
	id        string
	startedAt time.Time
	opts      Options
	logger    *logging.Logger
	record    runlog.Record
	result    Result
}

// Run executes one pipeline pass: generate, validate (fall back on
// reject), stamp, splice, persist, record, commit. Validation failures
// degrade to the fallback snippet; every other failure aborts the run.
// The run record is written even when the run fails.
func (r *Runner) Run(ctx context.Context, opts Options) (*Result, error) {
	startedAt := r.now()
	st := &run{
		id:        ulid.Make().String(),
		startedAt: startedAt,
		opts:      opts,
	}
	st.result.RunID = st.id
	st.result.DryRun = opts.DryRun

	logger, err := logging.NewLogger(r.cfg.Paths.LogDir, st.id)
	if err != nil {
		return nil, pterrors.Wrap(err, pterrors.ErrCodeInternal, "opening run logger")
	}
	defer logger.Close()
	st.logger = logger

	st.record = runlog.Record{
		RunID:      st.id,
		StartedAt:  startedAt.UTC(),
		LocalStamp: startedAt.In(r.cfg.Location()).Format("2006-01-02 15:04:05 MST"),
		Mode:       string(opts.Mode),
		DryRun:     opts.DryRun,
	}

	logger.Info(logging.CategoryPipeline, "run_started", "pipeline run started", map[string]any{
		"mode":    string(opts.Mode),
		"dry_run": opts.DryRun,
	})

	store, storeErr := storage.New(r.cfg.Paths.StateDB)
	if storeErr != nil {
		err = pterrors.Wrap(storeErr, pterrors.ErrCodeStateRead, "opening state store")
	} else {
		defer store.Close()
		err = r.execute(ctx, st, store)
	}
	if err != nil {
		st.record.Status = "failure"
		st.record.Error = err.Error()
		logger.Error(logging.CategoryPipeline, "run_failed", err.Error(), nil)
	} else {
		st.record.Status = "success"
		logger.Info(logging.CategoryPipeline, "run_finished", "pipeline run finished", map[string]any{
			"outcome": st.result.Outcome,
			"commit":  st.result.CommitHash,
		})
	}
	st.record.FinishedAt = r.now().UTC()

	// The markdown record is the run's audit trail; it is written for
	// successes, failures, and dry runs alike.
	writer := runlog.NewWriter(r.cfg.Paths.RunLogDir)
	logPath, logErr := writer.Write(&st.record)
	if logErr != nil {
		logger.Error(logging.CategoryPipeline, "run_record_failed", logErr.Error(), nil)
		if err == nil {
			err = pterrors.Wrap(logErr, pterrors.ErrCodeInternal, "writing run record")
			st.record.Status = "failure"
			st.record.Error = err.Error()
		}
	}
	st.result.LogPath = logPath

	// Commit happens after the run record exists so the record rides
	// along in the same commit.
	if err == nil && !opts.DryRun && r.cfg.Commit.Enabled && r.committer != nil {
		hash, commitErr := r.committer.CommitPaths(
			[]string{r.cfg.Page.Path, logPath},
			fmt.Sprintf(r.cfg.Commit.MessageTemplate, st.record.LocalStamp),
			startedAt,
		)
		if commitErr != nil {
			err = pterrors.Wrap(commitErr, pterrors.ErrCodeCommitFailed, "committing run output")
			st.record.Status = "failure"
			st.record.Error = err.Error()
			logger.Error(logging.CategoryCommit, "commit_failed", commitErr.Error(), nil)
		} else {
			st.result.CommitHash = hash
			logger.Info(logging.CategoryCommit, "commit_created", "commit created", map[string]any{"hash": hash})
		}
	}

	// One archive row per invocation, success or failure; dry runs
	// leave no trace beyond the record file. Rows are best effort: the
	// markdown record is the canonical audit trail.
	if store != nil && !opts.DryRun {
		archiveErr := store.SaveRun(&storage.RunRecord{
			ID:                st.id,
			StartedAt:         st.startedAt.UTC(),
			FinishedAt:        st.record.FinishedAt,
			Mode:              string(opts.Mode),
			Model:             st.record.Model,
			Temperature:       st.record.Temperature,
			Counter:           st.record.Counter,
			ValidationOutcome: st.record.ValidationOutcome,
			ValidationError:   st.record.ValidationError,
			Status:            st.record.Status,
			Error:             st.record.Error,
			PromptTokens:      st.record.PromptTokens,
			CompletionTokens:  st.record.CompletionTokens,
			CostUSD:           st.record.CostUSD,
			LogPath:           logPath,
		})
		if archiveErr != nil {
			logger.Warn(logging.CategoryState, "run_archive_failed", archiveErr.Error(), nil)
		}
	}

	if err != nil {
		return &st.result, err
	}
	return &st.result, nil
}

// execute performs the generate/validate/splice/persist sequence,
// filling in st.record and st.result as it goes.
func (r *Runner) execute(ctx context.Context, st *run, store *storage.Store) error {
	cfg := r.cfg
	logger := st.logger

	validator := page.NewValidator(cfg.Page.TimestampID, cfg.Validator.ForbiddenTags)
	splicer := page.NewSplicer(cfg.Page.BeginMarker, cfg.Page.EndMarker)
	injector := page.NewInjector(cfg.Page.TimestampID, cfg.Location())
	inspector := page.NewInspector(cfg.Page.TimestampID)

	// A fallback that cannot validate would leave no safe degradation
	// path; refuse to run.
	if err := validator.Validate(cfg.Generator.FallbackSnippet); err != nil {
		return pterrors.Wrap(err, pterrors.ErrCodeConfigInvalid, "fallback snippet fails validation")
	}

	counter, err := store.GetCounter()
	if err != nil {
		return pterrors.Wrap(err, pterrors.ErrCodeStateRead, "reading iteration counter")
	}
	next := counter + 1
	st.record.Counter = next
	st.result.Counter = next
	logger.Info(logging.CategoryState, "counter_loaded", "iteration counter loaded", map[string]any{
		"counter": counter,
		"next":    next,
	})

	pageBytes, err := os.ReadFile(cfg.Page.Path)
	if err != nil {
		return pterrors.Wrap(err, pterrors.ErrCodePageRead, "reading page").
			WithContext("path", cfg.Page.Path)
	}
	pageText := string(pageBytes)

	// Fail fast on a broken sentinel contract before any generation
	// spend.
	previousRegion, err := splicer.ExtractRegion(pageText)
	if err != nil {
		return err
	}

	candidate, err := r.generate(ctx, st, next, previousRegion)
	if err != nil {
		return err
	}

	snippet := candidate
	if verr := validator.Validate(candidate); verr != nil {
		if !pterrors.IsRecoverable(verr) {
			return verr
		}
		logger.Warn(logging.CategoryValidation, "candidate_rejected", verr.Error(), map[string]any{
			"code": string(pterrors.GetCode(verr)),
		})
		st.record.ValidationOutcome = "fallback"
		st.record.ValidationError = verr.Error()
		st.result.Outcome = "fallback"
		snippet = cfg.Generator.FallbackSnippet
	} else {
		logger.Info(logging.CategoryValidation, "candidate_accepted", "candidate accepted", nil)
		st.record.ValidationOutcome = "accepted"
		st.result.Outcome = "accepted"
	}

	stamped, err := injector.InjectTimestamp(snippet, st.startedAt)
	if err != nil {
		return err
	}
	st.record.PublishedSnippet = stamped
	st.result.Snippet = stamped

	newPage, err := splicer.Splice(pageText, stamped)
	if err != nil {
		return err
	}
	if err := inspector.VerifyPublished(newPage); err != nil {
		return err
	}
	logger.Info(logging.CategoryPage, "page_assembled", "page assembled and verified", map[string]any{
		"bytes": len(newPage),
	})

	if st.opts.DryRun {
		logger.Info(logging.CategoryPipeline, "dry_run", "dry run: skipping persistence and commit", nil)
		return nil
	}

	if err := os.WriteFile(cfg.Page.Path, []byte(newPage), 0o644); err != nil {
		return pterrors.Wrap(err, pterrors.ErrCodePageWrite, "writing page").
			WithContext("path", cfg.Page.Path)
	}
	if err := store.SetCounter(next); err != nil {
		return pterrors.Wrap(err, pterrors.ErrCodeStateWrite, "persisting iteration counter")
	}
	logger.Info(logging.CategoryState, "counter_persisted", "iteration counter persisted", map[string]any{
		"counter": next,
	})

	return nil
}

// generate produces the candidate snippet for the run's mode.
func (r *Runner) generate(ctx context.Context, st *run, counter int, previousRegion string) (string, error) {
	cfg := r.cfg

	if st.opts.Mode == ModeCounter {
		snippet := prompts.CounterSnippet(counter, cfg.Page.TimestampID)
		st.record.Prompt = "(deterministic counter mode)"
		st.record.Completion = snippet
		return snippet, nil
	}

	provider, err := r.providers.Get(cfg.Model.Provider)
	if err != nil {
		return "", err
	}

	brief := prompts.LoadBrief(cfg.Generator.PromptPath)
	userPrompt := prompts.BuildUserPrompt(prompts.PromptConfig{
		Counter:        counter,
		PreviousRegion: previousRegion,
		Brief:          brief,
		TimestampID:    cfg.Page.TimestampID,
	})
	messages := []model.Message{
		{Role: "system", Content: prompts.SystemPrompt()},
		{Role: "user", Content: userPrompt},
	}

	st.record.Prompt = userPrompt
	st.record.Model = cfg.Model.ID
	st.record.Temperature = cfg.Model.Temperature

	reqCtx := ctx
	if cfg.Model.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, cfg.Model.RequestTimeout)
		defer cancel()
	}

	st.logger.Info(logging.CategoryModel, "completion_requested", "requesting completion", map[string]any{
		"model":       cfg.Model.ID,
		"temperature": cfg.Model.Temperature,
	})
	resp, err := provider.ChatCompletion(reqCtx, model.ChatRequest{
		Model:       cfg.Model.ID,
		Messages:    messages,
		Temperature: cfg.Model.Temperature,
		MaxTokens:   cfg.Model.MaxTokens,
	})
	if err != nil {
		return "", pterrors.Wrap(err, pterrors.ErrCodeModelAPIError, "chat completion failed").
			WithContext("model", cfg.Model.ID)
	}

	completion := strings.TrimSpace(resp.Text())
	st.record.Completion = completion

	info, _ := provider.GetModelInfo(cfg.Model.ID)
	estimate := cost.NewEstimator(info).ForUsage(resp.Usage, messages, completion)
	st.record.PromptTokens = estimate.PromptTokens
	st.record.CompletionTokens = estimate.CompletionTokens
	st.record.CostUSD = estimate.CostUSD
	st.result.Estimate = estimate
	st.logger.Info(logging.CategoryCost, "usage_recorded", "token usage recorded", map[string]any{
		"prompt_tokens":     estimate.PromptTokens,
		"completion_tokens": estimate.CompletionTokens,
		"cost_usd":          estimate.CostUSD,
	})

	return completion, nil
}
