package main

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/natwellis/pagetender/pkg/config"
	pterrors "github.com/natwellis/pagetender/pkg/errors"
	"github.com/natwellis/pagetender/pkg/storage"
	"github.com/natwellis/pagetender/pkg/terminal"
)

func TestParseStartupOptionsDefaults(t *testing.T) {
	opts, err := parseStartupOptions(nil)
	require.NoError(t, err)

	assert.Equal(t, "llm", opts.mode)
	assert.False(t, opts.dryRun)
	assert.False(t, opts.tempSet)
	assert.Empty(t, opts.configPath)
	assert.Zero(t, opts.recent)
}

func TestParseStartupOptionsFlags(t *testing.T) {
	opts, err := parseStartupOptions([]string{
		"--mode", "counter",
		"--model", "openai/gpt-4o",
		"--temperature", "0.2",
		"--page", "site/index.html",
		"--dry-run",
		"--quiet",
	})
	require.NoError(t, err)

	assert.Equal(t, "counter", opts.mode)
	assert.Equal(t, "openai/gpt-4o", opts.modelID)
	assert.True(t, opts.tempSet)
	assert.InDelta(t, 0.2, opts.temperature, 1e-9)
	assert.Equal(t, "site/index.html", opts.pagePath)
	assert.True(t, opts.dryRun)
	assert.True(t, opts.quiet)
}

func TestParseStartupOptionsRejectsPositionalArgs(t *testing.T) {
	_, err := parseStartupOptions([]string{"extra"})
	assert.Error(t, err)
}

func TestApplyFlagOverrides(t *testing.T) {
	cfg := config.DefaultConfig()
	applyFlagOverrides(cfg, &startupOptions{
		modelID:     "openai/gpt-4o",
		tempSet:     true,
		temperature: 0,
		pagePath:    "other.html",
	})

	assert.Equal(t, "openai/gpt-4o", cfg.Model.ID)
	assert.Zero(t, cfg.Model.Temperature, "explicit zero temperature must land")
	assert.Equal(t, "other.html", cfg.Page.Path)
}

func TestApplyFlagOverridesLeavesUnsetAlone(t *testing.T) {
	cfg := config.DefaultConfig()
	applyFlagOverrides(cfg, &startupOptions{})

	assert.Equal(t, config.DefaultModel, cfg.Model.ID)
	assert.InDelta(t, config.DefaultTemperature, cfg.Model.Temperature, 1e-9)
}

func TestExitCodeForError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"plain", errors.New("boom"), exitGeneric},
		{"config", pterrors.New(pterrors.ErrCodeConfigInvalid, "bad"), exitConfig},
		{"model", pterrors.New(pterrors.ErrCodeModelAPIError, "down"), exitModel},
		{"marker", pterrors.New(pterrors.ErrCodeMarkerNotFound, "gone"), exitPage},
		{"commit", pterrors.New(pterrors.ErrCodeCommitFailed, "locked"), exitCommit},
		{"state", pterrors.New(pterrors.ErrCodeStateWrite, "disk"), exitGeneric},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, exitCodeForError(tc.err))
		})
	}
}

func TestParseStartupOptionsRecent(t *testing.T) {
	opts, err := parseStartupOptions([]string{"--recent", "5"})
	require.NoError(t, err)
	assert.Equal(t, 5, opts.recent)
}

func TestFormatRunRow(t *testing.T) {
	started := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

	row := formatRunRow(storage.RunRecord{
		ID:                "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		StartedAt:         started,
		Status:            "success",
		ValidationOutcome: "accepted",
		Counter:           7,
	})
	assert.Contains(t, row, "2026-04-01 10:00:00")
	assert.Contains(t, row, "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	assert.Contains(t, row, "success")
	assert.Contains(t, row, "iter 7")

	failed := formatRunRow(storage.RunRecord{
		ID:        "01ARZ3NDEKTSV4RRFFQ69G5FAW",
		StartedAt: started,
		Status:    "failure",
		Error:     "COMMIT_FAILED: repository locked",
	})
	assert.Contains(t, failed, "COMMIT_FAILED: repository locked")
}

func TestShowRecentPrintsArchivedRuns(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Paths.StateDB = filepath.Join(t.TempDir(), "state.db")

	store, err := storage.New(cfg.Paths.StateDB)
	require.NoError(t, err)
	require.NoError(t, store.SaveRun(&storage.RunRecord{
		ID:                "01ARZ3NDEKTSV4RRFFQ69G5FAV",
		StartedAt:         time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt:        time.Date(2026, 4, 1, 10, 0, 3, 0, time.UTC),
		Mode:              "llm",
		Status:            "success",
		ValidationOutcome: "accepted",
		Counter:           12,
	}))
	require.NoError(t, store.Close())

	var buf bytes.Buffer
	out := terminal.NewWithOutput(&buf, &buf, false)
	require.NoError(t, showRecent(out, cfg, 10))

	assert.Contains(t, buf.String(), "01ARZ3NDEKTSV4RRFFQ69G5FAV")
	assert.Contains(t, buf.String(), "iter 12")
}

func TestShortHash(t *testing.T) {
	assert.Equal(t, "deadbeef", shortHash("deadbeefcafef00d"))
	assert.Equal(t, "abc", shortHash("abc"))
}
