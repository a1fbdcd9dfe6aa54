package storage

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCounterDefaultsToZero(t *testing.T) {
	store := newTestStore(t)
	counter, err := store.GetCounter()
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if counter != 0 {
		t.Fatalf("fresh store should start at 0, got %d", counter)
	}
}

func TestCounterRoundTrip(t *testing.T) {
	store := newTestStore(t)

	if err := store.SetCounter(7); err != nil {
		t.Fatalf("set counter: %v", err)
	}
	counter, err := store.GetCounter()
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if counter != 7 {
		t.Fatalf("expected 7, got %d", counter)
	}

	// Last writer wins
	if err := store.SetCounter(8); err != nil {
		t.Fatalf("set counter: %v", err)
	}
	counter, err = store.GetCounter()
	if err != nil {
		t.Fatalf("get counter: %v", err)
	}
	if counter != 8 {
		t.Fatalf("expected 8, got %d", counter)
	}
}

func TestSaveAndListRuns(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		rec := &RunRecord{
			ID:                "run-" + string(rune('a'+i)),
			StartedAt:         base.Add(time.Duration(i) * time.Hour),
			FinishedAt:        base.Add(time.Duration(i)*time.Hour + time.Minute),
			Mode:              "llm",
			Model:             "openai/gpt-4o-mini",
			Temperature:       0.7,
			Counter:           i + 1,
			ValidationOutcome: "accepted",
			Status:            "success",
			PromptTokens:      100,
			CompletionTokens:  50,
			CostUSD:           0.001,
			LogPath:           "agent-reasoning/run-x.md",
		}
		if err := store.SaveRun(rec); err != nil {
			t.Fatalf("save run %d: %v", i, err)
		}
	}

	runs, err := store.RecentRuns(2)
	if err != nil {
		t.Fatalf("recent runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].ID != "run-c" || runs[1].ID != "run-b" {
		t.Fatalf("runs should come back newest first: %s, %s", runs[0].ID, runs[1].ID)
	}
	if runs[0].ValidationOutcome != "accepted" || runs[0].Counter != 3 {
		t.Fatalf("record fields mangled: %+v", runs[0])
	}
}

func TestClosedStoreErrors(t *testing.T) {
	store := newTestStore(t)
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := store.GetCounter(); err != ErrStoreClosed {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
	if err := store.SetCounter(1); err != ErrStoreClosed {
		t.Fatalf("expected ErrStoreClosed, got %v", err)
	}
}
