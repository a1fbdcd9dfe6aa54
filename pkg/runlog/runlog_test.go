package runlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func sampleRecord() *Record {
	return &Record{
		RunID:             "01J8ZXAMPLE",
		StartedAt:         time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC),
		FinishedAt:        time.Date(2026, 4, 1, 10, 0, 42, 0, time.UTC),
		LocalStamp:        "2026-04-01 06:00:00 EDT",
		Mode:              "llm",
		Model:             "openai/gpt-4o-mini",
		Temperature:       0.7,
		Counter:           12,
		Prompt:            "redesign the region",
		Completion:        `<p>new</p><span id="last-updated"></span>`,
		ValidationOutcome: "accepted",
		PublishedSnippet:  `<p>new</p><span id="last-updated">Last updated: 2026-04-01 06:00:00 EDT</span>`,
		PromptTokens:      120,
		CompletionTokens:  30,
		CostUSD:           0.000036,
		Status:            "success",
	}
}

func TestWriteNamesFileByTimestamp(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	path, err := w.Write(sampleRecord())
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	want := filepath.Join(dir, "run-2026-04-01T10-00-00Z.md")
	if path != want {
		t.Fatalf("expected %s, got %s", want, path)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stat: %v", err)
	}
}

func TestWriteRendersAllSections(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	path, err := w.Write(sampleRecord())
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	body := string(data)

	for _, want := range []string{
		"## Prompt",
		"## Completion",
		"## Validation",
		"## Published snippet",
		"## Meta",
		"redesign the region",
		"- outcome: accepted",
		"- counter: 12",
		"- cost_usd: 0.000036",
		"- status: success",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("missing %q in rendered record:\n%s", want, body)
		}
	}
}

func TestWriteRecordsFailures(t *testing.T) {
	rec := sampleRecord()
	rec.Status = "failure"
	rec.Error = "[MARKER_NOT_FOUND] page must contain exactly one begin sentinel"
	rec.ValidationOutcome = "fallback"
	rec.ValidationError = "[VALIDATION_FENCE] candidate contains a markdown code fence"

	w := NewWriter(t.TempDir())
	path, err := w.Write(rec)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, _ := os.ReadFile(path)
	body := string(data)

	if !strings.Contains(body, "- status: failure") {
		t.Fatal("failure status missing")
	}
	if !strings.Contains(body, "MARKER_NOT_FOUND") {
		t.Fatal("fatal error missing")
	}
	if !strings.Contains(body, "VALIDATION_FENCE") {
		t.Fatal("validation error missing")
	}
}

func TestFencePaddingWhenContentHasBackticks(t *testing.T) {
	rec := sampleRecord()
	rec.Completion = "```html\n<p>x</p>\n```"

	w := NewWriter(t.TempDir())
	path, err := w.Write(rec)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "````\n```html") {
		t.Fatalf("fence should be padded around fenced content:\n%s", string(data))
	}
}
