package runlog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// fileStampFormat keeps run filenames file-safe and sortable.
const fileStampFormat = "2006-01-02T15-04-05Z"

// Record is the audit entry for one pipeline invocation. Written once
// per run, never mutated afterward.
type Record struct {
	RunID             string
	StartedAt         time.Time // UTC
	FinishedAt        time.Time // UTC
	LocalStamp        string    // human-readable rendering in the page's timezone
	Mode              string
	Model             string
	Temperature       float64
	Counter           int
	Prompt            string
	Completion        string
	ValidationOutcome string // accepted or fallback
	ValidationError   string
	PublishedSnippet  string
	PromptTokens      int
	CompletionTokens  int
	CostUSD           float64
	DryRun            bool
	Status            string // success, failure
	Error             string
}

// Writer persists run records as one markdown file per run.
type Writer struct {
	dir string
}

// NewWriter creates a writer rooted at dir.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Write renders the record to markdown and persists it as
// run-<timestamp>.md. It returns the path so the commit can include it.
func (w *Writer) Write(rec *Record) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create run log dir: %w", err)
	}

	path := filepath.Join(w.dir, "run-"+rec.StartedAt.UTC().Format(fileStampFormat)+".md")
	if err := os.WriteFile(path, []byte(render(rec)), 0o644); err != nil {
		return "", fmt.Errorf("write run log: %w", err)
	}
	return path, nil
}

func render(rec *Record) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# pagetender run %s (%s)\n\n", rec.RunID, rec.LocalStamp)

	sb.WriteString("## Prompt\n\n")
	writeFenced(&sb, rec.Prompt)

	sb.WriteString("## Completion\n\n")
	if rec.Completion == "" {
		sb.WriteString("_none_\n\n")
	} else {
		writeFenced(&sb, rec.Completion)
	}

	sb.WriteString("## Validation\n\n")
	fmt.Fprintf(&sb, "- outcome: %s\n", rec.ValidationOutcome)
	if rec.ValidationError != "" {
		fmt.Fprintf(&sb, "- error: %s\n", rec.ValidationError)
	}
	sb.WriteString("\n")

	sb.WriteString("## Published snippet\n\n")
	if rec.PublishedSnippet == "" {
		sb.WriteString("_none_\n\n")
	} else {
		writeFenced(&sb, rec.PublishedSnippet)
	}

	sb.WriteString("## Meta\n\n")
	fmt.Fprintf(&sb, "- run_id: %s\n", rec.RunID)
	fmt.Fprintf(&sb, "- mode: %s\n", rec.Mode)
	if rec.Model != "" {
		fmt.Fprintf(&sb, "- model: %s\n", rec.Model)
		fmt.Fprintf(&sb, "- temperature: %.2f\n", rec.Temperature)
	}
	fmt.Fprintf(&sb, "- counter: %d\n", rec.Counter)
	fmt.Fprintf(&sb, "- dry_run: %t\n", rec.DryRun)
	fmt.Fprintf(&sb, "- started_utc: %s\n", rec.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "- finished_utc: %s\n", rec.FinishedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&sb, "- prompt_tokens: %d\n", rec.PromptTokens)
	fmt.Fprintf(&sb, "- completion_tokens: %d\n", rec.CompletionTokens)
	fmt.Fprintf(&sb, "- cost_usd: %.6f\n", rec.CostUSD)
	fmt.Fprintf(&sb, "- status: %s\n", rec.Status)
	if rec.Error != "" {
		fmt.Fprintf(&sb, "- error: %s\n", rec.Error)
	}

	return sb.String()
}

// writeFenced emits a fenced block, padding the fence when the content
// itself contains backticks.
func writeFenced(sb *strings.Builder, content string) {
	fence := "```"
	for strings.Contains(content, fence) {
		fence += "`"
	}
	sb.WriteString(fence + "\n")
	sb.WriteString(content)
	if !strings.HasSuffix(content, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString(fence + "\n\n")
}
