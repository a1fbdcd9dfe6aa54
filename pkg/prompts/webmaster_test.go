package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestBuildUserPromptMentionsCounterAndRules(t *testing.T) {
	prompt := BuildUserPrompt(PromptConfig{
		Counter:     7,
		Brief:       "Keep it minimal.",
		TimestampID: "last-updated",
	})

	if !strings.Contains(prompt, "iteration 7") {
		t.Fatalf("prompt should thread the counter: %s", prompt)
	}
	if !strings.Contains(prompt, `"last-updated"`) {
		t.Fatal("prompt should name the timestamp element id")
	}
	if !strings.Contains(prompt, "Keep it minimal.") {
		t.Fatal("prompt should include the brief")
	}
}

func TestAmbitionEscalatesWithCounter(t *testing.T) {
	early := BuildUserPrompt(PromptConfig{Counter: 1, Brief: "b", TimestampID: "x"})
	late := BuildUserPrompt(PromptConfig{Counter: 50, Brief: "b", TimestampID: "x"})

	if !strings.Contains(early, "subtle") {
		t.Fatalf("early runs should ask for subtle changes: %s", early)
	}
	if !strings.Contains(late, "radical") {
		t.Fatalf("late runs should ask for radical changes: %s", late)
	}
}

func TestBuildUserPromptIncludesPreviousRegion(t *testing.T) {
	prompt := BuildUserPrompt(PromptConfig{
		Counter:        3,
		PreviousRegion: "<p>what was there before</p>",
		Brief:          "b",
		TimestampID:    "x",
	})
	if !strings.Contains(prompt, "what was there before") {
		t.Fatal("prompt should carry the previous region content")
	}
}

func TestLoadBriefPrefersFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "webmaster.md")
	if err := os.WriteFile(path, []byte("custom brief from disk"), 0o644); err != nil {
		t.Fatalf("write brief: %v", err)
	}

	if got := LoadBrief(path); got != "custom brief from disk" {
		t.Fatalf("expected on-disk brief, got %q", got)
	}
	if got := LoadBrief(filepath.Join(dir, "missing.md")); got != defaultBrief {
		t.Fatalf("expected built-in brief, got %q", got)
	}
	if got := LoadBrief(""); got != defaultBrief {
		t.Fatalf("expected built-in brief for empty path, got %q", got)
	}
}

func TestCounterSnippetShape(t *testing.T) {
	snippet := CounterSnippet(12, "last-updated")
	if !strings.Contains(snippet, "<strong>12</strong>") {
		t.Fatalf("counter missing: %s", snippet)
	}
	if !strings.Contains(snippet, `<span id="last-updated"></span>`) {
		t.Fatalf("timestamp span missing: %s", snippet)
	}
}
