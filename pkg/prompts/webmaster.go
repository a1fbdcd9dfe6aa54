package prompts

import (
	"fmt"
	"os"
	"strings"
)

// PromptConfig holds the inputs for one generation request.
type PromptConfig struct {
	Counter        int    // iteration counter from persisted state
	PreviousRegion string // current content of the editable region
	Brief          string // project brief (on-disk override or built-in)
	TimestampID    string // id of the element whose text the injector rewrites
}

// SystemPrompt returns the fixed system role for the webmaster.
func SystemPrompt() string {
	return "You are an autonomous webmaster tending a small static web page. " +
		"You answer with raw HTML fragments and nothing else."
}

// defaultBrief is the built-in project brief, used when no prompt file
// is configured or present.
const defaultBrief = `The page is a minimal personal landing page. Redesign the editable
region with tasteful, self-contained HTML.`

// LoadBrief returns the project brief: the file at path when it exists,
// otherwise the built-in default.
func LoadBrief(path string) string {
	if path != "" {
		if data, err := os.ReadFile(path); err == nil && len(strings.TrimSpace(string(data))) > 0 {
			return string(data)
		}
	}
	return defaultBrief
}

// ambition maps the iteration counter to how bold the requested change
// should be. Early runs nudge, later runs push for larger visual
// departures.
func ambition(counter int) string {
	switch {
	case counter < 5:
		return "Make a subtle refinement: adjust copy, spacing, or a single color."
	case counter < 15:
		return "Make a noticeable change: rework a section's layout or typography."
	case counter < 40:
		return "Be bold: redesign the region's structure and visual hierarchy."
	default:
		return "Be radical: reinvent the region completely while keeping it tasteful."
	}
}

// BuildUserPrompt assembles the user message for one run.
func BuildUserPrompt(cfg PromptConfig) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "This is iteration %d of an ongoing redesign. %s\n\n", cfg.Counter, ambition(cfg.Counter))

	sb.WriteString("HARD RULES:\n")
	sb.WriteString("- Output ONLY an HTML fragment. No markdown, no code fences, no commentary.\n")
	sb.WriteString("- No <!DOCTYPE>, <html>, <head>, or <body> tags.\n")
	sb.WriteString("- No scripts and nothing that loads external resources (no <script>, <img>, <link>, <iframe>, <video>, ...).\n")
	sb.WriteString("- Style with inline style attributes only.\n")
	fmt.Fprintf(&sb, "- Include exactly one <span id=%q></span>; leave its text empty, it is filled in later.\n", cfg.TimestampID)
	sb.WriteString("- Every opened tag must be closed and properly nested.\n\n")

	if strings.TrimSpace(cfg.PreviousRegion) != "" {
		sb.WriteString("Current content of the region:\n")
		sb.WriteString(cfg.PreviousRegion)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Project brief:\n")
	sb.WriteString(cfg.Brief)

	return sb.String()
}

// CounterSnippet is the deterministic non-LLM generator: a fixed-shape
// fragment carrying the iteration counter. It flows through the same
// validator as model output.
func CounterSnippet(counter int, timestampID string) string {
	return fmt.Sprintf(
		`<p>Iteration <strong>%d</strong></p><span id=%q></span>`,
		counter, timestampID,
	)
}
