package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/natwellis/pagetender/pkg/model"
)

func TestCountTokensNonEmpty(t *testing.T) {
	n := CountTokens("Hello, world! This is a token counting test.")
	assert.Greater(t, n, 0)
	assert.Less(t, n, 50)
}

func TestCountTokensForMessagesIncludesOverhead(t *testing.T) {
	messages := []model.Message{
		{Role: "system", Content: "You are a webmaster."},
		{Role: "user", Content: "Redesign the region."},
	}
	total := CountTokensForMessages(messages)
	bare := CountTokens("You are a webmaster.") + CountTokens("Redesign the region.")
	assert.Greater(t, total, bare, "per-message framing should add overhead")
}

func TestEstimatorUsesReportedUsage(t *testing.T) {
	est := NewEstimator(&model.ModelInfo{
		ID:      "openai/gpt-4o-mini",
		Pricing: model.ModelPricing{Prompt: 0.15, Completion: 0.60},
	})

	out := est.ForUsage(model.Usage{PromptTokens: 1_000_000, CompletionTokens: 500_000}, nil, "")
	assert.Equal(t, 1_000_000, out.PromptTokens)
	assert.Equal(t, 500_000, out.CompletionTokens)
	assert.Equal(t, 1_500_000, out.TotalTokens)
	assert.InDelta(t, 0.15+0.30, out.CostUSD, 1e-9)
}

func TestEstimatorFillsGapsLocally(t *testing.T) {
	est := NewEstimator(&model.ModelInfo{
		Pricing: model.ModelPricing{Prompt: 1.0, Completion: 1.0},
	})
	messages := []model.Message{{Role: "user", Content: "count me"}}

	out := est.ForUsage(model.Usage{}, messages, "<p>generated output</p>")
	assert.Greater(t, out.PromptTokens, 0)
	assert.Greater(t, out.CompletionTokens, 0)
	assert.Greater(t, out.CostUSD, 0.0)
}

func TestEstimatorNilPricing(t *testing.T) {
	est := NewEstimator(nil)
	out := est.ForUsage(model.Usage{PromptTokens: 10, CompletionTokens: 10}, nil, "")
	assert.Equal(t, 20, out.TotalTokens)
	assert.Zero(t, out.CostUSD)
}
