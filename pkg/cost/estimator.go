package cost

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"

	"github.com/natwellis/pagetender/pkg/model"
)

var (
	// tokenEncoder is the shared tiktoken encoder
	tokenEncoder *tiktoken.Tiktoken
	encoderOnce  sync.Once
	encoderErr   error
)

// initTokenEncoder initializes the tiktoken encoder (lazy initialization)
func initTokenEncoder() error {
	encoderOnce.Do(func() {
		// cl100k_base covers the GPT-4 family
		tokenEncoder, encoderErr = tiktoken.GetEncoding("cl100k_base")
	})
	return encoderErr
}

// CountTokens counts the number of tokens in a text using tiktoken,
// falling back to a chars/4 estimate when the encoder cannot load.
func CountTokens(text string) int {
	if err := initTokenEncoder(); err != nil {
		return estimateTokens(text)
	}
	return len(tokenEncoder.Encode(text, nil, nil))
}

// CountTokensForMessages counts tokens for a list of messages,
// accounting for per-message formatting overhead.
func CountTokensForMessages(messages []model.Message) int {
	if err := initTokenEncoder(); err != nil {
		total := 0
		for _, msg := range messages {
			total += estimateTokens(msg.Content) + 4
		}
		return total
	}

	total := 0
	for _, msg := range messages {
		// Roughly 4 tokens of framing per message
		total += 4
		total += len(tokenEncoder.Encode(msg.Role, nil, nil))
		total += len(tokenEncoder.Encode(msg.Content, nil, nil))
	}
	return total
}

// estimateTokens approximates token count as chars/4.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

// Estimate is the token/cost accounting attached to a run record.
type Estimate struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
}

// Estimator converts token counts into dollar estimates using the
// model's pricing table.
type Estimator struct {
	info *model.ModelInfo
}

// NewEstimator builds an estimator for the given model; info may be nil
// when pricing is unknown, in which case costs come back as zero.
func NewEstimator(info *model.ModelInfo) *Estimator {
	return &Estimator{info: info}
}

// ForUsage builds an estimate from API-reported usage. Reported counts
// win; locally counted values only fill gaps.
func (e *Estimator) ForUsage(usage model.Usage, messages []model.Message, completion string) Estimate {
	est := Estimate{
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
	}
	if est.PromptTokens == 0 {
		est.PromptTokens = CountTokensForMessages(messages)
	}
	if est.CompletionTokens == 0 && completion != "" {
		est.CompletionTokens = CountTokens(completion)
	}
	est.TotalTokens = est.PromptTokens + est.CompletionTokens
	est.CostUSD = e.cost(est.PromptTokens, est.CompletionTokens)
	return est
}

// cost converts token counts to dollars: pricing is per million tokens.
func (e *Estimator) cost(promptTokens, completionTokens int) float64 {
	if e.info == nil {
		return 0
	}
	prompt := float64(promptTokens) / 1_000_000 * e.info.Pricing.Prompt
	completion := float64(completionTokens) / 1_000_000 * e.info.Pricing.Completion
	return prompt + completion
}
