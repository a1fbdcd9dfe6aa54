package model

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

const (
	openAIBaseURL  = "https://api.openai.com/v1"
	defaultTimeout = 120 * time.Second
)

// OpenAIProvider provides completions via OpenAI's chat completions API.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// openAIModels enumerates a curated subset of models with pricing/context info.
var openAIModels = []ModelInfo{
	{
		ID:            "openai/gpt-4.1",
		Name:          "GPT-4.1",
		ContextLength: 128000,
		Pricing: ModelPricing{
			Prompt:     30.0,
			Completion: 60.0,
		},
	},
	{
		ID:            "openai/gpt-4o",
		Name:          "GPT-4o",
		ContextLength: 128000,
		Pricing: ModelPricing{
			Prompt:     5.0,
			Completion: 15.0,
		},
	},
	{
		ID:            "openai/gpt-4o-mini",
		Name:          "GPT-4o mini",
		ContextLength: 128000,
		Pricing: ModelPricing{
			Prompt:     0.15,
			Completion: 0.60,
		},
	},
	{
		ID:            "openai/o3-mini",
		Name:          "o3-mini",
		ContextLength: 200000,
		Pricing: ModelPricing{
			Prompt:     45.0,
			Completion: 90.0,
		},
	},
}

// openAIModelIndex for quick lookup
var openAIModelIndex map[string]ModelInfo

func init() {
	openAIModelIndex = make(map[string]ModelInfo, len(openAIModels))
	for _, m := range openAIModels {
		openAIModelIndex[m.ID] = m
	}
}

// NewOpenAIProvider builds a provider using the supplied API key.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = openAIBaseURL
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// ID returns provider identifier.
func (p *OpenAIProvider) ID() string {
	return "openai"
}

// GetModelInfo returns static metadata for a given model.
func (p *OpenAIProvider) GetModelInfo(modelID string) (*ModelInfo, error) {
	if info, ok := openAIModelIndex[modelID]; ok {
		return &info, nil
	}
	return nil, fmt.Errorf("openai model not found: %s", modelID)
}

// SetTimeout updates the OpenAI client timeout (0 disables timeout).
func (p *OpenAIProvider) SetTimeout(timeout time.Duration) {
	if p.httpClient != nil {
		p.httpClient.Timeout = timeout
	}
}

// ChatCompletion executes a completion request via OpenAI.
func (p *OpenAIProvider) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	req.Stream = false
	req.Model = normalizeModelForProvider(req.Model, p.ID())

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, decodeAPIError(resp)
	}

	var chatResp ChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	return &chatResp, nil
}

// decodeAPIError converts a non-200 response into a structured APIError.
func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Message:    resp.Status,
	}

	if body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16)); err == nil {
		var errResp ErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
			apiErr.Message = errResp.Error.Message
			apiErr.Type = errResp.Error.Type
			apiErr.Code = errResp.Error.Code
		}
	}

	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil {
			apiErr.RetryAfter = time.Duration(secs) * time.Second
		}
	}

	return apiErr
}
