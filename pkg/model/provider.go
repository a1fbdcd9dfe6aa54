package model

import (
	"context"
	"strings"
	"time"

	pterrors "github.com/natwellis/pagetender/pkg/errors"
)

// Provider defines the behavior required for an LLM backend.
type Provider interface {
	ID() string
	GetModelInfo(modelID string) (*ModelInfo, error)
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// TimeoutConfigurer is an optional interface for providers that can
// adjust request timeouts.
type TimeoutConfigurer interface {
	SetTimeout(timeout time.Duration)
}

// Registry holds the configured providers.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates a registry over the given providers.
func NewRegistry(providers ...Provider) *Registry {
	reg := &Registry{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		reg.providers[p.ID()] = p
	}
	return reg
}

// Get returns the provider registered under the given name.
func (r *Registry) Get(name string) (Provider, error) {
	p, ok := r.providers[name]
	if !ok {
		return nil, pterrors.New(pterrors.ErrCodeModelNotFound, "provider not configured").
			WithContext("provider", name)
	}
	return p, nil
}

// normalizeModelForProvider strips the provider prefix (openai/, ...)
// before sending requests to the underlying API.
func normalizeModelForProvider(modelID, providerID string) string {
	prefix := providerID + "/"
	if strings.HasPrefix(modelID, prefix) {
		return strings.TrimPrefix(modelID, prefix)
	}
	return modelID
}
