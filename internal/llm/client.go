package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"
)

// Params identifies one model configuration. Generators are cached per tuple.
type Params struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// Registry hands out Generator instances keyed by their configuration tuple.
// It is constructed once at startup and injected into the handlers; there is
// no process-wide singleton.
type Registry struct {
	apiKey   string
	defaults Params

	mu         sync.Mutex
	generators map[Params]*Generator
}

// NewRegistry builds a registry with the provider key and default parameters.
func NewRegistry(apiKey string, defaults Params) (*Registry, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key is required")
	}
	if defaults.Model == "" {
		return nil, errors.New("default model is required")
	}
	return &Registry{
		apiKey:     apiKey,
		defaults:   defaults,
		generators: make(map[Params]*Generator),
	}, nil
}

// Default returns the generator for the startup configuration.
func (r *Registry) Default() *Generator {
	return r.Generator(r.defaults)
}

// Generator returns the cached client handle for the given tuple, creating it on first use.
func (r *Registry) Generator(p Params) *Generator {
	if p.Model == "" {
		p.Model = r.defaults.Model
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = r.defaults.MaxTokens
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.generators[p]; ok {
		return g
	}
	g := &Generator{
		client: openai.NewClient(r.apiKey),
		params: p,
	}
	r.generators[p] = g
	return g
}

// Generator invokes the generative-text model with fixed parameters.
type Generator struct {
	client *openai.Client
	params Params
}

// Generate sends the assembled prompt and returns the model output unmodified.
// Any provider failure is returned to the caller; the enclosing request treats
// it as fatal.
func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: g.params.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: float32(g.params.Temperature),
		MaxTokens:   g.params.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}
