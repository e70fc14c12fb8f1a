package llm

import (
	"context"
	"fmt"
)

// Message represents a chat message in a provider-agnostic format
type Message struct {
	Role    string // "user", "assistant", "system"
	Content string
	Images  []string // optional inline attachments (data URIs), vision-capable models only
}

// Option allows for optional parameters like Temperature, MaxTokens, etc.
type Option func(*Options)

type Options struct {
	Temperature  float64
	MaxTokens    int
	Model        string // Override default model
	SystemPrompt string
	WebSearch    bool
	DeepResearch bool
	ToolServers  []string // auxiliary tool-server identifiers forwarded to the provider
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		o.Model = model
	}
}

func WithSystemPrompt(prompt string) Option {
	return func(o *Options) {
		o.SystemPrompt = prompt
	}
}

func WithWebSearch(enabled bool) Option {
	return func(o *Options) {
		o.WebSearch = enabled
	}
}

func WithDeepResearch(enabled bool) Option {
	return func(o *Options) {
		o.DeepResearch = enabled
	}
}

func WithToolServers(ids []string) Option {
	return func(o *Options) {
		o.ToolServers = ids
	}
}

// StreamHandle is a pull-based sequence of UTF-8 text chunks from an in-flight
// completion. Recv returns io.EOF when the stream ends, including after Cancel:
// cancellation is a normal completion, not an error.
type StreamHandle interface {
	Recv() (string, error)
	Cancel()
}

// ProviderError is returned when the provider answers with a non-stream error
// response instead of a chunk stream.
type ProviderError struct {
	StatusCode int
	Code       string
	Message    string
	Raw        string
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("provider error: status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("provider error: status %d: %s", e.StatusCode, e.Raw)
}

// LLMProvider defines the contract for any LLM backend
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the full response
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// ChatStream sends a chat history and returns an incrementally-readable
	// chunk stream. A non-stream error response surfaces as *ProviderError.
	ChatStream(ctx context.Context, history []Message, options ...Option) (StreamHandle, error)

	// Generate sends a single prompt to the model (convenience method)
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}
