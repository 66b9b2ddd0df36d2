package llm

import (
	"context"
)

// Message is a provider agnostic chat message.
type Message struct {
	Role    string `json:"role"` // "user", "assistant", "system"
	Content string `json:"content"`
}

// Option sets optional generation parameters.
type Option func(*Options)

type Options struct {
	// Temperature is only sent when set through WithTemperature.
	Temperature    float64
	HasTemperature bool
	MaxTokens      int
	Model          string // overrides the provider default
}

func WithTemperature(temp float64) Option {
	return func(o *Options) {
		o.Temperature = temp
		o.HasTemperature = true
	}
}

func WithModel(model string) Option {
	return func(o *Options) {
		if model != "" {
			o.Model = model
		}
	}
}

func WithMaxTokens(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.MaxTokens = n
		}
	}
}

// Apply folds opts over base.
func Apply(base Options, opts ...Option) Options {
	for _, opt := range opts {
		opt(&base)
	}
	return base
}

// LLMProvider is implemented by every generator backend.
type LLMProvider interface {
	// Chat sends a chat history to the model and returns the reply text
	Chat(ctx context.Context, history []Message, options ...Option) (string, error)

	// Generate sends a single user prompt
	Generate(ctx context.Context, prompt string, options ...Option) (string, error)
}
