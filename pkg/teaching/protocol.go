package teaching

import (
	"context"
	"errors"

	"preset-teaching-be/pkg/llm"
	"preset-teaching-be/pkg/preset"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const DefaultMaxAttempts = 2

// ProtocolConfig tunes the generator exchange.
type ProtocolConfig struct {
	MaxAttempts int
	Model       string
	MaxTokens   int
	Temperature float64
}

// Request is the input of one plan exchange.
type Request struct {
	SystemContext string
	Conversation  string
	Examples      []Example
}

// Exchange is a successful plan exchange.
type Exchange struct {
	Plan     *Plan
	InputXML string
	Raw      string
	Attempts int
}

// Protocol asks the generator for an edit plan and retries with a corrective
// message when the reply cannot be parsed. Generator call errors are returned
// as *ChatError without retry; exhausted retries return *PlanError.
type Protocol struct {
	provider llm.LLMProvider
	resolver *preset.Resolver
	cfg      ProtocolConfig
}

func NewProtocol(provider llm.LLMProvider, resolver *preset.Resolver, cfg ProtocolConfig) *Protocol {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if resolver == nil {
		resolver = preset.NewResolver()
	}
	return &Protocol{provider: provider, resolver: resolver, cfg: cfg}
}

func (p *Protocol) options() []llm.Option {
	opts := []llm.Option{llm.WithTemperature(p.cfg.Temperature)}
	if p.cfg.Model != "" {
		opts = append(opts, llm.WithModel(p.cfg.Model))
	}
	if p.cfg.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(p.cfg.MaxTokens))
	}
	return opts
}

func (p *Protocol) RequestPlan(ctx context.Context, ix *preset.Index, req Request) (*Exchange, error) {
	input := BuildRequestXML(ix, req.Conversation)
	messages := BuildMessages(req.SystemContext, req.Examples, input)
	tracer := otel.Tracer("teaching")

	var (
		lastErr error
		lastRaw string
	)
	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		attemptCtx, span := tracer.Start(ctx, "teaching.generate")
		span.SetAttributes(attribute.Int("teaching.attempt", attempt))
		reply, err := p.provider.Chat(attemptCtx, messages, p.options()...)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "generator call failed")
			span.End()
			return nil, &ChatError{Attempt: attempt, Err: err}
		}

		plan, err := ParsePlan(reply, ix, p.resolver)
		if err == nil {
			span.End()
			return &Exchange{Plan: plan, InputXML: input, Raw: reply, Attempts: attempt}, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan rejected")
		span.End()

		var perr *ParseError
		if !errors.As(err, &perr) {
			return nil, err
		}
		lastErr, lastRaw = err, reply
		messages = append(messages,
			llm.Message{Role: RoleAssistant, Content: reply},
			llm.Message{Role: RoleUser, Content: CorrectionMessage(err)},
		)
	}

	return nil, &PlanError{
		Message:  lastErr.Error(),
		Raw:      lastRaw,
		Attempts: p.cfg.MaxAttempts,
		Err:      lastErr,
	}
}
