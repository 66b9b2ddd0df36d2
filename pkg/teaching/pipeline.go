package teaching

import (
	"context"

	"preset-teaching-be/pkg/preset"
)

// Round statuses recorded for audit.
const (
	StatusUpdated   = "updated"
	StatusNoChange  = "no_change"
	StatusNoNodes   = "no_nodes"
	StatusNoApplied = "no_applied"
	StatusPlanError = "plan_error"
	StatusChatError = "chat_error"
)

// RoundResult is the outcome of one teaching round. Document is non-nil only
// when Updated is true. Errors are reported in Err, never returned.
type RoundResult struct {
	Status    string
	Updated   bool
	Document  preset.Document
	NodeCount int
	Attempts  int
	Plan      *Plan
	Patch     preset.PatchResult
	InputXML  string
	Raw       string
	Err       error
}

// Pipeline runs index, plan and patch against a document snapshot.
type Pipeline struct {
	protocol  *Protocol
	indexOpts preset.IndexOptions
}

func NewPipeline(protocol *Protocol, indexOpts preset.IndexOptions) *Pipeline {
	return &Pipeline{protocol: protocol, indexOpts: indexOpts}
}

// Index exposes the node view the pipeline would send for doc.
func (p *Pipeline) Index(doc preset.Document) *preset.Index {
	return preset.BuildIndex(doc, p.indexOpts)
}

// Run never modifies doc. The patched clone is returned when at least one
// operation applied.
func (p *Pipeline) Run(ctx context.Context, doc preset.Document, req Request) RoundResult {
	ix := p.Index(doc)
	result := RoundResult{NodeCount: ix.Len()}
	if ix.Empty() {
		result.Status = StatusNoNodes
		return result
	}

	exchange, err := p.protocol.RequestPlan(ctx, ix, req)
	if err != nil {
		result.Err = err
		result.Status = StatusPlanError
		switch e := err.(type) {
		case *ChatError:
			result.Status = StatusChatError
			result.Attempts = e.Attempt
		case *PlanError:
			result.Attempts = e.Attempts
			result.Raw = e.Raw
		}
		return result
	}

	result.Plan = exchange.Plan
	result.Attempts = exchange.Attempts
	result.InputXML = exchange.InputXML
	result.Raw = exchange.Raw
	if exchange.Plan.Empty() {
		result.Status = StatusNoChange
		return result
	}

	result.Patch = preset.ApplyAll(doc, exchange.Plan.Operations())
	if !result.Patch.Changed() {
		result.Status = StatusNoApplied
		return result
	}
	result.Status = StatusUpdated
	result.Updated = true
	result.Document = result.Patch.Document
	return result
}
