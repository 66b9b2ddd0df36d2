package preset

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type OpType string

const (
	OpAdd    OpType = "add"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
	OpToggle OpType = "toggle"
)

func (t OpType) Valid() bool {
	switch t {
	case OpAdd, OpUpdate, OpDelete, OpToggle:
		return true
	}
	return false
}

// Operation is a single edit against a path.
type Operation struct {
	Op     OpType      `json:"op"`
	Path   string      `json:"path"`
	Value  interface{} `json:"value,omitempty"`
	Reason string      `json:"reason,omitempty"`
}

// OpOutcome records what one operation did. NoopValue marks an update or add
// that wrote a value equal to the one already there; it still counts as applied.
type OpOutcome struct {
	Operation
	Before    interface{} `json:"before,omitempty"`
	After     interface{} `json:"after,omitempty"`
	NoopValue bool        `json:"noop_value,omitempty"`
	Error     string      `json:"error,omitempty"`

	Err error `json:"-"`
}

type PatchResult struct {
	// Document is the patched clone, nil when no operation applied.
	Document Document
	Applied  []OpOutcome
	Failed   []OpOutcome
}

func (r PatchResult) Changed() bool {
	return len(r.Applied) > 0
}

// ApplyAll evaluates ops in order against a clone of doc. A failing operation
// is skipped and leaves no trace in the clone; doc itself is never modified.
func ApplyAll(doc Document, ops []Operation) PatchResult {
	var result PatchResult
	working := doc.Clone()
	if working == nil {
		working = Document{}
	}

	for _, op := range ops {
		trial := working.Clone()
		outcome := Apply(trial, op)
		if outcome.Err != nil {
			result.Failed = append(result.Failed, outcome)
			continue
		}
		working = trial
		result.Applied = append(result.Applied, outcome)
	}

	if len(result.Applied) > 0 {
		result.Document = working
	}
	return result
}

// Apply runs op against root in place.
func Apply(root Document, op Operation) OpOutcome {
	out := OpOutcome{Operation: op}
	fail := func(err error) OpOutcome {
		out.Err = err
		out.Error = err.Error()
		return out
	}

	if !op.Op.Valid() {
		return fail(fmt.Errorf("%w: %q", ErrUnknownOp, op.Op))
	}
	segs, err := ParsePath(op.Path)
	if err != nil {
		return fail(err)
	}

	loc, err := Resolve(root, segs, op.Op == OpAdd)
	if err != nil {
		return fail(err)
	}
	before, exists := loc.Get()
	if exists {
		out.Before = cloneValue(before)
	}

	switch op.Op {
	case OpAdd:
		if err := loc.Set(cloneValue(op.Value)); err != nil {
			return fail(err)
		}
		out.After = op.Value
		out.NoopValue = exists && sameValue(before, op.Value)

	case OpUpdate:
		if !exists {
			return fail(fmt.Errorf("%w: %s", ErrNotFound, op.Path))
		}
		if err := loc.Set(cloneValue(op.Value)); err != nil {
			return fail(err)
		}
		out.After = op.Value
		out.NoopValue = sameValue(before, op.Value)

	case OpDelete:
		if !exists {
			return fail(fmt.Errorf("%w: %s", ErrNotFound, op.Path))
		}
		if err := loc.Delete(); err != nil {
			return fail(err)
		}

	case OpToggle:
		next, ok := toggled(before, exists, op.Value)
		if !ok {
			return fail(fmt.Errorf("%w: %s", ErrNotBoolean, op.Path))
		}
		if err := loc.Set(next); err != nil {
			return fail(err)
		}
		out.After = next
	}
	return out
}

func toggled(current interface{}, exists bool, explicit interface{}) (bool, bool) {
	if b, ok := current.(bool); ok && exists {
		return !b, true
	}
	if b, ok := explicit.(bool); ok {
		return b, true
	}
	return false, false
}

func sameValue(a, b interface{}) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return bytes.Equal(ab, bb)
}
