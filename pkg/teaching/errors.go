package teaching

import (
	"errors"
	"fmt"
	"strings"
)

// ErrQueueStopped is returned for jobs submitted to, or still waiting in, a stopped queue.
var ErrQueueStopped = errors.New("teaching queue stopped")

// ParseError means the generator replied but the reply held no usable plan.
// It is the only error that triggers a corrective retry.
type ParseError struct {
	Reason  string
	Unknown []UnknownRef
}

func (e *ParseError) Error() string {
	if len(e.Unknown) == 0 {
		return e.Reason
	}
	refs := make([]string, 0, len(e.Unknown))
	for _, u := range e.Unknown {
		refs = append(refs, u.String())
	}
	return fmt.Sprintf("%s (unresolved: %s)", e.Reason, strings.Join(refs, "; "))
}

// ChatError wraps a generator call failure. Rounds end on it without retry.
type ChatError struct {
	Attempt int
	Err     error
}

func (e *ChatError) Error() string {
	return fmt.Sprintf("generator call failed on attempt %d: %v", e.Attempt, e.Err)
}

func (e *ChatError) Unwrap() error { return e.Err }

// PlanError is the terminal failure after every attempt produced a ParseError.
// Raw holds the last reply for diagnostics.
type PlanError struct {
	Message  string
	Raw      string
	Attempts int
	Err      error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("no usable edit plan after %d attempts: %s", e.Attempts, e.Message)
}

func (e *PlanError) Unwrap() error { return e.Err }
