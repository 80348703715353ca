// Package errors implements the shared, non-fatal error accumulator
// described in spec §7: every pipeline stage that can fail appends one
// or more types.TriageError values here instead of aborting.
package errors

import (
	"fmt"

	"github.com/greyhatlabs/triage/internal/types"
)

// Accumulator collects TriageErrors across pipeline stages, deduplicating
// by (kind, message) as required by spec §7.
type Accumulator struct {
	errs []types.TriageError
	seen map[types.TriageError]struct{}
}

// NewAccumulator returns an empty Accumulator ready for use.
func NewAccumulator() *Accumulator {
	return &Accumulator{seen: make(map[types.TriageError]struct{})}
}

// Add records an error, silently dropping exact (kind, message) repeats.
func (a *Accumulator) Add(kind types.ErrorKind, format string, args ...any) {
	e := types.TriageError{Kind: kind}
	if format != "" {
		e.Message = fmt.Sprintf(format, args...)
	}
	if _, dup := a.seen[e]; dup {
		return
	}
	a.seen[e] = struct{}{}
	a.errs = append(a.errs, e)
}

// AddErr records an underlying error under the given kind.
func (a *Accumulator) AddErr(kind types.ErrorKind, err error) {
	if err == nil {
		return
	}
	a.Add(kind, "%v", err)
}

// Errors returns the accumulated errors in insertion order, or nil if
// none were recorded (so the artifact's "errors" field stays omitted).
func (a *Accumulator) Errors() []types.TriageError {
	if len(a.errs) == 0 {
		return nil
	}
	return a.errs
}

// Len reports how many distinct errors have been recorded.
func (a *Accumulator) Len() int {
	return len(a.errs)
}
