// Copyright 2026 The seqflow Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package seqflow

import (
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"
)

// ErrorMode controls how a prefetcher propagates a failure raised by
// user code running under Get.
type ErrorMode int32

const (
	// ErrWrap always rewraps the underlying cause in an [EvaluationError].
	// This is the default.
	ErrWrap ErrorMode = iota
	// ErrPassthrough raises the original cause directly when it survived
	// transport from the worker unchanged. Causes that could not be
	// transported (process backend, unserializable value) are still
	// wrapped, since there is nothing else to raise.
	ErrPassthrough
)

// errorMode is a process-wide switch, matching the library's description
// of error_mode as a process-wide mode: a goroutine-local store has no
// first-class Go equivalent, so the mode applies to every prefetcher in
// the process. See DESIGN.md for the rationale.
var errorMode atomic.Int32

// SetErrorMode sets the process-wide error propagation mode.
func SetErrorMode(mode ErrorMode) {
	errorMode.Store(int32(mode))
}

// GetErrorMode returns the current process-wide error propagation mode.
func GetErrorMode() ErrorMode {
	return ErrorMode(errorMode.Load())
}

// EvaluationError wraps a failure observed while evaluating a pipeline
// item. It carries the item index that failed, the stack captured when
// the prefetcher was constructed (not when the failure occurred — the
// failure itself usually happens on a worker goroutine or in another
// process, where the stack is not useful to the caller), and the
// underlying cause when one could be transported.
type EvaluationError struct {
	// ItemIndex is the index passed to Get that failed.
	ItemIndex int64
	// Cause is the original error, or nil if it could not be transported
	// (e.g. across a process boundary) and only its string form survived.
	Cause error
	// CauseText is the stringified cause, always populated, used when
	// Cause is nil.
	CauseText string
	// stack is captured with errors.WithStack at the prefetcher's
	// construction site.
	stack error
}

func (e *EvaluationError) Error() string {
	msg := e.CauseText
	if e.Cause != nil {
		msg = e.Cause.Error()
	}
	return fmt.Sprintf("seqflow: evaluation failed at index %d: %s", e.ItemIndex, msg)
}

// Unwrap returns the underlying cause, so errors.Is/errors.As can reach
// through an EvaluationError to the user's own error values. Returns nil
// when the cause could not be transported.
func (e *EvaluationError) Unwrap() error {
	return e.Cause
}

// StackTrace returns the stack captured at the prefetcher's construction
// site, for diagnostics.
func (e *EvaluationError) StackTrace() errors.StackTrace {
	type stackTracer interface {
		StackTrace() errors.StackTrace
	}
	if st, ok := e.stack.(stackTracer); ok {
		return st.StackTrace()
	}
	return nil
}

// newEvaluationError builds an EvaluationError using a stack captured at
// prefetcher construction time.
func newEvaluationError(constructionStack error, itemIndex int64, cause error) *EvaluationError {
	ee := &EvaluationError{
		ItemIndex: itemIndex,
		Cause:     cause,
		stack:     constructionStack,
	}
	if cause != nil {
		ee.CauseText = cause.Error()
	}
	return ee
}

// newEvaluationErrorFromText builds an EvaluationError whose cause could
// not be transported; only the stringified form survived (for example,
// the original error crossed a process boundary and was not
// serializable).
func newEvaluationErrorFromText(constructionStack error, itemIndex int64, causeText string) *EvaluationError {
	return &EvaluationError{
		ItemIndex: itemIndex,
		CauseText: causeText,
		stack:     constructionStack,
	}
}

// resolve applies the process-wide error mode to a completed-but-failed
// item, deciding whether the caller sees the raw cause or an
// EvaluationError wrapper.
func (e *EvaluationError) resolve() error {
	if GetErrorMode() == ErrPassthrough && e.Cause != nil {
		return e.Cause
	}
	return e
}

// IndexOutOfRange is raised synchronously by a combinator when an index
// falls outside [-len, len) for a finite view.
type IndexOutOfRange struct {
	Index int
	Len   int
}

func (e *IndexOutOfRange) Error() string {
	return fmt.Sprintf("seqflow: index %d out of range for length %d", e.Index, e.Len)
}

// InvalidIndex is raised when an index or slice specification cannot be
// normalized (e.g. a zero step, or a non-dividing split count).
type InvalidIndex struct {
	Reason string
}

func (e *InvalidIndex) Error() string {
	return "seqflow: invalid index: " + e.Reason
}

// LengthMismatch is raised at construction time by combinators that
// require their inputs to agree on length (collate).
type LengthMismatch struct {
	Lens []int
}

func (e *LengthMismatch) Error() string {
	return fmt.Sprintf("seqflow: length mismatch among inputs: %v", e.Lens)
}

// ValueOutOfRange is raised by combinators whose parameters must satisfy
// a numeric constraint (a non-positive batch size, a negative cache
// size, and similar).
type ValueOutOfRange struct {
	Name  string
	Value int
}

func (e *ValueOutOfRange) Error() string {
	return fmt.Sprintf("seqflow: %s value %d out of range", e.Name, e.Value)
}

// BufferExhausted is the fatal infrastructure error for a shared-memory
// arena whose free set stays empty after a garbage-collection retry. No
// code path in this module returns it: the process backend binds ring
// slot k to arena slot k and never allocates through arena.Fetch, and
// arena.Fetch reports its own exhaustion as arena.ErrExhausted.
type BufferExhausted struct{}

func (e *BufferExhausted) Error() string {
	return "seqflow: shared-memory arena exhausted; hold fewer outstanding items or reduce MaxBuffered"
}

// ConfigError is raised synchronously by Prefetch/PrefetchProcess when
// the supplied options are mutually inconsistent (for example, asking
// Prefetch for the process backend, which only PrefetchProcess can
// provide, since only it can transport a result across a process
// boundary).
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return "seqflow: invalid configuration: " + e.Reason
}

// WorkerDied is a fatal infrastructure error raised at the next
// WaitCompletion after the backend's heartbeat monitor observes an
// unrecoverable worker death. The pipeline becomes unusable once this is
// raised.
type WorkerDied struct {
	WorkerID int
}

func (e *WorkerDied) Error() string {
	return fmt.Sprintf("seqflow: worker %d died", e.WorkerID)
}
