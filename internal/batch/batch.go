// Package batch applies a caller-supplied mutation across many record ids
// with per-item failure isolation. Items run strictly sequentially in input
// order; a failing item is recorded and never aborts the rest of the batch.
package batch

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"reqtrack/api/internal/notify"
)

const DefaultMaxItems = 100

// Operation mutates a single record. The executor treats it as an opaque,
// fallible function.
type Operation func(ctx context.Context, id string) error

type Options struct {
	// MaxItems rejects oversized batches up front. Defaults to DefaultMaxItems.
	MaxItems int
	// MaxFailures stops attempting remaining items once this many have
	// failed. Zero means no early stop (threshold = batch size).
	MaxFailures int
	// Notifier receives one summary per run when set.
	Notifier notify.Notifier
	// Label names the operation in notifications and logs, e.g. "update status".
	Label string
}

type Failure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// Result is the aggregate outcome of one batch run. It is ephemeral: reported
// to the caller, never persisted.
type Result struct {
	Success    bool      `json:"success"`
	SuccessIDs []string  `json:"successIds"`
	Failures   []Failure `json:"failures"`
}

// Execute runs op over ids sequentially. Preconditions are checked before any
// op invocation: an empty batch or one larger than MaxItems is rejected with
// an all-failed result and zero side effects.
func Execute(ctx context.Context, ids []string, op Operation, opts Options) Result {
	maxItems := opts.MaxItems
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	runID := uuid.New().String()[:8]
	label := opts.Label
	if label == "" {
		label = "batch operation"
	}

	if len(ids) == 0 {
		log.Printf("batch %s: %s rejected: empty id list", runID, label)
		return rejectAll(ids, "batch is empty", opts, label)
	}
	if len(ids) > maxItems {
		log.Printf("batch %s: %s rejected: %d items exceeds limit %d", runID, label, len(ids), maxItems)
		return rejectAll(ids, fmt.Sprintf("batch exceeds limit of %d items", maxItems), opts, label)
	}

	maxFailures := opts.MaxFailures
	if maxFailures <= 0 {
		maxFailures = len(ids)
	}

	result := Result{SuccessIDs: []string{}, Failures: []Failure{}}
	for _, id := range ids {
		if len(result.Failures) >= maxFailures {
			log.Printf("batch %s: %s stopped early after %d failures, %d items unattempted",
				runID, label, len(result.Failures), len(ids)-len(result.SuccessIDs)-len(result.Failures))
			break
		}
		if err := runItem(ctx, id, op); err != nil {
			result.Failures = append(result.Failures, Failure{ID: id, Error: err.Error()})
			continue
		}
		result.SuccessIDs = append(result.SuccessIDs, id)
	}

	result.Success = len(result.Failures) == 0
	notifyOutcome(opts.Notifier, label, result)
	return result
}

// runItem isolates one op invocation, converting a panic into a recorded
// failure so a misbehaving closure cannot take down the batch.
func runItem(ctx context.Context, id string, op Operation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("operation panicked: %v", r)
		}
	}()
	return op(ctx, id)
}

func rejectAll(ids []string, reason string, opts Options, label string) Result {
	failures := make([]Failure, 0, len(ids))
	for _, id := range ids {
		failures = append(failures, Failure{ID: id, Error: reason})
	}
	result := Result{Success: false, SuccessIDs: []string{}, Failures: failures}
	if opts.Notifier != nil {
		opts.Notifier.Notify(notify.KindError, label+" rejected", reason)
	}
	return result
}

func notifyOutcome(notifier notify.Notifier, label string, result Result) {
	if notifier == nil {
		return
	}
	succeeded := len(result.SuccessIDs)
	failed := len(result.Failures)
	switch {
	case failed == 0:
		notifier.Notify(notify.KindSuccess, label+" completed",
			fmt.Sprintf("%d succeeded", succeeded))
	case succeeded == 0:
		notifier.Notify(notify.KindError, label+" failed",
			fmt.Sprintf("%d failed", failed))
	default:
		notifier.Notify(notify.KindWarning, label+" partially completed",
			fmt.Sprintf("%d succeeded, %d failed", succeeded, failed))
	}
}
