package batch

import (
	"context"
	"fmt"
	"log"
)

// OptimisticHooks carries the local-effect and compensation closures for
// ExecuteOptimistic. Apply is assumed cheap and local; its failures are
// logged, never escalated. Rollback is best-effort compensation for ids whose
// durable operation failed.
type OptimisticHooks struct {
	Apply    func(id string)
	Rollback func(id string) error
	// RollbackRetries is the number of additional rollback attempts after
	// the first fails. Zero keeps the single best-effort attempt.
	RollbackRetries int
}

// ExecuteOptimistic first applies the optimistic local update to every id
// unconditionally, then runs the durable operation with Execute semantics.
// Every id that ends up in Failures gets the compensating Rollback invoked.
// There is no atomicity across the batch: items that succeeded stay applied.
func ExecuteOptimistic(ctx context.Context, ids []string, op Operation, hooks OptimisticHooks, opts Options) Result {
	label := opts.Label
	if label == "" {
		label = "batch operation"
	}

	// Precondition violations produce zero side effects, so check before the
	// optimistic pass. Execute re-checks and builds the aggregate.
	maxItems := opts.MaxItems
	if maxItems <= 0 {
		maxItems = DefaultMaxItems
	}
	if len(ids) == 0 || len(ids) > maxItems {
		return Execute(ctx, ids, op, opts)
	}

	if hooks.Apply != nil {
		for _, id := range ids {
			applyOptimistic(label, id, hooks.Apply)
		}
	}

	result := Execute(ctx, ids, op, opts)

	if hooks.Rollback != nil {
		for _, failure := range result.Failures {
			rollback(label, failure.ID, hooks)
		}
	}
	return result
}

func applyOptimistic(label, id string, apply func(id string)) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("batch: %s: optimistic update for %s panicked: %v", label, id, r)
		}
	}()
	apply(id)
}

func rollback(label, id string, hooks OptimisticHooks) {
	attempts := hooks.RollbackRetries + 1
	for attempt := 1; attempt <= attempts; attempt++ {
		err := runRollback(id, hooks.Rollback)
		if err == nil {
			return
		}
		if attempt == attempts {
			log.Printf("batch: %s: rollback for %s failed after %d attempts: %v", label, id, attempts, err)
			return
		}
		log.Printf("batch: %s: rollback for %s failed (attempt %d/%d): %v", label, id, attempt, attempts, err)
	}
}

func runRollback(id string, fn func(id string) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("rollback panicked: %v", r)
		}
	}()
	return fn(id)
}
