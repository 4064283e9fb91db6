// Package executor defines the boundary to the capability that
// actually performs an item's work, plus the failure taxonomy the
// engine uses to decide whether a failed step may be retried.
package executor

import "context"

// Invoker performs the work for a single item. Implementations live
// outside the scheduling engine: the engine only dispatches and
// classifies failures.
type Invoker interface {
	// Invoke runs the named item with the given input payload and
	// returns its output. A returned error should be an *Error so the
	// engine can classify it; anything else is treated as permanent.
	Invoke(ctx context.Context, item string, input map[string]any) (map[string]any, error)
}

// InvokerFunc adapts a function to the Invoker interface.
type InvokerFunc func(ctx context.Context, item string, input map[string]any) (map[string]any, error)

// Invoke calls the underlying function.
func (f InvokerFunc) Invoke(ctx context.Context, item string, input map[string]any) (map[string]any, error) {
	return f(ctx, item, input)
}
