// Package daemon runs the daemon's long-lived tasks side by side.
package daemon

import (
	"context"
	"errors"
	"fmt"

	"github.com/gyara/changeup/internal/logger"
)

// Task is a named long-lived function. Run should return when ctx is done.
type Task struct {
	Name string
	Run  func(ctx context.Context) error
}

// ErrTaskExited is reported for a task that returned nil while the others
// were still running.
var ErrTaskExited = errors.New("task exited")

// Race starts every task and returns as soon as the first one finishes,
// cancelling the rest. The returned error names the task that ended the
// race. Tasks still running after cancellation are abandoned.
func Race(ctx context.Context, tasks ...Task) error {
	if len(tasks) == 0 {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		name string
		err  error
	}
	results := make(chan result, len(tasks))
	for _, t := range tasks {
		t := t
		go func() {
			results <- result{name: t.Name, err: t.Run(ctx)}
		}()
	}

	first := <-results
	logger.WithComponent("daemon").Debug().Str("task", first.name).Msg("Task finished first")
	switch {
	case first.err == nil:
		return fmt.Errorf("%s: %w", first.name, ErrTaskExited)
	case errors.Is(first.err, context.Canceled) && ctx.Err() != nil:
		return first.err
	default:
		return fmt.Errorf("%s: %w", first.name, first.err)
	}
}
