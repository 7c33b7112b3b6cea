package sweep

import (
	"context"

	"golang.org/x/sync/errgroup"

	"sfhtools/internal/core"
)

// Runner executes a single invocation.
//
// A non-zero exit is reported through the result; a non-nil error means the
// process could not be run to completion.
type Runner interface {
	Execute(ctx context.Context, inv core.Invocation) (*core.ExecutionResult, error)
}

// Outcome is the result of dispatching one task.
type Outcome struct {
	Task       Task
	Result     *core.ExecutionResult
	Err        error
	Dispatched bool
}

// Dispatch runs every task on at most workers goroutines and blocks until
// all of them finish.
//
// Outcomes are returned in task order regardless of completion order. A
// failing task never stops its siblings; only ctx cancellation stops
// dispatch, and tasks not yet started are returned with Dispatched false.
// Tasks carrying a PrepErr are not executed; their outcome carries that error.
func Dispatch(ctx context.Context, tasks []Task, workers int, runner Runner) []Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	if workers <= 0 {
		workers = 1
	}

	out := make([]Outcome, len(tasks))
	var g errgroup.Group
	g.SetLimit(workers)

	for i := range tasks {
		task := tasks[i]
		if task.PrepErr != nil {
			out[i] = Outcome{Task: task, Err: task.PrepErr}
			continue
		}
		if ctx.Err() != nil {
			out[i] = Outcome{Task: task}
			continue
		}
		g.Go(func() error {
			// The slot may have freed up only after cancellation.
			if ctx.Err() != nil {
				out[i] = Outcome{Task: task}
				return nil
			}
			res, err := runner.Execute(ctx, task.Invocation)
			out[i] = Outcome{Task: task, Result: res, Err: err, Dispatched: true}
			return nil
		})
	}

	// Goroutines never return errors: failures are data in out.
	_ = g.Wait()
	return out
}
