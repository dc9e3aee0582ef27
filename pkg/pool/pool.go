// Package pool is a small bounded fan-out utility for running independent
// no-argument tasks concurrently. The lineage core itself is synchronous;
// callers use this to analyze several selectors or manifests in parallel.
package pool

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Task is one unit of work.
type Task func() (any, error)

// TaskResult pairs a task's value with its error, in submission order.
type TaskResult struct {
	Value any
	Err   error
}

// Run executes the tasks on at most threads workers and returns one
// result per task, in submission order. Errors are captured per task,
// never aborting the batch.
func Run(tasks []Task, threads int) []TaskResult {
	if threads <= 0 {
		threads = 4
	}

	results := make([]TaskResult, len(tasks))
	sem := make(chan struct{}, threads)
	var wg sync.WaitGroup

	for i, task := range tasks {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			value, err := task()
			results[i] = TaskResult{Value: value, Err: err}
		}()
	}

	wg.Wait()
	return results
}

// RunFailFast executes the tasks with a bounded errgroup and returns the
// values in submission order, aborting outstanding work on the first
// error.
func RunFailFast(ctx context.Context, tasks []Task, threads int) ([]any, error) {
	if threads <= 0 {
		threads = 4
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(threads)

	values := make([]any, len(tasks))
	for i, task := range tasks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			value, err := task()
			if err != nil {
				return fmt.Errorf("task %d: %w", i, err)
			}
			values[i] = value
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return values, nil
}
