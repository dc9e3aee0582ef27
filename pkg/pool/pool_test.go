package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
)

func TestRunPreservesSubmissionOrder(t *testing.T) {
	tasks := make([]Task, 8)
	for i := range tasks {
		tasks[i] = func() (any, error) { return i, nil }
	}

	results := Run(tasks, 3)
	if len(results) != len(tasks) {
		t.Fatalf("got %d results, want %d", len(results), len(tasks))
	}
	for i, res := range results {
		if res.Err != nil {
			t.Errorf("task %d: %v", i, res.Err)
		}
		if res.Value != i {
			t.Errorf("results[%d] = %v, want %d", i, res.Value, i)
		}
	}
}

func TestRunCapturesErrorsPerTask(t *testing.T) {
	boom := errors.New("boom")
	tasks := []Task{
		func() (any, error) { return "ok", nil },
		func() (any, error) { return nil, boom },
		func() (any, error) { return "also ok", nil },
	}

	results := Run(tasks, 2)
	if results[0].Err != nil || results[2].Err != nil {
		t.Error("healthy tasks must not inherit another task's error")
	}
	if !errors.Is(results[1].Err, boom) {
		t.Errorf("results[1].Err = %v, want boom", results[1].Err)
	}
	if results[2].Value != "also ok" {
		t.Error("tasks after a failed one must still run")
	}
}

func TestRunBoundsConcurrency(t *testing.T) {
	const threads = 2
	var active, peak atomic.Int32

	tasks := make([]Task, 10)
	for i := range tasks {
		tasks[i] = func() (any, error) {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			defer active.Add(-1)
			return nil, nil
		}
	}

	Run(tasks, threads)
	if peak.Load() > threads {
		t.Errorf("observed %d concurrent tasks, limit is %d", peak.Load(), threads)
	}
}

func TestRunFailFast(t *testing.T) {
	tasks := []Task{
		func() (any, error) { return 1, nil },
		func() (any, error) { return 2, nil },
	}
	values, err := RunFailFast(context.Background(), tasks, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(values) != 2 || values[0] != 1 || values[1] != 2 {
		t.Errorf("values = %v", values)
	}
}

func TestRunFailFastAbortsOnError(t *testing.T) {
	boom := errors.New("boom")
	tasks := []Task{
		func() (any, error) { return nil, boom },
		func() (any, error) { return "late", nil },
	}
	values, err := RunFailFast(context.Background(), tasks, 1)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if values != nil {
		t.Errorf("values = %v, want nil on failure", values)
	}
}
