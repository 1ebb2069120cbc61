// Package orchestrator runs batches of tasks under an optional deadline and
// returns their outcomes in request order.
package orchestrator

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/adrian-goe/gladvent/internal/pipeline"
	"github.com/adrian-goe/gladvent/internal/report"
	"github.com/adrian-goe/gladvent/internal/task"
)

// Deadline bounds a whole batch. The zero value is Endless.
type Deadline struct {
	after  time.Duration
	ending bool
}

// Endless runs every task to completion.
func Endless() Deadline { return Deadline{} }

// Ending gives the batch d to finish. Non-positive durations mean Endless.
func Ending(d time.Duration) Deadline {
	if d <= 0 {
		return Endless()
	}
	return Deadline{after: d, ending: true}
}

// Bounded reports whether the deadline limits the batch.
func (d Deadline) Bounded() bool { return d.ending }

// After is the time budget of a bounded deadline.
func (d Deadline) After() time.Duration { return d.after }

func (d Deadline) String() string {
	if !d.ending {
		return "endless"
	}
	return d.after.String()
}

// TaskRunner runs one task. *pipeline.Executor is the production
// implementation.
type TaskRunner interface {
	Run(id task.ID) pipeline.Outcome
}

// Orchestrator dispatches tasks to a bounded pool of goroutines.
type Orchestrator struct {
	runner   TaskRunner
	workers  int
	deadline Deadline
	logger   *zap.Logger
}

// New creates an orchestrator. workers <= 0 means no cap on concurrently
// running tasks.
func New(runner TaskRunner, workers int, deadline Deadline, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		runner:   runner,
		workers:  workers,
		deadline: deadline,
		logger:   logger,
	}
}

// RunBatch runs ids and renders one report per task, in request order.
func (o *Orchestrator) RunBatch(ctx context.Context, ids []task.ID) []string {
	return report.RenderBatch(o.Run(ctx, ids))
}

// Run executes ids and returns one outcome per id, in request order.
//
// When the deadline expires or ctx is cancelled, Run stops waiting. Tasks
// still running are abandoned: their goroutines finish in the background and
// their results are dropped. Tasks not yet started are never started. Both
// get an aborted placeholder outcome.
func (o *Orchestrator) Run(ctx context.Context, ids []task.ID) []pipeline.Outcome {
	start := time.Now()
	o.logger.Debug("Batch started",
		zap.Int("tasks", len(ids)),
		zap.Int("workers", o.workers),
		zap.Stringer("deadline", o.deadline))

	var outcomes []pipeline.Outcome
	if o.workers == 1 && !o.deadline.Bounded() && ctx.Done() == nil {
		outcomes = o.runInline(ids)
	} else {
		outcomes = o.runPool(ctx, ids)
	}

	o.logger.Debug("Batch finished",
		zap.Int("tasks", len(ids)),
		zap.Duration("elapsed", time.Since(start)))
	return outcomes
}

// runInline keeps a sequential, uncancellable batch on the caller's
// goroutine, so a Strict mode crash surfaces from the caller.
func (o *Orchestrator) runInline(ids []task.ID) []pipeline.Outcome {
	outcomes := make([]pipeline.Outcome, len(ids))
	for i, id := range ids {
		outcomes[i] = o.runner.Run(id)
	}
	return outcomes
}

type slot struct {
	outcome pipeline.Outcome
	done    bool
}

func (o *Orchestrator) runPool(ctx context.Context, ids []task.ID) []pipeline.Outcome {
	if o.deadline.Bounded() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.deadline.After())
		defer cancel()
	}

	var mu sync.Mutex
	slots := make([]slot, len(ids))
	finished := make(chan struct{})

	go func() {
		defer close(finished)

		var g errgroup.Group
		if o.workers > 0 {
			g.SetLimit(o.workers)
		}
		for i, id := range ids {
			if ctx.Err() != nil {
				break
			}
			i, id := i, id
			g.Go(func() error {
				// A worker freed up after the deadline must not start new work.
				if ctx.Err() != nil {
					return nil
				}
				out := o.runner.Run(id)
				mu.Lock()
				slots[i] = slot{outcome: out, done: true}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-finished:
	case <-ctx.Done():
		o.logger.Warn("Batch interrupted, abandoning unfinished tasks",
			zap.Stringer("deadline", o.deadline),
			zap.Error(ctx.Err()))
	}

	mu.Lock()
	defer mu.Unlock()
	outcomes := make([]pipeline.Outcome, len(ids))
	for i, id := range ids {
		if slots[i].done {
			outcomes[i] = slots[i].outcome
			continue
		}
		outcomes[i] = pipeline.Aborted(id, o.placeholder(ctx, id))
	}
	return outcomes
}

func (o *Orchestrator) placeholder(ctx context.Context, id task.ID) *pipeline.RunError {
	if o.deadline.Bounded() && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return pipeline.NewTimedOut(id, o.deadline)
	}
	return pipeline.NewOther(id, "run cancelled before the task finished")
}
