// Package pipeline runs one task end to end: resolve its functions, load its
// input, parse, then run both parts, each stage behind the crash barrier.
package pipeline

import (
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/adrian-goe/gladvent/internal/crash"
	"github.com/adrian-goe/gladvent/internal/input"
	"github.com/adrian-goe/gladvent/internal/solution"
	"github.com/adrian-goe/gladvent/internal/task"
)

// Resolver looks up the functions for a task.
type Resolver interface {
	Resolve(id task.ID) (solution.Runner, error)
}

// InputSource supplies the raw input for a task.
type InputSource interface {
	Load(id task.ID, variant task.Variant) (string, error)
}

// Executor runs single tasks. It holds no per-task state and is safe for
// concurrent use when its Resolver and InputSource are.
type Executor struct {
	resolver Resolver
	inputs   InputSource
	mode     crash.Mode
	variant  task.Variant
	logger   *zap.Logger
}

// NewExecutor creates an executor. A nil logger discards output.
func NewExecutor(resolver Resolver, inputs InputSource, mode crash.Mode, variant task.Variant, logger *zap.Logger) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Executor{
		resolver: resolver,
		inputs:   inputs,
		mode:     mode,
		variant:  variant,
		logger:   logger,
	}
}

// Run executes one task. Resolve, read and parse failures abort the task;
// part failures are recorded per part. In Strict mode a failure in user code
// panics out of Run.
func (e *Executor) Run(id task.ID) Outcome {
	start := time.Now()
	log := e.logger.With(zap.String("task", id.Key()), zap.Stringer("variant", e.variant))

	runner, err := e.resolver.Resolve(id)
	if err != nil {
		kind := ResolveFailed
		if errors.Is(err, solution.ErrUnregistered) {
			kind = Unregistered
		}
		log.Debug("Resolve failed", zap.Stringer("kind", kind), zap.Error(err))
		return Aborted(id, &RunError{Kind: kind, ID: id, Err: err})
	}

	raw, err := e.inputs.Load(id, e.variant)
	if err != nil {
		runErr := &RunError{Kind: ReadInputFailed, ID: id, Err: err}
		var readErr *input.ReadError
		if errors.As(err, &readErr) {
			runErr.Path = readErr.Path
		}
		log.Debug("Input unavailable", zap.String("path", runErr.Path), zap.Error(err))
		return Aborted(id, runErr)
	}

	parsed, err := e.parse(runner.Parse, raw)
	if err != nil {
		d := crash.Decode(err)
		log.Debug("Parse failed", zap.String("diagnostic", d.String()))
		return Aborted(id, newParseFailed(id, d))
	}

	out := Outcome{
		ID:  id,
		Pt1: e.part(runner.Pt1, parsed),
		Pt2: e.part(runner.Pt2, parsed),
	}
	log.Debug("Task completed",
		zap.Stringer("pt1", out.Pt1.Status),
		zap.Stringer("pt2", out.Pt2.Status),
		zap.Duration("elapsed", time.Since(start)))
	return out
}

func (e *Executor) parse(fn *solution.Func, raw string) (any, error) {
	if fn == nil {
		return raw, nil
	}
	return crash.Guard(e.mode, fn, func() (any, error) {
		return fn.Call(raw)
	})
}

// undefined marks a part that reported solution.ErrUndefined, so Strict mode
// does not treat "not implemented yet" as a crash.
type undefined struct{}

func (e *Executor) part(fn *solution.Func, parsed any) PartOutcome {
	if fn == nil {
		return NotDefined()
	}
	v, err := crash.Guard(e.mode, fn, func() (any, error) {
		v, err := fn.Call(parsed)
		if errors.Is(err, solution.ErrUndefined) {
			return undefined{}, nil
		}
		return v, err
	})
	if err != nil {
		return Failure(crash.Decode(err))
	}
	if _, ok := v.(undefined); ok {
		return NotDefined()
	}
	return Success(v)
}
