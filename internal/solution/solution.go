// Package solution maps task IDs to the user functions that solve them.
//
// A Runner is the triple of parse, part 1 and part 2 functions for one day.
// Runners come from a Registry, populated either directly by compiled Go code
// or by a ScriptLoader that interprets solution scripts with yaegi.
package solution

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/adrian-goe/gladvent/internal/crash"
	"github.com/adrian-goe/gladvent/internal/task"
)

var (
	// ErrUnregistered is returned by a Resolver for days it has no entry for.
	ErrUnregistered = errors.New("not registered")
	// ErrUndefined may be returned by a user function that is not implemented
	// yet. The engine reports it as "function undefined" instead of a failure.
	ErrUndefined = errors.New("function undefined")
	// ErrSignature means a value cannot serve as a parse or solve function.
	ErrSignature = errors.New("unsupported function signature")
	// ErrArgument means a function was called with a value of the wrong type,
	// typically a part function that does not accept what parse produced.
	ErrArgument = errors.New("argument type mismatch")
)

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// Func is a one-argument user function called through reflection. Supported
// shapes are func(T) R and func(T) (R, error).
type Func struct {
	fn    reflect.Value
	site  crash.Site
	trace *panicTrace
}

// Wrap adapts fn. A zero site is derived from fn itself, which only works
// for compiled functions; interpreted functions must supply their own.
func Wrap(fn any, site crash.Site) (*Func, error) {
	v := reflect.ValueOf(fn)
	if v.Kind() != reflect.Func || v.IsNil() {
		return nil, fmt.Errorf("%w: %T is not a function", ErrSignature, fn)
	}
	t := v.Type()
	if t.NumIn() != 1 || t.IsVariadic() {
		return nil, fmt.Errorf("%w: %s must take exactly one argument", ErrSignature, t)
	}
	switch t.NumOut() {
	case 1:
	case 2:
		if t.Out(1) != errorType {
			return nil, fmt.Errorf("%w: second result of %s must be error", ErrSignature, t)
		}
	default:
		return nil, fmt.Errorf("%w: %s must return a value and an optional error", ErrSignature, t)
	}

	if site.IsZero() {
		site = crash.SiteOf(fn)
	}
	return &Func{fn: v, site: site}, nil
}

// MustWrap is Wrap for registration code where a bad signature is a
// programming error.
func MustWrap(fn any) *Func {
	f, err := Wrap(fn, crash.Site{})
	if err != nil {
		panic(err)
	}
	return f
}

// Site locates the wrapped function for diagnostics.
func (f *Func) Site() crash.Site {
	return f.site
}

// Locate reports the line an interpreted function panicked at, when the
// interpreter recorded one, and the declaration site otherwise.
func (f *Func) Locate() crash.Site {
	site := f.site
	if line, ok := f.trace.panicLine(); ok {
		site.Line = line
	}
	return site
}

// Call invokes the wrapped function. Panics raised by the function are not
// recovered here; that is the barrier's job.
func (f *Func) Call(arg any) (any, error) {
	f.trace.reset()
	in, err := f.argument(arg)
	if err != nil {
		return nil, err
	}
	out := f.fn.Call([]reflect.Value{in})
	if len(out) == 2 && !out[1].IsNil() {
		return nil, out[1].Interface().(error)
	}
	return out[0].Interface(), nil
}

func (f *Func) argument(arg any) (reflect.Value, error) {
	want := f.fn.Type().In(0)
	if arg == nil {
		switch want.Kind() {
		case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
			return reflect.Zero(want), nil
		}
		return reflect.Value{}, fmt.Errorf("%w: %s expects %s, got nil", ErrArgument, f.site.Function, want)
	}
	v := reflect.ValueOf(arg)
	if !v.Type().AssignableTo(want) {
		return reflect.Value{}, fmt.Errorf("%w: %s expects %s, got %s", ErrArgument, f.site.Function, want, v.Type())
	}
	return v, nil
}

// Runner is the resolved function triple for one task. A nil Parse passes the
// raw input through unchanged; a nil part function is undefined.
type Runner struct {
	Parse *Func
	Pt1   *Func
	Pt2   *Func
}

// Resolver hands out runners. Implementations must be safe for concurrent
// use once constructed.
type Resolver interface {
	Resolve(id task.ID) (Runner, error)
	// Keys lists every registered task as "aoc_<year>/day_<day>".
	Keys() []string
}
