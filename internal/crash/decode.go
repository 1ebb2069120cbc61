package crash

import (
	"errors"
	"fmt"
	"strings"
)

// enginePackages hold the plumbing between the barrier and user code; their
// frames never name the origin of a crash.
var enginePackages = map[string]bool{
	"github.com/adrian-goe/gladvent/internal/crash":        true,
	"github.com/adrian-goe/gladvent/internal/solution":     true,
	"github.com/adrian-goe/gladvent/internal/pipeline":     true,
	"github.com/adrian-goe/gladvent/internal/orchestrator": true,
}

// foreignPackages are skipped along with everything below them.
var foreignPackages = []string{
	"runtime",
	"reflect",
	"github.com/traefik/yaegi",
}

// Diagnostic is the human-facing description of a crash. Either the
// structured fields are set, or Fallback holds a raw dump of a payload that
// could not be decoded.
type Diagnostic struct {
	Kind     string
	Module   string
	Function string
	Line     int
	Message  string
	Value    any
	HasValue bool

	Fallback string
}

// Structured reports whether decoding produced a located diagnostic.
func (d Diagnostic) Structured() bool {
	return d.Fallback == ""
}

func (d Diagnostic) String() string {
	if !d.Structured() {
		return d.Fallback
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "error: %s - %s in module %s in function %s at line %d",
		d.Kind, d.Message, d.Module, d.Function, d.Line)
	if d.HasValue {
		fmt.Fprintf(&sb, " with value %v", d.Value)
	}
	return sb.String()
}

// Decode turns a captured failure into a Diagnostic. Payloads that are not a
// locatable *Failure degrade to the fallback form. Decode never panics.
func Decode(payload any) (d Diagnostic) {
	defer func() {
		if r := recover(); r != nil {
			d = Diagnostic{Fallback: fmt.Sprintf("run failed for some reason: <unprintable %T>", payload)}
		}
	}()

	if st, ok := decodeFailure(payload); ok {
		return st
	}
	return Diagnostic{Fallback: "run failed for some reason: " + dump(payload)}
}

func decodeFailure(payload any) (Diagnostic, bool) {
	var f *Failure
	switch p := payload.(type) {
	case *Failure:
		f = p
	case error:
		if !errors.As(p, &f) {
			return Diagnostic{}, false
		}
	default:
		return Diagnostic{}, false
	}
	if f == nil {
		return Diagnostic{}, false
	}

	site, ok := locate(f)
	if !ok {
		return Diagnostic{}, false
	}

	d := Diagnostic{
		Kind:     string(f.Kind),
		Module:   site.Module,
		Function: site.Function,
		Line:     site.Line,
	}
	switch f.Kind {
	case KindExit:
		d.Message = "runtime.Goexit called"
	case KindError:
		d.Message = fmt.Sprint(f.Payload)
	default:
		switch v := unwrapValue(f.Payload).(type) {
		case error:
			d.Message = v.Error()
		case string:
			d.Message = v
		case fmt.Stringer:
			d.Message = v.String()
		default:
			d.Message = "panicked with a non-error value"
			d.Value = v
			d.HasValue = true
		}
	}
	return d, true
}

// locate finds the innermost user frame on the captured stack and falls back
// to the failure's site.
func locate(f *Failure) (Site, bool) {
	for _, frame := range f.Frames() {
		if frame.Function == "" || !isUserFrame(frame.Function) {
			continue
		}
		return Site{
			Module:   packageOf(frame.Function),
			Function: functionOf(frame.Function),
			Line:     frame.Line,
		}, true
	}
	if !f.Site.IsZero() {
		return f.Site, true
	}
	return Site{}, false
}

func isUserFrame(function string) bool {
	pkg := packageOf(function)
	if enginePackages[pkg] {
		return false
	}
	for _, prefix := range foreignPackages {
		if pkg == prefix || strings.HasPrefix(pkg, prefix+"/") {
			return false
		}
	}
	return true
}

func dump(payload any) string {
	if f, ok := payload.(*Failure); ok && f != nil {
		payload = f.Payload
	}
	return fmt.Sprintf("%#v", unwrapValue(payload))
}
