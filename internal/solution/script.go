package solution

import (
	"bytes"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/adrian-goe/gladvent/internal/crash"
	"github.com/adrian-goe/gladvent/internal/task"
)

// =============================================================================
// YAEGI SCRIPT LOADER
// =============================================================================
// Solutions are plain Go files interpreted at runtime, so a day can be added
// or edited without rebuilding the binary:
//
//	<solutions>/2023/day_1.go
//
//	package day1
//
//	func Parse(input string) []string { return strings.Split(input, "\n") }
//	func Pt1(lines []string) int      { ... }
//	func Pt2(lines []string) (int, error) { ... }
//
// Parse is optional (the raw string is passed through), and so is either
// part. Only standard library imports are available inside the interpreter.

var scriptName = regexp.MustCompile(`^day_(\d+)\.go$`)

// blockedImports are standard library packages a solution may not use.
var blockedImports = map[string]bool{
	"unsafe":   true,
	"os/exec":  true,
	"syscall":  true,
	"plugin":   true,
	"net":      true,
	"net/http": true,
}

// panicPosition matches the "<line>:<col>: panic" line the interpreter writes
// while unwinding an interpreted panic. The first match is the innermost.
var panicPosition = regexp.MustCompile(`(\d+):\d+: panic`)

// entryPoints are the function names a script may define.
var entryPoints = []string{"Parse", "Pt1", "Pt2"}

// ScriptLoader builds a Registry from solution scripts under Dir.
type ScriptLoader struct {
	Dir    string
	logger *zap.Logger
}

// NewScriptLoader creates a loader for dir. A nil logger discards output.
func NewScriptLoader(dir string, logger *zap.Logger) *ScriptLoader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScriptLoader{Dir: dir, logger: logger}
}

// script is one parsed solution file, ready to be interpreted.
type script struct {
	id     task.ID
	path   string
	source string
	sites  map[string]crash.Site
}

// Load discovers, parses and validates every script. Any malformed script
// fails the whole load; all problems are reported together.
func (l *ScriptLoader) Load() (*Registry, error) {
	years, err := os.ReadDir(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read solutions directory: %w", err)
	}

	reg := NewRegistry()
	var errs error
	for _, yearDir := range years {
		if !yearDir.IsDir() {
			continue
		}
		year, err := strconv.Atoi(yearDir.Name())
		if err != nil {
			l.logger.Debug("Skipping non-year directory", zap.String("name", yearDir.Name()))
			continue
		}

		files, err := os.ReadDir(filepath.Join(l.Dir, yearDir.Name()))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("failed to read %s: %w", yearDir.Name(), err))
			continue
		}
		for _, file := range files {
			m := scriptName.FindStringSubmatch(file.Name())
			if file.IsDir() || m == nil {
				continue
			}
			day, _ := strconv.Atoi(m[1])
			id, err := task.New(year, day)
			if err != nil {
				errs = multierr.Append(errs, fmt.Errorf("%s: %w", file.Name(), err))
				continue
			}

			s, err := parseScript(id, filepath.Join(l.Dir, yearDir.Name(), file.Name()))
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if err := reg.RegisterFunc(id, s.resolve); err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			l.logger.Debug("Registered script",
				zap.String("key", id.Key()),
				zap.String("path", s.path),
				zap.Int("functions", len(s.sites)))
		}
	}

	if errs != nil {
		return nil, errs
	}
	l.logger.Info("Solution registry built", zap.Int("tasks", len(reg.entries)))
	return reg, nil
}

// parseScript reads and checks a script without executing it.
func parseScript(id task.ID, path string) (*script, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, src, parser.SkipObjectResolution)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := validateImports(f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	s := &script{
		id:     id,
		path:   path,
		source: normalizePackage(fset, f, string(src)),
		sites:  make(map[string]crash.Site),
	}
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Recv != nil || !isEntryPoint(fn.Name.Name) {
			continue
		}
		s.sites[fn.Name.Name] = crash.Site{
			Module:   id.Key(),
			Function: fn.Name.Name,
			Line:     fset.Position(fn.Pos()).Line,
		}
	}
	return s, nil
}

func validateImports(f *ast.File) error {
	var forbidden []string
	for _, imp := range f.Imports {
		path, err := strconv.Unquote(imp.Path.Value)
		if err != nil {
			return fmt.Errorf("malformed import %s", imp.Path.Value)
		}
		first, _, _ := strings.Cut(path, "/")
		if blockedImports[path] || strings.Contains(first, ".") {
			forbidden = append(forbidden, path)
		}
	}
	if len(forbidden) > 0 {
		return fmt.Errorf("forbidden imports detected: %v (only the standard library is available)", forbidden)
	}
	return nil
}

// normalizePackage renames the script's package to main so entry points can
// be addressed uniformly. Line numbers are preserved.
func normalizePackage(fset *token.FileSet, f *ast.File, src string) string {
	start := fset.Position(f.Name.Pos()).Offset
	end := fset.Position(f.Name.End()).Offset
	return src[:start] + "main" + src[end:]
}

func isEntryPoint(name string) bool {
	for _, ep := range entryPoints {
		if ep == name {
			return true
		}
	}
	return false
}

// resolve interprets the script in a fresh interpreter. Each call is
// independent, so concurrent tasks never share interpreter state.
func (s *script) resolve() (runner Runner, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluating %s panicked: %v", s.path, r)
		}
	}()

	trace := &panicTrace{}
	i := interp.New(interp.Options{Stderr: trace})
	if err := i.Use(stdlib.Symbols); err != nil {
		return Runner{}, fmt.Errorf("failed to load stdlib: %w", err)
	}
	if _, err := i.Eval(s.source); err != nil {
		return Runner{}, fmt.Errorf("failed to evaluate %s: %w", s.path, err)
	}

	targets := map[string]**Func{
		"Parse": &runner.Parse,
		"Pt1":   &runner.Pt1,
		"Pt2":   &runner.Pt2,
	}
	for name, site := range s.sites {
		v, err := i.Eval("main." + name)
		if err != nil {
			return Runner{}, fmt.Errorf("%s not found: %w", name, err)
		}
		fn, err := Wrap(v.Interface(), site)
		if err != nil {
			return Runner{}, fmt.Errorf("%s: %w", name, err)
		}
		fn.trace = trace
		*targets[name] = fn
	}
	return runner, nil
}

// panicTrace captures the interpreter's stderr, which only carries crash
// positions, so nothing reaches the terminal. A nil trace is inert.
type panicTrace struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (t *panicTrace) Write(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buf.Write(p)
}

func (t *panicTrace) reset() {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.buf.Reset()
	t.mu.Unlock()
}

// panicLine returns the script line of the most recent interpreted panic.
func (t *panicTrace) panicLine() (int, bool) {
	if t == nil {
		return 0, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	m := panicPosition.FindSubmatch(t.buf.Bytes())
	if m == nil {
		return 0, false
	}
	line, err := strconv.Atoi(string(m[1]))
	if err != nil {
		return 0, false
	}
	return line, true
}
