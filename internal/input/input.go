// Package input locates and reads puzzle input files.
package input

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/adrian-goe/gladvent/internal/task"
)

// ReadError reports an input file that could not be read.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("failed to read input file %s", e.Path)
}

func (e *ReadError) Unwrap() error { return e.Err }

// Loader reads inputs from Dir/<year>/<day>.txt (puzzle) and
// Dir/<year>/<day>.example.txt (example).
type Loader struct {
	Dir string
}

// NewLoader returns a loader rooted at dir.
func NewLoader(dir string) *Loader {
	return &Loader{Dir: dir}
}

// Path returns where the input for id and variant is expected.
func (l *Loader) Path(id task.ID, variant task.Variant) string {
	name := strconv.Itoa(id.Day)
	if variant == task.Example {
		name += ".example"
	}
	return filepath.Join(l.Dir, strconv.Itoa(id.Year), name+".txt")
}

// Load reads the input and trims leading and trailing newlines. Other
// whitespace is significant to some puzzles and is kept.
func (l *Loader) Load(id task.ID, variant task.Variant) (string, error) {
	path := l.Path(id, variant)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", &ReadError{Path: path, Err: err}
	}
	return strings.Trim(string(data), "\r\n"), nil
}
