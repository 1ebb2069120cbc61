// Package task identifies puzzle tasks ("day N of year Y") and the input
// variant a run reads.
package task

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxDay is the last day of an event.
const MaxDay = 25

var (
	ErrInvalidDay  = errors.New("day must be between 1 and 25")
	ErrInvalidYear = errors.New("year must be positive")
	ErrInvalidKey  = errors.New("not a task key")
)

// ID identifies one puzzle task. It is comparable and safe to use as a map key.
type ID struct {
	Year int
	Day  int
}

// New validates year and day and returns the task ID.
func New(year, day int) (ID, error) {
	if year <= 0 {
		return ID{}, fmt.Errorf("%w: %d", ErrInvalidYear, year)
	}
	if day < 1 || day > MaxDay {
		return ID{}, fmt.Errorf("%w: %d", ErrInvalidDay, day)
	}
	return ID{Year: year, Day: day}, nil
}

// ParseDay parses a day argument as given on the command line.
func ParseDay(year int, s string) (ID, error) {
	day, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidDay, s)
	}
	return New(year, day)
}

// Key returns the registry identifier for the task, e.g. "aoc_2023/day_1".
func (id ID) Key() string {
	return fmt.Sprintf("aoc_%d/day_%d", id.Year, id.Day)
}

func (id ID) String() string {
	return fmt.Sprintf("%d day %d", id.Year, id.Day)
}

// ParseKey is the inverse of Key.
func ParseKey(key string) (ID, error) {
	yearPart, dayPart, ok := strings.Cut(key, "/")
	if !ok || !strings.HasPrefix(yearPart, "aoc_") || !strings.HasPrefix(dayPart, "day_") {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	year, err := strconv.Atoi(strings.TrimPrefix(yearPart, "aoc_"))
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	day, err := strconv.Atoi(strings.TrimPrefix(dayPart, "day_"))
	if err != nil {
		return ID{}, fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return New(year, day)
}

// Variant selects which input file a run reads.
type Variant int

const (
	Puzzle Variant = iota
	Example
)

func (v Variant) String() string {
	switch v {
	case Puzzle:
		return "puzzle"
	case Example:
		return "example"
	default:
		return "unknown"
	}
}
