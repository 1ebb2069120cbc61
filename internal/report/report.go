// Package report renders task outcomes as text.
package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/adrian-goe/gladvent/internal/pipeline"
)

const undefinedText = "function undefined"

// Render formats one outcome. Completed tasks produce a header and one line
// per part; aborted tasks produce a layered failure message.
func Render(o pipeline.Outcome) string {
	if !o.Completed() {
		return Layered(fmt.Errorf("Failed to run %d day %d: %w", o.ID.Year, o.ID.Day, o.Err))
	}
	return fmt.Sprintf("Ran %d day %d:\n  Part 1: %s\n  Part 2: %s",
		o.ID.Year, o.ID.Day, Part(o.Pt1), Part(o.Pt2))
}

// RenderBatch renders outcomes in the order given.
func RenderBatch(outcomes []pipeline.Outcome) []string {
	out := make([]string, len(outcomes))
	for i, o := range outcomes {
		out[i] = Render(o)
	}
	return out
}

// Part formats a single part outcome.
func Part(p pipeline.PartOutcome) string {
	switch p.Status {
	case pipeline.Succeeded:
		return fmt.Sprintf("%v", p.Value)
	case pipeline.Undefined:
		return undefinedText
	default:
		return p.Diagnostic.String()
	}
}

// Layered prints err outermost first, one layer per line:
//
//	Failed to run 2023 day 2
//	  cause: aoc_2023/day_2 is not registered
func Layered(err error) string {
	layers := Layers(err)
	if len(layers) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(layers[0])
	for _, l := range layers[1:] {
		sb.WriteString("\n  cause: ")
		sb.WriteString(l)
	}
	return sb.String()
}

// Layers splits a wrapped error into the text each layer adds. Wrappers that
// add nothing are skipped. A layer whose message already spells out its cause
// in some other shape ends the walk.
func Layers(err error) []string {
	var layers []string
	add := func(s string) {
		if s != "" {
			layers = append(layers, s)
		}
	}

	for err != nil {
		msg := err.Error()
		next := errors.Unwrap(err)
		if next == nil {
			add(msg)
			break
		}

		inner := next.Error()
		switch {
		case msg == inner:
		case strings.HasSuffix(msg, ": "+inner):
			add(strings.TrimSuffix(msg, ": "+inner))
		case inner != "" && strings.Contains(msg, inner):
			add(msg)
			return layers
		default:
			add(msg)
		}
		err = next
	}
	return layers
}
