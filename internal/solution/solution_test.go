package solution

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrian-goe/gladvent/internal/crash"
	"github.com/adrian-goe/gladvent/internal/task"
)

func countRunes(s string) int { return len(s) }

func splitLines(s string) ([]string, error) {
	if s == "" {
		return nil, errors.New("empty input")
	}
	return strings.Split(s, "\n"), nil
}

func TestWrap_Signatures(t *testing.T) {
	tests := []struct {
		name    string
		fn      any
		wantErr bool
	}{
		{name: "value only", fn: countRunes},
		{name: "value and error", fn: splitLines},
		{name: "not a func", fn: 3, wantErr: true},
		{name: "nil func", fn: (func(string) int)(nil), wantErr: true},
		{name: "two args", fn: func(a, b string) int { return 0 }, wantErr: true},
		{name: "no results", fn: func(string) {}, wantErr: true},
		{name: "second result not error", fn: func(string) (int, int) { return 0, 0 }, wantErr: true},
		{name: "variadic", fn: func(...string) int { return 0 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Wrap(tt.fn, crash.Site{})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrSignature)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestWrap_DerivesSite(t *testing.T) {
	f, err := Wrap(countRunes, crash.Site{})
	require.NoError(t, err)
	assert.Equal(t, "github.com/adrian-goe/gladvent/internal/solution", f.Site().Module)
	assert.Equal(t, "countRunes", f.Site().Function)

	explicit := crash.Site{Module: "aoc_2023/day_1", Function: "Pt1", Line: 4}
	f, err = Wrap(countRunes, explicit)
	require.NoError(t, err)
	assert.Equal(t, explicit, f.Site())
}

func TestFunc_Call(t *testing.T) {
	f := MustWrap(countRunes)
	v, err := f.Call("abc")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	g := MustWrap(splitLines)
	v, err = g.Call("a\nb")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, v)

	_, err = g.Call("")
	assert.EqualError(t, err, "empty input")
}

func TestFunc_CallArgumentMismatch(t *testing.T) {
	f := MustWrap(countRunes)

	_, err := f.Call(42)
	assert.ErrorIs(t, err, ErrArgument)
	assert.Contains(t, err.Error(), "expects string, got int")

	_, err = f.Call(nil)
	assert.ErrorIs(t, err, ErrArgument)

	takesSlice := MustWrap(func(xs []int) int { return len(xs) })
	v, err := takesSlice.Call(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, v)
}

func TestFunc_CallPropagatesPanic(t *testing.T) {
	f := MustWrap(func(s string) int { panic("boom") })
	assert.PanicsWithValue(t, "boom", func() { _, _ = f.Call("x") })
}

func TestMustWrap_PanicsOnBadSignature(t *testing.T) {
	assert.Panics(t, func() { MustWrap("nope") })
}

// =============================================================================
// REGISTRY
// =============================================================================

func TestRegistry_ResolveAndKeys(t *testing.T) {
	reg := NewRegistry()
	day1 := Runner{Pt1: MustWrap(countRunes)}
	require.NoError(t, reg.Register(task.ID{Year: 2023, Day: 1}, day1))
	require.NoError(t, reg.Register(task.ID{Year: 2023, Day: 10}, Runner{}))
	require.NoError(t, reg.Register(task.ID{Year: 2022, Day: 3}, Runner{}))

	got, err := reg.Resolve(task.ID{Year: 2023, Day: 1})
	require.NoError(t, err)
	assert.Same(t, day1.Pt1, got.Pt1)

	assert.Equal(t, []string{"aoc_2022/day_3", "aoc_2023/day_1", "aoc_2023/day_10"}, reg.Keys())
}

func TestRegistry_Unregistered(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Resolve(task.ID{Year: 2023, Day: 2})
	assert.ErrorIs(t, err, ErrUnregistered)
	assert.EqualError(t, err, "aoc_2023/day_2 is not registered")
}

func TestRegistry_RejectsDuplicatesAndInvalidIDs(t *testing.T) {
	reg := NewRegistry()
	id := task.ID{Year: 2023, Day: 5}
	require.NoError(t, reg.Register(id, Runner{}))
	assert.Error(t, reg.Register(id, Runner{}))

	assert.ErrorIs(t, reg.Register(task.ID{Year: 2023, Day: 26}, Runner{}), task.ErrInvalidDay)
}

func TestRegistry_ResolveFuncErrors(t *testing.T) {
	reg := NewRegistry()
	id := task.ID{Year: 2023, Day: 7}
	require.NoError(t, reg.RegisterFunc(id, func() (Runner, error) {
		return Runner{}, errors.New("broken script")
	}))

	_, err := reg.Resolve(id)
	assert.EqualError(t, err, "broken script")
	assert.NotErrorIs(t, err, ErrUnregistered)
}

func TestDays(t *testing.T) {
	reg := NewRegistry()
	for _, id := range []task.ID{{Year: 2023, Day: 12}, {Year: 2023, Day: 2}, {Year: 2022, Day: 1}, {Year: 2023, Day: 1}} {
		require.NoError(t, reg.Register(id, Runner{}))
	}

	assert.Equal(t,
		[]task.ID{{Year: 2023, Day: 1}, {Year: 2023, Day: 2}, {Year: 2023, Day: 12}},
		Days(reg, 2023))
	assert.Empty(t, Days(reg, 2015))
}
