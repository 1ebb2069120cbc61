package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/adrian-goe/gladvent/internal/task"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestTaskOf(t *testing.T) {
	tests := []struct {
		path string
		want task.ID
		ok   bool
	}{
		{path: "src/2023/day_4.go", want: task.ID{Year: 2023, Day: 4}, ok: true},
		{path: "input/2023/4.txt", want: task.ID{Year: 2023, Day: 4}, ok: true},
		{path: "input/2022/17.example.txt", want: task.ID{Year: 2022, Day: 17}, ok: true},
		{path: "input/2022/26.txt"},
		{path: "input/notes/4.txt"},
		{path: "src/2023/helpers.go"},
		{path: "src/2023/day_4.go~"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, ok := TaskOf(filepath.FromSlash(tt.path))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWatcher_TriggersOnChange(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "2023")
	require.NoError(t, os.MkdirAll(dir, 0755))

	changed := make(chan []task.ID, 4)
	w, err := New(Options{
		Dirs:     []string{dir},
		Tasks:    []task.ID{{Year: 2023, Day: 1}},
		Debounce: 30 * time.Millisecond,
		OnChange: func(_ context.Context, ids []task.ID) { changed <- ids },
		Logger:   zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	// Day 2 is not watched and must not trigger.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "day_1.go"), []byte("package main"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "1.txt"), []byte("abc"), 0644))

	select {
	case ids := <-changed:
		assert.Equal(t, []task.ID{{Year: 2023, Day: 1}}, ids)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}

	stats := w.Stats()
	assert.Positive(t, stats.Events)
	assert.Positive(t, stats.Triggers)
}

func TestWatcher_RunOnStartNeverOverlapsChanges(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "2023")
	require.NoError(t, os.MkdirAll(dir, 0755))

	var active, overlaps atomic.Int32
	calls := make(chan []task.ID, 4)
	release := make(chan struct{})
	first := true

	w, err := New(Options{
		Dirs:       []string{dir},
		Tasks:      []task.ID{{Year: 2023, Day: 3}, {Year: 2023, Day: 1}},
		Debounce:   20 * time.Millisecond,
		RunOnStart: true,
		OnChange: func(_ context.Context, ids []task.ID) {
			if active.Add(1) > 1 {
				overlaps.Add(1)
			}
			defer active.Add(-1)
			calls <- ids
			if first {
				first = false
				<-release
			}
		},
		Logger: zaptest.NewLogger(t),
	})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	defer w.Stop()

	select {
	case ids := <-calls:
		assert.Equal(t, []task.ID{{Year: 2023, Day: 1}, {Year: 2023, Day: 3}}, ids)
	case <-time.After(5 * time.Second):
		t.Fatal("no initial run")
	}

	// Saved while the initial run is still busy.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "3.txt"), []byte("x"), 0644))
	time.Sleep(100 * time.Millisecond)
	close(release)

	select {
	case ids := <-calls:
		assert.Equal(t, []task.ID{{Year: 2023, Day: 3}}, ids)
	case <-time.After(5 * time.Second):
		t.Fatal("change during the initial run was lost")
	}
	assert.Zero(t, overlaps.Load())
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(Options{Dirs: []string{filepath.Join(t.TempDir(), "missing")}})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}

func TestWatcher_StopsWithContext(t *testing.T) {
	w, err := New(Options{Dirs: []string{t.TempDir()}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	cancel()
	w.Stop()
}
