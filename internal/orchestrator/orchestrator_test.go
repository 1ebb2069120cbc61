package orchestrator_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/adrian-goe/gladvent/internal/orchestrator"
	"github.com/adrian-goe/gladvent/internal/pipeline"
	"github.com/adrian-goe/gladvent/internal/task"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedRunner completes each day after its configured delay. Days listed
// in block wait until release is closed.
type scriptedRunner struct {
	delay   map[int]time.Duration
	block   map[int]bool
	release chan struct{}

	mu      sync.Mutex
	started []int
	wg      sync.WaitGroup
}

func newScriptedRunner() *scriptedRunner {
	return &scriptedRunner{
		delay:   map[int]time.Duration{},
		block:   map[int]bool{},
		release: make(chan struct{}),
	}
}

func (r *scriptedRunner) Run(id task.ID) pipeline.Outcome {
	r.wg.Add(1)
	defer r.wg.Done()

	r.mu.Lock()
	r.started = append(r.started, id.Day)
	r.mu.Unlock()

	if r.block[id.Day] {
		<-r.release
	}
	time.Sleep(r.delay[id.Day])
	return pipeline.Outcome{ID: id, Pt1: pipeline.Success(id.Day), Pt2: pipeline.NotDefined()}
}

// finish unblocks abandoned tasks and waits for them so no goroutine
// outlives the test.
func (r *scriptedRunner) finish() {
	close(r.release)
	r.wg.Wait()
}

func (r *scriptedRunner) startedDays() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.started...)
}

func days(year int, ds ...int) []task.ID {
	ids := make([]task.ID, len(ds))
	for i, d := range ds {
		ids[i] = task.ID{Year: year, Day: d}
	}
	return ids
}

func TestDeadline(t *testing.T) {
	assert.False(t, orchestrator.Endless().Bounded())
	assert.False(t, orchestrator.Ending(0).Bounded())
	assert.Equal(t, "endless", orchestrator.Endless().String())

	d := orchestrator.Ending(250 * time.Millisecond)
	assert.True(t, d.Bounded())
	assert.Equal(t, 250*time.Millisecond, d.After())
	assert.Equal(t, "250ms", d.String())
}

func TestRun_OutputFollowsRequestOrder(t *testing.T) {
	r := newScriptedRunner()
	defer r.finish()
	r.delay[1] = 60 * time.Millisecond
	r.delay[2] = 30 * time.Millisecond

	o := orchestrator.New(r, 0, orchestrator.Endless(), zaptest.NewLogger(t))
	got := o.Run(context.Background(), days(2023, 1, 2, 3))

	require.Len(t, got, 3)
	for i, want := range []int{1, 2, 3} {
		assert.Equal(t, want, got[i].ID.Day)
		assert.True(t, got[i].Completed())
	}
}

func TestRun_SequentialInline(t *testing.T) {
	r := newScriptedRunner()
	defer r.finish()

	o := orchestrator.New(r, 1, orchestrator.Endless(), nil)
	got := o.Run(context.Background(), days(2022, 4, 2, 9))

	require.Len(t, got, 3)
	assert.Equal(t, []int{4, 2, 9}, r.startedDays())
}

func TestRun_EmptyBatch(t *testing.T) {
	o := orchestrator.New(newScriptedRunner(), 4, orchestrator.Ending(time.Second), nil)
	assert.Empty(t, o.Run(context.Background(), nil))
}

func TestRun_DeadlineAbandonsUnfinishedTasks(t *testing.T) {
	r := newScriptedRunner()
	defer r.finish()
	r.block[2] = true

	o := orchestrator.New(r, 0, orchestrator.Ending(50*time.Millisecond), zaptest.NewLogger(t))
	start := time.Now()
	got := o.Run(context.Background(), days(2023, 1, 2, 3))

	assert.Less(t, time.Since(start), 2*time.Second)
	require.Len(t, got, 3)
	assert.True(t, got[0].Completed())
	assert.True(t, got[2].Completed())

	require.False(t, got[1].Completed())
	assert.Equal(t, pipeline.TimedOut, got[1].Err.Kind)
	assert.Equal(t, "timed out after 50ms", got[1].Err.Error())
}

func TestRun_DeadlineNeverStartsPendingTasks(t *testing.T) {
	r := newScriptedRunner()
	defer r.finish()
	r.block[1] = true

	o := orchestrator.New(r, 1, orchestrator.Ending(30*time.Millisecond), nil)
	got := o.Run(context.Background(), days(2023, 1, 2, 3))

	require.Len(t, got, 3)
	for _, out := range got {
		require.False(t, out.Completed())
		assert.Equal(t, pipeline.TimedOut, out.Err.Kind)
	}

	// Let the blocked task finish; the freed worker must not pick up day 2.
	close(r.release)
	r.wg.Wait()
	r.release = make(chan struct{})
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []int{1}, r.startedDays())
}

func TestRun_CancelledContext(t *testing.T) {
	r := newScriptedRunner()
	defer r.finish()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := orchestrator.New(r, 2, orchestrator.Endless(), nil)
	got := o.Run(ctx, days(2023, 1, 2))

	require.Len(t, got, 2)
	for _, out := range got {
		require.False(t, out.Completed())
		assert.Equal(t, pipeline.Other, out.Err.Kind)
	}
	assert.Empty(t, r.startedDays())
}

func TestRunBatch_RendersInOrder(t *testing.T) {
	r := newScriptedRunner()
	defer r.finish()
	r.block[5] = true

	o := orchestrator.New(r, 0, orchestrator.Ending(40*time.Millisecond), nil)
	got := o.RunBatch(context.Background(), days(2023, 5, 6))

	assert.Equal(t, []string{
		"Failed to run 2023 day 5\n  cause: timed out after 40ms",
		"Ran 2023 day 6:\n  Part 1: 6\n  Part 2: function undefined",
	}, got)
}

type panicRunner struct{}

func (panicRunner) Run(task.ID) pipeline.Outcome { panic("strict crash") }

func TestRun_InlinePanicReachesCaller(t *testing.T) {
	o := orchestrator.New(panicRunner{}, 1, orchestrator.Endless(), nil)
	assert.PanicsWithValue(t, "strict crash", func() {
		o.Run(context.Background(), days(2023, 1))
	})
}
