// Package watch re-runs tasks when their solution scripts or input files
// change on disk.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/adrian-goe/gladvent/internal/task"
)

var (
	scriptName = regexp.MustCompile(`^day_(\d+)\.go$`)
	inputName  = regexp.MustCompile(`^(\d+)(\.example)?\.txt$`)
)

// TaskOf maps a solution script (<root>/<year>/day_<N>.go) or an input file
// (<root>/<year>/<N>.txt, <root>/<year>/<N>.example.txt) to its task.
func TaskOf(path string) (task.ID, bool) {
	year, err := strconv.Atoi(filepath.Base(filepath.Dir(path)))
	if err != nil {
		return task.ID{}, false
	}

	base := filepath.Base(path)
	var day string
	if m := scriptName.FindStringSubmatch(base); m != nil {
		day = m[1]
	} else if m := inputName.FindStringSubmatch(base); m != nil {
		day = m[1]
	} else {
		return task.ID{}, false
	}

	id, err := task.ParseDay(year, day)
	if err != nil {
		return task.ID{}, false
	}
	return id, true
}

// ChangeFunc is called with the tasks whose files settled after a change, in
// ascending order. Calls never overlap.
type ChangeFunc func(ctx context.Context, ids []task.ID)

// Options configures a Watcher.
type Options struct {
	// Dirs are the directories to watch, typically the year directories under
	// the solutions and input roots.
	Dirs []string
	// Tasks limits which tasks trigger OnChange. Empty means all.
	Tasks    []task.ID
	Debounce time.Duration
	OnChange ChangeFunc
	// RunOnStart calls OnChange with Tasks from the event loop before any file
	// event is handled.
	RunOnStart bool
	Logger     *zap.Logger
}

// Stats tracks watcher activity.
type Stats struct {
	Events   int
	Triggers int
	Errors   int
}

// Watcher debounces file events per task and hands settled tasks to
// OnChange.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dirs     []string
	tasks    map[task.ID]bool
	initial  []task.ID
	onChange ChangeFunc
	debounce time.Duration
	pending  map[task.ID]time.Time
	logger   *zap.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
	stats    Stats
}

// New creates a watcher. It does not watch anything until Start.
func New(opts Options) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Debounce <= 0 {
		opts.Debounce = 200 * time.Millisecond
	}
	if opts.OnChange == nil {
		opts.OnChange = func(context.Context, []task.ID) {}
	}

	var tasks map[task.ID]bool
	if len(opts.Tasks) > 0 {
		tasks = make(map[task.ID]bool, len(opts.Tasks))
		for _, id := range opts.Tasks {
			tasks[id] = true
		}
	}

	var initial []task.ID
	if opts.RunOnStart {
		initial = append(initial, opts.Tasks...)
		sortIDs(initial)
	}

	return &Watcher{
		watcher:  fw,
		initial:  initial,
		dirs:     opts.Dirs,
		tasks:    tasks,
		onChange: opts.OnChange,
		debounce: opts.Debounce,
		pending:  make(map[task.ID]time.Time),
		logger:   opts.Logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. It is non-blocking; events are handled on a
// background goroutine until Stop is called or ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	for _, dir := range w.dirs {
		if _, err := os.Stat(dir); err != nil {
			w.logger.Warn("Skipping missing watch directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			w.logger.Warn("Failed to watch directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		w.logger.Debug("Watching directory", zap.String("dir", dir))
	}

	go w.run(ctx)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	if err := w.watcher.Close(); err != nil {
		w.logger.Error("Error closing watcher", zap.Error(err))
	}
}

// Stats returns a snapshot of the watcher's counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	tick := w.debounce / 2
	if tick > 100*time.Millisecond {
		tick = 100 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	if len(w.initial) > 0 {
		w.onChange(ctx, w.initial)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Watcher error", zap.Error(err))
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.processSettled(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	id, ok := TaskOf(event.Name)
	if !ok || (w.tasks != nil && !w.tasks[id]) {
		return
	}

	w.logger.Debug("File changed", zap.String("path", event.Name), zap.Stringer("op", event.Op))

	w.mu.Lock()
	w.stats.Events++
	w.pending[id] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) processSettled(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var settled []task.ID
	for id, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			settled = append(settled, id)
			delete(w.pending, id)
		}
	}
	if len(settled) > 0 {
		w.stats.Triggers++
	}
	w.mu.Unlock()

	if len(settled) == 0 {
		return
	}
	sortIDs(settled)
	w.onChange(ctx, settled)
}

func sortIDs(ids []task.ID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Year != ids[j].Year {
			return ids[i].Year < ids[j].Year
		}
		return ids[i].Day < ids[j].Day
	})
}
