package solution

import (
	"fmt"
	"sort"

	"github.com/adrian-goe/gladvent/internal/task"
)

// ResolveFunc produces a runner on demand. It is called on every Resolve and
// must be safe for concurrent use.
type ResolveFunc func() (Runner, error)

// Registry is a map from task ID to runner. It is populated once and then
// shared read-only by every task in a batch; Register must not be called
// after the registry has been handed to an executor.
type Registry struct {
	entries map[task.ID]ResolveFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[task.ID]ResolveFunc)}
}

// Register adds a fixed runner for id.
func (r *Registry) Register(id task.ID, runner Runner) error {
	return r.RegisterFunc(id, func() (Runner, error) { return runner, nil })
}

// RegisterFunc adds a lazily resolved runner for id.
func (r *Registry) RegisterFunc(id task.ID, resolve ResolveFunc) error {
	if _, err := task.New(id.Year, id.Day); err != nil {
		return err
	}
	if _, exists := r.entries[id]; exists {
		return fmt.Errorf("%s is already registered", id.Key())
	}
	r.entries[id] = resolve
	return nil
}

// Resolve returns the runner for id, or an error wrapping ErrUnregistered.
func (r *Registry) Resolve(id task.ID) (Runner, error) {
	resolve, ok := r.entries[id]
	if !ok {
		return Runner{}, fmt.Errorf("%s is %w", id.Key(), ErrUnregistered)
	}
	return resolve()
}

// Keys returns the registered task keys in ascending (year, day) order.
func (r *Registry) Keys() []string {
	ids := make([]task.ID, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	sortIDs(ids)

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.Key()
	}
	return keys
}

// Days lists the tasks a resolver knows for year, ascending by day. Keys that
// do not parse as task keys are ignored.
func Days(r Resolver, year int) []task.ID {
	var ids []task.ID
	for _, key := range r.Keys() {
		id, err := task.ParseKey(key)
		if err != nil || id.Year != year {
			continue
		}
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

func sortIDs(ids []task.ID) {
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Year != ids[j].Year {
			return ids[i].Year < ids[j].Year
		}
		return ids[i].Day < ids[j].Day
	})
}
