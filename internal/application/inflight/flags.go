// Package inflight tracks the per-action "submitting" flags that keep a
// control disabled while its request is running.
package inflight

import (
	"sync"

	"github.com/omkarjtg/ecomm/internal/domain/shared"
)

// Flags is a set of named in-flight actions
type Flags struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// New creates an empty flag set
func New() *Flags {
	return &Flags{active: make(map[string]struct{})}
}

// Acquire marks action as running. It returns shared.ErrInProgress when the
// action is already running; otherwise the returned func clears the flag.
func (f *Flags) Acquire(action string) (func(), error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, busy := f.active[action]; busy {
		return nil, shared.ErrInProgress
	}
	f.active[action] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.active, action)
			f.mu.Unlock()
		})
	}, nil
}

// Busy reports whether action is running
func (f *Flags) Busy(action string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.active[action]
	return ok
}

// Active returns the running actions
func (f *Flags) Active() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.active))
	for a := range f.active {
		out = append(out, a)
	}
	return out
}
