// Package localstore is the storefront's "local storage": a small string
// key/value store that survives restarts and signals changes made by other
// tabs (processes sharing the same backend).
package localstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Keys used by the storefront
const (
	KeyToken          = "token"
	KeyCart           = "cart"
	KeyTheme          = "theme"
	KeyCheckoutIntent = "checkout_intent"
)

// Change is a storage-change signal. Like the browser storage event it is
// only delivered to tabs other than the one that made the change.
type Change struct {
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Removed bool   `json:"removed,omitempty"`
	Origin  string `json:"origin"`
}

// Store is a synchronous string key/value store. Writes are last-write-wins
// across tabs; there is no locking and no transaction.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Watch returns a channel of changes made by other tabs. The channel is
	// closed when ctx is done or the store is closed.
	Watch(ctx context.Context) <-chan Change
	Close() error
}

// GetJSON decodes the value stored at key into v. It reports false when the
// key is absent.
func GetJSON(ctx context.Context, s Store, key string, v any) (bool, error) {
	raw, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return false, fmt.Errorf("localstore: decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON stores the JSON encoding of v at key
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("localstore: encode %s: %w", key, err)
	}
	return s.Set(ctx, key, string(data))
}

const watchBuffer = 32

// fanout delivers changes to every active watcher. A watcher that does not
// keep up loses changes rather than blocking the writer.
type fanout struct {
	mu       sync.Mutex
	watchers map[chan Change]struct{}
	closed   bool
}

func newFanout() *fanout {
	return &fanout{watchers: make(map[chan Change]struct{})}
}

func (f *fanout) watch(ctx context.Context) <-chan Change {
	ch := make(chan Change, watchBuffer)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch
	}
	f.watchers[ch] = struct{}{}
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.remove(ch)
	}()
	return ch
}

func (f *fanout) remove(ch chan Change) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.watchers[ch]; ok {
		delete(f.watchers, ch)
		close(ch)
	}
}

// publish returns the number of watchers that missed the change
func (f *fanout) publish(c Change) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	dropped := 0
	for ch := range f.watchers {
		select {
		case ch <- c:
		default:
			dropped++
		}
	}
	return dropped
}

func (f *fanout) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for ch := range f.watchers {
		close(ch)
	}
	f.watchers = nil
}
