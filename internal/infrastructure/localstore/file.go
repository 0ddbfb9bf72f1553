package localstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// File is a Store persisted as one JSON object on disk. Several storefront
// processes pointed at the same file behave like tabs of one browser: each
// write is picked up by the others through fsnotify and surfaced on Watch.
type File struct {
	path    string
	logger  *zap.Logger
	mu      sync.Mutex
	data    map[string]string
	watcher *fsnotify.Watcher
	changes *fanout
	done    chan struct{}
	once    sync.Once
}

// FileOption configures a File store
type FileOption func(*File)

// WithFileLogger sets the logger
func WithFileLogger(l *zap.Logger) FileOption {
	return func(f *File) {
		if l != nil {
			f.logger = l
		}
	}
}

// OpenFile opens (creating if needed) the store at path and starts watching
// it for writes made by other processes.
func OpenFile(path string, opts ...FileOption) (*File, error) {
	path = filepath.Clean(path)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("localstore: create directory: %w", err)
	}

	f := &File{
		path:    path,
		logger:  zap.NewNop(),
		changes: newFanout(),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}

	data, err := f.readDisk()
	if err != nil {
		return nil, err
	}
	f.data = data

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("localstore: create watcher: %w", err)
	}
	// Writes replace the file by rename, so the directory is watched rather
	// than the file itself.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("localstore: watch %s: %w", filepath.Dir(path), err)
	}
	f.watcher = watcher
	go f.watchLoop()

	return f, nil
}

// Get implements Store
func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok, nil
}

// Set implements Store
func (f *File) Set(_ context.Context, key, value string) error {
	return f.update(func(m map[string]string) { m[key] = value })
}

// Remove implements Store
func (f *File) Remove(_ context.Context, key string) error {
	return f.update(func(m map[string]string) { delete(m, key) })
}

// Watch implements Store
func (f *File) Watch(ctx context.Context) <-chan Change {
	return f.changes.watch(ctx)
}

// Close stops watching the file
func (f *File) Close() error {
	var err error
	f.once.Do(func() {
		close(f.done)
		err = f.watcher.Close()
		f.changes.close()
	})
	return err
}

// update re-reads the file before applying fn so a write from this tab does
// not clobber keys another tab changed since the last reload.
func (f *File) update(fn func(map[string]string)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.readDisk()
	if err != nil {
		return err
	}
	f.emitDiff(f.data, current)
	fn(current)
	if err := f.writeDisk(current); err != nil {
		return err
	}
	f.data = current
	return nil
}

func (f *File) readDisk() (map[string]string, error) {
	data := make(map[string]string)
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return data, nil
	}
	if err != nil {
		return nil, fmt.Errorf("localstore: read %s: %w", f.path, err)
	}
	if len(raw) == 0 {
		return data, nil
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("localstore: decode %s: %w", f.path, err)
	}
	return data, nil
}

func (f *File) writeDisk(data map[string]string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), ".localstore-*")
	if err != nil {
		return fmt.Errorf("localstore: write %s: %w", f.path, err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("localstore: write %s: %w", f.path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("localstore: replace %s: %w", f.path, err)
	}
	return nil
}

func (f *File) watchLoop() {
	for {
		select {
		case <-f.done:
			return
		case ev, ok := <-f.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			f.reload()
		case err, ok := <-f.watcher.Errors:
			if !ok {
				return
			}
			f.logger.Warn("Local storage watcher error", zap.String("path", f.path), zap.Error(err))
		}
	}
}

// reload picks up a write from another process. A write made by this tab
// leaves the in-memory copy equal to the disk, so it produces no change.
func (f *File) reload() {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := f.readDisk()
	if err != nil {
		// a half-written file from another process; the rename that
		// completes it fires another event
		f.logger.Debug("Skipping local storage reload", zap.Error(err))
		return
	}
	f.emitDiff(f.data, current)
	f.data = current
}

func (f *File) emitDiff(before, after map[string]string) {
	for _, c := range diff(before, after) {
		c.Origin = "file:" + f.path
		if n := f.changes.publish(c); n > 0 {
			f.logger.Warn("Local storage change dropped", zap.String("key", c.Key), zap.Int("watchers", n))
		}
	}
}

// diff lists the changes that turn before into after
func diff(before, after map[string]string) []Change {
	var out []Change
	for k, v := range after {
		if old, ok := before[k]; !ok || old != v {
			out = append(out, Change{Key: k, Value: v})
		}
	}
	for k := range before {
		if _, ok := after[k]; !ok {
			out = append(out, Change{Key: k, Removed: true})
		}
	}
	return out
}

var _ Store = (*File)(nil)
