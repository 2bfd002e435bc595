package keymap

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a burst of writes to
// settle before reloading.
const DefaultDebounce = 100 * time.Millisecond

// Watcher keeps a keymap file loaded and reloads it when it changes.
type Watcher struct {
	path     string
	debounce time.Duration

	mu       sync.RWMutex
	current  *Keymap
	onChange []func(*Keymap)
	timer    *time.Timer

	watcher *fsnotify.Watcher
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	errChan chan error
	closed  bool // guarded by mu; errChan is closed once set
}

// NewWatcher creates a watcher for the keymap at path.
func NewWatcher(path string) *Watcher {
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		path:     path,
		debounce: DefaultDebounce,
		errChan:  make(chan error, 1),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Load reads the keymap and makes it current.
func (w *Watcher) Load() (*Keymap, error) {
	km, err := Load(w.path)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.current = km
	w.mu.Unlock()
	return km, nil
}

// Keymap returns the current keymap.
func (w *Watcher) Keymap() *Keymap {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// OnChange registers a callback invoked with each successfully reloaded
// keymap. A file that fails to load is reported on Errors and the previous
// keymap stays current.
func (w *Watcher) OnChange(cb func(*Keymap)) {
	w.mu.Lock()
	w.onChange = append(w.onChange, cb)
	w.mu.Unlock()
}

// Errors returns a channel of reload errors.
func (w *Watcher) Errors() <-chan error {
	return w.errChan
}

// Watch starts watching the keymap file.
func (w *Watcher) Watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}

	// Editors often replace the file, so watch its directory.
	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch directory: %w", err)
	}
	w.watcher = watcher
	w.done = make(chan struct{})

	go w.watchLoop()
	return nil
}

func (w *Watcher) watchLoop() {
	defer close(w.done)
	name := filepath.Base(w.path)

	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timer = time.AfterFunc(w.debounce, w.reload)
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.report(err)
		}
	}
}

func (w *Watcher) reload() {
	if w.ctx.Err() != nil {
		return
	}

	km, err := Load(w.path)
	if err != nil {
		w.report(fmt.Errorf("reload keymap: %w", err))
		return
	}

	w.mu.Lock()
	w.current = km
	callbacks := append(([]func(*Keymap))(nil), w.onChange...)
	w.mu.Unlock()

	for _, cb := range callbacks {
		cb(km)
	}
}

func (w *Watcher) report(err error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return
	}
	select {
	case w.errChan <- err:
	default:
	}
}

// Close stops watching and closes the Errors channel.
func (w *Watcher) Close() error {
	w.cancel()

	var err error
	if w.watcher != nil {
		err = w.watcher.Close()
		<-w.done
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	if !w.closed {
		w.closed = true
		close(w.errChan)
	}
	return err
}
