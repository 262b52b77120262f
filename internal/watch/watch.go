// Package watch reports input files that appear in a directory so new
// exports can be ingested as they land.
package watch

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultQuietPeriod is how long a file must go without writes before it is
// reported
const DefaultQuietPeriod = 2 * time.Second

// Watcher watches one directory, non-recursively, for matching files that
// are created or written. A file is reported once writes to it stop for the
// quiet period.
type Watcher struct {
	watcher *fsnotify.Watcher
	ready   chan string
	errors  chan error
	done    chan struct{}
	dir     string
	match   func(name string) bool

	mu      sync.Mutex
	quiet   time.Duration
	pending map[string]*quietTimer
	closed  bool
}

// New starts watching dir. match filters file names; nil accepts every file.
func New(dir string, match func(name string) bool) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	dir = filepath.Clean(dir)
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	w := &Watcher{
		watcher: fw,
		ready:   make(chan string, 16),
		errors:  make(chan error, 4),
		done:    make(chan struct{}),
		dir:     dir,
		match:   match,
		quiet:   DefaultQuietPeriod,
		pending: make(map[string]*quietTimer),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				// Error channel full, drop the error
			}
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return
	}
	if w.match != nil && !w.match(filepath.Base(ev.Name)) {
		return
	}
	w.settle(ev.Name)
}

// settle restarts the quiet period of path
func (w *Watcher) settle(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}

	if prev, ok := w.pending[path]; ok {
		prev.timer.Stop()
	}
	p := &quietTimer{}
	w.pending[path] = p
	p.timer = time.AfterFunc(w.quiet, func() { w.fire(path, p) })
}

// quietTimer is one running quiet period
type quietTimer struct {
	timer *time.Timer
}

// fire reports path once its quiet period ends. A period that was replaced
// after its timer had already fired finds another one pending and does
// nothing.
func (w *Watcher) fire(path string, p *quietTimer) {
	w.mu.Lock()
	if w.closed || w.pending[path] != p {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	select {
	case w.ready <- path:
	case <-w.done:
	}
}

// Ready delivers paths of files that stopped changing
func (w *Watcher) Ready() <-chan string {
	return w.ready
}

// Errors delivers watcher errors
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Dir returns the watched directory
func (w *Watcher) Dir() string {
	return w.dir
}

// SetQuietPeriod changes the quiet period for files seen from now on
func (w *Watcher) SetQuietPeriod(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.quiet = d
}

// Close stops watching. Pending files are not reported.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	for _, p := range w.pending {
		p.timer.Stop()
	}
	w.pending = nil
	w.mu.Unlock()

	close(w.done)
	return w.watcher.Close()
}
