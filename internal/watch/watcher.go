// Package watch reports files in a directory that were created or written,
// once writes to them have settled.
package watch

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a file must stay quiet before it is reported.
const DefaultDebounce = 200 * time.Millisecond

// Watcher monitors one directory using fsnotify.
type Watcher struct {
	Dir     string
	Changes <-chan string // settled files, in the order they were first seen
	Errors  <-chan error

	changes  chan string
	errs     chan error
	stop     chan struct{}
	done     chan struct{}
	watcher  *fsnotify.Watcher
	match    func(name string) bool
	debounce time.Duration
}

// Option customises a Watcher.
type Option func(*Watcher)

// WithExtensions limits reported files to the given extensions (".csv").
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		w.match = func(name string) bool {
			ext := strings.ToLower(filepath.Ext(name))
			for _, want := range exts {
				if ext == strings.ToLower(want) {
					return true
				}
			}
			return false
		}
	}
}

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// New creates a watcher for dir. Call Start to begin watching.
func New(dir string, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	changes := make(chan string, 16)
	errs := make(chan error, 4)
	w := &Watcher{
		Dir:      dir,
		Changes:  changes,
		Errors:   errs,
		changes:  changes,
		errs:     errs,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
		watcher:  fw,
		match:    func(string) bool { return true },
		debounce: DefaultDebounce,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start begins watching the directory.
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.Dir); err != nil {
		return err
	}
	go w.loop()
	return nil
}

// Stop closes the watcher and both channels. Files still settling are
// reported before Changes is closed as far as its buffer allows; the rest
// are dropped. Stop never waits for a reader.
func (w *Watcher) Stop() {
	close(w.stop)
	_ = w.watcher.Close()
	<-w.done
	close(w.changes)
	close(w.errs)
}

func (w *Watcher) loop() {
	defer close(w.done)

	var order []string
	pending := make(map[string]time.Time)
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	// emit reports settled files in order. It returns false once Stop was
	// called while it waited on a reader.
	emit := func() bool {
		now := time.Now()
		kept := order[:0]
		for i, file := range order {
			if now.Sub(pending[file]) < w.debounce {
				kept = append(kept, file)
				continue
			}
			select {
			case w.changes <- file:
				delete(pending, file)
			case <-w.stop:
				order = append(kept, order[i:]...)
				return false
			}
		}
		order = kept
		return true
	}
	// flush hands over whatever fits in the Changes buffer on shutdown.
	flush := func() {
		for _, file := range order {
			select {
			case w.changes <- file:
			default:
				return
			}
		}
	}

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				flush()
				return
			}
			if !w.match(event.Name) {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if _, seen := pending[event.Name]; !seen {
					order = append(order, event.Name)
				}
				pending[event.Name] = time.Now()
			}

		case <-ticker.C:
			if !emit() {
				flush()
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				flush()
				return
			}
			select {
			case w.errs <- err:
			default:
			}
		}
	}
}
