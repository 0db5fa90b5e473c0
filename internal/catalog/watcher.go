package catalog

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"soundscript/internal/events"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// Watcher reports library changes on the navigation bus. The loaded catalog
// is not modified; renderers decide whether to offer a reload.
type Watcher struct {
	root     string
	bus      *events.Bus
	relevant func(path string) bool
	dispatch func(fn func())
	logger   *logrus.Logger

	watcher *fsnotify.Watcher
	stop    sync.Once
	done    chan struct{}
}

// WatcherOptions configure a Watcher.
type WatcherOptions struct {
	// Relevant filters changed paths; nil accepts everything.
	Relevant func(path string) bool
	// Dispatch runs the emit, for example on the event loop; nil emits on the
	// watcher goroutine.
	Dispatch func(fn func())
	Logger   *logrus.Logger
}

// NewWatcher creates a watcher for root emitting on bus.
func NewWatcher(root string, bus *events.Bus, opts WatcherOptions) *Watcher {
	if opts.Logger == nil {
		opts.Logger = logrus.New()
		opts.Logger.SetOutput(io.Discard)
	}
	if opts.Relevant == nil {
		opts.Relevant = func(string) bool { return true }
	}
	if opts.Dispatch == nil {
		opts.Dispatch = func(fn func()) { fn() }
	}
	return &Watcher{
		root:     root,
		bus:      bus,
		relevant: opts.Relevant,
		dispatch: opts.Dispatch,
		logger:   opts.Logger,
		done:     make(chan struct{}),
	}
}

// Start begins watching root and all its subdirectories.
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	if err := w.addTree(w.root); err != nil {
		watcher.Close()
		return err
	}

	go w.run()
	w.logger.WithField("root", w.root).Info("Library watcher started")
	return nil
}

// addTree recursively adds directories to the watcher.
func (w *Watcher) addTree(dir string) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return w.watcher.Add(path)
		}
		return nil
	})
}

func (w *Watcher) run() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.WithError(err).Error("Library watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") || strings.HasSuffix(name, ".tmp") {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.logger.WithError(err).WithField("directory", event.Name).Warn("Could not watch new directory")
			}
			return
		}
	}

	var op string
	switch {
	case event.Has(fsnotify.Create):
		op = "create"
	case event.Has(fsnotify.Write):
		op = "write"
	case event.Has(fsnotify.Remove):
		op = "remove"
	case event.Has(fsnotify.Rename):
		op = "rename"
	default:
		return
	}
	if !w.relevant(event.Name) {
		return
	}

	w.logger.WithFields(logrus.Fields{"path": event.Name, "op": op}).Info("Library changed, restart to pick it up")
	change := events.CatalogChange{Path: event.Name, Op: op}
	w.dispatch(func() { w.bus.Emit(events.CatalogChanged, change) })
}

// Stop closes the watcher and waits for its goroutine. Safe to call more
// than once and before Start.
func (w *Watcher) Stop() {
	w.stop.Do(func() {
		if w.watcher == nil {
			close(w.done)
			return
		}
		w.watcher.Close()
		<-w.done
	})
}
