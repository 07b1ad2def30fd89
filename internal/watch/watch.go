// Package watch reports file and directory creation and deletion anywhere
// under a selected folder.
//
// A Watch owns one fsnotify watcher and one pump goroutine while Active.
// Events are delivered synchronously from the pump, so the sink must return
// promptly and must not call Stop.
package watch

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/graybiralo/SyncGuardian/internal/logging"
	"github.com/graybiralo/SyncGuardian/internal/protocol"
)

var (
	ErrNoPathConfigured = errors.New("no folder selected for monitoring")
	ErrActive           = errors.New("monitoring is active")
)

type Status int

const (
	Inactive Status = iota
	Active
)

func (s Status) String() string {
	if s == Active {
		return "Active"
	}
	return "Inactive"
}

// MonitorState is a point-in-time view of a Watch.
type MonitorState struct {
	Status Status
	Path   string
}

// Sink receives change events on the pump goroutine.
type Sink func(protocol.ChangeEvent)

type Options struct {
	Logger   *slog.Logger
	OnStatus func(Status)
}

type Watch struct {
	// lifecycle serializes Start and Stop, including the wait for the pump.
	lifecycle sync.Mutex

	mu       sync.Mutex
	path     string
	notifier *fsnotify.Watcher
	done     chan struct{}

	sink     Sink
	onStatus func(Status)
	logger   *slog.Logger
}

func New(sink Sink, opts Options) *Watch {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Watch{
		sink:     sink,
		onStatus: opts.OnStatus,
		logger:   logger,
	}
}

// SetPath selects the folder to watch. The path is made absolute and must be
// an existing directory. It fails with ErrActive while the watch is running.
func (w *Watch) SetPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", abs)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.notifier != nil {
		return ErrActive
	}
	w.path = abs
	return nil
}

func (w *Watch) Path() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.path
}

func (w *Watch) State() MonitorState {
	w.mu.Lock()
	defer w.mu.Unlock()
	st := MonitorState{Status: Inactive, Path: w.path}
	if w.notifier != nil {
		st.Status = Active
	}
	return st
}

// Start begins watching the selected folder recursively. It returns
// ErrNoPathConfigured if no folder was selected and is a no-op when already
// Active.
func (w *Watch) Start() error {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	w.mu.Lock()
	root := w.path
	running := w.notifier != nil
	w.mu.Unlock()

	if root == "" {
		return ErrNoPathConfigured
	}
	if running {
		w.logger.Info("Monitoring is already active.", "path", root)
		return nil
	}

	notifier, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	t, err := index(notifier, root)
	if err != nil {
		notifier.Close()
		return fmt.Errorf("watch %s: %w", root, err)
	}

	done := make(chan struct{})
	w.mu.Lock()
	w.notifier = notifier
	w.done = done
	w.mu.Unlock()

	go w.pump(notifier, t, done)

	w.logger.Info(fmt.Sprintf("Monitoring started for %s.", filepath.Base(root)))
	w.status(Active)
	return nil
}

// Stop ends watching and blocks until the pump goroutine has exited. Safe to
// call when Inactive.
func (w *Watch) Stop() {
	w.lifecycle.Lock()
	defer w.lifecycle.Unlock()

	w.mu.Lock()
	notifier, done, root := w.notifier, w.done, w.path
	w.notifier, w.done = nil, nil
	w.mu.Unlock()

	if notifier == nil {
		w.logger.Info("No folder was being monitored.")
		w.status(Inactive)
		return
	}
	if err := notifier.Close(); err != nil {
		w.logger.Warn("Error closing watcher", "error", err)
	}
	<-done

	w.logger.Info(fmt.Sprintf("Monitoring stopped for %s.", filepath.Base(root)))
	w.status(Inactive)
}

func (w *Watch) status(s Status) {
	if w.onStatus != nil {
		w.onStatus(s)
	}
}

func (w *Watch) pump(notifier *fsnotify.Watcher, t *tree, done chan struct{}) {
	defer close(done)
	for {
		select {
		case event, ok := <-notifier.Events:
			if !ok {
				return
			}
			w.handle(notifier, t, event)
		case err, ok := <-notifier.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Watch error", "error", err)
		}
	}
}

func (w *Watch) handle(notifier *fsnotify.Watcher, t *tree, event fsnotify.Event) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Panic while handling change", "path", event.Name, "panic", r)
		}
	}()

	switch {
	case event.Has(fsnotify.Create):
		w.created(notifier, t, event.Name)
	case event.Has(fsnotify.Remove):
		for _, r := range t.forget(event.Name) {
			w.emit(protocol.Deleted, r.entry, r.path)
		}
	case event.Has(fsnotify.Rename):
		// The old name and everything under it is reported deleted. The new
		// name, if still under the root, arrives as a Create.
		for _, r := range t.forget(event.Name) {
			if r.entry == protocol.Directory {
				// The moved directory keeps its inotify watches under the old
				// names; drop them so the new names get fresh ones.
				notifier.Remove(r.path)
			}
			w.emit(protocol.Deleted, r.entry, r.path)
		}
	}
}

func (w *Watch) created(notifier *fsnotify.Watcher, t *tree, path string) {
	if t.known(path) {
		return
	}
	info, err := os.Lstat(path)
	if err != nil {
		// Already gone, so the type is unknown. It is still reported, as a
		// file, so that the Remove that follows has an entry to pair with.
		t.add(path, protocol.File)
		w.emit(protocol.Created, protocol.File, path)
		return
	}
	entry := entryOf(info.IsDir())
	t.add(path, entry)
	w.emit(protocol.Created, entry, path)
	if entry != protocol.Directory {
		return
	}

	if err := notifier.Add(path); err != nil {
		w.logger.Warn("Error watching new folder", "path", path, "error", err)
	}
	// Entries created inside the new folder before its watch was in place
	// produce no notification of their own.
	filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil || p == path || t.known(p) {
			return nil
		}
		entry := entryOf(d.IsDir())
		t.add(p, entry)
		w.emit(protocol.Created, entry, p)
		if d.IsDir() {
			if err := notifier.Add(p); err != nil {
				w.logger.Warn("Error watching new folder", "path", p, "error", err)
			}
		}
		return nil
	})
}

func (w *Watch) emit(kind protocol.ChangeKind, entry protocol.EntryType, path string) {
	ev := protocol.ChangeEvent{Kind: kind, Entry: entry, Path: path}
	w.logger.Info(ev.String())
	if w.sink != nil {
		w.sink(ev)
	}
}

func entryOf(isDir bool) protocol.EntryType {
	if isDir {
		return protocol.Directory
	}
	return protocol.File
}
