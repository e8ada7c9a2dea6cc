package watcher

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/ritzau/dirscan/pkg/logging"
	"github.com/ritzau/dirscan/pkg/walker"
)

// ChangeType represents the type of file change detected
type ChangeType int

const (
	ChangeTypeCreate ChangeType = iota
	ChangeTypeRemove
	ChangeTypeRename
	ChangeTypeWrite
)

func (c ChangeType) String() string {
	switch c {
	case ChangeTypeCreate:
		return "create"
	case ChangeTypeRemove:
		return "remove"
	case ChangeTypeRename:
		return "rename"
	default:
		return "write"
	}
}

// changeTypes lists every type in flush order
var changeTypes = []ChangeType{ChangeTypeCreate, ChangeTypeRemove, ChangeTypeRename, ChangeTypeWrite}

// batchWindow groups events arriving in quick succession into one ChangeEvent
const batchWindow = 100 * time.Millisecond

// ChangeEvent represents a batch of file system changes
type ChangeEvent struct {
	Type      ChangeType
	Paths     []string
	Timestamp time.Time
}

// FileWatcher watches a directory tree for changes. fsnotify watches are
// not recursive, so every directory below the root gets its own watch.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	fsys     afero.Fs
	root     string
	skip     func(path string) bool
	events   chan ChangeEvent
	mu       sync.Mutex
	watched  map[string]bool
	stopOnce sync.Once
}

// NewFileWatcher creates a watcher for root. Paths for which skip returns
// true are neither watched nor reported; skip may be nil.
func NewFileWatcher(root string, skip func(path string) bool) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if skip == nil {
		skip = func(string) bool { return false }
	}

	return &FileWatcher{
		watcher: watcher,
		fsys:    afero.NewOsFs(),
		root:    root,
		skip:    skip,
		events:  make(chan ChangeEvent, 100),
		watched: make(map[string]bool),
	}, nil
}

// Start watches the tree and begins processing events until ctx is done
func (fw *FileWatcher) Start(ctx context.Context) error {
	count, err := fw.AddTree(fw.root)
	if count == 0 && err != nil {
		return fmt.Errorf("failed to watch %s: %w", fw.root, err)
	}
	if err != nil {
		logging.Warn("some directories are not watched", "error", err)
	}

	logging.Info("started watching directory", "path", fw.root, "directories", count)

	go fw.processEvents(ctx)

	return nil
}

// AddTree watches dir and every directory below it that is not skipped.
// It returns how many new watches were added. Traversal stops at the first
// unreadable entry.
func (fw *FileWatcher) AddTree(dir string) (int, error) {
	added := 0
	skipDir := func(e walker.Entry) bool { return fw.skip(e.Path) }

	for entry, err := range walker.Walk(fw.fsys, dir, walker.WithSkipDir(skipDir)) {
		if err != nil {
			return added, err
		}
		if !entry.IsDir() || fw.skip(entry.Path) {
			continue
		}

		fw.mu.Lock()
		already := fw.watched[entry.Path]
		fw.mu.Unlock()
		if already {
			continue
		}

		if err := fw.watcher.Add(entry.Path); err != nil {
			logging.Warn("failed to watch directory", "path", entry.Path, "error", err)
			continue
		}
		fw.mu.Lock()
		fw.watched[entry.Path] = true
		fw.mu.Unlock()
		added++
	}

	return added, nil
}

// Watched returns the number of directories currently watched
func (fw *FileWatcher) Watched() int {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return len(fw.watched)
}

func (fw *FileWatcher) forget(path string) {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	// fsnotify drops the watch of a removed directory on its own
	delete(fw.watched, path)
}

// processEvents batches raw fsnotify events by change type
func (fw *FileWatcher) processEvents(ctx context.Context) {
	defer close(fw.events)

	pending := make(map[ChangeType][]string)

	flushTimer := time.NewTimer(batchWindow)
	flushTimer.Stop()

	flush := func() {
		now := time.Now()
		for _, t := range changeTypes {
			if paths := pending[t]; len(paths) > 0 {
				select {
				case fw.events <- ChangeEvent{Type: t, Paths: paths, Timestamp: now}:
				case <-ctx.Done():
					return
				}
			}
		}
		pending = make(map[ChangeType][]string)
	}

	for {
		select {
		case <-ctx.Done():
			fw.Stop()
			return

		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if fw.skip(event.Name) {
				continue
			}

			changeType, relevant := classify(event)
			if !relevant {
				continue
			}

			switch changeType {
			case ChangeTypeCreate:
				if info, err := os.Lstat(event.Name); err == nil && info.IsDir() {
					if _, err := fw.AddTree(event.Name); err != nil {
						logging.Warn("failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			case ChangeTypeRemove, ChangeTypeRename:
				fw.forget(event.Name)
			}

			logging.Trace("file system event", "path", event.Name, "type", changeType.String())
			pending[changeType] = append(pending[changeType], event.Name)
			flushTimer.Reset(batchWindow)

		case <-flushTimer.C:
			flush()

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			logging.Error("watcher error", "error", err)
		}
	}
}

// classify maps an fsnotify operation to a change type. Pure permission
// changes are irrelevant to a file listing.
func classify(event fsnotify.Event) (ChangeType, bool) {
	switch {
	case event.Has(fsnotify.Create):
		return ChangeTypeCreate, true
	case event.Has(fsnotify.Remove):
		return ChangeTypeRemove, true
	case event.Has(fsnotify.Rename):
		return ChangeTypeRename, true
	case event.Has(fsnotify.Write):
		return ChangeTypeWrite, true
	default:
		return 0, false
	}
}

// Events returns the channel of change events. It is closed when the
// watcher stops.
func (fw *FileWatcher) Events() <-chan ChangeEvent {
	return fw.events
}

// Stop stops the file watcher
func (fw *FileWatcher) Stop() error {
	var err error
	fw.stopOnce.Do(func() {
		err = fw.watcher.Close()
	})
	return err
}
