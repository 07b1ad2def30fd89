package watch

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/graybiralo/SyncGuardian/internal/protocol"
)

// tree remembers every entry seen under the root. fsnotify does not say
// whether a removed path was a directory, and inotify reports a removed
// directory twice (from its parent and from itself); both are resolved here.
// Only the pump goroutine touches a tree once Start returns.
type tree struct {
	entries map[string]protocol.EntryType
}

// index walks root, registers a watch on every directory and records every
// entry below root.
func index(notifier *fsnotify.Watcher, root string) (*tree, error) {
	if err := notifier.Add(root); err != nil {
		return nil, err
	}
	t := &tree{entries: make(map[string]protocol.EntryType)}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			return nil
		}
		if path == root {
			return nil
		}
		if d.IsDir() {
			if err := notifier.Add(path); err != nil {
				return filepath.SkipDir
			}
			t.add(path, protocol.Directory)
			return nil
		}
		t.add(path, protocol.File)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (t *tree) known(path string) bool {
	_, ok := t.entries[path]
	return ok
}

func (t *tree) add(path string, entry protocol.EntryType) {
	t.entries[path] = entry
}

// removal is an entry that left the tree.
type removal struct {
	path  string
	entry protocol.EntryType
}

// forget drops path and everything below it. Descendants come first, deepest
// before their parents, and path itself last. Nothing is returned when path
// was not known.
func (t *tree) forget(path string) []removal {
	entry, ok := t.entries[path]
	if !ok {
		return nil
	}
	delete(t.entries, path)

	var gone []removal
	if entry == protocol.Directory {
		prefix := path + string(filepath.Separator)
		for p, e := range t.entries {
			if strings.HasPrefix(p, prefix) {
				gone = append(gone, removal{path: p, entry: e})
				delete(t.entries, p)
			}
		}
		sort.Slice(gone, func(i, j int) bool { return gone[i].path > gone[j].path })
	}
	return append(gone, removal{path: path, entry: entry})
}
