package formfile

import (
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ChangedHandler is called when a watched form document changes on disk.
type ChangedHandler func(formID string, doc *Document)

// Bridge watches exported form documents for external edits. When an editor
// saves the file, the watcher fires and the re-parsed document goes to the
// handler for reload into the builder.
type Bridge struct {
	watcher  *fsnotify.Watcher
	onChange ChangedHandler
	mu       sync.RWMutex
	watching map[string]string // filePath -> formID
	dirs     map[string]bool   // directories watched wholesale
}

// NewBridge creates a bridge and starts its watch loop.
func NewBridge(onChange ChangedHandler) (*Bridge, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	b := &Bridge{
		watcher:  watcher,
		onChange: onChange,
		watching: make(map[string]string),
		dirs:     make(map[string]bool),
	}

	go b.watchLoop()

	return b, nil
}

// WatchForm starts watching an exported form document.
func (b *Bridge) WatchForm(formID, filePath string) error {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.watching[absPath] = formID
	b.mu.Unlock()

	// Watch the directory (fsnotify watches dirs for file events)
	dir := filepath.Dir(absPath)
	return b.watcher.Add(dir)
}

// WatchDir watches every form document in dir. The form id comes from the
// file name, matching the layout Export produces.
func (b *Bridge) WatchDir(dir string) error {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	b.mu.Lock()
	b.dirs[absDir] = true
	b.mu.Unlock()

	return b.watcher.Add(absDir)
}

// StopWatching stops watching a form's document.
func (b *Bridge) StopWatching(formID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for path, id := range b.watching {
		if id == formID {
			delete(b.watching, path)
			break
		}
	}
}

// Close stops the watcher.
func (b *Bridge) Close() error {
	return b.watcher.Close()
}

func (b *Bridge) watchLoop() {
	for {
		select {
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			// Rename covers the temp-file writes Export itself performs.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				absPath, _ := filepath.Abs(event.Name)
				b.mu.RLock()
				formID, watched := b.watching[absPath]
				if !watched && filepath.Ext(absPath) == ".json" && b.dirs[filepath.Dir(absPath)] {
					formID = strings.TrimSuffix(filepath.Base(absPath), ".json")
					watched = true
				}
				b.mu.RUnlock()

				if watched {
					doc, err := Load(absPath)
					if err != nil {
						log.Printf("formfile bridge: reload %s: %v", absPath, err)
						continue
					}
					if b.onChange != nil {
						b.onChange(formID, doc)
					}
				}
			}
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("formfile bridge: watcher error: %v", err)
		}
	}
}
