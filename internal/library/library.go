// Package library holds the state shared between the watcher, the HTTP API
// and the background jobs: the watched folder list and the service lock.
//
// The folder list has a single writer (AddFolder/RemoveFolder serialize on a
// mutex and persist before publishing) and lock-free readers that always see
// a complete snapshot.
package library

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mrlokans/comicshelf/internal/logging"
	"github.com/mrlokans/comicshelf/internal/servicelock"
)

var (
	ErrFolderNotFound = errors.New("library folder not found")
	ErrFolderExists   = errors.New("library folder already added")
	ErrFolderOverlaps = errors.New("library folder overlaps an existing folder")
	ErrNotADirectory  = errors.New("path is not a directory")
)

type Library struct {
	store *Store
	lock  *servicelock.Lock

	writeMu sync.Mutex
	folders atomic.Pointer[[]Folder]

	listenersMu sync.Mutex
	listeners   []func([]Folder)
}

// Open loads the folder list from store.
func Open(store *Store, lock *servicelock.Lock) (*Library, error) {
	folders, err := store.Load()
	if err != nil {
		return nil, err
	}
	if lock == nil {
		lock = servicelock.New()
	}
	l := &Library{store: store, lock: lock}
	l.folders.Store(&folders)

	logging.L().Info("Library loaded", logging.Int("folders", len(folders)), logging.String("config", store.Path()))
	return l, nil
}

// ServiceLock returns the lock shared by exclusive jobs.
func (l *Library) ServiceLock() *servicelock.Lock {
	return l.lock
}

// Folders returns a copy of the current folder list.
func (l *Library) Folders() []Folder {
	current := *l.folders.Load()
	out := make([]Folder, len(current))
	copy(out, current)
	return out
}

// Paths returns the folder paths.
func (l *Library) Paths() []string {
	current := *l.folders.Load()
	paths := make([]string, len(current))
	for i, f := range current {
		paths[i] = f.Path
	}
	return paths
}

// FolderByHash looks up a folder by its hash.
func (l *Library) FolderByHash(hash string) (Folder, bool) {
	for _, f := range *l.folders.Load() {
		if f.Hash == hash {
			return f, true
		}
	}
	return Folder{}, false
}

// FolderFor returns the library folder containing path.
func (l *Library) FolderFor(path string) (Folder, bool) {
	path = filepath.Clean(path)
	for _, f := range *l.folders.Load() {
		if contains(f.Path, path) {
			return f, true
		}
	}
	return Folder{}, false
}

// OnFoldersChanged registers fn to run after every folder list change.
func (l *Library) OnFoldersChanged(fn func([]Folder)) {
	l.listenersMu.Lock()
	defer l.listenersMu.Unlock()
	l.listeners = append(l.listeners, fn)
}

// AddFolder adds an existing directory to the library.
func (l *Library) AddFolder(path string) (Folder, error) {
	folder, err := NewFolder(path)
	if err != nil {
		return Folder{}, err
	}
	info, err := os.Stat(folder.Path)
	if err != nil {
		return Folder{}, fmt.Errorf("stat %s: %w", folder.Path, err)
	}
	if !info.IsDir() {
		return Folder{}, fmt.Errorf("%w: %s", ErrNotADirectory, folder.Path)
	}

	l.writeMu.Lock()
	current := *l.folders.Load()
	for _, f := range current {
		if f.Hash == folder.Hash {
			l.writeMu.Unlock()
			return Folder{}, fmt.Errorf("%w: %s", ErrFolderExists, folder.Path)
		}
		if contains(f.Path, folder.Path) || contains(folder.Path, f.Path) {
			l.writeMu.Unlock()
			return Folder{}, fmt.Errorf("%w: %s and %s", ErrFolderOverlaps, folder.Path, f.Path)
		}
	}
	next := append(append(make([]Folder, 0, len(current)+1), current...), folder)
	if err := l.publish(next); err != nil {
		l.writeMu.Unlock()
		return Folder{}, err
	}
	l.writeMu.Unlock()

	logging.L().Info("Library folder added", logging.String("path", folder.Path), logging.String("hash", folder.Hash))
	l.notify(next)
	return folder, nil
}

// RemoveFolder removes the folder with the given hash.
func (l *Library) RemoveFolder(hash string) (Folder, error) {
	l.writeMu.Lock()
	current := *l.folders.Load()
	next := make([]Folder, 0, len(current))
	var removed *Folder
	for i := range current {
		if current[i].Hash == hash {
			removed = &current[i]
			continue
		}
		next = append(next, current[i])
	}
	if removed == nil {
		l.writeMu.Unlock()
		return Folder{}, fmt.Errorf("%w: %s", ErrFolderNotFound, hash)
	}
	if err := l.publish(next); err != nil {
		l.writeMu.Unlock()
		return Folder{}, err
	}
	l.writeMu.Unlock()

	logging.L().Info("Library folder removed", logging.String("path", removed.Path))
	l.notify(next)
	return *removed, nil
}

// publish persists next and swaps it in. Callers hold writeMu.
func (l *Library) publish(next []Folder) error {
	if err := l.store.Save(next); err != nil {
		return fmt.Errorf("save folder config: %w", err)
	}
	l.folders.Store(&next)
	return nil
}

func (l *Library) notify(folders []Folder) {
	l.listenersMu.Lock()
	listeners := append([]func([]Folder){}, l.listeners...)
	l.listenersMu.Unlock()

	for _, fn := range listeners {
		fn(folders)
	}
}

func contains(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
