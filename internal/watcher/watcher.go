// Package watcher polls the library folders for changes, collapses bursts of
// changes into one change set and hands it to a listener after a quiet period.
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/mrlokans/comicshelf/internal/logging"
	"github.com/mrlokans/comicshelf/internal/metrics"
)

type State int

const (
	StateIdle State = iota
	StatePolling
	StateChangesDetected
	StateDebouncing
	StateDispatch
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateChangesDetected:
		return "changes_detected"
	case StateDebouncing:
		return "debouncing"
	case StateDispatch:
		return "dispatch"
	default:
		return "unknown"
	}
}

const (
	DefaultPollInterval = 5 * time.Second
	DefaultDebounce     = 10 * time.Second
)

// Listener receives a change set and returns the events that must stay
// pending for the next cycle.
type Listener interface {
	Dispatch(ctx context.Context, changes []Event) []Event
}

type ListenerFunc func(ctx context.Context, changes []Event) []Event

func (f ListenerFunc) Dispatch(ctx context.Context, changes []Event) []Event {
	return f(ctx, changes)
}

type Options struct {
	// Folders returns the folders to watch. It is consulted on Restart.
	Folders      func() []string
	Listener     Listener
	PollInterval time.Duration
	Debounce     time.Duration
	// Include filters the files that are tracked. Nil tracks every regular file.
	Include func(path string) bool
	Now     func() time.Time
}

type fileState struct {
	size    int64
	modTime time.Time
}

type Watcher struct {
	folders  func() []string
	listener Listener
	interval time.Duration
	debounce time.Duration
	include  func(string) bool
	now      func() time.Time

	// cycle serializes Poll, Restart and Acknowledge.
	cycle    sync.Mutex
	watched  []string
	snapshot map[string]fileState

	mu         sync.Mutex
	state      State
	pending    map[string]Event
	lastChange time.Time
	enabled    bool
}

func New(opts Options) *Watcher {
	w := &Watcher{
		folders:  opts.Folders,
		listener: opts.Listener,
		interval: opts.PollInterval,
		debounce: opts.Debounce,
		include:  opts.Include,
		now:      opts.Now,
		snapshot: make(map[string]fileState),
		pending:  make(map[string]Event),
		enabled:  true,
	}
	if w.folders == nil {
		w.folders = func() []string { return nil }
	}
	if w.interval <= 0 {
		w.interval = DefaultPollInterval
	}
	if w.debounce < 0 {
		w.debounce = DefaultDebounce
	}
	if w.now == nil {
		w.now = time.Now
	}
	return w
}

// Run polls until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	w.Restart()
	logging.L().Info("Watching library folders",
		logging.Duration("interval", w.interval), logging.Duration("debounce", w.debounce))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.Poll(ctx)
		}
	}
}

// Restart rebuilds the snapshot for the current folder set. Pending events
// outside the new folder set are dropped.
func (w *Watcher) Restart() {
	w.cycle.Lock()
	defer w.cycle.Unlock()

	folders := w.folders()
	snapshot := w.scan(folders)
	w.watched = folders
	w.snapshot = snapshot

	w.mu.Lock()
	for path := range w.pending {
		if !within(path, folders) {
			delete(w.pending, path)
		}
	}
	metrics.SetWatcherPending(len(w.pending))
	w.mu.Unlock()

	logging.L().Debug("Watcher restarted",
		logging.Int("folders", len(folders)), logging.Int("files", len(snapshot)))
}

// SetEnabled pauses or resumes polling.
func (w *Watcher) SetEnabled(enabled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.enabled = enabled
}

func (w *Watcher) Enabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enabled
}

// Poll runs one cycle: diff the folders against the snapshot, fold the
// differences into the pending set and dispatch once the set has been quiet
// for the debounce window.
func (w *Watcher) Poll(ctx context.Context) {
	if !w.Enabled() {
		return
	}

	w.cycle.Lock()
	defer w.cycle.Unlock()

	w.setState(StatePolling)
	current := w.scan(w.watched)
	now := w.now()
	changes := diff(w.snapshot, current, now)
	w.snapshot = current

	w.mu.Lock()
	if len(changes) > 0 {
		w.state = StateChangesDetected
		w.lastChange = now
		for _, ev := range changes {
			w.addPendingLocked(ev)
		}
	}
	metrics.SetWatcherPending(len(w.pending))
	if len(w.pending) == 0 {
		w.state = StateIdle
		w.mu.Unlock()
		return
	}
	if now.Sub(w.lastChange) < w.debounce {
		w.state = StateDebouncing
		w.mu.Unlock()
		return
	}
	batch := w.pendingLocked()
	w.state = StateDispatch
	w.mu.Unlock()

	var retained []Event
	if w.listener != nil {
		retained = w.listener.Dispatch(ctx, batch)
	}

	w.mu.Lock()
	w.pending = make(map[string]Event, len(retained))
	for _, ev := range retained {
		w.pending[ev.Path] = ev
	}
	metrics.SetWatcherPending(len(w.pending))
	if len(w.pending) > 0 {
		w.state = StateDebouncing
	} else {
		w.state = StateIdle
	}
	w.mu.Unlock()
}

// Acknowledge records files rewritten by the application itself so that they
// do not trigger a rescan.
func (w *Watcher) Acknowledge(paths ...string) {
	w.cycle.Lock()
	defer w.cycle.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, path := range paths {
		path = filepath.Clean(path)
		delete(w.pending, path)
		if !within(path, w.watched) {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			delete(w.snapshot, path)
			continue
		}
		w.snapshot[path] = fileState{size: info.Size(), modTime: info.ModTime()}
	}
	metrics.SetWatcherPending(len(w.pending))
}

func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Pending returns the events waiting for dispatch, sorted by path.
func (w *Watcher) Pending() []Event {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.pendingLocked()
}

func (w *Watcher) pendingLocked() []Event {
	events := make([]Event, 0, len(w.pending))
	for _, ev := range w.pending {
		events = append(events, ev)
	}
	sortEvents(events)
	return events
}

func (w *Watcher) addPendingLocked(ev Event) {
	prev, ok := w.pending[ev.Path]
	if !ok {
		w.pending[ev.Path] = ev
		return
	}
	merged, keep := consolidate(prev, ev)
	if !keep {
		delete(w.pending, ev.Path)
		return
	}
	w.pending[ev.Path] = merged
}

func (w *Watcher) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func (w *Watcher) scan(folders []string) map[string]fileState {
	files := make(map[string]fileState)
	for _, folder := range folders {
		err := filepath.WalkDir(folder, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == folder {
					return err
				}
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") && path != folder {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if !d.Type().IsRegular() {
				return nil
			}
			if w.include != nil && !w.include(path) {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			files[filepath.Clean(path)] = fileState{size: info.Size(), modTime: info.ModTime()}
			return nil
		})
		if err != nil {
			logging.L().Warn("Failed to scan watched folder", logging.String("folder", folder), logging.Err(err))
			// An unreachable folder keeps its last known files.
			for path, st := range w.snapshot {
				if within(path, []string{folder}) {
					files[path] = st
				}
			}
		}
	}
	return files
}

func diff(before, after map[string]fileState, now time.Time) []Event {
	var events []Event
	for path, cur := range after {
		prev, ok := before[path]
		switch {
		case !ok:
			events = append(events, Event{Path: path, Kind: Create, Time: now})
		case prev.size != cur.size || !prev.modTime.Equal(cur.modTime):
			events = append(events, Event{Path: path, Kind: Modify, Time: now})
		}
	}
	for path := range before {
		if _, ok := after[path]; !ok {
			events = append(events, Event{Path: path, Kind: Delete, Time: now})
		}
	}
	sortEvents(events)
	return events
}

func within(path string, folders []string) bool {
	for _, folder := range folders {
		rel, err := filepath.Rel(folder, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
