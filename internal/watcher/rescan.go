package watcher

import (
	"context"

	"github.com/mrlokans/comicshelf/internal/logging"
	"github.com/mrlokans/comicshelf/internal/metrics"
)

// LockState reports whether an exclusive job is running.
type LockState interface {
	IsLocked() bool
}

// RescanRequester queues a library rescan.
type RescanRequester interface {
	RequestRescan(ctx context.Context, full bool) error
}

// RescanListener turns a change set into at most one incremental rescan.
//
// The whole set stays pending while an exclusive job holds the service lock.
// Files still locked by another process stay pending individually. With
// IgnoreModify set, in-place modifications are dropped. The first event that
// passes triggers the rescan and consumes the rest of the batch.
type RescanListener struct {
	Lock         LockState
	Requester    RescanRequester
	IgnoreModify func() bool
	// FileLocked overrides the OS lock probe.
	FileLocked func(path string) bool
}

func (l *RescanListener) Dispatch(ctx context.Context, changes []Event) []Event {
	if l.Lock != nil && l.Lock.IsLocked() {
		metrics.RecordWatcherDispatch("locked")
		logging.L().Debug("Service locked, keeping changes pending", logging.Int("changes", len(changes)))
		return changes
	}

	probe := l.FileLocked
	if probe == nil {
		probe = isFileLocked
	}
	ignoreModify := l.IgnoreModify != nil && l.IgnoreModify()

	var retained []Event
	for i, ev := range changes {
		if ev.Kind != Delete && probe(ev.Path) {
			retained = append(retained, ev)
			continue
		}
		if ev.Kind == Modify && ignoreModify {
			continue
		}

		if err := l.Requester.RequestRescan(ctx, false); err != nil {
			metrics.RecordWatcherDispatch("error")
			logging.L().Error("Failed to request rescan", logging.Err(err))
			return append(retained, changes[i:]...)
		}
		metrics.RecordWatcherDispatch("rescan")
		logging.L().Info("Library changes detected, rescan requested",
			logging.String("trigger", ev.Path), logging.String("kind", ev.Kind.String()),
			logging.Int("changes", len(changes)))
		return retained
	}

	metrics.RecordWatcherDispatch("filtered")
	return retained
}
