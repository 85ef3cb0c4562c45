// Package scheduler runs the periodic full library rescan.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/comicshelf/internal/logging"
)

// DefaultSchedule runs a full rescan every night at 03:00.
const DefaultSchedule = "0 3 * * *"

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ValidateSchedule checks a five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// RescanRequester queues a library rescan.
type RescanRequester interface {
	RequestRescan(ctx context.Context, full bool) error
}

// LockState reports whether an exclusive job is running.
type LockState interface {
	IsLocked() bool
}

// RescanScheduler manages the periodic full rescan.
type RescanScheduler struct {
	requester RescanRequester
	lock      LockState
	schedule  string

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
}

func NewRescanScheduler(requester RescanRequester, lock LockState, schedule string) *RescanScheduler {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &RescanScheduler{
		requester: requester,
		lock:      lock,
		schedule:  schedule,
		cron:      cron.New(cron.WithParser(parser)),
	}
}

// Start schedules the rescan job. It stops when ctx is done.
func (s *RescanScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if err := ValidateSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, func() {
		s.runRescan(ctx)
	})
	if err != nil {
		return fmt.Errorf("failed to schedule rescan job: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	logging.L().Info("Rescan scheduler started",
		logging.String("schedule", s.schedule),
		logging.Any("next_run", s.nextRunLocked()))

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()
	return nil
}

// Stop waits for a running job and stops the scheduler.
func (s *RescanScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()
	s.cron.Remove(s.entryID)

	s.isRunning = false
	if s.cancelFunc != nil {
		s.cancelFunc()
		s.cancelFunc = nil
	}
	logging.L().Info("Rescan scheduler stopped")
}

// RunNow requests a full rescan immediately.
func (s *RescanScheduler) RunNow(ctx context.Context) {
	s.runRescan(ctx)
}

func (s *RescanScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next rescan will occur.
func (s *RescanScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextRunLocked()
}

func (s *RescanScheduler) nextRunLocked() *time.Time {
	if !s.isRunning {
		return nil
	}
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *RescanScheduler) runRescan(ctx context.Context) {
	if s.lock != nil && s.lock.IsLocked() {
		logging.L().Info("Scheduled rescan skipped, service is locked")
		return
	}
	if err := s.requester.RequestRescan(ctx, true); err != nil {
		logging.L().Error("Scheduled rescan failed", logging.Err(err))
		return
	}
	logging.L().Info("Scheduled full rescan requested")
}
