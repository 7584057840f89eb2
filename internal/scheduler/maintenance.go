package scheduler

import (
	"context"
	"time"

	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

type sweepResult struct {
	At      time.Time
	Pending int
	Overdue int
	Err     string
}

// runSweep logs how many reminders are waiting and how many are stale.
// It never fires or changes anything.
func (s *Service) runSweep(ctx context.Context) {
	now := s.clock.Now()
	res := sweepResult{At: now}

	pending, err := s.store.CountPending(ctx, now)
	if err == nil {
		res.Pending = pending
		var rows []storage.OwnedReminder
		rows, err = s.store.ListOverdueReminders(ctx, now)
		res.Overdue = len(rows)
	}
	if err != nil {
		res.Err = err.Error()
		s.log.Warn("maintenance sweep failed", logx.Err(&StorageError{Op: "sweep", Err: err}))
	} else {
		s.log.Info("maintenance sweep",
			logx.Int("pending", res.Pending),
			logx.Int("overdue", res.Overdue),
			logx.Int("armed", s.Armed()),
		)
	}

	s.cmu.Lock()
	s.sweep = res
	s.cmu.Unlock()
}
