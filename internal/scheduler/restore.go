package scheduler

import (
	"context"

	"remindbot/internal/eventbus"
	logx "remindbot/pkg/logx"
)

// Restore re-arms every active reminder that is still in the future. Run it
// once at startup before accepting requests.
//
// Rows that cannot be parsed are logged and skipped. Active rows whose moment
// already passed are left alone under OverdueSkip and delivered once under
// OverdueFire.
func (s *Service) Restore(ctx context.Context) (RestoreReport, error) {
	var rep RestoreReport
	now := s.clock.Now()

	rows, err := s.store.ListRestorableReminders(ctx, now)
	if err != nil {
		serr := &StorageError{Op: "list_restorable", Err: err}
		s.log.Error("restore failed", logx.Err(serr))
		return rep, serr
	}

	var late []*job
	for _, r := range rows {
		j, err := jobFromRow(r)
		if err != nil {
			rep.Skipped++
			s.log.Warn("restore skipped row", logx.Err(&RestoreRowError{JobID: r.JobID, Err: err}))
			continue
		}
		// The list was taken against an earlier now.
		if !j.at.After(s.clock.Now()) {
			late = append(late, j)
			continue
		}
		if !s.arm(j) {
			return rep, ErrStopped
		}
		rep.Armed++
		s.restored.Add(1)
		s.publish(eventbus.ReminderRestored, j, nil)
	}

	overdue, err := s.store.ListOverdueReminders(ctx, now)
	if err != nil {
		// The armed part already succeeded; report the overdue gap and go on.
		s.log.Warn("overdue scan failed", logx.Err(&StorageError{Op: "list_overdue", Err: err}))
	}
	for _, r := range overdue {
		j, err := jobFromRow(r)
		if err != nil {
			rep.Skipped++
			s.log.Warn("restore skipped row", logx.Err(&RestoreRowError{JobID: r.JobID, Err: err}))
			continue
		}
		late = append(late, j)
	}
	rep.Overdue = len(late)

	if s.cfg.policy() == OverdueFire {
		rep.Fired = s.fireOverdue(ctx, late)
	} else if len(late) > 0 {
		s.log.Warn("overdue reminders left active", logx.Int("count", len(late)))
	}

	s.log.Info("restore complete",
		logx.Int("armed", rep.Armed),
		logx.Int("overdue", rep.Overdue),
		logx.Int("fired", rep.Fired),
		logx.Int("skipped", rep.Skipped),
	)
	return rep, nil
}

// fireOverdue delivers late jobs in order. Stop waits for the delivery in
// progress and the remaining jobs stay active for the next Restore.
func (s *Service) fireOverdue(ctx context.Context, late []*job) int {
	fired := 0
	for _, j := range late {
		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			break
		}
		s.inflight.Add(1)
		s.mu.Unlock()

		if s.deliver(ctx, j) {
			fired++
		}
		s.inflight.Done()
	}
	return fired
}
