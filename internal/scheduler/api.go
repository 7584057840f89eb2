package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

// Schedule persists an active reminder and arms its timer.
//
// Validation happens before any write. The record is stored before the timer
// is armed, so a crash in between is repaired by Restore. On any error no
// timer is armed.
func (s *Service) Schedule(ctx context.Context, req ScheduleRequest) (ScheduledReminder, error) {
	if strings.TrimSpace(req.Text) == "" {
		return ScheduledReminder{}, &ValidationError{Field: "text", Err: ErrEmptyText}
	}
	if req.FireAt.IsZero() {
		return ScheduledReminder{}, &ValidationError{Field: "fire_at", Err: ErrMissingAt}
	}
	at := req.FireAt.UTC().Truncate(time.Second)
	if !at.After(s.clock.Now()) {
		return ScheduledReminder{}, &ValidationError{Field: "fire_at", Err: ErrNotFuture}
	}
	if s.isStopped() {
		return ScheduledReminder{}, ErrStopped
	}

	uid, err := s.store.GetOrCreateUser(ctx, req.ExternalID, req.Profile)
	if err != nil {
		serr := &StorageError{Op: "get_or_create_user", Err: err}
		s.log.Error("schedule failed", logx.Int64("external_id", req.ExternalID), logx.Err(serr))
		return ScheduledReminder{}, serr
	}
	id := s.newID()
	if err := s.store.AddReminder(ctx, uid, req.Text, at, id); err != nil {
		serr := &StorageError{Op: "add_reminder", Err: err}
		s.log.Error("schedule failed", logx.Int64("external_id", req.ExternalID), logx.JobID(id), logx.Err(serr))
		return ScheduledReminder{}, serr
	}

	j := &job{id: id, externalID: req.ExternalID, text: req.Text, at: at}
	if !s.arm(j) {
		// Stopped between persist and arm; the row waits for the next Restore.
		s.log.Warn("reminder stored but not armed", logx.JobID(id))
	}
	s.publish(eventbus.ReminderScheduled, j, nil)
	s.log.Info("reminder scheduled",
		logx.JobID(id),
		logx.Int64("external_id", req.ExternalID),
		logx.Time("fire_at", at),
	)
	return ScheduledReminder{JobID: id, FireAt: at}, nil
}

// Cancel retires the job's record and then disarms its timer. It reports
// whether this call retired it; unknown, fired and cancelled jobs return
// false. When the store fails the timer stays armed and the reminder still
// fires.
func (s *Service) Cancel(ctx context.Context, jobID string) (bool, error) {
	id := strings.TrimSpace(jobID)
	if id == "" {
		return false, &ValidationError{Field: "job_id", Err: ErrEmptyJobID}
	}

	// A timer that elapses between the deactivate and the disarm loses the
	// compare-and-set in deliver and sends nothing.
	changed, err := s.store.DeactivateReminder(ctx, id)
	if err != nil {
		serr := &StorageError{Op: "deactivate", Err: err}
		s.log.Error("cancel failed", logx.JobID(id), logx.Err(serr))
		return false, serr
	}

	s.mu.Lock()
	j, armed := s.jobs[id]
	if armed {
		j.timer.Stop()
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	if !changed {
		s.log.Debug("cancel had no effect", logx.JobID(id), logx.Bool("was_armed", armed))
		return false, nil
	}
	s.cancelled.Add(1)
	if j == nil {
		j = &job{id: id}
	}
	s.publish(eventbus.ReminderCancelled, j, nil)
	s.log.Info("reminder cancelled", logx.JobID(id))
	return true, nil
}

// Pending reports whether a timer is armed for jobID.
func (s *Service) Pending(jobID string) bool {
	s.mu.Lock()
	_, ok := s.jobs[jobID]
	s.mu.Unlock()
	return ok
}

// Armed returns the number of armed timers.
func (s *Service) Armed() int {
	s.mu.Lock()
	n := len(s.jobs)
	s.mu.Unlock()
	return n
}

func (s *Service) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// arm installs j's timer, replacing any previous one for the same id.
func (s *Service) arm(j *job) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	if old, ok := s.jobs[j.id]; ok {
		old.timer.Stop()
	}
	s.seq++
	j.ver = s.seq
	delay := j.at.Sub(s.clock.Now())
	if delay < 0 {
		delay = 0
	}
	id, ver := j.id, j.ver
	j.timer = s.clock.AfterFunc(delay, func() { s.fire(id, ver) })
	s.jobs[j.id] = j
	return true
}

// fire runs when a timer elapses. A callback whose job was cancelled,
// re-armed or dropped by Stop finds a different version and returns.
func (s *Service) fire(jobID string, ver uint64) {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	if !ok || j.ver != ver || s.stopped {
		s.mu.Unlock()
		return
	}
	delete(s.jobs, jobID)
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	s.deliver(context.Background(), j)
}

// deliver retires j's record and then sends it at most once.
//
// The deactivate is a compare-and-set: if it changes nothing a cancel got
// there first and nothing is sent. If the store cannot be reached the send
// still happens once; the moment has passed so the default restore policy
// will not bring the row back.
func (s *Service) deliver(ctx context.Context, j *job) bool {
	changed, err := s.store.DeactivateReminder(ctx, j.id)
	switch {
	case err != nil:
		s.log.Error("retire before delivery failed; delivering anyway",
			logx.JobID(j.id), logx.Err(&StorageError{Op: "deactivate", Err: err}))
	case !changed:
		s.log.Debug("reminder already retired; not delivering", logx.JobID(j.id))
		return false
	}

	if err := s.sender.Send(ctx, j.externalID, j.text); err != nil {
		derr := &DeliveryError{JobID: j.id, ExternalID: j.externalID, Err: err}
		s.failed.Add(1)
		s.publish(eventbus.ReminderDeliveryFailed, j, derr)
		s.log.Warn("reminder delivery failed", logx.JobID(j.id), logx.Err(derr))
		return true
	}
	s.fired.Add(1)
	s.publish(eventbus.ReminderFired, j, nil)
	s.log.Info("reminder fired", logx.JobID(j.id), logx.Int64("external_id", j.externalID))
	return true
}

func jobFromRow(r storage.OwnedReminder) (*job, error) {
	at, err := r.FireAt()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(r.JobID) == "" {
		return nil, errors.New("empty job id")
	}
	return &job{id: r.JobID, externalID: r.ExternalID, text: r.Text, at: at}, nil
}
