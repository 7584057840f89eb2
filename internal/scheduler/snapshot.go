package scheduler

import (
	"sort"
	"time"
)

type JobInfo struct {
	JobID      string    `json:"job_id"`
	ExternalID int64     `json:"external_id"`
	FireAt     time.Time `json:"fire_at"`
}

type Snapshot struct {
	Timezone       string    `json:"timezone"`
	OverduePolicy  string    `json:"overdue_policy"`
	Stopped        bool      `json:"stopped"`
	Armed          int       `json:"armed"`
	Jobs           []JobInfo `json:"jobs"`
	Fired          uint64    `json:"fired"`
	Cancelled      uint64    `json:"cancelled"`
	DeliveryFailed uint64    `json:"delivery_failed"`
	Restored       uint64    `json:"restored"`
	LastSweep      time.Time `json:"last_sweep,omitempty"`
	LastPending    int       `json:"last_pending"`
	LastOverdue    int       `json:"last_overdue"`
	LastSweepErr   string    `json:"last_sweep_err,omitempty"`
	NextSweep      time.Time `json:"next_sweep,omitempty"`
}

// Snapshot returns the armed jobs, soonest first, and engine counters.
func (s *Service) Snapshot() Snapshot {
	s.mu.Lock()
	jobs := make([]JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, JobInfo{JobID: j.id, ExternalID: j.externalID, FireAt: j.at})
	}
	stopped := s.stopped
	s.mu.Unlock()
	sort.Slice(jobs, func(a, b int) bool {
		if jobs[a].FireAt.Equal(jobs[b].FireAt) {
			return jobs[a].JobID < jobs[b].JobID
		}
		return jobs[a].FireAt.Before(jobs[b].FireAt)
	})

	s.cmu.Lock()
	sw := s.sweep
	var next time.Time
	if s.c != nil {
		if entries := s.c.Entries(); len(entries) > 0 {
			next = entries[0].Next
		}
	}
	s.cmu.Unlock()

	return Snapshot{
		Timezone:       s.loc.String(),
		OverduePolicy:  s.cfg.policy(),
		Stopped:        stopped,
		Armed:          len(jobs),
		Jobs:           jobs,
		Fired:          s.fired.Load(),
		Cancelled:      s.cancelled.Load(),
		DeliveryFailed: s.failed.Load(),
		Restored:       s.restored.Load(),
		LastSweep:      sw.At,
		LastPending:    sw.Pending,
		LastOverdue:    sw.Overdue,
		LastSweepErr:   sw.Err,
		NextSweep:      next,
	}
}
