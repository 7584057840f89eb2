package scheduler

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"remindbot/internal/eventbus"
	logx "remindbot/pkg/logx"
)

// Service is the scheduling engine. One instance is shared by every request
// handler and by the timer callbacks.
type Service struct {
	cfg    Config
	loc    *time.Location
	store  Store
	sender Sender
	clock  Clock
	log    logx.Logger
	bus    eventbus.Bus
	newID  func() string

	mu       sync.Mutex
	jobs     map[string]*job
	seq      uint64
	stopped  bool
	inflight sync.WaitGroup

	cmu    sync.Mutex
	c      *cron.Cron
	parser cron.Parser
	sweep  sweepResult

	fired     atomic.Uint64
	cancelled atomic.Uint64
	failed    atomic.Uint64
	restored  atomic.Uint64
}

func New(cfg Config, store Store, sender Sender, opts ...Option) *Service {
	s := &Service{
		cfg:    cfg,
		store:  store,
		sender: sender,
		clock:  realClock{},
		log:    logx.Nop(),
		newID:  defaultID,
		jobs:   map[string]*job{},
		parser: cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
	}
	for _, o := range opts {
		o(s)
	}
	s.loc = loadLocation(cfg.Timezone, s.log)
	return s
}

// Location is the fixed zone user-facing times are interpreted in.
func (s *Service) Location() *time.Location { return s.loc }

// Now is the engine clock's current time in the fixed zone.
func (s *Service) Now() time.Time { return s.clock.Now().In(s.loc) }

// Start begins the maintenance sweep. The sweep runs with ctx and stops when
// ctx ends. Reminder timers do not depend on it.
func (s *Service) Start(ctx context.Context) {
	spec := strings.TrimSpace(s.cfg.MaintenanceSpec)
	if spec == "" {
		spec = DefaultMaintenanceSpec
	}
	if strings.EqualFold(spec, "off") {
		s.log.Info("service started", logx.String("tz", s.loc.String()), logx.String("overdue", s.cfg.policy()))
		return
	}

	s.cmu.Lock()
	defer s.cmu.Unlock()
	if s.c != nil {
		return
	}
	c := cron.New(cron.WithParser(s.parser), cron.WithLocation(s.loc))
	if _, err := c.AddFunc(spec, func() { s.runSweep(ctx) }); err != nil {
		s.log.Error("maintenance spec rejected; sweep disabled", logx.String("spec", spec), logx.Err(err))
	} else {
		c.Start()
		s.c = c
		context.AfterFunc(ctx, func() {
			s.stopSweep()
			s.log.Debug("maintenance sweep stopped", logx.Err(ctx.Err()))
		})
	}
	s.log.Info("service started",
		logx.String("tz", s.loc.String()),
		logx.String("overdue", s.cfg.policy()),
		logx.String("sweep", spec),
	)
}

// Stop disarms every timer and waits for in-flight fires until ctx ends.
// Active records stay as they are; the next Restore re-arms them.
func (s *Service) Stop(ctx context.Context) {
	start := time.Now()
	s.log.Info("stop requested")

	s.mu.Lock()
	s.stopped = true
	disarmed := len(s.jobs)
	for id, j := range s.jobs {
		j.timer.Stop()
		delete(s.jobs, id)
	}
	s.mu.Unlock()

	select {
	case <-s.stopSweep():
	case <-ctx.Done():
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn("stop timed out waiting for in-flight deliveries", logx.Err(ctx.Err()))
	}
	s.log.Info("service stopped", logx.Int("disarmed", disarmed), logx.Duration("took", time.Since(start)))
}

// stopSweep halts the maintenance cron. The channel closes once a running
// sweep returns.
func (s *Service) stopSweep() <-chan struct{} {
	s.cmu.Lock()
	c := s.c
	s.c = nil
	s.cmu.Unlock()
	if c == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return c.Stop().Done()
}

func (s *Service) publish(typ string, j *job, err error) {
	if s.bus == nil {
		return
	}
	ev := eventbus.ReminderEvent{JobID: j.id, ExternalID: j.externalID, FireAt: j.at}
	if err != nil {
		ev.Err = err.Error()
	}
	s.bus.Publish(eventbus.Event{Type: typ, Time: s.clock.Now(), Data: ev})
}

func loadLocation(tz string, log logx.Logger) *time.Location {
	tz = strings.TrimSpace(tz)
	if tz == "" || strings.EqualFold(tz, "UTC") {
		return time.UTC
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Warn("invalid timezone; falling back to UTC", logx.String("tz", tz), logx.Err(err))
		return time.UTC
	}
	return loc
}
