package scheduler

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"remindbot/internal/eventbus"
	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

// Overdue policies applied by Restore to active reminders whose moment passed
// while the process was down.
const (
	OverdueSkip = "skip" // leave them active and unfired
	OverdueFire = "fire" // deliver them once, immediately
)

const DefaultMaintenanceSpec = "@every 10m"

// Config controls the engine.
type Config struct {
	Timezone        string // fixed zone for user-facing times; "" means UTC
	OverduePolicy   string // OverdueSkip (default) or OverdueFire
	MaintenanceSpec string // cron spec for the pending sweep; "off" disables
}

func (c Config) policy() string {
	if strings.EqualFold(strings.TrimSpace(c.OverduePolicy), OverdueFire) {
		return OverdueFire
	}
	return OverdueSkip
}

// Store is the subset of storage.Store the engine needs.
type Store interface {
	GetOrCreateUser(ctx context.Context, externalID int64, p storage.Profile) (int64, error)
	AddReminder(ctx context.Context, userID int64, text string, fireAt time.Time, jobID string) error
	DeactivateReminder(ctx context.Context, jobID string) (bool, error)
	ListRestorableReminders(ctx context.Context, now time.Time) ([]storage.OwnedReminder, error)
	ListOverdueReminders(ctx context.Context, now time.Time) ([]storage.OwnedReminder, error)
	CountPending(ctx context.Context, now time.Time) (int, error)
}

// Sender delivers a reminder text to a user.
type Sender interface {
	Send(ctx context.Context, externalID int64, text string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, externalID int64, text string) error

func (f SenderFunc) Send(ctx context.Context, externalID int64, text string) error {
	return f(ctx, externalID, text)
}

type ScheduleRequest struct {
	ExternalID int64
	Profile    storage.Profile
	Text       string
	FireAt     time.Time
}

type ScheduledReminder struct {
	JobID  string
	FireAt time.Time // UTC, whole seconds
}

// RestoreReport summarises one Restore pass.
type RestoreReport struct {
	Armed   int
	Overdue int // active rows already due; left alone or fired per policy
	Fired   int // overdue rows delivered under OverdueFire
	Skipped int // unusable rows
}

type Option func(*Service)

func WithClock(c Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(l logx.Logger) Option {
	return func(s *Service) {
		if !l.IsZero() {
			s.log = l
		}
	}
}

func WithBus(b eventbus.Bus) Option {
	return func(s *Service) { s.bus = b }
}

// WithIDs replaces the job id generator (uuid v4 by default).
func WithIDs(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newID = gen
		}
	}
}

func defaultID() string { return uuid.NewString() }

// job is one armed timer. ver distinguishes re-arms of the same job id so a
// stale callback can tell it lost.
type job struct {
	id         string
	externalID int64
	text       string
	at         time.Time
	ver        uint64
	timer      Timer
}
