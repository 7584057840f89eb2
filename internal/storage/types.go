package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrDisabled     = errors.New("storage disabled")
	ErrNotFound     = errors.New("reminder not found")
	ErrDuplicateJob = errors.New("duplicate job id")
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Config configures storage.
//
// Driver values:
//   - "sqlite": Path is the database file
//   - "postgres": DSN is a pgx connection string
type Config struct {
	Driver      string
	Path        string
	DSN         string
	BusyTimeout time.Duration // sqlite only; 0 means 5s
}

// Profile is optional display metadata captured on first contact.
type Profile struct {
	Username  string
	FirstName string
	LastName  string
}

type User struct {
	ID         int64
	ExternalID int64
	Profile    Profile
	CreatedAt  time.Time
}

// Reminder is one persisted one-shot notification.
type Reminder struct {
	ID        int64
	UserID    int64
	Text      string
	FireDate  string // UTC, DateLayout
	FireTime  string // UTC, TimeLayout
	JobID     string
	Active    bool
	CreatedAt time.Time
}

// FireAt combines the stored date and time into a UTC instant.
func (r Reminder) FireAt() (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, strings.TrimSpace(r.FireDate)+" "+strings.TrimSpace(r.FireTime), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("reminder %s: bad fire moment %q %q: %w", r.JobID, r.FireDate, r.FireTime, err)
	}
	return t, nil
}

// OwnedReminder is a reminder joined with its owner's external id.
type OwnedReminder struct {
	Reminder
	ExternalID int64
}

// SplitMoment renders t as the stored (date, time) pair in UTC.
func SplitMoment(t time.Time) (date, clock string) {
	u := t.UTC()
	return u.Format(DateLayout), u.Format(TimeLayout)
}

// Store is the persistence API used by the scheduling engine and the CLI.
type Store interface {
	// GetOrCreateUser returns the id for externalID, inserting it with p on
	// first contact. Profile data is never updated on later calls.
	GetOrCreateUser(ctx context.Context, externalID int64, p Profile) (int64, error)
	// AddReminder inserts a new active reminder. ErrDuplicateJob on job id reuse.
	AddReminder(ctx context.Context, userID int64, text string, fireAt time.Time, jobID string) error
	// ListActiveReminders returns a user's active reminders, soonest first.
	ListActiveReminders(ctx context.Context, userID int64) ([]Reminder, error)
	// DeactivateReminder flips an active reminder to inactive. It reports
	// whether a row changed; unknown or already inactive ids return false.
	DeactivateReminder(ctx context.Context, jobID string) (bool, error)
	// ListRestorableReminders returns active reminders strictly after now.
	ListRestorableReminders(ctx context.Context, now time.Time) ([]OwnedReminder, error)
	// ListOverdueReminders returns active reminders at or before now.
	ListOverdueReminders(ctx context.Context, now time.Time) ([]OwnedReminder, error)
	// CountPending counts active reminders strictly after now.
	CountPending(ctx context.Context, now time.Time) (int, error)
	// GetReminder looks a reminder up by job id. ErrNotFound if unknown.
	GetReminder(ctx context.Context, jobID string) (OwnedReminder, error)
	// UserIDByExternal resolves an existing user without creating one.
	UserIDByExternal(ctx context.Context, externalID int64) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}
