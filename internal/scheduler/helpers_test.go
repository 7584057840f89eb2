package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"remindbot/internal/storage"
	logx "remindbot/pkg/logx"
)

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	c    *fakeClock
	at   time.Time
	f    func()
	done bool
}

func newFakeClock(now time.Time) *fakeClock { return &fakeClock{now: now} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{c: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.c.mu.Lock()
	defer t.c.mu.Unlock()
	if t.done {
		return false
	}
	t.done = true
	return true
}

// Advance moves time forward and runs every due callback, in deadline order,
// on the calling goroutine.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	for _, t := range c.timers {
		if !t.done && !t.at.After(c.now) {
			t.done = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()
	sort.SliceStable(due, func(a, b int) bool { return due[a].at.Before(due[b].at) })
	for _, t := range due {
		t.f()
	}
}

type sent struct {
	ExternalID int64
	Text       string
}

type recordingSender struct {
	mu   sync.Mutex
	got  []sent
	fail error
}

func (r *recordingSender) Send(_ context.Context, externalID int64, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, sent{ExternalID: externalID, Text: text})
	return r.fail
}

func (r *recordingSender) calls() []sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]sent(nil), r.got...)
}

// gatedSender blocks every send until release is closed.
type gatedSender struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedSender() *gatedSender {
	return &gatedSender{entered: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSender) Send(ctx context.Context, _ int64, _ string) error {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// faultyStore injects failures and extra rows around a real store.
type faultyStore struct {
	Store
	addErr    error
	extraRows []storage.OwnedReminder

	// deactivateFails makes that many DeactivateReminder calls fail.
	deactivateFails atomic.Int32
}

var errStoreDown = errors.New("store down")

func (f *faultyStore) DeactivateReminder(ctx context.Context, jobID string) (bool, error) {
	if f.deactivateFails.Add(-1) >= 0 {
		return false, errStoreDown
	}
	return f.Store.DeactivateReminder(ctx, jobID)
}

func (f *faultyStore) AddReminder(ctx context.Context, userID int64, text string, fireAt time.Time, jobID string) error {
	if f.addErr != nil {
		return f.addErr
	}
	return f.Store.AddReminder(ctx, userID, text, fireAt, jobID)
}

func (f *faultyStore) ListRestorableReminders(ctx context.Context, now time.Time) ([]storage.OwnedReminder, error) {
	rows, err := f.Store.ListRestorableReminders(ctx, now)
	return append(rows, f.extraRows...), err
}

func openStore(t *testing.T) storage.Store {
	t.Helper()
	st, err := storage.Open(context.Background(), storage.Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "reminders.db"),
	}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newEngine(t *testing.T, cfg Config, st Store, clk Clock, snd Sender, opts ...Option) *Service {
	t.Helper()
	if cfg.MaintenanceSpec == "" {
		cfg.MaintenanceSpec = "off"
	}
	opts = append([]Option{WithClock(clk)}, opts...)
	s := New(cfg, st, snd, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func activeFor(t *testing.T, st storage.Store, externalID int64) []storage.Reminder {
	t.Helper()
	uid, err := st.UserIDByExternal(context.Background(), externalID)
	require.NoError(t, err)
	list, err := st.ListActiveReminders(context.Background(), uid)
	require.NoError(t, err)
	return list
}
