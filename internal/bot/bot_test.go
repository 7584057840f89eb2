package bot

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"remindbot/internal/scheduler"
	"remindbot/internal/storage"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
)

type fakeAdapter struct {
	mu       sync.Mutex
	texts    []string
	buttons  [][][]kit.Button
	answered map[string]string
	menu     []kit.BotCommand
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                    { return nil }
func (f *fakeAdapter) EditText(context.Context, kit.MessageRef, string, *kit.SendOptions) error {
	return nil
}

func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, text)
	var b [][]kit.Button
	if opt != nil {
		b = opt.Buttons
	}
	f.buttons = append(f.buttons, b)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.texts)}, nil
}

func (f *fakeAdapter) AnswerCallback(_ context.Context, id, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.answered == nil {
		f.answered = map[string]string{}
	}
	f.answered[id] = text
	return nil
}

func (f *fakeAdapter) UpdateMenuCommands(_ context.Context, cmds []kit.BotCommand) error {
	f.mu.Lock()
	f.menu = cmds
	f.mu.Unlock()
	return nil
}

func (f *fakeAdapter) last() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.texts) == 0 {
		return ""
	}
	return f.texts[len(f.texts)-1]
}

type fakeEngine struct {
	now       time.Time
	loc       *time.Location
	err       error
	scheduled []scheduler.ScheduleRequest
	cancelled []string
	cancelOK  bool
}

func (e *fakeEngine) Schedule(_ context.Context, req scheduler.ScheduleRequest) (scheduler.ScheduledReminder, error) {
	if e.err != nil {
		return scheduler.ScheduledReminder{}, e.err
	}
	e.scheduled = append(e.scheduled, req)
	return scheduler.ScheduledReminder{JobID: "job-1", FireAt: req.FireAt.UTC()}, nil
}

func (e *fakeEngine) Cancel(_ context.Context, jobID string) (bool, error) {
	e.cancelled = append(e.cancelled, jobID)
	return e.cancelOK, nil
}

func (e *fakeEngine) Now() time.Time { return e.now }

func (e *fakeEngine) Location() *time.Location { return e.loc }

type fakeStore struct {
	users     map[int64]int64
	profiles  map[int64]storage.Profile
	reminders []storage.OwnedReminder
	err       error
}

func (s *fakeStore) GetOrCreateUser(_ context.Context, externalID int64, p storage.Profile) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	if s.users == nil {
		s.users = map[int64]int64{}
		s.profiles = map[int64]storage.Profile{}
	}
	if id, ok := s.users[externalID]; ok {
		return id, nil
	}
	id := int64(len(s.users) + 1)
	s.users[externalID] = id
	s.profiles[externalID] = p
	return id, nil
}

func (s *fakeStore) ListActiveReminders(_ context.Context, userID int64) ([]storage.Reminder, error) {
	var out []storage.Reminder
	for _, r := range s.reminders {
		if r.UserID == userID && r.Active {
			out = append(out, r.Reminder)
		}
	}
	return out, nil
}

func (s *fakeStore) GetReminder(_ context.Context, jobID string) (storage.OwnedReminder, error) {
	for _, r := range s.reminders {
		if r.JobID == jobID {
			return r, nil
		}
	}
	return storage.OwnedReminder{}, storage.ErrNotFound
}

var now = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)

func newTestBot() (*Service, *fakeAdapter, *fakeEngine, *fakeStore) {
	a := &fakeAdapter{}
	e := &fakeEngine{now: now, loc: time.UTC}
	st := &fakeStore{}
	return New(Config{}, a, e, st, logx.Nop()), a, e, st
}

func message(from int64, text string) kit.Update {
	return kit.Update{Kind: kit.UpdateMessage, Message: &kit.Message{
		ChatID: from, FromID: from, FromUsername: "ann", FromFirstName: "Ann", Text: text, IsPrivate: true,
	}}
}

func TestRemindSchedulesAndConfirms(t *testing.T) {
	t.Parallel()
	b, a, e, _ := newTestBot()

	b.Handle(context.Background(), message(42, "/remind 18:00 call mom"))

	require.Len(t, e.scheduled, 1)
	req := e.scheduled[0]
	require.Equal(t, int64(42), req.ExternalID)
	require.Equal(t, "call mom", req.Text)
	require.Equal(t, "Ann", req.Profile.FirstName)
	require.True(t, req.FireAt.Equal(time.Date(2025, 1, 1, 18, 0, 0, 0, time.UTC)))
	require.Equal(t, "✅ Reminder set for 2025-01-01 18:00:\ncall mom\nID: job-1", a.last())
}

func TestRemindValidationReplies(t *testing.T) {
	t.Parallel()
	b, a, e, _ := newTestBot()

	b.Handle(context.Background(), message(42, "/remind 2024-12-31 10:00 too late"))
	require.Contains(t, a.last(), ErrPast.Error())
	require.Contains(t, a.last(), "Examples:")

	b.Handle(context.Background(), message(42, "/remind"))
	require.Contains(t, a.last(), ErrUsage.Error())
	require.Empty(t, e.scheduled)
}

func TestRemindEngineErrors(t *testing.T) {
	t.Parallel()
	b, a, e, _ := newTestBot()

	e.err = &scheduler.ValidationError{Field: "fire_at", Err: scheduler.ErrNotFuture}
	b.Handle(context.Background(), message(1, "/remind 2030-01-01 10:00 x"))
	require.Contains(t, a.last(), "not in the future")

	e.err = &scheduler.StorageError{Op: "add_reminder", Err: errors.New("db down")}
	b.Handle(context.Background(), message(1, "/remind 2030-01-01 10:00 x"))
	require.Contains(t, a.last(), "Could not save")
	require.NotContains(t, a.last(), "db down")
}

func TestMyRemindersListsWithCancelButtons(t *testing.T) {
	t.Parallel()
	b, a, _, st := newTestBot()

	b.Handle(context.Background(), message(7, "/my_reminders"))
	require.Equal(t, "No active reminders", a.last())

	uid := st.users[7]
	st.reminders = []storage.OwnedReminder{
		{Reminder: storage.Reminder{UserID: uid, Text: "tea", FireDate: "2025-01-01", FireTime: "15:00:00", JobID: "a", Active: true}, ExternalID: 7},
		{Reminder: storage.Reminder{UserID: uid, Text: "gone", FireDate: "2025-01-01", FireTime: "16:00:00", JobID: "b", Active: false}, ExternalID: 7},
	}
	b.Handle(context.Background(), message(7, "/my_reminders"))
	require.Equal(t, "📅 Your reminders:\n\n1. ⏰ 2025-01-01 15:00:\ntea\nID: a", a.last())
	btns := a.buttons[len(a.buttons)-1]
	require.Len(t, btns, 1)
	require.Equal(t, "cancel:a", btns[0][0].Data)
}

func TestCancelChecksOwnership(t *testing.T) {
	t.Parallel()
	b, a, e, st := newTestBot()
	st.reminders = []storage.OwnedReminder{
		{Reminder: storage.Reminder{JobID: "mine", Active: true}, ExternalID: 5},
	}

	b.Handle(context.Background(), message(6, "/cancel mine"))
	require.Equal(t, "Reminder not found.", a.last())
	require.Empty(t, e.cancelled)

	e.cancelOK = true
	b.Handle(context.Background(), message(5, "/cancel <mine>"))
	require.Equal(t, "🗑 Reminder cancelled.", a.last())
	require.Equal(t, []string{"mine"}, e.cancelled)

	e.cancelOK = false
	b.Handle(context.Background(), message(5, "/cancel mine"))
	require.Equal(t, "That reminder already fired or was cancelled.", a.last())

	b.Handle(context.Background(), message(5, "/cancel"))
	require.Contains(t, a.last(), "Usage: /cancel")
}

func TestCallbackCancel(t *testing.T) {
	t.Parallel()
	b, a, e, st := newTestBot()
	st.reminders = []storage.OwnedReminder{
		{Reminder: storage.Reminder{JobID: "j", Active: true}, ExternalID: 5},
	}
	e.cancelOK = true

	b.Handle(context.Background(), kit.Update{Kind: kit.UpdateCallback, Callback: &kit.Callback{
		ID: "cb1", FromID: 5, ChatID: 5, Data: "cancel:j",
	}})
	require.Equal(t, "🗑 Reminder cancelled.", a.answered["cb1"])
	require.Equal(t, []string{"j"}, e.cancelled)
}

func TestUnknownAndPlainText(t *testing.T) {
	t.Parallel()
	b, a, _, _ := newTestBot()

	b.Handle(context.Background(), message(1, "hello"))
	require.Empty(t, a.texts)

	b.Handle(context.Background(), message(1, "/weather"))
	require.Contains(t, a.last(), "/help")

	b.Handle(context.Background(), message(1, "/start"))
	require.Contains(t, a.last(), "/remind HH:MM text")
	require.Contains(t, a.last(), "Times are in UTC.")
}

func TestRunDispatchesAndPublishesMenu(t *testing.T) {
	t.Parallel()
	b, a, e, _ := newTestBot()
	updates := make(chan kit.Update, 1)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx, updates) }()

	updates <- message(3, "/remind 2030-01-01 10:00 x")
	require.Eventually(t, func() bool {
		return a.last() != ""
	}, time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	require.Len(t, e.scheduled, 1)
	require.Len(t, a.menu, 5)
	require.Equal(t, "remind", a.menu[2].Command)
}
