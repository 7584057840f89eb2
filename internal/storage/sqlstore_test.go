package storage

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	logx "remindbot/pkg/logx"
)

func openTestStore(t *testing.T) Store {
	t.Helper()
	st, err := Open(context.Background(), Config{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "reminders.db"),
	}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestGetOrCreateUserFirstWriteWins(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	id1, err := st.GetOrCreateUser(ctx, 42, Profile{Username: "first"})
	require.NoError(t, err)
	id2, err := st.GetOrCreateUser(ctx, 42, Profile{Username: "second"})
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	var username string
	err = st.(*sqlStore).db.QueryRow(`SELECT username FROM users WHERE external_id = 42`).Scan(&username)
	require.NoError(t, err)
	require.Equal(t, "first", username)
}

func TestGetOrCreateUserConcurrent(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	const callers = 8
	ids := make([]int64, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			ids[i], errs[i] = st.GetOrCreateUser(ctx, 7, Profile{})
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, ids[0], ids[i])
	}
	var rows int
	require.NoError(t, st.(*sqlStore).db.QueryRow(`SELECT COUNT(*) FROM users WHERE external_id = 7`).Scan(&rows))
	require.Equal(t, 1, rows)
}

func TestAddReminderDuplicateJob(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	uid, err := st.GetOrCreateUser(ctx, 1, Profile{})
	require.NoError(t, err)

	at := time.Date(2030, 1, 1, 18, 0, 0, 0, time.UTC)
	require.NoError(t, st.AddReminder(ctx, uid, "a", at, "job-1"))
	err = st.AddReminder(ctx, uid, "b", at, "job-1")
	require.ErrorIs(t, err, ErrDuplicateJob)

	list, err := st.ListActiveReminders(ctx, uid)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "a", list[0].Text)
}

func TestListActiveRemindersOrdered(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	uid, err := st.GetOrCreateUser(ctx, 1, Profile{})
	require.NoError(t, err)
	other, err := st.GetOrCreateUser(ctx, 2, Profile{})
	require.NoError(t, err)

	base := time.Date(2030, 5, 5, 9, 0, 0, 0, time.UTC)
	require.NoError(t, st.AddReminder(ctx, uid, "later", base.Add(48*time.Hour), "j3"))
	require.NoError(t, st.AddReminder(ctx, uid, "soon", base, "j1"))
	require.NoError(t, st.AddReminder(ctx, uid, "mid", base.Add(2*time.Hour), "j2"))
	require.NoError(t, st.AddReminder(ctx, other, "not mine", base, "j4"))

	list, err := st.ListActiveReminders(ctx, uid)
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, []string{"j1", "j2", "j3"}, []string{list[0].JobID, list[1].JobID, list[2].JobID})

	at, err := list[1].FireAt()
	require.NoError(t, err)
	require.True(t, at.Equal(base.Add(2*time.Hour)))
	require.Equal(t, "2030-05-05", list[1].FireDate)
	require.Equal(t, "11:00:00", list[1].FireTime)
}

func TestDeactivateReminderIdempotent(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	uid, err := st.GetOrCreateUser(ctx, 1, Profile{})
	require.NoError(t, err)
	require.NoError(t, st.AddReminder(ctx, uid, "x", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), "job"))

	changed, err := st.DeactivateReminder(ctx, "job")
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = st.DeactivateReminder(ctx, "job")
	require.NoError(t, err)
	require.False(t, changed)

	changed, err = st.DeactivateReminder(ctx, "unknown")
	require.NoError(t, err)
	require.False(t, changed)

	list, err := st.ListActiveReminders(ctx, uid)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestRestorableOverdueAndPending(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	uid, err := st.GetOrCreateUser(ctx, 99, Profile{})
	require.NoError(t, err)

	now := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, st.AddReminder(ctx, uid, "yesterday", now.Add(-24*time.Hour), "past-day"))
	require.NoError(t, st.AddReminder(ctx, uid, "earlier today", now.Add(-time.Minute), "past-time"))
	require.NoError(t, st.AddReminder(ctx, uid, "exactly now", now, "now"))
	require.NoError(t, st.AddReminder(ctx, uid, "later today", now.Add(time.Second), "later"))
	require.NoError(t, st.AddReminder(ctx, uid, "tomorrow", now.Add(24*time.Hour), "tomorrow"))
	require.NoError(t, st.AddReminder(ctx, uid, "cancelled", now.Add(48*time.Hour), "gone"))
	_, err = st.DeactivateReminder(ctx, "gone")
	require.NoError(t, err)

	restorable, err := st.ListRestorableReminders(ctx, now)
	require.NoError(t, err)
	require.Len(t, restorable, 2)
	require.Equal(t, "later", restorable[0].JobID)
	require.Equal(t, "tomorrow", restorable[1].JobID)
	require.Equal(t, int64(99), restorable[0].ExternalID)

	overdue, err := st.ListOverdueReminders(ctx, now)
	require.NoError(t, err)
	require.Len(t, overdue, 3)
	require.Equal(t, "past-day", overdue[0].JobID)

	n, err := st.CountPending(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 2, n)
}

func TestGetReminder(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	uid, err := st.GetOrCreateUser(ctx, 5, Profile{FirstName: "Ann"})
	require.NoError(t, err)
	require.NoError(t, st.AddReminder(ctx, uid, "call mom", time.Date(2030, 1, 1, 18, 0, 0, 0, time.UTC), "job-x"))

	r, err := st.GetReminder(ctx, "job-x")
	require.NoError(t, err)
	require.Equal(t, int64(5), r.ExternalID)
	require.Equal(t, "call mom", r.Text)
	require.True(t, r.Active)
	require.False(t, r.CreatedAt.IsZero())

	_, err = st.GetReminder(ctx, "nope")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = st.UserIDByExternal(ctx, 404)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestCascadeOnUserDelete(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	uid, err := st.GetOrCreateUser(ctx, 3, Profile{})
	require.NoError(t, err)
	require.NoError(t, st.AddReminder(ctx, uid, "x", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), "j"))

	_, err = st.(*sqlStore).db.Exec(`DELETE FROM users WHERE id = ?`, uid)
	require.NoError(t, err)
	_, err = st.GetReminder(ctx, "j")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Config{Driver: "mysql"}, logx.Nop())
	require.Error(t, err)
	_, err = Open(context.Background(), Config{}, logx.Nop())
	require.ErrorIs(t, err, ErrDisabled)
}

func TestRebindPositional(t *testing.T) {
	d := dialect{positional: true}
	require.Equal(t, "a = $1 AND b = $2", d.rebind("a = ? AND b = ?"))
	require.Equal(t, "a = ?", dialect{}.rebind("a = ?"))
}
