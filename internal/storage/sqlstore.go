package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	logx "remindbot/pkg/logx"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// sqlStore implements Store on database/sql for every dialect.
type sqlStore struct {
	db  *sql.DB
	d   dialect
	log logx.Logger
	now func() time.Time
}

func newSQLStore(db *sql.DB, d dialect, log logx.Logger) *sqlStore {
	return &sqlStore{db: db, d: d, log: log, now: time.Now}
}

func (s *sqlStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations/" + s.d.migrations)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, string(b)); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("migrate %s: %w", s.d.name, err)
	}
	return tx.Commit()
}

func (s *sqlStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqlStore) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	return s.db.PingContext(ctx)
}

func (s *sqlStore) GetOrCreateUser(ctx context.Context, externalID int64, p Profile) (int64, error) {
	// Insert-or-ignore then read back: the unique index on external_id settles
	// concurrent first contacts and the first writer's profile is kept.
	_, err := s.db.ExecContext(ctx, s.d.rebind(
		`INSERT INTO users(external_id, username, first_name, last_name, created_at)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(external_id) DO NOTHING`),
		externalID, nullStr(p.Username), nullStr(p.FirstName), nullStr(p.LastName), s.stamp(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert user: %w", err)
	}
	id, err := s.UserIDByExternal(ctx, externalID)
	if err != nil {
		return 0, fmt.Errorf("select user: %w", err)
	}
	return id, nil
}

func (s *sqlStore) UserIDByExternal(ctx context.Context, externalID int64) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, s.d.rebind(`SELECT id FROM users WHERE external_id = ?`), externalID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	return id, err
}

func (s *sqlStore) AddReminder(ctx context.Context, userID int64, text string, fireAt time.Time, jobID string) error {
	date, clock := SplitMoment(fireAt)
	_, err := s.db.ExecContext(ctx, s.d.rebind(
		`INSERT INTO reminders(user_id, text, fire_date, fire_time, job_id, is_active, created_at)
		 VALUES(?,?,?,?,?,TRUE,?)`),
		userID, text, date, clock, jobID, s.stamp(),
	)
	if err != nil {
		if s.d.isUnique != nil && s.d.isUnique(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateJob, jobID)
		}
		return fmt.Errorf("insert reminder: %w", err)
	}
	return nil
}

const reminderCols = `r.id, r.user_id, r.text, r.fire_date, r.fire_time, r.job_id, r.is_active, r.created_at`

func (s *sqlStore) ListActiveReminders(ctx context.Context, userID int64) ([]Reminder, error) {
	rows, err := s.db.QueryContext(ctx, s.d.rebind(
		`SELECT `+reminderCols+`
		 FROM reminders r
		 WHERE r.user_id = ? AND r.is_active = TRUE
		 ORDER BY r.fire_date, r.fire_time, r.id`), userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var r Reminder
		var created string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Text, &r.FireDate, &r.FireTime, &r.JobID, &r.Active, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = parseStamp(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqlStore) DeactivateReminder(ctx context.Context, jobID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.d.rebind(
		`UPDATE reminders SET is_active = FALSE WHERE job_id = ? AND is_active = TRUE`), jobID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *sqlStore) ListRestorableReminders(ctx context.Context, now time.Time) ([]OwnedReminder, error) {
	date, clock := SplitMoment(now)
	return s.queryOwned(ctx,
		`r.is_active = TRUE AND (r.fire_date > ? OR (r.fire_date = ? AND r.fire_time > ?))`,
		date, date, clock)
}

func (s *sqlStore) ListOverdueReminders(ctx context.Context, now time.Time) ([]OwnedReminder, error) {
	date, clock := SplitMoment(now)
	return s.queryOwned(ctx,
		`r.is_active = TRUE AND (r.fire_date < ? OR (r.fire_date = ? AND r.fire_time <= ?))`,
		date, date, clock)
}

func (s *sqlStore) GetReminder(ctx context.Context, jobID string) (OwnedReminder, error) {
	out, err := s.queryOwned(ctx, `r.job_id = ?`, jobID)
	if err != nil {
		return OwnedReminder{}, err
	}
	if len(out) == 0 {
		return OwnedReminder{}, ErrNotFound
	}
	return out[0], nil
}

func (s *sqlStore) CountPending(ctx context.Context, now time.Time) (int, error) {
	date, clock := SplitMoment(now)
	var n int
	err := s.db.QueryRowContext(ctx, s.d.rebind(
		`SELECT COUNT(*) FROM reminders
		 WHERE is_active = TRUE AND (fire_date > ? OR (fire_date = ? AND fire_time > ?))`),
		date, date, clock).Scan(&n)
	return n, err
}

func (s *sqlStore) queryOwned(ctx context.Context, where string, args ...any) ([]OwnedReminder, error) {
	rows, err := s.db.QueryContext(ctx, s.d.rebind(
		`SELECT `+reminderCols+`, u.external_id
		 FROM reminders r
		 JOIN users u ON u.id = r.user_id
		 WHERE `+where+`
		 ORDER BY r.fire_date, r.fire_time, r.id`), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OwnedReminder
	for rows.Next() {
		var r OwnedReminder
		var created string
		if err := rows.Scan(&r.ID, &r.UserID, &r.Text, &r.FireDate, &r.FireTime, &r.JobID, &r.Active, &created, &r.ExternalID); err != nil {
			return nil, err
		}
		r.CreatedAt = parseStamp(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *sqlStore) stamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

func parseStamp(v string) time.Time {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(v))
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
