package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/krishnarajt/second-thought-backend/internal/domain"
)

// SQLiteRepo implements Repo using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

const userCols = `id, username, display_name, telegram_chat_id, telegram_username,
	remind_before_activity, remind_on_start, nudge_during_activity, congratulate_on_finish,
	default_slot_duration, timezone, api_token, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*domain.User, error) {
	var (
		u          domain.User
		chatNS     sql.NullInt64
		before     int
		onStart    int
		during     int
		congrats   int
		createdAt  int64
		updatedAt  int64
	)
	if err := row.Scan(
		&u.ID, &u.Username, &u.DisplayName, &chatNS, &u.TelegramUsername,
		&before, &onStart, &during, &congrats,
		&u.DefaultSlotDuration, &u.Timezone, &u.APIToken, &createdAt, &updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.TelegramChatID = fromNullInt64(chatNS)
	u.Prefs = domain.Preferences{
		RemindBeforeActivity: before != 0,
		RemindOnStart:        onStart != 0,
		NudgeDuringActivity:  during != 0,
		CongratulateOnFinish: congrats != 0,
	}
	u.CreatedAt = time.Unix(createdAt, 0).UTC()
	u.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &u, nil
}

// CreateUser inserts a new user row and backfills the generated id.
func (r *SQLiteRepo) CreateUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	now := time.Now().UTC().Unix()
	created := u.CreatedAt.UTC().Unix()
	if u.CreatedAt.IsZero() {
		created = now
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			username, display_name, telegram_chat_id, telegram_username,
			remind_before_activity, remind_on_start, nudge_during_activity, congratulate_on_finish,
			default_slot_duration, timezone, api_token, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.DisplayName, toNullInt64(u.TelegramChatID), u.TelegramUsername,
		boolToInt(u.Prefs.RemindBeforeActivity), boolToInt(u.Prefs.RemindOnStart),
		boolToInt(u.Prefs.NudgeDuringActivity), boolToInt(u.Prefs.CongratulateOnFinish),
		u.DefaultSlotDuration, u.Timezone, u.APIToken, created, now,
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = id
	return nil
}

// GetUserByID returns a user by primary key.
func (r *SQLiteRepo) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = ?`, id))
}

// GetUserByToken returns the user owning the given API token.
func (r *SQLiteRepo) GetUserByToken(ctx context.Context, token string) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE api_token = ?`, token))
}

// GetUserByChatID returns the user linked to the given Telegram chat.
func (r *SQLiteRepo) GetUserByChatID(ctx context.Context, chatID int64) (*domain.User, error) {
	return scanUser(r.db.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE telegram_chat_id = ?`, chatID))
}

// UpdateSettings writes notification preferences, timezone and the
// default slot duration. The timezone must be validated by the caller
// before it gets here.
func (r *SQLiteRepo) UpdateSettings(ctx context.Context, userID int64, prefs domain.Preferences, tz string, slotDuration int) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET remind_before_activity = ?, remind_on_start = ?,
		    nudge_during_activity = ?, congratulate_on_finish = ?,
		    timezone = ?, default_slot_duration = ?, updated_at = ?
		WHERE id = ?`,
		boolToInt(prefs.RemindBeforeActivity), boolToInt(prefs.RemindOnStart),
		boolToInt(prefs.NudgeDuringActivity), boolToInt(prefs.CongratulateOnFinish),
		tz, slotDuration, time.Now().UTC().Unix(), userID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DisableAllNotifications switches every preference off. Used when the
// transport reports the user permanently unreachable.
func (r *SQLiteRepo) DisableAllNotifications(ctx context.Context, userID int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET remind_before_activity = 0, remind_on_start = 0,
		    nudge_during_activity = 0, congratulate_on_finish = 0,
		    updated_at = ?
		WHERE id = ?`,
		time.Now().UTC().Unix(), userID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// CreateLinkCode stores a fresh link code for a user, dropping any
// previous codes the user still had outstanding.
func (r *SQLiteRepo) CreateLinkCode(ctx context.Context, userID int64, code string, expiresAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM link_codes WHERE user_id = ?`, userID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO link_codes (code, user_id, expires_at) VALUES (?, ?, ?)`,
		code, userID, expiresAt.UTC().Unix(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

// ConsumeLinkCode validates an unexpired code, attaches the Telegram
// chat to its owner, burns the code, and returns the linked user.
// Returns ErrNotFound for an unknown or expired code.
func (r *SQLiteRepo) ConsumeLinkCode(ctx context.Context, code string, now time.Time, chatID int64, tgUsername string) (*domain.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var userID int64
	err = tx.QueryRowContext(ctx, `
		SELECT user_id FROM link_codes WHERE code = ? AND expires_at > ?`,
		code, now.UTC().Unix(),
	).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE users SET telegram_chat_id = ?, telegram_username = ?, updated_at = ?
		WHERE id = ?`,
		chatID, tgUsername, now.UTC().Unix(), userID,
	); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM link_codes WHERE code = ?`, code); err != nil {
		return nil, err
	}

	u, err := scanUser(tx.QueryRowContext(ctx,
		`SELECT `+userCols+` FROM users WHERE id = ?`, userID))
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return u, nil
}

// UnlinkTelegram detaches the user's Telegram chat.
func (r *SQLiteRepo) UnlinkTelegram(ctx context.Context, userID int64) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET telegram_chat_id = NULL, telegram_username = '', updated_at = ?
		WHERE id = ?`,
		time.Now().UTC().Unix(), userID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ReplaceSchedule swaps a whole day's plan for the user. The previous
// tasks and their claims are dropped; new tasks start with clean
// delivery flags.
func (r *SQLiteRepo) ReplaceSchedule(ctx context.Context, userID int64, date string, blocks []domain.TimeBlock) error {
	now := time.Now().UTC().Unix()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO schedules (user_id, date, created_at, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, date) DO UPDATE SET updated_at = excluded.updated_at`,
		userID, date, now, now,
	); err != nil {
		return err
	}

	var scheduleID int64
	if err := tx.QueryRowContext(ctx, `
		SELECT id FROM schedules WHERE user_id = ? AND date = ?`,
		userID, date,
	).Scan(&scheduleID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM claims WHERE task_uuid IN (SELECT task_uuid FROM tasks WHERE schedule_id = ?)`,
		scheduleID,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE schedule_id = ?`, scheduleID); err != nil {
		return err
	}

	for _, b := range blocks {
		id := b.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (
				task_uuid, user_id, schedule_id, start_time, end_time, task_description,
				is_completed, completed_at, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, 0, NULL, ?, ?)`,
			id, userID, scheduleID, b.StartTime, b.EndTime, b.Description, now, now,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

const taskCols = `t.task_uuid, t.user_id, t.start_time, t.end_time, t.task_description,
	t.is_completed, t.completed_at, t.reminded_before, t.reminded_on_start, t.nudged_during, t.congratulated`

// ScheduleForDate returns a user's blocks for a calendar date, ordered
// by start time ascending. An empty day yields an empty slice, not an
// error.
func (r *SQLiteRepo) ScheduleForDate(ctx context.Context, userID int64, date string) ([]domain.TimeBlock, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskCols+`, s.date
		FROM tasks t
		JOIN schedules s ON s.id = t.schedule_id
		WHERE t.user_id = ? AND s.date = ?
		ORDER BY t.start_time ASC`,
		userID, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBlocks(rows)
}

// CompleteTask marks a task done. Completion never resets delivery
// flags; it only stops future events for the block.
func (r *SQLiteRepo) CompleteTask(ctx context.Context, userID int64, taskUUID string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE tasks SET is_completed = 1, completed_at = ?, updated_at = ?
		WHERE task_uuid = ? AND user_id = ?`,
		toNullTime(&at), time.Now().UTC().Unix(), taskUUID, userID,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListEligibleUsers returns users with a linked Telegram chat and at
// least one notification kind enabled.
func (r *SQLiteRepo) ListEligibleUsers(ctx context.Context) ([]domain.User, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+userCols+`
		FROM users
		WHERE telegram_chat_id IS NOT NULL
		  AND (remind_before_activity = 1 OR remind_on_start = 1
		       OR nudge_during_activity = 1 OR congratulate_on_finish = 1)
		ORDER BY id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// ListUndeliveredBlocks returns the user's uncompleted blocks for the
// date that still have at least one delivered flag unset.
func (r *SQLiteRepo) ListUndeliveredBlocks(ctx context.Context, userID int64, date string) ([]domain.TimeBlock, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+taskCols+`, s.date
		FROM tasks t
		JOIN schedules s ON s.id = t.schedule_id
		WHERE t.user_id = ? AND s.date = ?
		  AND t.is_completed = 0
		  AND (t.reminded_before = 0 OR t.reminded_on_start = 0
		       OR t.nudged_during = 0 OR t.congratulated = 0)
		ORDER BY t.start_time ASC`,
		userID, date,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectBlocks(rows)
}

func collectBlocks(rows *sql.Rows) ([]domain.TimeBlock, error) {
	var res []domain.TimeBlock
	for rows.Next() {
		var (
			b           domain.TimeBlock
			completed   int
			completedNS sql.NullInt64
			before      int
			onStart     int
			during      int
			congrats    int
		)
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.StartTime, &b.EndTime, &b.Description,
			&completed, &completedNS, &before, &onStart, &during, &congrats,
			&b.Date,
		); err != nil {
			return nil, err
		}
		b.Completed = completed != 0
		b.CompletedAt = fromNullTime(completedNS)
		b.RemindedBefore = before != 0
		b.RemindedOnStart = onStart != 0
		b.NudgedDuring = during != 0
		b.Congratulated = congrats != 0
		res = append(res, b)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// ClaimEvent atomically takes exclusive responsibility for delivering
// one event. It fails with ErrAlreadyDelivered if the durable flag is
// already set, and with ErrAlreadyClaimed if another worker holds a
// claim younger than staleAfter. A stale claim is taken over in place.
func (r *SQLiteRepo) ClaimEvent(ctx context.Context, taskUUID string, kind domain.EventKind, now time.Time, staleAfter time.Duration) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var flag int
	err = tx.QueryRowContext(ctx,
		`SELECT `+flagColumn(kind)+` FROM tasks WHERE task_uuid = ?`, taskUUID,
	).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if flag != 0 {
		return ErrAlreadyDelivered
	}

	// Conditional upsert: the insert wins an unclaimed event, the update
	// only fires when the existing claim has gone stale. Zero rows
	// affected means somebody else holds a fresh claim.
	res, err := tx.ExecContext(ctx, `
		INSERT INTO claims (task_uuid, kind, claimed_at) VALUES (?, ?, ?)
		ON CONFLICT(task_uuid, kind) DO UPDATE SET claimed_at = excluded.claimed_at
		WHERE claims.claimed_at <= ?`,
		taskUUID, kind.String(), now.UTC().Unix(), now.Add(-staleAfter).UTC().Unix(),
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrAlreadyClaimed
	}
	return tx.Commit()
}

// MarkDelivered commits the Claimed→Delivered transition: the durable
// flag flips true and the claim is released. Setting an already-true
// flag is a no-op success.
func (r *SQLiteRepo) MarkDelivered(ctx context.Context, taskUUID string, kind domain.EventKind) error {
	return r.resolveClaim(ctx, taskUUID, kind)
}

// MarkAbandoned commits the Claimed→Abandoned transition. The flag is
// set true all the same: abandonment guarantees at-most-one attempt,
// not at-least-one delivery.
func (r *SQLiteRepo) MarkAbandoned(ctx context.Context, taskUUID string, kind domain.EventKind) error {
	return r.resolveClaim(ctx, taskUUID, kind)
}

func (r *SQLiteRepo) resolveClaim(ctx context.Context, taskUUID string, kind domain.EventKind) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET `+flagColumn(kind)+` = 1, updated_at = ? WHERE task_uuid = ?`,
		time.Now().UTC().Unix(), taskUUID,
	)
	if err != nil {
		return err
	}
	if err := requireRow(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM claims WHERE task_uuid = ? AND kind = ?`,
		taskUUID, kind.String(),
	); err != nil {
		return err
	}
	return tx.Commit()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
