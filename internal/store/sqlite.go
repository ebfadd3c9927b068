package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	_ "modernc.org/sqlite"

	"burn.note/internal/models"
)

//go:embed schema.sql
var schemaSQL string

const currentSchemaVersion = 1

// windowMillis is the expiry window of a row in milliseconds.
const windowMillis = `ttl_value * CASE ttl_unit WHEN 'seconds' THEN 1000 WHEN 'minutes' THEN 60000 END`

const messageColumns = `id, text, token, ttl_unit, ttl_value, created_at, active_until, bound_fingerprint`

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is the relational backend. The bind is a single conditional
// UPDATE, so it stays atomic across processes sharing the database file.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
// It is safe to call against an existing database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite has a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Create(ctx context.Context, msg *models.Message) error {
	if _, err := msg.Window(); err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO messages (text, token, ttl_unit, ttl_value, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(token) DO NOTHING
		RETURNING id
	`,
		msg.Text,
		msg.Token,
		string(msg.TTLUnit),
		msg.TTLValue,
		msg.CreatedAt.UnixMilli(),
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	msg.ID = strconv.FormatInt(id, 10)
	return nil
}

func (s *SQLiteStore) RevealOrBind(ctx context.Context, token, fingerprint string, h Horizon) (*models.Message, error) {
	now := h.Now.UnixMilli()
	retainedSince := h.RetainedSince.UnixMilli()

	// The predicates that make a row bindable all live in this one statement.
	// A caller that loses the race gets no row back and falls through to the
	// read below, where it observes the winner's binding.
	row := s.db.QueryRowContext(ctx, `
		UPDATE messages
		SET active_until = created_at + `+windowMillis+`,
		    bound_fingerprint = ?
		WHERE token = ?
		  AND active_until IS NULL
		  AND bound_fingerprint IS NULL
		  AND created_at >= ?
		  AND created_at + `+windowMillis+` > ?
		RETURNING `+messageColumns,
		fingerprint, token, retainedSince, now,
	)
	msg, err := scanMessage(row)
	if err == nil {
		return msg, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("bind message: %w", err)
	}

	row = s.db.QueryRowContext(ctx, `SELECT `+messageColumns+` FROM messages WHERE token = ?`, token)
	msg, err = scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read message: %w", err)
	}

	// Unbound here means the window lapsed before anyone opened it.
	if h.Expired(msg) || !msg.Bound() {
		return nil, ErrNotFound
	}
	if !msg.BoundTo(fingerprint) {
		return nil, ErrAccessDenied
	}
	return msg, nil
}

func (s *SQLiteStore) Destroy(ctx context.Context, token, fingerprint string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE token = ? AND bound_fingerprint IS NOT NULL AND bound_fingerprint = ?
	`, token, fingerprint)
	if err != nil {
		return false, fmt.Errorf("destroy message: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("destroy message: %w", err)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Purge(ctx context.Context, h Horizon) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM messages
		WHERE (active_until IS NOT NULL AND active_until <= ?)
		   OR created_at < ?
	`, h.Now.UnixMilli(), h.RetainedSince.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge messages: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge messages: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func scanMessage(row *sql.Row) (*models.Message, error) {
	var (
		id          int64
		msg         models.Message
		unit        string
		createdAt   int64
		activeUntil sql.NullInt64
		fingerprint sql.NullString
	)

	err := row.Scan(&id, &msg.Text, &msg.Token, &unit, &msg.TTLValue, &createdAt, &activeUntil, &fingerprint)
	if err != nil {
		return nil, err
	}

	msg.ID = strconv.FormatInt(id, 10)
	msg.TTLUnit = models.TTLUnit(unit)
	msg.CreatedAt = time.UnixMilli(createdAt)
	if activeUntil.Valid {
		t := time.UnixMilli(activeUntil.Int64)
		msg.ActiveUntil = &t
	}
	if fingerprint.Valid {
		fp := fingerprint.String
		msg.BoundFingerprint = &fp
	}
	return &msg, nil
}
