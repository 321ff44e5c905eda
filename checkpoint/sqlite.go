package checkpoint

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is stored in PRAGMA user_version after migration.
// Version 2 rewrote updated_at in timestampLayout.
const schemaVersion = 2

// timestampLayout has a fixed width in UTC, so updated_at sorts as text in
// time order.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// SQLiteStore keeps checkpoints in a SQLite database.
//
// Saves are single statements guarded by the stored version, so concurrent
// writers from several processes cannot both win.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := "file:" + path + "?" + url.Values{
		"_pragma": []string{"busy_timeout(5000)", "journal_mode(wal)"},
	}.Encode()

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, wrap("open", "", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, wrap("open", "", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, wrap("migrate", "", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	var current int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return err
	}
	if current >= schemaVersion {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return err
	}
	if current == 1 {
		if err := s.rewriteTimestamps(ctx); err != nil {
			return fmt.Errorf("rewrite updated_at: %w", err)
		}
	}
	_, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", schemaVersion))
	return err
}

// rewriteTimestamps converts updated_at values written with RFC3339Nano,
// which drops trailing zeros, to timestampLayout.
func (s *SQLiteStore) rewriteTimestamps(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, "SELECT thread_id, updated_at FROM checkpoints")
	if err != nil {
		return err
	}
	fixed := make(map[string]string)
	for rows.Next() {
		var id, updated string
		if err := rows.Scan(&id, &updated); err != nil {
			rows.Close()
			return err
		}
		t, err := time.Parse(time.RFC3339Nano, updated)
		if err != nil {
			rows.Close()
			return fmt.Errorf("thread %s: %w", id, err)
		}
		fixed[id] = formatTimestamp(t)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for id, updated := range fixed {
		if _, err := tx.ExecContext(ctx, "UPDATE checkpoints SET updated_at = ? WHERE thread_id = ?", updated, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const insertCheckpoint = `
INSERT INTO checkpoints (thread_id, state, cursor, suspended, version, updated_at)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT (thread_id) DO NOTHING`

const updateCheckpoint = `
UPDATE checkpoints
SET state = ?, cursor = ?, suspended = ?, version = ?, updated_at = ?
WHERE thread_id = ? AND version = ?`

// Save implements Store.
func (s *SQLiteStore) Save(ctx context.Context, cp Checkpoint) error {
	if err := ValidateThreadID(cp.ThreadID); err != nil {
		return wrap("save", cp.ThreadID, err)
	}
	cursor, err := json.Marshal(cp.Cursor)
	if err != nil {
		return wrap("save", cp.ThreadID, err)
	}
	updated := formatTimestamp(cp.UpdatedAt)

	var res sql.Result
	if cp.Version == 1 {
		res, err = s.db.ExecContext(ctx, insertCheckpoint,
			cp.ThreadID, []byte(cp.State), cursor, cp.Cursor.Suspended, cp.Version, updated)
	} else {
		res, err = s.db.ExecContext(ctx, updateCheckpoint,
			[]byte(cp.State), cursor, cp.Cursor.Suspended, cp.Version, updated,
			cp.ThreadID, cp.Version-1)
	}
	if err != nil {
		return wrap("save", cp.ThreadID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("save", cp.ThreadID, err)
	}
	if n == 0 {
		return wrap("save", cp.ThreadID, ErrVersionConflict)
	}
	return nil
}

const selectColumns = `thread_id, state, cursor, version, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row rowScanner) (Checkpoint, error) {
	var (
		cp      Checkpoint
		state   []byte
		cursor  []byte
		updated string
	)
	if err := row.Scan(&cp.ThreadID, &state, &cursor, &cp.Version, &updated); err != nil {
		return Checkpoint{}, err
	}
	cp.State = json.RawMessage(state)
	if err := json.Unmarshal(cursor, &cp.Cursor); err != nil {
		return Checkpoint{}, fmt.Errorf("parse cursor: %w", err)
	}
	t, err := time.Parse(timestampLayout, updated)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("parse updated_at: %w", err)
	}
	cp.UpdatedAt = t
	return cp, nil
}

// Load implements Store.
func (s *SQLiteStore) Load(ctx context.Context, threadID string) (Checkpoint, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+selectColumns+" FROM checkpoints WHERE thread_id = ?", threadID)
	cp, err := scanCheckpoint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, wrap("load", threadID, err)
	}
	return cp, nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM checkpoints WHERE thread_id = ?", threadID); err != nil {
		return wrap("delete", threadID, err)
	}
	return nil
}

// List implements Lister.
func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]Checkpoint, error) {
	query := "SELECT " + selectColumns + " FROM checkpoints"
	var args []any
	if filter.SuspendedOnly {
		query += " WHERE suspended = 1"
	}
	query += " ORDER BY updated_at, thread_id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("list", "", err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, wrap("list", "", err)
		}
		out = append(out, cp)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list", "", err)
	}
	return out, nil
}
