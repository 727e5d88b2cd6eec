// Package sqlite provides a SQLite-backed room journal.
package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/zeusync/tabletop/internal/core/storage/interfaces"
)

const schema = `
CREATE TABLE IF NOT EXISTS journal (
	room       TEXT    NOT NULL,
	seq        INTEGER NOT NULL,
	command    TEXT    NOT NULL,
	created_at INTEGER NOT NULL,
	PRIMARY KEY (room, seq)
);
CREATE TABLE IF NOT EXISTS snapshots (
	room       TEXT    NOT NULL PRIMARY KEY,
	seq        INTEGER NOT NULL,
	game       TEXT    NOT NULL,
	checksum   TEXT    NOT NULL,
	created_at INTEGER NOT NULL
);`

// Journal persists rooms in a SQLite database file.
type Journal struct {
	db *sql.DB
}

var _ interfaces.Journal = (*Journal)(nil)

// Open opens or creates the database at path and ensures the schema.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite db")
	}
	// One writer keeps sequence allocation serialized.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "ping sqlite db")
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create schema")
	}
	return &Journal{db: db}, nil
}

// Close closes the database.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append inserts command into the room's journal.
func (j *Journal) Append(ctx context.Context, room, command string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if room == "" {
		return 0, interfaces.ErrInvalidRoom
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, j.wrap(err, "begin append")
	}
	defer func() { _ = tx.Rollback() }()

	var last uint64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(
		   COALESCE((SELECT MAX(seq) FROM journal WHERE room = ?), 0),
		   COALESCE((SELECT seq FROM snapshots WHERE room = ?), 0))`,
		room, room,
	).Scan(&last)
	if err != nil {
		return 0, j.wrap(err, "next sequence")
	}

	seq := last + 1
	_, err = tx.ExecContext(ctx,
		`INSERT INTO journal (room, seq, command, created_at) VALUES (?, ?, ?, ?)`,
		room, seq, command, time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, errors.Wrapf(interfaces.ErrConflict, "append %q at %d", room, seq)
		}
		return 0, j.wrap(err, "append")
	}
	if err := tx.Commit(); err != nil {
		return 0, j.wrap(err, "commit append")
	}
	return seq, nil
}

// Since reads the records after the given sequence number in order.
func (j *Journal) Since(ctx context.Context, room string, after uint64) ([]interfaces.Record, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT seq, command, created_at FROM journal WHERE room = ? AND seq > ? ORDER BY seq`,
		room, after,
	)
	if err != nil {
		return nil, j.wrap(err, "query journal")
	}
	defer rows.Close()

	var out []interfaces.Record
	for rows.Next() {
		rec := interfaces.Record{Room: room}
		var at int64
		if err := rows.Scan(&rec.Seq, &rec.Command, &at); err != nil {
			return nil, j.wrap(err, "scan journal")
		}
		rec.At = time.UnixMilli(at).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, j.wrap(err, "read journal")
	}
	return out, nil
}

// SaveSnapshot upserts the snapshot of the room. It may not point past the
// last record.
func (j *Journal) SaveSnapshot(ctx context.Context, snap interfaces.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.Room == "" {
		return interfaces.ErrInvalidRoom
	}
	if snap.At.IsZero() {
		snap.At = time.Now()
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return j.wrap(err, "begin snapshot")
	}
	defer func() { _ = tx.Rollback() }()

	var last uint64
	err = tx.QueryRowContext(ctx,
		`SELECT MAX(
		   COALESCE((SELECT MAX(seq) FROM journal WHERE room = ?), 0),
		   COALESCE((SELECT seq FROM snapshots WHERE room = ?), 0))`,
		snap.Room, snap.Room,
	).Scan(&last)
	if err != nil {
		return j.wrap(err, "snapshot sequence")
	}
	if snap.Seq > last {
		return errors.Wrapf(interfaces.ErrConflict, "snapshot at %d beyond journal at %d", snap.Seq, last)
	}

	// Checksums use the full uint64 range, which INTEGER cannot hold.
	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (room, seq, game, checksum, created_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(room) DO UPDATE SET
		   seq = excluded.seq,
		   game = excluded.game,
		   checksum = excluded.checksum,
		   created_at = excluded.created_at`,
		snap.Room, snap.Seq, snap.Game, formatChecksum(snap.Checksum), snap.At.UTC().UnixMilli(),
	)
	if err != nil {
		return j.wrap(err, "save snapshot")
	}
	return j.wrap(tx.Commit(), "commit snapshot")
}

// LoadSnapshot returns the stored snapshot or interfaces.ErrNotFound.
func (j *Journal) LoadSnapshot(ctx context.Context, room string) (interfaces.Snapshot, error) {
	snap := interfaces.Snapshot{Room: room}
	var (
		checksum string
		at       int64
	)
	err := j.db.QueryRowContext(ctx,
		`SELECT seq, game, checksum, created_at FROM snapshots WHERE room = ?`,
		room,
	).Scan(&snap.Seq, &snap.Game, &checksum, &at)
	if errors.Is(err, sql.ErrNoRows) {
		return interfaces.Snapshot{}, errors.Wrapf(interfaces.ErrNotFound, "snapshot of %q", room)
	}
	if err != nil {
		return interfaces.Snapshot{}, j.wrap(err, "load snapshot")
	}
	if snap.Checksum, err = parseChecksum(checksum); err != nil {
		return interfaces.Snapshot{}, errors.Wrapf(err, "snapshot of %q", room)
	}
	snap.At = time.UnixMilli(at).UTC()
	return snap, nil
}

// Rooms lists every room known to the database.
func (j *Journal) Rooms(ctx context.Context) ([]string, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT room FROM journal UNION SELECT room FROM snapshots ORDER BY room`,
	)
	if err != nil {
		return nil, j.wrap(err, "query rooms")
	}
	defer rows.Close()

	var rooms []string
	for rows.Next() {
		var room string
		if err := rows.Scan(&room); err != nil {
			return nil, j.wrap(err, "scan rooms")
		}
		rooms = append(rooms, room)
	}
	if err := rows.Err(); err != nil {
		return nil, j.wrap(err, "read rooms")
	}
	return rooms, nil
}

// wrap maps a closed database to ErrClosed and annotates everything else.
func (j *Journal) wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "sql: database is closed") {
		return errors.Wrap(interfaces.ErrClosed, msg)
	}
	return errors.Wrap(err, msg)
}

func isUniqueViolation(err error) bool {
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

func formatChecksum(sum uint64) string {
	return strconv.FormatUint(sum, 16)
}

func parseChecksum(s string) (uint64, error) {
	sum, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, errors.Wrap(err, "parse checksum")
	}
	return sum, nil
}
