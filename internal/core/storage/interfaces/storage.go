package interfaces

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrClosed      = errors.New("storage closed")
	ErrInvalidRoom = errors.New("invalid room id")
	ErrConflict    = errors.New("sequence conflict")
)

// Record is one journaled command of a room. Seq starts at 1 and grows by
// one per appended command.
type Record struct {
	Room    string
	Seq     uint64
	Command string
	At      time.Time
}

// Snapshot is the full game of a room as of journal sequence Seq. Game is
// the encoded command that recreates every piece.
type Snapshot struct {
	Room     string
	Seq      uint64
	Game     string
	Checksum uint64
	At       time.Time
}

// Journal persists the commands and snapshots of every room. A room is
// restored from its latest snapshot plus the records appended after it.
type Journal interface {
	// Append stores an encoded command and returns its sequence number.
	Append(ctx context.Context, room, command string) (uint64, error)
	// Since returns the records of room with a sequence above after, in order.
	Since(ctx context.Context, room string, after uint64) ([]Record, error)
	// SaveSnapshot replaces the snapshot of snap.Room.
	SaveSnapshot(ctx context.Context, snap Snapshot) error
	// LoadSnapshot returns the latest snapshot of room or ErrNotFound.
	LoadSnapshot(ctx context.Context, room string) (Snapshot, error)
	// Rooms lists every room with journaled data, sorted.
	Rooms(ctx context.Context) ([]string, error)
	Close() error
}
