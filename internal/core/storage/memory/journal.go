package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/zeusync/tabletop/internal/core/storage/interfaces"
)

// Journal keeps rooms in process memory. Everything is lost on exit.
type Journal struct {
	mu        sync.RWMutex
	records   map[string][]interfaces.Record
	snapshots map[string]interfaces.Snapshot
	closed    bool
	now       func() time.Time
}

var _ interfaces.Journal = (*Journal)(nil)

// NewJournal returns an empty journal.
func NewJournal() *Journal {
	return &Journal{
		records:   make(map[string][]interfaces.Record),
		snapshots: make(map[string]interfaces.Snapshot),
		now:       time.Now,
	}
}

// Append stores command for room and returns its sequence number.
func (j *Journal) Append(ctx context.Context, room, command string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if room == "" {
		return 0, interfaces.ErrInvalidRoom
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return 0, interfaces.ErrClosed
	}
	seq := j.lastSeq(room) + 1
	j.records[room] = append(j.records[room], interfaces.Record{
		Room:    room,
		Seq:     seq,
		Command: command,
		At:      j.now().UTC(),
	})
	return seq, nil
}

func (j *Journal) lastSeq(room string) uint64 {
	var last uint64
	if recs := j.records[room]; len(recs) > 0 {
		last = recs[len(recs)-1].Seq
	}
	if snap, ok := j.snapshots[room]; ok && snap.Seq > last {
		last = snap.Seq
	}
	return last
}

// Since returns the records of room after the given sequence number.
func (j *Journal) Since(ctx context.Context, room string, after uint64) ([]interfaces.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, interfaces.ErrClosed
	}
	recs := j.records[room]
	i, _ := slices.BinarySearchFunc(recs, after+1, func(r interfaces.Record, seq uint64) int {
		return cmp.Compare(r.Seq, seq)
	})
	return slices.Clone(recs[i:]), nil
}

// SaveSnapshot replaces the snapshot of the room. It may not point past the
// last record.
func (j *Journal) SaveSnapshot(ctx context.Context, snap interfaces.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if snap.Room == "" {
		return interfaces.ErrInvalidRoom
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return interfaces.ErrClosed
	}
	if last := j.lastSeq(snap.Room); snap.Seq > last {
		return errors.Wrapf(interfaces.ErrConflict, "snapshot at %d beyond journal at %d", snap.Seq, last)
	}
	if snap.At.IsZero() {
		snap.At = j.now().UTC()
	}
	j.snapshots[snap.Room] = snap
	return nil
}

// LoadSnapshot returns the latest snapshot of room.
func (j *Journal) LoadSnapshot(ctx context.Context, room string) (interfaces.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return interfaces.Snapshot{}, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return interfaces.Snapshot{}, interfaces.ErrClosed
	}
	snap, ok := j.snapshots[room]
	if !ok {
		return interfaces.Snapshot{}, errors.Wrapf(interfaces.ErrNotFound, "snapshot of %q", room)
	}
	return snap, nil
}

// Rooms lists, in sorted order, the rooms with a record or snapshot.
func (j *Journal) Rooms(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, interfaces.ErrClosed
	}
	rooms := make(map[string]struct{}, len(j.records)+len(j.snapshots))
	for room := range j.records {
		rooms[room] = struct{}{}
	}
	for room := range j.snapshots {
		rooms[room] = struct{}{}
	}
	return slices.Sorted(maps.Keys(rooms)), nil
}

// Close makes every later call fail with interfaces.ErrClosed.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}
