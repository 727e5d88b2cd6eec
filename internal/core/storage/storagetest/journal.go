// Package storagetest checks Journal implementations against the behaviour
// every driver shares.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/tabletop/internal/core/storage/interfaces"
)

// Run exercises a fresh journal returned by open for every case.
func Run(t *testing.T, open func(t *testing.T) interfaces.Journal) {
	t.Run("AppendNumbersPerRoom", func(t *testing.T) {
		j := open(t)
		ctx := context.Background()

		for want := uint64(1); want <= 3; want++ {
			seq, err := j.Append(ctx, "a", "cmd")
			require.NoError(t, err)
			assert.Equal(t, want, seq)
		}
		seq, err := j.Append(ctx, "b", "other")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), seq)

		_, err = j.Append(ctx, "", "cmd")
		assert.ErrorIs(t, err, interfaces.ErrInvalidRoom)
	})

	t.Run("SinceReturnsTail", func(t *testing.T) {
		j := open(t)
		ctx := context.Background()
		for _, cmd := range []string{"one", "two\x1bthree", "four"} {
			_, err := j.Append(ctx, "room", cmd)
			require.NoError(t, err)
		}

		recs, err := j.Since(ctx, "room", 1)
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, uint64(2), recs[0].Seq)
		assert.Equal(t, "two\x1bthree", recs[0].Command)
		assert.Equal(t, "room", recs[0].Room)
		assert.False(t, recs[0].At.IsZero())
		assert.Equal(t, uint64(3), recs[1].Seq)

		recs, err = j.Since(ctx, "room", 3)
		require.NoError(t, err)
		assert.Empty(t, recs)

		recs, err = j.Since(ctx, "nobody", 0)
		require.NoError(t, err)
		assert.Empty(t, recs)
	})

	t.Run("SnapshotRoundTrip", func(t *testing.T) {
		j := open(t)
		ctx := context.Background()

		_, err := j.LoadSnapshot(ctx, "room")
		assert.ErrorIs(t, err, interfaces.ErrNotFound)

		for range 2 {
			_, err := j.Append(ctx, "room", "cmd")
			require.NoError(t, err)
		}
		at := time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)
		snap := interfaces.Snapshot{Room: "room", Seq: 2, Game: "+/1/t/s", Checksum: ^uint64(0) - 7, At: at}
		require.NoError(t, j.SaveSnapshot(ctx, snap))

		got, err := j.LoadSnapshot(ctx, "room")
		require.NoError(t, err)
		assert.Equal(t, snap, got)

		// Numbering continues after the snapshot.
		seq, err := j.Append(ctx, "room", "cmd")
		require.NoError(t, err)
		assert.Equal(t, uint64(3), seq)

		snap.Seq, snap.Game = 3, "+/2/t/s"
		require.NoError(t, j.SaveSnapshot(ctx, snap))
		got, err = j.LoadSnapshot(ctx, "room")
		require.NoError(t, err)
		assert.Equal(t, "+/2/t/s", got.Game)
	})

	t.Run("SnapshotBeyondJournalConflicts", func(t *testing.T) {
		j := open(t)
		err := j.SaveSnapshot(context.Background(), interfaces.Snapshot{Room: "room", Seq: 5})
		assert.ErrorIs(t, err, interfaces.ErrConflict)

		err = j.SaveSnapshot(context.Background(), interfaces.Snapshot{})
		assert.ErrorIs(t, err, interfaces.ErrInvalidRoom)
	})

	t.Run("Rooms", func(t *testing.T) {
		j := open(t)
		ctx := context.Background()
		for _, room := range []string{"b", "a", "b"} {
			_, err := j.Append(ctx, room, "cmd")
			require.NoError(t, err)
		}
		require.NoError(t, j.SaveSnapshot(ctx, interfaces.Snapshot{Room: "c"}))

		rooms, err := j.Rooms(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c"}, rooms)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		j := open(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := j.Append(ctx, "room", "cmd")
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Closed", func(t *testing.T) {
		j := open(t)
		require.NoError(t, j.Close())
		_, err := j.Append(context.Background(), "room", "cmd")
		assert.ErrorIs(t, err, interfaces.ErrClosed)
	})
}
