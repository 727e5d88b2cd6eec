package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/tabletop/internal/core/storage/interfaces"
	"github.com/zeusync/tabletop/internal/core/storage/storagetest"
)

func openTemp(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestJournal(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) interfaces.Journal { return openTemp(t) })
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("  ")
	assert.Error(t, err)
}

func TestJournalSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	ctx := context.Background()

	j, err := Open(path)
	require.NoError(t, err)
	_, err = j.Append(ctx, "room", "+/1/t/s")
	require.NoError(t, err)
	require.NoError(t, j.SaveSnapshot(ctx, interfaces.Snapshot{Room: "room", Seq: 1, Game: "g", Checksum: 42}))
	require.NoError(t, j.Close())

	j, err = Open(path)
	require.NoError(t, err)
	defer j.Close()

	recs, err := j.Since(ctx, "room", 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "+/1/t/s", recs[0].Command)

	snap, err := j.LoadSnapshot(ctx, "room")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), snap.Checksum)

	seq, err := j.Append(ctx, "room", "next")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seq)
}
