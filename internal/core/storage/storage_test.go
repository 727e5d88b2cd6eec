package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/tabletop/internal/core/storage/memory"
	"github.com/zeusync/tabletop/internal/core/storage/sqlite"
)

func TestOpenPicksDriver(t *testing.T) {
	j, err := Open(DriverMemory, "")
	require.NoError(t, err)
	assert.IsType(t, &memory.Journal{}, j)

	j, err = Open(DriverSQLite, filepath.Join(t.TempDir(), "t.db"))
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Journal{}, j)
	require.NoError(t, j.Close())

	_, err = Open("postgres", "")
	assert.ErrorIs(t, err, ErrUnknownDriver)
}
