package storage

import (
	"github.com/pkg/errors"

	"github.com/zeusync/tabletop/internal/core/storage/interfaces"
	"github.com/zeusync/tabletop/internal/core/storage/memory"
	"github.com/zeusync/tabletop/internal/core/storage/sqlite"
)

const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
)

// ErrUnknownDriver is returned for drivers other than memory and sqlite.
var ErrUnknownDriver = errors.New("unknown storage driver")

// Open returns the journal implementation named by driver. Path is only
// used by drivers that persist to disk.
func Open(driver, path string) (interfaces.Journal, error) {
	switch driver {
	case DriverMemory, "":
		return memory.NewJournal(), nil
	case DriverSQLite:
		return sqlite.Open(path)
	default:
		return nil, errors.Wrapf(ErrUnknownDriver, "%q", driver)
	}
}
