package main

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/stockroom/config"
	"github.com/warp/stockroom/events"
	"github.com/warp/stockroom/inventory/store"
	"github.com/warp/stockroom/lock"
	"github.com/warp/stockroom/store/sqlite"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestOpenStore(t *testing.T) {
	st, closeFn, err := openStore(&config.Config{StoreDriver: config.DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &store.Memory{}, st)
	assert.NoError(t, closeFn())

	st, closeFn, err = openStore(&config.Config{
		StoreDriver: config.DriverSQLite,
		SQLitePath:  filepath.Join(t.TempDir(), "wire.db"),
	})
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, st)
	assert.NoError(t, closeFn())

	_, _, err = openStore(&config.Config{StoreDriver: "mysql"})
	assert.ErrorContains(t, err, "unknown store driver")
}

func TestNewLocker_DefaultsToLocal(t *testing.T) {
	l, closeFn, err := newLocker(context.Background(), &config.Config{}, quiet)
	require.NoError(t, err)
	assert.IsType(t, &lock.Local{}, l)
	assert.NoError(t, closeFn())
}

func TestNewPublisher_NoopWithoutBroker(t *testing.T) {
	pub, err := newPublisher(&config.Config{}, quiet)
	require.NoError(t, err)
	assert.IsType(t, &events.NoopPublisher{}, pub)
}
