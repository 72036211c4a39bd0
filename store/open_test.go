package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-portal/config"
	"github.com/warp/leave-portal/store/memory"
	"github.com/warp/leave-portal/store/sqlite"
)

func TestOpen(t *testing.T) {
	cfg := config.DefaultConfig()

	cfg.Store = config.StoreMemory
	b, err := Open(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &memory.Memory{}, b)
	require.NoError(t, b.Close())

	cfg.Store = config.StoreSQLite
	cfg.SQLitePath = ":memory:"
	b, err = Open(cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &sqlite.Store{}, b)
	require.NoError(t, b.Close())

	cfg.Store = "etcd"
	_, err = Open(cfg, nil)
	assert.ErrorContains(t, err, "unknown store")
}
