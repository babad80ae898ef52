package db

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	migrations "github.com/txgate/txgate/migrations/postgres"
)

func TestPendingMigrationsOrderAndFilter(t *testing.T) {
	fsys := fstest.MapFS{
		"0002_b_up.sql":   {Data: []byte("SELECT 2")},
		"0001_a_up.sql":   {Data: []byte("SELECT 1")},
		"0001_a_down.sql": {Data: []byte("SELECT 0")},
		"README.md":       {Data: []byte("notes")},
		"0003_c_up.sql":   {Data: []byte("SELECT 3")},
	}

	pending, err := PendingMigrations(fsys, map[string]bool{"0002_b": true})
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_a_up.sql", "0003_c_up.sql"}, pending)
}

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	pending, err := PendingMigrations(migrations.FS, nil)
	require.NoError(t, err)
	require.NotEmpty(t, pending)
	assert.Equal(t, "0001_init_up.sql", pending[0])
}
