package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteMigrationsRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "neoncad_test.db"), Options{})
	require.NoError(t, err)

	m, err := NewMigrator(db, DriverSQLite)
	require.NoError(t, err)

	applied, err := m.Up(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, applied)

	for _, table := range []string{"projects", "project_snapshots", "bom_exports"} {
		assert.True(t, db.Migrator().HasTable(table), "table %s", table)
	}

	status, err := m.Status(ctx)
	require.NoError(t, err)
	require.Len(t, status, 2)
	assert.True(t, status[0].Applied)

	require.NoError(t, m.Reset(ctx))
	assert.False(t, db.Migrator().HasTable("projects"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x", Options{})
	require.Error(t, err)
}

func TestBackoffCapsDelay(t *testing.T) {
	b := backoff{maxRetries: 5, delay: 500 * time.Millisecond, maxDelay: 5 * time.Second}
	assert.Equal(t, 500*time.Millisecond, b.nextDelay(0))
	assert.Equal(t, 2*time.Second, b.nextDelay(2))
	assert.Equal(t, 5*time.Second, b.nextDelay(6))
}
