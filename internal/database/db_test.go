package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "test.db")

	db, err := New(Config{Path: path, Name: "test"})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, "test", db.Name())
	assert.NotEmpty(t, db.Path())
	require.NotNil(t, db.Conn())

	// The connection is usable.
	_, err = db.Conn().Exec(`CREATE TABLE t (id INTEGER PRIMARY KEY)`)
	require.NoError(t, err)
	_, err = db.Conn().Exec(`INSERT INTO t (id) VALUES (1)`)
	require.NoError(t, err)

	var count int
	require.NoError(t, db.Conn().QueryRow(`SELECT COUNT(*) FROM t`).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestNew_CreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "c", "test.db")

	db, err := New(Config{Path: path, Name: "deep"})
	require.NoError(t, err)
	defer db.Close()
}

func TestBuildConnectionString(t *testing.T) {
	connStr := buildConnectionString("/tmp/test.db")
	assert.Contains(t, connStr, "/tmp/test.db?")
	assert.Contains(t, connStr, "_pragma=journal_mode(WAL)")
	assert.Contains(t, connStr, "_pragma=foreign_keys(1)")
}
