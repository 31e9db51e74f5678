package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenSQLite(t *testing.T) {
	conn, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "journal.db"))
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Exec(`CREATE TABLE t (v INTEGER)`)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO t (v) VALUES (42)`)
	require.NoError(t, err)

	var v int
	require.NoError(t, conn.QueryRow(`SELECT v FROM t`).Scan(&v))
	assert.Equal(t, 42, v)
}

func TestOpenSQLite_EmptyPath(t *testing.T) {
	_, err := OpenSQLite("")
	assert.Error(t, err)
}
