package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTestPool(t *testing.T) *Pool {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	p, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, p.InitSchema(context.Background()))
	t.Cleanup(func() { require.NoError(t, p.Close()) })
	return p
}

func TestOpenAndInitSchema(t *testing.T) {
	p := openTestPool(t)

	conn, err := p.Conn(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	var count int
	err = conn.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='coins'").Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestInitSchemaIdempotent(t *testing.T) {
	p := openTestPool(t)
	require.NoError(t, p.InitSchema(context.Background()))
	require.NoError(t, p.InitSchema(context.Background()))
}

func TestConnRoundTrip(t *testing.T) {
	p := openTestPool(t)

	conn, err := p.Conn(context.Background())
	require.NoError(t, err)
	_, err = conn.ExecContext(context.Background(),
		`INSERT INTO headvars(height, blkhash, fee_pool, fee_multiplier, dosc_speed) VALUES (1, 'abcd', x'00', x'00', x'00')`)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	conn2, err := p.Conn(context.Background())
	require.NoError(t, err)
	defer conn2.Close()
	var blkhash string
	err = conn2.QueryRowContext(context.Background(), "SELECT blkhash FROM headvars WHERE height=1").Scan(&blkhash)
	require.NoError(t, err)
	require.Equal(t, "abcd", blkhash)
}
