package store

import (
	"context"
	"io/fs"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestMigrationURL(t *testing.T) {
	require.Equal(t, "pgx5://app:pw@db:5432/recycle?sslmode=disable", MigrationURL("postgres://app:pw@db:5432/recycle?sslmode=disable"))
	require.Equal(t, "pgx5://db/recycle", MigrationURL("postgresql://db/recycle"))
	require.Equal(t, "pgx5://db/recycle", MigrationURL("pgx5://db/recycle"))
}

func TestMigrationsArePaired(t *testing.T) {
	entries, err := fs.ReadDir(migrationFiles, "migrations")
	require.NoError(t, err)
	ups, downs := 0, 0
	for _, e := range entries {
		switch {
		case strings.HasSuffix(e.Name(), ".up.sql"):
			ups++
		case strings.HasSuffix(e.Name(), ".down.sql"):
			downs++
		}
	}
	require.NotZero(t, ups)
	require.Equal(t, ups, downs)

	up, err := fs.ReadFile(migrationFiles, "migrations/0001_create_payment_orders.up.sql")
	require.NoError(t, err)
	require.Contains(t, string(up), "provider_order_id text        NOT NULL UNIQUE")
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := OpenRedis(context.Background(), "redis://"+mr.Addr()+"/0", false, zerolog.Nop())
	require.NoError(t, err)
	defer client.Close()
	require.NoError(t, client.Set(context.Background(), "k", "v", 0).Err())

	_, err = OpenRedis(context.Background(), "://bad", false, zerolog.Nop())
	require.Error(t, err)
}
