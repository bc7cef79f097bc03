package drivers

import (
	"context"
	"errors"
	"io/fs"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	dbembed "github.com/memohai/accelerator/db"
	"github.com/memohai/accelerator/internal/hub"
)

// newPostgresTestStore migrates a clean schema and returns a store on it.
func newPostgresTestStore(t *testing.T, dsn string) hub.Store {
	t.Helper()
	sub, err := fs.Sub(dbembed.MigrationsFS, "migrations")
	require.NoError(t, err)
	source, err := iofs.New(sub, ".")
	require.NoError(t, err)
	m, err := migrate.NewWithSourceInstance("iofs", source, dsn)
	require.NoError(t, err)
	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migrate down: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migrate up: %v", err)
	}
	_, _ = m.Close()

	pool, err := pgxpool.New(context.Background(), dsn)
	require.NoError(t, err)
	return NewPostgresStore(pool)
}
