//go:build integration

package integration

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/ogurasousui/chronos/internal/platform/config"
	pg "github.com/ogurasousui/chronos/internal/platform/db/postgres"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	migrationsDir = "../assets/migrations"
	seedsDir      = "../assets/seeds"
)

// startPostgres は PostgreSQL コンテナを起動し、マイグレーションとシードを適用したプールを返します。
func startPostgres(t *testing.T) (*pgxpool.Pool, config.DatabaseConfig) {
	t.Helper()

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("chronos"),
		tcpostgres.WithUsername("chronos"),
		tcpostgres.WithPassword("chronos"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("failed to resolve container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("failed to resolve container port: %v", err)
	}

	cfg := config.DatabaseConfig{
		Host:           host,
		Port:           port.Int(),
		User:           "chronos",
		Password:       "chronos",
		Name:           "chronos",
		SSLMode:        "disable",
		IsolationLevel: config.IsolationReadCommitted,
		MaxOpenConns:   20,
	}

	if err := applyMigrations(cfg.DSN(), migrationsDir); err != nil {
		t.Fatalf("failed to migrate database: %v", err)
	}
	if err := applyMigrations(cfg.DSN()+"&x-migrations-table=schema_seeds", seedsDir); err != nil {
		t.Fatalf("failed to apply seeds: %v", err)
	}

	pool, err := pg.NewPool(ctx, cfg, nil)
	if err != nil {
		t.Fatalf("failed to create pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool, cfg
}

func applyMigrations(dsn, dir string) error {
	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func cpf(n int) string {
	s := strconv.Itoa(n)
	for len(s) < 11 {
		s = "0" + s
	}
	return s
}
