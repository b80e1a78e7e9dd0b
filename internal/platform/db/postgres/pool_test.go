package postgres

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/ogurasousui/chronos/internal/platform/config"
)

func testDatabaseConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Host:            "localhost",
		Port:            15432,
		User:            "chronos",
		Password:        "p@ss/word",
		Name:            "chronos",
		SSLMode:         "disable",
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

func TestBuildPoolConfig(t *testing.T) {
	t.Parallel()

	poolCfg, err := BuildPoolConfig(testDatabaseConfig(), nil)
	if err != nil {
		t.Fatalf("BuildPoolConfig returned error: %v", err)
	}

	if poolCfg.MaxConns != 20 || poolCfg.MinConns != 5 {
		t.Errorf("unexpected pool size: max=%d min=%d", poolCfg.MaxConns, poolCfg.MinConns)
	}
	if poolCfg.MaxConnLifetime != 30*time.Minute || poolCfg.MaxConnIdleTime != 10*time.Minute {
		t.Errorf("unexpected lifetimes: %v %v", poolCfg.MaxConnLifetime, poolCfg.MaxConnIdleTime)
	}
	if poolCfg.ConnConfig.Database != "chronos" || poolCfg.ConnConfig.Password != "p@ss/word" {
		t.Errorf("unexpected connection config: db=%s", poolCfg.ConnConfig.Database)
	}
	if got := poolCfg.ConnConfig.RuntimeParams["timezone"]; got != "UTC" {
		t.Errorf("expected UTC session timezone, got %q", got)
	}
	if got := poolCfg.ConnConfig.RuntimeParams["application_name"]; got != ApplicationName {
		t.Errorf("unexpected application_name %q", got)
	}
	if poolCfg.ConnConfig.Tracer != nil {
		t.Errorf("expected no tracer without a logger")
	}
}

func TestBuildPoolConfig_MinConnsCappedByMaxConns(t *testing.T) {
	t.Parallel()

	cfg := testDatabaseConfig()
	cfg.MaxOpenConns = 2
	cfg.MaxIdleConns = 8

	poolCfg, err := BuildPoolConfig(cfg, nil)
	if err != nil {
		t.Fatalf("BuildPoolConfig returned error: %v", err)
	}
	if poolCfg.MinConns != 2 {
		t.Errorf("expected MinConns 2, got %d", poolCfg.MinConns)
	}
}

func TestBuildPoolConfig_QueryLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	poolCfg, err := BuildPoolConfig(testDatabaseConfig(), logger)
	if err != nil {
		t.Fatalf("BuildPoolConfig returned error: %v", err)
	}

	tracer, ok := poolCfg.ConnConfig.Tracer.(*tracelog.TraceLog)
	if !ok {
		t.Fatalf("expected tracelog tracer, got %T", poolCfg.ConnConfig.Tracer)
	}
	if tracer.LogLevel != tracelog.LogLevelWarn {
		t.Errorf("unexpected tracer level %v", tracer.LogLevel)
	}

	tracer.Logger.Log(context.Background(), tracelog.LogLevelError, "Query", map[string]any{"sql": "SELECT 1"})
	if !bytes.Contains(buf.Bytes(), []byte("postgres: Query")) || !bytes.Contains(buf.Bytes(), []byte("level=ERROR")) {
		t.Errorf("unexpected log output: %s", buf.String())
	}
}
