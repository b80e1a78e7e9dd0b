package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ogurasousui/chronos/internal/adapters/events/kafka"
	"github.com/ogurasousui/chronos/internal/adapters/http/handler"
	"github.com/ogurasousui/chronos/internal/adapters/repository/memory"
	"github.com/ogurasousui/chronos/internal/adapters/repository/postgres"
	"github.com/ogurasousui/chronos/internal/core/card"
	"github.com/ogurasousui/chronos/internal/core/employee"
	"github.com/ogurasousui/chronos/internal/core/timerecord"
	"github.com/ogurasousui/chronos/internal/platform/config"
	pg "github.com/ogurasousui/chronos/internal/platform/db/postgres"
	"github.com/ogurasousui/chronos/internal/platform/logger"
	"github.com/ogurasousui/chronos/internal/platform/metrics"
	"github.com/ogurasousui/chronos/internal/platform/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "assets/local.yaml"
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	appLogger := logger.New(cfg.Log)
	slog.SetDefault(appLogger)

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Error("server stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) error {
	store, closeStore, err := openStorage(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	appMetrics := metrics.New(registry)

	var publisher timerecord.EventPublisher
	if cfg.Events.Enabled() {
		kafkaPublisher, err := kafka.NewPublisher(cfg.Events)
		if err != nil {
			return err
		}
		defer kafkaPublisher.Close()

		if cfg.Events.CreateTopic {
			if err := kafkaPublisher.EnsureTopic(ctx, cfg.Events.Partitions, cfg.Events.ReplicationFactor); err != nil {
				appLogger.Warn("failed to ensure event topic", slog.String("topic", cfg.Events.Topic), slog.Any("error", err))
			}
		}
		publisher = kafkaPublisher
		appLogger.Info("time record events enabled", slog.String("topic", cfg.Events.Topic))
	}

	employeeSvc := employee.NewService(store.employees, nil, store.tx)
	cardSvc := card.NewService(store.cards, employeeSvc, nil, store.tx)
	timeRecordSvc := timerecord.NewService(store.timeRecords, employeeSvc, nil, store.tx, timerecord.Options{
		Location:       cfg.Attendance.Location,
		Publisher:      publisher,
		PublishTimeout: cfg.Events.DeliveryTimeout,
		Logger:         appLogger,
	})

	router := handler.NewRouter(handler.RouterConfig{
		BasePath:     cfg.Server.BasePath,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		Employees:    employeeSvc,
		Cards:        cardSvc,
		TimeRecords:  timeRecordSvc,
		Logger:       appLogger,
		Metrics:      appMetrics,
		Ready:        store.ready,
	})

	srv := server.New(cfg.Server, router, appLogger)
	srv.SetServing(true)

	return srv.Run(ctx)
}

// storage は選択されたドライバのリポジトリとトランザクション管理をまとめたものです。
type storage struct {
	employees   employee.Repository
	cards       card.Repository
	timeRecords timerecord.Repository
	tx          transactionManager
	ready       func(ctx context.Context) error
}

type transactionManager interface {
	WithinReadOnly(ctx context.Context, fn func(context.Context) error) error
	WithinReadWrite(ctx context.Context, fn func(context.Context) error) error
}

func openStorage(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) (storage, func(), error) {
	if cfg.Database.Driver == config.DriverMemory {
		appLogger.Warn("using in-memory storage; data is lost on shutdown")
		store := memory.NewStore()
		return storage{
			employees:   store.Employees(),
			cards:       store.Cards(),
			timeRecords: store.TimeRecords(),
			tx:          store,
			ready:       func(context.Context) error { return nil },
		}, func() {}, nil
	}

	dbPool, err := pg.NewPool(ctx, cfg.Database, appLogger)
	if err != nil {
		return storage{}, nil, err
	}

	return storage{
		employees:   postgres.NewEmployeeRepository(dbPool),
		cards:       postgres.NewCardRepository(dbPool),
		timeRecords: postgres.NewTimeRecordRepository(dbPool, cfg.Attendance.Location),
		tx:          pg.NewTransactionManager(dbPool, cfg.Database.IsolationLevel),
		ready:       dbPool.Ping,
	}, dbPool.Close, nil
}
