package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/ogurasousui/chronos/internal/adapters/http/middleware"
	"github.com/ogurasousui/chronos/internal/core/card"
	"github.com/ogurasousui/chronos/internal/core/employee"
	"github.com/ogurasousui/chronos/internal/core/timerecord"
	"github.com/ogurasousui/chronos/internal/platform/metrics"
)

// RouterConfig はルーター構築に必要な依存関係です。
type RouterConfig struct {
	BasePath     string
	MaxBodyBytes int64
	Employees    employee.UseCase
	Cards        card.UseCase
	TimeRecords  timerecord.UseCase
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	// Ready は /healthz で呼び出される疎通確認です。nil の場合は常に成功します。
	Ready func(ctx context.Context) error
}

// NewRouter は API ルートとミドルウェアを登録した http.Handler を返します。
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api/v1"
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.AccessLog(logger, cfg.Metrics))
	r.Use(chimiddleware.Recoverer)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorEnvelope{
			StatusCode: http.StatusNotFound,
			Message:    "Cannot " + r.Method + " " + r.URL.Path,
			Error:      http.StatusText(http.StatusNotFound),
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(r.Context()); err != nil {
				logger.WarnContext(r.Context(), "readiness check failed", "err", err)
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route(basePath, func(api chi.Router) {
		NewEmployeeHandler(cfg.Employees, logger, maxBody).Register(api)
		NewCardHandler(cfg.Cards, logger, cfg.Metrics).Register(api)
		NewTimeRecordHandler(cfg.TimeRecords, logger, cfg.Metrics).Register(api)
	})

	return r
}
