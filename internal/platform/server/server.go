package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/ogurasousui/chronos/internal/platform/config"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName は gRPC ヘルスチェックで報告するサービス名です。
const ServiceName = "chronos.attendance"

// Server は HTTP API サーバーと gRPC ヘルスチェックサーバーのライフサイクルを管理します。
type Server struct {
	listenAddr      string
	healthAddr      string
	shutdownTimeout time.Duration
	httpServer      *http.Server
	grpcServer      *grpc.Server
	health          *health.Server
	logger          *slog.Logger
}

// New は設定とハンドラからサーバーを構築します。起動直後のヘルス状態は NOT_SERVING です。
func New(cfg config.ServerConfig, handler http.Handler, logger *slog.Logger, opts ...grpc.ServerOption) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	grpcServer := grpc.NewServer(opts...)
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{
		listenAddr:      cfg.ListenAddr,
		healthAddr:      cfg.HealthAddr,
		shutdownTimeout: cfg.ShutdownTimeout,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		grpcServer: grpcServer,
		health:     healthServer,
		logger:     logger,
	}
}

// SetServing は gRPC ヘルスチェックの状態を切り替えます。
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Run は設定されたアドレスで待ち受け、コンテキストがキャンセルされるまでサーバーを動かします。
func (s *Server) Run(ctx context.Context) error {
	httpLis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddr, err)
	}

	grpcLis, err := net.Listen("tcp", s.healthAddr)
	if err != nil {
		httpLis.Close()
		return fmt.Errorf("listen on %s: %w", s.healthAddr, err)
	}

	return s.Serve(ctx, httpLis, grpcLis)
}

// Serve は与えられたリスナーで両サーバーを起動します。
// コンテキストのキャンセル時は NOT_SERVING を報告してから HTTP を Shutdown し、gRPC を GracefulStop します。
func (s *Server) Serve(ctx context.Context, httpLis, grpcLis net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.logger.Info("http server listening", slog.String("addr", httpLis.Addr().String()))
		if err := s.httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		s.logger.Info("grpc health server listening", slog.String("addr", grpcLis.Addr().String()))
		if err := s.grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve gRPC: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		s.health.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		err := s.httpServer.Shutdown(shutdownCtx)
		s.grpcServer.GracefulStop()
		if err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		s.logger.Info("servers stopped")
		return nil
	})

	return g.Wait()
}
