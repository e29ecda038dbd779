// Command fk-server starts the filekeeper gRPC server.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/and161185/filekeeper/internal/config"
	grpcserver "github.com/and161185/filekeeper/internal/server/grpc"
	"github.com/and161185/filekeeper/internal/service"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main loads configuration, opens the stores and serves gRPC until SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "", "optional config file (yaml/toml/json)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		// logger is not configured yet
		bootstrap, _ := zap.NewProduction()
		bootstrap.Fatal("load config", zap.Error(err))
	}

	logger := newLogger(cfg)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("metadataBackend", cfg.MetadataBackend),
		zap.String("objectBackend", cfg.ObjectBackend),
	)

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("open stores", zap.Error(err))
	}
	defer st.Close()

	// Services
	files := service.NewFileService(st.meta, st.objects, logger.Named("files"))
	handler := service.NewRequestHandler(files, logger.Named("handler"))

	// gRPC server with interceptors
	interceptors := []grpc.UnaryServerInterceptor{
		grpcserver.RecoverUnary(logger),
		grpcserver.LoggingUnary(logger),
	}
	if cfg.JWTKey != "" {
		interceptors = append(interceptors, grpcserver.AuthUnary([]byte(cfg.JWTKey)))
	} else {
		logger.Warn("JWT_KEY not set, requests are not authenticated")
	}
	opts := []grpc.ServerOption{grpc.ChainUnaryInterceptor(interceptors...)}
	if cfg.TLSEnabled() {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		opts = append(opts, grpc.Creds(creds))
	}
	s := grpc.NewServer(opts...)

	grpcserver.RegisterFileServiceServer(s, grpcserver.New(handler, logger))

	// Health & reflection (dev)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	if cfg.Dev {
		reflection.Register(s)
	}

	// Listen
	lis, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatal("listen", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("tls", cfg.TLSEnabled()))
		errCh <- s.Serve(lis)
	}()

	// Wait for stop
	select {
	case <-ctx.Done():
		hs.Shutdown()
		done := make(chan struct{})
		go func() {
			s.GracefulStop()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(cfg.ShutdownTimeout):
			s.Stop()
		}
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		st.Close()
		os.Exit(1)
	}

	logger.Info("shutdown complete")
}

func newLogger(cfg *config.Config) *zap.Logger {
	zc := zap.NewProductionConfig()
	if cfg.Dev {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(cfg.ZapLevel())
	logger, err := zc.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	return logger
}
