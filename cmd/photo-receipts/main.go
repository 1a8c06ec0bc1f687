package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/photo-receipts/internal/async"
	"github.com/joseph-ayodele/photo-receipts/internal/common"
	"github.com/joseph-ayodele/photo-receipts/internal/compose"
	"github.com/joseph-ayodele/photo-receipts/internal/export"
	"github.com/joseph-ayodele/photo-receipts/internal/gallery"
	"github.com/joseph-ayodele/photo-receipts/internal/pipeline"
	"github.com/joseph-ayodele/photo-receipts/internal/repository"
	"github.com/joseph-ayodele/photo-receipts/internal/server"
	"github.com/joseph-ayodele/photo-receipts/internal/transport/cloudinary"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey || a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("config.invalid", "err", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, cfg, logger)
	stop()
	if err != nil {
		logger.Error("server.failed", "err", err)
		os.Exit(1)
	}
}

// run serves HTTP and gRPC until ctx is done. Every resource it opens is released before it returns.
func run(ctx context.Context, cfg *common.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	db, err := repository.Open(ctx, repository.ConfigFrom(cfg.Registry), logger)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}
	defer repository.Close(db, logger)

	if err := repository.HealthCheck(ctx, db, 3*time.Second, logger); err != nil {
		return fmt.Errorf("registry health: %w", err)
	}

	grpcLis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		return fmt.Errorf("grpc listen %s: %w", cfg.Server.GRPCAddr, err)
	}
	defer func() { _ = grpcLis.Close() }()
	httpLis, err := net.Listen("tcp", cfg.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("http listen %s: %w", cfg.Server.HTTPAddr, err)
	}
	defer func() { _ = httpLis.Close() }()

	loc := cfg.Receipt.Location()
	uploader := cloudinary.NewClient(cloudinary.Config{
		CloudName:    cfg.Upload.CloudName,
		UploadPreset: cfg.Upload.UploadPreset,
		BaseURL:      cfg.Upload.BaseURL,
		Timeout:      cfg.Upload.Timeout,
		MediaHosts:   cfg.Upload.MediaHosts,
	}, logger)
	composer := compose.New(compose.Config{
		Title:    cfg.Receipt.Title,
		Footer:   cfg.Receipt.Footer,
		Location: loc,
	}, logger)

	verify := async.NewVerifyQueue(
		async.HTTPChecker{Client: &http.Client{Timeout: cfg.Verify.Timeout}},
		logger,
		async.WithWorkers(cfg.Verify.Workers),
		async.WithQueueSize(cfg.Verify.QueueSize),
		async.WithCheckTimeout(cfg.Verify.Timeout),
	)

	hub := gallery.NewHub(logger)
	go hub.Run(ctx)

	processor := pipeline.NewProcessor(pipeline.Deps{
		Uploader: uploader,
		Photos:   db.Photos,
		Composer: composer,
		Verify:   verify,
		Gallery:  hub,
		Origin:   cfg.Server.PublicOrigin,
	}, logger)

	srv := server.New(server.Deps{
		Photos:    db.Photos,
		Processor: processor,
		Export:    export.NewService(db.Photos, cfg.Server.PublicOrigin, loc, logger),
		Gallery:   hub,
		Health: func(r *http.Request) error {
			return repository.HealthCheck(r.Context(), db, 2*time.Second, logger)
		},
		MediaHosts:  cfg.Upload.MediaHosts,
		Location:    loc,
		MaxUploadMB: cfg.Server.MaxUploadMB,
	}, logger)

	httpServer := &http.Server{
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	grpcServer, hs := server.NewGRPCServer()
	reflection.Register(grpcServer)
	go server.WatchHealth(ctx, hs, func(ctx context.Context) error {
		return repository.HealthCheck(ctx, db, 2*time.Second, logger)
	}, 15*time.Second, logger)

	serveErr := make(chan error, 2)
	go func() {
		logger.Info("grpc.serve", "addr", grpcLis.Addr().String())
		if err := grpcServer.Serve(grpcLis); err != nil {
			serveErr <- fmt.Errorf("grpc serve: %w", err)
		}
	}()
	go func() {
		logger.Info("http.serve", "addr", httpLis.Addr().String(), "origin", cfg.Server.PublicOrigin, "registry", db.Backend)
		if err := httpServer.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http serve: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-serveErr:
	}
	logger.Info("shutdown.begin")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http.shutdown.failed", "err", err)
	}
	grpcServer.GracefulStop()
	verify.Shutdown(shutdownCtx)
	logger.Info("shutdown.done")
	return runErr
}
