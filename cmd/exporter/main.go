package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/Hobrus/svcexporter.git/internal/app/exporter/config"
	"github.com/Hobrus/svcexporter.git/internal/app/exporter/encoder"
	"github.com/Hobrus/svcexporter.git/internal/app/exporter/handlers"
	"github.com/Hobrus/svcexporter.git/internal/app/exporter/middleware"
	"github.com/Hobrus/svcexporter.git/internal/app/exporter/probe"
	"github.com/Hobrus/svcexporter.git/internal/app/exporter/scheduler"
	"github.com/Hobrus/svcexporter.git/internal/app/exporter/snapshot"
	"github.com/Hobrus/svcexporter.git/internal/pkg/buildinfo"
)

// Build information is injected via -ldflags at build time.
var buildVersion string
var buildDate string
var buildCommit string

func printBuildInfo() {
	buildinfo.Version, buildinfo.Date, buildinfo.Commit = buildVersion, buildDate, buildCommit
	buildinfo.PrintSelf()
}

type exporter struct {
	server    *http.Server
	scheduler *scheduler.Scheduler
	probe     probe.Probe
}

func buildProbe(ctx context.Context, cfg *config.Config) (probe.Probe, error) {
	var probes probe.Multi
	if cfg.MetricsURL != "" {
		probes = append(probes, probe.NewJSONProbe(cfg.MetricsURL))
	}
	if len(cfg.Services) > 0 {
		probes = append(probes, probe.NewServiceProbe(cfg.Services))
	}
	if len(cfg.PostgresTargets) > 0 {
		pg, err := probe.NewPostgresProbe(ctx, cfg.PostgresTargets)
		if err != nil {
			return nil, err
		}
		probes = append(probes, pg)
	}
	switch len(probes) {
	case 0:
		return nil, errors.New("no probes configured")
	case 1:
		return probes[0], nil
	}
	return probes, nil
}

func setupExporter(logger *logrus.Logger, cfg *config.Config, p probe.Probe) *exporter {
	descs := probe.Describe(p)
	store := snapshot.New(descs)
	enc := encoder.New(descs, buildinfo.Get())
	handler := handlers.NewHandler(store, enc, logger)

	router := gin.New()
	router.Use(middleware.LoggingMiddleware(logger), gin.Recovery(), middleware.GzipMiddleware())
	handler.SetupRoutes(router)

	return &exporter{
		server: &http.Server{
			Addr:              cfg.ServerAddress,
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		scheduler: scheduler.New(p, store, cfg.RefreshInterval, cfg.ProbeTimeout, logger),
		probe:     p,
	}
}

func main() {
	printBuildInfo()

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.NewConfig()
	if err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Fatalf("Invalid log level: %v", err)
	}
	logger.SetLevel(level)
	gin.SetMode(gin.ReleaseMode)

	p, err := buildProbe(context.Background(), cfg)
	if err != nil {
		logger.Fatal(err)
	}
	app := setupExporter(logger, cfg, p)

	// Привязка к порту до старта фоновых задач: без неё экспортер бесполезен.
	ln, err := net.Listen("tcp", cfg.ServerAddress)
	if err != nil {
		probe.Close(p)
		logger.Fatalf("Failed to listen on %s: %v", cfg.ServerAddress, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go app.scheduler.Run(ctx)

	serveErr := make(chan error, 1)
	go func() {
		if err := app.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	logger.WithFields(logrus.Fields{
		"address":  ln.Addr().String(),
		"probe":    p.Name(),
		"interval": cfg.RefreshInterval,
		"timeout":  cfg.ProbeTimeout,
	}).Infof("Exporter running on http://%s/metrics", ln.Addr())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-serveErr:
		logger.Errorf("Server error: %v", err)
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	if err := app.server.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("Server shutdown timed out, closing connections: %v", err)
		_ = app.server.Close()
	}
	probe.Close(p)

	logger.Info("Exporter stopped")
}
