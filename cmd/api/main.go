package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Wikid82/bookingshield/internal/api/routes"
	"github.com/Wikid82/bookingshield/internal/config"
	"github.com/Wikid82/bookingshield/internal/database"
	"github.com/Wikid82/bookingshield/internal/logger"
	"github.com/Wikid82/bookingshield/internal/metrics"
	"github.com/Wikid82/bookingshield/internal/server"
	"github.com/Wikid82/bookingshield/internal/services"
	"github.com/Wikid82/bookingshield/internal/version"
)

func main() {
	// Handle CLI commands that do not need the server
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "hash-admin-key":
			if len(os.Args) != 3 {
				log.Fatalf("Usage: %s hash-admin-key <key>", os.Args[0])
			}
			hash, err := services.HashAdminKey(os.Args[2])
			if err != nil {
				log.Fatalf("hash admin key: %v", err)
			}
			fmt.Println(hash)
			return
		case "unblock":
			if len(os.Args) != 3 {
				log.Fatalf("Usage: %s unblock <identifier>", os.Args[0])
			}
			if err := unblock(os.Args[2]); err != nil {
				log.Fatalf("unblock: %v", err)
			}
			log.Printf("Removed block for %s", os.Args[2])
			return
		}
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Log to both stdout and a rotated file
	logFile := logger.RotatingFile(cfg.LogDir, "bookingshield.log")
	defer logFile.Close()
	mw := io.MultiWriter(os.Stdout, logFile)
	log.SetOutput(mw)
	logger.Init(cfg.Debug, mw)

	logger.Log().WithField("version", version.Full()).Infof("starting %s", version.Name)

	db, err := database.Connect(cfg.DatabasePath)
	if err != nil {
		logger.Log().WithError(err).Fatal("connect database")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := routes.Dependencies{}
	if cfg.Store.Backend == config.StoreRedis {
		client, err := database.ConnectRedis(ctx, cfg.Store.Redis)
		if err != nil {
			logger.Log().WithError(err).Fatal("connect redis")
		}
		defer client.Close()
		deps.Redis = client
	}

	if cfg.Metrics.Enabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics.Register(registry)
		deps.Gatherer = registry

		gauge, err := services.StartBlockGauge(services.NewBlockService(db, nil), cfg.Metrics.GaugeSchedule)
		if err != nil {
			logger.Log().WithError(err).Fatal("start block gauge")
		}
		defer gauge.Stop()
	}

	srv, err := server.New(db, cfg, deps)
	if err != nil {
		logger.Log().WithError(err).Fatal("build server")
	}

	logger.Log().WithFields(map[string]interface{}{
		"store":          cfg.Store.Backend,
		"failure_policy": cfg.Security.FailurePolicy,
		"endpoints":      len(cfg.Endpoints),
	}).Info("rate limiter configured")

	if err := srv.Run(ctx); err != nil {
		logger.Log().WithError(err).Fatal("server error")
	}
	logger.Log().Info("server stopped")
}

// unblock lifts a block directly in the database. It is the only way besides
// the admin API to clear a permanent block.
func unblock(identifier string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	db, err := database.Connect(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	audit := services.NewAuditService(db, nil, cfg.Alerts.MinSeverity)
	return services.NewBlockService(db, audit).Unblock(context.Background(), identifier, "cli")
}
