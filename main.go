package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"marketrelay/cache"
	"marketrelay/config"
	"marketrelay/hub"
	"marketrelay/logger"
	"marketrelay/reader/indodax"
	"marketrelay/relay"
	"marketrelay/server"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.Marketrelay.Name,
		"version": cfg.Marketrelay.Version,
		"env":     config.AppEnvironment(),
	}).Info("starting marketrelay")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	snapshots := cache.NewSnapshotCache()
	subscribers := hub.NewHub()
	fetcher := indodax.NewReader(cfg)

	producer := relay.New(cfg, fetcher, snapshots, subscribers)
	if err := producer.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start relay")
		os.Exit(1)
	}

	srv := server.New(cfg, snapshots, subscribers)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- srv.Run(ctx)
	}()

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverDown := false
	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case err := <-serverErr:
		serverDown = true
		if err != nil {
			log.WithError(err).Error("server exited unexpectedly")
		}
	}

	log.Info("starting graceful shutdown")
	cancel()

	log.Info("stopping relay")
	producer.Stop()

	if !serverDown {
		select {
		case err := <-serverErr:
			if err != nil {
				log.WithError(err).Warn("server shutdown error")
			}
		case <-time.After(30 * time.Second):
			log.Warn("graceful shutdown timeout exceeded")
		}
	}

	log.Info("marketrelay stopped")
}
