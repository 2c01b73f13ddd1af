package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"CryptoSentinel/internal/api"
	"CryptoSentinel/internal/collector"
	"CryptoSentinel/internal/config"
	"CryptoSentinel/internal/logging"
	"CryptoSentinel/internal/notifier"
	"CryptoSentinel/internal/recorder"
	"CryptoSentinel/internal/scheduler"
)

func main() {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Warn("could not read .env")
	}

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	if err := cfg.Validate(); err != nil {
		logrus.WithError(err).Fatal("config validation")
	}

	logCloser, err := logging.Setup(cfg.Log.Level, cfg.Log.File)
	if err != nil {
		logrus.WithError(err).Fatal("setup logging")
	}
	defer logCloser.Close()
	logrus.Info("CryptoSentinel starting...")

	// Init fetcher
	var fetcher collector.Fetcher
	switch cfg.DataSource.Provider {
	case "mock":
		fetcher = &collector.MockFetcher{}
	default:
		fetcher = collector.NewCoinMarketCapFetcher(cfg.DataSource.BaseURL, cfg.DataSource.APIKey,
			time.Duration(cfg.DataSource.TimeoutSec)*time.Second, cfg.Proxy)
	}
	logrus.WithField("provider", fetcher.Name()).Info("data source ready")

	// Init recorder
	var rec recorder.Recorder
	if cfg.Storage.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Storage.SQLitePath)
		if err != nil {
			logrus.WithError(err).Warn("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	archive, err := recorder.NewFileArchive(cfg.Storage.DataDir)
	if err != nil {
		logrus.WithError(err).Fatal("init data directory")
	}

	// Init Telegram notifier
	tn, err := notifier.NewTelegramNotifier(notifier.Options{
		BotToken:       cfg.Telegram.BotToken,
		ChatID:         cfg.Telegram.ChatID,
		APIURL:         cfg.Telegram.APIURL,
		ProxyURL:       cfg.Proxy,
		TextTimeout:    time.Duration(cfg.Telegram.TextTimeoutSec) * time.Second,
		ImageTimeout:   time.Duration(cfg.Telegram.ImageTimeoutSec) * time.Second,
		MaxRetries:     *cfg.Telegram.MaxRetries,
		SendsPerSecond: *cfg.Telegram.SendsPerSecond,
	})
	if err != nil {
		logrus.WithError(err).Fatal("init telegram notifier")
	}

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sched := scheduler.NewScheduler(fetcher, rec, archive, tn, scheduler.Options{
		Limit:             cfg.DataSource.Limit,
		TopAssets:         cfg.Report.TopAssets,
		BigMoverThreshold: cfg.Report.BigMoverThreshold,
		Interval:          cfg.Interval(),
		RetryBackoff:      cfg.RetryBackoff(),
		Cron:              cfg.Schedule.Cron,
	})

	if cfg.Telegram.CommandsEnabled {
		go tn.StartPolling(ctx, sched.Commands())
	}

	var srv *http.Server
	if cfg.Metrics.Addr != "" {
		srv = &http.Server{
			Addr:              cfg.Metrics.Addr,
			Handler:           api.SetupRouter(sched),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logrus.WithField("addr", cfg.Metrics.Addr).Info("status server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logrus.WithError(err).Error("status server failed")
			}
		}()
	}

	logrus.Info("CryptoSentinel is running. Press Ctrl+C to stop.")
	if err := sched.Run(ctx); err != nil {
		logrus.WithError(err).Error("scheduler stopped with error")
	}

	logrus.Info("stopping...")
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logrus.WithError(err).Warn("status server forced to shutdown")
		}
	}
	logrus.Info("CryptoSentinel stopped")
}
