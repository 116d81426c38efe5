package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"investment-core/internal/account"
	"investment-core/internal/api"
	"investment-core/internal/catalog"
	"investment-core/internal/events"
	"investment-core/internal/evidence"
	"investment-core/internal/lifecycle"
	"investment-core/internal/monitor"
	"investment-core/internal/notify"
	"investment-core/internal/persistence"
	"investment-core/pkg/config"
	"investment-core/pkg/db"
	"investment-core/pkg/i18n"
	"investment-core/pkg/keylock"
	"investment-core/pkg/logger"
)

var buildVersion = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		zap.NewExample().Fatal("config load failed", zap.Error(err))
	}

	log := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer log.Sync() //nolint:errcheck

	i18n.SetLanguage(i18n.Language(cfg.Language))
	log.Info(i18n.M().Starting, zap.String("version", buildVersion))
	log.Info(i18n.M().ConfigLoaded, zap.String("port", cfg.Port), zap.String("db_path", cfg.DBPath))

	database, err := db.New(cfg.DBPath)
	if err != nil {
		log.Fatal("database init failed", zap.Error(err))
	}
	defer database.Close()
	if err := db.ApplyMigrations(database); err != nil {
		log.Fatal("database migrations failed", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bus := events.NewBus()
	sysMetrics := monitor.NewSystemMetrics()
	locks := keylock.New()

	// Notifications: inbox rows go through the batch writer, push through
	// the bus, email over SMTP and optionally NSQ.
	batchWriter := persistence.NewBatchWriter(database.DB, log, 100, time.Second)
	sinks := []notify.Sink{
		notify.NewInboxSink(batchWriter),
		notify.NewPushSink(bus),
		notify.NewEmailSink(notify.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, log),
	}
	var stopNSQ func()
	if cfg.NSQAddr != "" {
		producer, err := notify.NewNSQProducer(cfg.NSQAddr)
		if err != nil {
			log.Warn("nsq disabled", zap.String("addr", cfg.NSQAddr), zap.Error(err))
		} else {
			sinks = append(sinks, notify.NewNSQSink(producer, cfg.NSQTopic))
			stopNSQ = producer.Stop
			log.Info("nsq enabled", zap.String("addr", cfg.NSQAddr), zap.String("topic", cfg.NSQTopic))
		}
	}
	dispatcher := notify.NewDispatcher(notify.NewDBDirectory(database.Queries()), log, cfg.NotifyQueueSize, sinks...)

	store, err := evidence.NewLocalStore(cfg.UploadDir, cfg.MaxUploadBytes, log)
	if err != nil {
		log.Fatal("evidence store init failed", zap.Error(err))
	}

	tokens := api.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	accounts := account.NewService(database, tokens, dispatcher, log)
	bots := catalog.NewService(database, log)
	engine := lifecycle.NewService(lifecycle.Deps{
		DB:       database,
		Locks:    locks,
		Notifier: dispatcher,
		Bus:      bus,
		Metrics:  sysMetrics,
		Log:      log,
	})

	if n, err := bots.SyncFile(ctx, cfg.BotCatalogPath); err != nil {
		log.Error("bot catalog sync failed", zap.String("path", cfg.BotCatalogPath), zap.Error(err))
	} else if n > 0 {
		log.Info(i18n.M().CatalogSynced, zap.Int("bots", n))
	}
	if err := accounts.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Fatal("bootstrap admin failed", zap.Error(err))
	} else if cfg.AdminEmail != "" {
		log.Info(i18n.M().AdminBootstrap, zap.String("email", cfg.AdminEmail))
	}

	hub := api.NewHub(bus, log)
	hub.Run(ctx)

	mon := &monitor.Monitor{Bus: bus, Metrics: sysMetrics, Log: log}
	mon.Start(ctx)

	sysMetrics.AddSource("notifications", func() any { return dispatcher.Stats() })
	sysMetrics.AddSource("inbox_writer", func() any { return batchWriter.GetMetrics() })
	sysMetrics.AddSource("push", func() any { return hub.Stats() })
	sysMetrics.AddSource("bus_dropped", func() any { return bus.Dropped() })
	sysMetrics.AddSource("key_locks", func() any { return locks.Len() })

	server := api.NewServer(api.Deps{
		Accounts:  accounts,
		Lifecycle: engine,
		Catalog:   bots,
		Evidence:  store,
		Tokens:    tokens,
		Hub:       hub,
		Metrics:   sysMetrics,
		Log:       log,
		UploadDir: store.Root(),
	}, api.Options{
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		CORSOrigins:    cfg.CORSOrigins,
		RequestTimeout: 30 * time.Second,
		Version:        buildVersion,
	})

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Info(i18n.M().ServerListening, zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info(i18n.M().ShuttingDown)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}

	// drain queued notifications before the inbox writer flushes
	dispatcher.Close()
	if err := batchWriter.Close(); err != nil {
		log.Warn("inbox writer close", zap.Error(err))
	}
	if stopNSQ != nil {
		stopNSQ()
	}
	cancel()
	bus.Close()
}
