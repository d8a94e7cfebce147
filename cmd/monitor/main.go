package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"marketpulse/internal/analysis"
	"marketpulse/internal/config"
	cronrunner "marketpulse/internal/cron"
	"marketpulse/internal/db"
	"marketpulse/internal/filter"
	"marketpulse/internal/handler"
	"marketpulse/internal/ingest"
	"marketpulse/internal/logger"
	"marketpulse/internal/monitor"
	"marketpulse/internal/notify"
	"marketpulse/internal/queue"
	gormrepository "marketpulse/internal/repository/gorm"
)

func main() {
	cfgPath := os.Getenv("MP_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("MP_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	dbConn, err := db.Open(cfg.DB)
	if err != nil {
		logger.Fatal("db open failed", zap.Error(err))
	}
	defer db.Close(dbConn)

	if err := db.SetTimezone(dbConn, cfg.DB.Timezone); err != nil {
		logger.Warn("failed to set timezone", zap.Error(err))
	}
	if err := db.AutoMigrate(dbConn); err != nil {
		logger.Fatal("auto-migrate failed", zap.Error(err))
	}

	store := gormrepository.New(dbConn.Gorm)
	loc := cfg.App.Location()

	engine := filter.NewEngine(cfg.Filter, logger)
	if err := engine.Reload(); err != nil {
		logger.Fatal("keyword ruleset load failed", zap.Error(err))
	}

	pending := queue.NewPendingQueue(cfg.Ingest.QueueCap)
	analyzer := analysis.NewClient(cfg.Analysis, logger)

	notifier, err := buildNotifier(cfg.Notify, logger)
	if err != nil {
		logger.Fatal("notifier setup failed", zap.Error(err))
	}
	logger.Info("notification channels ready", zap.Int("channels", notifier.Channels()))

	source, channels, err := buildSource(cfg.Ingest, logger)
	if err != nil {
		logger.Fatal("ingest source setup failed", zap.Error(err))
	}

	mon := &monitor.Monitor{
		Source:   source,
		Channels: channels,
		Engine:   engine,
		Queue:    pending,
		Analyzer: analyzer,
		Notifier: notifier,
		Repo:     store,
		Jobs:     cfg.Jobs,
		Location: loc,
		Logger:   logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	healthHandler := &handler.HealthHandler{DB: dbConn, Engine: engine}
	healthHandler.Register(router)
	statsHandler := &handler.StatsHandler{Monitor: mon, Queue: pending}
	statsHandler.Register(router)
	itemsHandler := &handler.ItemsHandler{Repo: store, Location: loc}
	itemsHandler.Register(router)
	keywordsHandler := &handler.KeywordsHandler{Engine: engine}
	keywordsHandler.Register(router)

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Cron.Enabled {
		cronRunner := cronrunner.New(logger, ctx)
		retention := cfg.Jobs.RetentionDays
		if retention <= 0 {
			retention = 30
		}
		_, err = cronRunner.Add("retention_cleanup", cfg.Cron.Cleanup, func(ctx context.Context) {
			cutoff := time.Now().UTC().AddDate(0, 0, -retention)
			n, err := store.DeleteReportedBefore(ctx, cutoff)
			if err != nil {
				logger.Warn("retention cleanup failed", zap.Error(err))
				return
			}
			if n > 0 {
				logger.Info("retention cleanup done", zap.Int64("deleted", n))
			}
		})
		if err != nil {
			logger.Warn("cron register retention cleanup failed", zap.Error(err))
		}
		_, err = cronRunner.Add("stats_log", cfg.Cron.StatsLog, func(ctx context.Context) {
			snap := mon.Stats.Snapshot()
			logger.Info("pipeline stats",
				zap.Int64("total_received", snap.Total),
				zap.Int64("queued", snap.Queued),
				zap.Int64("excluded", snap.Excluded),
				zap.Int64("analyzed", snap.Analyzed),
				zap.Int64("valuable", snap.Valuable),
				zap.Int64("pushed", snap.Pushed),
				zap.Int("queue_len", pending.Len()),
			)
		})
		if err != nil {
			logger.Warn("cron register stats log failed", zap.Error(err))
		}
		cronRunner.Start()
		defer cronRunner.Stop()
	}

	errCh := make(chan error, 2)

	go func() {
		if err := mon.Run(ctx); err != nil {
			errCh <- err
		}
	}()

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown requested")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
	mon.Stop()
}

func buildSource(cfg config.IngestConfig, logger *zap.Logger) (ingest.Source, []int64, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Source)) {
	case "", "telegram":
		if cfg.Telegram.Token == "" {
			return nil, nil, errors.New("ingest.telegram.token is required")
		}
		return ingest.NewTelegramSource(cfg.Telegram, logger), cfg.Telegram.Channels, nil
	case "feed":
		if cfg.Feed.URL == "" {
			return nil, nil, errors.New("ingest.feed.url is required")
		}
		return ingest.NewFeedSource(cfg.Feed, logger), cfg.Feed.Channels, nil
	default:
		return nil, nil, fmt.Errorf("unknown ingest source %q", cfg.Source)
	}
}

func buildNotifier(cfg config.NotifyConfig, logger *zap.Logger) (*notify.Multi, error) {
	var channels []notify.Notifier
	if cfg.Webhook.Enabled {
		channels = append(channels, notify.NewWebhook(cfg.Webhook))
	}
	if cfg.Email.Enabled {
		channels = append(channels, notify.NewEmail(cfg.Email))
	}
	if cfg.Telegram.Enabled {
		tg, err := notify.NewTelegram(cfg.Telegram)
		if err != nil {
			return nil, fmt.Errorf("telegram notifier: %w", err)
		}
		channels = append(channels, tg)
	}
	if len(channels) == 0 {
		return nil, errors.New("no notification channel enabled")
	}
	return notify.NewMulti(cfg.MaxLength, logger, channels...), nil
}
