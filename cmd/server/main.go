package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gymdesk/internal/api"
	"gymdesk/internal/config"
	"gymdesk/internal/database"
	"gymdesk/internal/domain"
	"gymdesk/internal/events"
	"gymdesk/internal/export"
	"gymdesk/internal/google"
	"gymdesk/internal/logging"
	"gymdesk/internal/metrics"
	"gymdesk/internal/payment"
	"gymdesk/internal/repository"
	"gymdesk/internal/service"
	"gymdesk/internal/store"
	gymsync "gymdesk/internal/sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка инициализации базы данных")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := store.New()
	if err := hydrateStore(ctx, st, db, cfg, &logger); err != nil {
		return err
	}

	redisClient, feed := initChangeFeed(ctx, cfg, &logger)

	mirror := initGoogleSheets(ctx, cfg, &logger)

	var mirrorWorker *gymsync.MirrorWorker
	if mirror != nil {
		retryPolicy := gymsync.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
		mirrorWorker = gymsync.NewMirrorWorker(db, mirror, st, redisClient, retryPolicy, &logger)
		go mirrorWorker.Start(ctx)
		go gymsync.SnapshotTicker(ctx, mirrorWorker, time.Duration(cfg.Gym.SnapshotIntervalMinutes)*time.Minute, &logger)
	}

	listener := gymsync.NewFeedListener(st, db, feed, &logger)
	if err := listener.Start(ctx); err != nil {
		logger.Warn().Err(err).Msg("change feed listener unavailable")
	}

	metrics.Register()
	if cfg.Monitoring.PrometheusEnabled {
		go serveMetrics(cfg.Monitoring.PrometheusPort, &logger)
	}

	eventBus := events.NewEventBus()
	gateway := payment.NewSimulatedGateway(cfg.Gym.PaymentSuccessRate, time.Now().UnixNano())

	var worker domain.SyncWorker
	if mirrorWorker != nil {
		worker = mirrorWorker
	}

	bookingService := service.NewBookingService(st, db, feed, eventBus, worker, gateway, &logger)
	scheduleService := service.NewScheduleService(st, db, feed, eventBus, &logger)
	accountService := service.NewAccountService(st, db, feed, eventBus, worker, &logger)
	exporter := export.NewExporter(db, cfg.Exports.Path, &logger)

	if cfg.Backup.Enabled {
		backupService := database.NewBackupService(cfg.Database.Path, cfg.Backup, &logger)
		go backupService.Start(ctx)
	}

	if cfg.API.Enabled {
		apiServer := api.NewHTTPServer(cfg.API, bookingService, scheduleService, accountService, exporter, &logger)
		go func() {
			if err := apiServer.Start(); err != nil {
				logger.Error().Err(err).Msg("API server error")
			}
		}()
		defer func() {
			_ = apiServer.Shutdown(context.Background())
		}()
	}

	logger.Info().Msg("Сервер запущен...")
	<-ctx.Done()
	logger.Info().Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "server-main").Logger()

	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для базы данных")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("Ошибка создания директории для экспорта")
		return err
	}
	return nil
}

// hydrateStore fills the in-memory collections from the database, seeding
// from the configured YAML file on a fresh install.
func hydrateStore(ctx context.Context, st *store.Store, db *database.DB, cfg *config.Config, logger *zerolog.Logger) error {
	snap, err := db.LoadSnapshot(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Ошибка загрузки данных из базы")
		return err
	}
	st.Load(snap)

	if !st.Empty() {
		logger.Info().
			Int("accounts", len(snap.Accounts)).
			Int("time_slots", len(snap.TimeSlots)).
			Int("bookings", len(snap.Bookings)).
			Msg("store hydrated from database")
		return nil
	}

	seed, err := config.LoadSeed(cfg.SeedPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Warn().Str("path", cfg.SeedPath).Msg("seed file missing, starting empty")
			return nil
		}
		logger.Error().Err(err).Msg("Ошибка загрузки seed файла")
		return err
	}

	for i := range seed.Accounts {
		if _, err := st.RegisterAccount(seed.Accounts[i]); err != nil {
			return fmt.Errorf("seed account %s: %w", seed.Accounts[i].ID, err)
		}
	}
	for i := range seed.TimeSlots {
		slot := seed.TimeSlots[i]
		if _, err := st.AddTimeSlot(slot.TrainerID, slot.Day, slot.StartTime, slot.EndTime); err != nil {
			return fmt.Errorf("seed slot %s: %w", slot.ID, err)
		}
	}

	if err := db.SaveSnapshot(ctx, st.Snapshot()); err != nil {
		logger.Error().Err(err).Msg("Ошибка сохранения seed данных")
		return err
	}

	logger.Info().
		Int("accounts", len(seed.Accounts)).
		Int("time_slots", len(seed.TimeSlots)).
		Msg("store seeded from configs")
	return nil
}

func initChangeFeed(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, domain.ChangeFeed) {
	memory := repository.NewMemoryChangeFeed()

	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		if errPing := repository.Ping(ctx, redisClient); errPing != nil {
			logger.Warn().Err(errPing).Msg("Redis unavailable")
		}
	}
	if redisClient == nil {
		return nil, memory
	}

	primary := repository.NewRedisChangeFeed(redisClient)
	return redisClient, repository.NewFailoverChangeFeed(primary, memory, logger)
}

func initGoogleSheets(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) domain.MirrorWriter {
	if cfg.Google.CredentialsFile == "" || cfg.Google.MirrorSpreadsheetID == "" {
		logger.Info().Msg("Google Sheets mirror is not configured")
		return nil
	}

	sheetsSvc, err := google.NewSheetsService(
		cfg.Google.CredentialsFile,
		cfg.Google.MirrorSpreadsheetID,
		cfg.Google.BookingsSheetName,
		cfg.Google.MembersSheetName,
	)
	if err != nil {
		logger.Warn().Err(err).Msg("Failed to initialize Google Sheets service")
		return nil
	}

	if err := sheetsSvc.TestConnection(ctx); err != nil {
		logger.Error().Err(err).Msg("Google Sheets connection test failed")
		return nil
	}

	logger.Info().Msg("Google Sheets service initialized successfully")
	return sheetsSvc
}

func serveMetrics(port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	addr := fmt.Sprintf(":%d", port)
	logger.Info().Str("addr", addr).Msg("Prometheus metrics listening")
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
