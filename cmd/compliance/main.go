package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/example/access-compliance/internal/application"
	"github.com/example/access-compliance/internal/cardlock"
	"github.com/example/access-compliance/internal/compliance"
	"github.com/example/access-compliance/internal/config"
	"github.com/example/access-compliance/internal/feed"
	httptransport "github.com/example/access-compliance/internal/http"
	"github.com/example/access-compliance/internal/logging"
	"github.com/example/access-compliance/internal/notification"
	"github.com/example/access-compliance/internal/persistence/sqlite"
	"github.com/example/access-compliance/internal/persistence/sqlite/migration"
)

func main() {
	bootLogger := logging.New(slog.LevelInfo, os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		bootLogger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.Level, os.Stdout)

	svc, err := newService(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start compliance service", "error", err)
		os.Exit(1)
	}
	defer svc.Close()

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           svc.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// The ledger stream keeps responses open, so no WriteTimeout.
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		svc.hub.Close()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("failed to shutdown server", "error", err)
		}
	}()

	logger.Info("compliance API listening", "addr", server.Addr, "timezone", cfg.Location.String(), "auth_required", cfg.Auth.RequireAuth)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server encountered error", "error", err)
		svc.Close()
		os.Exit(1)
	}
}

// service owns the long-lived collaborators behind the HTTP handler.
type service struct {
	handler    http.Handler
	hub        *feed.Hub
	dispatcher *notification.Dispatcher
	closers    []func() error
	logger     *slog.Logger
}

// Close drains pending notifications and releases storage and Redis clients
// in reverse order of creation.
func (s *service) Close() {
	if s == nil {
		return
	}
	s.hub.Close()
	s.dispatcher.Wait()
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			s.logger.Error("failed to release resource", "error", err)
		}
	}
	s.closers = nil
}

func newService(ctx context.Context, cfg config.Config, logger *slog.Logger) (svc *service, err error) {
	svc = &service{logger: logger}
	defer func() {
		if err != nil {
			svc.Close()
			svc = nil
		}
	}()

	pool, err := sqlite.Open(ctx, migration.DefaultSQLiteConfig(cfg.SQLiteDSN), logger)
	if err != nil {
		return svc, fmt.Errorf("open storage: %w", err)
	}
	svc.closers = append(svc.closers, pool.Close)

	employees := newEmployeeRepositoryAdapter(sqlite.NewEmployeeRepository(pool))
	supervisors := newSupervisorRepositoryAdapter(sqlite.NewSupervisorRepository(pool))
	schedules := newWorkScheduleRepositoryAdapter(sqlite.NewWorkScheduleRepository(pool))
	cards := newCardStoreAdapter(sqlite.NewCardAssignmentRepository(pool))
	swipeEvents := newSwipeEventRepositoryAdapter(sqlite.NewSwipeEventRepository(pool))

	locker := cardlock.Chain{cardlock.NewLocal()}
	svc.hub = feed.NewHub(feed.HubConfig{Logger: logger})
	sinks := []feed.Sink{svc.hub}

	if cfg.Redis.Enabled() {
		redisLocker := cardlock.NewRedis(cardlock.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.CardLockTTL,
		})
		svc.closers = append(svc.closers, redisLocker.Close)
		if err = redisLocker.Ping(ctx); err != nil {
			return svc, fmt.Errorf("connect redis %s: %w", cfg.Redis.Addr, err)
		}
		locker = append(locker, redisLocker)

		publisher := feed.NewRedisPublisher(feed.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Logger:   logger,
		})
		svc.closers = append(svc.closers, publisher.Close)
		sinks = append(sinks, publisher)
	}

	ledger := application.NewLedgerWithLogger(swipeEvents, logger)
	if cfg.Redis.Enabled() {
		// Other instances append to the same ledger.
		ledger.DisableViewCache()
	}
	ledger.Subscribe(feed.Listener(httptransport.EncodeLedgerEvent, logger, sinks...))

	svc.dispatcher = notification.NewDispatcher(notification.DispatcherConfig{
		Email:     emailSender(cfg.SMTP, logger),
		SMS:       smsSender(cfg.SMS, logger),
		Timeout:   cfg.Notify.Timeout,
		PerMinute: cfg.Notify.PerMinute,
		Burst:     cfg.Notify.Burst,
		Logger:    logger,
	})

	metrics := application.NewMetrics(nil)
	registry := application.NewCardRegistryWithLogger(cards, employees, supervisors, schedules, locker, uuid.NewString, time.Now, logger).UseMetrics(metrics)
	directory := application.NewDirectoryServiceWithLogger(employees, supervisors, schedules, registry, uuid.NewString, time.Now, logger)
	access := application.NewAccessServiceWithLogger(registry, ledger, logger)
	swipes := application.NewSwipeService(application.SwipeServiceDeps{
		Cards:     registry,
		Ledger:    ledger,
		Evaluator: compliance.NewEvaluator(cfg.Location),
		Notifier:  svc.dispatcher,
		Metrics:   metrics,
		Logger:    logger,
	})

	if cfg.SeedDemoData {
		if _, err = directory.SeedDemoData(ctx); err != nil {
			return svc, fmt.Errorf("seed demo data: %w", err)
		}
	}

	auth, err := application.NewAPIKeyAuthenticator(cfg.Auth.APIKey, cfg.Auth.APIKeyHash, cfg.Auth.RequireAuth, logger)
	if err != nil {
		return svc, err
	}

	svc.handler = httptransport.NewRouter(httptransport.RouterConfig{
		TimeTracker:   httptransport.NewTimeTrackerHandler(swipes, ledger, svc.hub, logger),
		Employees:     httptransport.NewEmployeeHandler(directory, registry, access, logger),
		Supervisors:   httptransport.NewSupervisorHandler(directory, logger),
		WorkSchedules: httptransport.NewWorkScheduleHandler(directory, logger),
		Auth:          httptransport.RequireAPIKey(auth, logger),
		Middleware:    []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
	return svc, nil
}

func emailSender(cfg config.SMTPConfig, logger *slog.Logger) notification.Sender {
	smtpConfig := notification.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.User,
		Password: cfg.Password,
		From:     cfg.From,
	}
	if !smtpConfig.Configured() {
		return notification.NewLogSender(logger, "smtp not configured")
	}
	return notification.NewSMTPSender(smtpConfig)
}

func smsSender(cfg config.SMSConfig, logger *slog.Logger) notification.Sender {
	switch cfg.Provider {
	case config.SMSProviderSMSAPI:
		if strings.TrimSpace(cfg.Token) == "" {
			return notification.NewLogSender(logger, "smsapi token not configured")
		}
		return notification.NewSMSAPISender(notification.SMSAPIConfig{
			Token:    cfg.Token,
			From:     cfg.From,
			Endpoint: cfg.Endpoint,
		})
	case config.SMSProviderTwilio:
		return notification.NewLogSender(logger, "twilio delivery is not implemented")
	default:
		return notification.NewLogSender(logger, "sms provider is log")
	}
}
