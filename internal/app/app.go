package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Freeeeeet/booking_engine/internal/api"
	"github.com/Freeeeeet/booking_engine/internal/config"
	"github.com/Freeeeeet/booking_engine/internal/controller"
	"github.com/Freeeeeet/booking_engine/internal/controller/handlers"
	"github.com/Freeeeeet/booking_engine/internal/notify"
	"github.com/Freeeeeet/booking_engine/internal/realtime"
	"github.com/Freeeeeet/booking_engine/internal/repository"
	"github.com/Freeeeeet/booking_engine/internal/repository/memory"
	"github.com/Freeeeeet/booking_engine/internal/service"
	"github.com/go-telegram/bot"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

// userStore пользователи для уведомлений и привязки Telegram
type userStore interface {
	notify.UserLookup
	handlers.UserDirectory
}

type stores struct {
	users        userStore
	listings     service.ListingStore
	bookings     service.BookingStore
	availability service.AvailabilityStore
	reviews      service.ReviewStore
}

// App собранное приложение: хранилище, каналы уведомлений, сервисы, HTTP и фоновые задачи
type App struct {
	cfg    *config.Config
	logger *zap.Logger

	pool  *pgxpool.Pool
	redis *redis.Client
	amqp  *notify.AMQPPublisher
	tg    *bot.Bot

	events       *service.Dispatcher
	Bookings     *service.BookingService
	Availability *service.AvailabilityService
	Reviews      *service.ReviewService
	Reconciler   *service.Reconciler

	server    *echo.Echo
	scheduler *Scheduler
	bot       *controller.BotController
}

// New подключается к внешним зависимостям и собирает сервисы.
// Необязательные каналы (Telegram, RabbitMQ, Redis) при ошибке подключения
// отключаются с предупреждением.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	st, err := a.openStores(ctx)
	if err != nil {
		return nil, err
	}

	hub := realtime.NewHub(logger)
	a.events = service.NewDispatcher(a.notifier(st.users), hub, logger)

	loc := cfg.Location()
	a.Bookings = service.NewBookingService(st.bookings, st.listings, st.availability, a.events, loc, logger)
	a.Availability = service.NewAvailabilityService(st.listings, st.availability, loc, logger)
	a.Reviews = service.NewReviewService(st.bookings, st.reviews, a.events, logger)
	a.Reconciler = service.NewReconciler(st.bookings, a.events, logger)

	a.server = api.NewServer(api.NewHandler(a.Bookings, a.Availability, a.Reviews, hub, logger), cfg.JWTSecret)

	if a.tg != nil && cfg.TelegramPolling {
		tokens := func(raw string) (uuid.UUID, error) { return api.ParseToken(cfg.JWTSecret, raw) }
		a.bot = controller.NewBotController(a.tg, st.users, a.Bookings, tokens, logger)
	}

	var locker Locker
	if cfg.RedisAddr != "" {
		client, err := NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			logger.Warn("Redis unavailable, sweeps run without lease", zap.Error(err))
		} else {
			a.redis = client
			locker = NewRedisLease(client, logger)
		}
	}

	a.scheduler = NewScheduler(locker, logger,
		Task{
			Name:     "reconcile",
			Interval: cfg.ReconcileInterval,
			Run: func(ctx context.Context) error {
				_, err := a.Reconciler.Sweep(ctx)
				return err
			},
		},
		Task{
			Name:     "review-publish",
			Interval: cfg.ReviewSweepInterval,
			Run: func(ctx context.Context) error {
				_, err := a.Reviews.PublishExpired(ctx)
				return err
			},
		},
	)

	return a, nil
}

func (a *App) openStores(ctx context.Context) (*stores, error) {
	if a.cfg.Storage == config.StorageMemory {
		a.logger.Warn("Using in-memory storage, data is lost on restart")
		m := memory.New()
		return &stores{
			users:        m.Users(),
			listings:     m.Listings(),
			bookings:     m.Bookings(),
			availability: m.Availability(),
			reviews:      m.Reviews(),
		}, nil
	}

	poolCfg, err := pgxpool.ParseConfig(a.cfg.GetDBDSN())
	if err != nil {
		return nil, fmt.Errorf("parse db dsn: %w", err)
	}
	poolCfg.MaxConnLifetime = 5 * time.Minute
	poolCfg.MaxConnIdleTime = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	a.pool = pool

	return &stores{
		users:        repository.NewUserRepository(pool),
		listings:     repository.NewListingRepository(pool),
		bookings:     repository.NewBookingRepository(pool),
		availability: repository.NewAvailabilityRepository(pool),
		reviews:      repository.NewReviewRepository(pool),
	}, nil
}

func (a *App) notifier(users notify.UserLookup) service.Notifier {
	channels := []notify.Notifier{notify.NewLog(a.logger)}

	if a.cfg.TelegramToken != "" {
		b, err := bot.New(a.cfg.TelegramToken)
		if err != nil {
			a.logger.Warn("Telegram bot unavailable, notifications disabled", zap.Error(err))
		} else {
			a.tg = b
			channels = append(channels, notify.NewTelegram(b, users, a.logger))
		}
	}

	if a.cfg.AMQPURL != "" {
		pub, err := notify.NewAMQPPublisher(a.cfg.AMQPURL, a.cfg.AMQPExchange)
		if err != nil {
			a.logger.Warn("RabbitMQ unavailable, event publishing disabled", zap.Error(err))
		} else {
			a.amqp = pub
			channels = append(channels, pub)
		}
	}

	return notify.NewFanout(channels...)
}

// Migrate применяет миграции; для хранилища в памяти ничего не делает
func (a *App) Migrate(ctx context.Context) error {
	if a.pool == nil {
		return nil
	}
	mg, err := NewMigrator(a.pool, a.logger)
	if err != nil {
		return err
	}
	defer mg.Close()
	return mg.Up(ctx)
}

// Migrator мигратор поверх пула приложения
func (a *App) Migrator() (*Migrator, error) {
	if a.pool == nil {
		return nil, errors.New("migrations need STORAGE=postgres")
	}
	return NewMigrator(a.pool, a.logger)
}

// Run обслуживает HTTP и фоновые задачи до отмены ctx
func (a *App) Run(ctx context.Context) error {
	if a.cfg.MigrateOnStart {
		if err := a.Migrate(ctx); err != nil {
			return err
		}
	}

	a.scheduler.Start(ctx)
	defer a.scheduler.Stop()

	if a.bot != nil {
		if err := a.bot.RegisterHandlers(ctx); err != nil {
			a.logger.Warn("Failed to set bot commands", zap.Error(err))
		}
		botDone := make(chan struct{})
		go func() {
			defer close(botDone)
			a.bot.Start(ctx)
		}()
		defer func() { <-botDone }()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server listening", zap.String("addr", a.cfg.HTTPAddr))
		if err := a.server.Start(a.cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	a.logger.Info("HTTP server stopped")
	return nil
}

// SweepOnce один проход обеих фоновых задач (для cron и отладки)
func (a *App) SweepOnce(ctx context.Context) (service.SweepResult, int, error) {
	res, err := a.Reconciler.Sweep(ctx)
	if err != nil {
		return res, 0, err
	}
	published, err := a.Reviews.PublishExpired(ctx)
	if err != nil {
		return res, 0, err
	}
	return res, published, nil
}

// Close дожидается фоновых отправок и закрывает подключения
func (a *App) Close() {
	a.events.Wait()
	if a.amqp != nil {
		if err := a.amqp.Close(); err != nil {
			a.logger.Warn("Failed to close rabbitmq", zap.Error(err))
		}
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
