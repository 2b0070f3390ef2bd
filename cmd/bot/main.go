package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"

	"github.com/Proton-105/storefront-bot/internal/admin"
	"github.com/Proton-105/storefront-bot/internal/bot"
	"github.com/Proton-105/storefront-bot/internal/broadcast"
	"github.com/Proton-105/storefront-bot/internal/captcha"
	"github.com/Proton-105/storefront-bot/internal/database"
	apperrors "github.com/Proton-105/storefront-bot/internal/errors"
	"github.com/Proton-105/storefront-bot/internal/flow"
	"github.com/Proton-105/storefront-bot/internal/health"
	"github.com/Proton-105/storefront-bot/internal/i18n"
	"github.com/Proton-105/storefront-bot/internal/idempotency"
	"github.com/Proton-105/storefront-bot/internal/jobs"
	jobhandlers "github.com/Proton-105/storefront-bot/internal/jobs/handlers"
	"github.com/Proton-105/storefront-bot/internal/lifecycle"
	"github.com/Proton-105/storefront-bot/internal/middleware"
	"github.com/Proton-105/storefront-bot/internal/moderation"
	"github.com/Proton-105/storefront-bot/internal/notify"
	"github.com/Proton-105/storefront-bot/internal/ratelimit"
	"github.com/Proton-105/storefront-bot/internal/repository"
	"github.com/Proton-105/storefront-bot/internal/state"
	"github.com/Proton-105/storefront-bot/internal/transport/telegram"
	"github.com/Proton-105/storefront-bot/internal/user"
	"github.com/Proton-105/storefront-bot/internal/usercache"
	"github.com/Proton-105/storefront-bot/pkg/config"
	"github.com/Proton-105/storefront-bot/pkg/graceful"
	"github.com/Proton-105/storefront-bot/pkg/logger"
	"github.com/Proton-105/storefront-bot/pkg/metrics"
	"github.com/Proton-105/storefront-bot/pkg/redis"
)

const (
	sessionSweepInterval = time.Minute
	limiterSweepInterval = 5 * time.Minute
	limiterMaxAge        = 10 * time.Minute
	sentryFlushTimeout   = 2 * time.Second
)

func main() {
	cfg, v, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	log := logger.New(*cfg)
	slog.SetDefault(log)

	if err := run(cfg, v, log); err != nil {
		log.Error("storefront bot stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, v *viper.Viper, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loc := cfg.App.Location()
	log.Info("starting storefront bot",
		slog.String("env", cfg.AppEnv),
		slog.String("db_driver", cfg.Database.Driver),
		slog.String("session_backend", cfg.Session.Backend),
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.String("timezone", loc.String()),
	)

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{Dsn: cfg.Sentry.DSN, Environment: cfg.Sentry.Environment}); err != nil {
			log.Error("sentry init failed", slog.Any("error", err))
		} else {
			defer sentry.Flush(sentryFlushTimeout)
		}
	}

	var db *sqlx.DB
	err := apperrors.WithRetry(ctx, func() error {
		var openErr error
		db, openErr = database.Open(ctx, cfg.Database, log)
		return openErr
	})
	if err != nil {
		return err
	}

	if err := database.NewMigrator(db, cfg.Database.Driver, log).Up(); err != nil {
		_ = db.Close()
		return err
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		err := apperrors.WithRetry(ctx, func() error {
			var connErr error
			rdb, connErr = redis.New(ctx, cfg.Redis)
			return connErr
		})
		if err != nil {
			_ = db.Close()
			return err
		}
	}

	checker := health.NewChecker(0, log)
	probes := lifecycle.NewProbes(checker, log)
	shutdown := lifecycle.NewShutdown(probes, log)

	checker.AddCheck("database", health.NewDBChecker(db))
	shutdown.Register("database", lifecycle.PhaseStorage, func(context.Context) error { return db.Close() })
	if rdb != nil {
		checker.AddCheck("redis", health.NewRedisChecker(rdb))
		shutdown.Register("redis", lifecycle.PhaseStorage, func(context.Context) error { return rdb.Close() })
	}

	// Sessions and locks.
	var (
		storage state.Storage
		locker  state.Locker
	)
	if cfg.Session.Backend == "redis" && rdb != nil {
		storage = state.NewRedisStorage(rdb, cfg.Session.TTL, log)
		locker = state.NewRedisLocker(rdb, cfg.Session.LockTTL, cfg.Session.LockWait, log)
	} else {
		mem, err := state.NewMemoryStorage(cfg.Session.Capacity, cfg.Session.TTL)
		if err != nil {
			return err
		}
		shutdown.Register("session-cache", lifecycle.PhaseStorage, func(context.Context) error {
			mem.Close()
			return nil
		})
		storage = mem
		locker = state.NewLocalLocker(cfg.Session.LockWait)
	}
	machine := state.NewStateMachine(storage, locker, log)

	texts, err := i18n.Load(cfg.I18n.DefaultLang)
	if err != nil {
		return err
	}
	adminTr := texts.Default()

	// Telegram.
	tb, err := bot.NewTelebot(cfg.Bot)
	if err != nil {
		return err
	}
	breaker := apperrors.NewCircuitBreaker(telegram.BreakerSettings())
	tgTransport := telegram.New(tb, breaker, log)
	checker.AddCheck("telegram", health.NewTelegramChecker(tb, breaker))

	// Domain services.
	admins := notify.NewAdminSet(cfg.Admin.IDs)
	config.WatchAdmins(v, log, admins.Replace)

	settingsRepo := repository.NewSettingsRepository(db, log)
	router := notify.NewRouter(admins, settingsRepo, tgTransport, log)

	var cache *usercache.Cache
	if rdb != nil {
		cache = usercache.NewCache(rdb, 0)
	}
	users := user.NewService(repository.NewUserRepository(db, log), cache, loc, log)
	queue := moderation.NewQueue(repository.NewPaymentRepository(db, log), router, adminTr, loc, log)

	dispatcher := broadcast.NewDispatcher(tgTransport, broadcast.Config{
		RatePerSecond: cfg.Broadcast.RatePerSecond,
		Burst:         cfg.Broadcast.Burst,
		ProgressEvery: cfg.Broadcast.ProgressEvery,
	}, log)

	engine := flow.NewEngine(flow.Deps{
		Machine: machine,
		Captcha: captcha.NewGenerator(captcha.Config{
			Length: cfg.Captcha.Length,
			Width:  cfg.Captcha.Width,
			Height: cfg.Captcha.Height,
		}, log),
		Users:     users,
		Payments:  queue,
		Notifier:  router,
		Transport: tgTransport,
		Texts:     texts,
	}, log)

	panel := admin.NewPanel(admin.Deps{
		Machine:     machine,
		Admins:      admins,
		Users:       users,
		Queue:       queue,
		Settings:    settingsRepo,
		Broadcaster: dispatcher,
		Transport:   tgTransport,
		Translator:  adminTr,
		Location:    loc,
	}, log)
	engine.SetAdmin(panel)

	// Update de-duplication.
	var idemStore idempotency.Store
	if rdb != nil {
		idemStore = idempotency.NewRedisStore(rdb, log)
	} else {
		memStore, err := idempotency.NewMemoryStore(0)
		if err != nil {
			return err
		}
		shutdown.Register("idempotency-cache", lifecycle.PhaseStorage, func(context.Context) error {
			memStore.Close()
			return nil
		})
		idemStore = memStore
	}
	guard := idempotency.NewGuard(idemStore, idempotency.DefaultTTL, log)

	// Rate limiting.
	var rateLimit *middleware.RateLimitMiddleware
	if cfg.RateLimit.Enabled {
		rules, err := ratelimit.NewRules(cfg.RateLimit)
		if err != nil {
			return err
		}

		memLimiter := ratelimit.NewMemoryLimiter()
		var limiter ratelimit.Limiter = memLimiter
		if rdb != nil {
			limiter = ratelimit.NewAdaptiveLimiter(ratelimit.NewRedisLimiter(rdb, log), memLimiter, log)
		}
		go ratelimit.NewCleaner(memLimiter, limiterSweepInterval, limiterMaxAge, log).Run(ctx)

		rateLimit = middleware.NewRateLimitMiddleware(limiter, rules, machine, texts, log)
	}

	app := bot.New(tb, bot.Deps{
		Flow:       engine,
		Panel:      panel,
		Texts:      texts,
		ErrHandler: apperrors.NewHandler(log, cfg.Sentry.Enabled),
		Guard:      guard,
		RateLimit:  rateLimit,
	}, log)
	shutdown.Register("telegram", lifecycle.PhaseIngress, func(context.Context) error {
		app.Stop()
		return nil
	})

	go state.NewCleaner(storage, log, cfg.Session.IdleTimeout, sessionSweepInterval).Run(ctx)
	go metrics.NewStateCollector(machine).Run(ctx)

	if cfg.Jobs.Enabled {
		if rdb == nil {
			log.Warn("jobs require redis, pending digest disabled")
		} else if err := startJobs(ctx, cfg, queue, router, adminTr, shutdown, log); err != nil {
			return err
		}
	}

	// HTTP: metrics and probes.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", probes.LivenessHandler())
	mux.Handle("/readyz", probes.ReadinessHandler())

	server := graceful.NewServer(log, graceful.Addr(cfg.Server.Port),
		logger.Middleware(middleware.New(log)(mux)), cfg.Server.ShutdownTimeout)

	httpErr := make(chan error, 1)
	go func() { httpErr <- server.ListenAndServe(ctx) }()

	go app.Start()
	log.Info("storefront bot started", slog.Int("admins", admins.Len()))

	select {
	case <-ctx.Done():
	case err := <-httpErr:
		if err != nil {
			log.Error("http server failed", slog.Any("error", err))
		}
		stop()
	}

	log.Info("storefront bot shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	return shutdown.Execute(shutdownCtx)
}

func startJobs(
	ctx context.Context,
	cfg *config.Config,
	queue *moderation.Queue,
	router *notify.Router,
	tr i18n.Translator,
	shutdown *lifecycle.Shutdown,
	log *slog.Logger,
) error {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	worker := jobs.NewWorker(redisOpt, cfg.Jobs.Concurrency, log)
	worker.RegisterHandler(jobs.TaskTypePendingDigest, jobhandlers.NewPendingDigestHandler(queue, router, tr, log))

	scheduler := jobs.NewScheduler(redisOpt, jobs.ScheduleConfig{
		DigestCron:  cfg.Jobs.DigestCron,
		DigestLimit: cfg.Jobs.DigestLimit,
		Location:    cfg.App.Location(),
	}, log)
	if err := scheduler.RegisterTasks(); err != nil {
		return err
	}

	manager := jobs.NewManager(redisOpt, log)
	if err := manager.EnqueueDigest(ctx, cfg.Jobs.DigestLimit); err != nil {
		log.Warn("failed to enqueue startup digest", slog.Any("error", err))
	}

	if err := worker.Start(); err != nil {
		_ = manager.Close()
		return err
	}
	if err := scheduler.Start(); err != nil {
		worker.Shutdown()
		_ = manager.Close()
		return err
	}

	shutdown.Register("jobs", lifecycle.PhaseWorkers, func(context.Context) error {
		scheduler.Shutdown()
		worker.Shutdown()
		return manager.Close()
	})

	return nil
}
