package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/segyhp/credit-engine/internal/clock"
	"github.com/segyhp/credit-engine/internal/config"
	"github.com/segyhp/credit-engine/internal/domain"
	"github.com/segyhp/credit-engine/internal/handler"
	"github.com/segyhp/credit-engine/internal/repository"
	"github.com/segyhp/credit-engine/internal/service"
	"github.com/segyhp/credit-engine/pkg/logger"
	"github.com/segyhp/credit-engine/pkg/response"
)

func main() {
	// A missing .env is fine, the environment may already be populated
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	log.Info().Str("env", cfg.Server.Env).Msg("Starting credit scheduler...")

	db, err := initDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := repository.Migrate(context.Background(), db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}

	redisClient := initRedis(cfg)
	defer redisClient.Close()

	clk := clock.System{Location: cfg.GetLocation()}

	loanService := service.NewLoanService(
		repository.NewLoanRepository(db),
		repository.NewPaymentRepository(db),
		repository.NewRedisScheduleCache(redisClient, cfg.GetScheduleCacheTTL()),
		clk,
		log,
		cfg.GetFallbackInterestRate(),
	)
	statementService := service.NewStatementService(
		repository.NewStatementRepository(db),
		clk,
		log,
		service.AccountDefaults{
			StatementDay: cfg.Business.DefaultStatementDay,
			DueDay:       cfg.Business.DefaultDueDay,
		},
	)

	healthHandler := handler.NewHealthHandler(map[string]handler.Check{
		"database": db.PingContext,
		"redis": func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		},
	}, cfg.GetHealthTimeout(), clk)

	c := cron.New(
		cron.WithParser(config.CronParser()),
		cron.WithLocation(cfg.GetLocation()),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if err := setupCronJobs(c, cfg, statementService, loanService, healthHandler, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule jobs")
	}

	c.Start()
	log.Info().Str("spec", cfg.Scheduler.SweepSpec).Msg("Scheduler started successfully")

	server := &http.Server{
		Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:           setupRoutes(healthHandler, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("Health server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Health server failed to start")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down scheduler...")
	<-c.Stop().Done()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Health server forced to shutdown")
	}

	log.Info().Msg("Scheduler stopped")
}

type statementSweeper interface {
	Sweep(ctx context.Context) ([]*domain.CycleStatus, error)
}

type projectionWarmer interface {
	WarmProjections(ctx context.Context) (int, error)
}

type sweepRecorder interface {
	RecordSweep(at time.Time, err error)
}

func setupCronJobs(
	c *cron.Cron,
	cfg *config.Config,
	statements statementSweeper,
	loans projectionWarmer,
	health sweepRecorder,
	log zerolog.Logger,
) error {
	_, err := c.AddFunc(cfg.Scheduler.SweepSpec, func() {
		runSweep(context.Background(), statements, loans, health, log)
	})
	return err
}

// runSweep logs the cycle status of every account, then refreshes cached
// loan projections.
func runSweep(ctx context.Context, statements statementSweeper, loans projectionWarmer, health sweepRecorder, log zerolog.Logger) {
	started := time.Now()
	log.Info().Msg("Running statement sweep...")

	statuses, err := statements.Sweep(ctx)
	health.RecordSweep(started, err)
	if err != nil {
		log.Error().Err(err).Msg("Statement sweep failed")
	}

	// Projections do not depend on the sweep outcome
	warmed, err := loans.WarmProjections(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Schedule cache warm-up failed")
	}

	overdue := 0
	for _, s := range statuses {
		if s.Overdue {
			overdue++
		}
	}

	log.Info().
		Int("accounts", len(statuses)).
		Int("overdue", overdue).
		Int("loans_projected", warmed).
		Dur("duration", time.Since(started)).
		Msg("Statement sweep finished")
}

func initDB(cfg *config.Config) (*sqlx.DB, error) {
	db, err := sqlx.Connect(cfg.Database.Driver, cfg.Database.URL)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.GetConnMaxLifetime())

	return db, nil
}

func initRedis(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

func setupRoutes(healthHandler *handler.HealthHandler, log zerolog.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(response.LoggingMiddleware(log))

	// Health check
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")
	router.HandleFunc("/health/ready", healthHandler.Ready).Methods("GET")

	return router
}
