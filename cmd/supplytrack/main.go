package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-chi/cors"
	goredislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"supplytrack/internal/api"
	"supplytrack/internal/config"
	"supplytrack/internal/cooking"
	"supplytrack/internal/database"
	"supplytrack/internal/feed"
	"supplytrack/internal/locking"
	"supplytrack/internal/logging"
	"supplytrack/internal/monitoring"
	"supplytrack/internal/ops"
	"supplytrack/internal/qrcode"
	"supplytrack/internal/transit"
)

var (
	port        = flag.Int("port", 0, "API server port (overrides config)")
	metricsPort = flag.Int("metrics-port", 0, "Metrics server port (overrides config)")
	configFile  = flag.String("config", "configs/config.yaml", "Path to configuration file")
	migrateOnly = flag.Bool("migrate-only", false, "Apply database migrations and exit")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *metricsPort != 0 {
		cfg.Metrics.Port = *metricsPort
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	os.Exit(finish(logger, run(cfg, logger)))
}

// finish logs the reason run stopped, flushes buffered entries and returns
// the process exit code.
func finish(logger *zap.Logger, err error) int {
	code := 0
	if err != nil {
		logger.Error("supplytrack stopped", zap.Error(err))
		code = 1
	}
	_ = logger.Sync()
	return code
}

func run(cfg *config.Config, logger *zap.Logger) error {
	db, err := database.Open(cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if *migrateOnly {
		logger.Info("migrations applied")
		return nil
	}

	store := database.NewStore(db)
	if cfg.Database.Seed {
		if err := database.Seed(store); err != nil {
			return fmt.Errorf("failed to seed database: %w", err)
		}
	}

	locker, closeLocker, err := newLocker(cfg, logger)
	if err != nil {
		return err
	}
	defer closeLocker()

	metrics := monitoring.NewMetricsCollector()
	monitor := monitoring.NewMonitor()
	hub := feed.NewHub(logger.Named("feed"), nil)
	defer hub.Close()

	cook := cooking.NewService(store, locker, cfg.Cooking, logger.Named("cooking"),
		cooking.WithMetrics(metrics),
		cooking.WithMonitor(monitor),
		cooking.WithPublisher(hub),
	)
	signer := qrcode.NewSigner(cfg.QR.SigningKey, cfg.QR.TTL, cfg.QR.BaseURL)
	transits := transit.NewService(store, locker, signer, cfg.Cooking.MaxAttempts, logger.Named("transit"),
		transit.WithMetrics(metrics),
		transit.WithMonitor(monitor),
		transit.WithPublisher(hub),
	)

	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.New(api.Deps{
		Store:    store,
		Cooking:  cook,
		Transits: transits,
		Hub:      hub,
		Metrics:  metrics,
		Monitor:  monitor,
		Logger:   logger.Named("api"),
	}).Router

	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", logging.RequestIDHeader},
		ExposedHeaders:   []string{logging.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      corsHandler(router),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port),
			Handler: ops.NewRouter(metrics.Registry(), cfg.Metrics.Path, store, logger.Named("ops")),
		}
		go func() {
			logger.Info("starting metrics server", zap.String("addr", metricsServer.Addr))
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", zap.Error(err))
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting API server", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutting down servers", zap.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("API server error: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("API server shutdown error", zap.Error(err))
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("metrics server shutdown error", zap.Error(err))
		}
	}
	return nil
}

// newLocker returns a Redis-backed locker when redis.addr is configured and
// an in-process one otherwise.
func newLocker(cfg *config.Config, logger *zap.Logger) (locking.Locker, func(), error) {
	if cfg.Redis.Addr == "" {
		logger.Info("using in-process stock locks")
		return locking.NewLocalLocker(), func() {}, nil
	}

	client := goredislib.NewClient(&goredislib.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
	}

	opts := locking.DefaultRedisOptions()
	opts.Expiry = cfg.Cooking.LockTTL
	logger.Info("using redis stock locks", zap.String("addr", cfg.Redis.Addr))
	return locking.NewRedisLocker(client, opts, logger.Named("lock")), func() { client.Close() }, nil
}
