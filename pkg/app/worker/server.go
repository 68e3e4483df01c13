// Package worker implements app.Runner for the sync worker process.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/httpserver"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/assetcache"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/config"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/pgutil"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/progress"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/provider/zapper"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/provider/zerion"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/queue"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/readcache"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/reconcile"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/redisutil"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/syncer"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/walletdb"
)

const (
	defaultGracefulShutdownTimeout = 30 * time.Second
	defaultHTTPReadTimeout         = 15 * time.Second
	defaultHTTPWriteTimeout        = 15 * time.Second
	defaultHTTPIdleTimeout         = 60 * time.Second
)

// Server holds configuration for the sync worker process.
type Server struct {
	cfg *config.WorkerConfig
}

// NewServer initializes a new sync worker Server.
func NewServer(cfg *config.WorkerConfig) *Server {
	return &Server{cfg: cfg}
}

// Run starts the queue consumers, the maintenance sweeper and the
// monitoring HTTP server. It blocks until an OS shutdown signal arrives,
// a consumer dies, or the monitoring server fails.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("nil config")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting wallet sync worker")

	dbBun, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() { _ = dbBun.Close() }()
	logger.Info("Database connection established")

	store := walletdb.NewStore(dbBun)

	redisClient, err := redisutil.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() { _ = redisClient.Close() }()

	assets := assetcache.New(store, cfg.AssetCache, logger)
	if warmed, err := assets.WarmFromStore(ctx); err != nil {
		logger.Warn("Asset cache warmup failed", zap.Error(err))
	} else {
		logger.Info("Asset cache warmed", zap.Int("assets", warmed))
	}

	zerionClient := zerion.New(cfg.Providers.Zerion, logger)
	zapperClient := zapper.New(cfg.Providers.Zapper, logger)

	orch := syncer.New(
		store,
		reconcile.New(store, assets, cfg.Sync, logger),
		zerionClient,
		zapperClient,
		progress.NewRedisPublisher(redisClient, logger),
		readcache.NewInvalidator(redisClient, logger),
		syncer.NewRedisMirror(redisClient, cfg.Sync.JobStatusTTL, logger),
		cfg.Sync,
		logger,
	)

	sweeper := syncer.NewSweeper(orch, logger)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("start sweeper: %w", err)
	}
	defer sweeper.Stop()

	// Publish a first self-report so API health reads see this worker
	// before the heartbeat schedule fires.
	orch.Heartbeat(ctx)

	conn, err := queue.Connect(cfg.Queue, logger)
	if err != nil {
		return fmt.Errorf("connect queue: %w", err)
	}
	defer func() { _ = conn.Close() }()

	syncConsumer, err := queue.NewConsumer(conn, queue.ConsumerConfig{
		Queue:         cfg.Queue.SyncQueue,
		Concurrency:   cfg.Queue.SyncConcurrency,
		RatePerSecond: cfg.Queue.SyncRatePerSecond,
	}, orch.SyncHandlers(), logger)
	if err != nil {
		return fmt.Errorf("open sync consumer: %w", err)
	}
	defer func() { _ = syncConsumer.Close() }()

	analyticsConsumer, err := queue.NewConsumer(conn, queue.ConsumerConfig{
		Queue:       cfg.Queue.AnalyticsQueue,
		Concurrency: cfg.Queue.AnalyticsConcurrency,
	}, orch.AnalyticsHandlers(), logger)
	if err != nil {
		return fmt.Errorf("open analytics consumer: %w", err)
	}
	defer func() { _ = analyticsConsumer.Close() }()

	var wg sync.WaitGroup
	runConsumer := func(name string, c *queue.Consumer) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := c.Start(ctx); err != nil {
				logger.Error("Queue consumer stopped",
					zap.String("queue", name),
					zap.Error(err))
				// Bring the process down; the supervisor restarts it
				// with a fresh connection.
				stop()
			}
		}()
	}
	runConsumer(cfg.Queue.SyncQueue, syncConsumer)
	runConsumer(cfg.Queue.AnalyticsQueue, analyticsConsumer)

	var runErr error
	if cfg.Monitoring.Enabled {
		srv := &http.Server{
			Addr:         fmt.Sprintf(":%d", cfg.Monitoring.MetricsPort),
			Handler:      s.newRouter(orch, logger),
			ReadTimeout:  defaultHTTPReadTimeout,
			WriteTimeout: defaultHTTPWriteTimeout,
			IdleTimeout:  defaultHTTPIdleTimeout,
		}
		runErr = httpserver.ServeAndWait(ctx, logger, srv, defaultGracefulShutdownTimeout)
	} else {
		<-ctx.Done()
	}

	logger.Info("Shutting down sync worker")
	wg.Wait()
	return runErr
}

func (s *Server) newRouter(orch *syncer.Orchestrator, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		st := orch.Status(req.Context())
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(st); err != nil {
			logger.Warn("Failed to write worker status", zap.Error(err))
		}
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}
