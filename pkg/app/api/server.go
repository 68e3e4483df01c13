// Package api implements app.Runner for the API server process.
package api

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	apphttp "github.com/noFAYZ/mappr-backend-new-sub000/pkg/app/http"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/auth"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/config"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/pgutil"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/progress"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/queue"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/redisutil"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/syncer"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/syncer/service"
	"github.com/noFAYZ/mappr-backend-new-sub000/pkg/walletdb"
)

const defaultRequestTimeout = 60 * time.Second

// Server holds cfg to init the api server.
type Server struct {
	cfg *config.APIServerConfig
}

// NewServer initializes new api server.
func NewServer(cfg *config.APIServerConfig) *Server {
	return &Server{cfg: cfg}
}

func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("api server config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting wallet API server",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	dbBun, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() { _ = dbBun.Close() }()
	logger.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database),
	)
	store := walletdb.NewStore(dbBun)

	redisClient, err := redisutil.NewClient(ctx, cfg.Redis, logger)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer func() { _ = redisClient.Close() }()

	conn, err := queue.Connect(cfg.Queue, logger)
	if err != nil {
		return fmt.Errorf("connect queue: %w", err)
	}
	defer func() { _ = conn.Close() }()

	publisher, err := queue.NewPublisher(conn, logger)
	if err != nil {
		return fmt.Errorf("open publish channel: %w", err)
	}
	defer func() { _ = publisher.Close() }()

	svc := service.NewService(
		store,
		publisher,
		syncer.NewRedisMirror(redisClient, 0, logger),
		redisPinger{client: redisClient},
		conn,
		progress.NewRedisPublisher(redisClient, logger),
		cfg.Queue,
		logger,
	)

	router := s.newRouter(service.NewLog(svc, logger), auth.NewVerifier(cfg.Auth), logger)

	return apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)
}

func (s *Server) newRouter(svc service.Service, verifier *auth.Verifier, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultRequestTimeout))

	service.RegisterRoutes(r, svc, verifier, logger)

	r.Handle("/metrics", promhttp.Handler())

	return r
}

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
