package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/devfolio/apiserver/config"
	"github.com/devfolio/apiserver/internal/auth"
	"github.com/devfolio/apiserver/internal/cache"
	"github.com/devfolio/apiserver/internal/db"
	"github.com/devfolio/apiserver/internal/handlers"
	"github.com/devfolio/apiserver/internal/mq"
	"github.com/devfolio/apiserver/internal/services"
	"github.com/devfolio/apiserver/internal/storage"
	"github.com/devfolio/apiserver/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"
)

// Server wraps the HTTP server and its external resources.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	cache      *cache.ProjectCache
	events     *mq.MQ
}

// New constructs a Server with all dependencies wired from config.
func New(ctx context.Context, cfg config.Config) (*Server, error) {
	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	issuer := auth.NewIssuer(jwtSecret, cfg.Auth.SessionTTL)

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	projectCache, err := newProjectCache(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	events, err := newEventQueue(ctx, cfg)
	if err != nil {
		_ = projectCache.Close()
		_ = dbConn.Close()
		return nil, err
	}

	imageStorage, err := newImageStorage(ctx, cfg)
	if err != nil {
		if events != nil {
			_ = events.Close()
		}
		_ = projectCache.Close()
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	projectRepo := store.NewProjectRepository(dbConn)

	userService := services.NewUserService(userRepo)

	var publisher services.EventPublisher
	if events != nil {
		publisher = events
	}
	projectService := services.NewProjectService(projectRepo, projectCache, publisher)

	authMiddleware := handlers.RequireAuth(issuer)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Requested-With"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/healthz", handlers.Healthz)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, userService, issuer, cfg.Auth.CookieSecure)
	})
	router.Route("/projects", func(r chi.Router) {
		handlers.ProjectRouter(r, projectService, imageStorage, authMiddleware)
	})

	port := cfg.ServerPort
	if port == 0 {
		port = 8080
	}

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		router:     router,
		db:         dbConn,
		cache:      projectCache,
		events:     events,
	}, nil
}

// Router exposes the chi router for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Start runs the HTTP server.
func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests and closes external resources.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.httpServer.Shutdown(ctx)
	if s.events != nil {
		_ = s.events.Close()
	}
	_ = s.cache.Close()
	if s.db != nil {
		_ = s.db.Close()
	}
	return err
}

// newProjectCache returns a nil cache when no redis address is configured;
// the service layer treats a nil cache as disabled.
func newProjectCache(ctx context.Context, cfg config.Config) (*cache.ProjectCache, error) {
	addr := strings.TrimSpace(cfg.Cache.RedisAddr)
	if addr == "" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return cache.NewProjectCache(client, cfg.Cache.TTL), nil
}

// newEventQueue returns nil when no broker backend is configured.
func newEventQueue(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.MQ.Backend)) {
	case "":
		return nil, nil
	case "rabbitmq":
		backend, err := mq.NewRabbitMQClient(cfg.MQ.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(backend), nil
	case "pubsub":
		backend, err := mq.NewPubSubClient(ctx, cfg.MQ.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(backend), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.MQ.Backend)
	}
}

// newImageStorage returns nil when no storage backend is configured, in
// which case the API accepts only pre-uploaded image URLs.
func newImageStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Backend)) {
	case "":
		return nil, nil
	case "minio":
		if strings.TrimSpace(cfg.Storage.Minio.Endpoint) == "" {
			return nil, nil
		}
		backend, err := storage.NewMinioClient(cfg.Storage.Minio)
		if err != nil {
			return nil, err
		}
		if err := backend.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return storage.NewStorage(backend), nil
	case "gcs":
		if strings.TrimSpace(cfg.Storage.GCS.Bucket) == "" {
			return nil, nil
		}
		backend, err := storage.NewGCSClient(ctx, cfg.Storage.GCS)
		if err != nil {
			return nil, err
		}
		if err := backend.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return storage.NewStorage(backend), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}
