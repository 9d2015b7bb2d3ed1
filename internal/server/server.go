package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pharmadir/apiserver/config"
	"github.com/pharmadir/apiserver/internal/db"
	"github.com/pharmadir/apiserver/internal/handlers"
	"github.com/pharmadir/apiserver/internal/mq"
	"github.com/pharmadir/apiserver/internal/services"
	"github.com/pharmadir/apiserver/internal/storage"
	"github.com/pharmadir/apiserver/internal/store"
	"go.uber.org/zap"
)

// Server wraps the HTTP server and its shared resources.
type Server struct {
	httpServer *http.Server
	router     *chi.Mux
	db         *sql.DB
	broker     *mq.MQ
}

// New constructs a Server: database pool, repositories, services, optional
// object storage and broker backends, and the routing table.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*Server, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	dbConn, err := db.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	objectStore, err := openStorage(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	broker, err := openBroker(ctx, cfg)
	if err != nil {
		_ = dbConn.Close()
		return nil, err
	}

	userRepo := store.NewUserRepository(dbConn)
	pharmacyRepo := store.NewPharmacyRepository(dbConn)
	favoriteRepo := store.NewFavoriteRepository(dbConn)

	userService := services.NewUserService(userRepo)
	pharmacyService := services.NewPharmacyService(pharmacyRepo, objectStore, broker, logger)
	favoriteService := services.NewFavoriteService(favoriteRepo)

	authHandler := handlers.NewAuthHandler(
		userService,
		cfg.JWTSecret,
		cfg.TokenTTL,
		cfg.Env == "production",
		logger,
	)
	pharmacyHandler := handlers.NewPharmacyHandler(pharmacyService, logger)
	favoriteHandler := handlers.NewFavoriteHandler(favoriteService, logger)
	pageHandler := handlers.NewPageHandler(cfg.StaticDir)

	router := chi.NewRouter()
	router.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		middleware.Logger,
		middleware.Timeout(60*time.Second),
	)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	router.Get("/healthz", handlers.Healthz)
	handlers.PageRouter(router, pageHandler)
	router.Route("/auth", func(r chi.Router) {
		handlers.AuthRouter(r, authHandler)
	})
	router.Post("/logout", authHandler.Logout)
	handlers.PharmacyRouter(router, pharmacyHandler, authHandler.RequireAuth)
	handlers.FavoriteRouter(router, favoriteHandler, authHandler.RequireAuth)

	port := cfg.ServerPort
	if port == 0 {
		port = 4000
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
		broker:     broker,
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

// Shutdown releases the server's resources.
func (s *Server) Shutdown() error {
	if s.broker != nil {
		_ = s.broker.Close()
	}
	if s.db != nil {
		_ = s.db.Close()
	}
	return s.httpServer.Close()
}

// openStorage builds the configured object-storage backend for pharmacy
// photos, or nil when none is configured.
func openStorage(ctx context.Context, cfg config.Config) (*storage.Storage, error) {
	var backend storage.ObjectStorage
	switch cfg.Storage.Backend {
	case "":
		return nil, nil
	case "minio":
		client, err := storage.NewMinioClient(cfg.Storage.Minio)
		if err != nil {
			return nil, err
		}
		backend = client
	case "gcs":
		client, err := storage.NewGCSClient(ctx, cfg.Storage.GCS)
		if err != nil {
			return nil, err
		}
		backend = client
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	store := storage.NewStorage(backend)
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// openBroker builds the configured message broker for directory events,
// or nil when none is configured.
func openBroker(ctx context.Context, cfg config.Config) (*mq.MQ, error) {
	switch cfg.Broker.Backend {
	case "":
		return nil, nil
	case "rabbitmq":
		client, err := mq.NewRabbitMQClient(cfg.Broker.RabbitMQ)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	case "pubsub":
		client, err := mq.NewPubSubClient(ctx, cfg.Broker.PubSub)
		if err != nil {
			return nil, err
		}
		return mq.New(client), nil
	default:
		return nil, fmt.Errorf("unknown broker backend %q", cfg.Broker.Backend)
	}
}
