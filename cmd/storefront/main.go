package main

import (
	"context"
	"database/sql"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"storefront/config"
	"storefront/internal/delivery"
	"storefront/internal/domain"
	"storefront/internal/idempotency"
	"storefront/internal/repository"
	"storefront/internal/repository/memory"
	"storefront/internal/seed"
	"storefront/internal/usecase"
	"storefront/pkg/db"
)

type repositories struct {
	products domain.ProductRepository
	users    domain.UserRepository
	orders   domain.OrderRepository
}

func main() {
	bootLogger := config.NewLogger("info", os.Getenv("LOG_FORMAT"))
	cfg, err := config.Load(bootLogger)
	if err != nil {
		bootLogger.Fatalf("Failed to load configuration: %v", err)
	}
	logger := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Infof("Starting Storefront API %s...", cfg.APIVersion)

	ctx := context.Background()

	repos, database := openStorage(ctx, cfg, logger)
	if database != nil {
		defer func() {
			if err := database.Close(); err != nil {
				logger.Errorf("Error closing database connection: %v", err)
			} else {
				logger.Info("Database connection closed.")
			}
		}()
	}

	idem, redisClient := openIdempotency(ctx, cfg, logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	catalog, err := seed.Load()
	if err != nil {
		logger.Fatalf("Failed to load seed catalog: %v", err)
	}

	useCases := delivery.UseCases{
		Products: usecase.NewProductUseCase(repos.products, logger),
		Users:    usecase.NewUserUseCase(repos.users, logger),
		Orders:   usecase.NewOrderUseCase(repos.orders, repos.products, repos.users, idem, logger),
		Seed:     usecase.NewSeedUseCase(catalog, repos.products, repos.users, repos.orders, logger),
	}
	logger.Info("Use cases initialized.")

	router := delivery.NewRouter(delivery.RouterConfig{
		Version:        cfg.APIVersion,
		AllowedOrigins: cfg.CORSOrigins,
		RequestTimeout: cfg.RequestTimeout,
	}, useCases, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Infof("HTTP server listening on %s", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to serve HTTP: %v", err)
		}
	}()

	lis, err := net.Listen("tcp", cfg.GrpcPort)
	if err != nil {
		logger.Fatalf("Failed to listen on port %s: %v", cfg.GrpcPort, err)
	}
	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	reflection.Register(grpcServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	logger.Infof("gRPC health server listening on %s", cfg.GrpcPort)

	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			logger.Fatalf("Failed to serve gRPC: %v", err)
		}
		logger.Info("gRPC server stopped serving.")
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Warn("Shutdown signal received...")

	healthServer.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("HTTP server forced to shut down: %v", err)
	}
	grpcServer.GracefulStop()
	logger.Info("Storefront API shut down gracefully.")
}

func openStorage(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (repositories, *sql.DB) {
	if cfg.StorageDriver == config.DriverMemory {
		logger.Warn("Using in-memory storage; data is lost on restart.")
		store := memory.NewStore(logger)
		return repositories{products: store, users: store, orders: store}, nil
	}

	logger.Info("Connecting to database...")
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := db.Migrate(ctx, database); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	logger.Info("Database connection established and schema applied.")

	return repositories{
		products: repository.NewPostgresProductRepository(database, logger),
		users:    repository.NewPostgresUserRepository(database, logger),
		orders:   repository.NewPostgresOrderRepository(database, logger),
	}, database
}

func openIdempotency(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (domain.IdempotencyStore, *redis.Client) {
	if cfg.RedisAddr == "" {
		logger.Info("REDIS_ADDR not set; idempotency keys are kept in memory.")
		return idempotency.NewMemoryStore(cfg.IdempotencyTTL), nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Fatalf("Failed to reach Redis at %s: %v", cfg.RedisAddr, err)
	}
	logger.Infof("Redis idempotency store connected at %s", cfg.RedisAddr)
	return idempotency.NewRedisStore(client, cfg.IdempotencyTTL), client
}
