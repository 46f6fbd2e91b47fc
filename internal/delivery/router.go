package delivery

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"storefront/internal/domain"
	"storefront/internal/middleware"
)

type RouterConfig struct {
	Version        string
	AllowedOrigins []string
	RequestTimeout time.Duration
}

type UseCases struct {
	Products domain.ProductUseCase
	Users    domain.UserUseCase
	Orders   domain.OrderUseCase
	Seed     domain.SeedUseCase
}

// NewRouter mounts every storefront route under /api.
func NewRouter(cfg RouterConfig, uc UseCases, logger *logrus.Logger) *gin.Engine {
	router := gin.New()
	router.RedirectTrailingSlash = false
	router.Use(
		gin.Recovery(),
		middleware.RequestID(),
		middleware.RequestLogger(logger),
		cors.New(corsConfig(cfg.AllowedOrigins)),
		middleware.Timeout(cfg.RequestTimeout),
	)

	api := router.Group("/api")
	NewHealthHandler(cfg.Version).RegisterRoutes(api)
	NewInitHandler(uc.Seed, logger).RegisterRoutes(api)
	NewProductHandler(uc.Products, logger).RegisterRoutes(api)
	NewUserHandler(uc.Users, logger).RegisterRoutes(api)
	NewOrderHandler(uc.Orders, logger).RegisterRoutes(api)

	router.NoRoute(func(c *gin.Context) {
		ErrorResponse(c, http.StatusNotFound, "Route not found")
	})
	return router
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowMethods = []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions}
	cfg.AllowHeaders = append(cfg.AllowHeaders, IdempotencyKeyHeader, middleware.RequestIDHeader)
	cfg.ExposeHeaders = []string{middleware.RequestIDHeader}
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cfg
}
