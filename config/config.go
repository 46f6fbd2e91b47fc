package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	StorageDriver  string        `envconfig:"STORAGE_DRIVER"  default:"postgres"`
	DatabaseURL    string        `envconfig:"DATABASE_URL"`
	HTTPPort       string        `envconfig:"HTTP_PORT"       default:":3001"`
	GrpcPort       string        `envconfig:"GRPC_PORT"       default:":50051"`
	LogLevel       string        `envconfig:"LOG_LEVEL"       default:"info"`
	LogFormat      string        `envconfig:"LOG_FORMAT"      default:"json"`
	RedisAddr      string        `envconfig:"REDIS_ADDR"`
	IdempotencyTTL time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	CORSOrigins    []string      `envconfig:"CORS_ORIGINS"    default:"*"`
	APIVersion     string        `envconfig:"API_VERSION"     default:"v1"`
}

// ClientConfig configures cmd/shopcli.
type ClientConfig struct {
	APIURL   string        `envconfig:"STOREFRONT_API_URL"   default:"http://localhost:3001/api"`
	CartFile string        `envconfig:"STOREFRONT_CART_FILE" default:".storefront-cart.json"`
	Timeout  time.Duration `envconfig:"STOREFRONT_TIMEOUT"   default:"10s"`
}

func loadDotEnv(logger *logrus.Logger) {
	err := godotenv.Load()
	if err != nil && !os.IsNotExist(err) {
		logger.Warnf("Error loading .env file (but continuing): %v", err)
	} else if err == nil {
		logger.Info("Loaded configuration from .env file")
	}
}

// Load reads the server configuration from the environment and an optional .env file.
func Load(logger *logrus.Logger) (*Config, error) {
	loadDotEnv(logger)

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process configuration from environment variables: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger.Infof("Configuration loaded: Storage=%s, HTTP Port=%s, GRPC Port=%s, LogLevel=%s",
		cfg.StorageDriver, cfg.HTTPPort, cfg.GrpcPort, cfg.LogLevel)
	if cfg.RedisAddr != "" {
		logger.Infof("Configuration loaded: Redis idempotency at %s", cfg.RedisAddr)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	c.StorageDriver = strings.ToLower(strings.TrimSpace(c.StorageDriver))
	switch c.StorageDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("configuration error: DATABASE_URL is required for the %s driver", DriverPostgres)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("configuration error: unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.IdempotencyTTL <= 0 {
		return fmt.Errorf("configuration error: IDEMPOTENCY_TTL must be positive")
	}
	return nil
}

func LoadClient(logger *logrus.Logger) (*ClientConfig, error) {
	loadDotEnv(logger)

	var cfg ClientConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process client configuration: %w", err)
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &cfg, nil
}

// NewLogger builds the process logger. format is "json" or "text".
func NewLogger(level, format string) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if strings.EqualFold(format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logger.Warnf("Invalid log level '%s', using default 'info'. Error: %v", level, err)
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)
	return logger
}
