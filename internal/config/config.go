// Package config loads the service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/emrgen/docgen/internal/access"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

var ErrMissingTokenSecret = errors.New("DOCUMENT_TOKEN_SECRET is required in production")

type Config struct {
	Env       string `env:"ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	// TokenSecret signs document download tokens.
	TokenSecret string `env:"DOCUMENT_TOKEN_SECRET"`

	Server    Server    `envPrefix:"SERVER_"`
	DB        DB        `envPrefix:"DB_"`
	Storage   Storage   `envPrefix:"STORAGE_"`
	Redis     Redis     `envPrefix:"REDIS_"`
	Kafka     Kafka     `envPrefix:"KAFKA_"`
	Preview   Preview   `envPrefix:"PREVIEW_"`
	Templates Templates `envPrefix:"TEMPLATE_"`
	Render    Render    `envPrefix:"RENDER_"`
	Lifecycle Lifecycle `envPrefix:"LIFECYCLE_"`
}

type Server struct {
	HTTPPort string `env:"HTTP_PORT" envDefault:"4001"`
	GRPCPort string `env:"GRPC_PORT" envDefault:"4000"`
	// AllowedOrigins feeds the CORS handler.
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
}

type DB struct {
	// Driver is postgres or sqlite.
	Driver string `env:"DRIVER" envDefault:"sqlite"`
	DSN    string `env:"DSN" envDefault:"file:docgen.db?_busy_timeout=5000"`
}

type Storage struct {
	// Kind is memory, fs or s3.
	Kind     string        `env:"KIND" envDefault:"fs"`
	Root     string        `env:"ROOT" envDefault:"./data/documents"`
	MinSize  int           `env:"MIN_SIZE" envDefault:"64"`
	Attempts uint64        `env:"ATTEMPTS" envDefault:"3"`
	Delay    time.Duration `env:"DELAY" envDefault:"500ms"`
	S3       S3            `envPrefix:"S3_"`
}

type S3 struct {
	Endpoint  string `env:"ENDPOINT"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET" envDefault:"documents"`
	PathStyle bool   `env:"PATH_STYLE"`
}

type Redis struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB"`
}

type Kafka struct {
	Brokers  []string `env:"BROKERS" envSeparator:","`
	Topic    string   `env:"TOPIC" envDefault:"document.generated"`
	ClientID string   `env:"CLIENT_ID" envDefault:"docgen"`
}

type Preview struct {
	TTL      time.Duration `env:"TTL" envDefault:"1h"`
	MaxBytes int64         `env:"MAX_BYTES" envDefault:"67108864"`
	// Mirror is none, blob or redis.
	Mirror string `env:"MIRROR" envDefault:"none"`
	// Codec compresses mirrored previews: none, gzip, lz4 or brotli.
	Codec string `env:"CODEC" envDefault:"gzip"`
}

type Templates struct {
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"1h"`
}

type Render struct {
	FontDir      string        `env:"FONT_DIR"`
	UTF8Font     string        `env:"UTF8_FONT"`
	AssetDir     string        `env:"ASSET_DIR"`
	AssetTimeout time.Duration `env:"ASSET_TIMEOUT" envDefault:"5s"`
	// AssetHosts may serve remote images; variable-built URLs need a listed host.
	AssetHosts []string `env:"ASSET_HOSTS" envSeparator:","`
}

type Lifecycle struct {
	Schedule     string        `env:"SCHEDULE" envDefault:"@daily"`
	ArchiveAfter time.Duration `env:"ARCHIVE_AFTER" envDefault:"8760h"`
	DeleteAfter  time.Duration `env:"DELETE_AFTER" envDefault:"26280h"`
	BatchSize    int           `env:"BATCH_SIZE" envDefault:"200"`
}

// LoadConfig reads .env when present, then the environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.Warnf("error loading .env file: %v", err)
	}

	return Parse()
}

// Parse reads the configuration from the environment only.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("error getting env configs: %w", err)
	}

	if err := cfg.check(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Production() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

func (c *Config) check() error {
	if c.TokenSecret == "" {
		if c.Production() {
			return ErrMissingTokenSecret
		}
		logrus.Warn("DOCUMENT_TOKEN_SECRET is not set, using an insecure development secret")
		c.TokenSecret = access.InsecureDevSecret
	}

	switch c.DB.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unknown database driver %q", c.DB.Driver)
	}

	switch c.Storage.Kind {
	case "memory", "fs", "s3":
	default:
		return fmt.Errorf("unknown storage kind %q", c.Storage.Kind)
	}

	switch c.Preview.Mirror {
	case "none", "blob", "redis":
	default:
		return fmt.Errorf("unknown preview mirror %q", c.Preview.Mirror)
	}
	if c.Preview.Mirror == "redis" && c.Redis.Addr == "" {
		return errors.New("PREVIEW_MIRROR=redis needs REDIS_ADDR")
	}

	return nil
}

// SetupLogging applies LOG_LEVEL and LOG_FORMAT to the global logger.
func (c *Config) SetupLogging() {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logrus.Warnf("unknown log level %q, using info", c.LogLevel)
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(c.LogFormat, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
}
