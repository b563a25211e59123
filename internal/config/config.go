package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var validate = validator.New()

// Redis locates the pub/sub broker shared by the relay and the API server.
type Redis struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     string `envconfig:"REDIS_PORT" default:"6379" validate:"numeric"`
	Password string `envconfig:"REDIS_PASSWORD"`
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"true"`
}

// Telemetry configures OpenTelemetry export.
type Telemetry struct {
	Enabled      bool    `envconfig:"OTEL_ENABLED" default:"false"`
	Endpoint     string  `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4318"`
	SamplingRate float64 `envconfig:"OTEL_SAMPLING_RATE" default:"1.0" validate:"gte=0,lte=1"`
	Environment  string  `envconfig:"ENVIRONMENT" default:"development"`
}

// Relay configures the presence and relay service.
type Relay struct {
	Port          int           `envconfig:"RELAY_PORT" default:"8900" validate:"gt=0,lte=65535"`
	AllowedOrigin string        `envconfig:"RELAY_ALLOWED_ORIGIN" default:"http://localhost:5173" validate:"required,url"`
	RateLimit     int           `envconfig:"RELAY_RATE_LIMIT" default:"10" validate:"gt=0"`
	RateBurst     int           `envconfig:"RELAY_RATE_BURST" default:"20" validate:"gt=0"`
	ShutdownGrace time.Duration `envconfig:"RELAY_SHUTDOWN_GRACE" default:"30s"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	LogFile       string        `envconfig:"LOG_FILE" default:"relay.log"`
	Redis         Redis
	Telemetry     Telemetry
}

// Server configures the REST API over the document store.
type Server struct {
	Port          int           `envconfig:"PORT" default:"8800" validate:"gt=0,lte=65535"`
	AllowedOrigin string        `envconfig:"ALLOWED_ORIGIN" default:"http://localhost:5173" validate:"required,url"`
	DatabaseURL   string        `envconfig:"DATABASE_URL"`
	DBDriver      string        `envconfig:"DB_DRIVER" default:"sqlite" validate:"oneof=postgres sqlite"`
	SQLitePath    string        `envconfig:"SQLITE_PATH" default:"social.db"`
	UploadBackend string        `envconfig:"UPLOAD_BACKEND" default:"local" validate:"oneof=local s3"`
	UploadDir     string        `envconfig:"UPLOAD_DIR" default:"public/images"`
	UploadBaseURL string        `envconfig:"UPLOAD_BASE_URL" default:"/images"`
	MaxUploadSize int64         `envconfig:"MAX_UPLOAD_SIZE" default:"10485760" validate:"gt=0"`
	AWSRegion     string        `envconfig:"AWS_REGION" default:"us-east-1"`
	S3Bucket      string        `envconfig:"S3_BUCKET" validate:"required_if=UploadBackend s3"`
	ShutdownGrace time.Duration `envconfig:"SHUTDOWN_GRACE" default:"30s"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	LogFile       string        `envconfig:"LOG_FILE" default:"server.log"`
	Redis         Redis
	Telemetry     Telemetry
}

// Addr returns the listen address.
func (c Relay) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// Addr returns the listen address.
func (c Server) Addr() string { return fmt.Sprintf(":%d", c.Port) }

// LoadRelay reads .env (if present) and the environment into a validated Relay.
func LoadRelay() (Relay, error) {
	var cfg Relay
	if err := load(&cfg); err != nil {
		return Relay{}, err
	}
	return cfg, nil
}

// LoadServer reads .env (if present) and the environment into a validated Server.
func LoadServer() (Server, error) {
	var cfg Server
	if err := load(&cfg); err != nil {
		return Server{}, err
	}
	if cfg.DBDriver == "postgres" && cfg.DatabaseURL == "" {
		return Server{}, fmt.Errorf("DATABASE_URL is required when DB_DRIVER=postgres")
	}
	return cfg, nil
}

func load(cfg interface{}) error {
	_ = godotenv.Load()

	if err := envconfig.Process("", cfg); err != nil {
		return fmt.Errorf("failed to read environment: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
