package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/studio-leaderboards/storage"
	"github.com/joho/godotenv"
)

const (
	defaultSchedulerInterval    = time.Minute
	defaultSchedulerActor       = "system:scheduler"
	defaultSchedulerParallelism = 4
	defaultKafkaTopic           = "leaderboard.period.finalized"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL  string
	JWTSecretKey string
	ServerPort   int
	LogLevel     slog.Level
	DBMigrate    bool

	SchedulerInterval    time.Duration
	SchedulerActor       string
	SchedulerParallelism int

	CORSAllowedOrigins []string

	R2 storage.CloudflareR2Config

	KafkaBrokers []string
	KafkaTopic   string
}

// Load загружает конфигурацию из переменных окружения.
// Опционально подгружает .env файл (полезно для локальной разработки).
func Load() (*Config, error) {
	// Загружаем .env файл, если он есть. Ошибку не считаем фатальной.
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	jwtKey := os.Getenv("JWT_SECRET_KEY")
	if jwtKey == "" {
		return nil, fmt.Errorf("JWT_SECRET_KEY environment variable is not set")
	}

	portStr := getEnv("SERVER_PORT", "8080")
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT environment variable: %w", err)
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("SERVER_PORT must be between 1 and 65535, got %d", port)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(getEnv("LOG_LEVEL", "INFO"))); err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL environment variable: %w", err)
	}

	migrate, err := strconv.ParseBool(getEnv("DB_MIGRATE", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MIGRATE environment variable: %w", err)
	}

	interval := defaultSchedulerInterval
	if raw := os.Getenv("SCHEDULER_INTERVAL"); raw != "" {
		interval, err = time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid SCHEDULER_INTERVAL environment variable: %w", err)
		}
		if interval < 0 {
			return nil, fmt.Errorf("SCHEDULER_INTERVAL must not be negative, got %s", interval)
		}
	}

	parallelism, err := strconv.Atoi(getEnv("SCHEDULER_PARALLELISM", strconv.Itoa(defaultSchedulerParallelism)))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_PARALLELISM environment variable: %w", err)
	}
	if parallelism < 1 {
		return nil, fmt.Errorf("SCHEDULER_PARALLELISM must be at least 1, got %d", parallelism)
	}

	r2 := storage.CloudflareR2Config{
		AccountID:       os.Getenv("R2_ACCOUNT_ID"),
		AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
		BucketName:      os.Getenv("R2_BUCKET_NAME"),
		PublicBaseURL:   os.Getenv("R2_PUBLIC_BASE_URL"),
	}
	// Либо все R2_* заданы, либо ни одного.
	if !r2.IsZero() {
		if err := r2.Validate(); err != nil {
			return nil, fmt.Errorf("R2_* environment variables are partially set: %w", err)
		}
	}

	cfg := &Config{
		DatabaseURL:          dbURL,
		JWTSecretKey:         jwtKey,
		ServerPort:           port,
		LogLevel:             level,
		DBMigrate:            migrate,
		SchedulerInterval:    interval,
		SchedulerActor:       getEnv("SCHEDULER_ACTOR", defaultSchedulerActor),
		SchedulerParallelism: parallelism,
		CORSAllowedOrigins:   splitList(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		R2:                   r2,
		KafkaBrokers:         splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:           getEnv("KAFKA_TOPIC", defaultKafkaTopic),
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		return nil, errors.New("CORS_ALLOWED_ORIGINS must list at least one origin")
	}

	return cfg, nil
}

// ArchiveEnabled reports whether finalized periods are archived to R2.
func (c *Config) ArchiveEnabled() bool {
	return !c.R2.IsZero()
}

func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
