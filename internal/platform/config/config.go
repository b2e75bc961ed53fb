package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process level configuration.
type Server struct {
	Addr       string
	AdminToken string

	PostgresURL string
	Redis       RedisConfig

	KafkaBrokers []string
	KafkaTopic   string

	// SweepSchedule is a cron expression for the purge-due sweeper.
	// Empty disables scheduled sweeps.
	SweepSchedule string

	AuditQueueSize  int
	BulkConcurrency int

	// AdminRateLimit caps requests per operator per minute. Zero
	// disables rate limiting.
	AdminRateLimit int
}

// RedisConfig holds connection settings for the session store.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	addr := os.Getenv("ARCHIVIST_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	adminToken := os.Getenv("ARCHIVIST_ADMIN_TOKEN")
	if adminToken == "" {
		// Development default - must be overridden in production
		adminToken = "dev-admin-token"
	}

	var brokers []string
	if raw := os.Getenv("ARCHIVIST_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Server{
		Addr:        addr,
		AdminToken:  adminToken,
		PostgresURL: os.Getenv("ARCHIVIST_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("ARCHIVIST_REDIS_URL"),
			PoolSize:     envInt("ARCHIVIST_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("ARCHIVIST_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("ARCHIVIST_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("ARCHIVIST_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("ARCHIVIST_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		KafkaBrokers:    brokers,
		KafkaTopic:      os.Getenv("ARCHIVIST_KAFKA_TOPIC"),
		SweepSchedule:   os.Getenv("ARCHIVIST_SWEEP_SCHEDULE"),
		AuditQueueSize:  envInt("ARCHIVIST_AUDIT_QUEUE_SIZE", 1024),
		BulkConcurrency: envInt("ARCHIVIST_BULK_CONCURRENCY", 4),
		AdminRateLimit:  envInt("ARCHIVIST_ADMIN_RATE_LIMIT", 0),
	}
}

func envInt(key string, fallback int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
