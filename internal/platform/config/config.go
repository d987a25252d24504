package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Index backends selectable through INDEX_BACKEND.
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
	BackendBadger   = "badger"
)

const (
	defaultAddr            = ":8080"
	defaultMaxUploadBytes  = 10 << 20
	defaultShutdownTimeout = 10 * time.Second
	defaultFlagTopic       = "stmtguard.flags"
	devJWTSigningKey       = "dev-secret-key-change-in-production"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	LogLevel        string
	JWTSigningKey   string
	MaxUploadBytes  int64
	CombinedTokens  bool
	PathSpecFile    string
	ShutdownTimeout time.Duration

	Index    IndexConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

// IndexConfig selects where tokens are persisted and looked up.
type IndexConfig struct {
	Backend    string
	BadgerPath string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig is empty-brokers-disabled: flag events are then only logged.
type KafkaConfig struct {
	Brokers   []string
	FlagTopic string
	ClientID  string
}

func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// IsDevelopment reports whether the server runs with development defaults.
func (s Server) IsDevelopment() bool {
	return s.Environment == "" || s.Environment == "development" || s.Environment == "dev"
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	env := getEnv("ENVIRONMENT", "development")

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = devJWTSigningKey
	}

	return Server{
		Addr:            getEnv("STMTGUARD_ADDR", defaultAddr),
		Environment:     env,
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		JWTSigningKey:   jwtSigningKey,
		MaxUploadBytes:  getInt64("MAX_UPLOAD_BYTES", defaultMaxUploadBytes),
		CombinedTokens:  getBool("COMBINED_TOKENS", true),
		PathSpecFile:    os.Getenv("PATH_SPEC_FILE"),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
		Index: IndexConfig{
			Backend:    strings.ToLower(getEnv("INDEX_BACKEND", BackendMemory)),
			BadgerPath: getEnv("BADGER_PATH", "./data/index"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    int(getInt64("DATABASE_MAX_OPEN_CONNS", 20)),
			MaxIdleConns:    int(getInt64("DATABASE_MAX_IDLE_CONNS", 5)),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     int(getInt64("REDIS_POOL_SIZE", 10)),
			MinIdleConns: int(getInt64("REDIS_MIN_IDLE_CONNS", 2)),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:   splitList(os.Getenv("KAFKA_BROKERS")),
			FlagTopic: getEnv("KAFKA_FLAG_TOPIC", defaultFlagTopic),
			ClientID:  getEnv("KAFKA_CLIENT_ID", "stmtguard"),
		},
	}
}

// Validate rejects combinations the server cannot start with.
func (s Server) Validate() error {
	if s.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	if !s.IsDevelopment() && s.JWTSigningKey == devJWTSigningKey {
		return fmt.Errorf("JWT_SIGNING_KEY must be set outside development")
	}
	switch s.Index.Backend {
	case BackendMemory:
	case BackendPostgres:
		if s.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres index")
		}
	case BackendRedis:
		if s.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis index")
		}
	case BackendBadger:
		if s.Index.BadgerPath == "" {
			return fmt.Errorf("BADGER_PATH is required for the badger index")
		}
	default:
		return fmt.Errorf("unknown INDEX_BACKEND %q", s.Index.Backend)
	}
	if s.Kafka.Enabled() && s.Kafka.FlagTopic == "" {
		return fmt.Errorf("KAFKA_FLAG_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getInt64(key string, def int64) int64 {
	v, err := strconv.ParseInt(os.Getenv(key), 10, 64)
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for part := range strings.SplitSeq(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
