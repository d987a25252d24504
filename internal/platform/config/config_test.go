package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{
		"STMTGUARD_ADDR", "ENVIRONMENT", "JWT_SIGNING_KEY", "MAX_UPLOAD_BYTES",
		"COMBINED_TOKENS", "INDEX_BACKEND", "KAFKA_BROKERS", "REDIS_DIAL_TIMEOUT",
	} {
		t.Setenv(k, "")
	}

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.True(t, cfg.CombinedTokens)
	assert.Equal(t, BackendMemory, cfg.Index.Backend)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, 5*time.Second, cfg.Redis.DialTimeout)
	assert.True(t, cfg.IsDevelopment())
	require.NoError(t, cfg.Validate())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("STMTGUARD_ADDR", ":9090")
	t.Setenv("COMBINED_TOKENS", "false")
	t.Setenv("INDEX_BACKEND", "Redis")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,,")
	t.Setenv("MAX_UPLOAD_BYTES", "2048")

	cfg := FromEnv()

	assert.Equal(t, ":9090", cfg.Addr)
	assert.False(t, cfg.CombinedTokens)
	assert.Equal(t, BackendRedis, cfg.Index.Backend)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, int64(2048), cfg.MaxUploadBytes)
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	base := func() Server {
		return Server{
			Environment:    "development",
			JWTSigningKey:  devJWTSigningKey,
			MaxUploadBytes: 1,
			Index:          IndexConfig{Backend: BackendMemory},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Server)
		errMsg string
	}{
		{"postgres without url", func(s *Server) { s.Index.Backend = BackendPostgres }, "DATABASE_URL"},
		{"redis without url", func(s *Server) { s.Index.Backend = BackendRedis }, "REDIS_URL"},
		{"badger without path", func(s *Server) { s.Index.Backend = BackendBadger }, "BADGER_PATH"},
		{"unknown backend", func(s *Server) { s.Index.Backend = "mongo" }, "unknown INDEX_BACKEND"},
		{"zero upload limit", func(s *Server) { s.MaxUploadBytes = 0 }, "MAX_UPLOAD_BYTES"},
		{"dev key in production", func(s *Server) { s.Environment = "production" }, "JWT_SIGNING_KEY"},
		{"brokers without topic", func(s *Server) { s.Kafka.Brokers = []string{"k:9092"} }, "KAFKA_FLAG_TOPIC"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
