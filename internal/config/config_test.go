package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE", "")
	t.Setenv("JWT_TTL", "")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("OLLAMA_MODEL", "")

	cfg := Load()
	assert.Equal(t, "postgres", cfg.Storage)
	assert.Equal(t, 72*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "llama3:latest", cfg.Responders.OllamaModel)
	assert.Equal(t, 20*time.Second, cfg.Responders.Timeout)
	assert.Empty(t, cfg.KafkaBrokers)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE", "Memory")
	t.Setenv("JWT_TTL", "1h")
	t.Setenv("RESPONDER_TIMEOUT", "not-a-duration")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("KAFKA_BROKERS", "k1:9092, ,k2:9092")

	cfg := Load()
	assert.Equal(t, "memory", cfg.Storage)
	assert.Equal(t, time.Hour, cfg.JWTTTL)
	assert.Equal(t, 20*time.Second, cfg.Responders.Timeout)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestDSN(t *testing.T) {
	dsn := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", Name: "busmate", SSLMode: "disable", TimeZone: "UTC"}.DSN()
	assert.Equal(t, "host=db user=u password=p dbname=busmate port=5432 sslmode=disable TimeZone=UTC", dsn)
}
