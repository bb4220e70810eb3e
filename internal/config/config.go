package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
	TimeZone string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type ResponderConfig struct {
	OllamaURL        string
	OllamaModel      string
	HuggingFaceKey   string
	HuggingFaceModel string
	HuggingFaceURL   string
	Timeout          time.Duration
}

// Config holds application configuration
type Config struct {
	ServerAddr string
	GinMode    string
	// Storage selects the repository: "postgres" or "memory".
	Storage string

	Database   DatabaseConfig
	Redis      RedisConfig
	Responders ResponderConfig

	JWTSecret string
	JWTTTL    time.Duration

	KafkaBrokers []string
	UploadDir    string

	LogFile  string
	LogLevel string
}

// Load reads .env if present, then the environment.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("no .env file found, relying on env vars")
	}

	cfg := &Config{
		ServerAddr: getEnv("SERVER_ADDR", "0.0.0.0:8080"),
		GinMode:    getEnv("GIN_MODE", "debug"),
		Storage:    strings.ToLower(getEnv("STORAGE", "postgres")),
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "password"),
			Name:     getEnv("DB_NAME", "busmate"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
			TimeZone: getEnv("DB_TIMEZONE", "UTC"),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Responders: ResponderConfig{
			OllamaURL:        getEnv("OLLAMA_URL", "http://127.0.0.1:11434"),
			OllamaModel:      getEnv("OLLAMA_MODEL", "llama3:latest"),
			HuggingFaceKey:   os.Getenv("HUGGINGFACE_API_KEY"),
			HuggingFaceModel: getEnv("HUGGINGFACE_MODEL", "microsoft/Phi-3-mini-4k-instruct"),
			HuggingFaceURL:   os.Getenv("HUGGINGFACE_URL"),
			Timeout:          getEnvDuration("RESPONDER_TIMEOUT", 20*time.Second),
		},
		JWTSecret:    getEnv("JWT_SECRET", "supersecret"),
		JWTTTL:       getEnvDuration("JWT_TTL", 72*time.Hour),
		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		UploadDir:    getEnv("UPLOAD_DIR", "./media"),
		LogFile:      getEnv("LOG_FILE", "./logs/app.log"),
		LogLevel:     getEnv("LOG_LEVEL", "debug"),
	}

	if cfg.Storage != "postgres" && cfg.Storage != "memory" {
		logrus.WithField("storage", cfg.Storage).Warn("unknown STORAGE, using postgres")
		cfg.Storage = "postgres"
	}
	if cfg.JWTSecret == "supersecret" {
		logrus.Warn("JWT_SECRET not set, using the development fallback")
	}
	return cfg
}

// getEnv reads an environment variable or returns the provided default
func getEnv(key, defaultValue string) string {
	if v, exists := os.LookupEnv(key); exists && v != "" {
		return v
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("invalid integer, using default")
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("invalid duration, using default")
		return defaultValue
	}
	return d
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
