package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"hidden_mines/internal/logger"

	"github.com/joho/godotenv"
)

const (
	OracleLocal    = "local"
	OracleExternal = "external"
)

type Config struct {
	AppPort       string
	DatabaseURL   string // empty runs without persistence
	JWTSecret     string
	AllowedOrigin string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	AdminAddresses string // comma-separated hex addresses

	// Oracle
	OracleMode   string
	OracleURL    string
	OracleAPIKey string
	KMSSigners   string // comma-separated hex addresses
	KMSThreshold int
	KMSDomain    string
	DevMines     string // local mode only, e.g. "0,6,12,18,24"

	PendingTTL time.Duration
	SignInTTL  time.Duration

	// Rate limits
	APIRateLimit     int
	APIRateWindow    time.Duration
	RevealRateLimit  int
	RevealRateWindow time.Duration

	LogLevel string
	LogJSON  bool
}

// Load reads the configuration from the environment (and .env if present).
func Load() *Config {
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		logger.Fatal("JWT_SECRET is not set")
	}

	mode := strings.ToLower(envString("ORACLE_MODE", OracleLocal))
	if mode != OracleLocal && mode != OracleExternal {
		logger.Fatal("ORACLE_MODE must be local or external", "value", mode)
	}

	cfg := &Config{
		AppPort:       envString("APP_PORT", "8080"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		JWTSecret:     jwtSecret,
		AllowedOrigin: os.Getenv("ALLOWED_ORIGIN"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		AdminAddresses: os.Getenv("ADMIN_ADDRESSES"),

		OracleMode:   mode,
		OracleURL:    os.Getenv("ORACLE_URL"),
		OracleAPIKey: os.Getenv("ORACLE_API_KEY"),
		KMSSigners:   os.Getenv("KMS_SIGNERS"),
		KMSThreshold: envInt("KMS_THRESHOLD", 2),
		KMSDomain:    envString("KMS_DOMAIN", "hidden-mines/v1"),
		DevMines:     os.Getenv("DEV_MINES"),

		PendingTTL: envSeconds("PENDING_TTL_SECONDS", 0),
		SignInTTL:  envSeconds("SIGNIN_TTL_SECONDS", 300),

		APIRateLimit:     envInt("API_RATE_LIMIT", 120),
		APIRateWindow:    envSeconds("API_RATE_WINDOW_SECONDS", 60),
		RevealRateLimit:  envInt("REVEAL_RATE_LIMIT", 60),
		RevealRateWindow: envSeconds("REVEAL_RATE_WINDOW_SECONDS", 60),

		LogLevel: envString("LOG_LEVEL", "info"),
		LogJSON:  os.Getenv("LOG_JSON") == "true",
	}

	if mode == OracleExternal {
		if cfg.OracleURL == "" {
			logger.Fatal("ORACLE_URL is required when ORACLE_MODE=external")
		}
		if cfg.KMSSigners == "" {
			logger.Fatal("KMS_SIGNERS is required when ORACLE_MODE=external")
		}
	}

	return cfg
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt returns def unless key holds a positive integer.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
		logger.Warn("ignoring invalid integer env", "key", key, "value", v)
	}
	return def
}

func envSeconds(key string, def int) time.Duration {
	return time.Duration(envInt(key, def)) * time.Second
}
