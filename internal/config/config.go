package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application runtime configuration.
type Config struct {
	Env                string
	HTTPPort           string
	LogLevel           string
	DatabaseURL        string
	DBMaxConns         int
	AutoMigrate        bool
	RedisURL           string
	JWTSecret          string
	AccessTokenTTL     time.Duration
	OTPTTL             time.Duration
	OTPMaxPerMinute    int
	IdempotencyTTL     time.Duration
	CurrencySymbol     string
	DefaultCountryCode string
	FirebaseProjectID  string
	FirebaseCredFile   string
	ReminderInterval   time.Duration
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	ShutdownTimeout    time.Duration
}

// Load reads environment variables and .env (if present).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:                getEnv("APP_ENV", "development"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		LogLevel:           strings.ToLower(getEnv("LOG_LEVEL", "info")),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		DBMaxConns:         getInt("DB_MAX_CONNS", 0),
		AutoMigrate:        getEnv("AUTO_MIGRATE", "true") == "true",
		RedisURL:           os.Getenv("REDIS_URL"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		AccessTokenTTL:     getDuration("ACCESS_TOKEN_TTL", 30*24*time.Hour),
		OTPTTL:             getDuration("OTP_TTL", 5*time.Minute),
		OTPMaxPerMinute:    getInt("OTP_MAX_PER_MINUTE", 5),
		IdempotencyTTL:     getDuration("IDEMPOTENCY_TTL", 24*time.Hour),
		CurrencySymbol:     getEnv("CURRENCY_SYMBOL", "₹"),
		DefaultCountryCode: getEnv("DEFAULT_COUNTRY_CODE", "91"),
		FirebaseProjectID:  os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseCredFile:   os.Getenv("FIREBASE_CREDENTIALS"),
		ReminderInterval:   getDuration("REMINDER_INTERVAL", time.Minute),
		ReadTimeout:        getDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:       getDuration("HTTP_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:        getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:    getDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return cfg, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET is required")
	}
	return cfg, nil
}

// IsDevelopment reports whether OTP codes may be echoed back to callers.
func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		// Support seconds as integer without suffix.
		if secs, convErr := strconv.Atoi(val); convErr == nil {
			return time.Duration(secs) * time.Second
		}
		return fallback
	}
	return d
}
