package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application runtime configuration.
type Config struct {
	Env             string
	HTTPPort        string
	DatabaseURL     string
	JWTSecret       string
	TokenTTL        time.Duration
	ResetSecretTTL  time.Duration
	DisplayTimezone string

	// ERP connection (JSON-RPC endpoint + service account).
	ERPURL      string
	ERPDatabase string
	ERPUsername string
	ERPPassword string

	GoogleClientID    string
	FirebaseProjectID string
	FirebaseCredFile  string

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads environment variables and .env (if present).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:               getEnv("APP_ENV", "development"),
		HTTPPort:          getEnv("HTTP_PORT", "8080"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		TokenTTL:          getDuration("TOKEN_TTL", 24*time.Hour),
		ResetSecretTTL:    getDuration("RESET_SECRET_TTL", 10*time.Minute),
		DisplayTimezone:   getEnv("DISPLAY_TIMEZONE", "Asia/Kolkata"),
		ERPURL:            os.Getenv("ERP_URL"),
		ERPDatabase:       os.Getenv("ERP_DB"),
		ERPUsername:       os.Getenv("ERP_USERNAME"),
		ERPPassword:       os.Getenv("ERP_PASSWORD"),
		GoogleClientID:    os.Getenv("GOOGLE_CLIENT_ID"),
		FirebaseProjectID: os.Getenv("FIREBASE_PROJECT_ID"),
		FirebaseCredFile:  os.Getenv("FIREBASE_CREDENTIALS"),
		ReadTimeout:       getDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:      getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:       getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout:   getDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, errors.New("JWT_SECRET is required")
	}
	if cfg.ERPURL == "" || cfg.ERPDatabase == "" {
		return cfg, errors.New("ERP_URL and ERP_DB are required")
	}
	if cfg.ERPUsername == "" || cfg.ERPPassword == "" {
		return cfg, errors.New("ERP_USERNAME and ERP_PASSWORD are required")
	}
	return cfg, nil
}

// IsDevelopment reports whether verbose error payloads may be returned.
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
