package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type PostgresConfig struct {
	Host     string
	Port     string
	DB       string
	Username string
	Password string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

type RepositoriesConfig struct {
	Postgres PostgresConfig
}

// TimeoutsConfig groups the per-operation-class deadlines for remote calls.
// Hot-path reads must never block the first render; auth actions that the
// user explicitly initiated may take much longer.
type TimeoutsConfig struct {
	ProfileFetch      time.Duration // pre-render hot path
	RemoteRead        time.Duration
	RemoteWrite       time.Duration
	AuthAction        time.Duration // sign-in / sign-up
	SignOut           time.Duration
	HydrationWatchdog time.Duration
}

type AuthConfig struct {
	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type Config struct {
	Repositories   RepositoriesConfig
	Auth           AuthConfig
	Timeouts       TimeoutsConfig
	ServerPort     string
	LocalStorePath string
	GeminiAPIKey   string
	GeocoderURL    string
}

func Load() (*Config, error) {
	cfg := &Config{
		Repositories: RepositoriesConfig{
			Postgres: PostgresConfig{
				Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
				Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
				DB:       getEnvOrDefault("POSTGRES_DB", "roamly"),
				Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
				Password: getEnvOrDefault("POSTGRES_PASSWORD", ""),
				SSLMode:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),
				MaxConns: 30,
				MinConns: 5,
			},
		},
		Auth: AuthConfig{
			JWTSecret:       getEnvOrDefault("JWT_SECRET", ""),
			AccessTokenTTL:  getDurationOrDefault("ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL: getDurationOrDefault("REFRESH_TOKEN_TTL", 30*24*time.Hour),
		},
		Timeouts: TimeoutsConfig{
			ProfileFetch:      getDurationOrDefault("TIMEOUT_PROFILE_FETCH", time.Second),
			RemoteRead:        getDurationOrDefault("TIMEOUT_REMOTE_READ", 5*time.Second),
			RemoteWrite:       getDurationOrDefault("TIMEOUT_REMOTE_WRITE", 10*time.Second),
			AuthAction:        getDurationOrDefault("TIMEOUT_AUTH_ACTION", 30*time.Second),
			SignOut:           getDurationOrDefault("TIMEOUT_SIGN_OUT", 800*time.Millisecond),
			HydrationWatchdog: getDurationOrDefault("TIMEOUT_HYDRATION_WATCHDOG", 6*time.Second),
		},
		ServerPort:     getEnvOrDefault("SERVER_PORT", "8091"),
		LocalStorePath: getEnvOrDefault("LOCAL_STORE_PATH", "roamly-store.json"),
		GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
		GeocoderURL:    getEnvOrDefault("GEOCODER_URL", "https://nominatim.openstreetmap.org"),
	}

	if cfg.Repositories.Postgres.Password == "" {
		return nil, fmt.Errorf("POSTGRES_PASSWORD environment variable is required")
	}
	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultValue
}
