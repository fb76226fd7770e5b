package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the .env file from the current working directory and sets
// environment variables. If .env does not exist, Load returns an error but
// callers can ignore it and use system env or defaults. Pass one or more paths
// to load from specific files (e.g. ".env"); with no paths, ".env" is used.
func Load(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	return godotenv.Load(paths...)
}

// GetEnv returns the value of the environment variable named by key, or fallback
// if the variable is unset or empty.
func GetEnv(key, fallback string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return fallback
}

// GetEnvInt returns the integer value of the environment variable named by key,
// or fallback if the variable is unset, empty, or not a valid integer.
func GetEnvInt(key string, fallback int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return fallback
}

// GetEnvDuration returns the duration value (e.g. "250ms", "2s") of the
// environment variable named by key, or fallback if the variable is unset,
// empty, not a valid duration, or not positive.
func GetEnvDuration(key string, fallback time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

// Settings is the process configuration read from the environment.
type Settings struct {
	Port      string
	LogLevel  string
	LogFormat string

	PollInterval   time.Duration
	SeekTolerance  time.Duration
	SeekPolicy     string
	ResolveTimeout time.Duration

	TrackingAttempts   int
	TrackingRetryDelay time.Duration
	TrackingTimeout    time.Duration
}

// FromEnv reads Settings from the environment, applying defaults.
func FromEnv() Settings {
	return Settings{
		Port:      GetEnv("PORT", "8080"),
		LogLevel:  GetEnv("LOG_LEVEL", "info"),
		LogFormat: GetEnv("LOG_FORMAT", "json"),

		PollInterval:   GetEnvDuration("POLL_INTERVAL", 200*time.Millisecond),
		SeekTolerance:  GetEnvDuration("SEEK_TOLERANCE", 2*time.Second),
		SeekPolicy:     GetEnv("SEEK_POLICY", "skip"),
		ResolveTimeout: GetEnvDuration("RESOLVE_TIMEOUT", 5*time.Second),

		TrackingAttempts:   GetEnvInt("TRACKING_ATTEMPTS", 3),
		TrackingRetryDelay: GetEnvDuration("TRACKING_RETRY_DELAY", 500*time.Millisecond),
		TrackingTimeout:    GetEnvDuration("TRACKING_TIMEOUT", 5*time.Second),
	}
}
