package session

import (
	"errors"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the environment-driven settings for a session.
type Config struct {
	APIBaseURL   string        `env:"NOTIFY_API_BASE_URL,required,notEmpty"`
	StreamURL    string        `env:"NOTIFY_STREAM_URL,required,notEmpty"`
	AuthToken    string        `env:"NOTIFY_AUTH_TOKEN"`
	PageSize     int           `env:"NOTIFY_PAGE_SIZE" envDefault:"20"`
	StreamDwell  time.Duration `env:"NOTIFY_STREAM_DWELL" envDefault:"30s"`
	RetryCeiling int           `env:"NOTIFY_STREAM_RETRY_CEILING" envDefault:"5"`
	BackoffBase  time.Duration `env:"NOTIFY_BACKOFF_BASE" envDefault:"1s"`
	BackoffMax   time.Duration `env:"NOTIFY_BACKOFF_MAX" envDefault:"30s"`
	ToastTTL     time.Duration `env:"NOTIFY_TOAST_TTL" envDefault:"5s"`
	ToastExit    time.Duration `env:"NOTIFY_TOAST_EXIT_DELAY" envDefault:"200ms"`
}

// ErrParsingConfig wraps environment parsing failures.
var ErrParsingConfig = errors.New("failed to parse session config")

var defaultEnvLoaded sync.Once

// LoadConfig reads Config from the environment, loading a .env file first if
// one exists.
func LoadConfig() (Config, error) {
	defaultEnvLoaded.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Join(ErrParsingConfig, err)
	}
	return cfg, nil
}
