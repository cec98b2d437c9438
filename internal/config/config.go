package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
)

const (
	appName              = "newsreader"
	defaultLogLevel      = "info"
	defaultFetchTimeout  = 15 * time.Second
	defaultMaxConcurrent = 8
	defaultUserAgent     = "StartPage/1.0"
	dotEnvFile           = ".env"
)

// Config holds runtime settings for the reader.
type Config struct {
	DBPath               string
	LogPath              string
	LogLevel             string
	FetchTimeout         time.Duration
	MaxConcurrentFetches int
	UserAgent            string
}

// LoadFromEnv reads NEWSREADER_* variables, after loading an optional .env
// file from the working directory. Variables already set in the environment
// win over the file.
func LoadFromEnv() (Config, error) {
	if err := godotenv.Load(dotEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", dotEnvFile, err)
	}

	cfg := Config{
		DBPath:    os.Getenv("NEWSREADER_DB_PATH"),
		LogPath:   os.Getenv("NEWSREADER_LOG_PATH"),
		LogLevel:  strings.ToLower(os.Getenv("NEWSREADER_LOG_LEVEL")),
		UserAgent: os.Getenv("NEWSREADER_USER_AGENT"),
	}

	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}
	if cfg.LogPath == "" {
		cfg.LogPath = DefaultLogPath()
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}

	cfg.FetchTimeout = defaultFetchTimeout
	if raw := os.Getenv("NEWSREADER_FETCH_TIMEOUT"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return Config{}, fmt.Errorf("NEWSREADER_FETCH_TIMEOUT: %w", err)
		}
		cfg.FetchTimeout = d
	}

	cfg.MaxConcurrentFetches = defaultMaxConcurrent
	if raw := os.Getenv("NEWSREADER_MAX_CONCURRENT_FETCHES"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Config{}, fmt.Errorf("NEWSREADER_MAX_CONCURRENT_FETCHES: %w", err)
		}
		cfg.MaxConcurrentFetches = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.DBPath == "" {
		return errors.New("DBPath is required")
	}
	if c.LogPath == "" {
		return errors.New("LogPath is required")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("LogLevel must be debug, info, warn or error: %s", c.LogLevel)
	}
	if c.FetchTimeout <= 0 {
		return fmt.Errorf("FetchTimeout must be positive: %s", c.FetchTimeout)
	}
	if c.MaxConcurrentFetches < 1 {
		return fmt.Errorf("MaxConcurrentFetches must be at least 1: %d", c.MaxConcurrentFetches)
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		return errors.New("UserAgent is required")
	}
	return nil
}

// DefaultDBPath is the settings database under the XDG data directory.
func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, appName, appName+".db")
}

func DefaultLogPath() string {
	return filepath.Join(xdg.StateHome, appName, appName+".log")
}
