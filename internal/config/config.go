// Package config loads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds every setting of the gridboard binaries.
type Config struct {
	Addr               string        `env:"GRIDBOARD_ADDR" envDefault:":3001"`
	DataDir            string        `env:"GRIDBOARD_DATA_DIR" envDefault:"./data"`
	DBFile             string        `env:"GRIDBOARD_DB_FILE" envDefault:"dashboard.db"`
	CheckpointDebounce time.Duration `env:"GRIDBOARD_CHECKPOINT_DEBOUNCE" envDefault:"1s"`
	// ServerURL is where CLI commands find a running server.
	ServerURL string `env:"GRIDBOARD_URL" envDefault:"http://localhost:3001"`
	// CORSOrigins are the browser origins allowed to call the API. Empty
	// disables CORS handling.
	CORSOrigins []string `env:"GRIDBOARD_CORS_ORIGINS" envSeparator:","`
	LogLevel    string   `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string   `env:"LOG_FORMAT" envDefault:"text"`
}

// SnapshotPath is the checkpoint file location.
func (c Config) SnapshotPath() string {
	return filepath.Join(c.DataDir, c.DBFile)
}

// Load reads the given dotenv files (".env" when none are named), then parses
// the environment. Missing dotenv files are ignored and variables already
// set in the environment win over dotenv values.
func Load(dotenvFiles ...string) (Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.CheckpointDebounce <= 0 {
		return Config{}, fmt.Errorf("parse env: GRIDBOARD_CHECKPOINT_DEBOUNCE must be positive, got %s", cfg.CheckpointDebounce)
	}
	return cfg, nil
}

// NewLogger builds the process logger. format is "text" or "json".
func NewLogger(level, format string, out io.Writer) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, err
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	switch strings.ToLower(format) {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return logger, nil
}
