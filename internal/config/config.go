package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const EnvDevelopment = "development"

type Config struct {
	DatabaseURL      string        `envconfig:"DATABASE_URL"`
	ClientOriginWeb  string        `envconfig:"CLIENT_ORIGIN_WEB"`
	Port             int           `envconfig:"PORT" default:"3000"`
	AppEnv           string        `envconfig:"APP_ENV" default:"production"`
	DataDir          string        `envconfig:"DATA_DIR" default:"data"`
	LogLevel         string        `envconfig:"LOG_LEVEL" default:"info"`
	SessionSecret    string        `envconfig:"SESSION_SECRET"`
	SessionTTL       time.Duration `envconfig:"SESSION_TTL" default:"168h"`
	EnrichLinks      bool          `envconfig:"ENRICH_LINKS" default:"false"`
	LinkFetchTimeout time.Duration `envconfig:"LINK_FETCH_TIMEOUT" default:"10s"`
}

// Load reads filename (or .env when empty) into the environment and then
// fills Config from it. A missing default .env is fine; a missing named file
// is an error.
func Load(filename string) (Config, error) {
	if err := loadEnvironment(filename); err != nil {
		return Config{}, fmt.Errorf("load env file: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadEnvironment(filename string) error {
	if filename != "" {
		return godotenv.Overload(filename)
	}
	err := godotenv.Load()
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT out of range: %d", c.Port)
	}
	if c.DataDir == "" {
		return errors.New("DATA_DIR must not be empty")
	}
	if c.LinkFetchTimeout <= 0 {
		return errors.New("LINK_FETCH_TIMEOUT must be positive")
	}
	return nil
}

func (c Config) Development() bool {
	return c.AppEnv == EnvDevelopment
}

func (c Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}
