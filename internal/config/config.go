// Package config loads modelgraph settings from a YAML file, a .env file and
// MODELGRAPH_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "MODELGRAPH_"

// DefaultFile is read when no path is given and the file exists.
const DefaultFile = "modelgraph.yaml"

type Config struct {
	Server struct {
		Addr       string `yaml:"addr" validate:"required"`
		CORSOrigin string `yaml:"cors_origin"`
	} `yaml:"server"`

	Log struct {
		Level  string `yaml:"level" validate:"oneof=debug info warn error"`
		Format string `yaml:"format" validate:"oneof=text json"`
	} `yaml:"log"`

	Catalog struct {
		URL  string `yaml:"url" validate:"omitempty,url"`
		File string `yaml:"file"`
	} `yaml:"catalog"`

	Training struct {
		URL     string        `yaml:"url" validate:"omitempty,url"`
		Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
		Retries int           `yaml:"retries" validate:"gte=0,lte=10"`
		// BreakerFailures consecutive failed submissions open the circuit; 0 disables it.
		BreakerFailures int           `yaml:"breaker_failures" validate:"gte=0"`
		BreakerCooldown time.Duration `yaml:"breaker_cooldown" validate:"gte=0"`
		ModelID         string        `yaml:"model_id"`
		Dataset         string        `yaml:"dataset"`
	} `yaml:"training"`

	Notes struct {
		URL string `yaml:"url" validate:"omitempty,url"`
	} `yaml:"notes"`

	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db" validate:"gte=0"`
		Prefix   string        `yaml:"prefix"`
		TTL      time.Duration `yaml:"ttl" validate:"gte=0"`
	} `yaml:"redis"`

	Store struct {
		// Dir keeps sessions as JSON files when Redis is not configured.
		Dir string `yaml:"dir"`
		// EncryptionKey is a base64 AES-256 key; when set, sessions are stored encrypted.
		EncryptionKey string   `yaml:"encryption_key" validate:"omitempty,base64"`
		FallbackKeys  []string `yaml:"fallback_keys" validate:"dive,base64"`
	} `yaml:"store"`

	Graph struct {
		AllowSelfLoops     bool `yaml:"allow_self_loops"`
		AllowParallelEdges bool `yaml:"allow_parallel_edges"`
		Seed               bool `yaml:"seed"`
	} `yaml:"graph"`
}

// Default returns the settings used when nothing is configured.
func Default() *Config {
	cfg := &Config{}
	cfg.Server.Addr = ":8080"
	cfg.Server.CORSOrigin = "*"
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	cfg.Training.Timeout = 30 * time.Second
	cfg.Training.Retries = 3
	cfg.Training.BreakerFailures = 5
	cfg.Training.BreakerCooldown = 30 * time.Second
	cfg.Training.ModelID = "demo-model"
	cfg.Training.Dataset = "demo-dataset"
	cfg.Redis.Prefix = "modelgraph:session:"
	cfg.Graph.AllowSelfLoops = true
	cfg.Graph.AllowParallelEdges = true
	cfg.Graph.Seed = true
	return cfg
}

// Load builds the configuration. An empty path falls back to DefaultFile when present;
// an explicit path must exist.
func Load(path string) (*Config, error) {
	// A missing .env is normal.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case explicit || !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	envString("SERVER_ADDR", &c.Server.Addr)
	envString("SERVER_CORS_ORIGIN", &c.Server.CORSOrigin)
	envString("LOG_LEVEL", &c.Log.Level)
	envString("LOG_FORMAT", &c.Log.Format)
	envString("CATALOG_URL", &c.Catalog.URL)
	envString("CATALOG_FILE", &c.Catalog.File)
	envString("TRAINING_URL", &c.Training.URL)
	envString("TRAINING_MODEL_ID", &c.Training.ModelID)
	envString("TRAINING_DATASET", &c.Training.Dataset)
	envString("NOTES_URL", &c.Notes.URL)
	envString("REDIS_ADDR", &c.Redis.Addr)
	envString("REDIS_PASSWORD", &c.Redis.Password)
	envString("REDIS_PREFIX", &c.Redis.Prefix)
	envString("STORE_DIR", &c.Store.Dir)
	envString("STORE_ENCRYPTION_KEY", &c.Store.EncryptionKey)

	return errors.Join(
		envDuration("TRAINING_TIMEOUT", &c.Training.Timeout),
		envInt("TRAINING_RETRIES", &c.Training.Retries),
		envInt("TRAINING_BREAKER_FAILURES", &c.Training.BreakerFailures),
		envDuration("TRAINING_BREAKER_COOLDOWN", &c.Training.BreakerCooldown),
		envInt("REDIS_DB", &c.Redis.DB),
		envDuration("REDIS_TTL", &c.Redis.TTL),
		envBool("GRAPH_ALLOW_SELF_LOOPS", &c.Graph.AllowSelfLoops),
		envBool("GRAPH_ALLOW_PARALLEL_EDGES", &c.Graph.AllowParallelEdges),
		envBool("GRAPH_SEED", &c.Graph.Seed),
	)
}

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(EnvPrefix + key); ok {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *time.Duration) error {
	v, ok := os.LookupEnv(EnvPrefix + key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
	}
	*dst = d
	return nil
}
