// Package config loads extractor settings from an optional .env file, an
// optional YAML file and ARXML_* environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ARXML_"

// DefaultSubject is where topology summaries are published.
const DefaultSubject = "arxml.topology.extracted"

type Config struct {
	Log     LogConfig     `yaml:"log"`
	Extract ExtractConfig `yaml:"extract"`
	Neo4j   Neo4jConfig   `yaml:"neo4j"`
	NATS    NATSConfig    `yaml:"nats"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type LogConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=json text"`
}

type ExtractConfig struct {
	Workers int `yaml:"workers" validate:"min=1,max=64"`
	// Strict fails the read on malformed values and the run on any warning.
	Strict bool `yaml:"strict"`
}

type Neo4jConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url" validate:"required_if=Enabled true"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url" validate:"required_if=Enabled true"`
	Subject string `yaml:"subject" validate:"required"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr" validate:"required_if=Enabled true,omitempty,hostname_port"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Load reads configuration. An empty path skips the YAML file; a path that
// does not exist is an error.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"LOG_LEVEL":      &c.Log.Level,
		"LOG_FORMAT":     &c.Log.Format,
		"NEO4J_URL":      &c.Neo4j.URL,
		"NEO4J_USER":     &c.Neo4j.User,
		"NEO4J_PASSWORD": &c.Neo4j.Password,
		"NEO4J_DATABASE": &c.Neo4j.Database,
		"NATS_URL":       &c.NATS.URL,
		"NATS_SUBJECT":   &c.NATS.Subject,
		"METRICS_ADDR":   &c.Metrics.Addr,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	bools := map[string]*bool{
		"EXTRACT_STRICT":  &c.Extract.Strict,
		"NEO4J_ENABLED":   &c.Neo4j.Enabled,
		"NATS_ENABLED":    &c.NATS.Enabled,
		"METRICS_ENABLED": &c.Metrics.Enabled,
	}
	var errs []error
	for key, dst := range bools {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %q is not a boolean", EnvPrefix, key, v))
			continue
		}
		*dst = b
	}
	if v, ok := lookup(EnvPrefix + "EXTRACT_WORKERS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%sEXTRACT_WORKERS: %q is not an integer", EnvPrefix, v))
		} else {
			c.Extract.Workers = n
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Extract.Workers == 0 {
		c.Extract.Workers = 4
	}
	if c.Neo4j.URL == "" {
		c.Neo4j.URL = "neo4j://localhost:7687"
	}
	if c.Neo4j.User == "" {
		c.Neo4j.User = "neo4j"
	}
	if c.NATS.URL == "" {
		c.NATS.URL = "nats://127.0.0.1:4222"
	}
	if c.NATS.Subject == "" {
		c.NATS.Subject = DefaultSubject
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9090"
	}
}

// Validate checks field constraints and reports the first violation by its
// YAML path.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return fmt.Errorf("config: %w", err)
	}
	e := verrs[0]
	_, field, _ := strings.Cut(e.Namespace(), ".")
	switch e.Tag() {
	case "required", "required_if":
		return fmt.Errorf("config: %s is required", field)
	case "min":
		return fmt.Errorf("config: %s must be at least %s", field, e.Param())
	case "max":
		return fmt.Errorf("config: %s must not exceed %s", field, e.Param())
	case "oneof":
		return fmt.Errorf("config: %s must be one of [%s], got %q", field, e.Param(), e.Value())
	default:
		return fmt.Errorf("config: %s failed %s", field, e.Tag())
	}
}

// Logger builds a slog logger writing to w at the configured level and format.
func (l LogConfig) Logger(w io.Writer) *slog.Logger {
	var level slog.Level
	switch l.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
