package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"slices"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix marks environment variables read by LoadServer. Nested keys are
// separated by a double underscore, e.g. CIFRADO_METRICS__ENABLED=false.
const EnvPrefix = "CIFRADO_"

type Server struct {
	Listen          string        `koanf:"listen"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`

	CORS    CORS    `koanf:"cors"`
	Metrics Metrics `koanf:"metrics"`
	Log     Log     `koanf:"log"`
}

type CORS struct {
	AllowOrigins []string `koanf:"allow_origins"`
}

type Metrics struct {
	Enabled *bool  `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// On reports whether the metrics endpoint is served. Unset means on.
func (m Metrics) On() bool {
	return m.Enabled == nil || *m.Enabled
}

type Log struct {
	Level string `koanf:"level"`
	JSON  bool   `koanf:"json"`
}

// LoadServer merges the YAML file at path (optional, a missing file is not an
// error) with CIFRADO_* environment variables and fills in defaults.
func LoadServer(path string) (Server, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil &&
			!errors.Is(err, fs.ErrNotExist) {
			return Server{}, fmt.Errorf("read server config: %w", err)
		}
	}
	if err := k.Load(env.Provider(EnvPrefix, "__", envKey), nil); err != nil {
		return Server{}, fmt.Errorf("read environment: %w", err)
	}

	var cfg Server
	if err := k.Unmarshal("", &cfg); err != nil {
		return Server{}, fmt.Errorf("parse server config: %w", err)
	}
	ApplyServerDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

func envKey(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

func ApplyServerDefaults(c *Server) {
	if c.Listen == "" {
		c.Listen = ":8000"
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 60 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	if c.MaxBodyBytes == 0 {
		c.MaxBodyBytes = 1 << 20
	}
	if len(c.CORS.AllowOrigins) == 0 {
		c.CORS.AllowOrigins = []string{"*"}
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

func (c Server) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", c.Listen, err)
	}
	if c.MaxBodyBytes < 0 {
		return fmt.Errorf("max_body_bytes must be positive, got %d", c.MaxBodyBytes)
	}
	if err := validateMetricsPath(c.Metrics.Path); err != nil {
		return err
	}
	return nil
}

// reservedPaths are served by the API and the form page.
var reservedPaths = []string{"/", "/healthz", "/encode", "/decode", "/process"}

func validateMetricsPath(p string) error {
	if !strings.HasPrefix(p, "/") {
		return fmt.Errorf("metrics path must start with /: %q", p)
	}
	if strings.ContainsAny(p, "{} \t\r\n") {
		return fmt.Errorf("metrics path must be a literal path: %q", p)
	}
	if slices.Contains(reservedPaths, p) {
		return fmt.Errorf("metrics path %q is already served by the API", p)
	}
	return nil
}
