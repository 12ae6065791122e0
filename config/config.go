// Package config loads the YAML description of an rpapi server and builds its API
// from it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jeremywhuff/rpapi/fields"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes the environment variables read by ApplyEnv.
const EnvPrefix = "RPAPI_"

var (
	ErrFileNotFound = errors.New("configuration file not found")
	ErrEmptyFile    = errors.New("configuration file is empty")
)

type Config struct {
	API       string           `yaml:"api"`
	Listen    string           `yaml:"listen"`
	OpenAPI   string           `yaml:"openapi"` // Route serving the OpenAPI document. Empty disables it.
	Metrics   string           `yaml:"metrics"` // Route serving Prometheus metrics. Empty disables it.
	Mongo     MongoConfig      `yaml:"mongo"`
	Log       LogConfig        `yaml:"log"`
	Auth      AuthConfig       `yaml:"auth"`
	Resources []ResourceConfig `yaml:"resources"`
}

type MongoConfig struct {
	URI      string        `yaml:"uri"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

// AuthConfig enables bearer token authentication on every route when Secret is set.
// Rule is an authorization expression applied API-wide.
type AuthConfig struct {
	Secret string `yaml:"secret"`
	Rule   string `yaml:"rule"`
}

type ResourceConfig struct {
	Path          string        `yaml:"path"`
	Name          string        `yaml:"name"`
	Collection    string        `yaml:"collection"` // Defaults to Name
	Authorization string        `yaml:"authorization"`
	Fields        []FieldConfig `yaml:"fields"`

	Filterable   []string `yaml:"filterable"`
	Sortable     []string `yaml:"sortable"`
	Selectable   []string `yaml:"selectable"`
	DefaultLimit int      `yaml:"defaultLimit"`
	MaxLimit     int      `yaml:"maxLimit"`

	UnfilteredWrites bool `yaml:"unfilteredWrites"`
}

type FieldConfig struct {
	Kind           string `yaml:"kind"`
	fields.Options `yaml:",inline"`
}

// Default returns the configuration used for keys a file leaves out.
func Default() Config {
	return Config{
		API:     "api",
		Listen:  ":8080",
		OpenAPI: "/openapi.json",
		Metrics: "/metrics",
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "rpapi",
			Timeout:  10 * time.Second,
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads a YAML file, then applies environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

// Parse decodes YAML over Default. It does not read the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	return &cfg, nil
}

// ApplyEnv overrides settings from RPAPI_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"API":            &c.API,
		"LISTEN":         &c.Listen,
		"OPENAPI":        &c.OpenAPI,
		"METRICS":        &c.Metrics,
		"MONGO_URI":      &c.Mongo.URI,
		"MONGO_DATABASE": &c.Mongo.Database,
		"LOG_LEVEL":      &c.Log.Level,
		"LOG_FORMAT":     &c.Log.Format,
		"AUTH_SECRET":    &c.Auth.Secret,
		"AUTH_RULE":      &c.Auth.Rule,
	}
	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}

	if v, ok := lookup(EnvPrefix + "MONGO_TIMEOUT"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sMONGO_TIMEOUT: %w", EnvPrefix, err)
		}
		c.Mongo.Timeout = d
	}
	if v, ok := lookup(EnvPrefix + "LOG_SOURCE"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sLOG_SOURCE: %w", EnvPrefix, err)
		}
		c.Log.AddSource = b
	}
	return nil
}

// Validate checks what the API builder cannot. Field options are checked when the
// fields are built.
func (c *Config) Validate() error {
	if c.API == "" {
		return errors.New("api name is required")
	}
	if c.Mongo.URI == "" || c.Mongo.Database == "" {
		return errors.New("mongo uri and database are required")
	}
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	seen := make(map[string]bool)
	for i, r := range c.Resources {
		if r.Path == "" {
			return fmt.Errorf("resources[%d]: path is required", i)
		}
		if seen[r.Path] {
			return fmt.Errorf("resources[%d]: path %q is declared twice", i, r.Path)
		}
		seen[r.Path] = true
		for j, f := range r.Fields {
			if f.Kind == "" {
				return fmt.Errorf("resources[%d].fields[%d]: kind is required", i, j)
			}
		}
	}
	return nil
}
