// Package config provides the configuration for the ETL pipeline.
// A single PipelineConfig is built once at the program entry point and
// passed down; core components never probe the environment themselves.
//
// Example usage:
//
//	cfg, err := config.LoadPipelineConfig("pipeline.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config

import (
	"fmt"
	"strings"
	"time"
)

// LoadMode selects how the LoadEngine writes a batch into its target table.
type LoadMode string

const (
	// LoadModeTruncate replaces the whole table (current-snapshot semantics)
	LoadModeTruncate LoadMode = "truncate"
	// LoadModeAppend stages and merges, skipping duplicate identity keys
	// (history semantics)
	LoadModeAppend LoadMode = "append"
)

// PipelineConfig is the single configuration structure for one pipeline.
type PipelineConfig struct {
	// Name identifies the pipeline instance
	Name string `yaml:"name" json:"name"`

	// API configures the upstream property-search client
	API APIConfig `yaml:"api" json:"api"`

	// Database configures the destination Postgres instance
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Target configures the destination schema/table and load mode
	Target TargetConfig `yaml:"target" json:"target"`

	// Artifacts configures the inter-stage file handoff directory
	Artifacts ArtifactsConfig `yaml:"artifacts" json:"artifacts"`

	// Logging configures structured log output
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// APIConfig contains upstream property-search API settings.
type APIConfig struct {
	// BaseURL of the search endpoint
	BaseURL string `yaml:"base_url" json:"base_url"`
	// Key is the RapidAPI key
	Key string `yaml:"key" json:"key"`
	// Host is the RapidAPI host header value
	Host string `yaml:"host" json:"host"`
	// Locations to search, one fetch per location
	Locations []string `yaml:"locations" json:"locations"`
	// Status filters listings (e.g. "ForSale", "ForRent")
	Status string `yaml:"status" json:"status"`
	// HomeType filters the property category
	HomeType string `yaml:"home_type" json:"home_type"`
	// Timeout for a single search request
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
	// MaxConcurrency bounds concurrent per-location fetches
	MaxConcurrency int `yaml:"max_concurrency" json:"max_concurrency"`
	// RequestsPerSecond throttles the search API client
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
}

// DatabaseConfig contains Postgres connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Name     string `yaml:"name" json:"name"`
	User     string `yaml:"user" json:"user"`
	Password string `yaml:"password" json:"password"`
	SSLMode  string `yaml:"ssl_mode" json:"ssl_mode"`
}

// DSN renders the pgx connection string.
func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslMode)
}

// TargetConfig names the destination table and the load semantics.
type TargetConfig struct {
	// Schema is the destination schema name
	Schema string `yaml:"schema" json:"schema"`
	// Table is the destination table name
	Table string `yaml:"table" json:"table"`
	// Mode selects truncate (snapshot) or append (history) semantics
	Mode LoadMode `yaml:"mode" json:"mode"`
}

// ArtifactsConfig controls the stage-output file handoff.
type ArtifactsConfig struct {
	// Dir is the working directory for timestamped and latest stage files
	Dir string `yaml:"dir" json:"dir"`
}

// LoggingConfig controls structured log output.
type LoggingConfig struct {
	Level       string `yaml:"level" json:"level"`
	Encoding    string `yaml:"encoding" json:"encoding"`
	Development bool   `yaml:"development" json:"development"`
}

// NewPipelineConfig creates a PipelineConfig with sensible defaults.
// Specific deployments override these through the YAML file.
func NewPipelineConfig(name string) *PipelineConfig {
	return &PipelineConfig{
		Name: name,
		API: APIConfig{
			BaseURL:           "https://zillow-com1.p.rapidapi.com/propertyExtendedSearch",
			Host:              "zillow-com1.p.rapidapi.com",
			Locations:         []string{"Las Vegas, NV"},
			Status:            "ForSale",
			HomeType:          "Houses",
			Timeout:           30 * time.Second,
			MaxConcurrency:    4,
			RequestsPerSecond: 2,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Target: TargetConfig{
			Schema: "real_estate_data",
			Table:  "properties_sale_prices",
			Mode:   LoadModeAppend,
		},
		Artifacts: ArtifactsConfig{
			Dir: "data",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Encoding: "json",
		},
	}
}

// Validate validates the configuration for correctness.
// Call this after loading configuration to catch errors early.
func (c *PipelineConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Target.Schema == "" || c.Target.Table == "" {
		return fmt.Errorf("target.schema and target.table are required")
	}
	if c.Target.Mode != LoadModeTruncate && c.Target.Mode != LoadModeAppend {
		return fmt.Errorf("target.mode must be %q or %q", LoadModeTruncate, LoadModeAppend)
	}
	if len(c.API.Locations) == 0 {
		return fmt.Errorf("api.locations must list at least one location")
	}
	for _, loc := range c.API.Locations {
		if strings.TrimSpace(loc) == "" {
			return fmt.Errorf("api.locations must not contain empty entries")
		}
	}
	if c.API.MaxConcurrency <= 0 {
		return fmt.Errorf("api.max_concurrency must be positive")
	}
	if c.Artifacts.Dir == "" {
		return fmt.Errorf("artifacts.dir is required")
	}
	return nil
}
