// Package config provides unified configuration for Tidemark tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Backend names recognized by the datastore registry.
const (
	BackendWarehouse = "warehouse"
	BackendEmbedded  = "embedded"
	BackendMock      = "mock"
)

// Config holds the unified configuration for Tidemark tools.
type Config struct {
	// Datastore configuration
	Datastore DatastoreConfig `json:"datastore" yaml:"datastore"`
}

// DatastoreConfig selects and configures the datastore backend.
type DatastoreConfig struct {
	// Backend is the datastore backend: warehouse, embedded, mock
	Backend string `json:"backend" yaml:"backend"`

	// Warehouse configuration (for the warehouse backend)
	Warehouse WarehouseConfig `json:"warehouse" yaml:"warehouse"`

	// Embedded configuration (for the embedded backend)
	Embedded EmbeddedConfig `json:"embedded" yaml:"embedded"`
}

// WarehouseConfig holds Athena warehouse configuration.
type WarehouseConfig struct {
	// Region is the AWS region
	Region string `json:"region" yaml:"region"`

	// Workgroup is the Athena workgroup queries run in
	Workgroup string `json:"workgroup" yaml:"workgroup"`

	// Catalog is the default data catalog for unqualified tables
	Catalog string `json:"catalog" yaml:"catalog"`

	// Database is the default database for unqualified tables
	Database string `json:"database" yaml:"database"`

	// OutputLocation is the S3 URI Athena writes query results to
	OutputLocation string `json:"output_location" yaml:"output_location"`

	// DataBucket is the S3 bucket holding table data
	DataBucket string `json:"data_bucket" yaml:"data_bucket"`

	// DataPrefix is the key prefix under DataBucket for table data
	DataPrefix string `json:"data_prefix" yaml:"data_prefix"`

	// Endpoint is an optional custom endpoint (for LocalStack etc.)
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// PollInterval is the delay between query state polls
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`
}

// EmbeddedConfig holds embedded engine configuration.
type EmbeddedConfig struct {
	// Path is the SQLite database file; empty means in-memory
	Path string `json:"path" yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Datastore: DatastoreConfig{
			Backend: BackendWarehouse,
			Warehouse: WarehouseConfig{
				Region:       "us-east-1",
				Workgroup:    "primary",
				Catalog:      "AwsDataCatalog",
				Database:     "tidemark",
				DataPrefix:   "tables",
				PollInterval: 500 * time.Millisecond,
			},
			Embedded: EmbeddedConfig{
				Path: "",
			},
		},
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Datastore.Backend {
	case BackendWarehouse, BackendEmbedded, BackendMock:
		// Valid backends
	default:
		return fmt.Errorf("invalid backend: %s (must be warehouse, embedded, or mock)", c.Datastore.Backend)
	}

	if c.Datastore.Backend == BackendWarehouse {
		w := c.Datastore.Warehouse
		if w.Database == "" {
			return fmt.Errorf("warehouse.database is required when backend is warehouse")
		}
		if w.OutputLocation == "" {
			return fmt.Errorf("warehouse.output_location is required when backend is warehouse")
		}
		if w.DataBucket == "" {
			return fmt.Errorf("warehouse.data_bucket is required when backend is warehouse")
		}
		if w.PollInterval <= 0 {
			return fmt.Errorf("warehouse.poll_interval must be positive, got %s", w.PollInterval)
		}
	}

	return nil
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the TIDEMARK_ prefix.
func LoadFromEnv(cfg *Config) {
	if v := os.Getenv("TIDEMARK_BACKEND"); v != "" {
		cfg.Datastore.Backend = v
	}

	// Warehouse configuration
	if v := os.Getenv("TIDEMARK_WAREHOUSE_REGION"); v != "" {
		cfg.Datastore.Warehouse.Region = v
	}
	if v := os.Getenv("TIDEMARK_WAREHOUSE_WORKGROUP"); v != "" {
		cfg.Datastore.Warehouse.Workgroup = v
	}
	if v := os.Getenv("TIDEMARK_WAREHOUSE_CATALOG"); v != "" {
		cfg.Datastore.Warehouse.Catalog = v
	}
	if v := os.Getenv("TIDEMARK_WAREHOUSE_DATABASE"); v != "" {
		cfg.Datastore.Warehouse.Database = v
	}
	if v := os.Getenv("TIDEMARK_WAREHOUSE_OUTPUT_LOCATION"); v != "" {
		cfg.Datastore.Warehouse.OutputLocation = v
	}
	if v := os.Getenv("TIDEMARK_WAREHOUSE_DATA_BUCKET"); v != "" {
		cfg.Datastore.Warehouse.DataBucket = v
	}
	if v := os.Getenv("TIDEMARK_WAREHOUSE_DATA_PREFIX"); v != "" {
		cfg.Datastore.Warehouse.DataPrefix = v
	}
	if v := os.Getenv("TIDEMARK_WAREHOUSE_ENDPOINT"); v != "" {
		cfg.Datastore.Warehouse.Endpoint = v
	}
	if v := os.Getenv("TIDEMARK_WAREHOUSE_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Datastore.Warehouse.PollInterval = d
		}
	}

	// Embedded configuration
	if v := os.Getenv("TIDEMARK_EMBEDDED_PATH"); v != "" {
		cfg.Datastore.Embedded.Path = v
	}
}

// Load resolves the effective configuration: file (if given) or defaults,
// then environment overrides, then validation.
func Load(path string) (*Config, error) {
	var cfg *Config
	var err error

	if path != "" {
		cfg, err = LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = DefaultConfig()
	}

	LoadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}
