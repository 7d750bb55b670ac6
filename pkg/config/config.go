// Package config handles RuneDB configuration via environment
// variables and optional YAML files.
//
// All settings carry working defaults, so a zero-configuration start
// is always valid. Environment variables are prefixed RUNEDB_ and
// override file settings; LoadFromEnv reads them on top of the
// defaults.
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//
// Environment Variables:
//   - RUNEDB_STORAGE_ENGINE="memory" or "badger"
//   - RUNEDB_DATA_DIR="./data"
//   - RUNEDB_SYNC_WRITES=false
//   - RUNEDB_QUERY_CACHE_SIZE=1000
//   - RUNEDB_QUERY_CACHE_TTL=5m
//   - RUNEDB_STRICT_TOKENS=false
//   - RUNEDB_STRICT_CLAUSES=false
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage engine names accepted by StorageConfig.Engine.
const (
	EngineMemory = "memory"
	EngineBadger = "badger"
)

// Config holds all RuneDB configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Query   QueryConfig   `yaml:"query"`
}

// StorageConfig selects and tunes the graph store.
type StorageConfig struct {
	// Engine is "memory" or "badger".
	Engine string `yaml:"engine"`

	// DataDir is the directory for badger data files.
	DataDir string `yaml:"data_dir"`

	// SyncWrites forces fsync after each badger write.
	SyncWrites bool `yaml:"sync_writes"`
}

// QueryConfig tunes parsing and the parse cache.
type QueryConfig struct {
	// CacheSize is the maximum number of cached parsed queries.
	CacheSize int `yaml:"cache_size"`

	// CacheTTL expires cached entries; 0 disables expiration.
	CacheTTL time.Duration `yaml:"cache_ttl"`

	// StrictTokens rejects unrecognized characters instead of
	// skipping them.
	StrictTokens bool `yaml:"strict_tokens"`

	// StrictClauses rejects unrecognized top-level tokens instead of
	// skipping them.
	StrictClauses bool `yaml:"strict_clauses"`
}

// Default returns the configuration used when nothing is set: an
// in-memory engine with a permissive parser and a modest parse cache.
func Default() *Config {
	return &Config{
		Storage: StorageConfig{
			Engine:  EngineMemory,
			DataDir: "./data",
		},
		Query: QueryConfig{
			CacheSize: 1000,
			CacheTTL:  5 * time.Minute,
		},
	}
}

// LoadFromEnv builds a Config from RUNEDB_* environment variables on
// top of the defaults.
func LoadFromEnv() *Config {
	cfg := Default()

	cfg.Storage.Engine = getEnv("RUNEDB_STORAGE_ENGINE", cfg.Storage.Engine)
	cfg.Storage.DataDir = getEnv("RUNEDB_DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.SyncWrites = getEnvBool("RUNEDB_SYNC_WRITES", cfg.Storage.SyncWrites)

	cfg.Query.CacheSize = getEnvInt("RUNEDB_QUERY_CACHE_SIZE", cfg.Query.CacheSize)
	cfg.Query.CacheTTL = getEnvDuration("RUNEDB_QUERY_CACHE_TTL", cfg.Query.CacheTTL)
	cfg.Query.StrictTokens = getEnvBool("RUNEDB_STRICT_TOKENS", cfg.Query.StrictTokens)
	cfg.Query.StrictClauses = getEnvBool("RUNEDB_STRICT_CLAUSES", cfg.Query.StrictClauses)

	return cfg
}

// LoadFromFile reads a YAML config file on top of the defaults.
// Fields absent from the file keep their default values.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case EngineMemory, EngineBadger:
	default:
		return fmt.Errorf("invalid storage engine %q (want %q or %q)",
			c.Storage.Engine, EngineMemory, EngineBadger)
	}

	if c.Storage.Engine == EngineBadger && c.Storage.DataDir == "" {
		return fmt.Errorf("badger engine requires a data directory")
	}

	if c.Query.CacheSize < 0 {
		return fmt.Errorf("query cache size must not be negative, got %d", c.Query.CacheSize)
	}
	if c.Query.CacheTTL < 0 {
		return fmt.Errorf("query cache TTL must not be negative, got %v", c.Query.CacheTTL)
	}

	return nil
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		// Bare integers count as seconds.
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}
