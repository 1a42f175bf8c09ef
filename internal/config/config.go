// Package config manages flixstore configuration and the .flixstore data
// directory layout.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	FlixDir      = ".flixstore"
	ConfigFile   = "config"
	DocumentsDB  = "documents.db"
	DocumentsDir = "documents" // badger driver uses a directory
	BlobsDB      = "blobs.db"
)

// Substrate drivers.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// Defaults. The value quota mirrors the ~5 MB budget the original runtime
// imposed on its flat store.
const (
	DefaultMaxValueSize = 5 * 1024 * 1024
	DefaultChunkSize    = 5 * 1024 * 1024
	DefaultInitTimeout  = 15 // seconds
)

// Config is the store configuration.
type Config struct {
	KVDriver        string `toml:"kv_driver"`
	MaxValueSize    int    `toml:"max_value_size"`
	ChunkSize       int    `toml:"chunk_size"`
	InitTimeoutSecs int    `toml:"init_timeout_secs"`

	path string // path to the .flixstore directory
}

// FindRoot locates the .flixstore directory by walking up from the current
// directory.
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		p := filepath.Join(dir, FlixDir)
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			return p, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a flixstore data directory (or any parent up to root)")
		}
		dir = parent
	}
}

// Load reads the configuration from the nearest .flixstore directory.
func Load() (*Config, error) {
	root, err := FindRoot()
	if err != nil {
		return nil, err
	}
	return LoadFrom(root)
}

// LoadFrom reads the configuration from an explicit .flixstore directory.
func LoadFrom(root string) (*Config, error) {
	data, err := os.ReadFile(filepath.Join(root, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.path = root
	cfg.applyDefaults()
	return &cfg, nil
}

// Save writes the configuration to disk.
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(c.path, ConfigFile), data, 0644)
}

// Initialize creates a new .flixstore directory with the default
// configuration.
func Initialize(driver string) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return InitializeAt(cwd, driver)
}

// InitializeAt creates a .flixstore directory under the given base
// directory.
func InitializeAt(base, driver string) (*Config, error) {
	switch driver {
	case "", DriverSQLite, DriverBadger:
	default:
		return nil, fmt.Errorf("unknown kv driver %q", driver)
	}
	if driver == "" {
		driver = DriverSQLite
	}

	root := filepath.Join(base, FlixDir)
	if _, err := os.Stat(root); err == nil {
		return nil, fmt.Errorf("flixstore data directory already exists")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	cfg := &Config{KVDriver: driver, path: root}
	cfg.applyDefaults()

	if err := cfg.Save(); err != nil {
		os.RemoveAll(root)
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.KVDriver == "" {
		c.KVDriver = DriverSQLite
	}
	if c.MaxValueSize == 0 {
		c.MaxValueSize = DefaultMaxValueSize
	}
	if c.ChunkSize == 0 {
		c.ChunkSize = DefaultChunkSize
	}
	if c.InitTimeoutSecs == 0 {
		c.InitTimeoutSecs = DefaultInitTimeout
	}
}

// Path returns the .flixstore directory.
func (c *Config) Path() string {
	return c.path
}

// DocumentsPath returns the substrate location for the configured driver.
func (c *Config) DocumentsPath() string {
	if c.KVDriver == DriverBadger {
		return filepath.Join(c.path, DocumentsDir)
	}
	return filepath.Join(c.path, DocumentsDB)
}

// BlobsPath returns the blob database file.
func (c *Config) BlobsPath() string {
	return filepath.Join(c.path, BlobsDB)
}
