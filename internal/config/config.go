package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for sincro.
type Config struct {
	DataDir  string         `toml:"data_dir"`
	LogDir   string         `toml:"log_dir"`
	LogLevel string         `toml:"log_level"` // minimum level echoed to stderr: "debug", "info", "warn", "error"
	Database DatabaseConfig `toml:"database"`
	Watcher  WatcherConfig  `toml:"watcher"`
	Server   ServerConfig   `toml:"server"`
	Exclude  ExcludeConfig  `toml:"exclude"`
}

// DatabaseConfig represents configuration for the metadata database.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type string `toml:"type"`           // "sqlite" or "memory"
	Path string `toml:"path,omitempty"` // only used for type=sqlite
}

// WatcherConfig controls the filesystem watch on active deployments.
type WatcherConfig struct {
	Enabled  bool `toml:"enabled"`
	SettleMS int  `toml:"settle_ms"` // quiet period before a change event is emitted
}

// ServerConfig configures the local JSON API started by `sincro serve`.
type ServerConfig struct {
	ListenAddr string `toml:"listen_addr"`
}

// ExcludeConfig holds exclusion-related settings.
type ExcludeConfig struct {
	// GlobalExcludesFile overrides git's core.excludesFile lookup when set.
	GlobalExcludesFile string `toml:"global_excludes_file,omitempty"`
}

// FilesDir returns the directory holding one version store per managed file.
func (c *Config) FilesDir() string {
	return filepath.Join(c.DataDir, "files")
}

// NewConfig creates a new Config rooted at dataDir with default settings.
func NewConfig(dataDir string) *Config {
	return &Config{
		DataDir:  dataDir,
		LogDir:   filepath.Join(dataDir, "log"),
		LogLevel: "warn",
		Database: DatabaseConfig{
			Type: "sqlite",
			Path: filepath.Join(dataDir, "sincro.db"),
		},
		Watcher: WatcherConfig{
			Enabled:  true,
			SettleMS: 500,
		},
		Server: ServerConfig{
			ListenAddr: "127.0.0.1:7420",
		},
	}
}

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

func writeToFile(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
