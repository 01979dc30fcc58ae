package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// DataDirName is the server-private directory below the root holding the
// user registry and config.toml.
const DataDirName = ".minidrive"

const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
)

// Config is the top-level configuration loaded from config.toml.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Storage StorageConfig `toml:"storage"`
	Auth    AuthConfig    `toml:"auth"`
	Sandbox SandboxConfig `toml:"sandbox"`
}

// ServerConfig holds listener and session-lifecycle settings.
type ServerConfig struct {
	// TCP listen address (e.g. "0.0.0.0:9000").
	Listen string `toml:"listen"`
	// Optional WebSocket listen address. Empty disables the listener.
	WSListen string `toml:"ws_listen"`
	// How often dead sessions are removed from the registry.
	ReapInterval Duration `toml:"reap_interval"`
	// Frames with a larger payload are discarded.
	MaxPayload uint32 `toml:"max_payload"`
}

// StorageConfig selects the user registry backend.
type StorageConfig struct {
	Backend string `toml:"backend"`
}

// AuthConfig holds argon2id cost parameters for new password hashes.
type AuthConfig struct {
	Argon2Time      uint32 `toml:"argon2_time"`
	Argon2MemoryKiB uint32 `toml:"argon2_memory_kib"`
	Argon2Threads   uint8  `toml:"argon2_threads"`
}

// SandboxConfig controls path confinement beyond the lexical check.
type SandboxConfig struct {
	ResolveSymlinks bool `toml:"resolve_symlinks"`
	Landlock        bool `toml:"landlock"`
}

// Duration is a time.Duration that decodes from strings like "60s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the configuration used when no config.toml exists.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Listen:       "0.0.0.0:9000",
			ReapInterval: Duration{60 * time.Second},
			MaxPayload:   16 * 1024 * 1024,
		},
		Storage: StorageConfig{Backend: BackendJSON},
		Auth: AuthConfig{
			Argon2Time:      3,
			Argon2MemoryKiB: 64 * 1024,
			Argon2Threads:   2,
		},
		Sandbox: SandboxConfig{ResolveSymlinks: true},
	}
}

// Path returns the location of config.toml for a server root.
func Path(root string) string {
	return filepath.Join(root, DataDirName, "config.toml")
}

// LoadConfig reads config.toml below root, applies environment variable
// overrides, and validates the result. A missing file yields the defaults.
func LoadConfig(root string) (*Config, error) {
	path := Path(root)
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if listen := os.Getenv("MINIDRIVE_LISTEN"); listen != "" {
		cfg.Server.Listen = listen
	}
	if ws := os.Getenv("MINIDRIVE_WS_LISTEN"); ws != "" {
		cfg.Server.WSListen = ws
	}
	if backend := os.Getenv("MINIDRIVE_STORAGE_BACKEND"); backend != "" {
		cfg.Storage.Backend = backend
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges that the server cannot recover from.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendJSON, BackendSQLite:
	default:
		return fmt.Errorf("storage.backend must be %q or %q, got %q", BackendJSON, BackendSQLite, c.Storage.Backend)
	}
	if c.Server.Listen == "" {
		return fmt.Errorf("server.listen must not be empty")
	}
	if c.Server.ReapInterval.Duration <= 0 {
		return fmt.Errorf("server.reap_interval must be positive, got %s", c.Server.ReapInterval)
	}
	if c.Auth.Argon2Time == 0 {
		return fmt.Errorf("auth.argon2_time must be positive")
	}
	if c.Auth.Argon2Threads == 0 {
		return fmt.Errorf("auth.argon2_threads must be positive")
	}
	if c.Auth.Argon2MemoryKiB < 8*uint32(c.Auth.Argon2Threads) {
		return fmt.Errorf("auth.argon2_memory_kib must be at least %d for %d threads",
			8*uint32(c.Auth.Argon2Threads), c.Auth.Argon2Threads)
	}
	return nil
}

// Save writes the configuration to config.toml below root, creating the data
// directory if necessary.
func (c *Config) Save(root string) error {
	path := Path(root)
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(c); err != nil {
		return fmt.Errorf("encoding config.toml: %w", err)
	}
	return nil
}
