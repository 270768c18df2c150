package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jneschisi/dart-frog/internal/daemon"
	"github.com/jneschisi/dart-frog/internal/protocol"
)

const (
	DefaultConfigDir  = ".config/dartfrog"
	DefaultConfigFile = "config.yaml"
)

// Default returns the configuration used when no config file exists
func Default() *Config {
	return &Config{
		Daemon: DaemonConfig{
			Executable: daemon.DefaultExecutable,
			Args:       []string{daemon.DaemonSubcommand},
		},
		Server: ServerConfig{
			Port:          DefaultPort,
			VMServicePort: DefaultVMServicePort,
		},
		RequestIDs: RequestIDsIncremental,
	}
}

// LoadConfig loads configuration from the specified path or default location
// If path is empty, uses ~/.config/dartfrog/config.yaml (or config.json) and
// falls back to Default() when neither exists.
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		if _, err := os.UserHomeDir(); err != nil {
			return nil, fmt.Errorf("cannot determine home directory: %w", err)
		}
		yamlPath := GetConfigPath()
		jsonPath := filepath.Join(filepath.Dir(yamlPath), "config.json")

		if _, err := os.Stat(yamlPath); err == nil {
			path = yamlPath
		} else if _, err := os.Stat(jsonPath); err == nil {
			path = jsonPath
		} else {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	return LoadConfigFromBytes(data, ext)
}

// LoadConfigFromBytes loads configuration from raw bytes
// format should be "yaml" or "json"
func LoadConfigFromBytes(data []byte, format string) (*Config, error) {
	cfg := Default()

	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case "json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format: %s", format)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile)
}

// IdentifierGenerator returns the request id scheme named by requestIds
func (c *Config) IdentifierGenerator() protocol.IdentifierGenerator {
	if c.RequestIDs == RequestIDsUUID {
		return protocol.NewUUIDGenerator()
	}
	return protocol.NewIncrementalGenerator()
}

// Launcher returns a launcher for the configured daemon command
func (c *Config) Launcher() *daemon.ExecLauncher {
	l := daemon.DefaultLauncher()
	if c.Daemon.Executable != "" {
		l.Executable = c.Daemon.Executable
	}
	if len(c.Daemon.Args) > 0 {
		l.Args = append([]string(nil), c.Daemon.Args...)
	}
	return l
}

// TerminateGrace returns daemon.terminateGrace, or the session default
func (c *Config) TerminateGrace() time.Duration {
	if c.Daemon.TerminateGrace == "" {
		return daemon.DefaultTerminateGrace
	}
	d, err := time.ParseDuration(c.Daemon.TerminateGrace)
	if err != nil {
		return daemon.DefaultTerminateGrace
	}
	return d
}

// SessionOptions turns the configuration into daemon session options
func (c *Config) SessionOptions() []daemon.Option {
	return []daemon.Option{
		daemon.WithLauncher(c.Launcher()),
		daemon.WithIdentifierGenerator(c.IdentifierGenerator()),
		daemon.WithTerminateGrace(c.TerminateGrace()),
	}
}
