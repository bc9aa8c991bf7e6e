package app

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// ServerConfig defines how the board backend should run. Fields map onto
// the optional YAML config file; flags and environment variables override.
type ServerConfig struct {
	Addr           string  `yaml:"addr"`
	DataDir        string  `yaml:"data_dir"`
	UploadDir      string  `yaml:"upload_dir"`
	Store          string  `yaml:"store"` // "json" (default) or "sqlite"
	MaxFileSize    int64   `yaml:"max_file_size"`
	FrontendOrigin string  `yaml:"frontend_origin"`
	WriteRPS       float64 `yaml:"write_rps"`
	WriteBurst     int     `yaml:"write_burst"`
	LogLevel       string  `yaml:"log_level"`
}

// LoadConfigFile reads a YAML config. A missing path yields a zero config
// so the file stays optional.
func LoadConfigFile(path string) (ServerConfig, error) {
	var cfg ServerConfig
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func (cfg *ServerConfig) applyDefaults() {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir()
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = filepath.Join(cfg.DataDir, "uploads")
	}
	if cfg.Store == "" {
		cfg.Store = "json"
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 10 << 20
	}
}

// DefaultDataDir returns a per-user data path for the board's files.
func DefaultDataDir() string {
	if env := os.Getenv("SHAREBOARD_DATA_DIR"); env != "" {
		return env
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "shareboard")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "Shareboard")
		}
	}
	if home, err := os.UserHomeDir(); err == nil {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, "Library", "Application Support", "Shareboard")
		}
		return filepath.Join(home, ".local", "share", "shareboard")
	}
	return filepath.Join(".", ".shareboard")
}
