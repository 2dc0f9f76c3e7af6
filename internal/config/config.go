// Package config handles launcher configuration parsing and location resolution.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// EnvConfig names the environment variable holding an explicit config path.
const EnvConfig = "MEMATE_LAUNCHER_CONFIG"

// ErrNotFound is returned by Find when no config file exists in any location.
var ErrNotFound = errors.New("no launcher config found")

// fileNames are probed in order inside every search directory.
var fileNames = []string{
	"launcher.yaml",
	"launcher.yml",
	"launcher.toml",
	"launcher.json",
}

// Repository identifies the GitHub repository publishing client releases.
type Repository struct {
	Owner string `yaml:"owner" toml:"owner" json:"owner"`
	Name  string `yaml:"name" toml:"name" json:"name"`
}

// Network bounds the HTTP clients.
type Network struct {
	ConnectTimeout  Duration `yaml:"connect_timeout" toml:"connect_timeout" json:"connect_timeout"`
	MetadataTimeout Duration `yaml:"metadata_timeout" toml:"metadata_timeout" json:"metadata_timeout"`
}

// Log configures the logger.
type Log struct {
	Level string `yaml:"level" toml:"level" json:"level"`
	File  string `yaml:"file" toml:"file" json:"file"` // "console" disables the file
}

// Config represents the parsed launcher configuration.
type Config struct {
	Version               int        `yaml:"version" toml:"version" json:"version"`
	InstallRoot           string     `yaml:"install_root" toml:"install_root" json:"install_root"`
	Repository            Repository `yaml:"repository" toml:"repository" json:"repository"`
	Release               string     `yaml:"release" toml:"release" json:"release"`
	APIBaseURL            string     `yaml:"api_base_url" toml:"api_base_url" json:"api_base_url"`
	DownloadBaseURL       string     `yaml:"download_base_url" toml:"download_base_url" json:"download_base_url"`
	ClientBinary          string     `yaml:"client_binary" toml:"client_binary" json:"client_binary"`
	VerifyRuntimeChecksum bool       `yaml:"verify_runtime_checksum" toml:"verify_runtime_checksum" json:"verify_runtime_checksum"`
	Launch                bool       `yaml:"launch" toml:"launch" json:"launch"`
	Network               Network    `yaml:"network" toml:"network" json:"network"`
	ProgressInterval      Duration   `yaml:"progress_interval" toml:"progress_interval" json:"progress_interval"`
	LockTimeout           Duration   `yaml:"lock_timeout" toml:"lock_timeout" json:"lock_timeout"`
	HistoryKeep           int        `yaml:"history_keep" toml:"history_keep" json:"history_keep"`
	Log                   Log        `yaml:"log" toml:"log" json:"log"`

	// Path is the file the config was loaded from, empty for defaults.
	Path string `yaml:"-" toml:"-" json:"-"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version:               1,
		Repository:            Repository{Owner: "isp-insoft-gmbh", Name: "MeMate"},
		Release:               "latest",
		APIBaseURL:            "https://api.github.com",
		DownloadBaseURL:       "https://github.com",
		ClientBinary:          "memate.exe",
		VerifyRuntimeChecksum: true,
		Launch:                true,
		Network: Network{
			ConnectTimeout:  Duration(30 * time.Second),
			MetadataTimeout: Duration(30 * time.Second),
		},
		ProgressInterval: Duration(20 * time.Millisecond),
		LockTimeout:      Duration(10 * time.Second),
		HistoryKeep:      10,
		Log:              Log{Level: "info"},
	}
}

// DefaultInstallRoot returns <UserConfigDir>/MeMate/Installation, which is
// %APPDATA%\MeMate\Installation on Windows.
func DefaultInstallRoot() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine user config directory: %w", err)
	}
	return filepath.Join(dir, "MeMate", "Installation"), nil
}

// Find searches for a launcher config in the standard locations.
// installRoot may be empty, in which case the default root is searched.
// Returns ErrNotFound when no location holds a config.
func Find(explicitPath, installRoot string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("specified config not found: %s", explicitPath)
		}
		return explicitPath, nil
	}

	if envPath := os.Getenv(EnvConfig); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath, nil
		}
	}

	var searchPaths []string
	if installRoot == "" {
		if root, err := DefaultInstallRoot(); err == nil {
			installRoot = root
		}
	}
	if installRoot != "" {
		searchPaths = append(searchPaths, installRoot)
	}
	if dir, err := os.UserConfigDir(); err == nil {
		searchPaths = append(searchPaths, filepath.Join(dir, "MeMate"))
	}

	for _, dir := range searchPaths {
		for _, name := range fileNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path, nil
			}
		}
	}

	return "", ErrNotFound
}

// Load reads and parses a launcher config from the given path. Keys the file
// omits keep their default values.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	format := detectFormat(path, content)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unable to detect file format for %s", path)
	}

	cfg, err := parse(content, format)
	if err != nil {
		return nil, err
	}
	cfg.Path = path

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Discover finds and loads the config, falling back to Default when none exists.
func Discover(explicitPath, installRoot string) (*Config, error) {
	path, err := Find(explicitPath, installRoot)
	if errors.Is(err, ErrNotFound) {
		return Default(), nil
	}
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// ResolveInstallRoot fills an empty InstallRoot with the default location.
func (c *Config) ResolveInstallRoot() error {
	if c.InstallRoot != "" {
		return nil
	}
	root, err := DefaultInstallRoot()
	if err != nil {
		return err
	}
	c.InstallRoot = root
	return nil
}

// LogFile returns the configured log path, defaulting to launcher.log inside
// the install root.
func (c *Config) LogFile(defaultPath string) string {
	if c.Log.File == "" {
		return defaultPath
	}
	return c.Log.File
}
