package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".gradientbot.yaml"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// File is the structure of the YAML configuration file.
type File struct {
	// ExtensionID overrides DefaultExtensionID.
	ExtensionID string `yaml:"extensionId,omitempty"`

	// UserAgent overrides DefaultUserAgent.
	UserAgent string `yaml:"userAgent,omitempty"`

	// Dashboard overrides individual dashboard settings.
	Dashboard Dashboard `yaml:"dashboard,omitempty"`
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}
	return &cf, nil
}

// WithFile returns c with the file overrides applied.
func (c Config) WithFile(f *File) Config {
	if f == nil {
		return c
	}
	setIfNotEmpty(&c.ExtensionID, f.ExtensionID)
	setIfNotEmpty(&c.UserAgent, f.UserAgent)
	c.Dashboard = c.Dashboard.Merge(f.Dashboard)
	return c
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .gradientbot.yaml in the current directory
// 3. Look for .gradientbot.yaml in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	if cwd, err := os.Getwd(); err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
