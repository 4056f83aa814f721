package annotator

import (
	"github.com/hazyhaar/webaoi/internal/config"
)

// Config is the top-level webaoi configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// ViewportSize is the initial page viewport.
type ViewportSize = config.ViewportSize

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// ServeConfig controls the read API.
type ServeConfig = config.ServeConfig

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}
