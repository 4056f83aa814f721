// Package config handles webaoi configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level webaoi configuration.
type Config struct {
	// StartURL is the first page opened in define mode. In record mode an
	// empty StartURL means the first page of the definitions document.
	StartURL string `yaml:"start_url"`

	// Output is the definitions file written by the file sink.
	Output string `yaml:"output"`

	// Definitions is the document read by record and screenshot modes.
	Definitions string `yaml:"definitions"`

	// SaveOnExit exports once more when the session ends.
	SaveOnExit bool `yaml:"save_on_exit"`

	// ClimbKey moves the hover to the first visibly larger ancestor.
	ClimbKey string `yaml:"climb_key"`

	// DB is the SQLite file used by the sqlite sink and the serve command.
	DB string `yaml:"db"`

	Browser BrowserConfig `yaml:"browser"`
	Sinks   []SinkConfig  `yaml:"sinks"`
	Serve   ServeConfig   `yaml:"serve"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Bin              string        `yaml:"bin"`
	Mode             string        `yaml:"mode"` // headful | headless | xvfb
	Stealth          bool          `yaml:"stealth"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	NavigateTimeout  time.Duration `yaml:"navigate_timeout"`
	Viewport         ViewportSize  `yaml:"viewport"`
}

// ViewportSize is the initial page viewport. Zero keeps the browser default.
type ViewportSize struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type   string `yaml:"type"`   // file | stdout | webhook | sqlite
	Path   string `yaml:"path"`   // file: definitions path; sqlite: database
	Events string `yaml:"events"` // file: optional event log
	URL    string `yaml:"url"`    // webhook
	Batch  int    `yaml:"batch"`  // webhook: events per POST, default 50
}

// ServeConfig controls the read API.
type ServeConfig struct {
	Addr string `yaml:"addr"`
}

// Sink types.
const (
	SinkFile    = "file"
	SinkStdout  = "stdout"
	SinkWebhook = "webhook"
	SinkSQLite  = "sqlite"
)

// Browser modes.
const (
	ModeHeadful  = "headful"
	ModeHeadless = "headless"
	ModeXvfb     = "xvfb"
)

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Browser.Mode {
	case ModeHeadful, ModeHeadless, ModeXvfb:
	default:
		return fmt.Errorf("config: unknown browser mode %q", c.Browser.Mode)
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case SinkFile, SinkStdout, SinkSQLite:
		case SinkWebhook:
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook needs url", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	if len([]rune(c.ClimbKey)) != 1 {
		return fmt.Errorf("config: climb_key must be one character, got %q", c.ClimbKey)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Output == "" {
		c.Output = "web-aois.json"
	}
	if c.Definitions == "" {
		c.Definitions = c.Output
	}
	if c.ClimbKey == "" {
		c.ClimbKey = "p"
	}
	if c.DB == "" {
		c.DB = "webaoi.db"
	}
	if c.Browser.Mode == "" {
		c.Browser.Mode = ModeHeadful
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.NavigateTimeout <= 0 {
		c.Browser.NavigateTimeout = 30 * time.Second
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: SinkFile}}
	}
	for i := range c.Sinks {
		switch c.Sinks[i].Type {
		case SinkFile:
			if c.Sinks[i].Path == "" {
				c.Sinks[i].Path = c.Output
			}
		case SinkSQLite:
			if c.Sinks[i].Path == "" {
				c.Sinks[i].Path = c.DB
			}
		}
	}
	if c.Serve.Addr == "" {
		c.Serve.Addr = ":8086"
	}
}
