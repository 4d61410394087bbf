// Package config handles dombind configuration from YAML files.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Controller names accepted in BinderConfig.Controller.
const (
	ControllerRecord = "record"
	ControllerStamp  = "stamp"
)

// Source kinds.
const (
	SourceFile = "file"
	SourceURL  = "url"
)

// Sink types.
const (
	SinkStdout  = "stdout"
	SinkWebhook = "webhook"
	SinkSQLite  = "sqlite"
)

// Config is the top-level dombind configuration.
type Config struct {
	Source   SourceConfig   `yaml:"source"`
	Browser  BrowserConfig  `yaml:"browser"`
	Debounce DebounceConfig `yaml:"debounce"`
	Binders  []BinderConfig `yaml:"binders"`
	Sinks    []SinkConfig   `yaml:"sinks"`
	HTTP     HTTPConfig     `yaml:"http"`
	Output   string         `yaml:"output"` // render the bound HTML here (file source only)
}

// SourceConfig names the document to bind.
type SourceConfig struct {
	Kind string `yaml:"kind"` // file | url
	Path string `yaml:"path"`
	URL  string `yaml:"url"`
}

// BrowserConfig controls Chrome for url sources.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"` // ws:// endpoint; empty launches a local Chrome
	Headless         *bool         `yaml:"headless"`
	Timeout          time.Duration `yaml:"timeout"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
}

// DebounceConfig controls mutation batching before a rescan. Window is a
// pointer so an explicit "0s" (deliver on the next turn) survives defaults.
type DebounceConfig struct {
	Window    *time.Duration `yaml:"window"`
	MaxBuffer int            `yaml:"max_buffer"`
}

// Delay returns the debounce window, or zero before ApplyDefaults.
func (d DebounceConfig) Delay() time.Duration {
	if d.Window == nil {
		return 0
	}
	return *d.Window
}

// BinderConfig defines one binder.
type BinderConfig struct {
	Name           string            `yaml:"name"`
	Selector       string            `yaml:"selector"`
	Controller     string            `yaml:"controller"` // record | stamp
	Attrs          map[string]string `yaml:"attrs"`      // stamp
	Require        []string          `yaml:"require"`    // stamp
	BoundAttr      string            `yaml:"bound_attr"`
	NoBindAttr     string            `yaml:"no_bind_attr"`
	DisableLogging bool              `yaml:"disable_logging"`
	Observe        bool              `yaml:"observe"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type        string        `yaml:"type"`         // stdout | webhook | sqlite
	URL         string        `yaml:"url"`          // webhook
	Path        string        `yaml:"path"`         // sqlite
	BusyTimeout time.Duration `yaml:"busy_timeout"` // sqlite; 0 keeps the 10s default
}

// HTTPConfig enables the HTTP surface when Addr is set.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoadFile reads a YAML configuration file, applies defaults and validates.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults fills zero fields. Callers that build a Config in code
// should call it before Validate.
func (c *Config) ApplyDefaults() {
	if c.Source.Kind == "" {
		if c.Source.URL != "" {
			c.Source.Kind = SourceURL
		} else {
			c.Source.Kind = SourceFile
		}
	}
	if c.Browser.Headless == nil {
		h := true
		c.Browser.Headless = &h
	}
	if c.Browser.Timeout <= 0 {
		c.Browser.Timeout = 30 * time.Second
	}
	if c.Debounce.Window == nil {
		w := 100 * time.Millisecond
		c.Debounce.Window = &w
	}
	if c.Debounce.MaxBuffer <= 0 {
		c.Debounce.MaxBuffer = 1000
	}
	for i := range c.Binders {
		if c.Binders[i].Controller == "" {
			c.Binders[i].Controller = ControllerRecord
		}
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: SinkStdout}}
	}
}

// Validate reports the first configuration error.
func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceFile, SourceURL:
	default:
		return fmt.Errorf("config: unknown source kind %q", c.Source.Kind)
	}
	if c.Debounce.Delay() < 0 {
		return errors.New("config: debounce window must not be negative")
	}
	if len(c.Binders) == 0 {
		return errors.New("config: no binders")
	}

	seen := make(map[string]bool, len(c.Binders))
	for i, b := range c.Binders {
		if b.Name == "" {
			return fmt.Errorf("config: binders[%d]: name is required", i)
		}
		if b.Selector == "" {
			return fmt.Errorf("config: binder %s: selector is required", b.Name)
		}
		if seen[b.Name] {
			return fmt.Errorf("config: binder %s: duplicate name", b.Name)
		}
		seen[b.Name] = true
		switch b.Controller {
		case ControllerRecord, ControllerStamp:
		default:
			return fmt.Errorf("config: binder %s: unknown controller %q", b.Name, b.Controller)
		}
	}

	for i, s := range c.Sinks {
		switch s.Type {
		case SinkStdout:
		case SinkWebhook:
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook needs url", i)
			}
		case SinkSQLite:
			if s.Path == "" {
				return fmt.Errorf("config: sinks[%d]: sqlite needs path", i)
			}
			if s.BusyTimeout < 0 {
				return fmt.Errorf("config: sinks[%d]: busy_timeout must not be negative", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}
