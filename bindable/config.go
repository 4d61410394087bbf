package bindable

import (
	"github.com/hazyhaar/dombind/bindable/internal/config"
)

// FileConfig is the top-level dombind file configuration. Re-exported from internal.
type FileConfig = config.Config

// SourceConfig names the document to bind.
type SourceConfig = config.SourceConfig

// BrowserConfig controls Chrome for url sources.
type BrowserConfig = config.BrowserConfig

// DebounceConfig controls mutation batching.
type DebounceConfig = config.DebounceConfig

// BinderConfig defines one configured binder.
type BinderConfig = config.BinderConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// HTTPConfig configures the HTTP surface.
type HTTPConfig = config.HTTPConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*FileConfig, error) {
	return config.LoadFile(path)
}

// ParseConfig decodes YAML configuration.
func ParseConfig(data []byte) (*FileConfig, error) {
	return config.Parse(data)
}

// ConfigFor converts a configured binder into a binder Config.
func ConfigFor(bc BinderConfig) Config {
	return Config{
		Name:           bc.Name,
		Selector:       bc.Selector,
		DisableLogging: bc.DisableLogging,
		BoundAttr:      bc.BoundAttr,
		NoBindAttr:     bc.NoBindAttr,
	}
}
