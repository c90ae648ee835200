// Package config handles head view configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/errors"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/headview"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/heatmap"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/tokens"
)

// Config is the root configuration structure.
type Config struct {
	Display DisplayConfig `yaml:"display"`
	Render  RenderConfig  `yaml:"render"`
	Heatmap HeatmapConfig `yaml:"heatmap"`
	Server  ServerConfig  `yaml:"server"`
	Output  OutputConfig  `yaml:"output"`
}

// DisplayConfig holds widget settings.
type DisplayConfig struct {
	LoaderURL    string `yaml:"loader_url"`
	WidgetScript string `yaml:"widget_script"` // empty uses the embedded driver
	IDPrefix     string `yaml:"id_prefix"`
}

// RenderConfig holds per-render defaults.
type RenderConfig struct {
	Prettify bool `yaml:"prettify"`
}

// HeatmapConfig holds static plot settings.
type HeatmapConfig struct {
	CellSize      int     `yaml:"cell_size"`
	FontSize      int     `yaml:"font_size"`
	Annotate      bool    `yaml:"annotate"`
	Precision     int     `yaml:"precision"`
	LabelRotation float64 `yaml:"label_rotation"`
	Colormap      string  `yaml:"colormap"`
	GridWidth     float64 `yaml:"grid_width"`
	Title         string  `yaml:"title"`
}

// ServerConfig holds live display server settings.
type ServerConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port"`
	CORSOrigins   []string      `yaml:"cors_origins"`
	EnableLogging bool          `yaml:"enable_logging"`
	ReadTimeout   time.Duration `yaml:"read_timeout"`
	WriteTimeout  time.Duration `yaml:"write_timeout"`
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
}

// OutputConfig holds output file locations.
type OutputConfig struct {
	Path    string `yaml:"path"`
	SVGPath string `yaml:"svg_path"`
	CSVPath string `yaml:"csv_path"`
}

// Colormaps lists the accepted heatmap colormap names.
var Colormaps = []string{"rocket", "viridis", "blues"}

// Default returns the default configuration.
func Default() *Config {
	hm := heatmap.DefaultConfig()
	return &Config{
		Display: DisplayConfig{
			LoaderURL: headview.DefaultLoaderURL,
			IDPrefix:  headview.DefaultIDPrefix,
		},
		Render: RenderConfig{
			Prettify: true,
		},
		Heatmap: HeatmapConfig{
			CellSize:      hm.CellSize,
			FontSize:      hm.FontSize,
			Annotate:      hm.Annotate,
			Precision:     hm.Precision,
			LabelRotation: hm.LabelRotation,
			Colormap:      "rocket",
			GridWidth:     hm.GridWidth,
		},
		Server: ServerConfig{
			Host:          "localhost",
			Port:          8765,
			EnableLogging: true,
			ReadTimeout:   15 * time.Second,
			WriteTimeout:  15 * time.Second,
			IdleTimeout:   60 * time.Second,
		},
		Output: OutputConfig{
			Path: "head_view.html",
		},
	}
}

// Load loads configuration from a file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigReadFailed, errors.CategoryConfig,
			"failed to read config").
			WithContext("path", path).
			WithSuggestion("Run 'headview -init' to create a default config file")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, errors.ErrConfigParseFailed, errors.CategoryConfig,
			"failed to parse config").
			WithContext("path", path).
			WithSuggestion("Check the YAML indentation and field names")
	}

	if err := cfg.Validate(); err != nil {
		if e, ok := errors.As(err); ok {
			e.WithContext("path", path)
		}
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault loads config from path, or returns default if not found.
func LoadOrDefault(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}

	return Load(path)
}

// Validate checks field values that would otherwise fail later.
func (c *Config) Validate() error {
	if !contains(Colormaps, c.Heatmap.Colormap) {
		return invalid("heatmap.colormap", c.Heatmap.Colormap, Colormaps)
	}
	if c.Heatmap.CellSize <= 0 {
		return invalid("heatmap.cell_size", fmt.Sprint(c.Heatmap.CellSize), []string{"a positive number of pixels"})
	}
	if c.Heatmap.Precision < 0 {
		return invalid("heatmap.precision", fmt.Sprint(c.Heatmap.Precision), []string{"0 or more decimals"})
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return invalid("server.port", fmt.Sprint(c.Server.Port), []string{"0-65535"})
	}
	return nil
}

func invalid(field, value string, valid []string) *errors.Error {
	return errors.Newf(errors.ErrConfigInvalid, errors.CategoryConfig,
		"invalid value %q for %s", value, field).
		WithContext("field", field).
		WithContext("value", value).
		WithContext("valid_options", strings.Join(valid, ", "))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// RendererConfig builds the renderer configuration, reading the external
// widget script when one is configured.
func (c *Config) RendererConfig() (*headview.Config, error) {
	rc := headview.DefaultConfig()
	if c.Display.LoaderURL != "" {
		rc.LoaderURL = c.Display.LoaderURL
	}
	if c.Display.IDPrefix != "" {
		rc.IDPrefix = c.Display.IDPrefix
	}
	if c.Display.WidgetScript != "" {
		script, err := headview.LoadDriver(c.Display.WidgetScript)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrConfigInvalid, errors.CategoryConfig,
				"cannot use widget script").
				WithContext("field", "display.widget_script").
				WithContext("value", c.Display.WidgetScript)
		}
		rc.Driver = script
	}
	rc.Heatmap = c.HeatmapStyle()
	rc.Prettifier = tokens.Default()
	return rc, nil
}

// HeatmapStyle converts the heatmap section to a plot configuration.
func (c *Config) HeatmapStyle() *heatmap.Config {
	hm := heatmap.DefaultConfig()
	hm.CellSize = c.Heatmap.CellSize
	hm.FontSize = c.Heatmap.FontSize
	hm.Annotate = c.Heatmap.Annotate
	hm.Precision = c.Heatmap.Precision
	hm.LabelRotation = c.Heatmap.LabelRotation
	hm.Colormap = heatmap.ColormapByName(c.Heatmap.Colormap)
	hm.GridWidth = c.Heatmap.GridWidth
	hm.Title = c.Heatmap.Title
	return hm
}

// RenderOptions returns the default per-render options.
func (c *Config) RenderOptions() headview.Options {
	opts := headview.DefaultOptions()
	opts.Prettify = c.Render.Prettify
	return opts
}

// Save saves configuration to a file.
func (c *Config) Save(path string) error {
	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(err, errors.ErrConfigWriteFailed, errors.CategoryConfig,
			"failed to create config directory").WithContext("path", dir)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, errors.ErrConfigWriteFailed, errors.CategoryConfig,
			"failed to marshal config")
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, errors.ErrConfigWriteFailed, errors.CategoryConfig,
			"failed to write config file").WithContext("path", path)
	}
	return nil
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	// First check for config in current working directory
	if _, err := os.Stat("headview.yaml"); err == nil {
		return "headview.yaml"
	}
	// Then check for config/ subdirectory
	if _, err := os.Stat("config/headview.yaml"); err == nil {
		return "config/headview.yaml"
	}
	return "headview.yaml"
}

// InitConfig creates a default config file if it doesn't exist.
func InitConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil // Already exists
	}

	return Default().Save(path)
}
