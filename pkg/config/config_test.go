// Package config tests for configuration loading and structured error handling.
package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/errors"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/headview"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/heatmap"
)

// -----------------------------------------------------------------------------
// Load Tests with Structured Errors
// -----------------------------------------------------------------------------

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/path/to/headview.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}

	herr, ok := err.(*errors.Error)
	if !ok {
		t.Fatalf("expected *errors.Error, got %T", err)
	}
	if herr.Code != errors.ErrConfigReadFailed {
		t.Errorf("expected code %q, got %q", errors.ErrConfigReadFailed, herr.Code)
	}
	if herr.Category != errors.CategoryConfig {
		t.Errorf("expected category %v, got %v", errors.CategoryConfig, herr.Category)
	}

	foundInit := false
	for _, s := range herr.Suggestions {
		if strings.Contains(s, "-init") {
			foundInit = true
			break
		}
	}
	if !foundInit {
		t.Error("expected suggestion to mention '-init'")
	}
}

func TestLoad_YAMLParseError(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "bad.yaml")

	invalidYAML := `heatmap:
  cell_size: 40
    invalid_indent
  colormap: rocket
`
	if err := os.WriteFile(configPath, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	_, err := Load(configPath)
	herr, ok := errors.As(err)
	if !ok {
		t.Fatalf("expected *errors.Error, got %T", err)
	}
	if herr.Code != errors.ErrConfigParseFailed {
		t.Errorf("expected code %q, got %q", errors.ErrConfigParseFailed, herr.Code)
	}
	if herr.Context["path"] != configPath {
		t.Errorf("expected path context %q, got %q", configPath, herr.Context["path"])
	}
	if herr.Cause == nil {
		t.Error("expected cause to be set")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{"unknown colormap", "heatmap:\n  colormap: jet\n", "heatmap.colormap"},
		{"zero cell size", "heatmap:\n  cell_size: 0\n", "heatmap.cell_size"},
		{"negative precision", "heatmap:\n  precision: -2\n", "heatmap.precision"},
		{"port out of range", "server:\n  port: 70000\n", "server.port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			configPath := filepath.Join(t.TempDir(), "headview.yaml")
			if err := os.WriteFile(configPath, []byte(tt.yaml), 0644); err != nil {
				t.Fatalf("failed to write temp file: %v", err)
			}

			_, err := Load(configPath)
			herr, ok := errors.As(err)
			if !ok {
				t.Fatalf("expected *errors.Error, got %v", err)
			}
			if herr.Code != errors.ErrConfigInvalid {
				t.Errorf("expected code %q, got %q", errors.ErrConfigInvalid, herr.Code)
			}
			if herr.Context["field"] != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, herr.Context["field"])
			}
			if herr.Context["path"] != configPath {
				t.Errorf("expected path context, got %q", herr.Context["path"])
			}
		})
	}
}

func TestLoad_InvalidColormapListsOptions(t *testing.T) {
	err := (&Config{Heatmap: HeatmapConfig{Colormap: "jet", CellSize: 1}}).Validate()
	herr, ok := errors.As(err)
	if !ok {
		t.Fatalf("expected *errors.Error, got %v", err)
	}
	if !strings.Contains(herr.Context["valid_options"], "viridis") {
		t.Errorf("expected valid_options to list viridis, got %q", herr.Context["valid_options"])
	}
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "headview.yaml")
	validConfig := `display:
  id_prefix: bertje
render:
  prettify: false
heatmap:
  colormap: viridis
  title: BERTje
server:
  port: 9000
  read_timeout: 5s
output:
  path: out/view.html
  csv_path: out/view.csv
`
	if err := os.WriteFile(configPath, []byte(validConfig), 0644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Display.IDPrefix != "bertje" {
		t.Errorf("id_prefix = %q", cfg.Display.IDPrefix)
	}
	if cfg.Display.LoaderURL != headview.DefaultLoaderURL {
		t.Errorf("expected default loader url, got %q", cfg.Display.LoaderURL)
	}
	if cfg.Render.Prettify {
		t.Error("expected prettify off")
	}
	if cfg.Heatmap.Colormap != "viridis" || cfg.Heatmap.CellSize != 48 {
		t.Errorf("unexpected heatmap section %+v", cfg.Heatmap)
	}
	if cfg.Server.Port != 9000 || cfg.Server.ReadTimeout != 5*time.Second {
		t.Errorf("unexpected server section %+v", cfg.Server)
	}
	if cfg.Server.Host != "localhost" {
		t.Errorf("expected default host, got %q", cfg.Server.Host)
	}
	if cfg.Output.CSVPath != "out/view.csv" {
		t.Errorf("csv_path = %q", cfg.Output.CSVPath)
	}
}

// -----------------------------------------------------------------------------
// Defaults and conversion
// -----------------------------------------------------------------------------

func TestDefault(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config is invalid: %v", err)
	}
	if cfg.Server.Port != 8765 {
		t.Errorf("expected port 8765, got %d", cfg.Server.Port)
	}
	if !cfg.Render.Prettify {
		t.Error("expected prettify on by default")
	}
	if !cfg.RenderOptions().Prettify {
		t.Error("expected render options to prettify")
	}
}

func TestLoadOrDefault(t *testing.T) {
	cfg, err := LoadOrDefault("")
	if err != nil || cfg == nil {
		t.Fatalf("LoadOrDefault(\"\"): %v", err)
	}
	cfg, err = LoadOrDefault(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil || cfg.Server.Port != 8765 {
		t.Fatalf("expected defaults for missing file, got %v", err)
	}
}

func TestHeatmapStyle(t *testing.T) {
	cfg := Default()
	cfg.Heatmap.Colormap = "blues"
	cfg.Heatmap.Annotate = false
	cfg.Heatmap.Title = "BERTje"

	hm := cfg.HeatmapStyle()
	if len(hm.Colormap) != len(heatmap.Blues) || hm.Colormap[0] != heatmap.Blues[0] {
		t.Error("expected blues colormap")
	}
	if hm.Annotate || hm.Title != "BERTje" || hm.LabelRotation != 45 {
		t.Errorf("unexpected style %+v", hm)
	}
}

func TestRendererConfig(t *testing.T) {
	cfg := Default()
	cfg.Display.LoaderURL = "/static/require.js"

	rc, err := cfg.RendererConfig()
	if err != nil {
		t.Fatalf("RendererConfig: %v", err)
	}
	if rc.LoaderURL != "/static/require.js" || rc.Driver != headview.EmbeddedDriver() {
		t.Errorf("unexpected renderer config %+v", rc)
	}
	if _, err := headview.NewRenderer(rc); err != nil {
		t.Errorf("NewRenderer: %v", err)
	}
}

func TestRendererConfig_WidgetScript(t *testing.T) {
	dir := t.TempDir()
	script := filepath.Join(dir, "head_view.js")
	if err := os.WriteFile(script, []byte("requirejs(['jquery'], function($) { var config = PYTHON_PARAMS; });"), 0644); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	cfg := Default()
	cfg.Display.WidgetScript = script
	rc, err := cfg.RendererConfig()
	if err != nil {
		t.Fatalf("RendererConfig: %v", err)
	}
	if !strings.HasPrefix(rc.Driver, "requirejs") {
		t.Error("expected external driver")
	}

	cfg.Display.WidgetScript = filepath.Join(dir, "missing.js")
	if _, err := cfg.RendererConfig(); !errors.IsCode(err, errors.ErrConfigInvalid) {
		t.Errorf("expected CONFIG_INVALID, got %v", err)
	}
}

func TestSaveAndInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "headview.yaml")

	if err := InitConfig(path); err != nil {
		t.Fatalf("InitConfig: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.IdleTimeout != 60*time.Second {
		t.Errorf("idle timeout did not round trip: %v", cfg.Server.IdleTimeout)
	}

	cfg.Heatmap.Colormap = "viridis"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// InitConfig leaves an existing file alone.
	if err := InitConfig(path); err != nil {
		t.Fatalf("InitConfig: %v", err)
	}
	cfg, err = Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Heatmap.Colormap != "viridis" {
		t.Errorf("expected saved colormap, got %q", cfg.Heatmap.Colormap)
	}
}
