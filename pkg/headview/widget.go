package headview

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ParamsPlaceholder is the literal token in the widget driver script that is
// replaced with the JSON payload. The external head view script uses the
// same marker, so it can be configured in place of the embedded driver.
const ParamsPlaceholder = "PYTHON_PARAMS"

// DefaultLoaderURL is the module loader the external widget script needs.
const DefaultLoaderURL = "https://cdnjs.cloudflare.com/ajax/libs/require.js/2.3.6/require.min.js"

//go:embed assets/head_view.js
var embeddedDriver string

// EmbeddedDriver returns the built-in widget driver template.
func EmbeddedDriver() string {
	return embeddedDriver
}

// LoadDriver reads a driver template from path and checks it carries the
// placeholder.
func LoadDriver(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read widget script: %w", err)
	}
	script := string(data)
	if !strings.Contains(script, ParamsPlaceholder) {
		return "", fmt.Errorf("widget script %s has no %s placeholder", path, ParamsPlaceholder)
	}
	return script, nil
}

// Substitute returns template with every placeholder replaced by the JSON
// encoding of p. The encoding escapes <, > and & so the result is safe
// inside a script element.
func Substitute(template string, p *Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("failed to encode payload: %w", err)
	}
	return strings.ReplaceAll(template, ParamsPlaceholder, string(data)), nil
}
