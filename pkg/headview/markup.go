package headview

import (
	"fmt"
	"html"
	"strings"

	"github.com/google/uuid"
)

// DefaultIDPrefix prefixes generated container ids.
const DefaultIDPrefix = "bertviz"

// NewContainerID returns prefix followed by 32 hex digits of a random UUID.
// Ids are unique per call, so several visualizations can share one page.
func NewContainerID(prefix string) string {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}

// ContainerHTML returns the widget container: a layer selector, a filter
// selector when segments are present, and the drawing area.
func ContainerHTML(id string, segments bool) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("<div id='%s'>\n", html.EscapeString(id)))
	sb.WriteString("  <span style=\"user-select:none\">\n")
	sb.WriteString("    Layer: <select id=\"layer\"></select>\n")
	if segments {
		sb.WriteString("    Attention: <select id=\"filter\">\n")
		for _, f := range append([]Filter{FilterAll}, SegmentFilters...) {
			sb.WriteString(fmt.Sprintf("      <option value=\"%s\">%s</option>\n", f, html.EscapeString(f.Label())))
		}
		sb.WriteString("    </select>\n")
	}
	sb.WriteString("  </span>\n")
	sb.WriteString("  <div id='vis'></div>\n")
	sb.WriteString("</div>\n")
	return sb.String()
}
