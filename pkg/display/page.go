// Package display provides Display surfaces that collect rendered outputs
// and write them out as a standalone HTML page.
package display

import (
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/errors"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/headview"
)

// Kind identifies which Display call produced an Output.
type Kind string

const (
	KindScript     Kind = "script"
	KindHTML       Kind = "html"
	KindJavascript Kind = "javascript"
	KindImage      Kind = "image"
)

// Output is one display call.
type Output struct {
	Seq       int       `json:"seq"`
	Kind      Kind      `json:"kind"`
	Content   string    `json:"content,omitempty"`
	MimeType  string    `json:"mimeType,omitempty"`
	Data      []byte    `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Fragment returns the HTML that shows o inside a page.
func (o Output) Fragment() string {
	switch o.Kind {
	case KindScript:
		return fmt.Sprintf("<script src=\"%s\"></script>", html.EscapeString(o.Content))
	case KindHTML:
		return o.Content
	case KindJavascript:
		return "<script type=\"text/javascript\">\n" + o.Content + "\n</script>"
	case KindImage:
		if o.MimeType == headview.MimeSVG {
			return inlineSVG(o.Data)
		}
		return fmt.Sprintf("<img src=\"data:%s;base64,%s\"/>",
			html.EscapeString(o.MimeType), base64.StdEncoding.EncodeToString(o.Data))
	default:
		return ""
	}
}

// inlineSVG drops the XML declaration, which is not valid inside HTML.
func inlineSVG(data []byte) string {
	s := strings.TrimSpace(string(data))
	if strings.HasPrefix(s, "<?xml") {
		if end := strings.Index(s, "?>"); end >= 0 {
			s = strings.TrimSpace(s[end+2:])
		}
	}
	return s
}

// Page is a Display that records outputs in call order. It is safe for
// concurrent use.
type Page struct {
	Title string

	mu      sync.RWMutex
	outputs []Output
	seq     int
}

// NewPage creates an empty page.
func NewPage(title string) *Page {
	return &Page{Title: title}
}

var _ headview.Display = (*Page)(nil)

// LoadScript records a script reference.
func (p *Page) LoadScript(src string) error {
	p.Append(Output{Kind: KindScript, Content: src})
	return nil
}

// HTML records an HTML fragment.
func (p *Page) HTML(fragment string) error {
	p.Append(Output{Kind: KindHTML, Content: fragment})
	return nil
}

// Javascript records a script body.
func (p *Page) Javascript(code string) error {
	p.Append(Output{Kind: KindJavascript, Content: code})
	return nil
}

// Image records a static image.
func (p *Page) Image(mimeType string, data []byte) error {
	if mimeType == "" {
		return fmt.Errorf("image has no mime type")
	}
	p.Append(Output{Kind: KindImage, MimeType: mimeType, Data: append([]byte(nil), data...)})
	return nil
}

// Append records o, assigning its sequence number and timestamp, and
// returns the stored copy.
func (p *Page) Append(o Output) Output {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seq++
	o.Seq = p.seq
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now()
	}
	p.outputs = append(p.outputs, o)
	return o
}

// Outputs returns a copy of the recorded outputs.
func (p *Page) Outputs() []Output {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]Output, len(p.outputs))
	copy(out, p.outputs)
	return out
}

// Len returns the number of recorded outputs.
func (p *Page) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.outputs)
}

// Reset drops all outputs. Sequence numbers keep increasing.
func (p *Page) Reset() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.outputs)
	p.outputs = nil
	return n
}

// Build returns the page as a standalone HTML document.
func (p *Page) Build() string {
	var sb strings.Builder

	title := p.Title
	if title == "" {
		title = "Head view"
	}

	sb.WriteString("<!DOCTYPE html>\n")
	sb.WriteString("<html>\n<head>\n")
	sb.WriteString("<meta charset=\"utf-8\"/>\n")
	sb.WriteString(fmt.Sprintf("<title>%s</title>\n", html.EscapeString(title)))
	sb.WriteString("</head>\n<body>\n")
	for _, o := range p.Outputs() {
		sb.WriteString(o.Fragment())
		sb.WriteString("\n")
	}
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

// WriteTo writes the HTML document to w.
func (p *Page) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, p.Build())
	return int64(n), err
}

// Save writes the HTML document to path, creating parent directories.
func (p *Page) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.OutputWrite(path, err)
		}
	}
	if err := os.WriteFile(path, []byte(p.Build()), 0644); err != nil {
		return errors.OutputWrite(path, err)
	}
	return nil
}
