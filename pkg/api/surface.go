package api

import (
	"sync"

	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/display"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/headview"
)

// Surface is a headview.Display that records outputs on a page and pushes
// each one to connected browsers through the hub.
type Surface struct {
	page *display.Page
	hub  *Hub

	// mu keeps page order and broadcast order identical
	mu sync.Mutex
}

var _ headview.Display = (*Surface)(nil)

// NewSurface creates a Surface publishing to hub.
func NewSurface(hub *Hub, title string) *Surface {
	return &Surface{
		page: display.NewPage(title),
		hub:  hub,
	}
}

// LoadScript publishes a script reference.
func (s *Surface) LoadScript(src string) error {
	return s.publish(display.Output{Kind: display.KindScript, Content: src})
}

// HTML publishes an HTML fragment.
func (s *Surface) HTML(fragment string) error {
	return s.publish(display.Output{Kind: display.KindHTML, Content: fragment})
}

// Javascript publishes a script body.
func (s *Surface) Javascript(code string) error {
	return s.publish(display.Output{Kind: display.KindJavascript, Content: code})
}

// Image publishes a static image.
func (s *Surface) Image(mimeType string, data []byte) error {
	return s.publish(display.Output{
		Kind:     display.KindImage,
		MimeType: mimeType,
		Data:     append([]byte(nil), data...),
	})
}

func (s *Surface) publish(o display.Output) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o = s.page.Append(o)
	return s.hub.Publish(newMessage(EventTypeOutput, newOutputEvent(o)))
}

// Outputs returns the recorded outputs.
func (s *Surface) Outputs() []display.Output {
	return s.page.Outputs()
}

// Page returns the underlying page, for saving a snapshot.
func (s *Surface) Page() *display.Page {
	return s.page
}

// Clear drops every output and tells connected browsers to clear.
func (s *Surface) Clear() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := s.page.Reset()
	return n, s.hub.Reset()
}

// OutputEvent is the websocket payload for one display output. Fragment is
// ready to insert into the page.
type OutputEvent struct {
	Seq      int    `json:"seq"`
	Kind     string `json:"kind"`
	Content  string `json:"content,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Fragment string `json:"fragment"`
}

func newOutputEvent(o display.Output) *OutputEvent {
	return &OutputEvent{
		Seq:      o.Seq,
		Kind:     string(o.Kind),
		Content:  o.Content,
		MimeType: o.MimeType,
		Fragment: o.Fragment(),
	}
}
