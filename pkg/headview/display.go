package headview

// MimeSVG is the MIME type of the static heatmap passed to Display.Image.
const MimeSVG = "image/svg+xml"

// Display is the surface a rendering is written to: a page, a live browser
// session, or anything else that can show HTML and run scripts.
//
// Calls arrive in order and each one is independent; a surface must not
// assume any pairing between them.
type Display interface {
	// LoadScript references an external script by URL.
	LoadScript(src string) error

	// HTML injects an HTML fragment.
	HTML(fragment string) error

	// Javascript injects and runs a script body.
	Javascript(code string) error

	// Image shows a static image.
	Image(mimeType string, data []byte) error
}
