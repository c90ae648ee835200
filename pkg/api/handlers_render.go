package api

import (
	"bytes"
	_ "embed"
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/attention"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/display"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/errors"
	"github.com/desothier1/Dutch-BERTje-attention-visualisation/pkg/headview"
)

//go:embed assets/notebook.html
var notebookPage []byte

// DefaultMaxRenderBody bounds a render request. Attention for a 12-layer,
// 12-head model over 512 tokens is far below this.
const DefaultMaxRenderBody = 256 << 20

// RenderHandler serves the live notebook page and renders head views onto
// its Surface.
type RenderHandler struct {
	renderer *headview.Renderer
	surface  *Surface
	hub      *Hub
	defaults headview.Options
	started  time.Time

	// MaxBody caps POST /api/render bodies. Set before RegisterRoutes.
	MaxBody int64
}

// NewRenderHandler creates a RenderHandler. defaults supplies the options a
// request does not override.
func NewRenderHandler(renderer *headview.Renderer, surface *Surface, hub *Hub, defaults headview.Options) *RenderHandler {
	return &RenderHandler{
		renderer: renderer,
		surface:  surface,
		hub:      hub,
		defaults: defaults,
		started:  time.Now(),
		MaxBody:  DefaultMaxRenderBody,
	}
}

// RegisterRoutes registers the notebook routes on the router.
func (h *RenderHandler) RegisterRoutes(router *Router) {
	router.GET("/", h.Notebook)
	router.GET("/ws", NewWebSocketHandler(h.hub).ServeHTTP)
	router.POST("/api/render", JSONBody(h.MaxBody)(http.HandlerFunc(h.Render)).ServeHTTP)
	router.GET("/api/outputs", h.ListOutputs)
	router.DELETE("/api/outputs", h.ClearOutputs)
	router.GET("/api/health", h.Health)
}

// -----------------------------------------------------------------------------
// API Request Types
// -----------------------------------------------------------------------------

// RenderRequest selects the matrix to plot and the widget options. It is
// sent alongside the input document fields (tokens, attention and
// sentence_b_start) in the same JSON body.
//
// Row and Col pick the plotted (layer, head) matrix. Layer and Heads mean
// what they mean in the widget payload: the widget's initial selection.
type RenderRequest struct {
	Row int `json:"row"`
	Col int `json:"col"`

	// Prettify overrides the server default when set.
	Prettify *bool `json:"prettify,omitempty"`

	Layer *int  `json:"layer,omitempty"`
	Heads []int `json:"heads,omitempty"`
}

// -----------------------------------------------------------------------------
// API Response Types
// -----------------------------------------------------------------------------

// RenderResponse describes a completed render.
type RenderResponse struct {
	ID        string      `json:"id"`
	Tokens    []string    `json:"tokens"`
	Views     []string    `json:"views"`
	Selection [][]float64 `json:"selection"`
	Outputs   int         `json:"outputs"`
}

// OutputsResponse lists the recorded display outputs.
type OutputsResponse struct {
	Outputs []display.Output `json:"outputs"`
	Count   int              `json:"count"`
}

// HealthResponse reports server status.
type HealthResponse struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
	Outputs int    `json:"outputs"`
	Replay  int    `json:"replay"`
	Uptime  string `json:"uptime"`
}

// -----------------------------------------------------------------------------
// Handlers
// -----------------------------------------------------------------------------

// Notebook serves the page that displays outputs as they arrive.
func (h *RenderHandler) Notebook(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(notebookPage)
}

// Render handles POST /api/render.
func (h *RenderHandler) Render(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	r.Body.Close()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			writeTooLarge(w, r, tooLarge.Limit)
			return
		}
		noteOutcome(r, "error=invalid_request")
		WriteError(w, http.StatusBadRequest, "invalid_request", "Failed to read request body")
		return
	}

	var req RenderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		noteOutcome(r, "error=invalid_json")
		WriteError(w, http.StatusBadRequest, "invalid_json", "Invalid JSON in request body: "+err.Error())
		return
	}
	in, err := attention.Decode(bytes.NewReader(body))
	if err != nil {
		writeRenderError(w, r, err)
		return
	}

	opts := h.defaults
	opts.SegmentSplit = in.SentenceBStart
	if req.Prettify != nil {
		opts.Prettify = *req.Prettify
	}
	if req.Layer != nil {
		opts.Layer = req.Layer
	}
	if req.Heads != nil {
		opts.Heads = req.Heads
	}

	res, err := h.renderer.Render(h.surface, in.Attention, in.Tokens, req.Row, req.Col, opts)
	if err != nil {
		writeRenderError(w, r, err)
		return
	}
	noteOutcome(r, "id=%s layer=%d head=%d", res.ID, req.Row, req.Col)

	views := make([]string, 0, len(res.Payload.Attention))
	for _, f := range append([]headview.Filter{headview.FilterAll}, headview.SegmentFilters...) {
		if _, ok := res.Payload.Attention[f]; ok {
			views = append(views, string(f))
		}
	}

	resp := &RenderResponse{
		ID:      res.ID,
		Tokens:  res.Tokens,
		Views:   views,
		Outputs: len(h.surface.Outputs()),
	}
	if res.Selection != nil {
		resp.Selection = attention.Rows(res.Selection)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// ListOutputs handles GET /api/outputs.
func (h *RenderHandler) ListOutputs(w http.ResponseWriter, r *http.Request) {
	outputs := h.surface.Outputs()
	WriteJSON(w, http.StatusOK, &OutputsResponse{
		Outputs: outputs,
		Count:   len(outputs),
	})
}

// ClearOutputs handles DELETE /api/outputs.
func (h *RenderHandler) ClearOutputs(w http.ResponseWriter, r *http.Request) {
	n, err := h.surface.Clear()
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "clear_failed", err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

// Health handles GET /api/health.
func (h *RenderHandler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, &HealthResponse{
		Status:  "ok",
		Clients: h.hub.ClientCount(),
		Outputs: len(h.surface.Outputs()),
		Replay:  h.hub.HistoryLen(),
		Uptime:  time.Since(h.started).Round(time.Second).String(),
	})
}

// writeRenderError maps structured errors to HTTP status codes: 422 for
// inputs that parse but cannot be rendered, 500 when the surface fails and
// 400 for the rest.
func writeRenderError(w http.ResponseWriter, r *http.Request, err error) {
	herr, ok := errors.As(err)
	if !ok {
		herr = errors.InputParse("request body", err)
	}
	noteOutcome(r, "error=%s", herr.Code)

	status := http.StatusBadRequest
	switch {
	case errors.IsCategory(herr, errors.CategoryValidation):
		status = http.StatusUnprocessableEntity
	case errors.IsCode(herr, errors.ErrDisplayFailed):
		status = http.StatusInternalServerError
	}
	WriteError(w, status, herr.Code, herr.Error())
}
