package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"
)

// HandlerFunc is the function signature for API handlers.
type HandlerFunc func(w http.ResponseWriter, r *http.Request)

// Router dispatches on exact path and method. A known path requested with
// another method gets 405 with an Allow header.
type Router struct {
	routes map[string]map[string]HandlerFunc
	mu     sync.RWMutex

	// NotFound is called when no route matches
	NotFound http.Handler
}

// NewRouter creates a new Router instance.
func NewRouter() *Router {
	return &Router{
		routes: make(map[string]map[string]HandlerFunc),
		NotFound: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			WriteError(w, http.StatusNotFound, "not_found", "The requested resource was not found")
		}),
	}
}

// Handle registers a handler for the given method and path.
func (rt *Router) Handle(method, path string, handler HandlerFunc) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	path = cleanPath(path)
	if rt.routes[path] == nil {
		rt.routes[path] = make(map[string]HandlerFunc)
	}
	rt.routes[path][method] = handler
}

// GET registers a handler for GET requests.
func (rt *Router) GET(path string, handler HandlerFunc) {
	rt.Handle(http.MethodGet, path, handler)
}

// POST registers a handler for POST requests.
func (rt *Router) POST(path string, handler HandlerFunc) {
	rt.Handle(http.MethodPost, path, handler)
}

// DELETE registers a handler for DELETE requests.
func (rt *Router) DELETE(path string, handler HandlerFunc) {
	rt.Handle(http.MethodDelete, path, handler)
}

// ServeHTTP implements the http.Handler interface.
func (rt *Router) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rt.mu.RLock()
	methods, ok := rt.routes[cleanPath(r.URL.Path)]
	var handler HandlerFunc
	if ok {
		handler = methods[r.Method]
	}
	allow := allowed(methods)
	rt.mu.RUnlock()

	switch {
	case !ok:
		rt.NotFound.ServeHTTP(w, r)
	case handler == nil:
		w.Header().Set("Allow", allow)
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed",
			r.Method+" is not supported here; use "+allow)
	default:
		handler(w, r)
	}
}

// cleanPath drops a trailing slash so /api/health/ and /api/health match.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if len(p) > 1 {
		p = strings.TrimRight(p, "/")
	}
	return p
}

func allowed(methods map[string]HandlerFunc) string {
	names := make([]string, 0, len(methods))
	for m := range methods {
		names = append(names, m)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// -----------------------------------------------------------------------------
// Response Helpers
// -----------------------------------------------------------------------------

// APIResponse is the standard response wrapper for API endpoints.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

// APIError represents an error response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		// Headers are already sent
		log.Printf("[api] failed to encode response: %v", err)
	}
}

// WriteError writes a JSON error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error: &APIError{
			Code:    code,
			Message: message,
		},
	})
}
