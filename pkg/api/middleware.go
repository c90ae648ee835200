package api

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"mime"
	"net"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Middleware wraps an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain wraps handler so the first middleware sees a request first.
func Chain(handler http.Handler, middlewares ...Middleware) http.Handler {
	for i := len(middlewares) - 1; i >= 0; i-- {
		handler = middlewares[i](handler)
	}
	return handler
}

// -----------------------------------------------------------------------------
// Request Exchange
// -----------------------------------------------------------------------------

// exchange travels in the request context so the request log can report
// what a handler produced.
type exchange struct {
	id      string
	outcome string
}

type exchangeKey struct{}

// withExchange returns r carrying an exchange, reusing one already attached.
func withExchange(r *http.Request) (*http.Request, *exchange) {
	if ex, ok := r.Context().Value(exchangeKey{}).(*exchange); ok {
		return r, ex
	}
	ex := &exchange{}
	return r.WithContext(context.WithValue(r.Context(), exchangeKey{}, ex)), ex
}

// noteOutcome records a short result for the request log, such as the
// rendered container id or an error code. It is a no-op outside the
// middleware chain.
func noteOutcome(r *http.Request, format string, args ...interface{}) {
	if ex, ok := r.Context().Value(exchangeKey{}).(*exchange); ok {
		ex.outcome = fmt.Sprintf(format, args...)
	}
}

// RequestIDMiddleware echoes an upstream X-Request-ID or assigns a UUID.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, ex := withExchange(r)
		ex.id = r.Header.Get("X-Request-ID")
		if ex.id == "" {
			ex.id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", ex.id)
		next.ServeHTTP(w, r)
	})
}

// -----------------------------------------------------------------------------
// Logging
// -----------------------------------------------------------------------------

// statusRecorder remembers the status and size of a response. It passes
// Hijack through so /ws can upgrade behind the logger.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.bytes += int64(n)
	return n, err
}

func (rec *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rec.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	rec.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

// LoggingMiddleware logs one line per request:
//
//	[api] POST /api/render 200 3ms 412B id=bertviz-7f3a...
//
// The trailing outcome is whatever the handler passed to noteOutcome.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		r, ex := withExchange(r)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		line := fmt.Sprintf("[api] %s %s %d %s %dB", r.Method, r.URL.Path, rec.status,
			roundLatency(time.Since(start)), rec.bytes)
		if ex.outcome != "" {
			line += " " + ex.outcome
		}
		if ex.id != "" {
			line += " req=" + ex.id
		}
		log.Print(line)
	})
}

func roundLatency(d time.Duration) time.Duration {
	switch {
	case d < time.Millisecond:
		return d.Round(time.Microsecond)
	case d < time.Second:
		return d.Round(time.Millisecond)
	default:
		return d.Round(10 * time.Millisecond)
	}
}

// RecoveryMiddleware turns a handler panic into a 500 response.
func RecoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			if p == http.ErrAbortHandler {
				panic(p)
			}
			log.Printf("[api] panic serving %s %s: %v\n%s", r.Method, r.URL.Path, p, debug.Stack())
			WriteError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		}()
		next.ServeHTTP(w, r)
	})
}

// -----------------------------------------------------------------------------
// Origins
// -----------------------------------------------------------------------------

// origins is the set of foreign pages allowed to use the server, for
// notebooks hosted elsewhere that embed the render API or the stream.
// "*" admits every origin.
type origins map[string]bool

func newOrigins(list []string) origins {
	o := make(origins, len(list))
	for _, origin := range list {
		o[origin] = true
	}
	return o
}

func (o origins) allows(origin string) bool {
	return o["*"] || o[origin]
}

// checkRequest admits requests without an Origin, same-origin requests and
// listed origins. It is the websocket upgrader's origin check.
func (o origins) checkRequest(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || o.allows(origin) {
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && strings.EqualFold(u.Host, r.Host)
}

// CORSMiddleware answers preflight requests and marks responses readable
// by the listed origins.
func CORSMiddleware(allowed origins) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")
			if origin := r.Header.Get("Origin"); origin != "" && allowed.allows(origin) {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
				h.Set("Access-Control-Expose-Headers", "X-Request-ID")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// -----------------------------------------------------------------------------
// Request Bodies
// -----------------------------------------------------------------------------

// JSONBody admits JSON bodies of at most limit bytes. A declared length
// over the limit is refused up front; an undeclared one is cut off by
// http.MaxBytesReader, and the handler sees *http.MaxBytesError.
func JSONBody(limit int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength != 0 {
				mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
				if err != nil || mediaType != "application/json" {
					noteOutcome(r, "error=unsupported_media_type")
					WriteError(w, http.StatusUnsupportedMediaType, "unsupported_media_type",
						"Content-Type must be application/json")
					return
				}
			}
			if r.ContentLength > limit {
				writeTooLarge(w, r, limit)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}

func writeTooLarge(w http.ResponseWriter, r *http.Request, limit int64) {
	noteOutcome(r, "error=request_too_large")
	WriteError(w, http.StatusRequestEntityTooLarge, "request_too_large",
		fmt.Sprintf("Request body exceeds %d bytes", limit))
}
