// Package api provides the live notebook server: a page that shows head
// view outputs as they are rendered, pushed over a websocket, and REST
// endpoints to render, list and clear them.
package api

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"
)

// DefaultPort is the notebook server port.
const DefaultPort = 8765

// ServerConfig holds configuration for the notebook server.
type ServerConfig struct {
	// Host is the interface to bind to. Default: "localhost"
	Host string `yaml:"host" json:"host"`

	// Port is the port to listen on; 0 picks a free port.
	Port int `yaml:"port" json:"port"`

	ReadTimeout  time.Duration `yaml:"read_timeout" json:"readTimeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"writeTimeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idleTimeout"`

	// CORSOrigins lists foreign pages allowed to call the API and open the
	// stream. The notebook page itself is always same-origin.
	CORSOrigins []string `yaml:"cors_origins" json:"corsOrigins"`

	// EnableLogging logs one line per request.
	EnableLogging bool `yaml:"enable_logging" json:"enableLogging"`
}

// DefaultServerConfig returns the configuration used when none is given.
func DefaultServerConfig() *ServerConfig {
	return &ServerConfig{
		Host:          "localhost",
		Port:          DefaultPort,
		ReadTimeout:   15 * time.Second,
		WriteTimeout:  15 * time.Second,
		IdleTimeout:   60 * time.Second,
		EnableLogging: true,
	}
}

// Server serves the notebook page, the render API and the output stream.
// It runs once: after Shutdown it cannot be started again.
type Server struct {
	config *ServerConfig
	router *Router
	hub    *Hub

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	closed     bool
}

// NewServer creates a server. A nil config means DefaultServerConfig();
// empty host and timeouts fall back to the defaults.
func NewServer(config *ServerConfig) *Server {
	if config == nil {
		config = DefaultServerConfig()
	}
	def := DefaultServerConfig()
	if config.Host == "" {
		config.Host = def.Host
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = def.ReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = def.WriteTimeout
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = def.IdleTimeout
	}

	return &Server{
		config: config,
		router: NewRouter(),
		hub:    NewHub(),
	}
}

// Hub returns the websocket hub. It runs while the server is running.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Router returns the router handlers are registered on.
func (s *Server) Router() *Router {
	return s.router
}

// Config returns the server configuration.
func (s *Server) Config() *ServerConfig {
	return s.config
}

// Address returns the bound address while running, else the configured one.
func (s *Server) Address() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
}

// IsRunning reports whether the server is accepting connections.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listener != nil
}

// Start binds the listen address and serves in the background. A bind
// failure is returned and leaves the server startable.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.closed:
		return fmt.Errorf("server has been shut down")
	case s.listener != nil:
		return fmt.Errorf("server is already running")
	}

	ln, err := net.Listen("tcp", net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port)))
	if err != nil {
		return fmt.Errorf("server failed to start: %w", err)
	}
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}
	s.listener, s.httpServer = ln, srv

	go s.hub.Run()
	go func() {
		log.Printf("[api] notebook at http://%s/", ln.Addr())
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			log.Printf("[api] serve: %v", err)
		}
	}()
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones, then closes
// every websocket. It is safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	if s.httpServer == nil {
		s.hub.Stop()
		return nil
	}

	log.Printf("[api] shutting down")
	err := s.httpServer.Shutdown(ctx)
	s.hub.Stop()
	s.listener = nil
	return err
}

// Handler returns the router wrapped in the server middleware.
func (s *Server) Handler() http.Handler {
	middlewares := []Middleware{RecoveryMiddleware, RequestIDMiddleware}
	if s.config.EnableLogging {
		middlewares = append(middlewares, LoggingMiddleware)
	}
	if len(s.config.CORSOrigins) > 0 {
		allowed := newOrigins(s.config.CORSOrigins)
		middlewares = append(middlewares, CORSMiddleware(allowed))
		upgrader.CheckOrigin = allowed.checkRequest
	}
	return Chain(s.router, middlewares...)
}
