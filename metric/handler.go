package metric

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abdelrazekrizk/Auto-resolve-Service-Desk/errors"
)

// Server exposes the registry over HTTP for Prometheus scrapes, plus a
// health endpoint for probes.
type Server struct {
	port     int
	path     string
	server   *http.Server
	registry *Registry

	mu            sync.Mutex // protects server and healthHandler
	healthHandler http.HandlerFunc
}

// NewServer creates a metrics server. Port 0 defaults to 9090 and an empty
// path defaults to /metrics.
func NewServer(port int, path string, registry *Registry) *Server {
	if path == "" {
		path = "/metrics"
	}
	if port == 0 {
		port = 9090
	}

	return &Server{
		port:     port,
		path:     path,
		registry: registry,
	}
}

// HandleHealth installs the handler served at /health. Without one, /health
// returns a static 200. Must be called before Start.
func (s *Server) HandleHealth(handler http.HandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthHandler = handler
}

// Start serves HTTP until Stop is called. It blocks, so callers run it in a
// goroutine.
func (s *Server) Start() error {
	s.mu.Lock()

	if s.server != nil {
		s.mu.Unlock()
		return errors.WrapInvalid(errors.ErrAlreadyStarted,
			"Server", "Start", "metrics server already running")
	}
	if s.registry == nil {
		s.mu.Unlock()
		return errors.WrapFatal(
			fmt.Errorf("nil registry"),
			"Server", "Start", "metrics registry not provided")
	}

	mux := http.NewServeMux()

	mux.Handle(s.path, promhttp.HandlerFor(
		s.registry.PrometheusRegistry(),
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		},
	))

	health := s.healthHandler
	if health == nil {
		health = func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		}
	}
	mux.HandleFunc("/health", health)

	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = fmt.Fprintf(w, `<html>
<head><title>Service Desk Metrics</title></head>
<body>
<h1>Service Desk Metrics Server</h1>
<p><a href="%s">Metrics</a></p>
<p><a href="/health">Health</a></p>
</body>
</html>`, s.path)
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.server
	s.mu.Unlock()

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.WrapFatal(err, "Server", "Start",
			fmt.Sprintf("failed to serve on port %d", s.port))
	}
	return nil
}

// Stop closes the server. The next Start creates a fresh one.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		err := s.server.Close()
		s.server = nil
		if err != nil {
			return errors.WrapTransient(err, "Server", "Stop", "failed to stop HTTP server")
		}
	}
	return nil
}

// Address returns the scrape URL.
func (s *Server) Address() string {
	return fmt.Sprintf("http://localhost:%d%s", s.port, s.path)
}
