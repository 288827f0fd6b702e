package web

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"tetherd/internal/config"
	"tetherd/internal/leases"
	"tetherd/internal/metrics"
	"tetherd/internal/tether"
)

// Server represents the HTTP server
type Server struct {
	cfg     *config.Config
	core    *tether.Core
	monitor *leases.Monitor
	metrics *metrics.Metrics
	mux     *http.ServeMux
	http    *http.Server
}

// NewServer creates a new web server. mon and m may be nil; leases are then
// parsed per request and /metrics is not served.
func NewServer(cfg *config.Config, core *tether.Core, mon *leases.Monitor, m *metrics.Metrics) *Server {
	server := &Server{
		cfg:     cfg,
		core:    core,
		monitor: mon,
		metrics: m,
		mux:     http.NewServeMux(),
	}

	server.setupRoutes()
	server.http = &http.Server{
		Addr:              cfg.HTTPListen,
		Handler:           server.logRequests(server.mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return server
}

// Handler returns the routed handler, used by tests
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	log.WithField("listen", s.cfg.HTTPListen).Info("Starting web server")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// setupRoutes configures HTTP routes
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/leases", s.handleLeasesAPI)
	s.mux.HandleFunc("/api/running", s.handleRunningAPI)
	s.mux.HandleFunc("/api/lan", s.handleLanAPI)
	s.mux.HandleFunc("/api/wlan", s.handleWlanAPI)
	s.mux.HandleFunc("/api/dns", s.handleDNSAPI)
	s.mux.HandleFunc("/api/whitelist", s.handleWhitelistAPI)
	s.mux.HandleFunc("/api/status", s.handleStatusAPI)

	if s.metrics != nil {
		s.mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.WithFields(log.Fields{
			"remote": r.RemoteAddr,
			"method": r.Method,
			"url":    r.URL.String(),
		}).Debug("Request")
		next.ServeHTTP(w, r)
	})
}
