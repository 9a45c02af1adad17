package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/tierflow/internal/metrics"
)

// Server exposes health and Prometheus metrics endpoints for long-running
// scans.
type Server struct {
	srv       *http.Server
	collector *metrics.Collector
	startedAt time.Time
}

// NewServer builds the monitoring server on the given address.
func NewServer(addr string, collector *metrics.Collector) *Server {
	s := &Server{
		collector: collector,
		startedAt: time.Now(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(collector.Registry(),
		promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start serves until Shutdown is called. Blocking.
func (s *Server) Start() error {
	log.Info().Str("addr", s.srv.Addr).Msg("Monitoring server listening")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains connections and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":         "healthy",
		"uptime_seconds": int(time.Since(s.startedAt).Seconds()),
	})
}
