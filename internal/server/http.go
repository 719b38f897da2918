package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP front end of the modem.
type Server struct {
	mux     *http.ServeMux
	handler *Handlers
	addr    string
	httpSrv *http.Server
}

// NewServer creates a new HTTP server. Metrics are served from gatherer.
func NewServer(addr string, handler *Handlers, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		mux:     http.NewServeMux(),
		handler: handler,
		addr:    addr,
	}
	s.setupRoutes(gatherer)
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes(gatherer prometheus.Gatherer) {
	// API routes
	s.mux.HandleFunc("/api/modulate", s.handler.HandleModulate)
	s.mux.HandleFunc("/api/demodulate", s.handler.HandleDemodulate)
	s.mux.HandleFunc("/api/play", s.handler.HandlePlay)
	s.mux.HandleFunc("/api/config", s.handler.HandleConfig)
	s.mux.HandleFunc("/api/devices", s.handler.HandleDevices)

	// WebSocket
	s.mux.HandleFunc("/ws", s.handler.HandleWebSocket)

	s.mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
}

// Handler returns the routed handler with request IDs attached.
func (s *Server) Handler() http.Handler {
	return withRequestID(s.mux)
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	log.Printf("Starting server on %s", s.addr)
	if err := s.httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

type requestIDKey struct{}

// withRequestID tags each request with the caller's X-Request-ID or a new
// UUID.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-ID")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id)))
	})
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
