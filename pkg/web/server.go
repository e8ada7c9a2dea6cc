package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/ritzau/dirscan/pkg/finder"
	"github.com/ritzau/dirscan/pkg/logging"
	"github.com/ritzau/dirscan/pkg/pubsub"
	"github.com/ritzau/dirscan/pkg/runner"
)

// ScanResponse is returned by GET /api/scan
type ScanResponse struct {
	*finder.Result
	Generation int    `json:"generation"`
	LastError  string `json:"lastError,omitempty"`
}

// Server exposes scan results over HTTP
type Server struct {
	router    *mux.Router
	runner    *runner.ScanRunner
	publisher pubsub.Publisher
	topics    map[string]bool
}

// NewServer creates a new web server. The publisher should be the one the
// runner publishes to.
func NewServer(r *runner.ScanRunner, publisher *pubsub.SSEPublisher) *Server {
	// Subscribers only care about the current state
	publisher.ConfigureTopic(pubsub.TopicScanStatus, pubsub.TopicConfig{BufferSize: 10, ReplayAll: false})
	publisher.ConfigureTopic(pubsub.TopicScanResult, pubsub.TopicConfig{BufferSize: 5, ReplayAll: false})

	s := &Server{
		router:    mux.NewRouter(),
		runner:    r,
		publisher: publisher,
		topics: map[string]bool{
			pubsub.TopicScanStatus: true,
			pubsub.TopicScanResult: true,
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware)

	s.router.HandleFunc("/api/subscribe/{topic}", s.handleSubscribe).Methods("GET")
	s.router.HandleFunc("/api/scan", s.handleGetScan).Methods("GET")
	s.router.HandleFunc("/api/scan", s.handleTriggerScan).Methods("POST")
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	result, generation, lastErr := s.runner.Latest()
	if result == nil {
		msg := "no scan has completed yet"
		if lastErr != nil {
			msg = lastErr.Error()
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": msg})
		return
	}

	resp := ScanResponse{Result: result, Generation: generation}
	if lastErr != nil {
		resp.LastError = lastErr.Error()
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleTriggerScan starts a rescan. With ?wait=true the scan runs inline
// and its result is returned.
func (s *Server) handleTriggerScan(w http.ResponseWriter, r *http.Request) {
	reason := "requested over HTTP"

	if r.URL.Query().Get("wait") == "true" {
		result, err := s.runner.Run(r.Context(), reason)
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		_, generation, _ := s.runner.Latest()
		writeJSON(w, http.StatusOK, ScanResponse{Result: result, Generation: generation})
		return
	}

	requestID := logging.GetRequestID(r.Context())
	go func() {
		ctx := logging.WithRequestID(context.Background(), requestID)
		s.runner.Run(ctx, reason)
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": pubsub.StateScanning})
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	if !s.topics[topic] {
		http.Error(w, fmt.Sprintf("unknown topic %q", topic), http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub, err := s.publisher.Subscribe(r.Context(), topic)
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// Initial comment establishes the stream (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.WarnContext(r.Context(), "error writing SSE event", "topic", topic, "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Warn("failed to encode response", "error", err)
	}
}

// Start serves on the given port until ctx is cancelled
func (s *Server) Start(ctx context.Context, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		// Request contexts derive from ctx so open SSE streams end with it
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}
