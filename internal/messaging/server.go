package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"focusflow/internal/logging"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const maxRequestBytes = 1 << 20

// Server is the HTTP transport of the dispatcher.
type Server struct {
	dispatcher *Dispatcher
	hub        *Hub
	metrics    http.Handler
	origins    OriginPolicy
	log        *logrus.Entry

	httpServer *http.Server
	listener   net.Listener
}

// ServerOption customizes a Server.
type ServerOption func(*Server)

// WithOriginPolicy sets the browser origins allowed to post messages.
// Without it only requests lacking an Origin header are served.
func WithOriginPolicy(policy OriginPolicy) ServerOption {
	return func(server *Server) {
		server.origins = policy
	}
}

// NewServer builds the routes. hub and metrics may be nil.
func NewServer(addr string, dispatcher *Dispatcher, hub *Hub, metrics http.Handler, options ...ServerOption) *Server {
	server := &Server{
		dispatcher: dispatcher,
		hub:        hub,
		metrics:    metrics,
		log:        logging.NewLogger("messaging"),
	}
	for _, option := range options {
		option(server)
	}
	server.httpServer = &http.Server{
		Addr:              addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return server
}

// Handler returns the route table.
func (server *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/message", server.handleMessage)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if server.hub != nil {
		mux.Handle("GET /api/events", server.hub)
	}
	if server.metrics != nil {
		mux.Handle("GET /metrics", server.metrics)
	}
	return mux
}

// Start listens and serves in the background.
func (server *Server) Start() error {
	listener, err := net.Listen("tcp", server.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", server.httpServer.Addr, err)
	}
	server.listener = listener
	server.log.WithField("addr", listener.Addr().String()).Info("Message surface listening")

	go func() {
		if err := server.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			server.log.WithError(err).Error("Message surface stopped")
		}
	}()
	return nil
}

// Addr returns the bound address once started.
func (server *Server) Addr() string {
	if server.listener == nil {
		return server.httpServer.Addr
	}
	return server.listener.Addr().String()
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (server *Server) Shutdown(ctx context.Context) error {
	return server.httpServer.Shutdown(ctx)
}

func (server *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	requestID := r.Header.Get("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set("X-Request-ID", requestID)
	log := server.log.WithField("request_id", requestID)

	if origin := r.Header.Get("Origin"); !server.origins.Allows(origin) {
		log.WithField("origin", origin).Warn("Rejected message from disallowed origin")
		writeJSON(w, http.StatusForbidden, Result{Success: false, Error: "origin not allowed"})
		return
	}
	if !isJSON(r) {
		writeJSON(w, http.StatusUnsupportedMediaType, Result{Success: false, Error: "content type must be application/json"})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	if err != nil {
		log.WithError(err).Debug("Failed to read request body")
		writeJSON(w, http.StatusBadRequest, Result{Success: false, Error: "read request body"})
		return
	}

	response, err := server.dispatcher.Dispatch(r.Context(), body)
	if err != nil {
		log.WithError(err).Debug("Rejected request")
		writeJSON(w, http.StatusBadRequest, Result{Success: false, Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
