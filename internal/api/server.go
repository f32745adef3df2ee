// Package api provides the loopback control API of the autores daemon and
// the client the CLI uses to reach it.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// EventSource supplies live notifications to stream subscribers.
type EventSource interface {
	Subscribe(buffer int) (string, <-chan domain.Notification, func())
	Dropped(id string) int64
}

// StateResponse is the body of GET /api/state.
type StateResponse struct {
	Version   string                  `json:"version"`
	PID       int                     `json:"pid"`
	StartedAt time.Time               `json:"startedAt"`
	Platform  string                  `json:"platform"`
	Degraded  bool                    `json:"degraded"`
	State     domain.StateSnapshot    `json:"state"`
	Config    domain.AutomationConfig `json:"config"`
}

// RevertResponse is the body of POST /api/revert.
type RevertResponse struct {
	Pending bool `json:"pending"`
}

// Server is the daemon control API.
type Server struct {
	display   domain.DisplayController
	automator domain.Automator
	config    domain.ConfigSource
	events    EventSource
	logger    *zap.Logger

	version   string
	platform  string
	startedAt time.Time
	degraded  func() bool

	keepAlive time.Duration
}

// NewServer creates a control API server.
func NewServer(
	display domain.DisplayController,
	automator domain.Automator,
	config domain.ConfigSource,
	events EventSource,
	logger *zap.Logger,
) *Server {
	return &Server{
		display:   display,
		automator: automator,
		config:    config,
		events:    events,
		logger:    logger,
		startedAt: time.Now(),
		degraded:  func() bool { return false },
		keepAlive: 15 * time.Second,
	}
}

// SetVersion sets the version reported by /api/state.
func (s *Server) SetVersion(v string) { s.version = v }

// SetPlatform sets the platform name reported by /api/state.
func (s *Server) SetPlatform(name string) { s.platform = name }

// SetDegraded sets the degraded-mode check reported by /api/state.
func (s *Server) SetDegraded(fn func() bool) { s.degraded = fn }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/modes", s.handleModes)
		r.Get("/mode", s.handleCurrentMode)
		r.Put("/mode", s.handleSetMode)
		r.Post("/revert", s.handleRevert)
		r.Get("/state", s.handleState)
		r.Get("/events", s.handleEvents)
	})

	return r
}

// Listen opens the loopback listener. addr "" picks a free port.
func Listen(addr string) (net.Listener, error) {
	if addr == "" {
		addr = "127.0.0.1:0"
	}
	return net.Listen("tcp", addr)
}

// Serve serves the API on ln until ctx is canceled. Streaming requests are
// tied to ctx so shutdown does not wait on them.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) handleModes(w http.ResponseWriter, r *http.Request) {
	modes, err := s.display.SupportedModes()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, modes)
}

func (s *Server) handleCurrentMode(w http.ResponseWriter, r *http.Request) {
	mode, err := s.display.Current()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mode)
}

func (s *Server) handleSetMode(w http.ResponseWriter, r *http.Request) {
	var mode domain.Resolution
	if err := json.NewDecoder(r.Body).Decode(&mode); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !mode.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid mode %s", mode))
		return
	}

	if err := s.display.Apply(mode); err != nil {
		s.logger.Warn("manual resolution change failed", zap.Stringer("mode", mode), zap.Error(err))
		writeDomainError(w, err)
		return
	}
	s.logger.Info("manual resolution change", zap.Stringer("mode", mode))
	writeJSON(w, http.StatusOK, mode)
}

func (s *Server) handleRevert(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, RevertResponse{Pending: s.automator.ForceRevert()})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StateResponse{
		Version:   s.version,
		PID:       os.Getpid(),
		StartedAt: s.startedAt,
		Platform:  s.platform,
		Degraded:  s.degraded(),
		State:     s.automator.Snapshot(),
		Config:    s.config.Current(),
	})
}

// handleEvents streams notifications as server-sent events.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	id, events, cancel := s.events.Subscribe(32)
	defer func() {
		if dropped := s.events.Dropped(id); dropped > 0 {
			s.logger.Warn("event stream fell behind",
				zap.String("subscriber", id),
				zap.Int64("dropped", dropped))
		}
		cancel()
	}()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	s.logger.Debug("event stream opened", zap.String("subscriber", id))
	defer s.logger.Debug("event stream closed", zap.String("subscriber", id))

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case n, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", n.ID, n.Event, data)
			flusher.Flush()
		}
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("api request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	var body errorBody
	body.Error.Message = msg
	body.Error.Type = "error"
	writeJSON(w, status, body)
}

// writeDomainError maps domain sentinels to HTTP status codes.
func writeDomainError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrModeNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrModeChangeRejected):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrUnsupported):
		status = http.StatusNotImplemented
	}
	writeError(w, status, err.Error())
}
