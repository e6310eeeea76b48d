// Package server exposes the session manager over HTTP: REST endpoints to
// start, poll and stop sessions, plus SSE and websocket event streams.
package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/config"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/logger"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/internal/session"
	"github.com/sreeanthrds/tradelayout-live-engine-sub002/pkg/errors"
)

// Server serves the engine's control API.
type Server struct {
	cfg      *config.EngineConfig
	manager  *session.Manager
	log      *logger.Logger
	validate *validator.Validate
	upgrader websocket.Upgrader

	httpServer *http.Server
	listener   net.Listener
}

// New creates a server over the given session manager. Call Start to listen.
func New(cfg *config.EngineConfig, manager *session.Manager, log *logger.Logger) *Server {
	return &Server{
		cfg:      cfg,
		manager:  manager,
		log:      log,
		validate: validator.New(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		httpServer: nil,
		listener:   nil,
	}
}

// Router builds the HTTP route table.
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()
	router.Use(s.logRequests)

	router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	api := router.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/backtests", s.handleStartBacktest).Methods(http.MethodPost)
	api.HandleFunc("/simulations", s.handleStartLiveSim).Methods(http.MethodPost)
	api.HandleFunc("/sessions", s.handleListSessions).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{sessionID}", s.handleGetSession).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{sessionID}", s.handleStopSession).Methods(http.MethodDelete)
	api.HandleFunc("/sessions/{sessionID}/events", s.handleSessionEvents).Methods(http.MethodGet)
	api.HandleFunc("/sessions/{sessionID}/ws", s.handleSessionWS).Methods(http.MethodGet)
	api.HandleFunc("/schema", s.handleSchema).Methods(http.MethodGet)

	return router
}

// Start begins serving on the given address, or on the configured bind
// address when empty. It returns once the listener is bound; serving
// continues in the background until Stop.
func (s *Server) Start(address string) error {
	if address == "" {
		address = s.cfg.Server.Bind
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeUnknown, err, "failed to listen on %s", address)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("http server stopped", zap.Error(err))
		}
	}()

	s.log.Info("http api listening", zap.String("address", s.Address()))

	return nil
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Address returns the bound listen address, or "" before Start.
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// BaseURL returns the http URL of the bound listener.
func (s *Server) BaseURL() string {
	return "http://" + s.Address()
}

// WebSocketURL returns the ws URL of the bound listener.
func (s *Server) WebSocketURL() string {
	return "ws://" + s.Address()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.log.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

type errorResponse struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := errors.GetCode(err)
	s.writeJSON(w, statusForCode(code), errorResponse{
		Error: errorDetail{
			Code:    int(code),
			Message: errorMessage(err),
		},
	})
}

// errorMessage strips the "[code]" prefix that Error() adds, keeping the
// body's code field the single place the code appears.
func errorMessage(err error) string {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.Message
	}

	return err.Error()
}

func statusForCode(code errors.ErrorCode) int {
	switch code {
	case errors.ErrCodeInvalidParameter, errors.ErrCodeInvalidConfiguration:
		return http.StatusBadRequest
	case errors.ErrCodeInvalidGraph:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeStrategyNotFound, errors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case errors.ErrCodeStrategyFetchFailed:
		return http.StatusBadGateway
	case errors.ErrCodeSessionNotRunning:
		return http.StatusConflict
	case errors.ErrCodeSessionLimitReached:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
