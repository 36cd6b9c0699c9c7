package simworker

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mattjoyce/farmctl/internal/transport"
)

// Config holds simulator server settings.
type Config struct {
	Listen     string
	Path       string
	Credential string
}

// Reply is the JSON envelope returned for every command.
type Reply struct {
	Success bool   `json:"Success"`
	Message string `json:"Message"`
	Result  string `json:"Result,omitempty"`
}

// Server exposes a Farm over HTTP the way a worker's IPC interface does.
type Server struct {
	config Config
	farm   *Farm
	logger *slog.Logger
	server *http.Server
}

// NewServer creates a server for farm.
func NewServer(config Config, farm *Farm, logger *slog.Logger) *Server {
	if config.Path == "" {
		config.Path = "/IPC"
	}
	return &Server{config: config, farm: farm, logger: logger}
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Listen,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Info("IPC server starting", "listen", s.config.Listen, "path", s.config.Path)

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("IPC server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealthz)
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get(s.config.Path, s.handleCommand)
	})
	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{"status": "ok", "bots": len(s.farm.StatusLines())})
}

// handleCommand handles GET {path}?command=<line>.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	line := r.URL.Query().Get("command")
	if line == "" {
		respondJSON(w, http.StatusBadRequest, Reply{Success: false, Message: "command parameter is required"})
		return
	}

	result, ok := s.farm.Execute(line)
	if !ok {
		respondJSON(w, http.StatusOK, Reply{Success: false, Message: result})
		return
	}
	respondJSON(w, http.StatusOK, Reply{Success: true, Message: "OK", Result: result})
}

// authMiddleware checks the credential header when one is configured.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.config.Credential == "" {
			next.ServeHTTP(w, r)
			return
		}
		provided := r.Header.Get(transport.CredentialHeader)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(s.config.Credential)) != 1 {
			respondJSON(w, http.StatusUnauthorized, Reply{Success: false, Message: "invalid credential"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"command", r.URL.Query().Get("command"),
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}

func respondJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
