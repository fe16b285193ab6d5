// Package api exposes the HTTP interface for the browser fetch service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/zhhtdm/lzhbrowser/internal/browser"
	"github.com/zhhtdm/lzhbrowser/internal/id/uuid"
)

// Session is the part of the browser session the API depends on.
type Session interface {
	Fetch(ctx context.Context, req browser.FetchRequest) (string, error)
	WhitelistUpdate(patterns ...string)
}

// Server wires HTTP handlers to the browser session.
type Server struct {
	router  chi.Router
	session Session
	idGen   *uuid.Generator
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(session Session, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		session: session,
		idGen:   uuid.New(),
		logger:  logger,
	}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/fetch", s.fetch)
		r.Post("/whitelist", s.whitelistUpdate)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type fetchRequest struct {
	URL       string   `json:"url"`
	Retries   int      `json:"retries,omitempty"`
	TimeoutMs int      `json:"timeout_ms,omitempty"`
	WaitUntil string   `json:"wait_until,omitempty"`
	Selector  string   `json:"selector,omitempty"`
	Abort     []string `json:"abort,omitempty"`
}

type fetchResponse struct {
	URL  string `json:"url"`
	HTML string `json:"html"`
}

func (s *Server) fetch(w http.ResponseWriter, r *http.Request) {
	var req fetchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "missing url")
		return
	}
	if req.Retries < 0 || req.TimeoutMs < 0 {
		writeError(w, http.StatusBadRequest, "retries and timeout_ms must not be negative")
		return
	}
	waitUntil, err := browser.ParseWaitUntil(req.WaitUntil)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	abort, err := browser.ParseResourceTypes(req.Abort)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	html, err := s.session.Fetch(r.Context(), browser.FetchRequest{
		URL:       req.URL,
		Retries:   req.Retries,
		Timeout:   time.Duration(req.TimeoutMs) * time.Millisecond,
		WaitUntil: waitUntil,
		Selector:  req.Selector,
		Abort:     abort,
	})
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, fetchResponse{URL: req.URL, HTML: html})
	case errors.Is(err, browser.ErrAttemptsExhausted):
		writeError(w, http.StatusBadGateway, "fetch failed")
	case errors.Is(err, browser.ErrSessionClosed):
		writeError(w, http.StatusServiceUnavailable, "session closed")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusRequestTimeout, "request canceled")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

type whitelistRequest struct {
	Patterns []string `json:"patterns"`
}

func (s *Server) whitelistUpdate(w http.ResponseWriter, r *http.Request) {
	var req whitelistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if len(req.Patterns) == 0 {
		writeError(w, http.StatusBadRequest, "missing patterns")
		return
	}
	s.session.WhitelistUpdate(req.Patterns...)
	w.WriteHeader(http.StatusNoContent)
}

type requestIDKey struct{}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID, err := s.idGen.NewID()
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("Request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()))
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("Panic recovered", zap.Any("panic", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
