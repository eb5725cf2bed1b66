// Package server exposes stored insights over a read-only HTTP API bound to
// the loopback interface.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/ConfabulousDev/confab-insights/internal/insight"
	"github.com/ConfabulousDev/confab-insights/internal/logger"
	"github.com/ConfabulousDev/confab-insights/internal/store"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// ErrNonLoopback is returned for bind addresses reachable from other hosts
var ErrNonLoopback = errors.New("bind address must be a loopback address")

// Server serves records from the file store, using the index for listing
type Server struct {
	store *store.FileStore
	index *store.Index
	now   func() time.Time
}

func New(fs *store.FileStore, idx *store.Index) *Server {
	return &Server{store: fs, index: idx, now: time.Now}
}

// SetupRoutes builds the router
func (s *Server) SetupRoutes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(loopbackHost)

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/insights", s.handleListInsights)
		r.Get("/insights/{sessionId}", s.handleGetInsight)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// loopbackHost rejects requests whose Host header names anything but a
// loopback address, so a rebound DNS name cannot reach the API.
func loopbackHost(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host := r.Host
		if h, _, err := net.SplitHostPort(host); err == nil {
			host = h
		}
		if !isLoopbackHost(strings.Trim(host, "[]")) {
			logger.Warn("rejected request with foreign host", "host", r.Host, "path", r.URL.Path)
			respondError(w, http.StatusForbidden, "invalid host")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isLoopbackHost(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// CheckLoopback rejects addresses whose host is not a loopback IP or
// "localhost".
func CheckLoopback(addr string) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("invalid bind address %q: %w", addr, err)
	}
	if !isLoopbackHost(host) {
		return fmt.Errorf("%w: %s", ErrNonLoopback, addr)
	}
	return nil
}

// ListenAndServe runs until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if err := CheckLoopback(addr); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.SetupRoutes(),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving insights API", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type listResponse struct {
	Insights []store.Entry `json:"insights"`
	Count    int           `json:"count"`
}

// handleListInsights supports ?outcome=, ?tag=, ?since= and ?limit=
func (s *Server) handleListInsights(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := store.Filter{Tag: q.Get("tag"), Limit: defaultLimit}
	if o := q.Get("outcome"); o != "" {
		f.Outcome = insight.Outcome(o)
		if !f.Outcome.Valid() {
			respondError(w, http.StatusBadRequest, "invalid outcome")
			return
		}
	}
	if v := q.Get("since"); v != "" {
		since, err := store.ParseSince(v, s.now())
		if err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Since = since
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		f.Limit = min(n, maxLimit)
	}

	entries, err := s.index.Query(r.Context(), f)
	if err != nil {
		logger.Error("failed to query index", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list insights")
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	respondJSON(w, http.StatusOK, listResponse{Insights: entries, Count: len(entries)})
}

func (s *Server) handleGetInsight(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionId")
	rec, err := s.store.Load(id)
	switch {
	case errors.Is(err, store.ErrInvalidSessionID):
		respondError(w, http.StatusBadRequest, "invalid session id")
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "insight not found")
	case err != nil:
		logger.Error("failed to load insight", "session_id", id, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load insight")
	default:
		respondJSON(w, http.StatusOK, rec)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
