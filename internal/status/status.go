// Package status serves a small HTTP endpoint for health checks and the state
// of the deletion queue.
package status

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/keshon/warden-bot/internal/store"
)

// Logger is the subset of the bot logger the server writes to.
type Logger interface {
	Debug(msg string, keyvals ...interface{})
	Warn(msg string, keyvals ...interface{})
	Error(msg string, keyvals ...interface{})
}

// DeletionCounter reports how many scheduled deletions are in each state.
type DeletionCounter interface {
	DeletionCounts(ctx context.Context) (map[store.DeletionStatus]int64, error)
}

// DeletionsResponse is the body of GET /deletions.
type DeletionsResponse struct {
	Pending int64 `json:"pending"`
	Removed int64 `json:"removed"`
	Errored int64 `json:"errored"`
}

// NewRouter returns the status routes. l may be nil.
func NewRouter(counter DeletionCounter, l Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(l))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/deletions", func(w http.ResponseWriter, req *http.Request) {
		counts, err := counter.DeletionCounts(req.Context())
		if err != nil {
			if l != nil {
				l.Error("counting deletions failed", "error", err)
			}
			jsonError(w, "could not count deletions", http.StatusInternalServerError)
			return
		}
		jsonResponse(w, DeletionsResponse{
			Pending: counts[store.DeletionPending],
			Removed: counts[store.DeletionRemoved],
			Errored: counts[store.DeletionErrored],
		}, http.StatusOK)
	})
	return r
}

// requestLogger logs every request at debug level and failed ones at warn.
func requestLogger(l Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			kv := []interface{}{"method", r.Method, "path", r.URL.Path, "status", status, "duration", time.Since(start)}
			if status >= http.StatusBadRequest {
				l.Warn("status request failed", kv...)
				return
			}
			l.Debug("status request", kv...)
		})
	}
}

func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func jsonError(w http.ResponseWriter, msg string, status int) {
	jsonResponse(w, map[string]string{"error": msg}, status)
}

// Server runs the status router until Shutdown.
type Server struct {
	srv *http.Server
	log Logger
}

// NewServer binds the status router to addr.
func NewServer(addr string, counter DeletionCounter, l Logger) *Server {
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(counter, l),
			ReadHeaderTimeout: 5 * time.Second,
		},
		log: l,
	}
}

// Start serves in the background. Listen errors other than a clean shutdown are logged.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.log != nil {
				s.log.Error("status server stopped", "addr", s.srv.Addr, "error", err)
			}
		}
	}()
}

// Shutdown stops the server, waiting for in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
