// Package backend serves the StaffProof collections over HTTP for local
// development and tests.
//
// Every collection registered in package domain is exposed under
// /api/<name> with the list, create, update, action, delete and bulk
// endpoints that package fetch speaks. Records live in a store.Store.
package backend

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/abelbrown/staffproof/internal/domain"
	"github.com/abelbrown/staffproof/internal/logging"
	"github.com/abelbrown/staffproof/internal/store"
)

// Options configures a Server.
type Options struct {
	// Latency is added to every /api request, for exercising loading states.
	Latency time.Duration

	// Now overrides the clock used to stamp new records.
	Now func() time.Time
}

// Server is the mock collection backend.
type Server struct {
	store   *store.Store
	latency time.Duration
	now     func() time.Time
}

// New creates a server over s.
func New(s *store.Store, opts Options) *Server {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Server{store: s, latency: opts.Latency, now: now}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(requestLogging)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "resources": domain.Names()})
	})

	r.Route("/api/{resource}", func(r chi.Router) {
		r.Use(s.injectLatency)
		r.Use(resolveResource)

		r.Get("/", s.handleList)
		r.Post("/", s.handleCreate)
		// POST /{action}: the segment is named id to share the route node.
		r.Post("/{id}", s.handleBulk)
		r.Get("/{id}", s.handleGet)
		r.Put("/{id}", s.handleUpdate)
		r.Put("/{id}/{action}", s.handleAction)
		r.Delete("/{id}", s.handleDelete)
	})
	return r
}

type descriptorKey struct{}

func resolveResource(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		d, ok := domain.Lookup(chi.URLParam(r, "resource"))
		if !ok {
			writeError(w, http.StatusNotFound, "unknown resource", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(withDescriptor(r.Context(), d)))
	})
}

func (s *Server) injectLatency(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.latency > 0 {
			select {
			case <-time.After(s.latency):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"query", r.URL.RawQuery,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()))
	})
}

// errorBody is the error shape fetch.Client decodes into field messages.
type errorBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

func writeError(w http.ResponseWriter, status int, msg string, fields map[string]string) {
	writeJSON(w, status, errorBody{Error: msg, Fields: fields})
}

// writeStoreError maps store and handler errors to statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	var he *httpError
	switch {
	case errors.As(err, &he):
		writeError(w, he.status, he.msg, he.fields)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found", nil)
	case errors.Is(err, store.ErrConflict):
		writeError(w, http.StatusConflict, "already exists", nil)
	default:
		logging.Error("backend store failure", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error", nil)
	}
}

// httpError carries a client-facing failure out of a store transaction.
type httpError struct {
	status int
	msg    string
	fields map[string]string
}

func (e *httpError) Error() string { return e.msg }

func invalid(fields map[string]string) *httpError {
	return &httpError{status: http.StatusUnprocessableEntity, msg: "validation failed", fields: fields}
}
