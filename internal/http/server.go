package http

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tinylsm/pkg/codec"
	"tinylsm/pkg/dberrors"
	"tinylsm/pkg/store"
)

const (
	contentTypeJSON          = "application/json"
	defaultHTTPPort          = "8080"
	defaultShutdownTimeout   = time.Second * 5
	defaultReadHeaderTimeout = time.Second
	maxBatchBodyBytes        = 16 << 20
)

type iStoreAPI interface {
	Insert(key, value []byte) ([]byte, bool, error)
	Remove(key []byte) ([]byte, bool, error)
	WriteBatch(records []codec.Record) error
	Get(key []byte) ([]byte, bool)
	Flush() error
	Stats() (store.Stats, error)
}

// Server represents the HTTP server with storage
type Server struct {
	store      iStoreAPI
	metrics    http.Handler
	httpServer *http.Server
	URL        string
	addr       string

	readHeaderTimeout time.Duration
}

type ServerOption func(*Server)

// WithMetricsHandler serves h on /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(s *Server) {
		s.metrics = h
	}
}

func WithReadHeaderTimeout(d time.Duration) ServerOption {
	return func(s *Server) {
		if d > 0 {
			s.readHeaderTimeout = d
		}
	}
}

// NewServer creates a new server instance
func NewServer(st iStoreAPI, port string, opts ...ServerOption) *Server {
	if port == "" {
		port = defaultHTTPPort
	}
	s := &Server{
		store:             st,
		URL:               "http://localhost:" + port,
		addr:              ":" + port,
		readHeaderTimeout: defaultReadHeaderTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start starts the server
func (s *Server) Start() error {
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() error {
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to shutdown HTTP server: %w", err)
		}
	}
	return nil
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.createRouter()
}

// createRouter builds chi router
func (s *Server) createRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/api", func(r chi.Router) {
		r.Get("/records/{key}", s.handleGet)
		r.Put("/records/{key}", s.handlePut)
		r.Delete("/records/{key}", s.handleDelete)
		r.Post("/batch", s.handleBatch)
		r.Post("/flush", s.handleFlush)
		r.Get("/stats", s.handleStats)
	})

	return r
}

func (s *Server) startHTTPServer() error {
	s.httpServer = &http.Server{
		Addr:              s.addr,
		Handler:           s.createRouter(),
		ReadHeaderTimeout: s.readHeaderTimeout,
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("HTTP server started", "addr", s.URL)
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Warn("Error encoding response", "error", err)
	}
}

// writeStoreError maps engine errors onto status codes.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dberrors.ErrKeySize), errors.Is(err, dberrors.ErrValueSize), errors.Is(err, dberrors.ErrInvalidArgument):
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(err.Error()))
	case errors.Is(err, dberrors.ErrClosed):
		s.writeJSON(w, http.StatusServiceUnavailable, NewErrorResponse(err.Error()))
	default:
		slog.Error("Store operation failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, NewErrorResponse(err.Error()))
	}
}

func (s *Server) pathKey(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	key, err := hex.DecodeString(chi.URLParam(r, "key"))
	if err != nil || len(key) == 0 {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Key must be non-empty hex"))
		return nil, false
	}
	return key, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewOKResponse())
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics != nil {
		s.metrics.ServeHTTP(w, r)
		return
	}
	if _, err := w.Write([]byte("# tinylsm metrics disabled\n")); err != nil {
		slog.Warn("Failed to write metrics response", "error", err)
	}
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key, ok := s.pathKey(w, r)
	if !ok {
		return
	}

	value, found := s.store.Get(key)
	if !found {
		s.writeJSON(w, http.StatusNotFound, NewErrorResponse(dberrors.ErrNotFound.Error()))
		return
	}

	s.writeJSON(w, http.StatusOK, NewValueResponse(hex.EncodeToString(value)))
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key, ok := s.pathKey(w, r)
	if !ok {
		return
	}

	if err := r.ParseForm(); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Failed to parse form"))
		return
	}
	if !r.Form.Has("value") {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Missing value"))
		return
	}
	value, err := hex.DecodeString(r.FormValue("value"))
	if err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse("Value must be hex"))
		return
	}

	prev, had, err := s.store.Insert(key, value)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	if had {
		s.writeJSON(w, http.StatusOK, NewPreviousResponse(hex.EncodeToString(prev)))
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	key, ok := s.pathKey(w, r)
	if !ok {
		return
	}

	prev, had, err := s.store.Remove(key)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	if had {
		s.writeJSON(w, http.StatusOK, NewPreviousResponse(hex.EncodeToString(prev)))
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse())
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBatchBodyBytes))
	if err := dec.Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(err.Error()))
		return
	}

	records := make([]codec.Record, 0, len(req.Records))
	for i, br := range req.Records {
		key, err := hex.DecodeString(br.Key)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(fmt.Sprintf("record %d: key must be hex", i)))
			return
		}
		if br.Delete {
			records = append(records, codec.Delete(key))
			continue
		}
		value, err := hex.DecodeString(br.Value)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, NewErrorResponse(fmt.Sprintf("record %d: value must be hex", i)))
			return
		}
		records = append(records, codec.Put(key, value))
	}

	if err := s.store.WriteBatch(records); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse())
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Flush(); err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, NewSuccessResponse())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.Stats()
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}
