// Package httpstore exposes a blob store over HTTP and provides the matching client.
//
// The protocol is a plain object API:
//
//	GET  /blobs/{key}  200 with the blob, 404 when absent
//	PUT  /blobs/{key}  204 once stored
//	GET  /healthz      200
//
// Keys are path-escaped as a single segment.
package httpstore

import (
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"go.trai.ch/rig/internal/core/ports"
	"go.trai.ch/zerr"
)

// Server serves a ports.BlobStore over HTTP.
type Server struct {
	store  ports.BlobStore
	logger ports.Logger
	router chi.Router
}

// NewServer builds the HTTP handler for store.
func NewServer(store ports.BlobStore, logger ports.Logger) *Server {
	s := &Server{store: store, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})
	r.Get("/blobs/*", s.handleGet)
	r.Put("/blobs/*", s.handlePut)
	s.router = r

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func blobKey(r *http.Request) (string, error) {
	key, err := url.PathUnescape(chi.URLParam(r, "*"))
	if err != nil {
		return "", err
	}
	if key == "" {
		return "", zerr.New("empty key")
	}
	return key, nil
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	key, err := blobKey(r)
	if err != nil {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}

	rc, err := s.store.Get(r.Context(), key)
	if err != nil {
		s.logger.Error(zerr.With(zerr.Wrap(err, "blob read failed"), "key", key))
		http.Error(w, "read failed", http.StatusInternalServerError)
		return
	}
	if rc == nil {
		http.NotFound(w, r)
		return
	}
	defer rc.Close() //nolint:errcheck // Best effort close in defer

	w.Header().Set("Content-Type", "application/gzip")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		s.logger.Warn(fmt.Sprintf("sending %s: %v", key, err))
	}
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	key, err := blobKey(r)
	if err != nil {
		http.Error(w, "invalid key", http.StatusBadRequest)
		return
	}

	if err := s.store.Put(r.Context(), key, r.Body); err != nil {
		s.logger.Error(zerr.With(zerr.Wrap(err, "blob write failed"), "key", key))
		http.Error(w, "write failed", http.StatusInternalServerError)
		return
	}
	s.logger.Info("stored " + key)
	w.WriteHeader(http.StatusNoContent)
}
