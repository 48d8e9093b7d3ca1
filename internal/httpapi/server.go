// Package httpapi implements the Operational Status Surface (C7): a
// minimal read-only HTTP view over job and version state, plus a blob
// redirect. It carries no CRUD, authentication, or audit logic — the core
// engines have exactly one concrete caller path here beyond the CLI.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/nishad/bdp/internal/blobstore"
	"github.com/nishad/bdp/internal/catalog"
	bdperrors "github.com/nishad/bdp/internal/errors"
)

// Server is the read-only status HTTP surface.
type Server struct {
	router *mux.Router
	server *http.Server
	db     *catalog.DB
	blobs  blobstore.Store
}

// Config holds server configuration.
type Config struct {
	Host string
	Port int
}

// NewServer wires routes over an already-open catalog DB and blob store.
func NewServer(cfg Config, db *catalog.DB, blobs blobstore.Store) *Server {
	s := &Server{router: mux.NewRouter(), db: db, blobs: blobs}
	s.setupRoutes()
	s.router.Use(loggingMiddleware)

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/jobs/{id}", s.handleGetJob).Methods("GET")
	s.router.HandleFunc("/versions/{org}/{slug}", s.handleGetVersion).Methods("GET")
	s.router.HandleFunc("/blobs/{key:.+}", s.handleGetBlob).Methods("GET")
	s.router.HandleFunc("/healthz", s.handleHealth).Methods("GET")
}

// Start runs the server until it errors or is shut down.
func (s *Server) Start() error {
	log.Printf("status surface listening on %s", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		log.Printf("%s %s %s", r.Method, r.RequestURI, time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case bdperrors.IsKind(err, bdperrors.KindNotFound):
		status = http.StatusNotFound
	case bdperrors.IsKind(err, bdperrors.KindValidation):
		status = http.StatusBadRequest
	case bdperrors.IsKind(err, bdperrors.KindDeprecated):
		status = http.StatusGone
	}
	writeJSON(w, status, map[string]interface{}{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
