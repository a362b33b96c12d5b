// Package api provides the HTTP server for the pubfiles portal.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/pubfiles/pubfiles/internal/auth"
	"github.com/pubfiles/pubfiles/internal/logging"
	"github.com/pubfiles/pubfiles/internal/metrics"
	"github.com/pubfiles/pubfiles/internal/portal"
	"go.uber.org/zap"
)

// Server wires the portal operations to HTTP routes.
type Server struct {
	portal        *portal.Service
	sessions      *auth.Sessions
	maxUploadSize int64
}

// NewServer creates the HTTP server.
func NewServer(svc *portal.Service, sessions *auth.Sessions, maxUploadSize int64) *Server {
	return &Server{
		portal:        svc,
		sessions:      sessions,
		maxUploadSize: maxUploadSize,
	}
}

// Handler returns the HTTP handler with logging and metrics middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Public endpoints
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/v1/auth/login", s.sessions.HandleLogin)
	mux.HandleFunc("POST /api/v1/auth/logout", s.sessions.HandleLogout)
	mux.HandleFunc("GET /api/v1/files", s.handleList)
	mux.HandleFunc("GET /view/{path...}", s.handleView)

	// Mutating endpoints require a session before any handler runs.
	mux.Handle("POST /api/v1/files", s.sessions.Require(http.HandlerFunc(s.handleUpload)))
	mux.Handle("DELETE /api/v1/files", s.sessions.Require(http.HandlerFunc(s.handleDelete)))
	mux.Handle("POST /api/v1/files/move", s.sessions.Require(http.HandlerFunc(s.handleMove)))

	// The whole admin surface sits behind the session gate by prefix.
	admin := http.NewServeMux()
	admin.HandleFunc("GET /admin/files", s.handleAdminFiles)
	mux.Handle("/admin/", s.sessions.Require(admin))

	return metrics.Middleware(logging.Middleware(mux))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleList serves the public catalog: files plus derived categories.
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	c, err := s.portal.List(r.Context())
	if err != nil {
		s.sendOpError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"files":      c.Files,
		"categories": c.Categories,
	})
}

// handleAdminFiles serves the grouped catalog for the admin screen.
func (s *Server) handleAdminFiles(w http.ResponseWriter, r *http.Request) {
	c, err := s.portal.List(r.Context())
	if err != nil {
		s.sendOpError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"files":      c.Files,
		"categories": c.Categories,
		"groups":     c.Groups,
	})
}

// handleUpload handles POST /api/v1/files (multipart: file + category).
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(s.maxUploadSize); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.sendError(w, http.StatusRequestEntityTooLarge, "file too large")
			return
		}
		s.sendError(w, http.StatusBadRequest, "invalid multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		s.sendError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		s.sendError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	res, err := s.portal.Upload(r.Context(), header.Filename, r.FormValue("category"), content)
	if err != nil {
		s.sendOpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"pathname": res.Pathname,
		"url":      res.Locator,
	})
}

// handleDelete handles DELETE /api/v1/files (body: {"url": locator}).
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.sendError(w, http.StatusBadRequest, "url required")
		return
	}

	if err := s.portal.Delete(r.Context(), req.URL); err != nil {
		s.sendOpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true})
}

// handleMove handles POST /api/v1/files/move
// (body: {"url": locator, "pathname": target}).
func (s *Server) handleMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL      string `json:"url"`
		Pathname string `json:"pathname"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.sendError(w, http.StatusBadRequest, "url and pathname required")
		return
	}

	res, err := s.portal.Move(r.Context(), req.URL, req.Pathname)
	if err != nil {
		s.sendOpError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"pathname": res.Pathname,
		"url":      res.Locator,
	})
}

// handleView serves a stored document at its public extension-less
// address.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	viewPath := r.PathValue("path")
	if viewPath == "" {
		metrics.RecordView(false)
		http.NotFound(w, r)
		return
	}

	doc, err := s.portal.Resolve(r.Context(), viewPath)
	if err != nil {
		metrics.RecordView(false)
		if portal.KindOf(err) == portal.KindNotFound {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		logging.Error("view resolution failed", zap.String("path", viewPath), zap.Error(err))
		http.Error(w, "Error loading page", http.StatusInternalServerError)
		return
	}

	metrics.RecordView(true)
	w.Header().Set("Content-Type", "text/html")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.Write(doc.Content)
}

// sendOpError maps a portal error kind onto an HTTP status.
func (s *Server) sendOpError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch portal.KindOf(err) {
	case portal.KindUnauthorized:
		status = http.StatusUnauthorized
	case portal.KindInvalidFileType, portal.KindInvalidName:
		status = http.StatusBadRequest
	case portal.KindNotFound:
		status = http.StatusNotFound
	case portal.KindPartialMoveCompleted:
		status = http.StatusConflict
	case portal.KindStoreUnavailable:
		status = http.StatusBadGateway
	}
	s.sendError(w, status, err.Error())
}

func (s *Server) sendError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": message,
		"code":  code,
	})
}
