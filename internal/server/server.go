// Package server exposes a store.Store over the JSON HTTP API the TUI client
// speaks.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"ocrlabel/internal/annotate"
	"ocrlabel/internal/common"
	"ocrlabel/internal/schema"
	"ocrlabel/internal/store"
)

// Server handles the /api routes.
type Server struct {
	store   store.Store
	logger  *slog.Logger
	maxBody int64
	mux     *http.ServeMux
}

// New wires the routes. maxBody bounds POST bodies; zero means 10 MiB.
func New(st store.Store, maxBody int64, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	s := &Server{store: st, logger: logger, maxBody: maxBody, mux: http.NewServeMux()}
	s.mux.HandleFunc("GET /api/images", s.handleImages)
	s.mux.HandleFunc("GET /api/image/{id}", s.handleImage)
	s.mux.HandleFunc("GET /api/data/{id}", s.handleGetData)
	s.mux.HandleFunc("POST /api/data/{id}", s.handleSaveData)
	s.mux.HandleFunc("GET /api/progress", s.handleProgress)
	s.mux.HandleFunc("POST /api/progress/{kind}/{id}", s.handleMark)
	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return s
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// ServeHTTP adds CORS and request logging around the mux.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	reqID := r.Header.Get("X-Request-ID")
	if reqID == "" {
		reqID = uuid.NewString()
	}
	h.Set("X-Request-ID", reqID)

	start := time.Now()
	rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	s.mux.ServeHTTP(rec, r)
	s.logger.Info("http.request", "method", r.Method, "path", r.URL.Path,
		"status", rec.status, "request_id", reqID, "duration", time.Since(start))
}

func (s *Server) handleImages(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.Catalog(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if entries == nil {
		entries = []store.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	data, err := s.store.Image(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", http.DetectContentType(data))
	w.Write(data)
}

func (s *Server) handleGetData(w http.ResponseWriter, r *http.Request) {
	data, err := s.store.Document(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleSaveData(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "document too large")
			return
		}
		s.fail(w, common.Invalidf("read body: %v", err))
		return
	}
	doc, err := annotate.Parse(body)
	if err != nil {
		s.fail(w, common.NewAppError("VALIDATION", "document is not a JSON object", fmt.Errorf("%w: %v", common.ErrValidation, err)))
		return
	}
	// malformed values stay as loaded; only the shape the canvas works on is checked
	canon, err := json.Marshal(doc.Normalized())
	if err != nil {
		s.fail(w, err)
		return
	}
	if err := schema.Validate(canon); err != nil {
		s.fail(w, err)
		return
	}
	if err := s.store.SaveDocument(r.Context(), id, body); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	rec, err := s.store.Progress(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec.ToWire())
}

func (s *Server) handleMark(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var err error
	switch r.PathValue("kind") {
	case "viewed":
		err = s.store.MarkViewed(r.Context(), id)
	case "updated":
		err = s.store.MarkUpdated(r.Context(), id)
	default:
		err = common.NotFoundf("progress kind %q", r.PathValue("kind"))
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	code := StatusCode(err)
	if code >= 500 {
		s.logger.Error("http.error", "error", err)
	}
	writeError(w, code, err.Error())
}

// StatusCode maps an error to its HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrValidation), errors.Is(err, common.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
