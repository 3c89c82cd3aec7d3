package web

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/conorfennell/geolingo/internal/deck"
	"github.com/conorfennell/geolingo/internal/review"
	"github.com/conorfennell/geolingo/internal/srs"
	"github.com/conorfennell/geolingo/internal/storage"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	reviews  *review.Service
	importer *deck.Importer
	store    storage.Store
	router   *http.ServeMux
	log      *zap.Logger
}

// NewServer creates and configures a new server.
func NewServer(reviews *review.Service, importer *deck.Importer, store storage.Store, log *zap.Logger) *Server {
	s := &Server{
		reviews:  reviews,
		importer: importer,
		store:    store,
		router:   http.NewServeMux(),
		log:      log,
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.HandleFunc("GET /api/cards", s.handleListCards())
	s.router.HandleFunc("POST /api/cards", s.handleCreateCard())
	s.router.HandleFunc("GET /api/cards/due", s.handleDueCards())
	s.router.HandleFunc("GET /api/cards/new", s.handleNewCards())
	s.router.HandleFunc("GET /api/cards/{id}", s.handleGetCard())
	s.router.HandleFunc("DELETE /api/cards/{id}", s.handleDeleteCard())
	s.router.HandleFunc("GET /api/cards/{id}/preview", s.handlePreview())
	s.router.HandleFunc("GET /api/cards/{id}/reviews", s.handleHistory())
	s.router.HandleFunc("POST /api/cards/{id}/review", s.handleReview())
	s.router.HandleFunc("GET /api/stats", s.handleStats())

	s.router.HandleFunc("GET /api/sources", s.handleListSources())
	s.router.HandleFunc("POST /api/sources", s.handleAddSource())
	s.router.HandleFunc("DELETE /api/sources/{id}", s.handleDeleteSource())
	s.router.HandleFunc("POST /api/sync", s.handleSync())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn("failed to write response", zap.Error(err))
	}
}

// writeError maps domain errors onto status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, storage.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, storage.ErrDuplicate):
		status = http.StatusConflict
	case errors.Is(err, srs.ErrInvalidArgument), errors.Is(err, review.ErrInvalidCard), errors.Is(err, deck.ErrInvalidSource):
		status = http.StatusBadRequest
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("method", r.Method), zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal server error"
	}
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleListCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cards, err := s.reviews.Queue(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, cards)
	}
}

func (s *Server) handleDueCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cards, err := s.reviews.Due(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, cards)
	}
}

func (s *Server) handleNewCards() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cards, err := s.reviews.New(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, cards)
	}
}

func (s *Server) handleCreateCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in review.NewCardInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		card, err := s.reviews.CreateCard(r.Context(), in)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, card)
	}
}

func (s *Server) handleGetCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		card, err := s.reviews.Card(r.Context(), r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, card)
	}
}

func (s *Server) handleDeleteCard() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.reviews.DeleteCard(r.Context(), r.PathValue("id")); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handlePreview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		preview, err := s.reviews.Preview(r.Context(), r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		// Keyed by button label for the client.
		out := make(map[string]srs.Result, len(preview))
		for q, res := range preview {
			out[q.String()] = res
		}
		s.writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) handleHistory() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		logs, err := s.reviews.History(r.Context(), r.PathValue("id"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, logs)
	}
}

type reviewRequest struct {
	Quality *srs.Quality `json:"quality"`
}

func (s *Server) handleReview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			if errors.Is(err, srs.ErrInvalidArgument) {
				s.writeError(w, r, err)
				return
			}
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}
		if req.Quality == nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "quality is required"})
			return
		}

		card, err := s.reviews.Review(r.Context(), r.PathValue("id"), *req.Quality)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, card)
	}
}

func (s *Server) handleStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := s.reviews.Stats(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, stats)
	}
}

func (s *Server) handleListSources() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sources, err := s.store.ListSources(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusOK, sources)
	}
}

func (s *Server) handleAddSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil || strings.TrimSpace(in.Path) == "" {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "path cannot be empty"})
			return
		}
		src, err := s.importer.AddSource(r.Context(), in.Path)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		s.writeJSON(w, http.StatusCreated, src)
	}
}

func (s *Server) handleDeleteSource() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
		if err != nil {
			s.writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid source ID"})
			return
		}
		if err := s.store.DeleteSource(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleSync runs a sync in the foreground and reports per-source results.
func (s *Server) handleSync() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, err := s.importer.SyncAll(r.Context())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if results == nil {
			results = []deck.Result{}
		}
		s.writeJSON(w, http.StatusOK, results)
	}
}
