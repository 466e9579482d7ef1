package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/scenedex/scenedex/internal/models"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := &models.SearchQuery{
		Query:   q.Get("q"),
		Mode:    models.SearchMode(q.Get("mode")),
		Seasons: splitSeasons(q.Get("season")),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		query.Limit = limit
	}
	s.logger.Debug("search request",
		zap.String("query", query.Query),
		zap.String("mode", string(query.Mode)),
		zap.Int("limit", query.Limit),
		zap.Strings("seasons", query.Seasons))

	response, err := s.engine.Search(r.Context(), query)
	if err != nil {
		s.respondErr(w, err, "search failed")
		return
	}
	s.queryLog.Append(query.Query, query.Mode, len(response.Results), clientIP(r))
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "limit must be an integer")
			return
		}
		limit = n
	}
	response, err := s.engine.Similar(r.Context(), path, limit)
	if err != nil {
		s.respondErr(w, err, "similar lookup failed")
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	force := false
	if raw := r.URL.Query().Get("refresh"); raw != "" {
		force = raw == "1" || strings.EqualFold(raw, "true")
	}
	snap, err := s.stats.Get(r.Context(), force)
	if err != nil {
		s.respondErr(w, err, "stats failed")
		return
	}
	s.respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleRandom(w http.ResponseWriter, r *http.Request) {
	result, err := s.engine.Random(r.Context())
	if err != nil {
		s.respondErr(w, err, "random frame failed")
		return
	}
	s.respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleCharacters(w http.ResponseWriter, r *http.Request) {
	counts, err := s.engine.Characters(r.Context())
	if err != nil {
		s.respondErr(w, err, "character counts failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"characters": counts})
}

func (s *Server) handleDeleteFrame(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		var body struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil && body.Path != "" {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	s.logger.Debug("delete frame request", zap.String("path", path))
	removed, err := s.coordinator.Delete(r.Context(), path)
	if err != nil {
		s.respondErr(w, err, "delete failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"path": path, "removed": removed})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// splitSeasons parses the comma-separated season filter.
func splitSeasons(raw string) []string {
	if raw == "" {
		return nil
	}
	var seasons []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			seasons = append(seasons, s)
		}
	}
	return seasons
}

// respondErr maps sentinel errors to status codes; everything else is a
// server error.
func (s *Server) respondErr(w http.ResponseWriter, err error, logMsg string) {
	switch {
	case errors.Is(err, models.ErrValidation):
		s.respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, models.ErrNotFound):
		s.respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrRateLimited):
		s.respondError(w, http.StatusTooManyRequests, err.Error())
	default:
		s.logger.Error(logMsg, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
