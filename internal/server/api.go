package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/player"
	"github.com/desertthunder/moodtape/internal/shared"
)

type searchResponse struct {
	Query  string         `json:"query"`
	Tracks []models.Track `json:"tracks"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, fmt.Errorf("%w: q", shared.ErrMissingArgument))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, fmt.Errorf("%w: limit must be a positive integer", shared.ErrInvalidArgument))
			return
		}
		limit = n
	}

	tracks, err := s.catalog.SearchTracks(r.Context(), q, limit)
	if err != nil {
		s.logger.Error("search failed", "query", q, "error", err)
		writeError(w, err)
		return
	}
	if tracks == nil {
		tracks = []models.Track{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: q, Tracks: tracks})
}

type streamResponse struct {
	TrackID string `json:"track_id"`
	URL     string `json:"url"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	streamURL, err := s.catalog.StreamURL(r.Context(), id)
	if err != nil {
		s.logger.Error("stream lookup failed", "track_id", id, "error", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, streamResponse{TrackID: id, URL: streamURL})
}

// handleEmbed renders the player iframe for a track permalink.
func (s *Server) handleEmbed(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	u, err := url.Parse(raw)
	if raw == "" || err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		writeError(w, fmt.Errorf("%w: url must be an absolute track permalink", shared.ErrInvalidArgument))
		return
	}

	ctrl := player.NewController(s.catalog, nil, nil, s.logger)
	html, err := ctrl.ReplaceIframeWithNew(player.WidgetURL(raw)).HTML()
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, html)
}
