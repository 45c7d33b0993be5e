package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/shared"
)

const dateLayout = "2006-01-02"

type emotionLogsResponse struct {
	EmotionLogs []emotionLogView       `json:"emotion_logs"`
	Counts      map[models.Emotion]int `json:"counts"`
}

// parseTime accepts RFC 3339 timestamps or plain dates (midnight UTC).
func parseTime(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a date or RFC 3339 timestamp", shared.ErrInvalidArgument, raw)
	}
	return t, nil
}

func (s *Server) handleListEmotionLogs(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	criteria := map[string]any{"user_id": user.ID()}

	if raw := q.Get("emotion"); raw != "" {
		e, err := models.ParseEmotion(raw)
		if err != nil {
			writeError(w, fmt.Errorf("%w: %v", shared.ErrInvalidArgument, err))
			return
		}
		criteria["emotion"] = e
	}
	for _, key := range []string{"since", "until"} {
		if raw := q.Get(key); raw != "" {
			t, err := parseTime(raw)
			if err != nil {
				writeError(w, err)
				return
			}
			criteria[key] = t
		}
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, fmt.Errorf("%w: limit must be a positive integer", shared.ErrInvalidArgument))
			return
		}
		criteria["limit"] = n
	}

	entries, err := s.logs.List(criteria)
	if err != nil {
		writeError(w, err)
		return
	}
	counts, err := s.logs.CountByEmotion(user.ID())
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]emotionLogView, len(entries))
	for i, e := range entries {
		views[i] = newEmotionLogView(e)
	}
	writeJSON(w, http.StatusOK, emotionLogsResponse{EmotionLogs: views, Counts: counts})
}

type createEmotionLogRequest struct {
	Emotion   string     `json:"emotion"`
	Intensity int        `json:"intensity"`
	Note      string     `json:"note"`
	TrackURL  string     `json:"track_url"`
	LoggedAt  *time.Time `json:"logged_at"`
}

func (s *Server) handleCreateEmotionLog(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createEmotionLogRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	emotion, err := models.ParseEmotion(req.Emotion)
	if err != nil {
		writeError(w, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err))
		return
	}

	entry := models.NewEmotionLog(0, user.ID(), emotion, req.Intensity)
	entry.Note = strings.TrimSpace(req.Note)
	entry.TrackURL = strings.TrimSpace(req.TrackURL)
	if req.LoggedAt != nil {
		entry.LoggedAt = req.LoggedAt.UTC()
	}

	if err := s.logs.Create(entry); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newEmotionLogView(entry))
}

func (s *Server) handleDeleteEmotionLog(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	entry, err := s.logs.Get(r.PathValue("id"))
	if err == nil && entry.UserID != user.ID() {
		err = fmt.Errorf("%w: emotion log %s", shared.ErrNotFound, r.PathValue("id"))
	}
	if err == nil {
		err = s.logs.Delete(entry.ID())
	}
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type playlistsResponse struct {
	Playlists []playlistView `json:"playlists"`
}

func (s *Server) handleListPlaylists(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	criteria := map[string]any{"user_id": user.ID()}
	if tag := r.URL.Query().Get("tag"); tag != "" {
		criteria["tag"] = tag
	}

	playlists, err := s.playlists.List(criteria)
	if err != nil {
		writeError(w, err)
		return
	}

	views := make([]playlistView, len(playlists))
	for i, p := range playlists {
		views[i] = newPlaylistView(p)
	}
	writeJSON(w, http.StatusOK, playlistsResponse{Playlists: views})
}

type createPlaylistRequest struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	user, err := s.currentUser(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req createPlaylistRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	playlist := models.NewPlaylist(0, user.ID(), strings.TrimSpace(req.Title), strings.TrimSpace(req.Description))
	for _, name := range req.Tags {
		playlist.Tags = append(playlist.Tags, models.Tag{Name: name})
	}

	if err := s.playlists.Create(playlist); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newPlaylistView(playlist))
}

// ownedPlaylist loads the playlist named in the path, hiding other users' playlists.
func (s *Server) ownedPlaylist(r *http.Request) (*models.Playlist, error) {
	user, err := s.currentUser(r)
	if err != nil {
		return nil, err
	}

	playlist, err := s.playlists.Get(r.PathValue("id"))
	if err != nil {
		return nil, err
	}
	if playlist.UserID != user.ID() {
		return nil, fmt.Errorf("%w: playlist %s", shared.ErrNotFound, playlist.ID())
	}
	return playlist, nil
}

type tagsRequest struct {
	Tags []string `json:"tags"`
}

type tagsResponse struct {
	Tags []string `json:"tags"`
}

func (s *Server) handleAddTags(w http.ResponseWriter, r *http.Request) {
	playlist, err := s.ownedPlaylist(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var req tagsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if len(req.Tags) == 0 {
		writeError(w, fmt.Errorf("%w: tags", shared.ErrMissingArgument))
		return
	}

	tags, err := s.playlists.AddTags(playlist.ID(), req.Tags...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tagsResponse{Tags: tagNames(tags)})
}

func (s *Server) handleRemoveTag(w http.ResponseWriter, r *http.Request) {
	playlist, err := s.ownedPlaylist(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := s.playlists.RemoveTag(playlist.ID(), r.PathValue("name")); err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Error("failed to remove tag", "playlist_id", playlist.ID(), "error", err)
		}
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
