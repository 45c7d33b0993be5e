package server

import (
	"time"

	"github.com/desertthunder/moodtape/internal/models"
)

type userView struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func newUserView(u *models.User) userView {
	return userView{ID: u.ID(), Email: u.Email, Name: u.Name, AvatarURL: u.AvatarURL, CreatedAt: u.CreatedAt()}
}

type emotionLogView struct {
	ID        string         `json:"id"`
	Emotion   models.Emotion `json:"emotion"`
	Intensity int            `json:"intensity"`
	Note      string         `json:"note,omitempty"`
	TrackURL  string         `json:"track_url,omitempty"`
	LoggedAt  time.Time      `json:"logged_at"`
}

func newEmotionLogView(l *models.EmotionLog) emotionLogView {
	return emotionLogView{
		ID:        l.ID(),
		Emotion:   l.Emotion,
		Intensity: l.Intensity,
		Note:      l.Note,
		TrackURL:  l.TrackURL,
		LoggedAt:  l.LoggedAt,
	}
}

type playlistView struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Tags        []string  `json:"tags"`
	CreatedAt   time.Time `json:"created_at"`
}

func newPlaylistView(p *models.Playlist) playlistView {
	return playlistView{
		ID:          p.ID(),
		Title:       p.Title,
		Description: p.Description,
		Tags:        tagNames(p.Tags),
		CreatedAt:   p.CreatedAt(),
	}
}

func tagNames(tags []models.Tag) []string {
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names
}

type subscriptionView struct {
	ID       string `json:"id"`
	Endpoint string `json:"endpoint"`
}

type broadcastView struct {
	Total  int `json:"total"`
	Sent   int `json:"sent"`
	Failed int `json:"failed"`
	Pruned int `json:"pruned"`
}
