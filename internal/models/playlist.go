package models

import (
	"fmt"
	"strings"
	"time"
)

const maxTitleLength = 100

// Playlist is a user-curated list of tracks labelled with tags.
type Playlist struct {
	Base
	UserID      string
	Title       string
	Description string
	Tags        []Tag
}

// NewPlaylist creates a [Playlist] owned by userID.
func NewPlaylist(sequence int, userID, title, description string) *Playlist {
	return &Playlist{Base: newBase(sequence), UserID: userID, Title: title, Description: description}
}

func (p *Playlist) Validate() error {
	title := strings.TrimSpace(p.Title)
	switch {
	case p.UserID == "":
		return fmt.Errorf("user_id is required")
	case title == "":
		return fmt.Errorf("title is required")
	case len([]rune(title)) > maxTitleLength:
		return fmt.Errorf("title must be at most %d characters", maxTitleLength)
	}
	return nil
}

// TagNames returns the names of the playlist's tags in order.
func (p *Playlist) TagNames() []string {
	names := make([]string, len(p.Tags))
	for i, t := range p.Tags {
		names[i] = t.Name
	}
	return names
}

// Tag labels playlists; names are unique ignoring case.
type Tag struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// NormalizeTagName trims whitespace, strips a leading '#', and collapses inner runs of spaces.
func NormalizeTagName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "#")
	return strings.Join(strings.Fields(name), " ")
}
