package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Emotion is one of the feelings a journal entry can record.
type Emotion string

const (
	Joy        Emotion = "joy"
	Sadness    Emotion = "sadness"
	Anger      Emotion = "anger"
	Fear       Emotion = "fear"
	Surprise   Emotion = "surprise"
	Calm       Emotion = "calm"
	Nostalgia  Emotion = "nostalgia"
	Excitement Emotion = "excitement"
)

// Emotions lists every valid [Emotion] in display order.
var Emotions = []Emotion{Joy, Sadness, Anger, Fear, Surprise, Calm, Nostalgia, Excitement}

// ParseEmotion returns the [Emotion] matching s, ignoring case and surrounding whitespace.
func ParseEmotion(s string) (Emotion, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, e := range Emotions {
		if string(e) == s {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown emotion %q", s)
}

const (
	MinIntensity = 1
	MaxIntensity = 5
	maxNoteLen   = 1000
)

// EmotionLog is a journal entry recording how a track made the user feel.
type EmotionLog struct {
	Base
	UserID    string
	Emotion   Emotion
	Intensity int
	Note      string
	TrackURL  string
	LoggedAt  time.Time
}

// NewEmotionLog creates an entry logged now.
func NewEmotionLog(sequence int, userID string, emotion Emotion, intensity int) *EmotionLog {
	l := &EmotionLog{Base: newBase(sequence), UserID: userID, Emotion: emotion, Intensity: intensity}
	l.LoggedAt = l.CreatedAt()
	return l
}

func (l *EmotionLog) Validate() error {
	if l.UserID == "" {
		return fmt.Errorf("user_id is required")
	}
	if _, err := ParseEmotion(string(l.Emotion)); err != nil {
		return err
	}
	if l.Intensity < MinIntensity || l.Intensity > MaxIntensity {
		return fmt.Errorf("intensity must be between %d and %d, got %d", MinIntensity, MaxIntensity, l.Intensity)
	}
	if len([]rune(l.Note)) > maxNoteLen {
		return fmt.Errorf("note must be at most %d characters", maxNoteLen)
	}
	if l.TrackURL != "" {
		u, err := url.Parse(l.TrackURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("invalid track url %q", l.TrackURL)
		}
	}
	if l.LoggedAt.IsZero() {
		return fmt.Errorf("logged_at is required")
	}
	return nil
}
