package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/moodtape/internal/models"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgSearchResults MsgKind = iota
	MsgTrackLoaded
	MsgTick
)

type searchResults struct {
	query  string
	tracks []models.Track
	err    error
}

type trackLoaded struct {
	url string
	ok  bool
}

// searchResultsMsg is the constructor for [MsgSearchResults]
func searchResultsMsg(query string, tracks []models.Track, err error) Msg {
	return Msg{kind: MsgSearchResults, data: searchResults{query: query, tracks: tracks, err: err}}
}

// trackLoadedMsg is the constructor for [MsgTrackLoaded]
func trackLoadedMsg(url string, ok bool) Msg {
	return Msg{kind: MsgTrackLoaded, data: trackLoaded{url: url, ok: ok}}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(t time.Time) Msg {
	return Msg{kind: MsgTick, data: t}
}
