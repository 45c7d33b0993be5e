package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/moodtape/internal/player"
	"github.com/desertthunder/moodtape/internal/services"
)

const (
	tickInterval = 250 * time.Millisecond
	searchLimit  = 20
	chromeHeight = 14
)

// Focus is the part of the screen receiving keys.
type Focus int

const (
	SearchFocus Focus = iota
	ResultsFocus
)

// Model represents the TUI application state.
type Model struct {
	ctx        context.Context
	controller *player.Controller
	catalog    services.Catalog
	page       player.Page
	width      int
	height     int
	focus      Focus
	input      textinput.Model
	results    list.Model
	spinner    spinner.Model
	pending    int
	status     string
	err        error
	help       help.Model
	keys       keyMap
}

// NewModel creates a TUI model driving controller. page is what the controller is mounted on.
func NewModel(ctx context.Context, controller *player.Controller, catalog services.Catalog, page player.Page) *Model {
	input := textinput.New()
	input.Placeholder = "Search SoundCloud"
	input.Prompt = "› "
	input.Focus()

	results := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	results.Title = "Results"
	results.SetFilteringEnabled(false)
	results.SetShowHelp(false)
	results.SetShowStatusBar(false)

	return &Model{
		ctx:        ctx,
		controller: controller,
		catalog:    catalog,
		page:       page,
		focus:      SearchFocus,
		input:      input,
		results:    results,
		spinner:    spinner.New(spinner.WithSpinner(spinner.Dot)),
		help:       help.New(),
		keys:       newKeyMap(),
	}
}

// Init mounts the controller and starts the playback clock.
func (m *Model) Init() tea.Cmd {
	m.controller.Mount(m.page)
	return tea.Batch(textinput.Blink, tick())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case spinner.TickMsg:
		if !m.loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case Msg:
		return m.handleMsg(msg)
	}

	return m, nil
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgSearchResults:
		res := msg.data.(searchResults)
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		m.err = nil
		items := make([]list.Item, len(res.tracks))
		for i, t := range res.tracks {
			items[i] = trackItem{track: t}
		}
		m.results.Title = fmt.Sprintf("Results for %q", res.query)
		m.status = fmt.Sprintf("%d tracks", len(res.tracks))
		return m, m.results.SetItems(items)

	case MsgTrackLoaded:
		res := msg.data.(trackLoaded)
		m.pending = max(m.pending-1, 0)
		if !res.ok {
			m.status = ""
			m.err = fmt.Errorf("could not play %s", res.url)
			return m, nil
		}
		m.err = nil
		m.status = ""
		return m, nil

	case MsgTick:
		if m.controller.State() == player.Playing {
			m.controller.Advance(tickInterval)
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m.quit()
	}

	if m.focus == SearchFocus {
		switch {
		case key.Matches(msg, m.keys.submit):
			query := strings.TrimSpace(m.input.Value())
			if query == "" {
				return m, nil
			}
			m.setFocus(ResultsFocus)
			m.status = "Searching…"
			return m, m.search(query)
		case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.focus):
			m.setFocus(ResultsFocus)
			return m, nil
		}

		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		return m.quit()
	case key.Matches(msg, m.keys.search), key.Matches(msg, m.keys.focus):
		m.setFocus(SearchFocus)
		return m, textinput.Blink
	case key.Matches(msg, m.keys.toggle):
		m.controller.Toggle()
		return m, nil
	case key.Matches(msg, m.keys.play):
		item, ok := m.results.SelectedItem().(trackItem)
		if !ok {
			return m, nil
		}
		m.pending++
		m.status = "Loading " + item.track.Title
		return m, tea.Batch(m.spinner.Tick, m.play(item.track.PermalinkURL))
	}

	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return m, cmd
}

func (m *Model) quit() (tea.Model, tea.Cmd) {
	m.controller.Unmount()
	return m, tea.Quit
}

func (m *Model) setFocus(f Focus) {
	m.focus = f
	if f == SearchFocus {
		m.input.Focus()
	} else {
		m.input.Blur()
	}
}

// resize fits the list and the waveform canvas to the window.
func (m *Model) resize() {
	canvas := m.controller.Canvas()
	canvas.ClientWidth = max(m.width-6, 0)
	canvas.ClientHeight = 1
	m.controller.Resize()

	m.input.Width = max(m.width-8, 10)
	m.results.SetSize(max(m.width-2, 0), max(m.height-chromeHeight, 3))
	m.help.Width = m.width
}

func (m *Model) loading() bool {
	return m.pending > 0 || m.controller.Loading()
}

func (m *Model) search(query string) tea.Cmd {
	return func() tea.Msg {
		tracks, err := m.catalog.SearchTracks(m.ctx, query, searchLimit)
		return searchResultsMsg(query, tracks, err)
	}
}

// play hands url to the controller over the bus, the same way a search result on the web page does.
func (m *Model) play(url string) tea.Cmd {
	return func() tea.Msg {
		m.controller.Bus().Dispatch(m.ctx, player.Event{Name: player.PlayFromSearch, PlayURL: url})
		snap := m.controller.Snapshot()
		return trackLoadedMsg(url, snap.TrackURL == url && m.controller.State() == player.Playing)
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// View renders the search box, the results and the player panel.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render("moodtape"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(m.results.View())
	b.WriteString("\n")
	b.WriteString(styles.panel.Render(m.renderPlayer()))
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(styles.err.Render("Error: " + m.err.Error()))
	case m.status != "":
		b.WriteString(styles.warn.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m *Model) renderPlayer() string {
	state := m.controller.State()
	track := m.controller.Track()

	var line string
	switch {
	case m.loading():
		line = m.spinner.View() + " loading…"
	case track == nil && state == player.Idle:
		return styles.help.Render("Nothing playing. Search and press enter to play.")
	case track == nil:
		line = fmt.Sprintf("%s %s", stateIcon(state), m.controller.Snapshot().TrackURL)
	default:
		duration := time.Duration(track.Duration) * time.Second
		line = fmt.Sprintf("%s %s · %s  %s / %s", stateIcon(state), track.Title, track.Artist,
			clock(m.controller.Position()), clock(duration))
	}

	wave := renderWaveform(m.controller.Levels(), m.played())
	if wave == "" {
		return line
	}
	return line + "\n" + wave
}

// played returns the fraction of the current track already played.
func (m *Model) played() float64 {
	track := m.controller.Track()
	if track == nil || track.Duration <= 0 {
		return 0
	}
	return m.controller.Position().Seconds() / float64(track.Duration)
}

func stateIcon(s player.State) string {
	switch s {
	case player.Playing:
		return styles.ok.Render("▶")
	case player.Paused:
		return "⏸"
	default:
		return "■"
	}
}
