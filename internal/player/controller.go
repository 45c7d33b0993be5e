package player

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/services"
	"github.com/desertthunder/moodtape/internal/shared"
)

// State is the play state of the embedded player.
type State int

const (
	Idle State = iota
	Loading
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "idle"
	}
}

// PageKind names the page a controller is mounted on.
type PageKind string

const (
	Home         PageKind = "home"
	Search       PageKind = "search"
	PlaylistShow PageKind = "playlist_show"
)

// Page is the context of the page a controller is mounted on.
type Page struct {
	Kind       PageKind
	PlaylistID string
}

// Controller synchronises one embedded player with its play button, waveform canvas and the bus.
type Controller struct {
	catalog services.Catalog
	store   SnapshotStore
	bus     *Bus
	logger  *log.Logger

	mu          sync.Mutex
	button      *Control
	icon        *Icon
	canvas      *Canvas
	embed       *Embed
	state       State
	track       *models.Track
	trackURL    string
	position    time.Duration
	page        Page
	persist     bool
	loads       int
	unsubscribe func()
}

// NewController creates a controller with a fresh play button and canvas. A nil store keeps snapshots
// in memory.
func NewController(catalog services.Catalog, store SnapshotStore, bus *Bus, logger *log.Logger) *Controller {
	if store == nil {
		store = NewMemoryStore()
	}
	if bus == nil {
		bus = NewBus()
	}
	if logger == nil {
		logger = log.Default()
	}

	button := &Control{Label: "play"}
	return &Controller{
		catalog: catalog,
		store:   store,
		bus:     bus,
		logger:  shared.WithLogger(logger, "component", "player"),
		button:  button,
		icon:    button.AddIcon("play"),
		canvas:  &Canvas{},
		persist: true,
	}
}

// SetIcon replaces the play icon the loading UI is driven from.
func (c *Controller) SetIcon(icon *Icon) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.icon = icon
}

func (c *Controller) Bus() *Bus        { return c.bus }
func (c *Controller) Canvas() *Canvas  { return c.canvas }
func (c *Controller) Button() *Control { return c.button }

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Track returns the resolved track, or nil before one has loaded.
func (c *Controller) Track() *models.Track {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.track
}

// Embed returns the current embed, or nil before one has been built.
func (c *Controller) Embed() *Embed {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.embed
}

// Loading reports whether the play button is disabled.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ctrl := c.icon.Closest()
	return ctrl != nil && ctrl.Disabled
}

// ShowLoadingUI disables the control enclosing the play icon.
func (c *Controller) ShowLoadingUI() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLoading(true)
}

// HideLoadingUI re-enables the control enclosing the play icon.
func (c *Controller) HideLoadingUI() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLoading(false)
}

func (c *Controller) setLoading(on bool) {
	if ctrl := c.icon.Closest(); ctrl != nil {
		ctrl.Disabled = on
	}
}

// Mount attaches the controller to page. Playlist pages clear the persisted snapshot; other pages restore
// it paused. The controller then listens for play-from-search.
func (c *Controller) Mount(page Page) {
	c.mu.Lock()
	c.page = page

	if page.Kind == PlaylistShow {
		c.persist = false
		if err := c.store.Clear(); err != nil {
			c.logger.Warn("failed to clear snapshot", "error", err)
		}
	} else {
		c.persist = true
		c.restore()
	}

	if c.unsubscribe != nil {
		c.unsubscribe()
	}
	c.unsubscribe = c.bus.Subscribe(PlayFromSearch, c.handlePlayFromSearch)
	c.mu.Unlock()

	c.logger.Debug("mounted", "page", page.Kind)
}

func (c *Controller) restore() {
	snap, err := c.store.Load()
	if errors.Is(err, shared.ErrNotFound) {
		return
	}
	if err != nil {
		c.logger.Warn("failed to load snapshot", "error", err)
		return
	}
	if snap.TrackURL == "" {
		return
	}

	c.trackURL = snap.TrackURL
	c.position = snap.Position
	c.embed = NewEmbed(WidgetURL(snap.TrackURL))
	c.state = Paused
}

// Unmount stops listening on the bus.
func (c *Controller) Unmount() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.unsubscribe != nil {
		c.unsubscribe()
		c.unsubscribe = nil
	}
}

func (c *Controller) handlePlayFromSearch(ctx context.Context, e Event) {
	if strings.TrimSpace(e.PlayURL) == "" {
		return
	}
	_, err := c.LoadTrack(ctx, e.PlayURL)
	switch {
	case errors.Is(err, shared.ErrLoadSuperseded):
		c.logger.Debug("play from search replaced by a newer track", "url", e.PlayURL)
	case err != nil:
		c.logger.Error("failed to play from search", "url", e.PlayURL, "error", err)
	}
}

// Resize copies the canvas's rendered box into its pixel buffer.
func (c *Controller) Resize() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canvas.Width = c.canvas.ClientWidth
	c.canvas.Height = c.canvas.ClientHeight
}

// ReplaceIframeWithNew swaps the current embed for a fresh one pointing at src.
func (c *Controller) ReplaceIframeWithNew(src string) *Embed {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.embed = NewEmbed(src)
	return c.embed
}

// LoadTrack resolves url and starts playing it. The loading UI is shown while the track resolves and is
// hidden by whichever load is still the latest when it finishes. A load replaced by a later one returns
// [shared.ErrLoadSuperseded] and leaves the newer load in charge.
func (c *Controller) LoadTrack(ctx context.Context, url string) (*models.Track, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, fmt.Errorf("%w: track url", shared.ErrMissingArgument)
	}

	c.mu.Lock()
	c.loads++
	load := c.loads
	previous, previousEmbed := c.state, c.embed
	c.embed = NewEmbed(WidgetURL(url))
	c.state = Loading
	c.setLoading(true)
	c.mu.Unlock()

	track, err := c.catalog.Resolve(ctx, url)

	c.mu.Lock()
	defer c.mu.Unlock()

	if load != c.loads {
		return nil, fmt.Errorf("%w: %s", shared.ErrLoadSuperseded, url)
	}
	c.setLoading(false)

	if err != nil {
		c.state, c.embed = previous, previousEmbed
		if c.track == nil && c.trackURL == "" {
			c.state = Idle
		}
		return nil, fmt.Errorf("failed to load %s: %w", url, err)
	}

	c.track = track
	c.trackURL = url
	c.position = 0
	c.canvas.Samples = nil
	c.state = Playing
	c.persist = true
	c.save()

	if track.WaveformURL != "" {
		go c.loadWaveform(context.WithoutCancel(ctx), load, track.WaveformURL)
	}
	return track, nil
}

func (c *Controller) loadWaveform(ctx context.Context, load int, waveformURL string) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	wave, err := c.catalog.Waveform(ctx, waveformURL)
	if err != nil {
		c.logger.Warn("failed to load waveform", "url", waveformURL, "error", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if load == c.loads {
		c.canvas.Samples = wave.Normalized()
	}
}

// Levels returns the canvas waveform resampled to its pixel width.
func (c *Controller) Levels() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canvas.Levels()
}

// SetWaveform draws samples onto the canvas directly.
func (c *Controller) SetWaveform(w models.Waveform) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.canvas.Samples = w.Normalized()
}

// Play resumes a paused track.
func (c *Controller) Play() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Paused {
		return
	}
	c.state = Playing
	c.save()
}

// Pause pauses a playing track.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Playing {
		return
	}
	c.state = Paused
	c.save()
}

// Toggle flips between playing and paused. It does nothing while idle or loading.
func (c *Controller) Toggle() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case Playing:
		c.state = Paused
	case Paused:
		c.state = Playing
	default:
		return c.state
	}
	c.save()
	return c.state
}

// Advance moves the play position forward while playing. It does not persist.
func (c *Controller) Advance(d time.Duration) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Playing {
		return c.position
	}
	c.position += d
	if c.track != nil && c.track.Duration > 0 {
		c.position = min(c.position, time.Duration(c.track.Duration)*time.Second)
	}
	return c.position
}

// Position returns the current play position.
func (c *Controller) Position() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.position
}

// Snapshot returns the state that would be persisted right now.
func (c *Controller) Snapshot() *Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}

func (c *Controller) snapshot() *Snapshot {
	return &Snapshot{
		TrackURL:   c.trackURL,
		Position:   c.position,
		Playing:    c.state == Playing,
		PlaylistID: c.page.PlaylistID,
		SavedAt:    time.Now().UTC(),
	}
}

func (c *Controller) save() {
	if !c.persist || c.trackURL == "" {
		return
	}
	if err := c.store.Save(c.snapshot()); err != nil {
		c.logger.Warn("failed to save snapshot", "error", err)
	}
}
