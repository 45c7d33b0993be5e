package player

import (
	"bytes"
	"html/template"
	"net/url"
)

// Control is an interactive element such as the play button.
type Control struct {
	Label    string
	Disabled bool
}

// AddIcon creates an icon nested inside c.
func (c *Control) AddIcon(name string) *Icon {
	return &Icon{Name: name, control: c}
}

// Icon is a glyph rendered inside a [Control].
type Icon struct {
	Name    string
	control *Control
}

// Closest returns the nearest enclosing control, or nil when the icon is detached.
func (i *Icon) Closest() *Control {
	if i == nil {
		return nil
	}
	return i.control
}

// Canvas holds waveform samples along with the rendered box (ClientWidth, ClientHeight) and the pixel
// buffer (Width, Height) they are drawn into.
type Canvas struct {
	ClientWidth  int
	ClientHeight int
	Width        int
	Height       int
	Samples      []float64
}

// Levels resamples the waveform to one value per pixel column, keeping the peak of each bucket.
func (c *Canvas) Levels() []float64 {
	if c.Width <= 0 || len(c.Samples) == 0 {
		return nil
	}

	levels := make([]float64, c.Width)
	n := len(c.Samples)
	for col := range levels {
		start := col * n / c.Width
		end := (col + 1) * n / c.Width
		if end <= start {
			end = start + 1
		}
		if end > n {
			end = n
		}

		var peak float64
		for _, s := range c.Samples[start:end] {
			peak = max(peak, s)
		}
		levels[col] = peak
	}
	return levels
}

const (
	embedFrameBorder = "no"
	embedScrolling   = "no"
	embedWidth       = "100%"
	embedHeight      = 166
	embedAllow       = "autoplay"

	widgetURL = "https://w.soundcloud.com/player/"
)

var iframeTmpl = template.Must(template.New("iframe").Parse(
	`<iframe src="{{.Src}}" frameborder="{{.FrameBorder}}" scrolling="{{.Scrolling}}" width="{{.Width}}" height="{{.Height}}" allow="{{.Allow}}"></iframe>`,
))

// Embed is the embedded player element.
type Embed struct {
	Src         string
	FrameBorder string
	Scrolling   string
	Width       string
	Height      int
	Allow       string
}

// NewEmbed builds an embed for src with the fixed player attributes.
func NewEmbed(src string) *Embed {
	return &Embed{
		Src:         src,
		FrameBorder: embedFrameBorder,
		Scrolling:   embedScrolling,
		Width:       embedWidth,
		Height:      embedHeight,
		Allow:       embedAllow,
	}
}

// HTML renders the embed as an iframe element.
func (e *Embed) HTML() (template.HTML, error) {
	var buf bytes.Buffer
	if err := iframeTmpl.Execute(&buf, e); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

// WidgetURL returns the widget player address for a track permalink.
func WidgetURL(trackURL string) string {
	q := url.Values{}
	q.Set("url", trackURL)
	q.Set("auto_play", "true")
	return widgetURL + "?" + q.Encode()
}
