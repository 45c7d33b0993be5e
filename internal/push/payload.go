// package push parses notification payloads and delivers them over Web Push
package push

import (
	"bytes"
	"encoding/json"
	"strings"
)

// DefaultTitle is shown when a payload carries no title.
const DefaultTitle = "moodtape"

// Notification is what the service worker passes to showNotification.
type Notification struct {
	Title   string  `json:"title"`
	Options Options `json:"options"`
}

// Options mirrors the subset of NotificationOptions moodtape sends. Unknown keys are dropped.
type Options struct {
	Body               string          `json:"body,omitempty"`
	Icon               string          `json:"icon"`
	Badge              string          `json:"badge"`
	Tag                string          `json:"tag"`
	Renotify           bool            `json:"renotify"`
	Image              string          `json:"image,omitempty"`
	RequireInteraction bool            `json:"requireInteraction,omitempty"`
	Silent             bool            `json:"silent,omitempty"`
	Data               json.RawMessage `json:"data,omitempty"`
}

// Defaults are forced onto every notification regardless of what the payload says.
type Defaults struct {
	Title string
	Icon  string
	Badge string
	Tag   string
}

// StandardDefaults matches the icons shipped with the web app.
var StandardDefaults = Defaults{
	Title: DefaultTitle,
	Icon:  "/icons/icon-192.png",
	Badge: "/icons/badge-72.png",
	Tag:   "moodtape",
}

type wirePayload struct {
	Title   *string  `json:"title"`
	Body    *string  `json:"body"`
	Options *Options `json:"options"`
}

// ParsePayload parses data with [StandardDefaults].
func ParsePayload(data []byte) Notification {
	return StandardDefaults.Parse(data)
}

// Parse reads a push payload.
//
// A JSON object {title, options} uses options as given, {title, body} moves body into options,
// and anything that isn't a JSON object becomes a notification titled d.Title whose body is
// the raw text. Icon, badge, tag and renotify are then forced.
func (d Defaults) Parse(data []byte) Notification {
	n := Notification{Title: d.Title}

	var wire wirePayload
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' && json.Unmarshal(trimmed, &wire) == nil {
		if wire.Title != nil && strings.TrimSpace(*wire.Title) != "" {
			n.Title = *wire.Title
		}
		switch {
		case wire.Options != nil:
			n.Options = *wire.Options
		case wire.Body != nil:
			n.Options.Body = *wire.Body
		}
	} else {
		n.Options.Body = string(data)
	}

	n.Options.Icon = d.Icon
	n.Options.Badge = d.Badge
	n.Options.Tag = d.Tag
	n.Options.Renotify = true
	return n
}

// Encode renders the notification in the {title, options} form.
func (n Notification) Encode() ([]byte, error) {
	return json.Marshal(n)
}
