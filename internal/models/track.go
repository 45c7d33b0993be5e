package models

// Track represents a SoundCloud track returned by search or resolve.
type Track struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Artist       string `json:"artist"`
	PermalinkURL string `json:"permalink_url"`
	ArtworkURL   string `json:"artwork_url,omitempty"`
	WaveformURL  string `json:"waveform_url,omitempty"`
	Duration     int    `json:"duration"` // Duration in seconds
	Streamable   bool   `json:"streamable"`
}

// Waveform holds amplitude samples in the range [0, Height].
type Waveform struct {
	Width   int   `json:"width"`
	Height  int   `json:"height"`
	Samples []int `json:"samples"`
}

// Normalized returns each sample scaled to [0, 1]. A zero height yields all zeros.
func (w Waveform) Normalized() []float64 {
	out := make([]float64, len(w.Samples))
	if w.Height <= 0 {
		return out
	}
	for i, s := range w.Samples {
		v := float64(s) / float64(w.Height)
		if v < 0 {
			v = 0
		} else if v > 1 {
			v = 1
		}
		out[i] = v
	}
	return out
}
