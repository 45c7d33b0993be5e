package ui

import (
	"strings"
)

var bars = []rune("▁▂▃▄▅▆▇█")

// renderWaveform draws one bar per level. Columns before played (a fraction of the track) use the
// played style.
func renderWaveform(levels []float64, played float64) string {
	if len(levels) == 0 {
		return ""
	}

	cut := int(played * float64(len(levels)))
	cut = max(0, min(cut, len(levels)))

	var head, tail strings.Builder
	for i, l := range levels {
		idx := int(l * float64(len(bars)-1))
		idx = max(0, min(idx, len(bars)-1))
		if i < cut {
			head.WriteRune(bars[idx])
		} else {
			tail.WriteRune(bars[idx])
		}
	}
	return styles.played.Render(head.String()) + styles.help.Render(tail.String())
}
