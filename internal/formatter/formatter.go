// package formatter exports a user's emotion journal to JSON, CSV, Markdown and plain text tables
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Format is an export format.
type Format string

const (
	JSON     Format = "json"
	CSV      Format = "csv"
	Markdown Format = "markdown"
	Table    Format = "txt"
)

// Formats lists every supported format.
var Formats = []Format{JSON, CSV, Markdown, Table}

// ParseFormat resolves a format name. "md" and "table" are accepted as aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "json":
		return JSON, nil
	case "csv":
		return CSV, nil
	case "markdown", "md":
		return Markdown, nil
	case "txt", "table", "text":
		return Table, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, s)
}

// Extension returns the file extension written for f.
func (f Format) Extension() string {
	switch f {
	case CSV:
		return ".csv"
	case Markdown:
		return ".md"
	case Table:
		return ".txt"
	default:
		return ".json"
	}
}

// LogExport is a user's journal prepared for export.
type LogExport struct {
	User       *models.User
	Entries    []*models.EmotionLog
	Counts     map[models.Emotion]int
	ExportedAt time.Time
}

type entryJSON struct {
	ID        string         `json:"id"`
	LoggedAt  time.Time      `json:"logged_at"`
	Emotion   models.Emotion `json:"emotion"`
	Intensity int            `json:"intensity"`
	Note      string         `json:"note,omitempty"`
	TrackURL  string         `json:"track_url,omitempty"`
}

type exportJSON struct {
	UserID     string                 `json:"user_id"`
	Name       string                 `json:"name"`
	ExportedAt time.Time              `json:"exported_at"`
	Counts     map[models.Emotion]int `json:"counts"`
	Entries    []entryJSON            `json:"entries"`
}

// ExportToJSON renders the journal as indented JSON.
func ExportToJSON(export *LogExport) ([]byte, error) {
	doc := exportJSON{
		UserID:     export.User.ID(),
		Name:       export.User.Name,
		ExportedAt: export.ExportedAt.UTC(),
		Counts:     export.Counts,
		Entries:    make([]entryJSON, len(export.Entries)),
	}
	for i, e := range export.Entries {
		doc.Entries[i] = entryJSON{
			ID:        e.ID(),
			LoggedAt:  e.LoggedAt.UTC(),
			Emotion:   e.Emotion,
			Intensity: e.Intensity,
			Note:      e.Note,
			TrackURL:  e.TrackURL,
		}
	}
	return json.MarshalIndent(doc, "", "  ")
}

// ExportToCSV converts the journal to CSV with columns: ID, Logged At, Emotion, Intensity, Track URL, Note
func ExportToCSV(export *LogExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Logged At", "Emotion", "Intensity", "Track URL", "Note"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range export.Entries {
		record := []string{
			e.ID(),
			e.LoggedAt.UTC().Format(time.RFC3339),
			string(e.Emotion),
			strconv.Itoa(e.Intensity),
			e.TrackURL,
			e.Note,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown renders a summary of emotion counts followed by the entries, newest first.
func ExportToMarkdown(export *LogExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s's emotion journal\n\n", export.User.Name)
	fmt.Fprintf(&buf, "**Entries**: %s\n", humanize.Comma(int64(len(export.Entries))))
	fmt.Fprintf(&buf, "**Exported**: %s\n\n", export.ExportedAt.UTC().Format("January 2, 2006"))

	if len(export.Counts) > 0 {
		buf.WriteString("## Summary\n\n| Emotion | Entries |\n| --- | ---: |\n")
		for _, emotion := range sortedEmotions(export.Counts) {
			fmt.Fprintf(&buf, "| %s | %d |\n", emotion, export.Counts[emotion])
		}
		buf.WriteString("\n")
	}

	buf.WriteString("## Entries\n\n")
	for _, e := range export.Entries {
		fmt.Fprintf(&buf, "- %s **%s** (%d/%d)", e.LoggedAt.UTC().Format("2006-01-02 15:04"), e.Emotion,
			e.Intensity, models.MaxIntensity)
		if e.Note != "" {
			fmt.Fprintf(&buf, ": %s", e.Note)
		}
		if e.TrackURL != "" {
			fmt.Fprintf(&buf, " [listen](%s)", e.TrackURL)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToTable renders the entries as a text table with relative times.
func ExportToTable(export *LogExport) ([]byte, error) {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle(export.User.Name)
	tw.AppendHeader(table.Row{"#", "When", "Emotion", "Intensity", "Note"})

	for i, e := range export.Entries {
		tw.AppendRow(table.Row{
			i + 1,
			humanize.RelTime(e.LoggedAt, export.ExportedAt, "ago", "from now"),
			string(e.Emotion),
			IntensityBar(e.Intensity),
			truncate(e.Note, 40),
		})
	}
	tw.AppendFooter(table.Row{"", "", "Total", humanize.Comma(int64(len(export.Entries))), ""})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, AlignHeader: text.AlignLeft},
	})

	return []byte(tw.Render() + "\n"), nil
}

// Render converts the journal to the given format.
func Render(export *LogExport, format Format) ([]byte, error) {
	switch format {
	case CSV:
		return ExportToCSV(export)
	case Markdown:
		return ExportToMarkdown(export)
	case Table:
		return ExportToTable(export)
	default:
		return ExportToJSON(export)
	}
}

// WriteExport renders the journal and writes it to path, defaulting to {user id}{ext}.
func WriteExport(export *LogExport, format Format, path string) (string, error) {
	if path == "" {
		path = export.User.ID() + format.Extension()
	}

	data, err := Render(export, format)
	if err != nil {
		return "", fmt.Errorf("failed to render %s export: %w", format, err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export file: %w", err)
	}
	return path, nil
}

// IntensityBar draws an intensity as filled and empty dots.
func IntensityBar(intensity int) string {
	intensity = max(0, min(intensity, models.MaxIntensity))
	return strings.Repeat("●", intensity) + strings.Repeat("○", models.MaxIntensity-intensity)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// sortedEmotions orders emotions by count, most frequent first, then by name.
func sortedEmotions(counts map[models.Emotion]int) []models.Emotion {
	emotions := make([]models.Emotion, 0, len(counts))
	for e := range counts {
		emotions = append(emotions, e)
	}
	slices.SortFunc(emotions, func(a, b models.Emotion) int {
		if counts[a] != counts[b] {
			return counts[b] - counts[a]
		}
		return strings.Compare(string(a), string(b))
	})
	return emotions
}
