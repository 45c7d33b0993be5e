package formatter

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/shared"
	th "github.com/desertthunder/moodtape/internal/testing"
)

var exportedAt = time.Date(2026, 10, 15, 21, 0, 0, 0, time.UTC)

func testExport() *LogExport {
	user := models.NewUser(1, "ada@example.com", "Ada")
	user.SetID("user-1")

	calm := models.NewEmotionLog(1, "user-1", models.Calm, 3)
	calm.SetID("log-1")
	calm.LoggedAt = exportedAt.Add(-2 * time.Hour)
	calm.Note = "rain on the window, 3am"
	calm.TrackURL = "https://soundcloud.com/artist/rainy-day"

	joy := models.NewEmotionLog(2, "user-1", models.Joy, 5)
	joy.SetID("log-2")
	joy.LoggedAt = exportedAt.Add(-26 * time.Hour)

	return &LogExport{
		User:       user,
		Entries:    []*models.EmotionLog{calm, joy},
		Counts:     map[models.Emotion]int{models.Calm: 1, models.Joy: 4},
		ExportedAt: exportedAt,
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"", JSON, false},
		{"JSON", JSON, false},
		{"csv", CSV, false},
		{"md", Markdown, false},
		{"markdown", Markdown, false},
		{"table", Table, false},
		{"txt", Table, false},
		{"xml", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, shared.ErrInvalidArgument) {
					t.Errorf("ParseFormat(%q) error = %v, want ErrInvalidArgument", tt.in, err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
			}
		})
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(testExport())
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}

		var doc exportJSON
		if err := json.Unmarshal(data, &doc); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if doc.UserID != "user-1" || len(doc.Entries) != 2 || doc.Counts[models.Joy] != 4 {
			t.Errorf("unexpected document: %+v", doc)
		}
		if doc.Entries[0].Note != "rain on the window, 3am" || doc.Entries[1].Note != "" {
			t.Errorf("unexpected entries: %+v", doc.Entries)
		}
	})

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(testExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("invalid CSV: %v", err)
		}
		if len(records) != 3 {
			t.Fatalf("expected header and 2 rows, got %d", len(records))
		}
		if strings.Join(records[0], ",") != "ID,Logged At,Emotion,Intensity,Track URL,Note" {
			t.Errorf("CSV headers = %v", records[0])
		}
		want := []string{"log-1", "2026-10-15T19:00:00Z", "calm", "3", "https://soundcloud.com/artist/rainy-day", "rain on the window, 3am"}
		if strings.Join(records[1], "|") != strings.Join(want, "|") {
			t.Errorf("CSV row = %v, want %v", records[1], want)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(testExport())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# Ada's emotion journal",
			"**Entries**: 2",
			"**Exported**: October 15, 2026",
			"| joy | 4 |\n| calm | 1 |",
			"- 2026-10-15 19:00 **calm** (3/5): rain on the window, 3am [listen](https://soundcloud.com/artist/rainy-day)",
			"- 2026-10-14 19:00 **joy** (5/5)\n",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ExportToTable", func(t *testing.T) {
		data, err := ExportToTable(testExport())
		if err != nil {
			t.Fatalf("ExportToTable failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{"Ada", "2 hours ago", "1 day ago", "calm", "●●●○○", "●●●●●", "TOTAL"} {
			if !strings.Contains(output, want) {
				t.Errorf("table missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("empty journal", func(t *testing.T) {
		export := testExport()
		export.Entries = nil
		export.Counts = nil

		for _, f := range Formats {
			if _, err := Render(export, f); err != nil {
				t.Errorf("Render(%s) failed: %v", f, err)
			}
		}

		md, _ := ExportToMarkdown(export)
		if strings.Contains(string(md), "## Summary") {
			t.Error("empty journal should not have a summary")
		}
	})
}

func TestIntensityBar(t *testing.T) {
	tests := map[int]string{0: "○○○○○", 1: "●○○○○", 5: "●●●●●", 9: "●●●●●", -1: "○○○○○"}
	for in, want := range tests {
		if got := IntensityBar(in); got != want {
			t.Errorf("IntensityBar(%d) = %s, want %s", in, got, want)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("こんにちは世界", 4); got != "こんに…" {
		t.Errorf("truncate() = %q", got)
	}
}

func TestWriters(t *testing.T) {
	t.Run("WriteExport", func(t *testing.T) {
		dir := t.TempDir()

		for _, f := range Formats {
			path, err := WriteExport(testExport(), f, filepath.Join(dir, "nested", "journal"+f.Extension()))
			if err != nil {
				t.Fatalf("WriteExport(%s) failed: %v", f, err)
			}
			th.AssertFileExists(t, path)
		}
	})

	t.Run("WriteExport default path", func(t *testing.T) {
		t.Chdir(t.TempDir())

		path, err := WriteExport(testExport(), CSV, "")
		if err != nil {
			t.Fatalf("WriteExport failed: %v", err)
		}
		if path != "user-1.csv" {
			t.Errorf("path = %s, want user-1.csv", path)
		}
		th.AssertFileExists(t, path)
	})

	t.Run("WriteExport unwritable", func(t *testing.T) {
		dir := t.TempDir()
		blocker := filepath.Join(dir, "file")
		if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := WriteExport(testExport(), JSON, filepath.Join(blocker, "out.json")); err == nil {
			t.Error("expected error writing beneath a file")
		}
	})

	t.Run("WriteManifest", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "manifest.json")
		m := &Manifest{
			ExportedAt: exportedAt,
			Format:     CSV,
			Total:      2,
			Succeeded:  1,
			Failed:     1,
			Exports: []ManifestEntry{
				{UserID: "user-1", File: "user-1.csv", Entries: 2},
				{UserID: "user-2", Error: "boom"},
			},
		}
		if err := WriteManifest(m, path); err != nil {
			t.Fatalf("WriteManifest failed: %v", err)
		}

		content := th.MustReadFile(t, path)
		if !strings.Contains(content, `"format": "csv"`) || !strings.Contains(content, `"error": "boom"`) {
			t.Errorf("unexpected manifest: %s", content)
		}
	})
}
