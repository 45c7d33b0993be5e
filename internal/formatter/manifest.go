package formatter

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ManifestEntry records the outcome of one user's export.
type ManifestEntry struct {
	UserID  string `json:"user_id"`
	Name    string `json:"name,omitempty"`
	File    string `json:"file,omitempty"`
	Entries int    `json:"entries"`
	Error   string `json:"error,omitempty"`
}

// Manifest summarizes a bulk export.
type Manifest struct {
	ExportedAt time.Time       `json:"exported_at"`
	Format     Format          `json:"format"`
	Total      int             `json:"total"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	Exports    []ManifestEntry `json:"exports"`
}

// WriteManifest writes m as indented JSON to path.
func WriteManifest(m *Manifest, path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
