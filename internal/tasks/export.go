package tasks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/moodtape/internal/formatter"
	"github.com/desertthunder/moodtape/internal/models"
	"github.com/desertthunder/moodtape/internal/shared"
)

// UserSource loads users by id.
type UserSource interface {
	Get(id string) (*models.User, error)
}

// LogSource is the part of the emotion log repository the exporter needs.
type LogSource interface {
	List(criteria map[string]any) ([]*models.EmotionLog, error)
	CountByEmotion(userID string) (map[models.Emotion]int, error)
}

// ExportOpts contains configuration for journal exports.
type ExportOpts struct {
	Format     formatter.Format // Export format (default: json)
	OutputDir  string           // Base output directory (default: moodtape_export_{epoch})
	NumWorkers int              // Concurrent workers (default: 5, max: 10)
	Since      time.Time        // Only entries logged at or after Since
	Until      time.Time        // Only entries logged before Until
}

// ExportResult is the outcome of exporting one user's journal.
type ExportResult struct {
	UserID  string
	Name    string
	File    string
	Entries int
	Success bool
	Error   error
}

// BulkExportResult summarizes a bulk export.
type BulkExportResult struct {
	Total           int
	Succeeded       int
	Failed          int
	OutputDirectory string
	ManifestPath    string
	Results         []ExportResult
}

// JournalExporter renders emotion journals to files.
type JournalExporter struct {
	users UserSource
	logs  LogSource
	now   func() time.Time
}

// NewJournalExporter creates an exporter reading from the given repositories.
func NewJournalExporter(users UserSource, logs LogSource) *JournalExporter {
	return &JournalExporter{users: users, logs: logs, now: time.Now}
}

// Load collects one user's journal, newest entries first.
func (e *JournalExporter) Load(userID string, since, until time.Time) (*formatter.LogExport, error) {
	if e.users == nil || e.logs == nil {
		return nil, fmt.Errorf("%w: repositories not initialized", shared.ErrServiceUnavailable)
	}

	user, err := e.users.Get(userID)
	if err != nil {
		return nil, err
	}

	entries, err := e.logs.List(map[string]any{"user_id": userID, "since": since, "until": until})
	if err != nil {
		return nil, err
	}

	counts, err := e.logs.CountByEmotion(userID)
	if err != nil {
		return nil, err
	}

	return &formatter.LogExport{User: user, Entries: entries, Counts: counts, ExportedAt: e.now().UTC()}, nil
}

// BulkExport exports several journals concurrently and writes a manifest alongside them.
//
// A failure for one user is recorded in the result and the manifest; it does not stop the others.
func (e *JournalExporter) BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	userIDs []string,
	opts ExportOpts,
) (*BulkExportResult, error) {
	if e.users == nil || e.logs == nil {
		return nil, fmt.Errorf("%w: repositories not initialized", shared.ErrServiceUnavailable)
	}

	if opts.Format == "" {
		opts.Format = formatter.JSON
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("moodtape_export_%d", e.now().Unix())
	}
	opts.NumWorkers = clampWorkers(opts.NumWorkers)

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	result := &BulkExportResult{
		Total:           len(userIDs),
		OutputDirectory: opts.OutputDir,
		Results:         make([]ExportResult, 0, len(userIDs)),
	}

	jobs := make(chan string, len(userIDs))
	results := make(chan ExportResult, len(userIDs))

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go e.exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, id := range userIDs {
			select {
			case <-ctx.Done():
				return
			default:
			}
			jobs <- id
			sendProgress(prog, exportingUpdate(i+1, len(userIDs), id))
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	manifest := &formatter.Manifest{ExportedAt: e.now().UTC(), Format: opts.Format, Total: len(userIDs)}

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		entry := formatter.ManifestEntry{UserID: res.UserID, Name: res.Name, File: res.File, Entries: res.Entries}
		if res.Success {
			result.Succeeded++
			sendProgress(prog, exportCompletedUpdate(completed, len(userIDs), res))
		} else {
			result.Failed++
			entry.Error = res.Error.Error()
			sendProgress(prog, exportFailedUpdate(completed, len(userIDs), res))
		}
		manifest.Exports = append(manifest.Exports, entry)
	}
	manifest.Succeeded, manifest.Failed = result.Succeeded, result.Failed

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteManifest(manifest, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	return result, nil
}

func (e *JournalExporter) exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan string,
	results chan<- ExportResult,
	opts ExportOpts,
) {
	defer wg.Done()

	for id := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}
		results <- e.exportOne(id, opts)
	}
}

func (e *JournalExporter) exportOne(userID string, opts ExportOpts) ExportResult {
	res := ExportResult{UserID: userID}

	export, err := e.Load(userID, opts.Since, opts.Until)
	if err != nil {
		res.Error = fmt.Errorf("failed to load journal: %w", err)
		return res
	}
	res.Name = export.User.Name
	res.Entries = len(export.Entries)

	path := filepath.Join(opts.OutputDir, userID+opts.Format.Extension())
	file, err := formatter.WriteExport(export, opts.Format, path)
	if err != nil {
		res.Error = err
		return res
	}

	res.File = file
	res.Success = true
	return res
}
