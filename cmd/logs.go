package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/desertthunder/moodtape/internal/formatter"
	"github.com/desertthunder/moodtape/internal/repositories"
	"github.com/desertthunder/moodtape/internal/shared"
	"github.com/desertthunder/moodtape/internal/tasks"
	"github.com/dustin/go-humanize"
	"github.com/urfave/cli/v3"
)

const dateLayout = "2006-01-02"

// LogsExport writes one journal file per user plus a manifest.
func (r *Runner) LogsExport(ctx context.Context, cmd *cli.Command) error {
	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}
	since, err := parseDate(cmd.String("since"))
	if err != nil {
		return err
	}
	until, err := parseDate(cmd.String("until"))
	if err != nil {
		return err
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	users := repositories.NewUserRepository(db)
	userIDs, err := resolveUsers(users, cmd.StringSlice("user"))
	if err != nil {
		return err
	}
	if len(userIDs) == 0 {
		r.writePlain("No users to export\n")
		return nil
	}

	exporter := tasks.NewJournalExporter(users, repositories.NewEmotionLogRepository(db))

	progress := make(chan tasks.ProgressUpdate, 50)
	done := r.printProgress(progress)
	result, err := exporter.BulkExport(ctx, progress, userIDs, tasks.ExportOpts{
		Format:     format,
		OutputDir:  cmd.String("output"),
		NumWorkers: int(cmd.Int("workers")),
		Since:      since,
		Until:      until,
	})
	close(progress)
	<-done

	if err != nil {
		return err
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Directory: %s\n", result.OutputDirectory)
	r.writePlain("Exported: %d/%d journals\n", result.Succeeded, result.Total)

	var size int64
	for _, res := range result.Results {
		if !res.Success {
			continue
		}
		if info, err := os.Stat(res.File); err == nil {
			size += info.Size()
		}
	}
	r.writePlain("Size: %s\n", humanize.Bytes(uint64(size)))
	r.writePlain("Manifest: %s\n", result.ManifestPath)

	if result.Failed > 0 {
		r.writePlain("\nFailed to export %d journals:\n", result.Failed)
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  - %s: %v\n", res.UserID, res.Error)
			}
		}
	}
	return nil
}

// resolveUsers maps emails and IDs to user IDs. No refs selects every user.
func resolveUsers(users *repositories.UserRepository, refs []string) ([]string, error) {
	if len(refs) == 0 {
		all, err := users.List(nil)
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(all))
		for i, u := range all {
			ids[i] = u.ID()
		}
		return ids, nil
	}

	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		user, err := findUser(users, ref)
		if err != nil {
			return nil, err
		}
		ids = append(ids, user.ID())
	}
	return ids, nil
}

// parseDate reads a YYYY-MM-DD date at local midnight. An empty value is the zero time.
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.ParseInLocation(dateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must look like %s", shared.ErrInvalidArgument, s, dateLayout)
	}
	return t, nil
}
