package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/moodtape/internal/shared"
	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

type migrationView struct {
	Version   int    `json:"version"`
	Name      string `json:"name"`
	Applied   bool   `json:"applied"`
	AppliedAt string `json:"applied_at,omitempty"`
}

// MigrateUp applies every pending migration.
func (r *Runner) MigrateUp(ctx context.Context, cmd *cli.Command) error {
	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	r.logger.Info("migrations applied", "path", r.config.Database.Path)
	r.writePlain("✓ Database is up to date\n")
	return nil
}

// MigrateRollback reverts the most recently applied migration.
func (r *Runner) MigrateRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := r.connect()
	if err != nil {
		return err
	}
	defer db.Close()

	before, err := shared.MigrationsStatus(db)
	if err != nil {
		return err
	}

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}

	for i := len(before) - 1; i >= 0; i-- {
		if before[i].Applied {
			r.logger.Info("rolled back", "version", before[i].Version, "name", before[i].Name)
			r.writePlain("✓ Rolled back %04d_%s\n", before[i].Version, before[i].Name)
			break
		}
	}
	return nil
}

// MigrateStatus lists every known migration and when it was applied.
func (r *Runner) MigrateStatus(ctx context.Context, cmd *cli.Command) error {
	db, err := r.connect()
	if err != nil {
		return err
	}
	defer db.Close()

	statuses, err := shared.MigrationsStatus(db)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		views := make([]migrationView, len(statuses))
		for i, s := range statuses {
			views[i] = migrationView{Version: s.Version, Name: s.Name, Applied: s.Applied}
			if s.Applied {
				views[i].AppliedAt = s.AppliedAt.UTC().Format("2006-01-02T15:04:05Z")
			}
		}
		return r.writeJSON(views, true)
	}

	return r.writePlain("%s\n", renderMigrations(statuses))
}

func renderMigrations(statuses []shared.MigrationStatus) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Version", "Name", "Status", "Applied"})

	pending := 0
	for _, s := range statuses {
		status, applied := "pending", ""
		if s.Applied {
			status, applied = "applied", humanize.Time(s.AppliedAt)
		} else {
			pending++
		}
		t.AppendRow(table.Row{fmt.Sprintf("%04d", s.Version), strings.ReplaceAll(s.Name, "_", " "), status, applied})
	}
	t.AppendFooter(table.Row{"", "", fmt.Sprintf("%d pending", pending), ""})
	return t.Render()
}
