package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/moodtape/internal/player"
	"github.com/desertthunder/moodtape/internal/shared"
	"github.com/desertthunder/moodtape/internal/ui"
	"github.com/urfave/cli/v3"
)

// Player launches the terminal player. Its state is saved between runs unless it starts on a playlist.
func (r *Runner) Player(ctx context.Context, cmd *cli.Command) error {
	soundcloud, err := r.soundCloudService()
	if err != nil {
		return err
	}

	statePath := cmd.String("state")
	if statePath == "" {
		if statePath, err = defaultStatePath(); err != nil {
			return err
		}
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	page := player.Page{Kind: player.Home}
	if id := cmd.String("playlist"); id != "" {
		page = player.Page{Kind: player.PlaylistShow, PlaylistID: id}
	}

	controller := player.NewController(soundcloud, player.NewFileStore(statePath), nil, fileLogger)
	model := ui.NewModel(ctx, controller, soundcloud, page)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running player: %w", err)
	}

	return nil
}

func defaultStatePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".moodtape", "player.json"), nil
}
