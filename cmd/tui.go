package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/pinx/internal/shared"
	"github.com/desertthunder/pinx/internal/tasks"
	"github.com/desertthunder/pinx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for accounts and boards.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(cmd.String("log-file"))
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.SetLogger(fileLogger)

	s, cleanup, err := r.openStore(ctx, true)
	if err != nil {
		return err
	}
	defer cleanup()

	var refresher ui.Refresher
	if flow, err := r.connectFlow(s); err == nil {
		refresher = flow
	} else {
		r.logger.Warn("board refresh disabled", "error", err)
	}

	model := ui.NewModel(ctx, s, refresher, tasks.RefreshOpts{RateLimit: r.config.Pinterest.RateLimit})
	defer model.Close()

	p := tea.NewProgram(model, tea.WithContext(ctx), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
