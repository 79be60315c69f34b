package main

import (
	"context"
	"fmt"

	"github.com/desertthunder/qrtune/internal/shared"
	"github.com/desertthunder/qrtune/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive terminal UI for scan history.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	config, err := r.configure(cmd)
	if err != nil {
		return err
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger("./tmp/qrtune-tui.log")
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	r.logger = fileLogger

	var store ui.Store
	if config.Database.Enabled {
		scans, db, err := r.openScans(config)
		if err != nil {
			return err
		}
		defer db.Close()
		store = scans
	} else {
		r.logger.Info("history disabled; resolving without recording")
	}

	if err := ui.Run(store, int(cmd.Int("limit"))); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
