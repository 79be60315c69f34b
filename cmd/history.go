package main

import (
	"context"
	"fmt"
	"slices"

	"github.com/desertthunder/qrtune/internal/formatter"
	"github.com/desertthunder/qrtune/internal/models"
	"github.com/desertthunder/qrtune/internal/shared"
	"github.com/urfave/cli/v3"
)

// HistoryList prints or exports recent scans, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	limit := int(cmd.Int("limit"))
	if limit <= 0 {
		return fmt.Errorf("%w: --limit must be positive", shared.ErrInvalidArgument)
	}

	format, err := formatter.ParseFormat(cmd.String("format"))
	if err != nil {
		return err
	}

	config, err := r.configure(cmd)
	if err != nil {
		return err
	}

	repo, db, err := r.openScans(config)
	if err != nil {
		return err
	}
	defer db.Close()

	var scans []*models.Scan
	kind, subtype := cmd.String("kind"), cmd.String("subtype")
	if kind == "" && subtype == "" {
		scans, err = repo.Recent(limit)
	} else {
		scans, err = repo.List(map[string]any{"kind": kind, "subtype": subtype})
		slices.Reverse(scans)
		if len(scans) > limit {
			scans = scans[:limit]
		}
	}
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}

	r.logger.Debug("history loaded", "count", len(scans), "format", format)

	if path := cmd.String("output"); path != "" {
		written, err := formatter.WriteExport(format, scans, path)
		if err != nil {
			return err
		}
		return r.writePlain("✓ Exported %d scans to %s\n", len(scans), written)
	}

	if format == formatter.FormatJSON {
		return r.writeJSON(models.Views(scans), true)
	}

	data, err := formatter.Export(format, scans)
	if err != nil {
		return err
	}
	if _, err := r.output.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// HistoryClear soft-deletes every recorded scan.
func (r *Runner) HistoryClear(ctx context.Context, cmd *cli.Command) error {
	if !cmd.Bool("yes") {
		return fmt.Errorf("%w: pass --yes to delete all scans", shared.ErrMissingArgument)
	}

	config, err := r.configure(cmd)
	if err != nil {
		return err
	}

	repo, db, err := r.openScans(config)
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := repo.Clear()
	if err != nil {
		return err
	}

	r.logger.Info("history cleared", "count", n)
	return r.writePlain("✓ Cleared %d scans\n", n)
}
