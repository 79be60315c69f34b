package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/qrtune/internal/links"
	"github.com/desertthunder/qrtune/internal/models"
	"github.com/desertthunder/qrtune/internal/shared"
	"github.com/urfave/cli/v3"
)

// ResolveClient is recorded as the client of scans saved from the CLI.
const ResolveClient = "cli"

// Resolve parses a scanned payload and prints every derived target.
func (r *Runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	text := strings.TrimSpace(cmd.StringArg("text"))
	if text == "" {
		return fmt.Errorf("%w: text to resolve", shared.ErrMissingArgument)
	}

	res := links.Resolve(text)

	var scan *models.Scan
	if cmd.Bool("save") {
		config, err := r.configure(cmd)
		if err != nil {
			return err
		}

		scans, db, err := r.openScans(config)
		if err != nil {
			return err
		}
		defer db.Close()

		scan = models.NewScan(text, ResolveClient)
		if err := scans.Create(scan); err != nil {
			return fmt.Errorf("failed to record scan: %w", err)
		}
		r.logger.Debug("scan recorded", "id", scan.ID(), "sequence", scan.Sequence())
	}

	if cmd.Bool("open") {
		if res.OpenURL == "" {
			r.logger.Warn("nothing to open", "kind", res.Kind)
		} else if err := r.openBrowser(res.OpenURL); err != nil {
			r.logger.Warn("failed to open browser", "error", err)
		}
	}

	if cmd.Bool("json") {
		out := struct {
			links.Resolution
			ScanID string `json:"scan_id,omitempty"`
		}{Resolution: res}
		if scan != nil {
			out.ScanID = scan.ID()
		}
		return r.writeJSON(out, cmd.Bool("pretty"))
	}

	return r.writeResolution(res, scan)
}

func (r *Runner) writeResolution(res links.Resolution, scan *models.Scan) error {
	if res.Kind == links.KindUnknown {
		r.writePlain("✗ Unrecognized link: %s\n", res.Raw)
		return nil
	}

	label := string(res.Kind)
	if res.Subtype != "" {
		label += " " + string(res.Subtype)
	}
	r.writePlainHeader(fmt.Sprintf("%s %s", label, res.ID))

	for _, row := range [][2]string{
		{"Open", res.OpenURL},
		{"URI", res.URI},
		{"Embed", res.EmbedURL},
	} {
		if row[1] != "" {
			r.writePlain("%-9s %s\n", row[0]+":", row[1])
		}
	}
	r.writePlain("%-9s %t\n", "Playable:", res.Playable)

	if scan != nil {
		r.writePlain("%-9s #%d (%s)\n", "Saved:", scan.Sequence(), scan.ID())
	}
	return nil
}
