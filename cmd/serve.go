package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/desertthunder/qrtune/internal/server"
	"github.com/desertthunder/qrtune/internal/services"
	"github.com/desertthunder/qrtune/internal/shared"
	"github.com/urfave/cli/v3"
)

// Serve runs the relay until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	level, err := shared.ParseLevel(cmd.String("log-level"))
	if err != nil {
		return err
	}
	shared.SetLogLevel(r.logger, level)

	config, err := r.configure(cmd)
	if err != nil {
		return err
	}
	if port := cmd.Int("port"); port > 0 {
		config.Server.Port = int(port)
	}
	if err := config.Validate(); err != nil {
		return err
	}

	spotify, err := services.NewSpotifyService(config.Spotify, r.httpClient)
	if err != nil {
		return fmt.Errorf("failed to initialize spotify client: %w", err)
	}

	opts := server.Options{
		Config:     config,
		Authorizer: spotify,
		Player:     spotify,
		Logger:     r.logger,
	}

	if config.Database.Enabled {
		scans, db, err := r.openScans(config)
		if err != nil {
			return err
		}
		defer db.Close()
		opts.Scans = scans
	} else {
		r.logger.Info("scan history disabled")
	}

	srv, err := server.New(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx); err != nil {
		return err
	}
	r.logger.Info("relay stopped")
	return nil
}
