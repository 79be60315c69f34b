package main

import (
	"context"
	"os"

	"github.com/desertthunder/qrtune/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)
	runner := NewRunner(RunnerOpts{Logger: logger})

	if err := runner.app().Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}

func (r *Runner) app() *cli.Command {
	return &cli.Command{
		Name:     "qrtune",
		Usage:    "Spotify playback relay and QR link resolver",
		Version:  "0.1.0",
		Writer:   r.output,
		Commands: r.register(),
	}
}
