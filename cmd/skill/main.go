// Command skill runs the Spotify skill of the voice assistant. The auth
// command performs the one-time OAuth flow and stores the token; search and
// resolve answer a phrase from the command line; serve exposes the same
// operations over HTTP for the assistant host.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"Spotify-Skill-Go/pkg/auth"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newRunner(os.Stdin, os.Stdout).command()
	if err := app.Run(ctx, os.Args); err != nil {
		if errors.Is(err, auth.ErrNotAuthorized) {
			log.Error("no valid spotify token, run the auth command first")
			os.Exit(2)
		}
		log.Fatalf("application error: %v", err)
	}
}
