package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"

	"Spotify-Skill-Go/pkg/auth"
	"Spotify-Skill-Go/pkg/config"
	"Spotify-Skill-Go/pkg/db"
	"Spotify-Skill-Go/pkg/skill"
	"Spotify-Skill-Go/pkg/spotify"
)

// tokenID names the token row in the sqlite store.
const tokenID = "spotify"

// catalog is what the commands need from the Web API client.
type catalog interface {
	skill.Catalog
	Ping(ctx context.Context) (string, error)
}

// runner holds the dependencies shared by every command.
type runner struct {
	in  io.Reader
	out io.Writer

	cfg      *config.Config
	database *db.DB

	// authOpts are passed to every Authorizer.
	authOpts []auth.Option
	// state overrides the OAuth state of the auth command.
	state func() string
	// newCatalog builds the Web API client from a token source.
	newCatalog func(ctx context.Context, ts oauth2.TokenSource) catalog
	// listening is told the address serve bound to.
	listening func(net.Addr)
}

func newRunner(in io.Reader, out io.Writer) *runner {
	r := &runner{in: in, out: out}
	r.newCatalog = r.spotifyCatalog
	return r
}

func (r *runner) spotifyCatalog(ctx context.Context, ts oauth2.TokenSource) catalog {
	c := spotify.NewSpotifyClient(oauth2.NewClient(ctx, ts))
	c.Country = r.cfg.Country
	return c
}

// command builds the command tree.
func (r *runner) command() *cli.Command {
	return &cli.Command{
		Name:  "skill",
		Usage: "Spotify skill for the voice assistant",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a TOML configuration file",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Token store (file or sqlite)",
			},
		},
		Before:   r.setup,
		After:    r.teardown,
		Commands: r.register(),
	}
}

func (r *runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*runner) *cli.Command){
		authCommand, tokenCommand, searchCommand, resolveCommand, devicesCommand, historyCommand, serveCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// setup loads the configuration, applies the global flags and configures
// logging.
func (r *runner) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return ctx, err
	}
	if v := cmd.String("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v := cmd.String("store"); v != "" {
		cfg.Store = v
	}
	if err := cfg.Validate(); err != nil {
		return ctx, err
	}
	if err := setupLogging(cfg.LogLevel, cfg.LogFormat); err != nil {
		return ctx, err
	}
	r.cfg = cfg
	return ctx, nil
}

func (r *runner) teardown(context.Context, *cli.Command) error {
	if r.database != nil {
		err := r.database.Close()
		r.database = nil
		return err
	}
	return nil
}

func setupLogging(level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetLevel(lvl)
	log.SetOutput(os.Stderr)
	if format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}
	return nil
}

// openDB opens the database on first use.
func (r *runner) openDB() (*db.DB, error) {
	if r.database != nil {
		return r.database, nil
	}
	if err := os.MkdirAll(filepath.Dir(r.cfg.DatabasePath), 0o700); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}
	d, err := db.New(r.cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("db init: %w", err)
	}
	r.database = d
	return d, nil
}

// tokenStore returns the configured token store.
func (r *runner) tokenStore() (auth.Store, error) {
	if r.cfg.Store == config.StoreSQLite {
		d, err := r.openDB()
		if err != nil {
			return nil, err
		}
		return d.TokenStore(tokenID), nil
	}
	return auth.NewFileStore(r.cfg.CredsDir), nil
}

// loadCatalog loads the token and builds the Web API client.
func (r *runner) loadCatalog(ctx context.Context) (catalog, error) {
	st, err := r.tokenStore()
	if err != nil {
		return nil, err
	}
	ts, err := auth.TokenSource(ctx, st, r.authOpts...)
	if err != nil {
		return nil, err
	}
	return r.newCatalog(ctx, ts), nil
}

// newSkill builds the skill, recording resolutions in the database.
func (r *runner) newSkill(ctx context.Context) (*skill.Skill, catalog, error) {
	c, err := r.loadCatalog(ctx)
	if err != nil {
		return nil, nil, err
	}
	s := skill.New(c, r.cfg.Players)
	if r.cfg.SkillID != "" {
		s.ID = r.cfg.SkillID
	}
	s.Icon = r.cfg.SkillIcon
	s.MaxCollections = r.cfg.MaxCollections

	d, err := r.openDB()
	if err != nil {
		log.WithError(err).Warn("resolution history disabled")
	} else {
		s.History = d
	}
	return s, c, nil
}

func (r *runner) writeJSON(data any) error {
	output, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := fmt.Fprintln(r.out, string(output)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
