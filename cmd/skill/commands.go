package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"Spotify-Skill-Go/pkg/auth"
	"Spotify-Skill-Go/pkg/handlers"
	"Spotify-Skill-Go/pkg/music"
)

var errNoPhrase = errors.New("a phrase is required")

func phrase(cmd *cli.Command) (string, error) {
	p := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if p == "" {
		return "", errNoPhrase
	}
	return p, nil
}

func authCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:   "auth",
		Usage:  "Authorize the skill with Spotify and store the token",
		Action: r.Auth,
	}
}

// Auth runs the interactive OAuth flow.
func (r *runner) Auth(ctx context.Context, cmd *cli.Command) error {
	st, err := r.tokenStore()
	if err != nil {
		return err
	}
	_, err = auth.Interactive(ctx, r.in, r.out, auth.InteractiveOptions{
		ClientID:     r.cfg.ClientID,
		ClientSecret: r.cfg.ClientSecret,
		RedirectURL:  r.cfg.RedirectURL,
		Store:        st,
		State:        r.state,
		Options:      r.authOpts,
	})
	return err
}

func tokenCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Show the stored token",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "check",
				Usage: "Call the Web API with the token, refreshing it when expired",
			},
		},
		Action: r.Token,
	}
}

type tokenStatus struct {
	Store           string    `json:"store"`
	ClientID        string    `json:"client_id"`
	Scope           string    `json:"scope,omitempty"`
	Expiry          time.Time `json:"expiry,omitempty"`
	Expired         bool      `json:"expired"`
	HasRefreshToken bool      `json:"has_refresh_token"`
	User            string    `json:"user,omitempty"`
}

// Token prints the stored token without its secrets.
func (r *runner) Token(ctx context.Context, cmd *cli.Command) error {
	st, err := r.tokenStore()
	if err != nil {
		return err
	}
	if cmd.Bool("check") {
		c, err := r.loadCatalog(ctx)
		if err != nil {
			return err
		}
		if _, err := c.Ping(ctx); err != nil {
			return fmt.Errorf("check token: %w", err)
		}
	}
	rec, err := st.Load(ctx)
	if err != nil {
		return err
	}
	status := tokenStatus{
		Store:           r.cfg.Store,
		ClientID:        rec.ClientID,
		Scope:           rec.Scope,
		Expiry:          rec.Expiry,
		Expired:         !rec.Expiry.IsZero() && time.Now().After(rec.Expiry),
		HasRefreshToken: rec.RefreshToken != "",
	}
	return r.writeJSON(status)
}

func searchCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "Answer a playback plugin query",
		ArgsUsage: "<phrase>",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "media-type",
				Usage: "Media type of the query (generic or music)",
				Value: string(music.MediaTypeGeneric),
			},
		},
		Action: r.Search,
	}
}

// Search prints the playback plugin results for a phrase.
func (r *runner) Search(ctx context.Context, cmd *cli.Command) error {
	p, err := phrase(cmd)
	if err != nil {
		return err
	}
	s, _, err := r.newSkill(ctx)
	if err != nil {
		return err
	}
	res, err := s.Search(ctx, p, music.MediaType(cmd.String("media-type")))
	if err != nil {
		return err
	}
	if res == nil {
		res = []music.Result{}
	}
	return r.writeJSON(res)
}

func resolveCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Resolve a phrase to a single spotify:// URI",
		ArgsUsage: "<phrase>",
		Action:    r.Resolve,
	}
}

// Resolve prints the resolution of a phrase.
func (r *runner) Resolve(ctx context.Context, cmd *cli.Command) error {
	p, err := phrase(cmd)
	if err != nil {
		return err
	}
	s, _, err := r.newSkill(ctx)
	if err != nil {
		return err
	}
	res, err := s.Resolve(ctx, p)
	if err != nil {
		return err
	}
	return r.writeJSON(res)
}

func devicesCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:   "devices",
		Usage:  "List Spotify Connect devices and whether they are configured players",
		Action: r.Devices,
	}
}

type deviceStatus struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Active     bool   `json:"active"`
	Configured bool   `json:"configured"`
}

// Devices prints the online devices.
func (r *runner) Devices(ctx context.Context, cmd *cli.Command) error {
	c, err := r.loadCatalog(ctx)
	if err != nil {
		return err
	}
	devs, err := c.Devices(ctx)
	if err != nil {
		return err
	}
	out := []deviceStatus{}
	for _, d := range devs {
		ds := deviceStatus{Name: d.Name, Type: d.Type, Active: d.Active}
		for _, p := range r.cfg.Players {
			if strings.EqualFold(p, d.Name) {
				ds.Configured = true
			}
		}
		out = append(out, ds)
	}
	return r.writeJSON(out)
}

func historyCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show resolved phrases",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Number of recent resolutions",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "top",
				Usage: "Show the most resolved URIs instead",
			},
			&cli.IntFlag{
				Name:  "days",
				Usage: "Lookback of --top in days",
				Value: 7,
			},
		},
		Action: r.History,
	}
}

// History prints recent resolutions or the most resolved URIs.
func (r *runner) History(ctx context.Context, cmd *cli.Command) error {
	d, err := r.openDB()
	if err != nil {
		return err
	}
	if cmd.Bool("top") {
		res, err := d.TopURIsSince(ctx, time.Now().AddDate(0, 0, -int(cmd.Int("days"))))
		if err != nil {
			return err
		}
		return r.writeJSON(res)
	}
	res, err := d.RecentResolutions(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	return r.writeJSON(res)
}

func serveCommand(r *runner) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the skill over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (defaults to ADDR or :8080)",
			},
		},
		Action: r.Serve,
	}
}

// Serve runs the HTTP server until ctx is cancelled.
func (r *runner) Serve(ctx context.Context, cmd *cli.Command) error {
	s, c, err := r.newSkill(ctx)
	if err != nil {
		return err
	}
	app := &handlers.Application{Skill: s, Pinger: c}
	if s.History != nil {
		app.History = r.database
	}
	addr := r.cfg.Addr
	if v := cmd.String("addr"); v != "" {
		addr = v
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	srv := &http.Server{
		Handler:           app.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.WithField("addr", ln.Addr().String()).Info("listening")
	if r.listening != nil {
		r.listening(ln.Addr())
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	select {
	case err := <-errc:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
