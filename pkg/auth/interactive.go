package auth

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// InteractiveOptions configures the terminal authorization flow.
type InteractiveOptions struct {
	// ClientID and ClientSecret are asked for when empty.
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Store        Store
	// State generates the anti-forgery value. Defaults to a random UUID.
	State   func() string
	Options []Option
}

// Interactive runs the one-time authorization from a terminal: it asks for
// missing credentials, prints the authorize URL, reads the redirect URL the
// user pastes back and stores the exchanged token.
func Interactive(ctx context.Context, in io.Reader, out io.Writer, opts InteractiveOptions) (*TokenRecord, error) {
	if opts.Store == nil {
		return nil, errors.New("no token store configured")
	}
	r := bufio.NewReader(in)
	var err error
	if opts.ClientID == "" {
		if opts.ClientID, err = prompt(r, out, "Spotify client id: "); err != nil {
			return nil, err
		}
	}
	if opts.ClientSecret == "" {
		if opts.ClientSecret, err = prompt(r, out, "Spotify client secret: "); err != nil {
			return nil, err
		}
	}
	a, err := NewAuthorizer(opts.ClientID, opts.ClientSecret, opts.RedirectURL, opts.Options...)
	if err != nil {
		return nil, err
	}
	state := uuid.NewString()
	if opts.State != nil {
		state = opts.State()
	}

	fmt.Fprintf(out, "Open the following address in a browser and grant access:\n\n  %s\n\n", a.AuthURL(state))
	redirect, err := prompt(r, out, "Paste the address you were redirected to: ")
	if err != nil {
		return nil, err
	}
	code, err := ParseRedirect(redirect, state)
	if err != nil {
		return nil, err
	}
	rec, err := a.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := opts.Store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	log.WithField("scope", rec.Scope).Info("spotify authorization stored")
	fmt.Fprintln(out, "Authorization complete.")
	return rec, nil
}

func prompt(r *bufio.Reader, out io.Writer, label string) (string, error) {
	fmt.Fprint(out, label)
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(line), nil
}
