// Package auth implements the one-time authorization of the skill against the
// Spotify accounts service. The user registers an application in the Spotify
// developer dashboard, runs the interactive flow once from a terminal and
// pastes the redirect URL back. The resulting token, together with the client
// credentials, is written to a Store and every later skill invocation builds a
// refreshing token source from it.
//
// The redirect URL does not need to be served by anything: the code is read
// from the URL the browser ends up on, which is why https://localhost:8888 is
// the default.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/zmb3/spotify"
	"golang.org/x/oauth2"
)

// DefaultRedirectURL is registered in the Spotify dashboard by default.
const DefaultRedirectURL = "https://localhost:8888"

var (
	// ErrMissingCredentials is returned when the client id or secret is
	// empty.
	ErrMissingCredentials = errors.New("spotify client id and secret are required")
	// ErrAuthDenied is returned when the accounts service redirected with
	// an error instead of a code.
	ErrAuthDenied = errors.New("authorization denied")
	// ErrStateMismatch means the redirect does not belong to this flow.
	ErrStateMismatch = errors.New("authorization state mismatch")
	// ErrNotAuthorized means no token has been stored yet.
	ErrNotAuthorized = errors.New("skill is not authorized, run the auth command")
)

// Scopes requested during authorization.
var Scopes = []string{
	spotify.ScopeUserLibraryRead,
	spotify.ScopeStreaming,
	spotify.ScopePlaylistReadPrivate,
	spotify.ScopeUserTopRead,
	spotify.ScopeUserReadPlaybackState,
}

// Authorizer drives the authorization code flow.
type Authorizer struct {
	config *oauth2.Config
}

// Option customises an Authorizer.
type Option func(*oauth2.Config)

// WithEndpoint overrides the Spotify accounts endpoints.
func WithEndpoint(e oauth2.Endpoint) Option {
	return func(c *oauth2.Config) { c.Endpoint = e }
}

// NewAuthorizer validates the client credentials and prepares the OAuth
// configuration. An empty redirectURL selects DefaultRedirectURL.
func NewAuthorizer(clientID, clientSecret, redirectURL string, opts ...Option) (*Authorizer, error) {
	if strings.TrimSpace(clientID) == "" || strings.TrimSpace(clientSecret) == "" {
		return nil, ErrMissingCredentials
	}
	if redirectURL == "" {
		redirectURL = DefaultRedirectURL
	}
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotify.AuthURL,
			TokenURL: spotify.TokenURL,
		},
	}
	for _, o := range opts {
		o(cfg)
	}
	return &Authorizer{config: cfg}, nil
}

// Config exposes the underlying OAuth configuration.
func (a *Authorizer) Config() *oauth2.Config { return a.config }

// AuthURL returns the page the user has to open to grant access.
func (a *Authorizer) AuthURL(state string) string {
	return a.config.AuthCodeURL(state)
}

// ParseRedirect extracts the authorization code from the URL the browser was
// redirected to.
func ParseRedirect(rawURL, state string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse redirect url: %w", err)
	}
	q := u.Query()
	if e := q.Get("error"); e != "" {
		return "", fmt.Errorf("%w: %s", ErrAuthDenied, e)
	}
	if q.Get("state") != state {
		return "", ErrStateMismatch
	}
	code := q.Get("code")
	if code == "" {
		return "", errors.New("redirect url has no code parameter")
	}
	return code, nil
}

// Exchange trades the authorization code for a token.
func (a *Authorizer) Exchange(ctx context.Context, code string) (*TokenRecord, error) {
	tok, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	rec := &TokenRecord{ClientID: a.config.ClientID, ClientSecret: a.config.ClientSecret}
	rec.Update(tok)
	return rec, nil
}
