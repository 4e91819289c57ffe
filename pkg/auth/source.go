package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"Spotify-Skill-Go/pkg/metrics"
)

// DefaultTokenLifetime is assumed for records saved without an expiry.
const DefaultTokenLifetime = time.Hour

// TokenSource loads the stored record and returns a token source that
// refreshes expired access tokens and writes each new token back to store.
func TokenSource(ctx context.Context, store Store, opts ...Option) (oauth2.TokenSource, error) {
	rec, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	if rec.AccessToken == "" && rec.RefreshToken == "" {
		return nil, ErrNotAuthorized
	}
	a, err := NewAuthorizer(rec.ClientID, rec.ClientSecret, "", opts...)
	if err != nil {
		return nil, err
	}
	tok := rec.Token()
	if tok.Expiry.IsZero() {
		tok.Expiry = time.Now().Add(DefaultTokenLifetime)
	}
	return &persistingSource{
		ctx:    ctx,
		base:   a.config.TokenSource(ctx, tok),
		store:  store,
		rec:    rec,
		access: tok.AccessToken,
	}, nil
}

// persistingSource saves every token that differs from the last one seen.
type persistingSource struct {
	ctx   context.Context
	base  oauth2.TokenSource
	store Store

	mu     sync.Mutex
	rec    *TokenRecord
	access string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			// refresh token revoked or application credentials changed
			return nil, fmt.Errorf("%w: %v", ErrNotAuthorized, err)
		}
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken == s.access {
		return tok, nil
	}
	s.rec.Update(tok)
	s.access = tok.AccessToken
	metrics.TokenRefreshes.Inc()
	if err := s.store.Save(s.ctx, s.rec); err != nil {
		// the refreshed token is still usable for this run
		log.WithError(err).Warn("could not persist refreshed token")
	} else {
		log.WithField("expiry", tok.Expiry).Debug("refreshed token saved")
	}
	return tok, nil
}
