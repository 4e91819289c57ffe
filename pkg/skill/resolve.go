package skill

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"Spotify-Skill-Go/pkg/intent"
	"Spotify-Skill-Go/pkg/metrics"
	"Spotify-Skill-Go/pkg/spotify"
)

// URIScheme prefixes resolved URIs so the audio service routes them to the
// Spotify backend.
const URIScheme = "spotify://"

// SavedTracksURI addresses the user's liked songs.
const SavedTracksURI = "spotify:collection:tracks"

// Resolution is the answer to Resolve.
type Resolution struct {
	URI        string       `json:"uri"`
	Confidence int          `json:"confidence"`
	Kind       spotify.Kind `json:"kind"`
	Name       string       `json:"name,omitempty"`
}

// Resolve maps an utterance to a single playable URI. A bare "spotify"
// continues playback, a specific request ("the album X") is tried next and
// everything else goes through the generic catalogue cascade.
func (s *Skill) Resolve(ctx context.Context, phrase string) (*Resolution, error) {
	start := time.Now()
	devs, err := s.Catalog.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	if len(devs) == 0 {
		return nil, ErrNoDevices
	}

	in := s.Vocab.Parse(phrase)
	logger := log.WithFields(log.Fields{"phrase": phrase, "intent": in.Kind})

	var res *Resolution
	if in.Kind == intent.Continue {
		// only a bare "spotify" continues, so the service is always named
		res = &Resolution{Kind: spotify.KindContinue, Confidence: 100}
	} else {
		m, err := s.specific(ctx, in)
		if errors.Is(err, ErrNothingFound) {
			logger.Debug("no specific match, trying generic query")
			m, err = s.Catalog.GenericQuery(ctx, s.Vocab.Normalize(phrase))
		}
		if err != nil {
			return nil, err
		}
		res = &Resolution{
			URI:        URIScheme + string(m.URI),
			Confidence: m.Confidence,
			Kind:       m.Kind,
			Name:       m.Name,
		}
		if in.Spotify {
			res.Confidence = 100
		}
	}
	metrics.ResolveDuration.WithLabelValues(string(res.Kind)).Observe(time.Since(start).Seconds())
	logger.WithFields(log.Fields{"kind": res.Kind, "uri": res.URI, "confidence": res.Confidence}).Info("resolved")

	if s.History != nil {
		if err := s.History.RecordResolution(ctx, phrase, string(res.Kind), res.URI, res.Confidence); err != nil {
			logger.WithError(err).Warn("could not record resolution")
		}
	}
	return res, nil
}

// specific runs the query named by a parsed intent. Generic intents report
// ErrNothingFound so the caller falls back to the cascade.
func (s *Skill) specific(ctx context.Context, in intent.Intent) (*spotify.Match, error) {
	switch in.Kind {
	case intent.SavedTracks:
		tracks, err := s.Catalog.SavedTracks(ctx)
		if err != nil {
			return nil, err
		}
		if len(tracks) == 0 {
			return nil, ErrNothingFound
		}
		return &spotify.Match{Confidence: 100, Kind: spotify.KindSavedTracks, Name: "saved tracks", URI: SavedTracksURI}, nil
	case intent.Playlist:
		return s.Catalog.QueryPlaylist(ctx, in.Query)
	case intent.Album:
		return s.Catalog.QueryAlbum(ctx, in.Query)
	case intent.Artist:
		return s.Catalog.QueryArtist(ctx, in.Query)
	case intent.Song:
		return s.Catalog.QuerySong(ctx, in.Query)
	}
	return nil, ErrNothingFound
}
