// Package skill answers the voice assistant. Two entry points exist:
//
//   - Search is called by the playback plugin (OCP) with a phrase and a media
//     type. It fans out artist, album, track and playlist searches and returns
//     playable entries and playlists with a confidence the plugin uses to pick
//     between skills.
//   - Resolve is the older single-answer path: it parses the utterance,
//     queries the catalogue and returns one spotify:// URI.
//
// Neither path plays anything; playback is left to the plugin and to a
// Spotify Connect device.
package skill

import (
	"context"
	"errors"
	"strings"

	libspotify "github.com/zmb3/spotify"
	log "github.com/sirupsen/logrus"

	"Spotify-Skill-Go/pkg/auth"
	"Spotify-Skill-Go/pkg/intent"
	"Spotify-Skill-Go/pkg/spotify"
)

// DefaultID identifies the skill in results handed to the playback plugin.
const DefaultID = "skill-spotify.openvoiceos"

var (
	// ErrNoDevices means no Spotify Connect device is online.
	ErrNoDevices = errors.New("no spotify devices available")
	// ErrNothingFound is returned when no catalogue entry matched.
	ErrNothingFound = spotify.ErrNothingFound
	// ErrNotAuthorized is returned when no usable token is stored.
	ErrNotAuthorized = auth.ErrNotAuthorized
)

// Catalog is the set of catalogue queries the skill relies on.
// *spotify.SpotifyClient implements it.
type Catalog interface {
	Devices(ctx context.Context) ([]libspotify.PlayerDevice, error)
	SavedTracks(ctx context.Context) ([]libspotify.FullTrack, error)

	QueryArtist(ctx context.Context, q string) (*spotify.Match, error)
	QueryAlbum(ctx context.Context, q string) (*spotify.Match, error)
	QuerySong(ctx context.Context, q string) (*spotify.Match, error)
	QueryPlaylist(ctx context.Context, q string) (*spotify.Match, error)
	BestUserPlaylist(ctx context.Context, q string) (*spotify.Match, error)
	GenericQuery(ctx context.Context, q string) (*spotify.Match, error)

	TracksFromArtist(ctx context.Context, id libspotify.ID) ([]libspotify.FullTrack, error)
	TracksFromAlbum(ctx context.Context, id libspotify.ID) ([]libspotify.SimpleTrack, error)
	TracksFromPlaylist(ctx context.Context, id libspotify.ID) ([]libspotify.FullTrack, error)
}

var _ Catalog = (*spotify.SpotifyClient)(nil)

// Recorder stores resolved phrases. The sqlite database implements it.
type Recorder interface {
	RecordResolution(ctx context.Context, phrase, kind, uri string, confidence int) error
}

// Skill holds the skill's dependencies and settings.
type Skill struct {
	Catalog Catalog
	Vocab   *intent.Vocabulary
	// Players are the names of Spotify Connect devices configured as audio
	// backends of the assistant.
	Players []string
	ID      string
	Icon    string
	// MaxCollections limits how many artists or albums of a search are
	// expanded into playlists.
	MaxCollections int
	// History is optional.
	History Recorder
}

// New returns a skill using the English vocabulary.
func New(c Catalog, players []string) *Skill {
	return &Skill{
		Catalog:        c,
		Vocab:          intent.English(),
		Players:        players,
		ID:             DefaultID,
		MaxCollections: 5,
	}
}

// HasConfiguredPlayers reports whether one of the configured players is
// among the online devices.
func (s *Skill) HasConfiguredPlayers(ctx context.Context) bool {
	if len(s.Players) == 0 {
		log.Warn("no spotify players configured")
		return false
	}
	devs, err := s.Catalog.Devices(ctx)
	if err != nil {
		log.WithError(err).Warn("could not list spotify devices")
		return false
	}
	for _, d := range devs {
		for _, p := range s.Players {
			if strings.EqualFold(d.Name, p) {
				return true
			}
		}
	}
	log.WithField("players", s.Players).Warn("no configured spotify player is online")
	return false
}
