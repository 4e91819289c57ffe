// Package spotify wraps the Spotify Web API client with the catalogue queries
// the skill needs. Every query returns a Match carrying a confidence between 0
// and 100 that tells how well the top search result answers the spoken
// phrase, so the caller can compare an artist hit against a playlist hit.
//
// All exported methods accept a context. The wrapped library does not
// support contexts so cancellation is checked explicitly before each call.
//
// The user's devices, playlists and saved tracks are memoised in process for
// 60 seconds, 5 minutes and 4 hours respectively.
package spotify

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/zmb3/spotify"
)

// ErrNothingFound is returned when a query produced no usable result.
var ErrNothingFound = errors.New("nothing found on spotify")

// Cache lifetimes.
const (
	DeviceTTL      = time.Minute
	PlaylistTTL    = 5 * time.Minute
	SavedTracksTTL = 4 * time.Hour
)

// savedTracksPage is the page size used when listing saved tracks.
const savedTracksPage = 50

// webAPI defines the subset of spotify.Client used by this package. It allows
// the concrete client to be replaced in tests.
type webAPI interface {
	Search(query string, t spotify.SearchType) (*spotify.SearchResult, error)
	GetArtistsTopTracks(artistID spotify.ID, country string) ([]spotify.FullTrack, error)
	GetAlbumTracks(id spotify.ID) (*spotify.SimpleTrackPage, error)
	GetPlaylistTracks(playlistID spotify.ID) (*spotify.PlaylistTrackPage, error)
	CurrentUsersPlaylistsOpt(opt *spotify.Options) (*spotify.SimplePlaylistPage, error)
	CurrentUsersTracksOpt(opt *spotify.Options) (*spotify.SavedTrackPage, error)
	PlayerDevices() ([]spotify.PlayerDevice, error)
	CurrentUser() (*spotify.PrivateUser, error)
}

// SpotifyClient runs catalogue queries for the skill.
type SpotifyClient struct {
	client webAPI

	// Country is the market used for artist top tracks.
	Country string
	// ByWord separates a title from an artist in "X by Y" queries.
	ByWord string

	now func() time.Time

	mu        sync.Mutex
	devices   memo[[]spotify.PlayerDevice]
	playlists memo[map[string]spotify.SimplePlaylist]
	saved     memo[[]spotify.FullTrack]
}

// memo is a value together with the time it was fetched.
type memo[T any] struct {
	value   T
	fetched time.Time
}

// NewSpotifyClient returns a client issuing requests through httpClient,
// which is expected to attach the user's OAuth token (see oauth2.NewClient).
func NewSpotifyClient(httpClient *http.Client) *SpotifyClient {
	c := spotify.NewClient(httpClient)
	return newClient(&c)
}

func newClient(api webAPI) *SpotifyClient {
	return &SpotifyClient{
		client:  api,
		Country: "US",
		ByWord:  " by ",
		now:     time.Now,
	}
}

// splitBy splits "title by artist" at the last separator.
func (sc *SpotifyClient) splitBy(q string) (title, artist string, ok bool) {
	by := sc.ByWord
	if by == "" {
		return q, "", false
	}
	i := strings.LastIndex(strings.ToLower(q), by)
	if i <= 0 || i+len(by) >= len(q) {
		return q, "", false
	}
	return strings.TrimSpace(q[:i]), strings.TrimSpace(q[i+len(by):]), true
}

// Devices lists the user's Spotify Connect devices.
func (sc *SpotifyClient) Devices(ctx context.Context) ([]spotify.PlayerDevice, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if len(sc.devices.value) > 0 && sc.now().Sub(sc.devices.fetched) < DeviceTTL {
		return sc.devices.value, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	devs, err := sc.client.PlayerDevices()
	if err != nil {
		return nil, err
	}
	sc.devices = memo[[]spotify.PlayerDevice]{value: devs, fetched: sc.now()}
	return devs, nil
}

// Playlists returns the user's playlists keyed by lower case name.
func (sc *SpotifyClient) Playlists(ctx context.Context) (map[string]spotify.SimplePlaylist, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if len(sc.playlists.value) > 0 && sc.now().Sub(sc.playlists.fetched) < PlaylistTTL {
		return sc.playlists.value, nil
	}
	out := make(map[string]spotify.SimplePlaylist)
	limit, offset := 50, 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := sc.client.CurrentUsersPlaylistsOpt(&spotify.Options{Limit: &limit, Offset: &offset})
		if err != nil {
			return nil, err
		}
		for _, p := range page.Playlists {
			out[strings.ToLower(p.Name)] = p
		}
		offset += len(page.Playlists)
		if page.Next == "" || len(page.Playlists) == 0 {
			break
		}
	}
	sc.playlists = memo[map[string]spotify.SimplePlaylist]{value: out, fetched: sc.now()}
	return out, nil
}

// SavedTracks returns every track in the user's library.
func (sc *SpotifyClient) SavedTracks(ctx context.Context) ([]spotify.FullTrack, error) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	if len(sc.saved.value) > 0 && sc.now().Sub(sc.saved.fetched) < SavedTracksTTL {
		return sc.saved.value, nil
	}
	var tracks []spotify.FullTrack
	limit, offset := savedTracksPage, 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page, err := sc.client.CurrentUsersTracksOpt(&spotify.Options{Limit: &limit, Offset: &offset})
		if err != nil {
			return nil, err
		}
		for _, t := range page.Tracks {
			tracks = append(tracks, t.FullTrack)
		}
		offset += savedTracksPage
		if page.Next == "" {
			break
		}
	}
	sc.saved = memo[[]spotify.FullTrack]{value: tracks, fetched: sc.now()}
	return tracks, nil
}

// playlistNames returns the cached playlist keys in a stable order.
func playlistNames(pls map[string]spotify.SimplePlaylist) []string {
	names := make([]string, 0, len(pls))
	for k := range pls {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// TracksFromArtist returns the artist's top tracks.
func (sc *SpotifyClient) TracksFromArtist(ctx context.Context, id spotify.ID) ([]spotify.FullTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return sc.client.GetArtistsTopTracks(id, sc.Country)
}

// TracksFromAlbum returns the tracks of an album in album order.
func (sc *SpotifyClient) TracksFromAlbum(ctx context.Context, id spotify.ID) ([]spotify.SimpleTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := sc.client.GetAlbumTracks(id)
	if err != nil {
		return nil, err
	}
	return page.Tracks, nil
}

// TracksFromPlaylist returns the tracks of a playlist. Entries that are not
// tracks (removed or local items) are skipped.
func (sc *SpotifyClient) TracksFromPlaylist(ctx context.Context, id spotify.ID) ([]spotify.FullTrack, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, err := sc.client.GetPlaylistTracks(id)
	if err != nil {
		return nil, err
	}
	tracks := make([]spotify.FullTrack, 0, len(page.Tracks))
	for _, t := range page.Tracks {
		if t.Track.URI == "" {
			continue
		}
		tracks = append(tracks, t.Track)
	}
	return tracks, nil
}

// Ping performs a cheap authorized request and returns the user's id.
func (sc *SpotifyClient) Ping(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	u, err := sc.client.CurrentUser()
	if err != nil {
		return "", err
	}
	return u.ID, nil
}
