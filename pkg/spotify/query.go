package spotify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zmb3/spotify"
	log "github.com/sirupsen/logrus"

	"Spotify-Skill-Go/pkg/match"
	"Spotify-Skill-Go/pkg/metrics"
)

// Kind names what a Match refers to.
type Kind string

const (
	KindArtist      Kind = "artist"
	KindAlbum       Kind = "album"
	KindTrack       Kind = "track"
	KindPlaylist    Kind = "playlist"
	KindSavedTracks Kind = "saved_tracks"
	KindContinue    Kind = "continue"
)

// Thresholds used by GenericQuery and the playlist matchers.
const (
	DirectResponseConfidence = 80
	MatchConfidence          = 50
	PlaylistConfidence       = 70

	// albumArtistBonus is added when an album was searched as "X by Y".
	albumArtistBonus = 10
	// trackTieWindow keeps tracks scoring within this many points of the
	// best title match when choosing by popularity.
	trackTieWindow = 10
)

// Match is the best result of a query.
type Match struct {
	Confidence int
	Kind       Kind
	Name       string
	URI        spotify.URI

	// Exactly one of these is set, depending on Kind.
	Artist   *spotify.FullArtist
	Album    *spotify.SimpleAlbum
	Track    *spotify.FullTrack
	Playlist *spotify.SimplePlaylist

	// Artists and Albums hold every search result for artist and album
	// queries. They all share Confidence.
	Artists []spotify.FullArtist
	Albums  []spotify.SimpleAlbum
}

// search runs a catalogue search and records its outcome.
func (sc *SpotifyClient) search(ctx context.Context, q string, t spotify.SearchType, kind Kind) (*spotify.SearchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	res, err := sc.client.Search(q, t)
	if err != nil {
		metrics.Searches.WithLabelValues(string(kind), metrics.OutcomeError).Inc()
		return nil, fmt.Errorf("search %s %q: %w", kind, q, err)
	}
	return res, nil
}

func observe(kind Kind, m *Match, err error) {
	switch {
	case err == nil:
		metrics.Searches.WithLabelValues(string(kind), metrics.OutcomeHit).Inc()
	case errors.Is(err, ErrNothingFound):
		metrics.Searches.WithLabelValues(string(kind), metrics.OutcomeMiss).Inc()
	}
	if m != nil {
		log.WithFields(log.Fields{"kind": kind, "name": m.Name, "confidence": m.Confidence}).Debug("spotify match")
	}
}

// QueryArtist finds the artist best matching q.
func (sc *SpotifyClient) QueryArtist(ctx context.Context, q string) (m *Match, err error) {
	defer func() { observe(KindArtist, m, err) }()
	res, err := sc.search(ctx, q, spotify.SearchTypeArtist, KindArtist)
	if err != nil {
		return nil, err
	}
	if res.Artists == nil || len(res.Artists.Artists) == 0 {
		return nil, ErrNothingFound
	}
	best := res.Artists.Artists[0]
	return &Match{
		Confidence: match.Clamp(int(match.Similarity(best.Name, q) * 100)),
		Kind:       KindArtist,
		Name:       best.Name,
		URI:        best.URI,
		Artist:     &best,
		Artists:    res.Artists.Artists,
	}, nil
}

// QueryAlbum finds the album best matching q. "X by Y" restricts the search
// to albums by artist Y and earns a bonus.
func (sc *SpotifyClient) QueryAlbum(ctx context.Context, q string) (m *Match, err error) {
	defer func() { observe(KindAlbum, m, err) }()
	album, bonus, query := q, 0, q
	if title, artist, ok := sc.splitBy(q); ok {
		album = title
		query = fmt.Sprintf("*%s* artist:%s", title, artist)
		bonus = albumArtistBonus
	}
	res, err := sc.search(ctx, query, spotify.SearchTypeAlbum, KindAlbum)
	if err != nil {
		return nil, err
	}
	if res.Albums == nil || len(res.Albums.Albums) == 0 {
		return nil, ErrNothingFound
	}
	best := res.Albums.Albums[0]
	return &Match{
		Confidence: match.Clamp(match.BestConfidence(best.Name, album) + bonus),
		Kind:       KindAlbum,
		Name:       best.Name,
		URI:        best.URI,
		Album:      &best,
		Albums:     res.Albums.Albums,
	}, nil
}

// QuerySong finds the track best matching q. Among tracks whose titles match
// about equally well the most popular one wins, and a bonus is added when the
// search names the track's artist.
func (sc *SpotifyClient) QuerySong(ctx context.Context, q string) (m *Match, err error) {
	defer func() { observe(KindTrack, m, err) }()
	song, query := q, q
	if title, artist, ok := sc.splitBy(q); ok {
		song = title
		query = fmt.Sprintf("*%s* artist:%s", title, artist)
	}
	res, err := sc.search(ctx, query, spotify.SearchTypeTrack, KindTrack)
	if err != nil {
		return nil, err
	}
	if res.Tracks == nil || len(res.Tracks.Tracks) == 0 {
		return nil, ErrNothingFound
	}
	tracks := res.Tracks.Tracks
	scores := make([]int, len(tracks))
	top := 0
	for i, t := range tracks {
		scores[i] = match.BestConfidence(t.Name, song)
		if scores[i] > top {
			top = scores[i]
		}
	}
	winner := -1
	for i, t := range tracks {
		if scores[i] < top-trackTieWindow {
			continue
		}
		if winner < 0 || t.Popularity > tracks[winner].Popularity {
			winner = i
		}
	}
	best := tracks[winner]
	bonus := 0
	if len(best.Artists) > 0 {
		bonus = int(match.TokenSetRatio(query, best.Artists[0].Name) * 100)
	}
	return &Match{
		Confidence: match.Clamp(scores[winner] + bonus),
		Kind:       KindTrack,
		Name:       best.Name,
		URI:        best.URI,
		Track:      &best,
	}, nil
}

// BestUserPlaylist matches q against the names of the user's playlists.
func (sc *SpotifyClient) BestUserPlaylist(ctx context.Context, q string) (m *Match, err error) {
	defer func() { observe(KindPlaylist, m, err) }()
	pls, err := sc.Playlists(ctx)
	if err != nil {
		return nil, fmt.Errorf("list playlists: %w", err)
	}
	if len(pls) == 0 {
		return nil, ErrNothingFound
	}
	key, score := match.MatchOne(strings.ToLower(q), playlistNames(pls))
	conf := int(score * 100)
	if conf <= PlaylistConfidence {
		return nil, ErrNothingFound
	}
	p := pls[key]
	return &Match{Confidence: conf, Kind: KindPlaylist, Name: p.Name, URI: p.URI, Playlist: &p}, nil
}

// BestPublicPlaylist searches public playlists for q.
func (sc *SpotifyClient) BestPublicPlaylist(ctx context.Context, q string) (m *Match, err error) {
	defer func() { observe(KindPlaylist, m, err) }()
	res, err := sc.search(ctx, q, spotify.SearchTypePlaylist, KindPlaylist)
	if err != nil {
		return nil, err
	}
	if res.Playlists == nil || len(res.Playlists.Playlists) == 0 {
		return nil, ErrNothingFound
	}
	best := res.Playlists.Playlists[0]
	conf := int(match.Similarity(best.Name, q) * 100)
	if conf <= PlaylistConfidence {
		return nil, ErrNothingFound
	}
	return &Match{Confidence: conf, Kind: KindPlaylist, Name: best.Name, URI: best.URI, Playlist: &best}, nil
}

// QueryPlaylist prefers the user's own playlists and falls back to public
// ones.
func (sc *SpotifyClient) QueryPlaylist(ctx context.Context, q string) (*Match, error) {
	m, err := sc.BestUserPlaylist(ctx, q)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, ErrNothingFound) {
		return nil, err
	}
	return sc.BestPublicPlaylist(ctx, q)
}

// GenericQuery interprets q as a user playlist, an artist, a track, an album
// and a public playlist in that order. A match above
// DirectResponseConfidence is returned at once; otherwise the best match
// above MatchConfidence wins, the earlier one on ties.
func (sc *SpotifyClient) GenericQuery(ctx context.Context, q string) (*Match, error) {
	log.WithField("phrase", q).Debug("generic spotify query")
	queries := []func(context.Context, string) (*Match, error){
		sc.BestUserPlaylist,
		sc.QueryArtist,
		sc.QuerySong,
		sc.QueryAlbum,
		sc.BestPublicPlaylist,
	}
	var best *Match
	for _, query := range queries {
		m, err := query(ctx, q)
		if errors.Is(err, ErrNothingFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if m.Confidence > DirectResponseConfidence {
			return m, nil
		}
		if m.Confidence > MatchConfidence && (best == nil || m.Confidence > best.Confidence) {
			best = m
		}
	}
	if best == nil {
		return nil, ErrNothingFound
	}
	return best, nil
}
