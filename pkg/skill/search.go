package skill

import (
	"context"
	"errors"

	libspotify "github.com/zmb3/spotify"

	"Spotify-Skill-Go/pkg/match"
	"Spotify-Skill-Go/pkg/music"
)

// Scores added to every result of a search.
const (
	keywordScore   = 30
	musicTypeScore = 15
	// maxEntries caps the tracks of a generated playlist.
	maxEntries = 25
)

// Search answers a playback plugin query. It returns nothing when none of
// the configured players is online.
func (s *Skill) Search(ctx context.Context, phrase string, mediaType music.MediaType) ([]music.Result, error) {
	if !s.HasConfiguredPlayers(ctx) {
		return nil, nil
	}
	base := 0
	if s.Vocab.HasKeyword(phrase) {
		base = keywordScore
	}
	if mediaType == music.MediaTypeMusic {
		base += musicTypeScore
	}
	phrase = s.Vocab.StripKeyword(phrase)
	if phrase == "" {
		return nil, nil
	}

	agg := music.Aggregator{Searchers: []music.Searcher{
		s.boosted("artists", base, s.searchArtists),
		s.boosted("albums", base, s.searchAlbums),
		s.boosted("tracks", base, s.searchTracks),
		s.boosted("playlists", base, s.searchPlaylists),
	}}
	return agg.Search(ctx, phrase)
}

// boosted wraps a search so each result gets base added to its confidence.
// A search that found nothing yields an empty result rather than an error.
func (s *Skill) boosted(name string, base int, fn func(context.Context, string) ([]music.Result, error)) music.Searcher {
	return music.SearcherFunc{Label: name, Fn: func(ctx context.Context, phrase string) ([]music.Result, error) {
		res, err := fn(ctx, phrase)
		if errors.Is(err, ErrNothingFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
		for _, r := range res {
			r.SetConfidence(match.Clamp(r.Confidence() + base))
		}
		return res, nil
	}}
}

// images returns the smallest and the largest image. The Web API lists
// images widest first.
func images(imgs []libspotify.Image) (small, large string) {
	if len(imgs) == 0 {
		return "", ""
	}
	return imgs[len(imgs)-1].URL, imgs[0].URL
}

func (s *Skill) entry(title string, uri libspotify.URI, artist string, durationMS, conf int, small, large string) music.MediaEntry {
	return music.MediaEntry{
		Title:           title,
		URI:             string(uri),
		Artist:          artist,
		Image:           small,
		BgImage:         large,
		Length:          float64(durationMS) / 1000,
		MatchConfidence: match.Clamp(conf),
		MediaType:       music.MediaTypeMusic,
		Playback:        music.PlaybackAudioService,
		SkillID:         s.ID,
		SkillIcon:       s.Icon,
	}
}

func (s *Skill) playlist(title string, conf int, small, large string) *music.Playlist {
	return &music.Playlist{
		Title:           title,
		Image:           small,
		BgImage:         large,
		MatchConfidence: match.Clamp(conf),
		MediaType:       music.MediaTypeMusic,
		Playback:        music.PlaybackAudioService,
		SkillID:         s.ID,
		SkillIcon:       s.Icon,
	}
}

func (s *Skill) collections(n int) int {
	if s.MaxCollections > 0 && n > s.MaxCollections {
		return s.MaxCollections
	}
	return n
}

// searchArtists turns each matching artist into a playlist of top tracks.
func (s *Skill) searchArtists(ctx context.Context, q string) ([]music.Result, error) {
	m, err := s.Catalog.QueryArtist(ctx, q)
	if err != nil {
		return nil, err
	}
	var out []music.Result
	for _, a := range m.Artists[:s.collections(len(m.Artists))] {
		tracks, err := s.Catalog.TracksFromArtist(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		small, large := images(a.Images)
		pl := s.playlist(a.Name+" (Featured Tracks)", m.Confidence, small, large)
		for _, t := range tracks {
			if len(pl.Entries) >= maxEntries {
				break
			}
			pl.Entries = append(pl.Entries, s.entry(t.Name, t.URI, a.Name, t.Duration, m.Confidence, small, large))
		}
		if len(pl.Entries) > 0 {
			out = append(out, music.Result{Playlist: pl})
		}
	}
	return out, nil
}

// searchAlbums turns each matching album into a playlist of its tracks.
func (s *Skill) searchAlbums(ctx context.Context, q string) ([]music.Result, error) {
	m, err := s.Catalog.QueryAlbum(ctx, q)
	if err != nil {
		return nil, err
	}
	var out []music.Result
	for _, a := range m.Albums[:s.collections(len(m.Albums))] {
		tracks, err := s.Catalog.TracksFromAlbum(ctx, a.ID)
		if err != nil {
			return nil, err
		}
		small, large := images(a.Images)
		pl := s.playlist(a.Name+" (Full Album)", m.Confidence, small, large)
		for _, t := range tracks {
			if len(pl.Entries) >= maxEntries {
				break
			}
			pl.Entries = append(pl.Entries, s.entry(t.Name, t.URI, firstArtist(t.Artists), t.Duration, m.Confidence, small, large))
		}
		if len(pl.Entries) > 0 {
			out = append(out, music.Result{Playlist: pl})
		}
	}
	return out, nil
}

// searchTracks returns the best matching track.
func (s *Skill) searchTracks(ctx context.Context, q string) ([]music.Result, error) {
	m, err := s.Catalog.QuerySong(ctx, q)
	if err != nil {
		return nil, err
	}
	t := m.Track
	small, large := images(t.Album.Images)
	e := s.entry(t.Name, t.URI, firstArtist(t.Artists), t.Duration, m.Confidence, small, large)
	return []music.Result{{Entry: &e}}, nil
}

// searchPlaylists returns the user's playlist best matching q.
func (s *Skill) searchPlaylists(ctx context.Context, q string) ([]music.Result, error) {
	m, err := s.Catalog.BestUserPlaylist(ctx, q)
	if err != nil {
		return nil, err
	}
	p := m.Playlist
	tracks, err := s.Catalog.TracksFromPlaylist(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	small, large := images(p.Images)
	pl := s.playlist(p.Name, m.Confidence, small, large)
	for _, t := range tracks {
		if len(pl.Entries) >= maxEntries {
			break
		}
		pl.Entries = append(pl.Entries, s.entry(t.Name, t.URI, firstArtist(t.Artists), t.Duration, m.Confidence, small, large))
	}
	if len(pl.Entries) == 0 {
		return nil, nil
	}
	return []music.Result{{Playlist: pl}}, nil
}

func firstArtist(as []libspotify.SimpleArtist) string {
	if len(as) == 0 {
		return ""
	}
	return as[0].Name
}
