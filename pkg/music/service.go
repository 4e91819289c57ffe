// Package music defines the result model handed to the voice assistant's
// playback plugin (OCP). Entries carry a playable URI plus the metadata the
// plugin shows while streaming; playlists group entries under one title.
// The skill never plays anything itself, so these types are the whole of its
// output surface.
package music

import "context"

// MediaType tells the playback plugin what kind of media a result is.
type MediaType string

const (
	MediaTypeGeneric MediaType = "generic"
	MediaTypeMusic   MediaType = "music"
)

// PlaybackType tells the playback plugin which backend should stream a
// result. Spotify URIs are handed to an audio service.
type PlaybackType string

const (
	PlaybackAudio        PlaybackType = "audio"
	PlaybackAudioService PlaybackType = "audio_service"
)

// MediaEntry is a single playable item.
type MediaEntry struct {
	Title           string       `json:"title"`
	URI             string       `json:"uri"`
	Artist          string       `json:"artist,omitempty"`
	Image           string       `json:"image,omitempty"`
	BgImage         string       `json:"bg_image,omitempty"`
	Length          float64      `json:"length,omitempty"`
	MatchConfidence int          `json:"match_confidence"`
	MediaType       MediaType    `json:"media_type"`
	Playback        PlaybackType `json:"playback"`
	SkillID         string       `json:"skill_id"`
	SkillIcon       string       `json:"skill_icon,omitempty"`
}

// Playlist groups entries, for example the top tracks of an artist.
type Playlist struct {
	Title           string       `json:"title"`
	Image           string       `json:"image,omitempty"`
	BgImage         string       `json:"bg_image,omitempty"`
	MatchConfidence int          `json:"match_confidence"`
	MediaType       MediaType    `json:"media_type"`
	Playback        PlaybackType `json:"playback"`
	SkillID         string       `json:"skill_id"`
	SkillIcon       string       `json:"skill_icon,omitempty"`
	Entries         []MediaEntry `json:"playlist"`
}

// Result is either a single entry or a playlist. Exactly one of the two
// pointers is set.
type Result struct {
	Entry    *MediaEntry `json:"entry,omitempty"`
	Playlist *Playlist   `json:"playlist,omitempty"`
}

// URI identifies a result for de-duplication. Playlists are identified by
// their first entry since they have no URI of their own.
func (r Result) URI() string {
	switch {
	case r.Entry != nil:
		return r.Entry.URI
	case r.Playlist != nil:
		if len(r.Playlist.Entries) > 0 {
			return "playlist:" + r.Playlist.Title + ":" + r.Playlist.Entries[0].URI
		}
		return "playlist:" + r.Playlist.Title
	}
	return ""
}

// Confidence returns the match confidence of whichever value is set.
func (r Result) Confidence() int {
	switch {
	case r.Entry != nil:
		return r.Entry.MatchConfidence
	case r.Playlist != nil:
		return r.Playlist.MatchConfidence
	}
	return 0
}

// SetConfidence overwrites the confidence of the result and, for playlists,
// of every entry in it.
func (r Result) SetConfidence(c int) {
	switch {
	case r.Entry != nil:
		r.Entry.MatchConfidence = c
	case r.Playlist != nil:
		r.Playlist.MatchConfidence = c
		for i := range r.Playlist.Entries {
			r.Playlist.Entries[i].MatchConfidence = c
		}
	}
}

// Searcher produces results for a phrase. Each search kind (artists, albums,
// tracks, playlists) is its own Searcher so they can run side by side.
type Searcher interface {
	// Name identifies the searcher in logs and metrics.
	Name() string
	// Search returns results for phrase. An empty slice with a nil error
	// means nothing matched.
	Search(ctx context.Context, phrase string) ([]Result, error)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc struct {
	Label string
	Fn    func(ctx context.Context, phrase string) ([]Result, error)
}

// Name implements Searcher.
func (f SearcherFunc) Name() string { return f.Label }

// Search implements Searcher.
func (f SearcherFunc) Search(ctx context.Context, phrase string) ([]Result, error) {
	return f.Fn(ctx, phrase)
}
