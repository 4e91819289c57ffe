// Package intent turns a transcribed utterance into a typed request. The
// grammar is a small per-language vocabulary of regular expressions: one for
// the service keyword, one for an "on spotify" suffix and an ordered list of
// patterns for specific requests such as "the album X" or "my liked songs".
// Anything that matches no pattern is a generic request and is left to the
// catalogue cascade.
package intent

import (
	"regexp"
	"strings"
)

// Kind is the type of request an utterance expresses.
type Kind string

const (
	Continue    Kind = "continue"
	SavedTracks Kind = "saved_tracks"
	Playlist    Kind = "playlist"
	Album       Kind = "album"
	Artist      Kind = "artist"
	Song        Kind = "song"
	Generic     Kind = "generic"
)

// Intent is a parsed utterance.
type Intent struct {
	Kind Kind
	// Query is the part of the phrase naming what to play. Empty for
	// Continue and SavedTracks.
	Query string
	// Spotify reports whether the service was named explicitly.
	Spotify bool
}

// Pattern maps a regular expression to a request kind. A named group
// "query" captures what to play.
type Pattern struct {
	Kind Kind
	Re   *regexp.Regexp
}

// Vocabulary holds the phrases of one language.
type Vocabulary struct {
	Keyword   *regexp.Regexp
	OnKeyword *regexp.Regexp
	Play      *regexp.Regexp
	// By separates a title from an artist, including surrounding spaces.
	By       string
	Patterns []Pattern
}

// English is the built-in vocabulary.
func English() *Vocabulary {
	p := func(k Kind, expr string) Pattern {
		return Pattern{Kind: k, Re: regexp.MustCompile(`(?i)` + expr)}
	}
	return &Vocabulary{
		Keyword:   regexp.MustCompile(`(?i)\bspotify\b`),
		OnKeyword: regexp.MustCompile(`(?i)\s*\b(?:on|from|using|with|in|via)\s+spotify\b`),
		Play:      regexp.MustCompile(`(?i)^\s*(?:please\s+)?(?:play|put on|start|listen to)\s+`),
		By:        " by ",
		Patterns: []Pattern{
			p(SavedTracks, `^(?:my|our)\s+(?:saved|liked|favou?rite)\s+(?:songs|tracks|music)$`),
			p(SavedTracks, `^(?:songs|tracks|music)\s+(?:i|we)\s+(?:saved|liked)$`),
			p(Playlist, `^(?:the\s+|my\s+)?playlist\s+(?:called\s+|named\s+)?(?P<query>.+)$`),
			p(Playlist, `^(?:the\s+|my\s+)?(?P<query>.+?)\s+playlist$`),
			p(Album, `^(?:the\s+)?album\s+(?:called\s+|named\s+)?(?P<query>.+)$`),
			p(Album, `^(?:the\s+)?(?P<query>.+?)\s+album$`),
			p(Artist, `^(?:the\s+)?(?:artist|band)\s+(?P<query>.+)$`),
			p(Artist, `^(?:something|anything|music|songs)\s+(?:by|from)\s+(?P<query>.+)$`),
			p(Song, `^(?:the\s+)?(?:song|track)\s+(?:called\s+|named\s+)?(?P<query>.+)$`),
		},
	}
}

// HasKeyword reports whether phrase names the service.
func (v *Vocabulary) HasKeyword(phrase string) bool {
	return v.Keyword.MatchString(phrase)
}

// StripKeyword removes every mention of the service, including an "on
// spotify" suffix, and normalises whitespace.
func (v *Vocabulary) StripKeyword(phrase string) string {
	phrase = v.OnKeyword.ReplaceAllString(phrase, " ")
	phrase = v.Keyword.ReplaceAllString(phrase, " ")
	return strings.Join(strings.Fields(phrase), " ")
}

// Normalize drops a leading "play" and a trailing "on spotify".
func (v *Vocabulary) Normalize(phrase string) string {
	phrase = v.Play.ReplaceAllString(phrase, "")
	phrase = v.OnKeyword.ReplaceAllString(phrase, " ")
	return strings.Join(strings.Fields(phrase), " ")
}

// Parse classifies phrase. A phrase consisting of the keyword alone asks to
// continue playback.
func (v *Vocabulary) Parse(phrase string) Intent {
	spotify := v.HasKeyword(phrase)
	phrase = v.Normalize(phrase)

	if strings.EqualFold(phrase, "spotify") {
		return Intent{Kind: Continue, Spotify: true}
	}
	for _, p := range v.Patterns {
		m := p.Re.FindStringSubmatch(phrase)
		if m == nil {
			continue
		}
		in := Intent{Kind: p.Kind, Spotify: spotify}
		if i := p.Re.SubexpIndex("query"); i >= 0 {
			in.Query = strings.TrimSpace(m[i])
		}
		return in
	}
	return Intent{Kind: Generic, Query: phrase, Spotify: spotify}
}
