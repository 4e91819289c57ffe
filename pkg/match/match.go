// Package match scores how well a catalogue name answers a spoken query.
// Voice transcriptions are noisy and catalogue titles carry decorations such
// as "(Remastered 2009)", so every search result is ranked with the fuzzy
// helpers below before it is offered to the playback plugin. Scores are
// floats in [0,1] unless the function name says otherwise.
package match

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/hbollon/go-edlib"
)

// titleSuffix matches a trailing parenthesised note or a " - Live" style
// suffix.
var titleSuffix = regexp.MustCompile(`(\(.+\)|-.+)$`)

// Similarity returns the Damerau-Levenshtein similarity of a and b ignoring
// case.
func Similarity(a, b string) float64 {
	return similarity(strings.ToLower(a), strings.ToLower(b), edlib.DamerauLevenshtein)
}

func similarity(a, b string, algo edlib.Algorithm) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}
	s, err := edlib.StringsSimilarity(a, b, algo)
	if err != nil {
		return 0
	}
	return float64(s)
}

// BestConfidence compares a title with the query both as is and with any
// trailing decoration removed, returning the better score on a 0-100 scale.
func BestConfidence(title, query string) int {
	best := strings.ToLower(title)
	stripped := strings.TrimSpace(titleSuffix.ReplaceAllString(best, ""))
	q := strings.ToLower(query)
	score := similarity(best, q, edlib.DamerauLevenshtein)
	if s := similarity(stripped, q, edlib.DamerauLevenshtein); s > score {
		score = s
	}
	return int(score * 100)
}

// tokens lower cases s, replaces punctuation with spaces and returns the
// distinct words in sorted order.
func tokens(s string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	seen := make(map[string]struct{})
	var out []string
	for _, f := range strings.Fields(cleaned) {
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// indelRatio is the normalized insertion/deletion similarity
// 2*LCS/(len(a)+len(b)).
func indelRatio(a, b string) float64 {
	if a == b {
		return 1
	}
	n := utf8.RuneCountInString(a) + utf8.RuneCountInString(b)
	if n == 0 {
		return 0
	}
	return 2 * float64(edlib.LCS(a, b)) / float64(n)
}

// TokenSetRatio compares the word sets of a and b. Shared words count fully
// so "heavy metal" scores 1 against "heavy metal classics". Otherwise the
// shared words, each side's full sorted set and the two sets are compared
// pairwise with indelRatio and the best score wins.
func TokenSetRatio(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	inB := make(map[string]bool, len(tb))
	for _, t := range tb {
		inB[t] = true
	}
	var sect, onlyA, onlyB []string
	for _, t := range ta {
		if inB[t] {
			sect = append(sect, t)
			delete(inB, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	for _, t := range tb {
		if inB[t] {
			onlyB = append(onlyB, t)
		}
	}
	if len(sect) > 0 && (len(onlyA) == 0 || len(onlyB) == 0) {
		return 1
	}
	s := strings.Join(sect, " ")
	combinedA := strings.TrimSpace(s + " " + strings.Join(onlyA, " "))
	combinedB := strings.TrimSpace(s + " " + strings.Join(onlyB, " "))
	best := indelRatio(combinedA, combinedB)
	if s != "" {
		if r := indelRatio(s, combinedA); r > best {
			best = r
		}
		if r := indelRatio(s, combinedB); r > best {
			best = r
		}
	}
	return best
}

// MatchOne returns the choice closest to query by TokenSetRatio together with
// its score. The first choice wins ties. An empty choice list yields ("", 0).
func MatchOne(query string, choices []string) (string, float64) {
	var (
		key  string
		best float64
	)
	for _, c := range choices {
		if s := TokenSetRatio(query, c); s > best {
			key, best = c, s
		}
	}
	return key, best
}

// Clamp limits a confidence to the 0-100 range used by the playback plugin.
func Clamp(score int) int {
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}
