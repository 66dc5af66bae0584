// Package textindex builds the denormalized token sets that make
// equality-indexed substring and prefix search possible without a full-text
// engine. Field values are canonicalized with Normalize, expanded into
// tokens with Tokenize, and stored alongside the record; a search query is
// canonicalized the same way and matched against the stored set with a plain
// equality filter.
package textindex

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripAccents decomposes accented characters (NFKD) and removes the
// combining marks plus anything left outside ASCII.
var stripAccents = transform.Chain(
	norm.NFKD,
	runes.Remove(runes.In(unicode.Mn)),
	runes.Remove(runes.Predicate(func(r rune) bool { return r > unicode.MaxASCII })),
)

// Normalize canonicalizes text for indexing and querying: accents are
// reduced to their base Latin letters ("ã" -> "a"), non-ASCII runes are
// dropped, and the result is lower-cased. It is total and idempotent; both
// the indexed values and the incoming queries must pass through it or
// matching silently fails.
func Normalize(text string) string {
	out, _, err := transform.String(stripAccents, text)
	if err != nil {
		out = text
	}
	return strings.ToLower(out)
}

// OnlyDigits returns the decimal digits of value in their original order,
// discarding every other character. Loosely formatted record numbers like
// "12345/0" reduce to the canonical "123450".
func OnlyDigits(value string) string {
	var b strings.Builder
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteByte(byte(r))
		}
	}
	return b.String()
}

// defaultWindow is the spread applied when only one bound of the token
// length window is given, and the default minimum when neither is.
const defaultWindow = 4

// maxCombineWords bounds the word-combination stage; the subset expansion
// is exponential in the word count.
const maxCombineWords = 10

// Options control token generation. Zero values for Min and Max select the
// default window: a missing bound is derived from the given one by
// defaultWindow, and when both are missing Min=4, Max=8. Both bounds are
// clamped to at least 1.
type Options struct {
	Min           int
	Max           int
	OnlyWordStart bool // restrict substring extraction starts to word starts
	CombineWords  bool // emit every order-preserving word combination
}

func (o Options) window() (int, int) {
	min, max := o.Min, o.Max
	switch {
	case min > 0 && max == 0:
		max = min + defaultWindow
	case max > 0 && min == 0:
		min = max - defaultWindow
	case min == 0 && max == 0:
		min = defaultWindow
		max = min + defaultWindow
	}
	if min < 1 {
		min = 1
	}
	if max < 1 {
		max = 1
	}
	return min, max
}

// Set is a deduplicated token collection.
type Set map[string]struct{}

// Add inserts a token; empty tokens are ignored.
func (s Set) Add(token string) {
	if token == "" {
		return
	}
	s[token] = struct{}{}
}

// Contains reports membership.
func (s Set) Contains(token string) bool {
	_, ok := s[token]
	return ok
}

// Slice returns the tokens in unspecified order.
func (s Set) Slice() []string {
	out := make([]string, 0, len(s))
	for t := range s {
		out = append(out, t)
	}
	return out
}

// Tokenize expands a canonical phrase into its searchable token set.
//
// The phrase is split on whitespace. With CombineWords set, every non-empty
// order-preserving subset of the words, joined by single spaces, becomes a
// token; no length filter is applied at this stage — the sliding-window
// stage below governs token lengths, and callers add the full canonical
// phrase themselves so an exact query always matches. Without CombineWords
// each word is emitted as-is.
//
// Then, for every valid extraction start (word starts only when
// OnlyWordStart is set, every offset within each word otherwise), every
// contiguous substring of the remaining phrase whose length lies in
// [Min, Max] — capped by the remaining length — is emitted, provided it is
// at least Min long after trimming.
//
// The phrase is expected to be ASCII, i.e. already passed through Normalize;
// indexes are byte offsets.
func Tokenize(phrase string, opts Options) Set {
	min, max := opts.window()
	tokens := make(Set)
	words := strings.Fields(phrase)

	if opts.CombineWords {
		for _, combo := range wordCombinations(words) {
			tokens.Add(combo)
		}
	} else {
		for _, w := range words {
			tokens.Add(w)
		}
	}

	for n, w := range words {
		remain := strings.Join(words[n:], " ")
		length := len(remain)
		starts := 1
		if !opts.OnlyWordStart {
			starts = len(w)
		}
		for i := 0; i < starts; i++ {
			first := i + min
			last := i + max
			if last > length {
				last = length
			}
			if first > length {
				first = length
			}
			for j := first; j <= last; j++ {
				token := strings.TrimSpace(remain[i:j])
				if len(token) >= min {
					tokens.Add(token)
				}
			}
		}
	}

	return tokens
}

// CodeTokens indexes an entity code under both its normalized written form
// and its digits-only form, with the full value of each always present so
// an exact query matches regardless of window bounds.
func CodeTokens(code string) Set {
	norm := Normalize(code)
	tokens := Tokenize(norm, Options{})
	tokens.Add(norm)
	if digits := OnlyDigits(code); digits != "" && digits != norm {
		for t := range Tokenize(digits, Options{}) {
			tokens.Add(t)
		}
		tokens.Add(digits)
	}
	return tokens
}

// wordCombinations returns every non-empty order-preserving subset of words
// joined by single spaces. Inputs beyond maxCombineWords are truncated.
func wordCombinations(words []string) []string {
	if len(words) > maxCombineWords {
		words = words[:maxCombineWords]
	}
	n := len(words)
	out := make([]string, 0, 1<<n)
	for mask := 1; mask < 1<<n; mask++ {
		var parts []string
		for b := 0; b < n; b++ {
			if mask&(1<<b) != 0 {
				parts = append(parts, words[b])
			}
		}
		out = append(out, strings.Join(parts, " "))
	}
	return out
}
