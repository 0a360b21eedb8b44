package domain

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"
)

// conjunctionRe splits a phrase into place tokens on "and", "or", and commas.
var conjunctionRe = regexp.MustCompile(`(?i)\s+and\s+|\s+or\s+|,\s*`)

// ParsedLocation is the decomposition of one location phrase. Discarded once
// the phrase is resolved.
type ParsedLocation struct {
	Direction Direction
	Tokens    []string
}

// ParseLocation decomposes a location phrase into an optional directional
// qualifier and its place-name tokens. Pure; no side effects.
//
//	"Central Sindh and Balochistan" → (Central, [Sindh Balochistan])
//	"North-Eastern KPK"             → (North-Eastern, [KPK])
//	"Islamabad"                     → (none, [Islamabad])
//
// Tokens that merely resemble a direction word fall through as name text;
// a wrong grid filter is a worse failure than a fuzzy lookup.
func ParseLocation(input string) ParsedLocation {
	input = strings.TrimSpace(input)
	if input == "" {
		return ParsedLocation{}
	}

	for _, p := range directionPatterns {
		if !p.re.MatchString(input) {
			continue
		}
		rest := strings.TrimSpace(p.re.ReplaceAllString(input, ""))
		return ParsedLocation{Direction: p.dir, Tokens: splitPlaces(rest)}
	}

	return ParsedLocation{Tokens: splitPlaces(input)}
}

// ParseLocationStrict behaves like ParseLocation but rejects inputs whose
// leading token is nearly, yet not exactly, a direction word (edit distance
// 1 against the vocabulary), e.g. "Nothern Gilgit-Baltistan". Distance 2
// would flag real place names; "Chitral" is two edits from "central".
func ParseLocationStrict(input string) (ParsedLocation, error) {
	parsed := ParseLocation(input)
	if parsed.Direction != DirNone || len(parsed.Tokens) == 0 {
		return parsed, nil
	}

	first, _, _ := strings.Cut(strings.TrimSpace(input), " ")
	if token := strings.ToLower(first); directionLike(token) {
		return ParsedLocation{}, InvalidDirection(first)
	}
	return parsed, nil
}

// directionLike reports whether token is within edit distance 1 of a
// vocabulary word without being one.
func directionLike(token string) bool {
	if len(token) < 4 {
		return false
	}
	for _, word := range vocabulary {
		if token == word {
			return false
		}
	}
	for _, word := range vocabulary {
		if levenshtein.ComputeDistance(token, word) == 1 {
			return true
		}
	}
	return false
}

func splitPlaces(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	parts := conjunctionRe.Split(text, -1)
	tokens := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			tokens = append(tokens, p)
		}
	}
	return tokens
}
