// Package phone holds the domestic phone-number matching rules used to tie
// inbound calls to gyms and clients.
//
// An 11-digit subscriber number may be written with a leading 7 (country
// code) or 8 (trunk prefix); both forms identify the same line.
package phone

import "strings"

const domesticLen = 11

// Normalize trims surrounding whitespace. Numbers are otherwise stored and
// compared exactly as the provider sent them.
func Normalize(s string) string {
	return strings.TrimSpace(s)
}

// Swap78 returns the number with its leading 7 and 8 exchanged.
// Anything that is not an 11-digit number starting with 7 or 8 is returned unchanged.
func Swap78(p string) string {
	if len(p) != domesticLen {
		return p
	}
	switch p[0] {
	case '7':
		return "8" + p[1:]
	case '8':
		return "7" + p[1:]
	default:
		return p
	}
}

// Variants returns every stored form that should match p: p itself and,
// for 11-digit 7/8 numbers, the swapped form. Empty input yields nil.
func Variants(p string) []string {
	p = Normalize(p)
	if p == "" {
		return nil
	}
	if s := Swap78(p); s != p {
		return []string{p, s}
	}
	return []string{p}
}

// Match reports whether stored and incoming identify the same line.
func Match(stored, incoming string) bool {
	stored = Normalize(stored)
	for _, v := range Variants(incoming) {
		if v == stored {
			return true
		}
	}
	return false
}
