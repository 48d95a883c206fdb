// Package emailaddr splits and coarsely validates email address strings.
package emailaddr

import (
	"regexp"
	"strings"
)

// coarseShape matches spec.md §3's "non-space-and-no-at +  @  non-space-and-no-at + . non-space-and-no-at +".
var coarseShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Address is an input string split on its last '@' into local-part and domain.
type Address struct {
	Raw    string
	Local  string
	Domain string
}

// Parse splits raw on the last '@' and reports whether it matches the coarse
// shape required by spec.md §3. On failure Address is still populated on a
// best-effort basis so callers can still report Domain/Account in errors.
func Parse(raw string) (Address, bool) {
	raw = strings.TrimSpace(raw)
	ok := coarseShape.MatchString(raw)

	at := strings.LastIndex(raw, "@")
	if at < 0 {
		return Address{Raw: raw}, false
	}
	return Address{
		Raw:    raw,
		Local:  raw[:at],
		Domain: strings.ToLower(raw[at+1:]),
	}, ok
}
