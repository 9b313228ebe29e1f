package cards

import (
	"regexp"
	"strings"

	"carddash/pkg/models"
)

// setPattern lists the known set code prefixes. Order matters: at a given
// position the first alternative that matches wins. PR and PP carry no digits
// and only count when no letter touches them, so "Promo" is not a PR card.
var setPattern = regexp.MustCompile(`(?i)(BP\d{2}|SD\d{2}|(?:^|[^a-zA-Z])(PR|PP)(?:[^a-zA-Z]|$)|SP\d{2}|PZ\d{2}|CP\d{2}|BPX\d{2}|BP0\d|EXD\d{2}|UD\d{2})`)

// matchSet returns the set code found in s, or "".
func matchSet(s string) string {
	m := setPattern.FindStringSubmatch(s)
	switch {
	case m == nil:
		return ""
	case m[2] != "":
		return m[2]
	default:
		return m[1]
	}
}

// DeriveSet extracts the canonical set label of a card.
//
// The card number, section and bundle names are scanned in that order and
// the first set code found is returned upper-cased. Without a code the
// normalized section is used, upper-cased unless it is Unknown.
func DeriveSet(c models.Card) string {
	sources := [...]string{
		Normalize(c.Number, ""),
		Normalize(c.Section, ""),
		Normalize(c.DisplayCardBundleNames, ""),
	}
	for _, src := range sources {
		if src == "" {
			continue
		}
		if m := matchSet(src); m != "" {
			return strings.ToUpper(m)
		}
	}

	fallback := Key(c.Section)
	if fallback == Unknown {
		return Unknown
	}
	return strings.ToUpper(fallback)
}
