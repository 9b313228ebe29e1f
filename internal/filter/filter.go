// Package filter selects the subset of a card collection matching the
// dashboard's active criteria.
package filter

import (
	"net/url"
	"strings"

	"carddash/internal/cards"
	"carddash/pkg/models"
)

// Criteria is the active filter. Empty fields are unconstrained.
type Criteria struct {
	Search  string `json:"q"`
	Rarity  string `json:"rarity"`
	Feature string `json:"feature"`
	Section string `json:"section"`
}

// FromQuery reads criteria from q, rarity, feature and section parameters.
func FromQuery(v url.Values) Criteria {
	return Criteria{
		Search:  v.Get("q"),
		Rarity:  v.Get("rarity"),
		Feature: v.Get("feature"),
		Section: v.Get("section"),
	}
}

// IsEmpty reports whether c constrains nothing.
func (c Criteria) IsEmpty() bool {
	return c.term() == "" && c.Rarity == "" && c.Feature == "" && c.Section == ""
}

// term is the search text as it is matched: trimmed and lower-cased.
func (c Criteria) term() string {
	return strings.ToLower(strings.TrimSpace(c.Search))
}

// Match reports whether card passes every criterion.
func (c Criteria) Match(card models.Card) bool {
	return c.matcher().match(card)
}

// Apply returns the cards passing c, in input order. The result never
// shares its backing array with all.
func Apply(all []models.Card, c Criteria) []models.Card {
	m := c.matcher()
	out := make([]models.Card, 0, len(all))
	for _, card := range all {
		if m.match(card) {
			out = append(out, card)
		}
	}
	return out
}

type matcher struct {
	term    string
	rarity  string
	feature string
	section string
}

func (c Criteria) matcher() matcher {
	return matcher{term: c.term(), rarity: c.Rarity, feature: c.Feature, section: c.Section}
}

func (m matcher) match(card models.Card) bool {
	if m.term != "" &&
		!strings.Contains(strings.ToLower(cards.Key(card.Name)), m.term) &&
		!strings.Contains(strings.ToLower(cards.Key(card.ParticipatingWorks)), m.term) {
		return false
	}
	if m.rarity != "" && cards.Key(card.Rarity) != m.rarity {
		return false
	}
	if m.feature != "" && cards.Key(card.Feature) != m.feature {
		return false
	}
	if m.section != "" && cards.DeriveSet(card) != m.section {
		return false
	}
	return true
}
