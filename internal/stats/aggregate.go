// Package stats reduces card collections into frequency tables and
// cross-tabulations.
package stats

import (
	"slices"

	"carddash/internal/cards"
	"carddash/pkg/models"
)

// Counts maps a bucket key to the number of cards in it.
type Counts map[string]int

// KeyFunc computes the bucket key of a card.
type KeyFunc func(models.Card) string

// Options narrows a filtered aggregation.
type Options struct {
	Filter      func(models.Card) bool // evaluated before normalization; nil keeps every card
	SkipUnknown bool                   // drop the Unknown bucket
	SkipValues  []string               // drop these buckets
}

// FieldKey returns a KeyFunc normalizing field f with the Unknown fallback.
func FieldKey(f models.Field) KeyFunc {
	return func(c models.Card) string { return cards.FieldKey(c, f) }
}

// AggregateBy counts every card under key(card).
func AggregateBy(all []models.Card, key KeyFunc) Counts {
	acc := make(Counts)
	for _, c := range all {
		acc[key(c)]++
	}
	return acc
}

// Aggregate counts every card under its normalized value of f.
func Aggregate(all []models.Card, f models.Field) Counts {
	return AggregateBy(all, FieldKey(f))
}

// AggregateTypes counts the type field. Unknown and "-" are left out
// entirely since a missing type is noise.
func AggregateTypes(all []models.Card) Counts {
	return AggregateFiltered(all, models.FieldType, Options{
		SkipUnknown: true,
		SkipValues:  []string{"-"},
	})
}

// AggregateFiltered counts the normalized value of f over the cards that
// pass opts. Skipped cards are not counted anywhere.
func AggregateFiltered(all []models.Card, f models.Field, opts Options) Counts {
	acc := make(Counts)
	for _, c := range all {
		if opts.Filter != nil && !opts.Filter(c) {
			continue
		}
		bucket := cards.FieldKey(c, f)
		if opts.skip(bucket) {
			continue
		}
		acc[bucket]++
	}
	return acc
}

// AggregateBySet counts cards per derived set.
func AggregateBySet(all []models.Card) Counts {
	return AggregateBy(all, cards.DeriveSet)
}

// Total sums every bucket of c.
func Total(c Counts) int {
	n := 0
	for _, v := range c {
		n += v
	}
	return n
}

func (o Options) skip(bucket string) bool {
	if o.SkipUnknown && bucket == cards.Unknown {
		return true
	}
	return slices.Contains(o.SkipValues, bucket)
}
