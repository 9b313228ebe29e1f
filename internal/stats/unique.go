package stats

import (
	"sort"

	"carddash/internal/cards"
	"carddash/pkg/models"
)

// UniqueValues returns the sorted distinct normalized values of f,
// Unknown included.
func UniqueValues(all []models.Card, f models.Field) []string {
	return uniqueSorted(all, FieldKey(f), nil)
}

// UniqueValuesFiltered is UniqueValues with the skip rules of opts.
// opts.Filter also applies.
func UniqueValuesFiltered(all []models.Card, f models.Field, opts Options) []string {
	key := FieldKey(f)
	return uniqueSorted(all, key, func(c models.Card, bucket string) bool {
		if opts.Filter != nil && !opts.Filter(c) {
			return false
		}
		return !opts.skip(bucket)
	})
}

// UniqueSets returns the sorted distinct derived sets.
func UniqueSets(all []models.Card) []string {
	return uniqueSorted(all, cards.DeriveSet, nil)
}

func uniqueSorted(all []models.Card, key KeyFunc, keep func(models.Card, string) bool) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, c := range all {
		k := key(c)
		if keep != nil && !keep(c, k) {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
