package stats

import (
	"slices"

	"carddash/pkg/models"
)

// CrossTab is a two-key frequency table, e.g. cards per (set, rarity).
// Labels and Series keep first-seen order.
type CrossTab struct {
	Labels []string                  `json:"labels"`
	Series []string                  `json:"series"`
	Table  map[string]map[string]int `json:"table"`
}

// Cell returns the count for (label, series); missing cells are zero.
func (t CrossTab) Cell(label, series string) int {
	return t.Table[label][series]
}

// Row returns the counts of label across every series, in series order.
func (t CrossTab) Row(label string) []int {
	out := make([]int, len(t.Series))
	for i, s := range t.Series {
		out[i] = t.Cell(label, s)
	}
	return out
}

// Column returns the counts of series across every label, in label order.
func (t CrossTab) Column(series string) []int {
	out := make([]int, len(t.Labels))
	for i, l := range t.Labels {
		out[i] = t.Cell(l, series)
	}
	return out
}

// BuildStackedData cross-tabulates all by primary and secondary keys.
func BuildStackedData(all []models.Card, primary, secondary KeyFunc) CrossTab {
	labels := distinct(all, primary)
	series := distinct(all, secondary)

	table := make(map[string]map[string]int, len(labels))
	for _, l := range labels {
		row := make(map[string]int, len(series))
		for _, s := range series {
			row[s] = 0
		}
		table[l] = row
	}

	tab := CrossTab{Labels: labels, Series: series, Table: table}
	for _, c := range all {
		l, s := primary(c), secondary(c)
		row, ok := tab.Table[l]
		if !ok {
			row = make(map[string]int)
			tab.Table[l] = row
			tab.Labels = append(tab.Labels, l)
		}
		if _, ok := row[s]; !ok && !slices.Contains(tab.Series, s) {
			tab.Series = append(tab.Series, s)
		}
		row[s]++
	}
	return tab
}

func distinct(all []models.Card, key KeyFunc) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, c := range all {
		k := key(c)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
