package stats

import (
	"cmp"
	"slices"
	"strconv"
	"strings"
)

// Count is one ranked bucket.
type Count struct {
	Label string `json:"label"`
	Value int    `json:"value"`
}

// SortCounts ranks buckets by count, highest first. Equal counts are ordered
// by label so the ranking is reproducible.
func SortCounts(c Counts) []Count {
	out := entries(c)
	slices.SortFunc(out, func(a, b Count) int {
		if a.Value != b.Value {
			return cmp.Compare(b.Value, a.Value)
		}
		return strings.Compare(a.Label, b.Label)
	})
	return out
}

// Top keeps the first n entries. n <= 0 keeps everything.
func Top(ranked []Count, n int) []Count {
	if n <= 0 || len(ranked) <= n {
		return ranked
	}
	return ranked[:n]
}

// SortByNumericLabel orders buckets by the numeric value of their label,
// ascending. Labels that are not numbers go last, alphabetically.
func SortByNumericLabel(c Counts) []Count {
	out := entries(c)
	slices.SortFunc(out, func(a, b Count) int {
		af, aErr := strconv.ParseFloat(strings.TrimSpace(a.Label), 64)
		bf, bErr := strconv.ParseFloat(strings.TrimSpace(b.Label), 64)
		switch {
		case aErr == nil && bErr == nil:
			if af != bf {
				return cmp.Compare(af, bf)
			}
		case aErr == nil:
			return -1
		case bErr == nil:
			return 1
		}
		return strings.Compare(a.Label, b.Label)
	})
	return out
}

// Labels returns the labels of ranked, in order.
func Labels(ranked []Count) []string {
	out := make([]string, len(ranked))
	for i, e := range ranked {
		out[i] = e.Label
	}
	return out
}

// Values returns the counts of ranked, in order.
func Values(ranked []Count) []int {
	out := make([]int, len(ranked))
	for i, e := range ranked {
		out[i] = e.Value
	}
	return out
}

func entries(c Counts) []Count {
	out := make([]Count, 0, len(c))
	for label, value := range c {
		out = append(out, Count{Label: label, Value: value})
	}
	return out
}
