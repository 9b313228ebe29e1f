// Package dashboard turns a filtered card collection into the named datasets
// the dashboard charts and summary chips are drawn from.
package dashboard

import (
	"time"

	"carddash/internal/cards"
	"carddash/internal/filter"
	"carddash/internal/stats"
	"carddash/pkg/models"
)

// Chart sizes. Rarity, the set × rarity table and the year trend are unsliced.
const (
	topFeatures    = 8
	topTypes       = 8
	topSets        = 10
	topWorks       = 12
	topIllustrator = 12
	topCharacters  = 12
	topSpotlight   = 10
)

// Default feature values for the two spotlight character charts.
const (
	DefaultPrimaryFeature   = "Ultra Hero"
	DefaultSecondaryFeature = "Kaiju"
)

var skipDash = []string{"-"}

// View is every dataset the dashboard renders for one filter.
type View struct {
	Criteria filter.Criteria `json:"criteria"`
	Summary  Summary         `json:"summary"`

	Rarity        []stats.Count  `json:"rarity"`
	Feature       []stats.Count  `json:"feature"`
	Type          []stats.Count  `json:"type"`
	Section       []stats.Count  `json:"section"`
	Works         []stats.Count  `json:"works"`
	SectionRarity stats.CrossTab `json:"sectionRarity"`
	Year          []stats.Count  `json:"year"`
	Illustrator   []stats.Count  `json:"illustrator"`
	Characters    []stats.Count  `json:"characters"`
	Primary       []stats.Count  `json:"primary"`   // characters of PrimaryFeature cards
	Secondary     []stats.Count  `json:"secondary"` // characters of SecondaryFeature cards

	PrimaryFeature   string `json:"primaryFeature"`
	SecondaryFeature string `json:"secondaryFeature"`
}

// Summary holds the headline counts and chips.
type Summary struct {
	Total     int   `json:"total"`     // whole collection
	Displayed int   `json:"displayed"` // cards passing the filter
	Errata    int   `json:"errata"`    // filtered cards with errata_enable
	Chips     Chips `json:"chips"`
}

// Chips are the small distinct-count figures shown next to the charts.
type Chips struct {
	Total      int       `json:"total"`
	Works      int       `json:"works"`
	Rarities   int       `json:"rarities"`
	Characters int       `json:"characters"`
	Sets       int       `json:"sets"`
	Types      int       `json:"types"`
	Errata     int       `json:"errata"`
	Updated    time.Time `json:"updated"`
}

// Options are the choices offered by the rarity, feature and section
// selectors. The unconstrained "All" choice is the empty value.
type Options struct {
	All      string   `json:"all"`
	Rarities []string `json:"rarities"`
	Features []string `json:"features"`
	Sections []string `json:"sections"`
}

// BuildOptions lists the sorted distinct selector values of all.
func BuildOptions(all []models.Card) Options {
	return Options{
		Rarities: stats.UniqueValues(all, models.FieldRarity),
		Features: stats.UniqueValues(all, models.FieldFeature),
		Sections: stats.UniqueSets(all),
	}
}

// Builder computes views. The zero value uses the default spotlight
// features and the wall clock.
type Builder struct {
	PrimaryFeature   string
	SecondaryFeature string
	Now              func() time.Time
}

// Build computes the view of subset, the cards of all passing c.
func (b Builder) Build(all, subset []models.Card, c filter.Criteria) View {
	primary, secondary := b.features()

	return View{
		Criteria:         c,
		Summary:          b.summary(all, subset),
		Rarity:           stats.SortCounts(stats.Aggregate(subset, models.FieldRarity)),
		Feature:          stats.Top(stats.SortCounts(stats.Aggregate(subset, models.FieldFeature)), topFeatures),
		Type:             stats.Top(stats.SortCounts(stats.AggregateTypes(subset)), topTypes),
		Section:          stats.Top(stats.SortCounts(stats.AggregateBySet(subset)), topSets),
		Works:            stats.Top(stats.SortCounts(worksCounts(subset)), topWorks),
		SectionRarity:    stats.BuildStackedData(subset, cards.DeriveSet, stats.FieldKey(models.FieldRarity)),
		Year:             yearTrend(subset),
		Illustrator:      stats.Top(stats.SortCounts(namedCounts(subset, models.FieldIllustratorName, nil)), topIllustrator),
		Characters:       stats.Top(stats.SortCounts(namedCounts(subset, models.FieldCharacterName, nil)), topCharacters),
		Primary:          stats.Top(stats.SortCounts(namedCounts(subset, models.FieldCharacterName, featureIs(primary))), topSpotlight),
		Secondary:        stats.Top(stats.SortCounts(namedCounts(subset, models.FieldCharacterName, featureIs(secondary))), topSpotlight),
		PrimaryFeature:   primary,
		SecondaryFeature: secondary,
	}
}

func (b Builder) features() (string, string) {
	primary, secondary := b.PrimaryFeature, b.SecondaryFeature
	if primary == "" {
		primary = DefaultPrimaryFeature
	}
	if secondary == "" {
		secondary = DefaultSecondaryFeature
	}
	return primary, secondary
}

func (b Builder) now() time.Time {
	if b.Now != nil {
		return b.Now()
	}
	return time.Now()
}

func (b Builder) summary(all, subset []models.Card) Summary {
	errata := 0
	for _, c := range subset {
		if c.ErrataEnable {
			errata++
		}
	}

	return Summary{
		Total:     len(all),
		Displayed: len(subset),
		Errata:    errata,
		Chips: Chips{
			Total:      len(all),
			Works:      len(stats.UniqueValuesFiltered(subset, models.FieldParticipatingWorks, stats.Options{SkipUnknown: true})),
			Rarities:   len(stats.UniqueValues(subset, models.FieldRarity)),
			Characters: len(stats.UniqueValuesFiltered(subset, models.FieldCharacterName, stats.Options{SkipUnknown: true, SkipValues: skipDash})),
			Sets:       len(stats.UniqueSets(subset)),
			Types:      len(stats.UniqueValuesFiltered(subset, models.FieldType, stats.Options{SkipUnknown: true, SkipValues: []string{"-", cards.Unknown}})),
			Errata:     errata,
			Updated:    b.now(),
		},
	}
}

// worksCounts drops cards without a participating work before counting.
func worksCounts(subset []models.Card) stats.Counts {
	known := make([]models.Card, 0, len(subset))
	for _, c := range subset {
		if cards.Key(c.ParticipatingWorks) != cards.Unknown {
			known = append(known, c)
		}
	}
	return stats.Aggregate(known, models.FieldParticipatingWorks)
}

func yearTrend(subset []models.Card) []stats.Count {
	counts := stats.AggregateFiltered(subset, models.FieldPublicationYear, stats.Options{
		SkipUnknown: true,
		SkipValues:  []string{"-", cards.Unknown},
	})
	return stats.SortByNumericLabel(counts)
}

func namedCounts(subset []models.Card, f models.Field, keep func(models.Card) bool) stats.Counts {
	return stats.AggregateFiltered(subset, f, stats.Options{
		Filter:      keep,
		SkipUnknown: true,
		SkipValues:  skipDash,
	})
}

func featureIs(feature string) func(models.Card) bool {
	return func(c models.Card) bool { return cards.Key(c.Feature) == feature }
}
