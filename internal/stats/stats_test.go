package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"carddash/internal/cards"
	"carddash/pkg/models"
)

func card(fields map[models.Field]string) models.Card {
	var c models.Card
	for f, v := range fields {
		t := models.NewText(v)
		switch f {
		case models.FieldName:
			c.Name = t
		case models.FieldRarity:
			c.Rarity = t
		case models.FieldFeature:
			c.Feature = t
		case models.FieldType:
			c.Type = t
		case models.FieldSection:
			c.Section = t
		case models.FieldNumber:
			c.Number = t
		case models.FieldParticipatingWorks:
			c.ParticipatingWorks = t
		case models.FieldCharacterName:
			c.CharacterName = t
		case models.FieldIllustratorName:
			c.IllustratorName = t
		case models.FieldPublicationYear:
			c.PublicationYear = t
		}
	}
	return c
}

func scenario() []models.Card {
	return []models.Card{
		card(map[models.Field]string{models.FieldRarity: "R", models.FieldFeature: "Kaiju", models.FieldName: "A"}),
		card(map[models.Field]string{models.FieldRarity: "R", models.FieldFeature: "Ultra Hero", models.FieldName: "B"}),
		card(map[models.Field]string{models.FieldRarity: "SR", models.FieldFeature: "Kaiju", models.FieldName: "C"}),
	}
}

func TestAggregate(t *testing.T) {
	t.Parallel()

	got := Aggregate(scenario(), models.FieldRarity)
	assert.Equal(t, Counts{"R": 2, "SR": 1}, got)
}

func TestAggregateSumEqualsInput(t *testing.T) {
	t.Parallel()

	all := append(scenario(),
		models.Card{},
		card(map[models.Field]string{models.FieldRarity: "  "}),
		card(map[models.Field]string{models.FieldRarity: " R "}),
	)

	for _, f := range []models.Field{models.FieldRarity, models.FieldFeature, models.FieldType, models.FieldName} {
		assert.Equal(t, len(all), Total(Aggregate(all, f)), f)
	}
	assert.Equal(t, len(all), Total(AggregateBySet(all)))

	rarity := Aggregate(all, models.FieldRarity)
	assert.Equal(t, 3, rarity["R"], "trimmed values share a bucket")
	assert.Equal(t, 2, rarity[cards.Unknown])
}

func TestAggregateTypes(t *testing.T) {
	t.Parallel()

	all := []models.Card{
		card(map[models.Field]string{models.FieldType: "Monster"}),
		card(map[models.Field]string{models.FieldType: "-"}),
		card(map[models.Field]string{models.FieldType: " "}),
		{},
		card(map[models.Field]string{models.FieldType: "Monster"}),
	}
	assert.Equal(t, Counts{"Monster": 2}, AggregateTypes(all))
}

func TestAggregateFilteredSkips(t *testing.T) {
	t.Parallel()

	all := []models.Card{
		card(map[models.Field]string{models.FieldCharacterName: "Zetton", models.FieldFeature: "Kaiju"}),
		card(map[models.Field]string{models.FieldCharacterName: "-", models.FieldFeature: "Kaiju"}),
		card(map[models.Field]string{models.FieldFeature: "Kaiju"}),
		card(map[models.Field]string{models.FieldCharacterName: "Ultraman", models.FieldFeature: "Ultra Hero"}),
	}

	got := AggregateFiltered(all, models.FieldCharacterName, Options{SkipUnknown: true, SkipValues: []string{"-"}})
	assert.NotContains(t, got, cards.Unknown)
	assert.NotContains(t, got, "-")
	assert.Equal(t, Counts{"Zetton": 1, "Ultraman": 1}, got)

	kaiju := AggregateFiltered(all, models.FieldCharacterName, Options{
		Filter:      func(c models.Card) bool { return cards.Key(c.Feature) == "Kaiju" },
		SkipUnknown: true,
		SkipValues:  []string{"-"},
	})
	assert.Equal(t, Counts{"Zetton": 1}, kaiju)

	unfiltered := AggregateFiltered(all, models.FieldCharacterName, Options{})
	assert.Equal(t, len(all), Total(unfiltered))
}

func TestSortCountsTieBreak(t *testing.T) {
	t.Parallel()

	got := SortCounts(Counts{"b": 2, "a": 2, "c": 5, "d": 1})
	assert.Equal(t, []Count{{"c", 5}, {"a", 2}, {"b", 2}, {"d", 1}}, got)
	assert.Equal(t, []Count{{"c", 5}, {"a", 2}}, Top(got, 2))
	assert.Len(t, Top(got, 0), 4)
	assert.Len(t, Top(got, 10), 4)
	assert.Equal(t, []string{"c", "a", "b", "d"}, Labels(got))
	assert.Equal(t, []int{5, 2, 2, 1}, Values(got))
}

func TestSortByNumericLabel(t *testing.T) {
	t.Parallel()

	got := SortByNumericLabel(Counts{"2024": 1, "2019": 4, "2021": 2, "n/a": 1, "999": 3})
	assert.Equal(t, []string{"999", "2019", "2021", "2024", "n/a"}, Labels(got))
}

func TestBuildStackedData(t *testing.T) {
	t.Parallel()

	all := []models.Card{
		card(map[models.Field]string{models.FieldNumber: "BP01-001", models.FieldRarity: "R"}),
		card(map[models.Field]string{models.FieldNumber: "BP01-002", models.FieldRarity: "SR"}),
		card(map[models.Field]string{models.FieldNumber: "SD02-001", models.FieldRarity: "R"}),
		card(map[models.Field]string{models.FieldNumber: "BP01-003", models.FieldRarity: "R"}),
		{},
	}

	tab := BuildStackedData(all, cards.DeriveSet, FieldKey(models.FieldRarity))
	assert.Equal(t, []string{"BP01", "SD02", cards.Unknown}, tab.Labels)
	assert.Equal(t, []string{"R", "SR", cards.Unknown}, tab.Series)
	assert.Equal(t, 2, tab.Cell("BP01", "R"))
	assert.Equal(t, 0, tab.Cell("SD02", "SR"), "cells are pre-initialised")
	assert.Equal(t, 0, tab.Cell("missing", "R"))
	assert.Equal(t, []int{2, 1, 0}, tab.Row("BP01"))
	assert.Equal(t, []int{2, 1, 0}, tab.Column("R"))

	primary := AggregateBySet(all)
	for _, label := range tab.Labels {
		sum := 0
		for _, v := range tab.Row(label) {
			sum += v
		}
		assert.Equal(t, primary[label], sum, label)
	}
}

func TestBuildStackedDataExtendsAxes(t *testing.T) {
	t.Parallel()

	// Key functions that change their answer between the distinct pass
	// and the counting pass exercise the auto-extension path.
	flaky := func() KeyFunc {
		calls := 0
		return func(models.Card) string {
			calls++
			if calls > 1 {
				return "late"
			}
			return "early"
		}
	}

	tab := BuildStackedData([]models.Card{{}}, flaky(), flaky())
	require.Equal(t, []string{"early", "late"}, tab.Labels)
	require.Equal(t, []string{"early", "late"}, tab.Series)
	assert.Equal(t, 1, tab.Cell("late", "late"))
	assert.Equal(t, 0, tab.Cell("early", "early"))
}

func TestUniqueValues(t *testing.T) {
	t.Parallel()

	all := []models.Card{
		card(map[models.Field]string{models.FieldRarity: "SR", models.FieldType: "-"}),
		card(map[models.Field]string{models.FieldRarity: "R", models.FieldType: "Monster"}),
		card(map[models.Field]string{models.FieldRarity: " SR "}),
		{},
	}

	assert.Equal(t, []string{"R", "SR", cards.Unknown}, UniqueValues(all, models.FieldRarity))
	assert.Equal(t, []string{"Monster"}, UniqueValuesFiltered(all, models.FieldType, Options{
		SkipUnknown: true,
		SkipValues:  []string{"-", cards.Unknown},
	}))
	assert.Equal(t, []string{cards.Unknown}, UniqueSets(all))
	assert.Empty(t, UniqueValues(nil, models.FieldRarity))
}
