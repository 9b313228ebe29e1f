package dashboard

import (
	"carddash/internal/stats"
)

// Chart identifiers, stable across releases; clients key their canvases on them.
const (
	ChartRarity        = "rarity"
	ChartFeature       = "feature"
	ChartType          = "type"
	ChartSection       = "section"
	ChartWorks         = "works"
	ChartSectionRarity = "sectionRarity"
	ChartYear          = "year"
	ChartIllustrator   = "illustrator"
	ChartCharacters    = "characters"
	ChartUltra         = "ultra"
	ChartKaiju         = "kaiju"
)

// Chart kinds.
const (
	KindDoughnut = "doughnut"
	KindBar      = "bar"
	KindLine     = "line"
)

var (
	rarityPalette  = []string{"#ff4654", "#ff9f43", "#4dd4ff", "#8f8cff", "#9ce36a", "#ffd166"}
	neutralPalette = []string{"#4dd4ff", "#ff4654", "#8f8cff", "#ffd166", "#e0e7ff"}
)

const (
	lineColor = "#4dd4ff"
	lineFill  = "rgba(77, 212, 255, 0.18)"
)

// Chart is one rendering-sink payload.
type Chart struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      string    `json:"type"`
	IndexAxis string    `json:"indexAxis,omitempty"` // "y" for horizontal bars
	Stacked   bool      `json:"stacked,omitempty"`
	Data      ChartData `json:"data"`
}

// ChartData is the labels + datasets shape charting libraries consume.
type ChartData struct {
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one series of a chart together with its style.
type Dataset struct {
	Label                string  `json:"label,omitempty"`
	Data                 []int   `json:"data"`
	BackgroundColor      any     `json:"backgroundColor,omitempty"` // string or []string
	BorderColor          string  `json:"borderColor,omitempty"`
	BorderWidth          int     `json:"borderWidth"`
	BorderRadius         int     `json:"borderRadius,omitempty"`
	Fill                 bool    `json:"fill,omitempty"`
	Tension              float64 `json:"tension,omitempty"`
	PointRadius          int     `json:"pointRadius,omitempty"`
	PointBackgroundColor string  `json:"pointBackgroundColor,omitempty"`
}

// Empty reports whether the chart has nothing to draw.
func (c Chart) Empty() bool {
	return len(c.Data.Labels) == 0
}

// Charts converts v into every chart payload, in display order.
func (v View) Charts() []Chart {
	return []Chart{
		rankedChart(ChartRarity, "Rarity distribution", KindDoughnut, "", v.Rarity, rarityPalette),
		rankedChart(ChartFeature, "Top features", KindBar, "y", v.Feature, neutralPalette),
		rankedChart(ChartType, "Top types", KindBar, "y", v.Type, neutralPalette),
		rankedChart(ChartSection, "Top sets", KindBar, "", v.Section, neutralPalette),
		rankedChart(ChartWorks, "Participating works", KindBar, "y", v.Works, neutralPalette),
		stackedChart(ChartSectionRarity, "Rarity by set", v.SectionRarity),
		lineChart(ChartYear, "Cards per publication year", v.Year),
		rankedChart(ChartIllustrator, "Top illustrators", KindBar, "y", v.Illustrator, neutralPalette),
		rankedChart(ChartCharacters, "Top characters", KindBar, "y", v.Characters, neutralPalette),
		rankedChart(ChartUltra, "Characters: "+v.PrimaryFeature, KindBar, "y", v.Primary, neutralPalette),
		rankedChart(ChartKaiju, "Characters: "+v.SecondaryFeature, KindBar, "y", v.Secondary, neutralPalette),
	}
}

// Chart returns the payload with the given id.
func (v View) Chart(id string) (Chart, bool) {
	for _, c := range v.Charts() {
		if c.ID == id {
			return c, true
		}
	}
	return Chart{}, false
}

func rankedChart(id, title, kind, indexAxis string, entries []stats.Count, palette []string) Chart {
	radius := 0
	if kind == KindBar {
		radius = 8
	}
	return Chart{
		ID:        id,
		Title:     title,
		Type:      kind,
		IndexAxis: indexAxis,
		Data: ChartData{
			Labels: stats.Labels(entries),
			Datasets: []Dataset{{
				Data:            stats.Values(entries),
				BackgroundColor: cycle(palette, len(entries)),
				BorderRadius:    radius,
			}},
		},
	}
}

func lineChart(id, title string, entries []stats.Count) Chart {
	return Chart{
		ID:    id,
		Title: title,
		Type:  KindLine,
		Data: ChartData{
			Labels: stats.Labels(entries),
			Datasets: []Dataset{{
				Data:                 stats.Values(entries),
				BorderColor:          lineColor,
				BackgroundColor:      lineFill,
				BorderWidth:          2,
				Fill:                 true,
				Tension:              0.3,
				PointRadius:          3,
				PointBackgroundColor: lineColor,
			}},
		},
	}
}

// stackedChart emits one dataset per secondary series.
func stackedChart(id, title string, tab stats.CrossTab) Chart {
	datasets := make([]Dataset, len(tab.Series))
	for i, s := range tab.Series {
		datasets[i] = Dataset{
			Label:           s,
			Data:            tab.Column(s),
			BackgroundColor: neutralPalette[i%len(neutralPalette)],
			BorderRadius:    6,
		}
	}
	return Chart{
		ID:      id,
		Title:   title,
		Type:    KindBar,
		Stacked: true,
		Data:    ChartData{Labels: tab.Labels, Datasets: datasets},
	}
}

func cycle(palette []string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = palette[i%len(palette)]
	}
	return out
}
