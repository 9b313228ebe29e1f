package dashboard

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	chartWidth   = "100%"
	chartHeight  = "420px"
	emptyHeight  = "200px"
	doughnutSize = "70%"
	doughnutHole = "40%"
	labelSize    = 10
)

// RenderHTML writes v as a standalone HTML page of ECharts charts.
func RenderHTML(w io.Writer, v View) error {
	page := components.NewPage()
	page.PageTitle = "Card collection dashboard"

	for _, c := range v.Charts() {
		page.AddCharts(echart(c))
	}

	if err := page.Render(w); err != nil {
		return fmt.Errorf("render dashboard: %w", err)
	}
	return nil
}

func echart(c Chart) components.Charter {
	if c.Empty() {
		return emptyChart(c)
	}

	switch {
	case c.Type == KindDoughnut:
		return doughnut(c)
	case c.Type == KindLine:
		return line(c)
	case c.IndexAxis == "y":
		return horizontalBar(c)
	default:
		return bar(c)
	}
}

func baseOptions(c Chart, height string) []charts.GlobalOpts {
	return []charts.GlobalOpts{
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: height, ChartID: c.ID}),
		charts.WithTitleOpts(opts.Title{Title: c.Title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	}
}

func emptyChart(c Chart) *charts.Bar {
	b := charts.NewBar()
	b.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{Width: chartWidth, Height: emptyHeight, ChartID: c.ID}),
		charts.WithTitleOpts(opts.Title{Title: c.Title, Subtitle: "No data"}),
	)
	return b
}

func doughnut(c Chart) *charts.Pie {
	ds := c.Data.Datasets[0]
	colors := colorsOf(ds)

	data := make([]opts.PieData, len(c.Data.Labels))
	for i, label := range c.Data.Labels {
		data[i] = opts.PieData{
			Name:      label,
			Value:     ds.Data[i],
			ItemStyle: &opts.ItemStyle{Color: colorAt(colors, i)},
		}
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(append(baseOptions(c, chartHeight),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
	)...)
	pie.AddSeries(c.Title, data).
		SetSeriesOptions(
			charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Formatter: "{b}: {c}"}),
			charts.WithPieChartOpts(opts.PieChart{Radius: []string{doughnutHole, doughnutSize}}),
		)
	return pie
}

func bar(c Chart) *charts.Bar {
	b := charts.NewBar()
	b.SetGlobalOptions(baseOptions(c, chartHeight)...)
	b.SetXAxis(c.Data.Labels)

	if c.Stacked {
		b.SetGlobalOptions(charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}))
		for _, ds := range c.Data.Datasets {
			b.AddSeries(ds.Label, barData(ds),
				charts.WithBarChartOpts(opts.BarChart{Stack: "total"}),
			)
		}
		return b
	}

	ds := c.Data.Datasets[0]
	b.AddSeries(c.Title, barData(ds))
	return b
}

// horizontalBar puts categories on the y axis with the largest bar on top.
func horizontalBar(c Chart) *charts.Bar {
	n := len(c.Data.Labels)
	ds := c.Data.Datasets[0]
	colors := colorsOf(ds)

	labels := make([]string, n)
	values := make([]opts.BarData, n)
	for i, label := range c.Data.Labels {
		labels[n-1-i] = label
		values[n-1-i] = opts.BarData{
			Value:     ds.Data[i],
			ItemStyle: &opts.ItemStyle{Color: colorAt(colors, i)},
		}
	}

	b := charts.NewBar()
	b.SetGlobalOptions(append(baseOptions(c, chartHeight),
		charts.WithGridOpts(opts.Grid{Left: "25%", Right: "5%", Top: "40", Bottom: "5%"}),
		charts.WithXAxisOpts(opts.XAxis{Type: "value"}),
		charts.WithYAxisOpts(opts.YAxis{
			Type:      "category",
			Data:      labels,
			AxisLabel: &opts.AxisLabel{FontSize: labelSize},
		}),
	)...)
	b.AddSeries(c.Title, values,
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "right"}),
	)
	return b
}

func line(c Chart) *charts.Line {
	ds := c.Data.Datasets[0]

	data := make([]opts.LineData, len(ds.Data))
	for i, v := range ds.Data {
		data[i] = opts.LineData{Value: v}
	}

	l := charts.NewLine()
	l.SetGlobalOptions(baseOptions(c, chartHeight)...)
	l.SetXAxis(c.Data.Labels).
		AddSeries(c.Title, data,
			charts.WithLineChartOpts(opts.LineChart{Smooth: opts.Bool(true)}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: ds.BorderColor}),
			charts.WithAreaStyleOpts(opts.AreaStyle{Opacity: opts.Float(0.18)}),
		)
	return l
}

func barData(ds Dataset) []opts.BarData {
	colors := colorsOf(ds)
	out := make([]opts.BarData, len(ds.Data))
	for i, v := range ds.Data {
		out[i] = opts.BarData{Value: v, ItemStyle: &opts.ItemStyle{Color: colorAt(colors, i)}}
	}
	return out
}

// colorsOf flattens a dataset background into a per-point palette.
func colorsOf(ds Dataset) []string {
	switch bg := ds.BackgroundColor.(type) {
	case []string:
		return bg
	case string:
		return []string{bg}
	default:
		return neutralPalette
	}
}

func colorAt(colors []string, i int) string {
	return colors[i%len(colors)]
}
