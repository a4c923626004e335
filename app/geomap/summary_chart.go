package geomap

import (
	"html/template"
	"sort"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// TopCitiesChart renders an ECharts bar chart of the n cities with the most
// students as an embeddable div + script.
func TopCitiesChart(chartID string, markers []Marker, n int) template.HTML {
	sorted := make([]Marker, len(markers))
	copy(sorted, markers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Quantity > sorted[j].Quantity
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}

	names := make([]string, 0, len(sorted))
	values := make([]opts.BarData, 0, len(sorted))
	for _, m := range sorted {
		names = append(names, m.Name)
		values = append(values, opts.BarData{
			Value:     m.Quantity,
			ItemStyle: &opts.ItemStyle{Color: m.FillColor},
		})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			ChartID: chartID,
			Width:   "100%",
			Height:  "320px",
		}),
		charts.WithTitleOpts(opts.Title{Title: "Cidades com mais alunos"}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 30}}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Alunos"}),
	)
	bar.SetXAxis(names).AddSeries("Alunos", values)

	s := bar.RenderSnippet()
	return template.HTML(s.Element + "\n" + s.Script)
}
