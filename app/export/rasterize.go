package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/fmpsc/spa/app/analytics"
)

// ErrUnsupportedFigure is returned for traces that cannot be drawn as a
// static image, eg: heatmaps.
var ErrUnsupportedFigure = errors.New("unsupported figure")

// Plotly's default colorway.
var palette = []drawing.Color{
	drawing.ColorFromHex("636efa"),
	drawing.ColorFromHex("EF553B"),
	drawing.ColorFromHex("00cc96"),
	drawing.ColorFromHex("ab63fa"),
	drawing.ColorFromHex("FFA15A"),
	drawing.ColorFromHex("19d3f3"),
	drawing.ColorFromHex("FF6692"),
	drawing.ColorFromHex("B6E880"),
	drawing.ColorFromHex("FF97FF"),
	drawing.ColorFromHex("FECB52"),
}

func paletteColor(i int) drawing.Color {
	return palette[i%len(palette)]
}

type renderer interface {
	Render(rp chart.RendererProvider, w io.Writer) error
}

// Rasterizer draws Plotly figures as PNG images with go-chart.
type Rasterizer struct {
	Width  int
	Height int
}

func NewRasterizer(width, height int) *Rasterizer {
	return &Rasterizer{Width: width, Height: height}
}

// PNG renders fig. Bar, pie, line/scatter and histogram traces are
// supported; mixing pie with other types is not.
func (r *Rasterizer) PNG(fig analytics.Figure, fallbackTitle string) ([]byte, error) {
	graph, err := r.plan(fig, fallbackTitle)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("rendering png: %w", err)
	}
	return buf.Bytes(), nil
}

// Check reports whether PNG can draw fig, without drawing it.
func Check(fig analytics.Figure) error {
	_, err := NewRasterizer(1, 1).plan(fig, "")
	return err
}

func (r *Rasterizer) plan(fig analytics.Figure, fallbackTitle string) (renderer, error) {
	var f plotlyFigure
	if err := json.Unmarshal(fig, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFigure, err)
	}
	if len(f.Data) == 0 {
		return nil, fmt.Errorf("%w: figure has no traces", ErrUnsupportedFigure)
	}

	title := titleText(f.Layout.Title)
	if title == "" {
		title = fallbackTitle
	}

	switch kind := traceKind(f.Data[0]); kind {
	case "pie":
		return r.pieChart(title, f.Data)
	case "bar", "histogram":
		return r.barChart(title, f)
	case "scatter":
		return r.lineChart(title, f)
	default:
		return nil, fmt.Errorf("%w: trace type %q", ErrUnsupportedFigure, kind)
	}
}

func traceKind(t plotlyTrace) string {
	switch t.Type {
	case "", "scatter", "scattergl", "line":
		return "scatter"
	}
	return t.Type
}

func (r *Rasterizer) background() chart.Style {
	return chart.Style{
		Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20},
	}
}

func titleStyle() chart.Style {
	return chart.Style{FontSize: 16, FontColor: drawing.ColorBlack}
}

func (r *Rasterizer) pieChart(title string, traces []plotlyTrace) (renderer, error) {
	if len(traces) != 1 {
		return nil, fmt.Errorf("%w: %d pie traces", ErrUnsupportedFigure, len(traces))
	}
	t := traces[0]
	labelItems, err := decodeArray(t.Labels)
	if err != nil {
		return nil, fmt.Errorf("pie labels: %w", err)
	}
	valueItems, err := decodeArray(t.Values)
	if err != nil {
		return nil, fmt.Errorf("pie values: %w", err)
	}

	var names []string
	var values []float64
	if valueItems == nil {
		// labels only: Plotly counts occurrences
		names, values = countOccurrences(labels(labelItems))
	} else {
		var ok bool
		values, ok = numbers(valueItems)
		if !ok {
			return nil, fmt.Errorf("%w: non-numeric pie values", ErrUnsupportedFigure)
		}
		names = labels(labelItems)
	}

	slices := make([]chart.Value, 0, len(values))
	for i, v := range values {
		name := ""
		if i < len(names) {
			name = names[i]
		}
		slices = append(slices, chart.Value{
			Label: name,
			Value: v,
			Style: chart.Style{FillColor: paletteColor(i), StrokeColor: drawing.ColorWhite},
		})
	}
	return &chart.PieChart{
		Title:      title,
		TitleStyle: titleStyle(),
		Background: r.background(),
		Width:      r.Width,
		Height:     r.Height,
		Values:     slices,
	}, nil
}

// barChart draws vertical bars. Horizontal traces are drawn with their
// categories along the x axis. Several traces are laid side by side with one
// color each.
func (r *Rasterizer) barChart(title string, f plotlyFigure) (renderer, error) {
	multi := len(f.Data) > 1
	var bars []chart.Value
	for i, t := range f.Data {
		var cats []string
		var vals []float64
		var err error
		switch t.Type {
		case "bar":
			cats, vals, err = barValues(t)
		case "histogram":
			cats, vals, err = histogramValues(t)
		default:
			err = fmt.Errorf("%w: cannot mix %q with bars", ErrUnsupportedFigure, t.Type)
		}
		if err != nil {
			return nil, err
		}

		for j, v := range vals {
			lbl := cats[j]
			if multi && t.Name != "" {
				lbl = fmt.Sprintf("%s (%s)", lbl, t.Name)
			}
			bars = append(bars, chart.Value{
				Label: lbl,
				Value: v,
				Style: chart.Style{FillColor: paletteColor(i), StrokeColor: paletteColor(i)},
			})
		}
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars", ErrUnsupportedFigure)
	}

	xStyle := chart.Style{FontSize: 10}
	if len(bars) > 8 {
		xStyle.TextRotationDegrees = 45
	}
	return &chart.BarChart{
		Title:      title,
		TitleStyle: titleStyle(),
		Background: r.background(),
		Width:      r.Width,
		Height:     r.Height,
		Bars:       bars,
		XAxis:      xStyle,
		YAxis: chart.YAxis{
			Name:  titleText(f.Layout.YAxis.Title),
			Style: chart.Style{FontSize: 10},
			Range: barRange(bars),
		},
	}, nil
}

// barRange always includes zero so bars grow from the axis, and is never
// empty.
func barRange(bars []chart.Value) *chart.ContinuousRange {
	lo, hi := 0.0, 0.0
	for _, b := range bars {
		lo = math.Min(lo, b.Value)
		hi = math.Max(hi, b.Value)
	}
	if hi == lo {
		hi = lo + 1
	}
	return &chart.ContinuousRange{Min: lo, Max: hi}
}

func barValues(t plotlyTrace) ([]string, []float64, error) {
	catRaw, valRaw := t.X, t.Y
	if t.Orientation == "h" {
		catRaw, valRaw = t.Y, t.X
	}
	catItems, err := decodeArray(catRaw)
	if err != nil {
		return nil, nil, fmt.Errorf("bar categories: %w", err)
	}
	valItems, err := decodeArray(valRaw)
	if err != nil {
		return nil, nil, fmt.Errorf("bar values: %w", err)
	}
	vals, ok := numbers(valItems)
	if !ok {
		return nil, nil, fmt.Errorf("%w: non-numeric bar values", ErrUnsupportedFigure)
	}
	cats := labels(catItems)
	for len(cats) < len(vals) {
		cats = append(cats, fmt.Sprint(len(cats)))
	}
	return cats, vals, nil
}

// histogramValues counts the raw samples of a histogram trace. Categorical
// samples are counted per value; numeric ones are binned with Sturges' rule.
func histogramValues(t plotlyTrace) ([]string, []float64, error) {
	raw := t.X
	if len(raw) == 0 || string(raw) == "null" {
		raw = t.Y
	}
	items, err := decodeArray(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("histogram samples: %w", err)
	}
	var present []any
	for _, it := range items {
		if it != nil {
			present = append(present, it)
		}
	}
	if len(present) == 0 {
		return nil, nil, fmt.Errorf("%w: empty histogram", ErrUnsupportedFigure)
	}

	if nums, ok := numbers(present); ok {
		cats, counts := binNumbers(nums)
		return cats, counts, nil
	}
	cats, counts := countOccurrences(labels(present))
	return cats, counts, nil
}

// countOccurrences counts each distinct value, in order of first appearance.
func countOccurrences(values []string) ([]string, []float64) {
	index := map[string]int{}
	var cats []string
	var counts []float64
	for _, v := range values {
		i, seen := index[v]
		if !seen {
			i = len(cats)
			index[v] = i
			cats = append(cats, v)
			counts = append(counts, 0)
		}
		counts[i]++
	}
	return cats, counts
}

func binNumbers(nums []float64) ([]string, []float64) {
	distinct := map[float64]bool{}
	for _, n := range nums {
		distinct[n] = true
	}
	nbins := int(math.Ceil(math.Log2(float64(len(nums))))) + 1
	if len(distinct) <= nbins {
		keys := make([]float64, 0, len(distinct))
		for k := range distinct {
			keys = append(keys, k)
		}
		sort.Float64s(keys)
		counts := make(map[float64]float64, len(keys))
		for _, n := range nums {
			counts[n]++
		}
		cats := make([]string, len(keys))
		vals := make([]float64, len(keys))
		for i, k := range keys {
			cats[i] = label(k)
			vals[i] = counts[k]
		}
		return cats, vals
	}

	lo, hi := nums[0], nums[0]
	for _, n := range nums {
		lo = math.Min(lo, n)
		hi = math.Max(hi, n)
	}
	width := (hi - lo) / float64(nbins)
	vals := make([]float64, nbins)
	for _, n := range nums {
		b := int((n - lo) / width)
		if b >= nbins {
			b = nbins - 1
		}
		vals[b]++
	}
	cats := make([]string, nbins)
	for i := range cats {
		from := lo + float64(i)*width
		cats[i] = fmt.Sprintf("%s-%s", label(math.Round(from*100)/100), label(math.Round((from+width)*100)/100))
	}
	return cats, vals
}

func (r *Rasterizer) lineChart(title string, f plotlyFigure) (renderer, error) {
	graph := &chart.Chart{
		Title:      title,
		TitleStyle: titleStyle(),
		Background: chart.Style{Padding: chart.Box{Top: 50, Left: 20, Right: 20, Bottom: 20}},
		Width:      r.Width,
		Height:     r.Height,
		XAxis: chart.XAxis{
			Name:  titleText(f.Layout.XAxis.Title),
			Style: chart.Style{FontSize: 10},
		},
		YAxis: chart.YAxis{
			Name:  titleText(f.Layout.YAxis.Title),
			Style: chart.Style{FontSize: 10},
		},
	}

	var categories []string
	xMin, xMax := math.Inf(1), math.Inf(-1)
	yMin, yMax := math.Inf(1), math.Inf(-1)
	for i, t := range f.Data {
		if traceKind(t) != "scatter" {
			return nil, fmt.Errorf("%w: cannot mix %q with lines", ErrUnsupportedFigure, t.Type)
		}
		xItems, err := decodeArray(t.X)
		if err != nil {
			return nil, fmt.Errorf("line x: %w", err)
		}
		yItems, err := decodeArray(t.Y)
		if err != nil {
			return nil, fmt.Errorf("line y: %w", err)
		}
		ys, ok := numbers(yItems)
		if !ok {
			return nil, fmt.Errorf("%w: non-numeric y values", ErrUnsupportedFigure)
		}

		xs, ok := numbers(xItems)
		if !ok || xItems == nil {
			// categorical x: plot against positions and label the ticks
			xs = make([]float64, len(ys))
			for j := range xs {
				xs[j] = float64(j)
			}
			if len(xItems) > len(categories) {
				categories = labels(xItems)
			}
		}
		if len(xs) != len(ys) {
			return nil, fmt.Errorf("%w: x and y lengths differ", ErrUnsupportedFigure)
		}
		if len(xs) == 0 {
			return nil, fmt.Errorf("%w: line without points", ErrUnsupportedFigure)
		}
		for j := range xs {
			xMin, xMax = math.Min(xMin, xs[j]), math.Max(xMax, xs[j])
			yMin, yMax = math.Min(yMin, ys[j]), math.Max(yMax, ys[j])
		}

		style := chart.Style{StrokeColor: paletteColor(i), StrokeWidth: 2}
		if t.Mode == "markers" {
			style = chart.Style{StrokeColor: drawing.ColorTransparent, DotColor: paletteColor(i), DotWidth: 4}
		} else if t.Mode == "lines+markers" {
			style.DotColor = paletteColor(i)
			style.DotWidth = 3
		}
		graph.Series = append(graph.Series, chart.ContinuousSeries{
			Name:    t.Name,
			Style:   style,
			XValues: xs,
			YValues: ys,
		})
	}

	if len(categories) > 0 {
		ticks := make([]chart.Tick, len(categories))
		for i, c := range categories {
			ticks[i] = chart.Tick{Value: float64(i), Label: c}
		}
		graph.XAxis.Ticks = ticks
	}
	// a single position has no range to scale against
	if xMin == xMax {
		graph.XAxis.Range = &chart.ContinuousRange{Min: xMin - 1, Max: xMax + 1}
	}
	if yMin == yMax {
		graph.YAxis.Range = &chart.ContinuousRange{Min: yMin - 1, Max: yMax + 1}
	}
	if len(f.Data) > 1 {
		graph.Elements = []chart.Renderable{chart.Legend(graph)}
	}
	return graph, nil
}
