package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fmpsc/spa/app/analytics"
	"github.com/fmpsc/spa/app/export"
	"github.com/fmpsc/spa/app/viewstate"
)

const (
	msgNoCharts = "Nenhum gráfico retornado."
	emptyFigure = `{"data":[],"layout":{}}`
)

// ChartPanel is the content of the chart container after a request.
type ChartPanel struct {
	Cards       []viewstate.Card
	Placeholder string
	ShowExport  bool
}

var (
	errFigureNotObject = errors.New("fig is not an object")
	errDataNotArray    = errors.New("fig.data is not an array of traces")
	errLayoutNotObject = errors.New("fig.layout is not an object")
)

// NormalizeFigure checks the shape Plotly needs and fills in what is
// missing. The figure itself is not otherwise interpreted.
func NormalizeFigure(fig analytics.Figure) (analytics.Figure, error) {
	if len(fig) == 0 || string(fig) == "null" {
		return analytics.Figure(emptyFigure), nil
	}

	var parts map[string]json.RawMessage
	if err := json.Unmarshal(fig, &parts); err != nil {
		return nil, errFigureNotObject
	}
	if parts == nil {
		return analytics.Figure(emptyFigure), nil
	}

	changed := false
	if data, ok := parts["data"]; ok && string(data) != "null" {
		var traces []map[string]json.RawMessage
		if err := json.Unmarshal(data, &traces); err != nil {
			return nil, errDataNotArray
		}
		for _, tr := range traces {
			if tr == nil {
				return nil, errDataNotArray
			}
		}
	} else {
		parts["data"] = json.RawMessage(`[]`)
		changed = true
	}
	if layout, ok := parts["layout"]; ok && string(layout) != "null" {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(layout, &obj); err != nil || obj == nil {
			return nil, errLayoutNotObject
		}
	} else {
		parts["layout"] = json.RawMessage(`{}`)
		changed = true
	}

	if !changed {
		return fig, nil
	}
	return json.Marshal(parts)
}

// newCard builds one card. A figure that cannot be drawn yields a card with
// RenderError set; the other cards are unaffected.
func newCard(plotID, title, badge string, fig analytics.Figure) viewstate.Card {
	card := viewstate.Card{PlotID: plotID, Title: title, Badge: badge}
	normalized, err := NormalizeFigure(fig)
	if err != nil {
		card.RenderError = fmt.Sprintf("Erro ao renderizar: %v", err)
		return card
	}
	card.Figure = normalized
	if err := export.Check(normalized); err != nil {
		card.ExportError = err.Error()
	}
	return card
}

// RenderCharts lays out the figures returned by /api/grafico.
func RenderCharts(figs []analytics.FigureSpec) *ChartPanel {
	if len(figs) == 0 {
		return &ChartPanel{Placeholder: msgNoCharts}
	}

	panel := &ChartPanel{Cards: make([]viewstate.Card, 0, len(figs))}
	for idx, f := range figs {
		title := f.Title
		if title == "" {
			title = fmt.Sprintf("Gráfico %d", idx+1)
		}
		panel.Cards = append(panel.Cards, newCard(fmt.Sprintf("chart_%d", idx), title, "", f.Fig))
	}
	panel.ShowExport = true
	return panel
}
