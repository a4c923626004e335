package dashboard

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fmpsc/spa/app/analytics"
	"github.com/fmpsc/spa/app/config"
	"github.com/fmpsc/spa/app/geomap"
	"github.com/fmpsc/spa/app/viewstate"
)

const (
	msgSelectFileFirst = "Selecione um arquivo CSV primeiro"
	msgFullFailed      = "Erro ao gerar visualizações completas"
	msgFullPanelError  = "Erro ao gerar visualizações"
	msgFullTransport   = "Erro ao processar requisição"
	msgNoVisualization = "Nenhuma visualização gerada. Verifique se o arquivo CSV contém dados válidos."

	MapBadge = "Mapa Interativo"
)

// FullItem is either a chart card or an embedded map.
type FullItem struct {
	Card  *viewstate.Card
	Map   *geomap.Map
	Title string
}

type FullPanel struct {
	Items         []FullItem
	Placeholder   string
	ErrorMessage  string
	ShowExport    bool
	ShowMapToggle bool
}

type FullDashboard struct {
	client  analytics.Client
	mapDefn config.MapDefn
}

func NewFullDashboard(client analytics.Client, mapDefn config.MapDefn) *FullDashboard {
	return &FullDashboard{client: client, mapDefn: mapDefn}
}

// Render asks the engine for every visualization of the base file. When the
// engine fails the returned panel carries the replacement error message
// along with the error.
func (f *FullDashboard) Render(ctx context.Context, st *viewstate.ViewState) (*FullPanel, error) {
	file := st.File()
	if file == "" {
		return nil, validationError(msgSelectFileFirst)
	}

	ctx, tok := st.Begin(ctx, viewstate.ViewFull)
	defer tok.Done()

	items, err := f.client.Visualizations(ctx, file)
	if err != nil {
		slog.Warn("full dashboard request failed", "filename", file, "err", err)
		panel := &FullPanel{ErrorMessage: msgFullPanelError}
		if analytics.IsTransport(err) {
			panel.ErrorMessage = msgFullTransport
		}
		// The panel replaces whatever was drawn before.
		if serr := st.SetCards(tok, nil); serr != nil {
			return nil, serr
		}
		return panel, userError(err, msgFullFailed)
	}

	panel := LayoutVisualizations(items, f.mapDefn)
	var cards []viewstate.Card
	for _, it := range panel.Items {
		if it.Card != nil {
			cards = append(cards, *it.Card)
		}
	}
	if err := st.SetCards(tok, cards); err != nil {
		return nil, err
	}
	return panel, nil
}

// LayoutVisualizations turns engine items into cards and maps.
func LayoutVisualizations(items []analytics.VisualizationItem, mapDefn config.MapDefn) *FullPanel {
	if len(items) == 0 {
		return &FullPanel{Placeholder: msgNoVisualization}
	}

	panel := &FullPanel{}
	for idx, viz := range items {
		if viz.IsMap() {
			m := geomap.BuildMap(fmt.Sprintf("mapa_viz_%d", idx), viz.MapData, viz.Stats, geomap.Embedded, mapDefn)
			if m == nil {
				continue
			}
			panel.Items = append(panel.Items, FullItem{Map: m, Title: viz.Title})
			continue
		}
		card := newCard(fmt.Sprintf("viz_%d", idx), viz.Title, viz.Type, viz.Fig)
		panel.Items = append(panel.Items, FullItem{Card: &card, Title: viz.Title})
	}
	panel.ShowExport = true
	panel.ShowMapToggle = true
	return panel
}
