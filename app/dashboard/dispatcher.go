package dashboard

import (
	"context"
	"log/slog"

	"github.com/fmpsc/spa/app/analytics"
	"github.com/fmpsc/spa/app/viewstate"
)

const (
	msgChooseFileAndColumn = "Escolha arquivo e coluna"
	msgChooseBaseAndColumn = "Escolha arquivo base e coluna"
	msgChooseCompareFile   = "Escolha o arquivo para comparar"
	msgCompareSameFile     = "Escolha um arquivo diferente para comparar"
	msgInvalidChartType    = "Tipo de gráfico inválido"
	msgChartFailed         = "Erro ao chamar /api/grafico"
)

// ChartForm is what the page posts when a chart is requested. Checked holds
// the keys of the ticked filter checkboxes.
type ChartForm struct {
	Column      string   `form:"coluna"`
	Type        string   `form:"tipo"`
	GroupBy     string   `form:"groupby"`
	CompareWith string   `form:"compare_with"`
	Checked     []string `form:"filtro"`
}

type Dispatcher struct {
	client analytics.Client
}

func NewDispatcher(client analytics.Client) *Dispatcher {
	return &Dispatcher{client: client}
}

// Generate requests charts for the base file alone.
func (d *Dispatcher) Generate(ctx context.Context, st *viewstate.ViewState, form ChartForm) (*ChartPanel, error) {
	file := st.File()
	if file == "" || form.Column == "" {
		return nil, validationError(msgChooseFileAndColumn)
	}
	req, err := buildRequest(st, file, form)
	if err != nil {
		return nil, err
	}
	return d.dispatch(ctx, st, req)
}

// Compare requests charts for the base file against another upload.
func (d *Dispatcher) Compare(ctx context.Context, st *viewstate.ViewState, form ChartForm) (*ChartPanel, error) {
	file := st.File()
	if file == "" || form.Column == "" {
		return nil, validationError(msgChooseBaseAndColumn)
	}
	if form.CompareWith == "" {
		return nil, validationError(msgChooseCompareFile)
	}
	if form.CompareWith == file {
		return nil, validationError(msgCompareSameFile)
	}
	req, err := buildRequest(st, file, form)
	if err != nil {
		return nil, err
	}
	req.CompareWith = form.CompareWith
	return d.dispatch(ctx, st, req)
}

func buildRequest(st *viewstate.ViewState, file string, form ChartForm) (analytics.ChartRequest, error) {
	chartType := analytics.ChartType(form.Type)
	if chartType == "" {
		chartType = analytics.ChartBar
	}
	if !chartType.Valid() {
		return analytics.ChartRequest{}, validationError(msgInvalidChartType)
	}

	req := analytics.ChartRequest{
		Filename: file,
		Column:   form.Column,
		Type:     chartType,
		Filters:  viewstate.CollectFilters(st.FilterGroups(), form.Checked),
	}
	if form.GroupBy != "" {
		groupBy := form.GroupBy
		req.GroupBy = &groupBy
	}
	return req, nil
}

func (d *Dispatcher) dispatch(ctx context.Context, st *viewstate.ViewState, req analytics.ChartRequest) (*ChartPanel, error) {
	ctx, tok := st.Begin(ctx, viewstate.ViewCharts)
	defer tok.Done()

	figs, err := d.client.Chart(ctx, req)
	if err != nil {
		slog.Warn("chart request failed", "filename", req.Filename, "column", req.Column, "err", err)
		return nil, userError(err, msgChartFailed)
	}

	panel := RenderCharts(figs)
	if err := st.SetCards(tok, panel.Cards); err != nil {
		return nil, err
	}
	return panel, nil
}
