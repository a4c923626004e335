package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/fmpsc/spa/app/analytics"
	"github.com/fmpsc/spa/app/catalog"
	"github.com/fmpsc/spa/app/common"
	"github.com/fmpsc/spa/app/config"
	"github.com/fmpsc/spa/app/dashboard"
	"github.com/fmpsc/spa/app/export"
	"github.com/fmpsc/spa/app/viewstate"
)

const (
	msgNoFile          = "Nenhum arquivo enviado"
	msgInvalidFile     = "Arquivo inválido"
	msgOnlyCSV         = "Envie apenas CSV"
	msgUploadFailed    = "Erro ao enviar arquivo"
	msgChartNotFound   = "Gráfico não encontrado."
	msgNothingToExport = "Nenhum gráfico para exportar."
	msgExportFailed    = "Erro ao exportar gráfico"
	msgSavedNotFound   = "Arquivo não encontrado."

	bulkExportName      = "all-charts.zip"
	headerSkippedCharts = "X-Charts-Skipped"
)

type DashboardController struct {
	conf       *config.DashboardConfig
	client     analytics.Client
	catalog    *catalog.Catalog
	sessions   *viewstate.Sessions
	selector   *dashboard.ColumnSelector
	dispatcher *dashboard.Dispatcher
	full       *dashboard.FullDashboard
	geo        *dashboard.StandaloneMap
	exporter   *export.Exporter
	saver      *export.Saver
	store      catalog.Store
	about      template.HTML
}

func NewDashboardController(client analytics.Client, cat *catalog.Catalog, store catalog.Store, conf *config.DashboardConfig) *DashboardController {
	about, err := RenderAbout()
	if err != nil {
		slog.Error("rendering about page", "err", err)
	}
	exporter := export.NewExporter(export.NewRasterizer(conf.Export.Width, conf.Export.Height))
	return &DashboardController{
		conf:       conf,
		client:     client,
		catalog:    cat,
		sessions:   viewstate.NewSessions(time.Duration(conf.SessionIdleMinutes) * time.Minute),
		selector:   dashboard.NewColumnSelector(client, cat, conf.MaxFilterCardinality),
		dispatcher: dashboard.NewDispatcher(client),
		full:       dashboard.NewFullDashboard(client, conf.Map),
		geo:        dashboard.NewStandaloneMap(client, conf.Map),
		exporter:   exporter,
		saver:      export.NewSaver(exporter, store),
		store:      store,
		about:      about,
	}
}

type homeData struct {
	Files        []catalog.UploadedFile
	State        viewstate.Snapshot
	ExportWidth  int
	ExportHeight int
}

func (dc *DashboardController) GetHome(c echo.Context) error {
	files, err := dc.catalog.Uploads(c.Request().Context())
	if err != nil {
		return err
	}
	return c.Render(http.StatusOK, "index", homeData{
		Files:        files,
		State:        stateOf(c).Snapshot(),
		ExportWidth:  dc.conf.Export.Width,
		ExportHeight: dc.conf.Export.Height,
	})
}

func (dc *DashboardController) GetAbout(c echo.Context) error {
	return c.Render(http.StatusOK, "about", dc.about)
}

func (dc *DashboardController) GetHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": dc.sessions.Len(),
	})
}

type uploadResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// PostUpload validates the CSV, forwards it to the analytics engine and
// records it in the catalog.
func (dc *DashboardController) PostUpload(c echo.Context) error {
	fh, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, uploadResponse{Error: msgNoFile})
	}
	name := path.Base(strings.ReplaceAll(fh.Filename, "\\", "/"))
	if fh.Filename == "" || name == "." || name == "/" {
		return c.JSON(http.StatusBadRequest, uploadResponse{Error: msgInvalidFile})
	}
	if !strings.EqualFold(path.Ext(name), ".csv") {
		return c.JSON(http.StatusBadRequest, uploadResponse{Error: msgOnlyCSV})
	}

	f, err := fh.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, uploadResponse{Error: msgInvalidFile})
	}
	defer f.Close()

	ctx := c.Request().Context()
	if err := dc.client.Upload(ctx, name, f); err != nil {
		slog.Warn("upload failed", "filename", name, "err", err)
		msg := msgUploadFailed
		code := http.StatusBadGateway
		if appMsg, ok := analytics.ApplicationMessage(err); ok {
			msg, code = appMsg, http.StatusUnprocessableEntity
		}
		return c.JSON(code, uploadResponse{Error: msg})
	}
	if err := dc.catalog.RecordUpload(ctx, name, fh.Size); err != nil {
		slog.Error("recording upload", "filename", name, "err", err)
	}
	dc.audit(c, catalog.ActionUpload, name)
	return c.JSON(http.StatusOK, uploadResponse{Success: true})
}

func (dc *DashboardController) SearchFiles(c echo.Context) error {
	files, err := dc.catalog.Search(c.QueryParam("q"))
	if err != nil {
		return err
	}
	if files == nil {
		files = []string{}
	}
	return c.JSON(http.StatusOK, map[string]any{"files": files})
}

type controlsResponse struct {
	Error   string `json:"error,omitempty"`
	Columns string `json:"columns"`
	GroupBy string `json:"groupby"`
	Filters string `json:"filters"`
	ShowMap bool   `json:"show_map"`
}

// PostFile selects the base file and returns the refreshed dropdowns and
// filters. On failure they come back in their reset state with the error.
func (dc *DashboardController) PostFile(c echo.Context) error {
	st := stateOf(c)
	selErr := dc.selector.SelectFile(c.Request().Context(), st, c.FormValue("filename"))
	if errors.Is(selErr, common.ErrStale) {
		return selErr
	}

	snap := st.Snapshot()
	resp := controlsResponse{ShowMap: snap.ShowMapButton}
	var err error
	if resp.Columns, err = fragment(c, "column_options", snap); err != nil {
		return err
	}
	if resp.GroupBy, err = fragment(c, "groupby_options", snap); err != nil {
		return err
	}
	if resp.Filters, err = fragment(c, "filter_groups", snap); err != nil {
		return err
	}

	if selErr != nil {
		code, msg := errorStatus(selErr)
		resp.Error = msg
		return c.JSON(code, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

type panelResponse struct {
	Error         string `json:"error,omitempty"`
	HTML          string `json:"html"`
	ShowExport    bool   `json:"show_export"`
	ShowMapToggle bool   `json:"show_map_toggle,omitempty"`
}

func (dc *DashboardController) PostChart(c echo.Context) error {
	return dc.chart(c, dc.dispatcher.Generate)
}

func (dc *DashboardController) PostCompare(c echo.Context) error {
	return dc.chart(c, dc.dispatcher.Compare)
}

func (dc *DashboardController) chart(c echo.Context, run func(context.Context, *viewstate.ViewState, dashboard.ChartForm) (*dashboard.ChartPanel, error)) error {
	var form dashboard.ChartForm
	if err := c.Bind(&form); err != nil {
		return common.NewUserVisibleError(http.StatusBadRequest, "Formulário inválido")
	}
	panel, err := run(c.Request().Context(), stateOf(c), form)
	if err != nil {
		return err
	}
	html, err := fragment(c, "chart_panel", panel)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, panelResponse{HTML: html, ShowExport: panel.ShowExport})
}

func (dc *DashboardController) PostFull(c echo.Context) error {
	panel, err := dc.full.Render(c.Request().Context(), stateOf(c))
	if panel == nil {
		return err
	}
	html, renderErr := fragment(c, "full_panel", panel)
	if renderErr != nil {
		return renderErr
	}
	resp := panelResponse{HTML: html, ShowExport: panel.ShowExport, ShowMapToggle: panel.ShowMapToggle}
	if err != nil {
		if errors.Is(err, common.ErrStale) {
			return err
		}
		code, msg := errorStatus(err)
		resp.Error = msg
		return c.JSON(code, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (dc *DashboardController) PostMap(c echo.Context) error {
	m, err := dc.geo.Show(c.Request().Context(), stateOf(c))
	if err != nil {
		return err
	}
	html, err := fragment(c, "standalone_map", m)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, panelResponse{HTML: html})
}

func (dc *DashboardController) PostMapClose(c echo.Context) error {
	dc.geo.Hide(stateOf(c))
	return c.NoContent(http.StatusNoContent)
}

func (dc *DashboardController) cardOf(c echo.Context) (viewstate.Card, error) {
	plotID := strings.TrimSuffix(c.Param("plot"), ".png")
	card, ok := stateOf(c).Card(plotID)
	if !ok {
		return card, common.NewUserVisibleError(http.StatusNotFound, msgChartNotFound)
	}
	return card, nil
}

func (dc *DashboardController) GetExport(c echo.Context) error {
	card, err := dc.cardOf(c)
	if err != nil {
		return err
	}
	png, name, err := dc.exporter.Export(card)
	if err != nil {
		slog.Warn("export failed", "plot", card.PlotID, "err", err)
		return common.NewUserVisibleError(http.StatusUnprocessableEntity, msgExportFailed)
	}
	dc.audit(c, catalog.ActionExport, card.PlotID)
	return attachment(c, "image/png", name, png)
}

func (dc *DashboardController) GetExportAll(c echo.Context) error {
	cards := stateOf(c).Cards()
	var buf bytes.Buffer
	n, err := dc.exporter.WriteZip(&buf, cards)
	if err != nil {
		return err
	}
	if n == 0 {
		return common.NewUserVisibleError(http.StatusNotFound, msgNothingToExport)
	}
	drawn := 0
	for _, card := range cards {
		if card.Drawable() {
			drawn++
		}
	}
	c.Response().Header().Set(headerSkippedCharts, strconv.Itoa(drawn-n))
	dc.audit(c, catalog.ActionExportAll, fmt.Sprintf("%d gráfico(s)", n))
	return attachment(c, "application/zip", bulkExportName, buf.Bytes())
}

func (dc *DashboardController) PostSaveChart(c echo.Context) error {
	card, err := dc.cardOf(c)
	if err != nil {
		return err
	}
	st := stateOf(c)
	saved, err := dc.saver.Save(c.Request().Context(), card, st.File())
	if err != nil {
		if errors.Is(err, export.ErrUnsupportedFigure) {
			return common.NewUserVisibleError(http.StatusUnprocessableEntity, msgExportFailed)
		}
		return err
	}
	dc.audit(c, catalog.ActionSaveChart, fmt.Sprintf("%s (%s)", saved.Name, card.PlotID))
	return c.JSON(http.StatusOK, map[string]string{
		"filename": saved.Name,
		"url":      c.Echo().Reverse("saved-chart", saved.Name),
	})
}

type savedChartEntry struct {
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
	URL       string    `json:"url"`
}

func (dc *DashboardController) ListSavedCharts(c echo.Context) error {
	charts, err := dc.saver.List(c.Request().Context())
	if err != nil {
		return err
	}
	entries := make([]savedChartEntry, 0, len(charts))
	for _, sc := range charts {
		entries = append(entries, savedChartEntry{
			Name:      sc.Name,
			Title:     sc.Title,
			Filename:  sc.Filename,
			CreatedAt: sc.CreatedAt,
			URL:       c.Echo().Reverse("saved-chart", sc.Name),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{"charts": entries})
}

func (dc *DashboardController) GetSavedChart(c echo.Context) error {
	saved, err := dc.saver.Get(c.Request().Context(), c.Param("name"))
	if errors.Is(err, catalog.ErrNotFound) {
		return common.NewUserVisibleError(http.StatusNotFound, msgSavedNotFound)
	}
	if err != nil {
		return err
	}
	return attachment(c, "image/png", saved.Name, saved.PNG)
}

// PostExported records downloads the page made on its own with Plotly.
func (dc *DashboardController) PostExported(c echo.Context) error {
	params, err := c.FormParams()
	if err != nil {
		return common.NewUserVisibleError(http.StatusBadRequest, "Formulário inválido")
	}
	plots := params["plot"]
	if len(plots) == 0 {
		return common.NewUserVisibleError(http.StatusBadRequest, msgChartNotFound)
	}
	action := catalog.ActionExport
	if len(plots) > 1 {
		action = catalog.ActionExportAll
	}
	dc.audit(c, action, strings.Join(plots, ", "))
	return c.NoContent(http.StatusNoContent)
}

func (dc *DashboardController) ListActivity(c echo.Context) error {
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	entries, err := dc.store.ListActivity(c.Request().Context(), limit)
	if err != nil {
		return err
	}
	if entries == nil {
		entries = []catalog.Activity{}
	}
	return c.JSON(http.StatusOK, map[string]any{"atividades": entries})
}

// audit writes an activity entry. Failures are logged and do not fail the
// request.
func (dc *DashboardController) audit(c echo.Context, action, description string) {
	a := catalog.Activity{
		Action:      action,
		Description: description,
		IP:          c.RealIP(),
		Session:     sessionOf(c),
	}
	if err := dc.store.RecordActivity(c.Request().Context(), a); err != nil {
		slog.Warn("recording activity", "action", action, "err", err)
	}
}

func attachment(c echo.Context, contentType, name string, body []byte) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", name))
	return c.Blob(http.StatusOK, contentType, body)
}

func fragment(c echo.Context, name string, data any) (string, error) {
	r, ok := c.Echo().Renderer.(*TemplateRenderer)
	if !ok {
		return "", fmt.Errorf("renderer does not support fragments")
	}
	return r.Fragment(name, data)
}
