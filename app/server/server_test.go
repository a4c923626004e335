package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmpsc/spa/app/analytics"
	"github.com/fmpsc/spa/app/catalog"
	"github.com/fmpsc/spa/app/common"
	"github.com/fmpsc/spa/app/config"
)

const idadeFigure = `{"data": [{"type": "bar", "x": ["18-20", "21-25"], "y": [12, 30]}], "layout": {"title": {"text": "Idade"}}}`

const heatmapFigure = `{"data": [{"type": "heatmap", "z": [[1, 0.3], [0.3, 1]], "x": ["Idade", "Renda"], "y": ["Idade", "Renda"]}], "layout": {}}`

type fakeEngine struct {
	columnCalls atomic.Int32
	chartCalls  atomic.Int32
	uploads     atomic.Int32
	lastChart   atomic.Value
}

func (f *fakeEngine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case analytics.EndpointUpload:
		f.uploads.Add(1)
		io.WriteString(w, `{"success": true}`)
	case analytics.EndpointColumns:
		f.columnCalls.Add(1)
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["filename"] == "ausente.csv" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error": "Arquivo não encontrado"}`)
			return
		}
		io.WriteString(w, `{"columns": [
			{"name": "Idade", "is_numeric": true, "unique_values_count": 40},
			{"name": "Curso", "is_numeric": false, "unique_values_count": 2, "sample_values": ["ADS", "GRH"]}
		]}`)
	case analytics.EndpointChart:
		f.chartCalls.Add(1)
		body, _ := io.ReadAll(r.Body)
		f.lastChart.Store(string(body))
		if strings.Contains(string(body), `"coluna":"Correlação"`) {
			io.WriteString(w, `{"graficos": [{"title": "Correlação", "fig": `+heatmapFigure+`}]}`)
			return
		}
		io.WriteString(w, `{"graficos": [{"title": "Idade", "fig": `+idadeFigure+`}]}`)
	case analytics.EndpointGeoMap:
		io.WriteString(w, `{"dados": [{"nome": "Palhoça", "lat": -27.64, "lng": -48.67, "quantidade": 10}],
			"estatisticas": {"total_alunos": 10, "total_cidades": 1, "maior_concentracao": "Palhoça", "alunos_maior_cidade": 10}}`)
	default:
		http.NotFound(w, r)
	}
}

type testServer struct {
	e      *echo.Echo
	engine *fakeEngine
	cookie *http.Cookie
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	engine := &fakeEngine{}
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	db, err := catalog.NewSQLiteDB(t.TempDir(), false)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := catalog.NewSQLiteStore(db)
	require.NoError(t, store.Init())
	index, err := catalog.NewFileIndex()
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })
	cat := catalog.New(store, index)

	conf := config.DefaultConfig()
	conf.AnalyticsURL = srv.URL
	conf.Export = config.ExportDefn{Width: 400, Height: 300}

	controller := NewDashboardController(analytics.NewRestClient(srv.URL, 5*time.Second), cat, store, &conf)
	return &testServer{
		e:      NewEcho(controller, &conf, config.ServerRuntimeConfig{}),
		engine: engine,
	}
}

func (ts *testServer) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	if ts.cookie != nil {
		req.AddCookie(ts.cookie)
	}
	rec := httptest.NewRecorder()
	ts.e.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			ts.cookie = c
		}
	}
	return rec
}

func (ts *testServer) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	return ts.do(t, req)
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestUIFile_FillsControls(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.postForm(t, "/ui/file", url.Values{"filename": {"alunos.csv"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode(t, rec)
	assert.Contains(t, resp["columns"], `<option value="Idade">Idade</option>`)
	assert.Contains(t, resp["columns"], "-- escolha --")
	assert.Contains(t, resp["groupby"], "Nenhum agrupamento")
	assert.Contains(t, resp["filters"], `id="filter_Curso"`)
	assert.Contains(t, resp["filters"], `value="cb_Curso_ADS"`)
	assert.Equal(t, true, resp["show_map"])
	assert.NotNil(t, ts.cookie)
}

func TestUIFile_FailureKeepsResetControls(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.postForm(t, "/ui/file", url.Values{"filename": {"ausente.csv"}})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	resp := decode(t, rec)
	assert.Equal(t, "Arquivo não encontrado", resp["error"])
	assert.Contains(t, resp["columns"], "Selecione um arquivo primeiro")
	assert.NotContains(t, resp["columns"], "Idade")
	assert.Equal(t, "", strings.TrimSpace(resp["filters"].(string)))
}

func TestUIChart_OneFigureOneCard(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.postForm(t, "/ui/file", url.Values{"filename": {"alunos.csv"}}).Code)

	rec := ts.postForm(t, "/ui/chart", url.Values{
		"coluna": {"Idade"},
		"tipo":   {"bar"},
		"filtro": {"cb_Curso_ADS"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := decode(t, rec)
	html := resp["html"].(string)
	assert.Equal(t, 1, strings.Count(html, `class="card mb-3"`))
	assert.Equal(t, 1, strings.Count(html, "data-figure="))
	assert.Contains(t, html, "<strong>Idade</strong>")
	assert.Contains(t, html, `id="chart_0"`)
	assert.Equal(t, true, resp["show_export"])
	assert.Equal(t, int32(1), ts.engine.chartCalls.Load())

	var sent map[string]any
	require.NoError(t, json.Unmarshal([]byte(ts.engine.lastChart.Load().(string)), &sent))
	assert.Equal(t, "alunos.csv", sent["filename"])
	assert.Equal(t, map[string]any{"Curso": []any{"ADS"}}, sent["filtros"])
	assert.Nil(t, sent["groupby"])
}

func TestUICompare_SameFileRejectedBeforeNetwork(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.postForm(t, "/ui/file", url.Values{"filename": {"alunos.csv"}}).Code)

	rec := ts.postForm(t, "/ui/compare", url.Values{
		"coluna":       {"Idade"},
		"compare_with": {"alunos.csv"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotEmpty(t, decode(t, rec)["error"])
	assert.Equal(t, int32(0), ts.engine.chartCalls.Load())
}

func TestUIChart_WithoutFile(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.postForm(t, "/ui/chart", url.Values{"coluna": {"Idade"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, int32(0), ts.engine.chartCalls.Load())
}

func TestExport_AfterChart(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.postForm(t, "/ui/file", url.Values{"filename": {"alunos.csv"}}).Code)
	require.Equal(t, http.StatusOK, ts.postForm(t, "/ui/chart", url.Values{"coluna": {"Idade"}}).Code)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/export/chart_0.png", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "image/png", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), `filename="chart_0.png"`)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/export-all", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	require.Len(t, zr.File, 1)
	assert.Equal(t, "chart_0.png", zr.File[0].Name)
	assert.Equal(t, "0", rec.Header().Get(headerSkippedCharts))

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/export/chart_9.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUIChart_HeatmapOffersOnlyBrowserDownload(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.postForm(t, "/ui/file", url.Values{"filename": {"alunos.csv"}}).Code)

	rec := ts.postForm(t, "/ui/chart", url.Values{"coluna": {"Correlação"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	html := decode(t, rec)["html"].(string)
	assert.Contains(t, html, `data-download-png="chart_0"`)
	assert.NotContains(t, html, "data-save-chart")

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/export/chart_0.png", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/export-all", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSaveChart_RoundTrip(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.postForm(t, "/ui/file", url.Values{"filename": {"alunos.csv"}}).Code)
	require.Equal(t, http.StatusOK, ts.postForm(t, "/ui/chart", url.Values{"coluna": {"Idade"}}).Code)

	rec := ts.postForm(t, "/charts/save/chart_0", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode(t, rec)
	name := resp["filename"].(string)
	assert.Regexp(t, `^chart_[0-9a-f]{8}\.png$`, name)
	assert.Equal(t, "/charts/saved/"+name, resp["url"])

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/charts/saved/"+name, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("\x89PNG")))

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/charts/saved", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	charts := decode(t, rec)["charts"].([]any)
	require.Len(t, charts, 1)
	entry := charts[0].(map[string]any)
	assert.Equal(t, name, entry["name"])
	assert.Equal(t, "alunos.csv", entry["filename"])
	assert.Equal(t, "Idade", entry["title"])

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/charts/saved/chart_00000000.png", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUIMap_ShowAndClose(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.postForm(t, "/ui/map", url.Values{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.Equal(t, http.StatusOK, ts.postForm(t, "/ui/file", url.Values{"filename": {"alunos.csv"}}).Code)
	rec = ts.postForm(t, "/ui/map", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	html := decode(t, rec)["html"].(string)
	assert.Contains(t, html, `id="mapa_geografico"`)
	assert.Contains(t, html, "data-map=")
	assert.Contains(t, html, "Palhoça")

	rec = ts.postForm(t, "/ui/map/close", url.Values{})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func upload(t *testing.T, ts *testServer, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if name != "" {
		fw, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		io.WriteString(fw, content)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return ts.do(t, req)
}

func TestUpload(t *testing.T) {
	ts := newTestServer(t)

	rec := upload(t, ts, "notas.txt", "a,b\n1,2\n")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Envie apenas CSV", decode(t, rec)["error"])

	rec = upload(t, ts, "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Nenhum arquivo enviado", decode(t, rec)["error"])
	assert.Equal(t, int32(0), ts.engine.uploads.Load())

	rec = upload(t, ts, "Matrículas 2024.csv", "curso,idade\nADS,20\n")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, decode(t, rec)["success"])
	assert.Equal(t, int32(1), ts.engine.uploads.Load())

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/files/search?q=matricula", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []any{"Matrículas 2024.csv"}, decode(t, rec)["files"])

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Matrículas 2024.csv")
}

func TestActivityLog(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, upload(t, ts, "alunos.csv", "curso\nADS\n").Code)
	require.Equal(t, http.StatusOK, ts.postForm(t, "/ui/file", url.Values{"filename": {"alunos.csv"}}).Code)
	require.Equal(t, http.StatusOK, ts.postForm(t, "/ui/chart", url.Values{"coluna": {"Idade"}}).Code)
	require.Equal(t, http.StatusOK, ts.do(t, httptest.NewRequest(http.MethodGet, "/export/chart_0.png", nil)).Code)
	require.Equal(t, http.StatusNoContent, ts.postForm(t, "/ui/exported", url.Values{"plot": {"chart_0", "chart_1"}}).Code)
	assert.Equal(t, http.StatusBadRequest, ts.postForm(t, "/ui/exported", url.Values{}).Code)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/activity", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode(t, rec)["atividades"].([]any)
	require.Len(t, entries, 3)

	actions := map[string]map[string]any{}
	for _, e := range entries {
		entry := e.(map[string]any)
		actions[entry["acao"].(string)] = entry
		assert.Equal(t, "192.0.2.1", entry["ip"])
		assert.Equal(t, ts.cookie.Value, entry["sessao"])
	}
	assert.Equal(t, "alunos.csv", actions[catalog.ActionUpload]["descricao"])
	assert.Equal(t, "chart_0", actions[catalog.ActionExport]["descricao"])
	assert.Equal(t, "chart_0, chart_1", actions[catalog.ActionExportAll]["descricao"])
}

func TestPages(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="graficoContainer"`)
	assert.Contains(t, rec.Body.String(), "/static/app.js?v=")

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/quem-somos", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "<h1>Quem somos</h1>")

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])

	rec = ts.do(t, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("ETag"))
}

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantMsg  string
	}{
		{"User visible", common.NewUserVisibleError(http.StatusBadRequest, "Arquivo inválido"), http.StatusBadRequest, "Arquivo inválido"},
		{"User visible without message", common.NewUserVisibleError(http.StatusNotFound, ""), http.StatusNotFound, http.StatusText(http.StatusNotFound)},
		{"Wrapped user visible", fmt.Errorf("upload: %w", common.NewUserVisibleError(http.StatusBadRequest, "Envie apenas CSV")), http.StatusBadRequest, "Envie apenas CSV"},
		{"Stale", common.ErrStale, http.StatusConflict, common.ErrStale.Error()},
		{"Echo error", echo.NewHTTPError(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed)},
		{"Plain error", assert.AnError, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, msg := errorStatus(tt.err)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}
