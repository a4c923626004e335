package analytics

import "encoding/json"

// ChartType is the `tipo` accepted by /api/grafico.
type ChartType string

const (
	ChartBar       ChartType = "bar"
	ChartPie       ChartType = "pie"
	ChartLine      ChartType = "line"
	ChartHistogram ChartType = "histogram"
)

func (t ChartType) Valid() bool {
	switch t {
	case ChartBar, ChartPie, ChartLine, ChartHistogram:
		return true
	}
	return false
}

// VisualizationMap is the VisualizationItem.Tipo that carries map data
// instead of a figure.
const VisualizationMap = "mapa"

type ColumnDescriptor struct {
	Name              string   `json:"name"`
	IsNumeric         bool     `json:"is_numeric"`
	UniqueValuesCount int      `json:"unique_values_count"`
	SampleValues      []string `json:"sample_values"`
}

// FilterSelection maps a column name to the values the user ticked.
type FilterSelection map[string][]string

type ChartRequest struct {
	Filename    string          `json:"filename"`
	Column      string          `json:"coluna"`
	Type        ChartType       `json:"tipo"`
	GroupBy     *string         `json:"groupby"`
	Filters     FilterSelection `json:"filtros"`
	CompareWith string          `json:"compare_with,omitempty"`
}

// Figure is a Plotly figure kept as raw JSON. It is handed to the browser
// untouched.
type Figure = json.RawMessage

type FigureSpec struct {
	Title string `json:"title,omitempty"`
	Fig   Figure `json:"fig,omitempty"`
}

type CityPoint struct {
	Name     string  `json:"nome"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Quantity int     `json:"quantidade"`
}

type MapStats struct {
	TotalStudents       int    `json:"total_alunos"`
	TotalCities         int    `json:"total_cidades"`
	LargestCity         string `json:"maior_concentracao"`
	StudentsLargestCity int    `json:"alunos_maior_cidade"`
}

type VisualizationItem struct {
	Type    string      `json:"tipo"`
	Title   string      `json:"titulo"`
	Fig     Figure      `json:"fig,omitempty"`
	MapData []CityPoint `json:"dados_mapa,omitempty"`
	Stats   *MapStats   `json:"estatisticas,omitempty"`
}

func (v VisualizationItem) IsMap() bool {
	return v.Type == VisualizationMap
}

type GeoMap struct {
	Points []CityPoint `json:"dados"`
	Stats  *MapStats   `json:"estatisticas,omitempty"`
}

type filenameRequest struct {
	Filename string `json:"filename"`
}

// Response envelopes. Every endpoint may answer with an `error` field instead.
type errorEnvelope struct {
	Error string `json:"error,omitempty"`
}

type columnsResponse struct {
	errorEnvelope
	Columns []ColumnDescriptor `json:"columns"`
}

type chartResponse struct {
	errorEnvelope
	Charts []FigureSpec `json:"graficos"`
}

type visualizationsResponse struct {
	errorEnvelope
	Visualizations []VisualizationItem `json:"visualizacoes"`
}

type geoMapResponse struct {
	errorEnvelope
	GeoMap
}

type uploadResponse struct {
	errorEnvelope
	Success bool `json:"success"`
}
