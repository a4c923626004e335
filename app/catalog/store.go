package catalog

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("not found")

// UploadedFile is a CSV that was forwarded to the analytics engine.
// Columns is filled in once the column list has been fetched.
type UploadedFile struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	UploadedAt time.Time `json:"uploaded_at"`
	Columns    []string  `json:"columns,omitempty"`
}

// SavedChart is a PNG kept on the server so it can be downloaded later.
type SavedChart struct {
	Name      string    `json:"name"`
	PlotID    string    `json:"plot_id"`
	Title     string    `json:"title"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"created_at"`
	PNG       []byte    `json:"-"`
}

// Activity is one entry of the audit trail: what was done, from where and
// by which browser session.
type Activity struct {
	Action      string    `json:"acao"`
	Description string    `json:"descricao,omitempty"`
	IP          string    `json:"ip"`
	Session     string    `json:"sessao,omitempty"`
	At          time.Time `json:"data_hora"`
}

const (
	ActionUpload    = "Upload"
	ActionSaveChart = "Salvar gráfico"
	ActionExport    = "Exportar gráfico"
	ActionExportAll = "Exportar todos"
)

type Store interface {
	Init() error
	RecordUpload(ctx context.Context, f UploadedFile) error
	SetColumns(ctx context.Context, filename string, columns []string) error
	ListUploads(ctx context.Context) ([]UploadedFile, error)
	SaveChart(ctx context.Context, c SavedChart) error
	GetSavedChart(ctx context.Context, name string) (*SavedChart, error)
	ListSavedCharts(ctx context.Context) ([]SavedChart, error)
	RecordActivity(ctx context.Context, a Activity) error
	ListActivity(ctx context.Context, limit int) ([]Activity, error)
}
