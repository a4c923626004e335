package export

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/fmpsc/spa/app/catalog"
	"github.com/fmpsc/spa/app/viewstate"
)

// Saver keeps exported charts on the server so they can be downloaded again.
type Saver struct {
	exporter *Exporter
	store    catalog.Store
}

func NewSaver(exporter *Exporter, store catalog.Store) *Saver {
	return &Saver{exporter: exporter, store: store}
}

// SavedChartName returns a fresh name of the form chart_<8 hex digits>.png.
func SavedChartName() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "chart_" + id[:8] + ".png"
}

func (s *Saver) Save(ctx context.Context, card viewstate.Card, filename string) (*catalog.SavedChart, error) {
	png, _, err := s.exporter.Export(card)
	if err != nil {
		return nil, err
	}
	saved := catalog.SavedChart{
		Name:     SavedChartName(),
		PlotID:   card.PlotID,
		Title:    card.Title,
		Filename: filename,
		PNG:      png,
	}
	if err := s.store.SaveChart(ctx, saved); err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *Saver) Get(ctx context.Context, name string) (*catalog.SavedChart, error) {
	return s.store.GetSavedChart(ctx, name)
}

// List returns the most recently saved charts, without their images.
func (s *Saver) List(ctx context.Context) ([]catalog.SavedChart, error) {
	return s.store.ListSavedCharts(ctx)
}
