package export

import (
	"archive/zip"
	"fmt"
	"io"
	"log/slog"

	"github.com/fmpsc/spa/app/viewstate"
)

// Exporter turns rendered cards into downloadable PNG files.
type Exporter struct {
	raster *Rasterizer
}

func NewExporter(raster *Rasterizer) *Exporter {
	return &Exporter{raster: raster}
}

func FileName(plotID string) string {
	return plotID + ".png"
}

// Export rasterizes one card and returns the image with its download name.
func (e *Exporter) Export(card viewstate.Card) ([]byte, string, error) {
	if !card.Exportable() {
		return nil, "", fmt.Errorf("%w: card %s has no drawable figure", ErrUnsupportedFigure, card.PlotID)
	}
	png, err := e.raster.PNG(card.Figure, card.Title)
	if err != nil {
		return nil, "", fmt.Errorf("exporting %s: %w", card.PlotID, err)
	}
	return png, FileName(card.PlotID), nil
}

// ExportAll exports the cards one after another, handing each image to sink
// before starting the next. Cards that fail to export are logged and skipped;
// an error from sink stops the run. It returns how many images reached sink.
func (e *Exporter) ExportAll(cards []viewstate.Card, sink func(name string, png []byte) error) (int, error) {
	n := 0
	for _, card := range cards {
		png, name, err := e.Export(card)
		if err != nil {
			slog.Warn("skipping chart in bulk export", "plot", card.PlotID, "err", err)
			continue
		}
		if err := sink(name, png); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// WriteZip writes every exportable card into a zip archive.
func (e *Exporter) WriteZip(w io.Writer, cards []viewstate.Card) (int, error) {
	zw := zip.NewWriter(w)
	n, err := e.ExportAll(cards, func(name string, png []byte) error {
		f, err := zw.Create(name)
		if err != nil {
			return err
		}
		_, err = f.Write(png)
		return err
	})
	if err != nil {
		zw.Close()
		return n, err
	}
	return n, zw.Close()
}
