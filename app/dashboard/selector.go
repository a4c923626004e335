package dashboard

import (
	"context"
	"log/slog"

	"github.com/fmpsc/spa/app/analytics"
	"github.com/fmpsc/spa/app/viewstate"
)

const msgColumnsFailed = "Erro ao buscar colunas."

// ColumnRecorder is told about the columns of every file that was opened.
type ColumnRecorder interface {
	RecordColumns(ctx context.Context, filename string, columns []string) error
}

type ColumnSelector struct {
	client   analytics.Client
	recorder ColumnRecorder
	ceiling  int
}

func NewColumnSelector(client analytics.Client, recorder ColumnRecorder, ceiling int) *ColumnSelector {
	return &ColumnSelector{client: client, recorder: recorder, ceiling: ceiling}
}

// SelectFile makes filename the base file. The dropdowns and filters are
// reset right away and filled once the engine answers. On failure they stay
// reset.
func (cs *ColumnSelector) SelectFile(ctx context.Context, st *viewstate.ViewState, filename string) error {
	ctx, tok := st.Begin(ctx, viewstate.ViewColumns)
	defer tok.Done()

	st.SelectFile(filename)
	if filename == "" {
		return nil
	}

	cols, err := cs.client.Columns(ctx, filename)
	if err != nil {
		slog.Warn("fetching columns failed", "filename", filename, "err", err)
		return userError(err, msgColumnsFailed)
	}
	if err := st.ApplyColumns(tok, cols, cs.ceiling); err != nil {
		return err
	}

	if cs.recorder != nil {
		names := make([]string, 0, len(cols))
		for _, c := range cols {
			names = append(names, c.Name)
		}
		if err := cs.recorder.RecordColumns(ctx, filename, names); err != nil {
			slog.Warn("recording columns failed", "filename", filename, "err", err)
		}
	}
	return nil
}
