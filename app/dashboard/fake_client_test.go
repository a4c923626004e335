package dashboard

import (
	"context"
	"io"
	"sync"

	"github.com/fmpsc/spa/app/analytics"
)

// fakeClient is an in-memory analytics engine that records every call.
type fakeClient struct {
	mu       sync.Mutex
	calls    []string
	requests []analytics.ChartRequest

	columns map[string][]analytics.ColumnDescriptor
	figs    []analytics.FigureSpec
	items   []analytics.VisualizationItem
	geo     *analytics.GeoMap
	err     error
	// block, when set, is waited on before answering Columns.
	block chan struct{}
}

var _ analytics.Client = &fakeClient{}

func (f *fakeClient) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeClient) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeClient) Upload(ctx context.Context, filename string, body io.Reader) error {
	f.record("upload")
	return f.err
}

func (f *fakeClient) Columns(ctx context.Context, filename string) ([]analytics.ColumnDescriptor, error) {
	f.record("columns")
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, &analytics.TransportError{Endpoint: analytics.EndpointColumns, Err: ctx.Err()}
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.columns[filename], nil
}

func (f *fakeClient) Chart(ctx context.Context, req analytics.ChartRequest) ([]analytics.FigureSpec, error) {
	f.record("chart")
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.figs, nil
}

func (f *fakeClient) Visualizations(ctx context.Context, filename string) ([]analytics.VisualizationItem, error) {
	f.record("visualizations")
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func (f *fakeClient) GeoMap(ctx context.Context, filename string) (*analytics.GeoMap, error) {
	f.record("geomap")
	if f.err != nil {
		return nil, f.err
	}
	return f.geo, nil
}

type recordedColumns struct {
	mu   sync.Mutex
	seen map[string][]string
}

func (r *recordedColumns) RecordColumns(ctx context.Context, filename string, columns []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen == nil {
		r.seen = map[string][]string{}
	}
	r.seen[filename] = columns
	return nil
}
