package viewstate

import (
	"context"
	"sync"

	"github.com/fmpsc/spa/app/analytics"
	"github.com/fmpsc/spa/app/common"
	"github.com/fmpsc/spa/app/geomap"
)

const (
	PlaceholderNoFile  = "Selecione um arquivo primeiro"
	PlaceholderChoose  = "-- escolha --"
	GroupByNoneLabel   = "Nenhum agrupamento"
	FilterGroupsHeader = "Filtros rápidos (marque valores)"
)

type Option struct {
	Value string
	Label string
}

// Card is one rendered chart. Figure is passed to Plotly as is; RenderError
// is set instead when the figure could not be drawn. ExportError is set when
// the figure draws in the browser but cannot be rasterized on the server.
type Card struct {
	PlotID      string
	Title       string
	Badge       string
	Figure      analytics.Figure
	RenderError string
	ExportError string
}

// Drawable reports whether the browser has a plot for this card.
func (c Card) Drawable() bool {
	return c.RenderError == "" && len(c.Figure) > 0
}

// Exportable reports whether the server can produce a PNG of this card.
func (c Card) Exportable() bool {
	return c.Drawable() && c.ExportError == ""
}

// Snapshot is a consistent copy of the view state used for rendering.
type Snapshot struct {
	File              string
	ColumnPlaceholder string
	ColumnOptions     []Option
	GroupByOptions    []Option
	FilterGroups      []FilterGroup
	ShowMapButton     bool
	Cards             []Card
}

// ViewState is the state of one browser session's dashboard.
type ViewState struct {
	mu   sync.Mutex
	gens Generations

	file          string
	columns       []analytics.ColumnDescriptor
	filterGroups  []FilterGroup
	showMapButton bool
	cards         []Card

	Map geomap.MapView
}

func New() *ViewState {
	return &ViewState{}
}

func (s *ViewState) Begin(ctx context.Context, v View) (context.Context, Token) {
	return s.gens.Begin(ctx, v)
}

// SelectFile resets everything derived from the previous file.
func (s *ViewState) SelectFile(filename string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.file = filename
	s.columns = nil
	s.filterGroups = nil
	s.showMapButton = filename != ""
}

// ApplyColumns stores the columns of the selected file and rebuilds the
// filter groups, unless tok has been superseded.
func (s *ViewState) ApplyColumns(tok Token, cols []analytics.ColumnDescriptor, ceiling int) error {
	groups := BuildFilterGroups(cols, ceiling)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gens.IsCurrent(tok) {
		return common.ErrStale
	}
	s.columns = cols
	if s.columns == nil {
		s.columns = []analytics.ColumnDescriptor{}
	}
	s.filterGroups = groups
	return nil
}

// SetCards replaces the exportable cards, unless tok has been superseded.
func (s *ViewState) SetCards(tok Token, cards []Card) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.gens.IsCurrent(tok) {
		return common.ErrStale
	}
	s.cards = cards
	return nil
}

func (s *ViewState) File() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file
}

func (s *ViewState) FilterGroups() []FilterGroup {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filterGroups
}

// Card finds a rendered card by its plot id.
func (s *ViewState) Card(plotID string) (Card, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.cards {
		if c.PlotID == plotID {
			return c, true
		}
	}
	return Card{}, false
}

func (s *ViewState) Cards() []Card {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Card(nil), s.cards...)
}

func (s *ViewState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		File:              s.file,
		ColumnPlaceholder: PlaceholderNoFile,
		GroupByOptions:    []Option{{Value: "", Label: GroupByNoneLabel}},
		FilterGroups:      s.filterGroups,
		ShowMapButton:     s.showMapButton,
		Cards:             append([]Card(nil), s.cards...),
	}
	if s.columns != nil {
		snap.ColumnPlaceholder = PlaceholderChoose
		for _, col := range s.columns {
			opt := Option{Value: col.Name, Label: col.Name}
			snap.ColumnOptions = append(snap.ColumnOptions, opt)
			snap.GroupByOptions = append(snap.GroupByOptions, opt)
		}
	}
	return snap
}

// Close cancels in-flight requests and releases the map.
func (s *ViewState) Close() {
	s.gens.CancelAll()
	s.Map.Close()
}
