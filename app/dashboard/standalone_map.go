package dashboard

import (
	"context"
	"log/slog"

	"github.com/fmpsc/spa/app/analytics"
	"github.com/fmpsc/spa/app/config"
	"github.com/fmpsc/spa/app/geomap"
	"github.com/fmpsc/spa/app/viewstate"
)

const (
	msgMapFailed = "Erro ao carregar mapa geográfico"

	StandaloneMapID = "mapa_geografico"
)

type StandaloneMap struct {
	client  analytics.Client
	mapDefn config.MapDefn
}

func NewStandaloneMap(client analytics.Client, mapDefn config.MapDefn) *StandaloneMap {
	return &StandaloneMap{client: client, mapDefn: mapDefn}
}

// Show loads the geographic data of the base file into the session's single
// map, disposing of the map shown before.
func (s *StandaloneMap) Show(ctx context.Context, st *viewstate.ViewState) (*geomap.Map, error) {
	file := st.File()
	if file == "" {
		return nil, validationError(msgSelectFileFirst)
	}

	ctx, seq := st.Map.Open(ctx)
	geo, err := s.client.GeoMap(ctx, file)
	if err != nil {
		st.Map.Fail(seq)
		slog.Warn("map request failed", "filename", file, "err", err)
		return nil, userError(err, msgMapFailed)
	}

	m := geomap.BuildMap(StandaloneMapID, geo.Points, geo.Stats, geomap.Standalone, s.mapDefn)
	if err := st.Map.Attach(seq, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *StandaloneMap) Hide(st *viewstate.ViewState) {
	st.Map.Close()
}
