package geomap

import (
	"encoding/json"
	"html/template"

	"github.com/fmpsc/spa/app/analytics"
	"github.com/fmpsc/spa/app/config"
)

type Variant int

const (
	// Embedded is a map card inside the full dashboard.
	Embedded Variant = iota
	// Standalone is the map panel toggled from its own button.
	Standalone
)

type markerStyle struct {
	Color       string  `json:"color"`
	Weight      int     `json:"weight"`
	Opacity     float64 `json:"opacity"`
	FillOpacity float64 `json:"fillOpacity"`
}

// ClientConfig is everything the browser needs to draw the map with Leaflet.
type ClientConfig struct {
	Center       [2]float64  `json:"center"`
	Zoom         int         `json:"zoom"`
	TileURL      string      `json:"tileUrl"`
	Attribution  string      `json:"attribution"`
	MaxZoom      int         `json:"maxZoom"`
	Style        markerStyle `json:"style"`
	Markers      []Marker    `json:"markers"`
	Bounds       *Bounds     `json:"bounds,omitempty"`
	Padding      [2]int      `json:"padding"`
	PopupOnHover bool        `json:"popupOnHover"`
}

// Stats are the four numbers shown next to a map.
type Stats struct {
	TotalStudents       int
	TotalCities         int
	LargestCity         string
	StudentsLargestCity int
}

func StatsOf(s *analytics.MapStats) Stats {
	if s == nil {
		return Stats{LargestCity: "-"}
	}
	st := Stats{
		TotalStudents:       s.TotalStudents,
		TotalCities:         s.TotalCities,
		LargestCity:         s.LargestCity,
		StudentsLargestCity: s.StudentsLargestCity,
	}
	if st.LargestCity == "" {
		st.LargestCity = "-"
	}
	return st
}

type Map struct {
	DOMID    string
	Variant  Variant
	Client   ClientConfig
	Stats    Stats
	HasStats bool
	// Summary is the top cities chart of the standalone variant.
	Summary template.HTML
}

// ClientJSON is the value of the data-map attribute read by the page script.
func (m *Map) ClientJSON() (string, error) {
	b, err := json.Marshal(m.Client)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// BuildMap lays out markers for points. An embedded map without points is
// not drawn at all and BuildMap returns nil.
func BuildMap(domID string, points []analytics.CityPoint, stats *analytics.MapStats, variant Variant, defn config.MapDefn) *Map {
	if variant == Embedded && len(points) == 0 {
		return nil
	}

	markers := BuildMarkers(points)
	if markers == nil {
		markers = []Marker{}
	}
	m := &Map{
		DOMID:   domID,
		Variant: variant,
		Client: ClientConfig{
			Center:      [2]float64{defn.CenterLat, defn.CenterLng},
			Zoom:        defn.Zoom,
			TileURL:     defn.TileURL,
			Attribution: defn.Attribution,
			MaxZoom:     defn.MaxZoom,
			Style: markerStyle{
				Color:       StrokeColor,
				Weight:      StrokeWeight,
				Opacity:     StrokeOpacity,
				FillOpacity: FillOpacity,
			},
			Markers:      markers,
			Bounds:       BoundsOf(markers),
			Padding:      [2]int{50, 50},
			PopupOnHover: variant == Standalone,
		},
		HasStats: stats != nil || variant == Standalone,
		Stats:    StatsOf(stats),
	}
	if variant == Standalone && len(markers) > 0 {
		m.Summary = TopCitiesChart(domID+"_top", markers, 10)
	}
	return m
}
