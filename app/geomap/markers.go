package geomap

import (
	"fmt"
	"html/template"
	"math"

	"github.com/fmpsc/spa/app/analytics"
)

const (
	MinRadius = 8.0
	MaxRadius = 40.0

	StrokeColor   = "#0B3353"
	StrokeWeight  = 2
	StrokeOpacity = 1.0
	FillOpacity   = 0.7

	UnknownCity = "Cidade desconhecida"
)

// Marker is one Leaflet circle marker, ready to be handed to the browser.
type Marker struct {
	Name      string  `json:"name"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	Quantity  int     `json:"quantity"`
	Radius    float64 `json:"radius"`
	FillColor string  `json:"fillColor"`
	Popup     string  `json:"popup"`
}

// MarkerRadius scales q into [8, 40] pixels relative to the largest quantity.
func MarkerRadius(q, max int) float64 {
	if max <= 0 {
		return MinRadius
	}
	r := MinRadius + (float64(q)/float64(max))*32
	return math.Max(MinRadius, math.Min(MaxRadius, r))
}

// IntensityColor interpolates from the low anchor rgb(231, 142, 116) to the
// high anchor rgb(181, 42, 66).
func IntensityColor(q, min, max int) string {
	span := float64(max - min)
	if span == 0 {
		span = 1
	}
	t := float64(q-min) / span
	red := math.Round(231 - t*50)
	green := math.Round(142 - t*100)
	blue := math.Round(116 - t*50)
	return fmt.Sprintf("rgb(%d, %d, %d)", int(red), int(green), int(blue))
}

func quantityOf(p analytics.CityPoint) int {
	if p.Quantity == 0 {
		return 1
	}
	return p.Quantity
}

func popupHTML(name string, q int) string {
	return fmt.Sprintf("<strong>%s</strong><br><strong>%d</strong> aluno(s)", template.HTMLEscapeString(name), q)
}

// BuildMarkers computes size, color and popup for every point.
func BuildMarkers(points []analytics.CityPoint) []Marker {
	if len(points) == 0 {
		return nil
	}

	minQ, maxQ := quantityOf(points[0]), quantityOf(points[0])
	for _, p := range points[1:] {
		q := quantityOf(p)
		minQ = min(minQ, q)
		maxQ = max(maxQ, q)
	}

	markers := make([]Marker, 0, len(points))
	for _, p := range points {
		q := quantityOf(p)
		name := p.Name
		if name == "" {
			name = UnknownCity
		}
		markers = append(markers, Marker{
			Name:      name,
			Lat:       p.Lat,
			Lng:       p.Lng,
			Quantity:  q,
			Radius:    MarkerRadius(q, maxQ),
			FillColor: IntensityColor(q, minQ, maxQ),
			Popup:     popupHTML(name, q),
		})
	}
	return markers
}

// Bounds is a [[south, west], [north, east]] box as Leaflet expects it.
type Bounds [2][2]float64

// BoundsOf returns the bounding box of the markers, or nil when there are none.
func BoundsOf(markers []Marker) *Bounds {
	if len(markers) == 0 {
		return nil
	}
	b := Bounds{{markers[0].Lat, markers[0].Lng}, {markers[0].Lat, markers[0].Lng}}
	for _, m := range markers[1:] {
		b[0][0] = math.Min(b[0][0], m.Lat)
		b[0][1] = math.Min(b[0][1], m.Lng)
		b[1][0] = math.Max(b[1][0], m.Lat)
		b[1][1] = math.Max(b[1][1], m.Lng)
	}
	return &b
}
