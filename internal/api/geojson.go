package api

import (
	"strings"

	"github.com/mr1hm/go-quake-alerts/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// toGeoJSON renders the snapshot for map clients. Depth is carried as the
// third coordinate, negated, as GeoJSON altitude.
func toGeoJSON(events []models.SeismicEvent) FeatureCollection {
	features := make([]Feature, 0, len(events))

	for _, e := range events {
		c := e.Coordinates()
		f := Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{c.Longitude, c.Latitude, -e.Depth},
			},
			Properties: map[string]any{
				"id":        e.ID,
				"magnitude": e.Magnitude,
				"depth":     e.Depth,
				"city":      e.Location.City,
				"state":     e.Location.State,
				"severity":  strings.ToLower(string(e.Severity)),
				"timestamp": e.Timestamp,
			},
		}
		features = append(features, f)
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
