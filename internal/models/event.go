package models

type Severity string

const (
	SeverityLow      Severity = "Low"
	SeverityModerate Severity = "Moderate"
	SeveritySevere   Severity = "Severe"
)

type Location struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	City  string  `json:"city"`
	State string  `json:"state"`
}

// SeismicEvent is a single feed entry. Severity is assigned by the feed and
// never recomputed here.
type SeismicEvent struct {
	ID        int64    `json:"id"`
	Magnitude float64  `json:"magnitude"`
	Depth     float64  `json:"depth"`
	Location  Location `json:"location"`
	Timestamp string   `json:"timestamp"` // ISO-8601, as sent by the feed
	Severity  Severity `json:"severity"`
}

type Coordinates struct {
	Latitude  float64
	Longitude float64
}

func (e *SeismicEvent) Coordinates() Coordinates {
	return Coordinates{
		Latitude:  e.Location.Lat,
		Longitude: e.Location.Lon,
	}
}

// CloneEvents returns an independent copy of a snapshot.
func CloneEvents(events []SeismicEvent) []SeismicEvent {
	if events == nil {
		return nil
	}
	out := make([]SeismicEvent, len(events))
	copy(out, events)
	return out
}
