package ingestion

import "github.com/mr1hm/go-quake-alerts/internal/models"

// Evaluate decides whether the newest event in next is a new severe event.
// It fires iff both snapshots are non-empty, the newest ids differ, and the
// newest magnitude is at least threshold. Only next[0] is inspected, so when
// several severe events land within one poll window only the newest alerts.
func Evaluate(prev, next []models.SeismicEvent, threshold float64) (models.SeismicEvent, bool) {
	if len(prev) == 0 || len(next) == 0 {
		return models.SeismicEvent{}, false
	}
	latest := next[0]
	if latest.ID == prev[0].ID {
		return models.SeismicEvent{}, false
	}
	if latest.Magnitude < threshold {
		return models.SeismicEvent{}, false
	}
	return latest, true
}
