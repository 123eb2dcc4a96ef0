package ingestion

import (
	"testing"

	"github.com/mr1hm/go-quake-alerts/internal/models"
)

func ev(id int64, mag float64) models.SeismicEvent {
	return models.SeismicEvent{ID: id, Magnitude: mag}
}

func TestEvaluate(t *testing.T) {
	const threshold = 6.0
	const eps = 1e-9

	tests := []struct {
		name string
		prev []models.SeismicEvent
		next []models.SeismicEvent
		want bool
	}{
		{"new event at threshold", []models.SeismicEvent{ev(0, 4.0)}, []models.SeismicEvent{ev(1, threshold)}, true},
		{"new event just above threshold", []models.SeismicEvent{ev(0, 4.0)}, []models.SeismicEvent{ev(1, threshold + eps)}, true},
		{"new event just below threshold", []models.SeismicEvent{ev(0, 4.0)}, []models.SeismicEvent{ev(1, threshold - eps)}, false},
		{"same newest id", []models.SeismicEvent{ev(1, 7.2)}, []models.SeismicEvent{ev(1, 7.2)}, false},
		{"same id with changed magnitude", []models.SeismicEvent{ev(1, 5.0)}, []models.SeismicEvent{ev(1, 7.2)}, false},
		{"empty previous", nil, []models.SeismicEvent{ev(1, 7.2)}, false},
		{"empty next", []models.SeismicEvent{ev(0, 4.0)}, []models.SeismicEvent{}, false},
		{"only newest is inspected", []models.SeismicEvent{ev(0, 4.0)}, []models.SeismicEvent{ev(2, 3.0), ev(1, 8.0)}, false},
		{"older id still counts as novel", []models.SeismicEvent{ev(5, 4.0)}, []models.SeismicEvent{ev(3, 6.5)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, fired := Evaluate(tt.prev, tt.next, threshold)
			if fired != tt.want {
				t.Fatalf("expected fired=%v, got %v", tt.want, fired)
			}
			if fired && got.ID != tt.next[0].ID {
				t.Errorf("expected event %d, got %d", tt.next[0].ID, got.ID)
			}
		})
	}
}
