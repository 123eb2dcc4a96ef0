package models

import "time"

type AlertType string

const AlertTypeBroadcast AlertType = "Broadcast"

type AlertStatus string

const (
	AlertStatusPending AlertStatus = "pending"
	AlertStatusSending AlertStatus = "sending"
	AlertStatusSent    AlertStatus = "sent"
	AlertStatusFailed  AlertStatus = "failed"
)

// AlertLogEntry is a dispatch-eligible alert. Only Status and Timestamp
// change after creation.
type AlertLogEntry struct {
	ID        string       `json:"id"`
	Type      AlertType    `json:"type"`
	Event     SeismicEvent `json:"event"`
	Message   string       `json:"message"`
	Status    AlertStatus  `json:"status"`
	Timestamp *time.Time   `json:"timestamp,omitempty"` // set when sent
	CreatedAt time.Time    `json:"created_at"`
}

// CanTransition reports whether an entry may move from one status to another.
// failed -> sending is the manual retry path.
func CanTransition(from, to AlertStatus) bool {
	switch from {
	case AlertStatusPending, AlertStatusFailed:
		return to == AlertStatusSending
	case AlertStatusSending:
		return to == AlertStatusSent || to == AlertStatusFailed
	default:
		return false
	}
}
