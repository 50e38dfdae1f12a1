package model

import (
	"encoding/json"
	"time"
)

// ParcelItemEvent is the projection row kept for each tracking reference:
// the owning party and the most recent event seen for it. Item is an
// extension point owned by other writers; it is created empty and never
// modified here.
type ParcelItemEvent struct {
	TrackingReference string          `json:"tracking_reference"`
	TPID              string          `json:"tpid"`
	LatestEvent       Event           `json:"latest_event"`
	Item              json.RawMessage `json:"item"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// NewParcelItemEvent builds the record inserted on first sight of a
// tracking reference.
func NewParcelItemEvent(trackingReference, tpid string, latest Event) *ParcelItemEvent {
	return &ParcelItemEvent{
		TrackingReference: trackingReference,
		TPID:              tpid,
		LatestEvent:       latest,
		Item:              json.RawMessage(`{}`),
	}
}
