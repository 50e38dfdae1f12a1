package model

import "time"

// ParcelItemEventFilter holds criteria for listing projection records.
type ParcelItemEventFilter struct {
	TPID        []string   `json:"tpid,omitempty"`
	EdifactCode string     `json:"edifact_code,omitempty"` // matches latest_event.event_edifact_code as text
	Since       *time.Time `json:"since,omitempty"`        // inclusive, on latest event time
	Until       *time.Time `json:"until,omitempty"`        // exclusive
	Limit       int        `json:"limit,omitempty"`
	Offset      int        `json:"offset,omitempty"`
}

// TPIDCount is the number of tracked parcels whose latest event belongs to
// a party.
type TPIDCount struct {
	TPID          string    `json:"tpid"`
	Count         int       `json:"count"`
	LatestEventAt time.Time `json:"latest_event_at"`
}
