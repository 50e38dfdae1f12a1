package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Source document field names.
const (
	FieldTrackingReference = "tracking_reference"
	FieldTrackingEvents    = "tracking_events"
)

// ErrEventsNotArray is returned by SourceDocument.Events when
// tracking_events is present but is not a JSON array.
var ErrEventsNotArray = errors.New("tracking_events is not an array")

// SourceDocument is a parcel tracking document as delivered by the change
// feed. Only the fields the projection needs are decoded; tracking_events
// stays raw so that absent, malformed and empty can be told apart.
type SourceDocument struct {
	TrackingReference string          `json:"tracking_reference"`
	TrackingEvents    json.RawMessage `json:"tracking_events,omitempty"`
}

// ParseSourceDocument decodes a tracking document. The tracking reference
// may be a JSON string or number.
func ParseSourceDocument(data []byte) (*SourceDocument, error) {
	var raw struct {
		TrackingReference json.RawMessage `json:"tracking_reference"`
		TrackingEvents    json.RawMessage `json:"tracking_events"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	ref := bytes.TrimSpace(raw.TrackingReference)
	if len(ref) > 0 && (ref[0] == '{' || ref[0] == '[') {
		return nil, fmt.Errorf("parse document: tracking_reference must be a string or number")
	}
	return &SourceDocument{
		TrackingReference: textField(raw.TrackingReference),
		TrackingEvents:    raw.TrackingEvents,
	}, nil
}

// HasEvents reports whether tracking_events is a non-empty array.
func (d *SourceDocument) HasEvents() bool {
	events, err := d.Events()
	return err == nil && len(events) > 0
}

// Events splits tracking_events into its raw elements. An absent or null
// field yields no elements and no error.
func (d *SourceDocument) Events() ([]json.RawMessage, error) {
	s := bytes.TrimSpace(d.TrackingEvents)
	if len(s) == 0 || string(s) == "null" {
		return nil, nil
	}
	if s[0] != '[' {
		return nil, ErrEventsNotArray
	}
	var events []json.RawMessage
	if err := json.Unmarshal(s, &events); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEventsNotArray, err)
	}
	return events, nil
}
