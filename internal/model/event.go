package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Event is a single tracking event. Parsed from a source document with
// ParseEvent it carries defaults for its optional fields; the same shape is
// stored as the projection's latest_event.
type Event struct {
	EventDatetime     json.RawMessage `json:"event_datetime"`
	DepotName         string          `json:"depot_name"`
	EventCode         json.RawMessage `json:"event_code,omitempty"`
	ExportedEventCode json.RawMessage `json:"exported_event_code,omitempty"`
	EventEdifactCode  json.RawMessage `json:"event_edifact_code,omitempty"`
	Location          json.RawMessage `json:"location"`
	RunName           string          `json:"run_name"`
	EventType         string          `json:"event_type"`
	EventDescription  string          `json:"event_description"`
	ReasonStatus      string          `json:"reason_status"`
	SeqRef            string          `json:"seqref"`
	SignedBy          json.RawMessage `json:"signed_by"`
	Source            json.RawMessage `json:"source,omitempty"`
	Metadata          json.RawMessage `json:"metadata,omitempty"`

	// TPID is the owning party. It lives at the top of the projection
	// record, not inside latest_event.
	TPID string `json:"-"`
	// Time is EventDatetime parsed; zero when it has no usable timestamp.
	Time time.Time `json:"-"`

	// verbatim keeps the source JSON of descriptive fields that were not
	// strings, keyed by field name. The string field holds its text form.
	verbatim map[string]json.RawMessage
}

// eventJSON has Event's fields without its methods.
type eventJSON Event

// MarshalJSON writes descriptive fields with the JSON type they arrived in.
func (e Event) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(eventJSON(e))
	if err != nil || len(e.verbatim) == 0 {
		return data, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for name, raw := range e.verbatim {
		fields[name] = raw
	}
	return json.Marshal(fields)
}

// UnmarshalJSON reads a stored latest_event. TPID is not part of it.
func (e *Event) UnmarshalJSON(data []byte) error {
	var src sourceEvent
	if err := json.Unmarshal(data, &src); err != nil {
		return err
	}
	*e = *eventFromSource(src)
	e.TPID = ""
	return nil
}

// HasTime reports whether the event carries a usable timestamp.
func (e *Event) HasTime() bool {
	return !e.Time.IsZero()
}

// sourceEvent is the loose shape of an event as found in tracking_events.
// Every field is kept raw so defaults can be applied in one place.
type sourceEvent struct {
	EventDatetime     json.RawMessage `json:"event_datetime"`
	TPID              json.RawMessage `json:"tpid"`
	DepotName         json.RawMessage `json:"depot_name"`
	EventCode         json.RawMessage `json:"event_code"`
	ExportedEventCode json.RawMessage `json:"exported_event_code"`
	EventEdifactCode  json.RawMessage `json:"event_edifact_code"`
	Location          json.RawMessage `json:"location"`
	RunName           json.RawMessage `json:"run_name"`
	EventType         json.RawMessage `json:"event_type"`
	EventDescription  json.RawMessage `json:"event_description"`
	ReasonStatus      json.RawMessage `json:"reason_status"`
	SeqRef            json.RawMessage `json:"seqref"`
	SignedBy          json.RawMessage `json:"signed_by"`
	Source            json.RawMessage `json:"source"`
	Metadata          json.RawMessage `json:"metadata"`
}

// ParseEvent decodes one element of a tracking_events array. Missing or
// falsy descriptive fields default to "" (strings) or {} (location,
// signed_by). The code fields, source and metadata pass through exactly as
// given, absence included. An event without a usable timestamp or tpid is
// still returned; eligibility is the caller's decision.
func ParseEvent(raw json.RawMessage) (*Event, error) {
	var src sourceEvent
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, fmt.Errorf("parse event: %w", err)
	}
	return eventFromSource(src), nil
}

func eventFromSource(src sourceEvent) *Event {
	e := &Event{
		EventDatetime:     src.EventDatetime,
		EventCode:         src.EventCode,
		ExportedEventCode: src.ExportedEventCode,
		EventEdifactCode:  src.EventEdifactCode,
		Location:          objectField(src.Location),
		SignedBy:          objectField(src.SignedBy),
		Source:            src.Source,
		Metadata:          src.Metadata,
		TPID:              ownerField(src.TPID),
	}
	e.setText("depot_name", &e.DepotName, src.DepotName)
	e.setText("run_name", &e.RunName, src.RunName)
	e.setText("event_type", &e.EventType, src.EventType)
	e.setText("event_description", &e.EventDescription, src.EventDescription)
	e.setText("reason_status", &e.ReasonStatus, src.ReasonStatus)
	e.setText("seqref", &e.SeqRef, src.SeqRef)
	if t, ok := ParseEventTime(src.EventDatetime); ok {
		e.Time = t
	}
	return e
}

// setText stores raw's text form in dst and remembers non-string values so
// they marshal unchanged.
func (e *Event) setText(name string, dst *string, raw json.RawMessage) {
	*dst = textField(raw)
	if *dst == "" || bytes.TrimSpace(raw)[0] == '"' {
		return
	}
	if e.verbatim == nil {
		e.verbatim = make(map[string]json.RawMessage)
	}
	e.verbatim[name] = raw
}

// isFalsy reports whether raw is absent or one of the JSON values a
// document producer uses to mean "not set": null, false, "" or 0.
func isFalsy(raw json.RawMessage) bool {
	s := bytes.TrimSpace(raw)
	switch string(s) {
	case "", "null", "false", `""`:
		return true
	}
	if isNumber(s) {
		f, err := strconv.ParseFloat(string(s), 64)
		return err == nil && f == 0
	}
	return false
}

func isNumber(s []byte) bool {
	return len(s) > 0 && (s[0] == '-' || (s[0] >= '0' && s[0] <= '9'))
}

// textField returns a JSON string's value, or the literal JSON text for
// any other non-falsy value.
func textField(raw json.RawMessage) string {
	if isFalsy(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(bytes.TrimSpace(raw))
}

func objectField(raw json.RawMessage) json.RawMessage {
	if isFalsy(raw) {
		return json.RawMessage(`{}`)
	}
	return raw
}

// ownerField normalises a tpid. Strings and numbers are accepted; numbers
// keep their JSON text (1000011 -> "1000011").
func ownerField(raw json.RawMessage) string {
	if isFalsy(raw) {
		return ""
	}
	s := bytes.TrimSpace(raw)
	if s[0] == '"' {
		var v string
		if err := json.Unmarshal(s, &v); err != nil {
			return ""
		}
		return v
	}
	if isNumber(s) {
		if _, err := strconv.ParseFloat(string(s), 64); err == nil {
			return string(s)
		}
	}
	return ""
}
