package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestParseEvent_Defaults(t *testing.T) {
	ev, err := ParseEvent(json.RawMessage(`{"event_datetime":"2024-01-01T10:00Z","tpid":"P1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.TPID != "P1" {
		t.Errorf("TPID = %q, want %q", ev.TPID, "P1")
	}
	if !ev.HasTime() {
		t.Fatal("expected usable timestamp")
	}
	want := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	if !ev.Time.Equal(want) {
		t.Errorf("Time = %v, want %v", ev.Time, want)
	}
	for name, got := range map[string]string{
		"depot_name":        ev.DepotName,
		"run_name":          ev.RunName,
		"event_type":        ev.EventType,
		"event_description": ev.EventDescription,
		"reason_status":     ev.ReasonStatus,
		"seqref":            ev.SeqRef,
	} {
		if got != "" {
			t.Errorf("%s = %q, want empty", name, got)
		}
	}
	if string(ev.Location) != "{}" || string(ev.SignedBy) != "{}" {
		t.Errorf("location=%s signed_by=%s, want {}", ev.Location, ev.SignedBy)
	}
	if ev.EventCode != nil || ev.ExportedEventCode != nil || ev.EventEdifactCode != nil || ev.Source != nil || ev.Metadata != nil {
		t.Error("passthrough fields should stay absent")
	}
}

func TestParseEvent_MarshalKeepsAbsence(t *testing.T) {
	ev, err := ParseEvent(json.RawMessage(`{"event_datetime":"2024-01-01T10:00:00Z","tpid":"P1","event_code":null,"source":"scanner"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]json.RawMessage
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(got["event_code"]) != "null" {
		t.Errorf("event_code = %s, want null", got["event_code"])
	}
	if string(got["source"]) != `"scanner"` {
		t.Errorf("source = %s", got["source"])
	}
	for _, absent := range []string{"exported_event_code", "event_edifact_code", "metadata", "tpid"} {
		if _, ok := got[absent]; ok {
			t.Errorf("%s should not be marshaled", absent)
		}
	}
	if string(got["event_datetime"]) != `"2024-01-01T10:00:00Z"` {
		t.Errorf("event_datetime = %s, want verbatim", got["event_datetime"])
	}
}

func TestParseEvent_FieldValues(t *testing.T) {
	ev, err := ParseEvent(json.RawMessage(`{
		"event_datetime": "2024-03-05T08:30:00+13:00",
		"tpid": 1000011,
		"depot_name": "Auckland",
		"run_name": 42,
		"location": {"lat": -36.8, "lng": 174.7},
		"signed_by": null,
		"event_edifact_code": 500,
		"seqref": ""
	}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.TPID != "1000011" {
		t.Errorf("TPID = %q, want numeric text", ev.TPID)
	}
	if ev.DepotName != "Auckland" {
		t.Errorf("DepotName = %q", ev.DepotName)
	}
	if ev.RunName != "42" {
		t.Errorf("RunName = %q, want %q", ev.RunName, "42")
	}
	if string(ev.SignedBy) != "{}" {
		t.Errorf("SignedBy = %s, want {}", ev.SignedBy)
	}
	if string(ev.EventEdifactCode) != "500" {
		t.Errorf("EventEdifactCode = %s", ev.EventEdifactCode)
	}
	want := time.Date(2024, 3, 4, 19, 30, 0, 0, time.UTC)
	if !ev.Time.Equal(want) {
		t.Errorf("Time = %v, want %v", ev.Time, want)
	}
}

func TestParseEvent_NonStringFieldsKeepType(t *testing.T) {
	ev, err := ParseEvent(json.RawMessage(`{"event_datetime":"2024-01-01T10:00:00Z","tpid":"P1","depot_name":{"id":7},"seqref":42,"run_name":"R1"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ev.SeqRef != "42" {
		t.Errorf("SeqRef = %q, want %q", ev.SeqRef, "42")
	}
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]json.RawMessage
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for name, want := range map[string]string{
		"depot_name": `{"id":7}`,
		"seqref":     `42`,
		"run_name":   `"R1"`,
		"event_type": `""`,
		"location":   `{}`,
	} {
		if string(got[name]) != want {
			t.Errorf("%s = %s, want %s", name, got[name], want)
		}
	}

	// A stored latest_event decodes back to the same values.
	var stored Event
	if err := json.Unmarshal(data, &stored); err != nil {
		t.Fatalf("decode stored: %v", err)
	}
	if stored.SeqRef != "42" || stored.RunName != "R1" || !stored.Time.Equal(ev.Time) {
		t.Errorf("decoded seqref=%q run_name=%q time=%v", stored.SeqRef, stored.RunName, stored.Time)
	}
	again, err := json.Marshal(stored)
	if err != nil {
		t.Fatalf("re-marshal: %v", err)
	}
	var gotAgain map[string]json.RawMessage
	if err := json.Unmarshal(again, &gotAgain); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(gotAgain["depot_name"]) != `{"id":7}` {
		t.Errorf("re-marshaled depot_name = %s", gotAgain["depot_name"])
	}
}

func TestParseEvent_OwnerValues(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		want string
	}{
		{`{"tpid":"P9"}`, "P9"},
		{`{"tpid":12}`, "12"},
		{`{"tpid":""}`, ""},
		{`{"tpid":0}`, ""},
		{`{"tpid":null}`, ""},
		{`{"tpid":false}`, ""},
		{`{"tpid":{"id":1}}`, ""},
		{`{}`, ""},
	} {
		ev, err := ParseEvent(json.RawMessage(tc.raw))
		if err != nil {
			t.Fatalf("ParseEvent(%s): %v", tc.raw, err)
		}
		if ev.TPID != tc.want {
			t.Errorf("ParseEvent(%s).TPID = %q, want %q", tc.raw, ev.TPID, tc.want)
		}
	}
}

func TestParseEvent_NotAnObject(t *testing.T) {
	if _, err := ParseEvent(json.RawMessage(`"just a string"`)); err == nil {
		t.Fatal("expected error for non-object event")
	}
}

func TestParseEventTime(t *testing.T) {
	for _, tc := range []struct {
		raw  string
		want time.Time
		ok   bool
	}{
		{`"2024-01-01T10:00Z"`, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{`"2024-01-01T10:00:00Z"`, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{`"2024-01-01T10:00:00.250Z"`, time.Date(2024, 1, 1, 10, 0, 0, 250000000, time.UTC), true},
		{`"2024-01-01T10:00:00+02:00"`, time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC), true},
		{`"2024-01-01T10:00:00"`, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{`"2024-01-01 10:00:00"`, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{`"2024-01-01"`, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), true},
		{`1704103200000`, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{`{"$date":"2024-01-01T10:00:00Z"}`, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{`{"$date":{"$numberLong":"1704103200000"}}`, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), true},
		{`"yesterday"`, time.Time{}, false},
		{`""`, time.Time{}, false},
		{`null`, time.Time{}, false},
		{`true`, time.Time{}, false},
		{``, time.Time{}, false},
		{`{"other":1}`, time.Time{}, false},
	} {
		got, ok := ParseEventTime(json.RawMessage(tc.raw))
		if ok != tc.ok {
			t.Errorf("ParseEventTime(%s) ok = %v, want %v", tc.raw, ok, tc.ok)
			continue
		}
		if ok && !got.Equal(tc.want) {
			t.Errorf("ParseEventTime(%s) = %v, want %v", tc.raw, got, tc.want)
		}
	}
}
