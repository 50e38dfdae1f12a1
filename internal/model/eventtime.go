package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// eventTimeLayouts are tried in order for string timestamps. Layouts
// without a zone parse as UTC.
var eventTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseEventTime parses an event_datetime value. It accepts ISO-8601
// strings, epoch milliseconds, and MongoDB extended JSON
// ({"$date": ...} and {"$numberLong": "..."}).
func ParseEventTime(raw json.RawMessage) (time.Time, bool) {
	s := bytes.TrimSpace(raw)
	if len(s) == 0 {
		return time.Time{}, false
	}

	switch {
	case s[0] == '"':
		var str string
		if err := json.Unmarshal(s, &str); err != nil {
			return time.Time{}, false
		}
		return parseTimeString(str)
	case s[0] == '{':
		var ext struct {
			Date       json.RawMessage `json:"$date"`
			NumberLong string          `json:"$numberLong"`
		}
		if err := json.Unmarshal(s, &ext); err != nil {
			return time.Time{}, false
		}
		if len(ext.Date) > 0 {
			return ParseEventTime(ext.Date)
		}
		if ext.NumberLong != "" {
			return parseMillis(ext.NumberLong)
		}
		return time.Time{}, false
	case isNumber(s):
		return parseMillis(string(s))
	}
	return time.Time{}, false
}

func parseTimeString(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range eventTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func parseMillis(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, false
	}
	t := time.UnixMilli(int64(f)).UTC()
	if t.IsZero() {
		return time.Time{}, false
	}
	return t, true
}
