package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alfredjeanlab/parceltrack/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanParcelItemEvent scans a single row into a model.ParcelItemEvent.
// The row must contain columns in the order defined by parcelItemEventColumns.
func scanParcelItemEvent(row scannable) (*model.ParcelItemEvent, error) {
	var (
		rec           model.ParcelItemEvent
		eventDatetime sql.NullTime
		latest, item  []byte
	)
	err := row.Scan(
		&rec.TrackingReference,
		&rec.TPID,
		&eventDatetime,
		&latest,
		&item,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := fillParcelItemEvent(&rec, eventDatetime, latest, item); err != nil {
		return nil, err
	}
	return &rec, nil
}

// scanParcelItemEventWithTotal scans a row that has a leading total_count
// column followed by the standard columns. Used with COUNT(*) OVER().
func scanParcelItemEventWithTotal(row scannable) (*model.ParcelItemEvent, int, error) {
	var (
		total         int
		rec           model.ParcelItemEvent
		eventDatetime sql.NullTime
		latest, item  []byte
	)
	err := row.Scan(
		&total,
		&rec.TrackingReference,
		&rec.TPID,
		&eventDatetime,
		&latest,
		&item,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	)
	if err != nil {
		return nil, 0, err
	}
	if err := fillParcelItemEvent(&rec, eventDatetime, latest, item); err != nil {
		return nil, 0, err
	}
	return &rec, total, nil
}

func fillParcelItemEvent(rec *model.ParcelItemEvent, eventDatetime sql.NullTime, latest, item []byte) error {
	if len(latest) > 0 {
		if err := json.Unmarshal(latest, &rec.LatestEvent); err != nil {
			return fmt.Errorf("decode latest_event for %s: %w", rec.TrackingReference, err)
		}
	}
	rec.LatestEvent.TPID = rec.TPID
	if eventDatetime.Valid {
		rec.LatestEvent.Time = eventDatetime.Time.UTC()
	} else if t, ok := model.ParseEventTime(rec.LatestEvent.EventDatetime); ok {
		rec.LatestEvent.Time = t
	}
	rec.Item = jsonbObject(item)
	return nil
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// jsonbObject returns m, or an empty JSON object when m is empty.
func jsonbObject(m []byte) json.RawMessage {
	if len(m) == 0 {
		return json.RawMessage(`{}`)
	}
	return json.RawMessage(m)
}
