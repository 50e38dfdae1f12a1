package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/alfredjeanlab/parceltrack/internal/model"
	"github.com/alfredjeanlab/parceltrack/internal/store"
)

// parcelItemEventColumns is the column list used for SELECT statements on
// the parcel_item_event table.
const parcelItemEventColumns = `tracking_reference, tpid, event_datetime,
	latest_event, item, created_at, updated_at`

// uniqueViolation is the PostgreSQL error code for a unique key conflict.
const uniqueViolation = "23505"

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryGetParcelItemEvent(ctx context.Context, db executor, trackingReference string) (*model.ParcelItemEvent, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+parcelItemEventColumns+` FROM parcel_item_event WHERE tracking_reference = $1`,
		trackingReference)
	return scanParcelItemEvent(row)
}

func queryCreateParcelItemEvent(ctx context.Context, db executor, rec *model.ParcelItemEvent) error {
	latest, err := json.Marshal(rec.LatestEvent)
	if err != nil {
		return fmt.Errorf("marshal latest event: %w", err)
	}
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now
	}

	_, err = db.ExecContext(ctx, `
		INSERT INTO parcel_item_event (
			tracking_reference, tpid, event_datetime, latest_event, item, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.TrackingReference,
		rec.TPID,
		nullTime(rec.LatestEvent.Time),
		latest,
		jsonbObject(rec.Item),
		rec.CreatedAt,
		rec.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrAlreadyExists
	}
	return err
}

// queryUpdateLatestEvent is the conditional write: the row changes only
// while its stored event time is strictly older than latest's.
func queryUpdateLatestEvent(ctx context.Context, db executor, trackingReference, tpid string, latest *model.Event) (bool, error) {
	data, err := json.Marshal(latest)
	if err != nil {
		return false, fmt.Errorf("marshal latest event: %w", err)
	}

	res, err := db.ExecContext(ctx, `
		UPDATE parcel_item_event
		SET tpid = $2, latest_event = $3, event_datetime = $4, updated_at = $5
		WHERE tracking_reference = $1
		  AND (event_datetime IS NULL OR event_datetime < $4)`,
		trackingReference, tpid, data, latest.Time.UTC(), time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func queryListParcelItemEvents(ctx context.Context, db executor, filter model.ParcelItemEventFilter) ([]*model.ParcelItemEvent, int, error) {
	var (
		whereClauses []string
		args         []any
		argIdx       int
	)

	nextArg := func() string {
		argIdx++
		return fmt.Sprintf("$%d", argIdx)
	}

	if len(filter.TPID) > 0 {
		whereClauses = append(whereClauses, "tpid = ANY("+nextArg()+")")
		args = append(args, pq.Array(filter.TPID))
	}

	if filter.EdifactCode != "" {
		whereClauses = append(whereClauses, "latest_event->>'event_edifact_code' = "+nextArg())
		args = append(args, filter.EdifactCode)
	}

	if filter.Since != nil {
		whereClauses = append(whereClauses, "event_datetime >= "+nextArg())
		args = append(args, filter.Since.UTC())
	}

	if filter.Until != nil {
		whereClauses = append(whereClauses, "event_datetime < "+nextArg())
		args = append(args, filter.Until.UTC())
	}

	whereSQL := ""
	if len(whereClauses) > 0 {
		whereSQL = " WHERE " + strings.Join(whereClauses, " AND ")
	}

	// Single query with COUNT(*) OVER() to get total and rows atomically.
	dataQuery := "SELECT COUNT(*) OVER() AS total_count, " + parcelItemEventColumns +
		" FROM parcel_item_event" + whereSQL + " ORDER BY tracking_reference ASC"

	if filter.Limit > 0 {
		dataQuery += " LIMIT " + nextArg()
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		dataQuery += " OFFSET " + nextArg()
		args = append(args, filter.Offset)
	}

	rows, err := db.QueryContext(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list parcel item events: %w", err)
	}
	defer rows.Close()

	var recs []*model.ParcelItemEvent
	var total int
	for rows.Next() {
		rec, t, err := scanParcelItemEventWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan parcel item events: %w", err)
		}
		total = t
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate parcel item events: %w", err)
	}
	return recs, total, nil
}

func queryCountByTPID(ctx context.Context, db executor) ([]*model.TPIDCount, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT tpid, COUNT(*), MAX(event_datetime)
		FROM parcel_item_event
		GROUP BY tpid
		ORDER BY COUNT(*) DESC, tpid ASC`)
	if err != nil {
		return nil, fmt.Errorf("count by tpid: %w", err)
	}
	defer rows.Close()

	var counts []*model.TPIDCount
	for rows.Next() {
		var (
			c      model.TPIDCount
			latest sql.NullTime
		)
		if err := rows.Scan(&c.TPID, &c.Count, &latest); err != nil {
			return nil, fmt.Errorf("scan tpid count: %w", err)
		}
		if latest.Valid {
			c.LatestEventAt = latest.Time.UTC()
		}
		counts = append(counts, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tpid counts: %w", err)
	}
	return counts, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
