// Package sync exports snapshots of the parcel_item_event projection as JSONL
// and ships them to S3 or a git repository on a schedule.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/alfredjeanlab/parceltrack/internal/model"
)

// exportPageSize is the number of records fetched per store round trip.
const exportPageSize = 1000

// Lister is the read side of the projection store an export needs.
type Lister interface {
	ListParcelItemEvents(ctx context.Context, filter model.ParcelItemEventFilter) ([]*model.ParcelItemEvent, int, error)
}

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version     string    `json:"version"`
	Type        string    `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	RecordCount int       `json:"record_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes every projection record matching filter to w: a
// header line, then one parcel_item_event per line sorted by tracking
// reference. filter's Limit and Offset are ignored.
func ExportJSONL(ctx context.Context, l Lister, filter model.ParcelItemEventFilter, w io.Writer) error {
	recs, err := listAll(ctx, l, filter)
	if err != nil {
		return err
	}

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].TrackingReference < recs[j].TrackingReference
	})

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:     "1",
		Type:        "header",
		Timestamp:   time.Now().UTC(),
		RecordCount: len(recs),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, rec := range recs {
		if err := enc.Encode(record{Type: "parcel_item_event", Data: rec}); err != nil {
			return fmt.Errorf("encode parcel item event %s: %w", rec.TrackingReference, err)
		}
	}

	return nil
}

func listAll(ctx context.Context, l Lister, filter model.ParcelItemEventFilter) ([]*model.ParcelItemEvent, error) {
	filter.Limit = exportPageSize
	filter.Offset = 0

	var all []*model.ParcelItemEvent
	for {
		page, total, err := l.ListParcelItemEvents(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list parcel item events: %w", err)
		}
		all = append(all, page...)
		if len(page) < filter.Limit || len(all) >= total {
			return all, nil
		}
		filter.Offset += len(page)
	}
}
