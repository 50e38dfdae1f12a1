package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/alfredjeanlab/parceltrack/internal/model"
)

// fakeLister serves a fixed set of records and honours Limit/Offset and
// the TPID filter.
type fakeLister struct {
	recs  []*model.ParcelItemEvent
	calls int
	err   error
}

func newFakeLister(n int) *fakeLister {
	now := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	l := &fakeLister{}
	// Inserted in reverse so the export has to sort.
	for i := n; i > 0; i-- {
		at := now.Add(time.Duration(i) * time.Minute)
		l.recs = append(l.recs, &model.ParcelItemEvent{
			TrackingReference: fmt.Sprintf("NZ%09d", i),
			TPID:              fmt.Sprintf("10000%02d", 10+i%3),
			LatestEvent: model.Event{
				EventDatetime: json.RawMessage(`"` + at.Format(time.RFC3339) + `"`),
				SeqRef:        fmt.Sprintf("seq-%d", i),
				Time:          at,
			},
			Item:      json.RawMessage(`{}`),
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	return l
}

func (l *fakeLister) ListParcelItemEvents(_ context.Context, f model.ParcelItemEventFilter) ([]*model.ParcelItemEvent, int, error) {
	l.calls++
	if l.err != nil {
		return nil, 0, l.err
	}

	var matched []*model.ParcelItemEvent
	for _, r := range l.recs {
		if len(f.TPID) > 0 && !contains(f.TPID, r.TPID) {
			continue
		}
		matched = append(matched, r)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].TrackingReference < matched[j].TrackingReference
	})

	total := len(matched)
	if f.Offset >= total {
		return nil, total, nil
	}
	end := total
	if f.Limit > 0 && f.Offset+f.Limit < end {
		end = f.Offset + f.Limit
	}
	return matched[f.Offset:end], total, nil
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
