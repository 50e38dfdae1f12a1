package store

import (
	"context"
	"errors"

	"github.com/alfredjeanlab/parceltrack/internal/model"
)

// ErrAlreadyExists is returned by CreateParcelItemEvent when a record for
// the tracking reference is already present.
var ErrAlreadyExists = errors.New("parcel item event already exists")

// Store defines the persistence interface for the parcel_item_event
// projection. Lookups of a missing record return sql.ErrNoRows.
type Store interface {
	// GetParcelItemEvent returns the record for a tracking reference.
	GetParcelItemEvent(ctx context.Context, trackingReference string) (*model.ParcelItemEvent, error)

	// CreateParcelItemEvent inserts a new record.
	CreateParcelItemEvent(ctx context.Context, rec *model.ParcelItemEvent) error

	// UpdateLatestEvent sets tpid and latest_event on an existing record, but
	// only when the stored event is strictly older than latest. It reports
	// whether the record was changed. Other columns are left untouched.
	UpdateLatestEvent(ctx context.Context, trackingReference, tpid string, latest *model.Event) (bool, error)

	// ListParcelItemEvents returns matching records ordered by tracking
	// reference, and the total number of matches.
	ListParcelItemEvents(ctx context.Context, filter model.ParcelItemEventFilter) ([]*model.ParcelItemEvent, int, error)

	// CountByTPID returns the number of records per owning party.
	CountByTPID(ctx context.Context) ([]*model.TPIDCount, error)

	// Lifecycle
	Close() error
}
