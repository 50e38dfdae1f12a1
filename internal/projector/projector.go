// Package projector maintains the parcel_item_event projection: it picks
// the latest tracking event of a document and writes it only when it is
// newer than what is stored.
package projector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alfredjeanlab/parceltrack/internal/events"
	"github.com/alfredjeanlab/parceltrack/internal/model"
	"github.com/alfredjeanlab/parceltrack/internal/store"
)

// Outcome describes what Project did with a document.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeCreated
	OutcomeUpdated
	OutcomeStale
	OutcomeFailed
)

// String returns the outcome name used in logs.
func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeCreated:
		return "created"
	case OutcomeUpdated:
		return "updated"
	case OutcomeStale:
		return "stale"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Store is the part of store.Store the projector needs.
type Store interface {
	GetParcelItemEvent(ctx context.Context, trackingReference string) (*model.ParcelItemEvent, error)
	CreateParcelItemEvent(ctx context.Context, rec *model.ParcelItemEvent) error
	UpdateLatestEvent(ctx context.Context, trackingReference, tpid string, latest *model.Event) (bool, error)
}

// Projector applies tracking documents to the projection store.
type Projector struct {
	store     Store
	publisher events.Publisher
	logger    *slog.Logger
}

// Option configures a Projector.
type Option func(*Projector)

// WithPublisher announces every applied change on pub as an
// events.ProjectionChange.
func WithPublisher(pub events.Publisher) Option {
	return func(p *Projector) { p.publisher = pub }
}

// New creates a projector writing through s.
func New(s Store, logger *slog.Logger, opts ...Option) *Projector {
	p := &Projector{store: s, publisher: &events.NoopPublisher{}, logger: logger}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Project selects the latest event of doc and writes it to the store when it
// is strictly newer than the stored one. Ineligible documents and stale
// events are logged and reported through the Outcome, never as errors; only
// store failures return an error.
func (p *Projector) Project(ctx context.Context, doc *model.SourceDocument) (Outcome, error) {
	d := SelectLatest(doc)
	if d.Action == ActionSkip {
		ref := ""
		if doc != nil {
			ref = doc.TrackingReference
		}
		p.logger.Info("projector: skipping document", "tracking_reference", ref, "reason", d.Reason)
		return OutcomeSkipped, nil
	}

	ref := doc.TrackingReference
	existing, err := p.store.GetParcelItemEvent(ctx, ref)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		rec := model.NewParcelItemEvent(ref, d.TPID, *d.Event)
		err := p.store.CreateParcelItemEvent(ctx, rec)
		if err == nil {
			p.logger.Info("projector: created parcel item event",
				"tracking_reference", ref, "tpid", d.TPID, "event_time", d.Event.Time)
			p.announce(ctx, events.ProjectionCreated, ref, d)
			return OutcomeCreated, nil
		}
		if !errors.Is(err, store.ErrAlreadyExists) {
			return OutcomeFailed, fmt.Errorf("create parcel item event %s: %w", ref, err)
		}
		// Another delivery created the record first; the conditional
		// update below settles which event is newer.
		p.logger.Debug("projector: record created concurrently", "tracking_reference", ref)
	case err != nil:
		return OutcomeFailed, fmt.Errorf("get parcel item event %s: %w", ref, err)
	default:
		if !d.Event.Time.After(existing.LatestEvent.Time) {
			p.logger.Info("projector: no update needed, existing event is more recent",
				"tracking_reference", ref,
				"existing_time", existing.LatestEvent.Time,
				"event_time", d.Event.Time)
			return OutcomeStale, nil
		}
	}

	applied, err := p.store.UpdateLatestEvent(ctx, ref, d.TPID, d.Event)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("update parcel item event %s: %w", ref, err)
	}
	if !applied {
		p.logger.Info("projector: no update needed, newer event already stored",
			"tracking_reference", ref, "event_time", d.Event.Time)
		return OutcomeStale, nil
	}
	p.logger.Info("projector: updated parcel item event",
		"tracking_reference", ref, "tpid", d.TPID, "event_time", d.Event.Time)
	p.announce(ctx, events.ProjectionUpdated, ref, d)
	return OutcomeUpdated, nil
}

// announce publishes an applied change. The write is already durable, so a
// publish failure is only logged.
func (p *Projector) announce(ctx context.Context, kind, ref string, d Decision) {
	change := events.ProjectionChange{
		Kind:              kind,
		TrackingReference: ref,
		TPID:              d.TPID,
		LatestEvent:       *d.Event,
	}
	if err := p.publisher.Publish(ctx, events.ProjectionTopic(kind, d.TPID), change); err != nil {
		p.logger.Warn("projector: publish change failed", "tracking_reference", ref, "err", err)
	}
}
