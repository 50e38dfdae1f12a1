package events

import (
	"context"
	"errors"
	"sync"

	"github.com/alfredjeanlab/parceltrack/internal/model"
)

// Subject constants
const (
	// TopicTrackingChanges carries change notifications for the source
	// collection of tracking documents.
	TopicTrackingChanges = "parceltrack.tracking.changes"

	// TopicProjectionPrefix starts every projection change topic:
	// parceltrack.projection.<created|updated>.<tpid>.
	TopicProjectionPrefix = "parceltrack.projection"
)

// Projection change kinds.
const (
	ProjectionCreated = "created"
	ProjectionUpdated = "updated"
)

// ProjectionTopic returns the topic a projection change is published on.
func ProjectionTopic(kind, tpid string) string {
	if tpid == "" {
		tpid = "_"
	}
	return TopicProjectionPrefix + "." + kind + "." + tpid
}

// ProjectionChange is published after a parcel_item_event record was
// created or its latest event replaced.
type ProjectionChange struct {
	Kind              string      `json:"kind"`
	TrackingReference string      `json:"tracking_reference"`
	TPID              string      `json:"tpid"`
	LatestEvent       model.Event `json:"latest_event"`
}

// Message is one delivered notification. Ack and Nak settle it with the
// broker; on transports without acknowledgement both are no-ops.
type Message struct {
	Subject string
	Data    []byte

	once sync.Once
	ack  func() error
	nak  func() error
}

// NewMessage builds a message whose Ack and Nak call the given functions.
// Either may be nil.
func NewMessage(subject string, data []byte, ack, nak func() error) *Message {
	return &Message{Subject: subject, Data: data, ack: ack, nak: nak}
}

// Ack reports successful processing. Only the first Ack or Nak takes effect.
func (m *Message) Ack() error {
	return m.settle(m.ack)
}

// Nak asks the broker to redeliver the message.
func (m *Message) Nak() error {
	return m.settle(m.nak)
}

func (m *Message) settle(fn func() error) error {
	var err error
	m.once.Do(func() {
		if fn != nil {
			err = fn()
		}
	})
	return err
}

// Publisher is the interface for emitting notifications.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// Fanout publishes every event to each of its publishers in turn. All
// publishers are tried; the errors are joined.
type Fanout []Publisher

func (f Fanout) Publish(ctx context.Context, topic string, event any) error {
	var errs []error
	for _, p := range f {
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, p := range f {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
