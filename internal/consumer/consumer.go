// Package consumer drives the projection from the change feed: it filters
// notifications, fans documents out to a bounded pool of workers keyed by
// tracking reference, and acknowledges each message once it is settled.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"

	"github.com/alfredjeanlab/parceltrack/internal/events"
	"github.com/alfredjeanlab/parceltrack/internal/idgen"
	"github.com/alfredjeanlab/parceltrack/internal/model"
	"github.com/alfredjeanlab/parceltrack/internal/projector"
)

// Extractor turns a raw notification into a tracking document.
type Extractor interface {
	Extract(data []byte) (*model.SourceDocument, bool)
}

// Projector applies a tracking document to the projection.
type Projector interface {
	Project(ctx context.Context, doc *model.SourceDocument) (projector.Outcome, error)
}

// Config sizes the worker pool.
type Config struct {
	Workers      int           // number of workers; same key always lands on the same one
	QueueSize    int           // per-worker backlog
	StoreTimeout time.Duration // bound on a single projection
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 8
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 16
	}
	if c.StoreTimeout <= 0 {
		c.StoreTimeout = 10 * time.Second
	}
	return c
}

// Stats is a snapshot of the consumer's counters.
type Stats struct {
	ID       string `json:"id"`
	Received int64  `json:"received"`
	Filtered int64  `json:"filtered"`
	Created  int64  `json:"created"`
	Updated  int64  `json:"updated"`
	Stale    int64  `json:"stale"`
	Skipped  int64  `json:"skipped"`
	Failed   int64  `json:"failed"`
}

type job struct {
	msg *events.Message
	doc *model.SourceDocument
}

// Consumer projects change notifications read from a subscriber.
type Consumer struct {
	id     string
	filter Extractor
	proj   Projector
	cfg    Config
	logger *slog.Logger

	received, filtered      atomic.Int64
	created, updated, stale atomic.Int64
	skipped, failed         atomic.Int64
}

// New creates a consumer. Zero Config fields take defaults.
func New(filter Extractor, proj Projector, cfg Config, logger *slog.Logger) *Consumer {
	id, err := idgen.GenerateWithPrefix("consumer-")
	if err != nil {
		id = "consumer"
	}
	return &Consumer{
		id:     id,
		filter: filter,
		proj:   proj,
		cfg:    cfg.withDefaults(),
		logger: logger.With("consumer", id),
	}
}

// ID identifies this consumer instance in logs and stats.
func (c *Consumer) ID() string {
	return c.id
}

// Run subscribes to subject and projects notifications until ctx is
// cancelled or the subscription closes. Work already handed to a worker is
// finished before Run returns.
func (c *Consumer) Run(ctx context.Context, sub events.Subscriber, subject string) error {
	ch, cancel, err := sub.Subscribe(subject)
	if err != nil {
		return fmt.Errorf("consumer: subscribe: %w", err)
	}
	defer cancel()

	// In-flight projections outlive ctx so that shutdown drains cleanly;
	// each one is still bounded by StoreTimeout.
	workCtx := context.WithoutCancel(ctx)

	queues := make([]chan job, c.cfg.Workers)
	var wg sync.WaitGroup
	for i := range queues {
		queues[i] = make(chan job, c.cfg.QueueSize)
		wg.Add(1)
		go func(q <-chan job) {
			defer wg.Done()
			for j := range q {
				c.process(workCtx, j)
			}
		}(queues[i])
	}
	defer func() {
		for _, q := range queues {
			close(q)
		}
		wg.Wait()
		c.logger.Info("consumer: stopped", "subject", subject)
	}()

	c.logger.Info("consumer: started", "subject", subject, "workers", c.cfg.Workers)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer: stopping")
			return nil
		case msg, ok := <-ch:
			if !ok {
				c.logger.Info("consumer: subscription channel closed")
				return nil
			}
			c.received.Add(1)

			doc, relevant := c.filter.Extract(msg.Data)
			if !relevant {
				c.filtered.Add(1)
				c.settle(msg, nil, "")
				continue
			}

			q := queues[c.partition(doc.TrackingReference)]
			select {
			case q <- job{msg: msg, doc: doc}:
			case <-ctx.Done():
				if err := msg.Nak(); err != nil {
					c.logger.Warn("consumer: nak failed", "err", err)
				}
				c.logger.Info("consumer: stopping")
				return nil
			}
		}
	}
}

// partition maps a tracking reference to a worker index.
func (c *Consumer) partition(ref string) int {
	return int(xxhash.Sum64String(ref) % uint64(c.cfg.Workers))
}

func (c *Consumer) process(ctx context.Context, j job) {
	pctx, cancel := context.WithTimeout(ctx, c.cfg.StoreTimeout)
	outcome, err := c.project(pctx, j.doc)
	cancel()

	switch outcome {
	case projector.OutcomeCreated:
		c.created.Add(1)
	case projector.OutcomeUpdated:
		c.updated.Add(1)
	case projector.OutcomeStale:
		c.stale.Add(1)
	case projector.OutcomeSkipped:
		c.skipped.Add(1)
	case projector.OutcomeFailed:
		c.failed.Add(1)
	}
	if err != nil {
		c.logger.Error("consumer: projection failed",
			"tracking_reference", j.doc.TrackingReference, "err", err)
	}
	c.settle(j.msg, err, j.doc.TrackingReference)
}

// project runs the projector, turning a panic into a failed outcome so the
// message is Nak'd and the worker keeps running.
func (c *Consumer) project(ctx context.Context, doc *model.SourceDocument) (outcome projector.Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("consumer: panic recovered in projection",
				"tracking_reference", doc.TrackingReference,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			outcome, err = projector.OutcomeFailed, fmt.Errorf("projection panicked: %v", r)
		}
	}()
	return c.proj.Project(ctx, doc)
}

// settle acks on success and naks on failure so the broker redelivers.
func (c *Consumer) settle(msg *events.Message, procErr error, ref string) {
	if procErr != nil {
		if err := msg.Nak(); err != nil {
			c.logger.Warn("consumer: nak failed", "tracking_reference", ref, "err", err)
		}
		return
	}
	if err := msg.Ack(); err != nil {
		c.logger.Warn("consumer: ack failed", "tracking_reference", ref, "err", err)
	}
}

// Stats returns the current counters.
func (c *Consumer) Stats() Stats {
	return Stats{
		ID:       c.id,
		Received: c.received.Load(),
		Filtered: c.filtered.Load(),
		Created:  c.created.Load(),
		Updated:  c.updated.Load(),
		Stale:    c.stale.Load(),
		Skipped:  c.skipped.Load(),
		Failed:   c.failed.Load(),
	}
}
