package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes notifications to NATS subjects. Subjects bound to
// a JetStream stream are captured by the stream.
type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSPublisher{conn: nc}, nil
}

// Publish sends event to topic. Byte slices and json.RawMessage are sent
// as they are; anything else is JSON-encoded.
func (p *NATSPublisher) Publish(ctx context.Context, topic string, event any) error {
	var data []byte
	switch v := event.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		b, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshaling event: %w", err)
		}
		data = b
	}
	return p.conn.Publish(topic, data)
}

// Flush waits until the server has processed everything published so far.
func (p *NATSPublisher) Flush() error {
	return p.conn.Flush()
}

func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}

// JetStreamConfig selects durable, acknowledged delivery.
type JetStreamConfig struct {
	Stream  string        // stream capturing the subscribed subject
	Durable string        // durable consumer and queue group name
	AckWait time.Duration // redelivery delay for unacknowledged messages
}

// subscriberBuffer is the channel capacity of a subscription and, with
// JetStream, the consumer's MaxAckPending.
const subscriberBuffer = 64

// NATSSubscriber subscribes to notifications from NATS subjects. Without
// JetStream it uses core NATS (at-most-once, Ack and Nak are no-ops).
type NATSSubscriber struct {
	conn  *nats.Conn
	js    nats.JetStreamContext
	jsCfg JetStreamConfig
}

// NewNATSSubscriber connects to NATS with automatic reconnection support.
// Extra nats.Option values (e.g. disconnect/reconnect handlers) can be appended.
func NewNATSSubscriber(url string, opts ...nats.Option) (*NATSSubscriber, error) {
	defaults := []nats.Option{
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	}
	nc, err := nats.Connect(url, append(defaults, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS at %s: %w", url, err)
	}
	return &NATSSubscriber{conn: nc}, nil
}

// EnableJetStream switches subsequent subscriptions to a durable JetStream
// queue consumer with manual acknowledgement.
func (s *NATSSubscriber) EnableJetStream(cfg JetStreamConfig) error {
	if cfg.Stream == "" || cfg.Durable == "" {
		return errors.New("jetstream requires a stream and a durable name")
	}
	if cfg.AckWait <= 0 {
		cfg.AckWait = 30 * time.Second
	}
	js, err := s.conn.JetStream()
	if err != nil {
		return fmt.Errorf("jetstream context: %w", err)
	}
	s.js = js
	s.jsCfg = cfg
	return nil
}

// EnsureStream creates the configured stream for subjects when it does not
// exist yet.
func (s *NATSSubscriber) EnsureStream(subjects ...string) error {
	if s.js == nil {
		return errors.New("jetstream not enabled")
	}
	_, err := s.js.StreamInfo(s.jsCfg.Stream)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrStreamNotFound) {
		return fmt.Errorf("stream info %s: %w", s.jsCfg.Stream, err)
	}
	_, err = s.js.AddStream(&nats.StreamConfig{
		Name:     s.jsCfg.Stream,
		Subjects: subjects,
		Storage:  nats.FileStorage,
	})
	if err != nil {
		return fmt.Errorf("add stream %s: %w", s.jsCfg.Stream, err)
	}
	return nil
}

// ensureConsumer creates the durable push consumer for topic. The consumer
// is created here rather than by the subscription so that unsubscribing
// does not delete it.
func (s *NATSSubscriber) ensureConsumer(topic string) error {
	_, err := s.js.ConsumerInfo(s.jsCfg.Stream, s.jsCfg.Durable)
	if err == nil {
		return nil
	}
	if !errors.Is(err, nats.ErrConsumerNotFound) {
		return fmt.Errorf("consumer info %s: %w", s.jsCfg.Durable, err)
	}
	_, err = s.js.AddConsumer(s.jsCfg.Stream, &nats.ConsumerConfig{
		Durable:        s.jsCfg.Durable,
		DeliverSubject: "_parceltrack.deliver." + s.jsCfg.Durable,
		DeliverGroup:   s.jsCfg.Durable,
		DeliverPolicy:  nats.DeliverAllPolicy,
		AckPolicy:      nats.AckExplicitPolicy,
		AckWait:        s.jsCfg.AckWait,
		MaxAckPending:  subscriberBuffer,
		FilterSubject:  topic,
	})
	if err != nil {
		return fmt.Errorf("add consumer %s: %w", s.jsCfg.Durable, err)
	}
	return nil
}

// Subscribe returns a channel that receives messages for the given topic
// (supports NATS wildcards like "parceltrack.>"). Call the returned cancel
// function to unsubscribe and close the channel.
//
// With JetStream the server holds back deliveries once subscriberBuffer
// messages are unacknowledged. A message that still does not fit in the
// channel is Nak'd with an AckWait delay. With core NATS it is dropped.
func (s *NATSSubscriber) Subscribe(topic string) (<-chan *Message, func(), error) {
	ch := make(chan *Message, subscriberBuffer)

	var (
		mu     sync.Mutex
		closed bool
		once   sync.Once
	)

	handler := func(msg *nats.Msg) {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return
		}
		m := NewMessage(msg.Subject, msg.Data, nil, nil)
		if s.js != nil {
			m = NewMessage(msg.Subject, msg.Data, func() error { return msg.Ack() }, func() error { return msg.Nak() })
		}
		select {
		case ch <- m:
		default:
			// Don't block the NATS client; JetStream redelivers after AckWait.
			if s.js != nil {
				_ = msg.NakWithDelay(s.jsCfg.AckWait)
			}
		}
	}

	var (
		sub *nats.Subscription
		err error
	)
	if s.js != nil {
		if err := s.ensureConsumer(topic); err != nil {
			close(ch)
			return nil, nil, err
		}
		sub, err = s.js.QueueSubscribe(topic, s.jsCfg.Durable, handler,
			nats.Bind(s.jsCfg.Stream, s.jsCfg.Durable),
			nats.ManualAck(),
		)
	} else {
		sub, err = s.conn.Subscribe(topic, handler)
	}
	if err != nil {
		close(ch)
		return nil, nil, fmt.Errorf("subscribing to %s: %w", topic, err)
	}
	// Flush ensures the subscription is registered on the server before
	// returning, so that messages published on other connections are routed.
	if err := s.conn.Flush(); err != nil {
		_ = sub.Unsubscribe()
		close(ch)
		return nil, nil, fmt.Errorf("flushing subscription: %w", err)
	}

	cancel := func() {
		once.Do(func() {
			_ = sub.Unsubscribe()
			mu.Lock()
			closed = true
			mu.Unlock()
			// Drain remaining messages so senders don't block, then close.
			for {
				select {
				case <-ch:
				default:
					close(ch)
					return
				}
			}
		})
	}

	return ch, cancel, nil
}

// Connected reports whether the underlying connection is up.
func (s *NATSSubscriber) Connected() bool {
	return s.conn.IsConnected()
}

func (s *NATSSubscriber) Close() error {
	s.conn.Close()
	return nil
}
