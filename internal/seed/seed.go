// Package seed generates synthetic parcel tracking documents and the change
// notifications a feed would carry for them.
package seed

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/alfredjeanlab/parceltrack/internal/idgen"
	"github.com/alfredjeanlab/parceltrack/internal/model"
)

// Weighted is a value picked with probability proportional to Weight.
type Weighted[T any] struct {
	Value  T
	Weight int
}

// EdifactCode is a tracking status code and its description.
type EdifactCode struct {
	Code        int
	Description string
}

// Status codes.
var (
	PickedUp          = EdifactCode{100, "Picked Up"}
	InTransit         = EdifactCode{200, "In Transit"}
	InDepot           = EdifactCode{300, "In Depot"}
	OutForDelivery    = EdifactCode{400, "Out for Delivery"}
	Delivered         = EdifactCode{500, "Delivered"}
	AttemptedDelivery = EdifactCode{600, "Attempted Delivery"}
)

// DefaultTPIDs is the owning-party mix: a few large senders and a long tail.
var DefaultTPIDs = []Weighted[int]{
	{1000011, 500000},
	{1000012, 300000},
	{1000013, 200000},
	{1000014, 100000},
	{1000015, 75000},
	{1000016, 50000},
	{1000017, 25000},
	{1000018, 10000},
	{1000019, 5000},
	{1000020, 2000},
}

var depots = []string{"Auckland Mail Centre", "Wellington Depot", "Christchurch Hub", "Hamilton Depot", "Dunedin Depot"}

// Options configures a Generator. Zero fields take defaults.
type Options struct {
	First     int       // number of the first tracking reference
	From, To  time.Time // window the first event falls in
	MaxEvents int       // upper bound on events per parcel, at least 2
	Seed      uint64    // 0 picks a random seed
	TPIDs     []Weighted[int]
}

func (o Options) withDefaults() Options {
	if o.First <= 0 {
		o.First = 1
	}
	if o.To.IsZero() {
		o.To = time.Now().UTC().Truncate(time.Second)
	}
	if o.From.IsZero() || !o.From.Before(o.To) {
		o.From = o.To.Add(-7 * 24 * time.Hour)
	}
	if o.MaxEvents < 2 {
		o.MaxEvents = 20
	}
	if o.Seed == 0 {
		o.Seed = rand.Uint64()
	}
	if len(o.TPIDs) == 0 {
		o.TPIDs = DefaultTPIDs
	}
	return o
}

// Event is one generated tracking event, shaped as the source documents
// carry them.
type Event struct {
	EventDatetime     string         `json:"event_datetime"`
	TPID              int            `json:"tpid"`
	DepotName         string         `json:"depot_name"`
	EventCode         string         `json:"event_code"`
	ExportedEventCode string         `json:"exported_event_code"`
	EventEdifactCode  int            `json:"event_edifact_code"`
	Location          map[string]any `json:"location"`
	RunName           string         `json:"run_name"`
	EventType         string         `json:"event_type"`
	EventDescription  string         `json:"event_description"`
	ReasonStatus      string         `json:"reason_status"`
	SeqRef            string         `json:"seqref"`
	SignedBy          map[string]any `json:"signed_by"`
	Source            string         `json:"source"`
}

// Parcel is a generated tracking document.
type Parcel struct {
	TrackingReference string  `json:"tracking_reference"`
	TPID              int     `json:"tpid"`
	Events            []Event `json:"tracking_events"`
}

// Latest returns the last event, which is also the newest.
func (p *Parcel) Latest() Event {
	return p.Events[len(p.Events)-1]
}

// Generator produces parcels. It is not safe for concurrent use.
type Generator struct {
	opts Options
	rnd  *rand.Rand
	next int
}

// New creates a generator.
func New(opts Options) *Generator {
	opts = opts.withDefaults()
	return &Generator{
		opts: opts,
		rnd:  rand.New(rand.NewPCG(opts.Seed, opts.Seed>>1|1)),
		next: opts.First,
	}
}

// Seed returns the seed in use, so that a run can be repeated.
func (g *Generator) Seed() uint64 {
	return g.opts.Seed
}

// Next generates the next parcel. Events are in chronological order and
// follow a plausible status sequence: picked up first, then transit and
// depot scans, usually ending in delivery.
func (g *Generator) Next() (*Parcel, error) {
	p := &Parcel{
		TrackingReference: idgen.TrackingReference(g.next),
		TPID:              pick(g.rnd, g.opts.TPIDs),
	}
	g.next++

	at := g.between(g.opts.From, g.opts.To)
	status := PickedUp
	total := 2 + g.rnd.IntN(g.opts.MaxEvents-1)
	delivered := g.rnd.Float64() < 0.95

	for i := 0; i < total; i++ {
		if i > 0 {
			status = g.nextStatus(status)
			if delivered && i == total-1 {
				status = Delivered
			}
			at = at.Add(time.Duration(1+g.rnd.IntN(24*60)) * time.Minute)
		}
		ev, err := g.event(p, status, at)
		if err != nil {
			return nil, err
		}
		p.Events = append(p.Events, ev)
	}
	return p, nil
}

func (g *Generator) nextStatus(cur EdifactCode) EdifactCode {
	switch cur {
	case PickedUp:
		return InTransit
	case InTransit:
		return oneOf(g.rnd, InTransit, InDepot)
	case OutForDelivery:
		if g.rnd.Float64() < 0.1 {
			return AttemptedDelivery
		}
		return oneOf(g.rnd, InTransit, InDepot, OutForDelivery)
	case AttemptedDelivery:
		return OutForDelivery
	default:
		return oneOf(g.rnd, InTransit, InDepot, OutForDelivery)
	}
}

func (g *Generator) event(p *Parcel, status EdifactCode, at time.Time) (Event, error) {
	seqref, err := idgen.Generate()
	if err != nil {
		return Event{}, err
	}
	depot := depots[g.rnd.IntN(len(depots))]
	ev := Event{
		EventDatetime:     at.UTC().Format(time.RFC3339),
		TPID:              p.TPID,
		DepotName:         depot,
		EventCode:         fmt.Sprintf("EV%d", status.Code),
		ExportedEventCode: fmt.Sprintf("X%d", status.Code),
		EventEdifactCode:  status.Code,
		Location:          map[string]any{"depot": depot},
		RunName:           fmt.Sprintf("RUN-%03d", g.rnd.IntN(1000)),
		EventType:         "scan",
		EventDescription:  status.Description,
		SeqRef:            seqref,
		SignedBy:          map[string]any{},
		Source:            "seed",
	}
	if status == Delivered {
		ev.SignedBy = map[string]any{"name": "Recipient"}
	}
	if status == AttemptedDelivery {
		ev.ReasonStatus = "No one home"
	}
	return ev, nil
}

func (g *Generator) between(from, to time.Time) time.Time {
	span := to.Sub(from)
	if span <= 0 {
		return from
	}
	return from.Add(time.Duration(g.rnd.Int64N(int64(span/time.Second)+1)) * time.Second)
}

// Shuffle randomises the order of notifications in place.
func (g *Generator) Shuffle(msgs [][]byte) {
	g.rnd.Shuffle(len(msgs), func(i, j int) { msgs[i], msgs[j] = msgs[j], msgs[i] })
}

// Redeliver returns msgs with each one repeated with probability ratio,
// as an at-least-once feed would.
func (g *Generator) Redeliver(msgs [][]byte, ratio float64) [][]byte {
	if ratio <= 0 {
		return msgs
	}
	out := make([][]byte, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m)
		if g.rnd.Float64() < ratio {
			out = append(out, m)
		}
	}
	return out
}

// Notifications renders the change notifications that build p up one event
// at a time: an insert carrying the first event, then an update per
// appended event. Every notification carries the full document as of that
// change.
func (p *Parcel) Notifications() ([][]byte, error) {
	msgs := make([][]byte, 0, len(p.Events))
	for i := range p.Events {
		snapshot := Parcel{
			TrackingReference: p.TrackingReference,
			TPID:              p.TPID,
			Events:            p.Events[:i+1],
		}
		full, err := json.Marshal(snapshot)
		if err != nil {
			return nil, fmt.Errorf("marshal document %s: %w", p.TrackingReference, err)
		}

		ev := model.ChangeEvent{
			OperationType: model.OperationInsert,
			DocumentKey:   json.RawMessage(fmt.Sprintf(`{"tracking_reference":%q}`, p.TrackingReference)),
			FullDocument:  full,
		}
		if i > 0 {
			added, err := json.Marshal(p.Events[i])
			if err != nil {
				return nil, fmt.Errorf("marshal event %s: %w", p.TrackingReference, err)
			}
			ev.OperationType = model.OperationUpdate
			ev.UpdateDescription = &model.UpdateDescription{
				UpdatedFields: map[string]json.RawMessage{
					fmt.Sprintf("%s.%d", model.FieldTrackingEvents, i): added,
				},
			}
		}

		data, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("marshal notification %s: %w", p.TrackingReference, err)
		}
		msgs = append(msgs, data)
	}
	return msgs, nil
}

func pick[T any](rnd *rand.Rand, choices []Weighted[T]) T {
	total := 0
	for _, c := range choices {
		total += c.Weight
	}
	n := rnd.IntN(total)
	for _, c := range choices {
		if n < c.Weight {
			return c.Value
		}
		n -= c.Weight
	}
	return choices[len(choices)-1].Value
}

func oneOf[T any](rnd *rand.Rand, xs ...T) T {
	return xs[rnd.IntN(len(xs))]
}
