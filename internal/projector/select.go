package projector

import "github.com/alfredjeanlab/parceltrack/internal/model"

// Action says what to do with a document after latest-event selection.
type Action int

const (
	ActionSkip Action = iota
	ActionApply
)

// Skip reasons reported by SelectLatest.
const (
	ReasonNoReference    = "missing tracking_reference"
	ReasonNoEvents       = "no tracking events found"
	ReasonEventsNotArray = "tracking_events is not an array"
	ReasonNoTimestamp    = "invalid event structure"
	ReasonNoTPID         = "no tpid found"
)

// Decision is the result of latest-event selection: either Skip with a
// reason, or Apply with the event to project.
type Decision struct {
	Action Action
	Reason string
	TPID   string
	Event  *model.Event
}

// Skip returns a decision to leave the projection alone.
func Skip(reason string) Decision {
	return Decision{Action: ActionSkip, Reason: reason}
}

// Apply returns a decision to project ev.
func Apply(ev *model.Event) Decision {
	return Decision{Action: ActionApply, TPID: ev.TPID, Event: ev}
}

// SelectLatest reduces a document's tracking events to the one to project.
// Events without a usable timestamp never win. On an exact tie the greater
// seqref wins, and with equal seqrefs the earlier element is kept. The
// selected event must carry a tpid.
func SelectLatest(doc *model.SourceDocument) Decision {
	if doc == nil || doc.TrackingReference == "" {
		return Skip(ReasonNoReference)
	}
	raws, err := doc.Events()
	if err != nil {
		return Skip(ReasonEventsNotArray)
	}
	if len(raws) == 0 {
		return Skip(ReasonNoEvents)
	}

	var latest *model.Event
	for _, raw := range raws {
		ev, err := model.ParseEvent(raw)
		if err != nil || !ev.HasTime() {
			continue
		}
		if latest == nil || supersedes(ev, latest) {
			latest = ev
		}
	}

	if latest == nil {
		return Skip(ReasonNoTimestamp)
	}
	if latest.TPID == "" {
		return Skip(ReasonNoTPID)
	}
	return Apply(latest)
}

func supersedes(a, b *model.Event) bool {
	if !a.Time.Equal(b.Time) {
		return a.Time.After(b.Time)
	}
	return a.SeqRef > b.SeqRef
}
