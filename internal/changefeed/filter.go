// Package changefeed decides which change notifications matter to the
// latest-event projection and extracts the tracking document from them.
package changefeed

import (
	"bytes"
	"encoding/json"
	"log/slog"

	"github.com/alfredjeanlab/parceltrack/internal/model"
)

// Filter inspects change notifications. It never fails: anything it cannot
// use is logged and reported as irrelevant.
type Filter struct {
	logger *slog.Logger
}

// NewFilter creates a filter that logs skipped notifications to logger.
func NewFilter(logger *slog.Logger) *Filter {
	return &Filter{logger: logger}
}

// Extract returns the full tracking document carried by a notification and
// true, or nil and false when there is nothing to project.
//
// A payload without operationType is treated as the document itself and
// must carry a non-empty tracking_events array. An update that changed no
// path under tracking_events is skipped. Every other notification must
// carry fullDocument.
func (f *Filter) Extract(data []byte) (*model.SourceDocument, bool) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		f.logger.Warn("changefeed: notification is not a JSON object", "bytes", len(data))
		return nil, false
	}

	var ev model.ChangeEvent
	if err := json.Unmarshal(trimmed, &ev); err != nil {
		f.logger.Warn("changefeed: bad notification payload", "err", err)
		return nil, false
	}

	if ev.OperationType == "" {
		return f.directDocument(trimmed)
	}

	f.logger.Debug("changefeed: change event", "operation", ev.OperationType)

	if ev.OperationType == model.OperationUpdate {
		if ev.UpdateDescription == nil {
			f.logger.Warn("changefeed: update without updateDescription")
			return nil, false
		}
		if !ev.UpdateDescription.Touches(model.FieldTrackingEvents) {
			f.logger.Debug("changefeed: no tracking_events updates in this change")
			return nil, false
		}
	}

	full := bytes.TrimSpace(ev.FullDocument)
	if len(full) == 0 || string(full) == "null" {
		f.logger.Info("changefeed: no full document available in change event", "operation", ev.OperationType)
		return nil, false
	}

	doc, err := model.ParseSourceDocument(full)
	if err != nil {
		f.logger.Warn("changefeed: bad full document", "operation", ev.OperationType, "err", err)
		return nil, false
	}
	return doc, true
}

func (f *Filter) directDocument(data []byte) (*model.SourceDocument, bool) {
	doc, err := model.ParseSourceDocument(data)
	if err != nil {
		f.logger.Warn("changefeed: invalid document structure received", "err", err)
		return nil, false
	}
	events, err := doc.Events()
	switch {
	case err != nil || len(events) == 0 && !hasField(doc.TrackingEvents):
		f.logger.Info("changefeed: invalid document structure received",
			"tracking_reference", doc.TrackingReference)
		return nil, false
	case len(events) == 0:
		f.logger.Info("changefeed: no tracking events found",
			"tracking_reference", doc.TrackingReference)
		return nil, false
	}
	return doc, true
}

// hasField reports whether raw holds a value other than null.
func hasField(raw json.RawMessage) bool {
	s := bytes.TrimSpace(raw)
	return len(s) > 0 && string(s) != "null"
}
