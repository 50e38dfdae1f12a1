package model

import (
	"encoding/json"
	"strings"
)

// Change stream operation types.
const (
	OperationInsert  = "insert"
	OperationUpdate  = "update"
	OperationReplace = "replace"
	OperationDelete  = "delete"
)

// ChangeEvent is an operation-typed change notification. Feeds that deliver
// the bare document instead leave OperationType empty.
type ChangeEvent struct {
	OperationType     string             `json:"operationType,omitempty"`
	DocumentKey       json.RawMessage    `json:"documentKey,omitempty"`
	UpdateDescription *UpdateDescription `json:"updateDescription,omitempty"`
	FullDocument      json.RawMessage    `json:"fullDocument,omitempty"`
}

// UpdateDescription lists the field paths changed by an update.
type UpdateDescription struct {
	UpdatedFields map[string]json.RawMessage `json:"updatedFields"`
	RemovedFields []string                   `json:"removedFields,omitempty"`
}

// Touches reports whether any updated field path is field itself or nested
// under it ("tracking_events", "tracking_events.3", ...).
func (u *UpdateDescription) Touches(field string) bool {
	if u == nil {
		return false
	}
	for path := range u.UpdatedFields {
		if path == field || strings.HasPrefix(path, field+".") {
			return true
		}
	}
	return false
}
