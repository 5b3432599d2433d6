package utils

import (
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// NewSessionID returns a fresh opaque session identifier.
// A new one is minted every time a tracking client is constructed.
func NewSessionID() string {
	return uuid.NewString()
}

// NewEventID returns a sortable id for a single visit or pixel record.
// The id is assigned once and travels with the record through every retry,
// so the collector can drop duplicates of a delivery it already acknowledged.
func NewEventID() string {
	return ulid.Make().String()
}
