// Package events implements a small event-triggered function registry.
// Functions subscribe to an event name (their trigger). Dispatching an event
// runs every subscribed function in registration order and records one Run
// per function.
package events

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Trigger names understood by the functions this service registers.
const (
	TriggerIngestPDF = "rag/ingest_pdf"
	TriggerQueryPDF  = "rag/query_pdf_ai"
)

// Event is a named message with an arbitrary JSON data object.
type Event struct {
	// ID identifies the event for deduplication. Assigned on receipt if empty.
	ID string `json:"id,omitempty"`
	// Name selects which functions run.
	Name string `json:"name"`
	// Data is the event payload passed to every handler.
	Data map[string]any `json:"data,omitempty"`
	// TS is the event time in unix milliseconds. Assigned on receipt if zero.
	TS int64 `json:"ts,omitempty"`
}

// Normalize fills in the ID, TS and Data fields when they are missing.
func (e *Event) Normalize(now time.Time) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.TS == 0 {
		e.TS = now.UnixMilli()
	}
	if e.Data == nil {
		e.Data = map[string]any{}
	}
}

// String returns the data value under key as a string. Non-string values
// yield "".
func (e Event) String(key string) string {
	s, _ := e.Data[key].(string)
	return s
}

// Int returns the data value under key as an int, accepting JSON numbers,
// Go integers and numeric strings. Anything else yields fallback.
func (e Event) Int(key string, fallback int) int {
	switch v := e.Data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i)
		}
	case string:
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
