// Package otel records structured load-cycle events as JSONL.
//
// Events are written by a background goroutine so callers on the UI or
// fetch path never block on disk. A RingBuffer can be attached to keep the
// most recent events in memory for the debug pane.
package otel

import (
	"encoding/json"
	"time"
)

// Level is the event severity.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind is "<subsystem>.<action>".
type EventKind string

const (
	KindFetchStart    EventKind = "fetch.start"
	KindFetchComplete EventKind = "fetch.complete"
	KindFetchError    EventKind = "fetch.error"

	KindLoadStart    EventKind = "load.start"
	KindLoadComplete EventKind = "load.complete"
	KindLoadError    EventKind = "load.error"
	KindLoadCancel   EventKind = "load.cancel"

	KindSchemaDetect       EventKind = "schema.detect"
	KindSchemaUnrecognized EventKind = "schema.unrecognized"
	KindSchemaConflict     EventKind = "schema.conflict"
	KindRecordDropped      EventKind = "record.dropped"
	KindCountMismatch      EventKind = "count.mismatch"

	KindWatchChange  EventKind = "watch.change"
	KindScheduleTick EventKind = "schedule.tick"

	KindStoreError EventKind = "store.error"

	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
)

// Event is one JSONL line. Only Kind is required; Time and SessionID are
// filled in by the Logger.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"` // "pipeline", "fetch", "coord", "ui", "main"
	SessionID string         `json:"session_id,omitempty"`
	LoadID    uint64         `json:"load_id,omitempty"` // load cycle sequence number
	Dur       time.Duration  `json:"-"`
	DurMs     float64        `json:"dur_ms,omitempty"`
	Count     int            `json:"count,omitempty"`
	Source    string         `json:"source,omitempty"`
	Shape     string         `json:"shape,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON writes Dur as dur_ms.
func (e Event) MarshalJSON() ([]byte, error) {
	type alias Event
	a := alias(e)
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}

// ErrString returns err.Error(), or "" for nil.
func ErrString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
