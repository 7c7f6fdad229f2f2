// Package otel records structured events about list screens.
//
// Events are serialized one per line (JSONL) by an asynchronous Logger. A
// RingBuffer keeps the most recent events in memory for the TUI debug
// overlay; the `sp events` command reads the file back with ReadFile.
package otel

import (
	"encoding/json"
	"strings"
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
	KindFetchStart     EventKind = "list.fetch_start"
	KindFetchComplete  EventKind = "list.fetch_complete"
	KindFetchStale     EventKind = "list.fetch_stale"
	KindListError      EventKind = "list.error"
	KindMutateStart    EventKind = "list.mutate_start"
	KindMutateComplete EventKind = "list.mutate_complete"
	KindMutateRollback EventKind = "list.mutate_rollback"

	KindKeyPress EventKind = "ui.key"

	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
)

// Subsystem returns the part of k before the dot.
func (k EventKind) Subsystem() string {
	s, _, _ := strings.Cut(string(k), ".")
	return s
}

// Event is one observability record. Only Kind is required.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"`
	SessionID string         `json:"session_id,omitempty"`
	Resource  string         `json:"resource,omitempty"`
	QueryKey  string         `json:"query,omitempty"` // query.Query.Key()
	Seq       uint64         `json:"seq,omitempty"`   // fetch sequence number
	Page      int            `json:"page,omitempty"`
	Count     int            `json:"count,omitempty"`
	Total     int            `json:"total,omitempty"`
	Key       string         `json:"key,omitempty"` // mutation target key
	Action    string         `json:"action,omitempty"`
	Policy    string         `json:"policy,omitempty"`
	ErrKind   string         `json:"err_kind,omitempty"`
	Status    int            `json:"status,omitempty"` // HTTP status
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Dur       time.Duration  `json:"-"`
	DurMs     float64        `json:"dur_ms,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON fills dur_ms from Dur.
func (e Event) MarshalJSON() ([]byte, error) {
	type plain Event
	p := plain(e)
	if e.Dur > 0 {
		p.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(p)
}

// UnmarshalJSON restores Dur from dur_ms.
func (e *Event) UnmarshalJSON(data []byte) error {
	type plain Event
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = Event(p)
	if e.DurMs > 0 {
		e.Dur = time.Duration(e.DurMs * float64(time.Millisecond))
	}
	return nil
}
