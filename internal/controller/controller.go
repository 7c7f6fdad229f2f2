// Package controller binds a list screen to a remote collection.
//
// A List owns one screen's query (filters, search, page, page size), runs
// fetches through a Fetcher, and publishes the resulting state. Mutations go
// through a mutate.Applier that patches the same state.
//
//	┌──────┐  SetFilter/SetSearch/SetPage   ┌──────┐   List(ctx, q)   ┌─────────┐
//	│  UI  │ ─────────────────────────────> │ List │ ───────────────> │ Fetcher │
//	│      │ <───────── Subscribe ───────── │      │ <─── Page[T] ─── │         │
//	└──────┘                                └──────┘                  └─────────┘
//
// # Supersession
//
// At most one fetch is active. Issuing a new fetch cancels the previous one
// and bumps a sequence number; a result whose sequence is not the latest is
// dropped without touching state. Items, Total, TotalPages and Page are
// replaced together under one lock.
//
// # Events
//
// Subscribe returns a buffered channel. Sends never block: if the subscriber
// falls behind, events are dropped and the subscriber should re-read State.
package controller

import (
	"context"
	"time"

	"github.com/abelbrown/staffproof/internal/fetch"
	"github.com/abelbrown/staffproof/internal/query"
)

// DefaultDebounce is the quiet period after the last search keystroke.
const DefaultDebounce = 350 * time.Millisecond

// eventBuffer is the subscriber channel capacity.
const eventBuffer = 64

// Status is the fetch lifecycle of a screen.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

// EventType categorizes controller events.
type EventType string

const (
	EventStarted   EventType = "started"   // a fetch was issued
	EventCompleted EventType = "completed" // a fetch result was committed
	EventError     EventType = "error"     // a fetch or mutation failed
	EventPatched   EventType = "patched"   // a mutation changed the page locally
	EventPending   EventType = "pending"   // a key gained or lost an in-flight mutation
)

// Event is sent to subscribers when state changes.
type Event[T any] struct {
	Type EventType
	Seq  uint64       // fetch sequence for started/completed/error
	Page fetch.Page[T] // populated on completed and patched
	Err  error        // populated on error
	Key  string       // mutation key for pending and mutation errors
}

// State is a consistent snapshot of a screen.
type State[T any] struct {
	Status  Status
	Page    fetch.Page[T]
	Query   query.Query
	Err     *fetch.Error // last fetch error, cleared by the next success
	Pending []string     // keys with in-flight mutations, sorted
	Loaded  bool         // a good page has been committed at least once

	// Searching is true while a search change waits out the debounce.
	Searching bool
}

// IsPending reports whether key has a mutation in flight.
func (s State[T]) IsPending(key string) bool {
	for _, k := range s.Pending {
		if k == key {
			return true
		}
	}
	return false
}

// Fetcher loads one page of a collection. *fetch.Resource satisfies it.
type Fetcher[T any] interface {
	List(ctx context.Context, q query.Query) (fetch.Page[T], error)
}
