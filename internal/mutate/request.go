// Package mutate performs create/update/delete requests against a collection
// and reconciles the outcome into a screen's in-memory page.
//
// Two reconciliation policies exist. RefetchAfterWrite waits for the server and
// then re-runs the list query. Optimistic patches the page before the request
// resolves and restores the exact pre-mutation snapshot if it fails. Either
// way a failed mutation never leaves a partial change behind.
package mutate

import (
	"context"
	"errors"
	"fmt"
)

// Kind is the mutation verb.
type Kind string

const (
	KindCreate Kind = "create"
	KindUpdate Kind = "update"
	KindDelete Kind = "delete"
	KindBulk   Kind = "bulk" // collection-wide action, TargetID is "*"
)

// BulkTarget is the TargetID of a bulk mutation.
const BulkTarget = "*"

// Policy selects how a successful or failed mutation is reconciled.
type Policy int

const (
	RefetchAfterWrite Policy = iota
	Optimistic
)

func (p Policy) String() string {
	switch p {
	case RefetchAfterWrite:
		return "refetch"
	case Optimistic:
		return "optimistic"
	default:
		return "unknown"
	}
}

var (
	// ErrBusy rejects a mutation on an item that already has one in flight.
	ErrBusy = errors.New("mutation already pending for item")

	// ErrInvalid rejects a malformed request before any I/O.
	ErrInvalid = errors.New("invalid mutation request")
)

// Request describes one mutation.
type Request[T any] struct {
	Kind     Kind
	TargetID string // empty for create, BulkTarget for bulk
	Action   string // optional narrower endpoint, e.g. "read"; required for bulk
	Payload  T      // new state of the item; ignored for delete and bulk
	Policy   Policy
}

// Validate checks the request shape.
func (r Request[T]) Validate() error {
	switch r.Kind {
	case KindCreate:
		if r.TargetID != "" {
			return fmt.Errorf("%w: create must not name a target", ErrInvalid)
		}
	case KindUpdate, KindDelete:
		if r.TargetID == "" || r.TargetID == BulkTarget {
			return fmt.Errorf("%w: %s needs a target id", ErrInvalid, r.Kind)
		}
	case KindBulk:
		if r.Action == "" {
			return fmt.Errorf("%w: bulk needs an action", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalid, r.Kind)
	}
	return nil
}

// Identity tells the applier how to key items of type T.
type Identity[T any] struct {
	Key func(T) string

	// WithKey returns a copy of item carrying key. Optional; without it an
	// optimistic create falls back to RefetchAfterWrite.
	WithKey func(item T, key string) T
}

// Backend is the remote side of a collection. *fetch.Resource satisfies it.
type Backend[T any] interface {
	Create(ctx context.Context, payload T) (T, error)
	Update(ctx context.Context, id string, payload T) (T, error)
	Action(ctx context.Context, id, action string, payload any) (T, error)
	Delete(ctx context.Context, id string) error
	Bulk(ctx context.Context, action string) (int, error)
}
