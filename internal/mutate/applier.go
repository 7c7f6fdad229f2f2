package mutate

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/abelbrown/staffproof/internal/fetch"
	"github.com/abelbrown/staffproof/internal/logging"
)

// TempKeyPrefix marks client-generated keys of optimistic creates.
const TempKeyPrefix = "tmp-"

// Target is the in-memory page a mutation reconciles into. The list
// controller implements it.
type Target[T any] interface {
	// Patch atomically applies fn to the current page and returns the page as
	// it was before fn together with the generation fn produced.
	Patch(fn func(fetch.Page[T]) fetch.Page[T]) (before fetch.Page[T], gen uint64)

	// Restore puts before back, but only if the page is still at generation
	// gen. It reports false when the page moved on in the meantime.
	Restore(before fetch.Page[T], gen uint64) bool

	// Refetch re-runs the current query.
	Refetch()
}

// Result is the outcome of a successful or rolled back mutation.
type Result[T any] struct {
	Item       T      // server representation for create/update
	Key        string // key the gate held (temp key for creates)
	Affected   int    // bulk only
	RolledBack bool   // optimistic patch was undone
	Policy     Policy // policy actually used
}

// Applier runs mutations against a Backend.
type Applier[T any] struct {
	backend Backend[T]
	ident   Identity[T]
	gate    *Gate
	notify  func(key string, pending bool)
}

// NewApplier creates an Applier. ident.Key is required.
func NewApplier[T any](backend Backend[T], ident Identity[T]) *Applier[T] {
	if ident.Key == nil {
		panic("mutate: Identity.Key is required")
	}
	return &Applier[T]{backend: backend, ident: ident, gate: NewGate()}
}

// OnPending registers fn to be called whenever a key gains or loses an
// in-flight mutation. Must be called before the first Apply.
func (a *Applier[T]) OnPending(fn func(key string, pending bool)) {
	a.notify = fn
}

// Pending returns the keys with mutations in flight.
func (a *Applier[T]) Pending() []string {
	return a.gate.Keys()
}

// IsPending reports whether key has a mutation in flight.
func (a *Applier[T]) IsPending(key string) bool {
	return a.gate.Held(key)
}

// Apply performs req and reconciles the result into target.
//
// Bulk mutations always refetch. An optimistic create without
// Identity.WithKey also refetches, since the temporary row cannot be keyed.
func (a *Applier[T]) Apply(ctx context.Context, req Request[T], target Target[T]) (Result[T], error) {
	if err := req.Validate(); err != nil {
		return Result[T]{}, err
	}

	policy := req.Policy
	if req.Kind == KindBulk {
		policy = RefetchAfterWrite
		req.TargetID = BulkTarget
	}
	if req.Kind == KindCreate && policy == Optimistic && a.ident.WithKey == nil {
		policy = RefetchAfterWrite
	}

	key := req.TargetID
	if req.Kind == KindCreate {
		key = TempKeyPrefix + uuid.NewString()
	}
	if !a.gate.Acquire(key) {
		return Result[T]{}, fmt.Errorf("%w: %s", ErrBusy, key)
	}
	a.setPending(key, true)
	defer func() {
		a.gate.Release(key)
		a.setPending(key, false)
	}()

	logging.Debug("mutation start", "kind", req.Kind, "key", key, "action", req.Action, "policy", policy)

	if policy == Optimistic {
		return a.optimistic(ctx, req, key, target)
	}
	return a.refetch(ctx, req, key, target)
}

func (a *Applier[T]) optimistic(ctx context.Context, req Request[T], key string, target Target[T]) (Result[T], error) {
	res := Result[T]{Key: key, Policy: Optimistic}

	before, gen := target.Patch(func(p fetch.Page[T]) fetch.Page[T] {
		return a.local(p, req, key)
	})

	item, _, err := a.call(ctx, req)
	if err != nil {
		res.RolledBack = target.Restore(before, gen)
		if !res.RolledBack {
			// Another patch or fetch landed on top of ours, so the snapshot is
			// stale. Reload instead of leaving the failed change in place.
			target.Refetch()
		}
		logging.Warn("mutation failed", "kind", req.Kind, "key", key, "rolled_back", res.RolledBack, "error", err)
		return res, err
	}
	res.Item = item

	switch req.Kind {
	case KindCreate, KindUpdate:
		target.Patch(func(p fetch.Page[T]) fetch.Page[T] {
			out, _ := Replace(p, a.ident.Key, key, item)
			return out
		})
	case KindDelete:
		// The local removal may have clamped the page; the clamped page's
		// items were never loaded.
		if Remove(before, a.ident.Key, key).Page != before.Page {
			target.Refetch()
		}
	}
	return res, nil
}

func (a *Applier[T]) refetch(ctx context.Context, req Request[T], key string, target Target[T]) (Result[T], error) {
	res := Result[T]{Key: key, Policy: RefetchAfterWrite}

	item, affected, err := a.call(ctx, req)
	if err != nil {
		logging.Warn("mutation failed", "kind", req.Kind, "key", key, "error", err)
		return res, err
	}
	res.Item = item
	res.Affected = affected

	if req.Kind == KindDelete {
		target.Patch(func(p fetch.Page[T]) fetch.Page[T] {
			return Remove(p, a.ident.Key, key)
		})
	}
	target.Refetch()
	return res, nil
}

// local computes the optimistic effect of req on p.
func (a *Applier[T]) local(p fetch.Page[T], req Request[T], key string) fetch.Page[T] {
	switch req.Kind {
	case KindCreate:
		return Prepend(p, a.ident.WithKey(req.Payload, key))
	case KindUpdate:
		item := req.Payload
		if a.ident.WithKey != nil {
			item = a.ident.WithKey(item, key)
		}
		out, _ := Replace(p, a.ident.Key, key, item)
		return out
	case KindDelete:
		return Remove(p, a.ident.Key, key)
	}
	return p
}

// call performs the single network request for req.
func (a *Applier[T]) call(ctx context.Context, req Request[T]) (T, int, error) {
	var zero T
	switch req.Kind {
	case KindCreate:
		item, err := a.backend.Create(ctx, req.Payload)
		return item, 0, err
	case KindUpdate:
		if req.Action != "" {
			item, err := a.backend.Action(ctx, req.TargetID, req.Action, req.Payload)
			return item, 0, err
		}
		item, err := a.backend.Update(ctx, req.TargetID, req.Payload)
		return item, 0, err
	case KindDelete:
		return zero, 0, a.backend.Delete(ctx, req.TargetID)
	case KindBulk:
		n, err := a.backend.Bulk(ctx, req.Action)
		return zero, n, err
	}
	return zero, 0, fmt.Errorf("%w: unknown kind %q", ErrInvalid, req.Kind)
}

func (a *Applier[T]) setPending(key string, pending bool) {
	if a.notify != nil {
		a.notify(key, pending)
	}
}
