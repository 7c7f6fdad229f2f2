// Package assign picks verifiers for verification cases.
//
// A case goes to the active verifier with the fewest open cases. Ties break
// by name, then id, so the choice is deterministic. Verifiers at capacity are
// skipped; a capacity of zero means unlimited.
package assign

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNoCapacity means every active verifier is at capacity.
var ErrNoCapacity = errors.New("no verifier has spare capacity")

// ErrUnknownVerifier means an explicit choice named no known verifier.
var ErrUnknownVerifier = errors.New("unknown verifier")

// Load is a verifier's current workload.
type Load struct {
	ID       string
	Name     string
	Open     int
	Capacity int
	Active   bool
}

// Available reports whether l can take another case.
func (l Load) Available() bool {
	return l.Active && (l.Capacity == 0 || l.Open < l.Capacity)
}

func less(a, b Load) bool {
	if a.Open != b.Open {
		return a.Open < b.Open
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID < b.ID
}

// Pick returns the verifier that should take the next case.
func Pick(loads []Load) (Load, error) {
	var best Load
	found := false
	for _, l := range loads {
		if !l.Available() {
			continue
		}
		if !found || less(l, best) {
			best, found = l, true
		}
	}
	if !found {
		return Load{}, ErrNoCapacity
	}
	return best, nil
}

// Choose validates an explicit verifier choice, or picks one when id is
// empty.
func Choose(loads []Load, id string) (Load, error) {
	if id == "" {
		return Pick(loads)
	}
	for _, l := range loads {
		if l.ID != id {
			continue
		}
		if !l.Available() {
			return Load{}, fmt.Errorf("%w: %s is inactive or full", ErrNoCapacity, l.Name)
		}
		return l, nil
	}
	return Load{}, fmt.Errorf("%w: %s", ErrUnknownVerifier, id)
}

// Plan assigns each case in order, counting earlier assignments toward
// later picks. Cases that cannot be placed are returned in unplaced.
func Plan(caseIDs []string, loads []Load) (plan map[string]string, unplaced []string) {
	work := make([]Load, len(loads))
	copy(work, loads)
	sort.Slice(work, func(i, j int) bool { return less(work[i], work[j]) })

	plan = make(map[string]string, len(caseIDs))
	for _, c := range caseIDs {
		l, err := Pick(work)
		if err != nil {
			unplaced = append(unplaced, c)
			continue
		}
		plan[c] = l.ID
		for i := range work {
			if work[i].ID == l.ID {
				work[i].Open++
				break
			}
		}
	}
	return plan, unplaced
}
