// Package query turns raw screen input into the canonical list query sent to
// a collection endpoint.
//
// Build is pure: the same logical input always yields a structurally identical
// Query, so Key can be used to deduplicate in-flight requests.
package query

import (
	"fmt"
	"net/url"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// DefaultPageSize is used when a requested page size is not allowed.
const DefaultPageSize = 10

// PageSizes are the page densities a screen may offer.
var PageSizes = []int{5, 10, 20, 25, 50}

// dateLayout is the wire format for date range bounds.
const dateLayout = "2006-01-02"

// DateRange constrains a date field. Either bound may be zero.
type DateRange struct {
	From time.Time
	To   time.Time
}

// IsZero reports whether neither bound is set.
func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// String encodes the range as "from..to" with empty sides for open bounds.
func (r DateRange) String() string {
	var from, to string
	if !r.From.IsZero() {
		from = r.From.Format(dateLayout)
	}
	if !r.To.IsZero() {
		to = r.To.Format(dateLayout)
	}
	return from + ".." + to
}

// ParseDateRange is the inverse of DateRange.String.
func ParseDateRange(s string) (DateRange, error) {
	from, to, ok := strings.Cut(s, "..")
	if !ok {
		return DateRange{}, fmt.Errorf("date range %q: missing \"..\"", s)
	}
	var r DateRange
	var err error
	if from != "" {
		if r.From, err = time.Parse(dateLayout, from); err != nil {
			return DateRange{}, fmt.Errorf("date range from: %w", err)
		}
	}
	if to != "" {
		if r.To, err = time.Parse(dateLayout, to); err != nil {
			return DateRange{}, fmt.Errorf("date range to: %w", err)
		}
	}
	return r, nil
}

// Raw is the unnormalized state a screen holds.
type Raw struct {
	Filters  map[string]any
	Search   string
	Page     int
	PageSize int
}

// Query is the canonical list query.
type Query struct {
	Filters  map[string]string
	Search   string
	Page     int
	PageSize int
}

// Build normalizes raw screen state into a Query.
//
// Filter values that mean "no constraint" (nil, "", nil pointers, zero date
// ranges) are dropped rather than sent as empty constraints.
func Build(raw Raw) Query {
	q := Query{
		Filters:  make(map[string]string, len(raw.Filters)),
		Search:   strings.TrimSpace(raw.Search),
		Page:     raw.Page,
		PageSize: NormalizePageSize(raw.PageSize),
	}
	if q.Page < 1 {
		q.Page = 1
	}
	for k, v := range raw.Filters {
		key := strings.TrimSpace(k)
		if key == "" || reserved[key] {
			continue
		}
		if s, ok := filterValue(v); ok {
			q.Filters[key] = s
		}
	}
	return q
}

// reserved keys carry pagination and search on the wire and cannot be
// used as filter names.
var reserved = map[string]bool{"page": true, "limit": true, "search": true}

// filterValue renders a raw filter value, reporting false for "no constraint".
func filterValue(v any) (string, bool) {
	var s string
	switch val := v.(type) {
	case nil:
		return "", false
	case string:
		s = val
	case *string:
		if val == nil {
			return "", false
		}
		s = *val
	case DateRange:
		if val.IsZero() {
			return "", false
		}
		s = val.String()
	case *DateRange:
		if val == nil || val.IsZero() {
			return "", false
		}
		s = val.String()
	case bool:
		s = strconv.FormatBool(val)
	case int:
		s = strconv.Itoa(val)
	case fmt.Stringer:
		if rv := reflect.ValueOf(val); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return "", false
		}
		s = val.String()
	default:
		s = fmt.Sprint(val)
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

// NormalizePageSize snaps n to an allowed page size.
func NormalizePageSize(n int) int {
	for _, size := range PageSizes {
		if n == size {
			return n
		}
	}
	return DefaultPageSize
}

// With returns a copy of q with one filter set. An empty value removes it.
func (q Query) With(key, value string) Query {
	out := q.clone()
	if reserved[key] {
		return out
	}
	value = strings.TrimSpace(value)
	if value == "" {
		delete(out.Filters, key)
	} else {
		out.Filters[key] = value
	}
	return out
}

// Filter returns the value of a filter key, or "" when unconstrained.
func (q Query) Filter(key string) string {
	return q.Filters[key]
}

// Values encodes q as URL query parameters.
func (q Query) Values() url.Values {
	v := url.Values{}
	v.Set("page", strconv.Itoa(q.Page))
	v.Set("limit", strconv.Itoa(q.PageSize))
	if q.Search != "" {
		v.Set("search", q.Search)
	}
	for k, val := range q.Filters {
		if reserved[k] {
			continue
		}
		v.Set(k, val)
	}
	return v
}

// Key returns a canonical string for q. Equal queries have equal keys.
func (q Query) Key() string {
	keys := make([]string, 0, len(q.Filters))
	for k := range q.Filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "page=%d&limit=%d&search=%s", q.Page, q.PageSize, url.QueryEscape(q.Search))
	for _, k := range keys {
		fmt.Fprintf(&b, "&%s=%s", url.QueryEscape(k), url.QueryEscape(q.Filters[k]))
	}
	return b.String()
}

// Equal reports whether q and other describe the same request.
func (q Query) Equal(other Query) bool {
	return q.Key() == other.Key()
}

func (q Query) clone() Query {
	out := q
	out.Filters = make(map[string]string, len(q.Filters))
	for k, v := range q.Filters {
		out.Filters[k] = v
	}
	return out
}

// Clone returns a deep copy of q.
func (q Query) Clone() Query {
	return q.clone()
}
