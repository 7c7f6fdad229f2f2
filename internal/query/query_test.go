package query

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type priority string

func (p priority) String() string { return string(p) }

func TestBuildOmitsEmptyFilters(t *testing.T) {
	var nilStr *string
	empty := ""
	var nilRange *DateRange
	var nilPriority *priority

	tests := []struct {
		name  string
		value any
	}{
		{name: "nil", value: nil},
		{name: "empty string", value: ""},
		{name: "whitespace", value: "   "},
		{name: "nil pointer", value: nilStr},
		{name: "pointer to empty", value: &empty},
		{name: "zero date range", value: DateRange{}},
		{name: "nil date range", value: nilRange},
		{name: "empty enum", value: priority("")},
		{name: "nil enum pointer", value: nilPriority},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, key := range []string{"status", "userType", "priority"} {
				q := Build(Raw{Filters: map[string]any{key: tt.value}})
				_, present := q.Filters[key]
				assert.False(t, present, "key %q must be omitted", key)
				assert.Empty(t, q.Values().Get(key))
				assert.NotContains(t, q.Key(), key+"=")
			}
		})
	}
}

func TestBuildKeepsRealFilters(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	q := Build(Raw{
		Filters: map[string]any{
			"status":   " active ",
			"priority": priority("high"),
			"created":  DateRange{From: from},
			"read":     false,
		},
		Search:   "  acme ",
		Page:     3,
		PageSize: 20,
	})

	assert.Equal(t, "active", q.Filters["status"])
	assert.Equal(t, "high", q.Filters["priority"])
	assert.Equal(t, "2024-03-01..", q.Filters["created"])
	assert.Equal(t, "false", q.Filters["read"])
	assert.Equal(t, "acme", q.Search)
	assert.Equal(t, 3, q.Page)
	assert.Equal(t, 20, q.PageSize)
}

func TestBuildNormalizesPaging(t *testing.T) {
	q := Build(Raw{Page: -4, PageSize: 7})
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultPageSize, q.PageSize)

	for _, size := range PageSizes {
		assert.Equal(t, size, Build(Raw{PageSize: size}).PageSize)
	}
}

func TestBuildDeterministic(t *testing.T) {
	raw := Raw{
		Filters:  map[string]any{"b": "2", "a": "1", "c": "", "d": "4"},
		Search:   "x",
		Page:     2,
		PageSize: 5,
	}
	first := Build(raw)
	for i := 0; i < 20; i++ {
		again := Build(raw)
		require.Equal(t, first, again)
		require.Equal(t, first.Key(), again.Key())
	}
	assert.Equal(t, "page=2&limit=5&search=x&a=1&b=2&d=4", first.Key())
}

func TestValues(t *testing.T) {
	q := Build(Raw{Filters: map[string]any{"status": "open"}, Page: 2, PageSize: 25})
	v := q.Values()
	assert.Equal(t, "2", v.Get("page"))
	assert.Equal(t, "25", v.Get("limit"))
	assert.Equal(t, "open", v.Get("status"))
	_, hasSearch := v["search"]
	assert.False(t, hasSearch)
}

func TestStringerPointerFilter(t *testing.T) {
	high := priority("high")
	q := Build(Raw{Filters: map[string]any{"priority": &high}})
	assert.Equal(t, "high", q.Filters["priority"])
}

func TestReservedFilterKeysIgnored(t *testing.T) {
	q := Build(Raw{
		Filters: map[string]any{
			"page":   "99",
			"limit":  "1000",
			"search": "injected",
			"status": "open",
		},
		Search:   "acme",
		Page:     2,
		PageSize: 25,
	})
	assert.Equal(t, map[string]string{"status": "open"}, q.Filters)

	v := q.Values()
	assert.Equal(t, []string{"2"}, v["page"])
	assert.Equal(t, []string{"25"}, v["limit"])
	assert.Equal(t, []string{"acme"}, v["search"])
	assert.Equal(t, "page=2&limit=25&search=acme&status=open", q.Key())

	next := q.With("page", "7")
	assert.Equal(t, q.Filters, next.Filters)
	assert.Equal(t, "2", next.Values().Get("page"))
}

func TestWithDoesNotMutate(t *testing.T) {
	q := Build(Raw{Filters: map[string]any{"status": "open"}})
	next := q.With("status", "")
	assert.Equal(t, "open", q.Filter("status"))
	assert.Empty(t, next.Filter("status"))

	next = q.With("priority", "high")
	assert.Equal(t, "high", next.Filter("priority"))
	assert.Empty(t, q.Filter("priority"))
}

func TestDateRangeRoundTrip(t *testing.T) {
	r := DateRange{
		From: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
	}
	parsed, err := ParseDateRange(r.String())
	require.NoError(t, err)
	assert.True(t, parsed.From.Equal(r.From))
	assert.True(t, parsed.To.Equal(r.To))

	_, err = ParseDateRange("2024-01-02")
	assert.Error(t, err)
}
