package backend

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abelbrown/staffproof/internal/domain"
	"github.com/abelbrown/staffproof/internal/paging"
	"github.com/abelbrown/staffproof/internal/query"
	"github.com/abelbrown/staffproof/internal/store"
)

// reserved query parameters that are not filters.
var reserved = map[string]bool{"page": true, "limit": true, "search": true}

func withDescriptor(ctx context.Context, d domain.Descriptor) context.Context {
	return context.WithValue(ctx, descriptorKey{}, d)
}

func descriptorFrom(ctx context.Context) domain.Descriptor {
	d, _ := ctx.Value(descriptorKey{}).(domain.Descriptor)
	return d
}

// matcher is one compiled filter.
type matcher func(store.Doc) bool

// listParams is a parsed list request.
type listParams struct {
	page     int
	limit    int
	search   string
	matchers []matcher
}

func parseList(d domain.Descriptor, r *http.Request) (listParams, *httpError) {
	v := r.URL.Query()
	p := listParams{
		page:   atoiDefault(v.Get("page"), 1),
		limit:  query.NormalizePageSize(atoiDefault(v.Get("limit"), query.DefaultPageSize)),
		search: strings.ToLower(strings.TrimSpace(v.Get("search"))),
	}
	if p.page < 1 {
		p.page = 1
	}

	fields := map[string]string{}
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := strings.TrimSpace(v.Get(key))
		if reserved[key] || value == "" {
			continue
		}
		spec, ok := d.Filter(key)
		if !ok {
			fields[key] = "unknown filter"
			continue
		}
		m, err := compile(spec, value)
		if err != nil {
			fields[key] = err.Error()
			continue
		}
		p.matchers = append(p.matchers, m)
	}
	if len(fields) > 0 {
		return p, invalid(fields)
	}
	return p, nil
}

func atoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func compile(spec domain.FilterSpec, value string) (matcher, error) {
	if spec.Kind == domain.FilterDate {
		rng, err := query.ParseDateRange(value)
		if err != nil {
			return nil, fmt.Errorf("expected from..to dates")
		}
		return dateMatcher(spec.Field, rng), nil
	}

	if len(spec.Values) > 0 && !containsFold(spec.Values, value) {
		return nil, fmt.Errorf("must be one of %s", strings.Join(spec.Values, ", "))
	}
	if want, ok := spec.Map[strings.ToLower(value)]; ok {
		return func(doc store.Doc) bool { return doc[spec.Field] == want }, nil
	}
	return func(doc store.Doc) bool {
		return strings.EqualFold(fieldString(doc, spec.Field), value)
	}, nil
}

func dateMatcher(field string, rng query.DateRange) matcher {
	var until time.Time
	if !rng.To.IsZero() {
		until = rng.To.AddDate(0, 0, 1)
	}
	return func(doc store.Doc) bool {
		t, err := time.Parse(time.RFC3339, fieldString(doc, field))
		if err != nil {
			return false
		}
		if !rng.From.IsZero() && t.Before(rng.From) {
			return false
		}
		if !until.IsZero() && !t.Before(until) {
			return false
		}
		return true
	}
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

func fieldString(doc store.Doc, field string) string {
	switch v := doc[field].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

func matchesSearch(d domain.Descriptor, doc store.Doc, search string) bool {
	if search == "" {
		return true
	}
	for _, f := range d.SearchFields {
		if strings.Contains(strings.ToLower(fieldString(doc, f)), search) {
			return true
		}
	}
	return false
}

// selectPage filters, sorts and slices docs. A page past the end yields no
// items; the caller decides whether to clamp.
func selectPage(d domain.Descriptor, docs []store.Doc, p listParams) (items []store.Doc, total int) {
	kept := docs[:0:0]
outer:
	for _, doc := range docs {
		if !matchesSearch(d, doc, p.search) {
			continue
		}
		for _, m := range p.matchers {
			if !m(doc) {
				continue outer
			}
		}
		kept = append(kept, doc)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := fieldString(kept[i], d.SortField), fieldString(kept[j], d.SortField)
		if d.SortAscending {
			return strings.ToLower(a) < strings.ToLower(b)
		}
		return a > b
	})

	total = len(kept)
	start := (p.page - 1) * p.limit
	if start >= total {
		return []store.Doc{}, total
	}
	end := start + p.limit
	if end > total {
		end = total
	}
	return kept[start:end], total
}

// envelope shapes a page the way d is served.
func envelope(d domain.Descriptor, items []store.Doc, total int, p listParams) any {
	pages := paging.TotalPages(total, p.limit)
	switch d.Envelope {
	case domain.EnvelopeRecords:
		return map[string]any{"records": items, "total": total, "totalPages": pages}
	case domain.EnvelopeItems:
		return map[string]any{
			"items": items,
			"pagination": map[string]int{
				"page":  p.page,
				"limit": p.limit,
				"total": total,
				"pages": pages,
			},
		}
	default:
		return map[string]any{"data": items, "total": total, "totalPages": pages}
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	d := descriptorFrom(r.Context())
	p, herr := parseList(d, r)
	if herr != nil {
		writeError(w, herr.status, herr.msg, herr.fields)
		return
	}

	var docs []store.Doc
	err := s.store.View(r.Context(), func(tx *store.Tx) error {
		var err error
		docs, err = tx.All(r.Context(), d.Name)
		return err
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}

	items, total := selectPage(d, docs, p)
	writeJSON(w, http.StatusOK, envelope(d, items, total, p))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	d := descriptorFrom(r.Context())
	id := chi.URLParam(r, "id")

	var doc store.Doc
	err := s.store.View(r.Context(), func(tx *store.Tx) error {
		var err error
		doc, err = tx.Get(r.Context(), d.Name, id)
		return err
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}
