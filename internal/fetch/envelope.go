package fetch

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/abelbrown/staffproof/internal/logging"
	"github.com/abelbrown/staffproof/internal/paging"
	"github.com/abelbrown/staffproof/internal/query"
)

// Page is one materialized page of a collection.
type Page[T any] struct {
	Items      []T
	Total      int
	TotalPages int
	Page       int
	PageSize   int
}

// EmptyPage returns the page a screen shows before its first load.
func EmptyPage[T any](pageSize int) Page[T] {
	return Page[T]{Items: []T{}, TotalPages: 1, Page: 1, PageSize: pageSize}
}

// Clone returns a copy of p that shares no backing array with it.
func (p Page[T]) Clone() Page[T] {
	out := p
	out.Items = make([]T, len(p.Items))
	copy(out.Items, p.Items)
	return out
}

// envelope covers every list shape the API is known to return:
//
//	{"data": [...], "total": n, "totalPages": n}
//	{"records": [...], "total": n, "totalPages": n}
//	{"items": [...], "pagination": {"page": n, "limit": n, "total": n, "pages": n}}
type envelope struct {
	Data       json.RawMessage `json:"data"`
	Records    json.RawMessage `json:"records"`
	Items      json.RawMessage `json:"items"`
	Total      *int            `json:"total"`
	TotalPages *int            `json:"totalPages"`
	Pagination *struct {
		Page  int  `json:"page"`
		Limit int  `json:"limit"`
		Total *int `json:"total"`
		Pages int  `json:"pages"`
	} `json:"pagination"`
}

// decodePage normalizes a list response for q into a Page.
func decodePage[T any](body []byte, q query.Query) (Page[T], error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Page[T]{}, malformed("response is not a JSON object: %v", err)
	}

	raw := firstPresent(env.Data, env.Records, env.Items)
	if raw == nil {
		return Page[T]{}, malformed("response has no data, records or items array")
	}

	var items []T
	if err := json.Unmarshal(raw, &items); err != nil {
		return Page[T]{}, malformed("items are not a list of records: %v", err)
	}
	if items == nil {
		items = []T{}
	}

	var total *int
	switch {
	case env.Total != nil:
		total = env.Total
	case env.Pagination != nil && env.Pagination.Total != nil:
		total = env.Pagination.Total
	}
	if total == nil {
		return Page[T]{}, malformed("response has no total")
	}
	if *total < 0 {
		return Page[T]{}, malformed("response total is negative (%d)", *total)
	}

	if len(items) > q.PageSize {
		logging.Warn("server returned more items than requested", "limit", q.PageSize, "got", len(items))
		items = items[:q.PageSize]
	}

	return Page[T]{
		Items:      items,
		Total:      *total,
		TotalPages: paging.TotalPages(*total, q.PageSize),
		Page:       q.Page,
		PageSize:   q.PageSize,
	}, nil
}

// firstPresent returns the first non-null raw value.
func firstPresent(candidates ...json.RawMessage) json.RawMessage {
	for _, c := range candidates {
		if len(c) > 0 && !bytes.Equal(bytes.TrimSpace(c), []byte("null")) {
			return c
		}
	}
	return nil
}

func malformed(format string, args ...any) *Error {
	return &Error{Kind: KindMalformed, Message: fmt.Sprintf(format, args...)}
}
