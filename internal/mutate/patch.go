package mutate

import (
	"github.com/abelbrown/staffproof/internal/fetch"
	"github.com/abelbrown/staffproof/internal/paging"
)

// Prepend inserts item at the head of the page and counts it in Total. The
// page never grows past PageSize.
func Prepend[T any](p fetch.Page[T], item T) fetch.Page[T] {
	out := p
	out.Items = make([]T, 0, len(p.Items)+1)
	out.Items = append(out.Items, item)
	out.Items = append(out.Items, p.Items...)
	if p.PageSize > 0 && len(out.Items) > p.PageSize {
		out.Items = out.Items[:p.PageSize]
	}
	out.Total = p.Total + 1
	out.TotalPages = paging.TotalPages(out.Total, p.PageSize)
	return out
}

// Replace swaps the item keyed key for item. It reports false when no item on
// the page has that key.
func Replace[T any](p fetch.Page[T], keyOf func(T) string, key string, item T) (fetch.Page[T], bool) {
	out := p.Clone()
	for i := range out.Items {
		if keyOf(out.Items[i]) == key {
			out.Items[i] = item
			return out, true
		}
	}
	return out, false
}

// Remove drops the item keyed key, decrements Total, recomputes TotalPages
// and clamps Page. Total is decremented even when the item is not on this
// page, since the server has one item fewer either way.
func Remove[T any](p fetch.Page[T], keyOf func(T) string, key string) fetch.Page[T] {
	out := p
	out.Items = make([]T, 0, len(p.Items))
	for _, it := range p.Items {
		if keyOf(it) != key {
			out.Items = append(out.Items, it)
		}
	}
	out.Total = p.Total - 1
	if out.Total < 0 {
		out.Total = 0
	}
	out.TotalPages = paging.TotalPages(out.Total, p.PageSize)
	out.Page = paging.Clamp(p.Page, out.TotalPages)
	return out
}
