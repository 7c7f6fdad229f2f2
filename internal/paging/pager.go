// Package paging owns page navigation for a list screen.
//
// A Pager starts with no data (total unknown) and moves to has-data once a
// total is reported. Every navigation clamps to [1, TotalPages], so a Pager can
// never point past the last page.
package paging

// Pager tracks {page, pageSize, total, totalPages}. The zero value is not
// usable; call New.
type Pager struct {
	page       int
	pageSize   int
	total      int
	totalPages int
	known      bool
}

// New creates a Pager on page 1 with no data.
func New(pageSize int) *Pager {
	if pageSize < 1 {
		pageSize = 1
	}
	return &Pager{page: 1, pageSize: pageSize, totalPages: 1}
}

// TotalPages returns ceil(total/pageSize), never less than 1.
func TotalPages(total, pageSize int) int {
	if pageSize < 1 || total <= 0 {
		return 1
	}
	return (total + pageSize - 1) / pageSize
}

// Clamp bounds page to [1, totalPages].
func Clamp(page, totalPages int) int {
	if totalPages < 1 {
		totalPages = 1
	}
	if page > totalPages {
		page = totalPages
	}
	if page < 1 {
		page = 1
	}
	return page
}

// Page returns the current 1-based page.
func (p *Pager) Page() int { return p.page }

// PageSize returns the current page size.
func (p *Pager) PageSize() int { return p.pageSize }

// Total returns the last reported total item count.
func (p *Pager) Total() int { return p.total }

// TotalPages returns the page count for the last reported total.
func (p *Pager) TotalPages() int { return p.totalPages }

// HasData reports whether a total has been reported.
func (p *Pager) HasData() bool { return p.known }

// GoTo moves to page n, clamped. Before any total is known only the lower
// bound applies.
func (p *Pager) GoTo(n int) int {
	if !p.known {
		if n < 1 {
			n = 1
		}
		p.page = n
		return p.page
	}
	p.page = Clamp(n, p.totalPages)
	return p.page
}

// Next moves one page forward. A no-op on the last page.
func (p *Pager) Next() int { return p.GoTo(p.page + 1) }

// Previous moves one page back. A no-op on page 1.
func (p *Pager) Previous() int { return p.GoTo(p.page - 1) }

// SetPageSize changes density and returns to page 1.
func (p *Pager) SetPageSize(n int) {
	if n < 1 {
		n = 1
	}
	p.pageSize = n
	p.page = 1
	if p.known {
		p.totalPages = TotalPages(p.total, p.pageSize)
	}
}

// SetTotal records a total and re-clamps the current page.
func (p *Pager) SetTotal(total int) {
	if total < 0 {
		total = 0
	}
	p.total = total
	p.totalPages = TotalPages(total, p.pageSize)
	p.known = true
	p.page = Clamp(p.page, p.totalPages)
}

// Reset returns to page 1, keeping size and total.
func (p *Pager) Reset() {
	p.page = 1
}

// Offset returns the zero-based index of the first item on the current page.
func (p *Pager) Offset() int {
	return (p.page - 1) * p.pageSize
}
