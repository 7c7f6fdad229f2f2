package paging

import "strconv"

// VisibleWindow is the number of page links shown before collapsing with
// ellipses.
const VisibleWindow = 5

// Ellipsis marks a collapsed run of pages in a Window.
const Ellipsis = 0

// Window returns the page numbers a pager control should render. Ellipsis (0)
// stands for a collapsed run.
//
//	near start: 1 2 3 4 … N
//	near end:   1 … N-3 N-2 N-1 N
//	otherwise:  1 … c-1 c c+1 … N
func Window(totalPages, current int) []int {
	if totalPages < 1 {
		totalPages = 1
	}
	current = Clamp(current, totalPages)

	if totalPages <= VisibleWindow {
		pages := make([]int, totalPages)
		for i := range pages {
			pages[i] = i + 1
		}
		return pages
	}

	switch {
	case current <= 3:
		return []int{1, 2, 3, 4, Ellipsis, totalPages}
	case current >= totalPages-2:
		return []int{1, Ellipsis, totalPages - 3, totalPages - 2, totalPages - 1, totalPages}
	default:
		return []int{1, Ellipsis, current - 1, current, current + 1, Ellipsis, totalPages}
	}
}

// Labels renders a Window as display strings, using "..." for ellipses.
func Labels(window []int) []string {
	out := make([]string, len(window))
	for i, n := range window {
		if n == Ellipsis {
			out[i] = "..."
			continue
		}
		out[i] = strconv.Itoa(n)
	}
	return out
}
