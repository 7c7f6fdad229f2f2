package ui

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/abelbrown/staffproof/internal/domain"
	"github.com/abelbrown/staffproof/internal/paging"
)

// pendingMark prefixes rows with a mutation in flight.
const (
	pendingMark = "⋯ "
	plainMark   = "  "
)

// fitCell truncates s to width display cells and pads it to exactly width.
func fitCell(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.FillRight(runewidth.Truncate(s, width, "…"), width)
}

// renderRow lays out cells under columns. Cells beyond the columns are dropped.
func renderRow(columns []domain.Column, cells []string) string {
	parts := make([]string, len(columns))
	for i, c := range columns {
		var cell string
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = fitCell(cell, c.Width)
	}
	return strings.Join(parts, " ")
}

func renderHeader(columns []domain.Column) string {
	titles := make([]string, len(columns))
	for i, c := range columns {
		titles[i] = c.Title
	}
	return plainMark + renderRow(columns, titles)
}

// scrollOffset keeps the cursor inside a viewport of height rows.
func scrollOffset(cursor, height int) int {
	if height < 1 {
		height = 1
	}
	if cursor >= height {
		return cursor - height + 1
	}
	return 0
}

// renderTable renders a header and as many rows as fit in height.
func renderTable[T domain.Record](columns []domain.Column, items []T, cursor int, pending func(string) bool, key func(T) string, width, height int) string {
	var b strings.Builder
	b.WriteString(HeaderRow.Render(runewidth.Truncate(renderHeader(columns), width, "")))
	b.WriteString("\n")

	rows := height - 1
	if rows < 1 {
		rows = 1
	}
	start := scrollOffset(cursor, rows)
	for i := start; i < len(items) && i < start+rows; i++ {
		item := items[i]
		mark := plainMark
		style := NormalRow
		if pending(key(item)) {
			mark = pendingMark
			style = PendingRow
		}
		if i == cursor {
			style = SelectedRow
		}
		line := runewidth.Truncate(mark+renderRow(columns, item.Cells()), width, "")
		b.WriteString(style.Render(line))
		if i < len(items)-1 && i < start+rows-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// renderWindow renders the pagination control with the current page marked.
func renderWindow(totalPages, current int) string {
	labels := paging.Labels(paging.Window(totalPages, current))
	cur := strconv.Itoa(paging.Clamp(current, totalPages))
	parts := make([]string, len(labels))
	for i, l := range labels {
		if l == cur {
			parts[i] = PageCurrent.Render("[" + l + "]")
		} else {
			parts[i] = PageOther.Render(l)
		}
	}
	return strings.Join(parts, " ")
}
