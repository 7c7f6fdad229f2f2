package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abelbrown/staffproof/internal/paging"
	"github.com/abelbrown/staffproof/internal/query"
)

var (
	listPage    int
	listLimit   int
	listSearch  string
	listFilters []string
)

var listCmd = &cobra.Command{
	Use:   "list <resource>",
	Short: "List one page of a collection",
	Long: `List fetches one page of a collection through the same query rules the
TUI uses: blank filters are omitted, the page size snaps to an allowed value,
and a page past the end is clamped to the last page.

Example:
  sp list notifications --filter status=unread
  sp list cases --search acme --limit 20 --page 2
  sp list billing --filter issued=2025-09-01..2025-09-30`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().IntVarP(&listPage, "page", "p", 1, "page number")
	listCmd.Flags().IntVarP(&listLimit, "limit", "n", 0, "page size (default from config)")
	listCmd.Flags().StringVarP(&listSearch, "search", "s", "", "free-text search")
	listCmd.Flags().StringArrayVarP(&listFilters, "filter", "f", nil, "filter as key=value (repeatable)")
}

func runList(cmd *cobra.Command, args []string) error {
	d, err := lookup(args[0])
	if err != nil {
		return err
	}
	filters, err := parseFilters(d, listFilters)
	if err != nil {
		return err
	}
	limit := listLimit
	if limit == 0 {
		limit = cfg.List.PageSize
	}

	q := query.Build(query.Raw{Filters: filters, Search: listSearch, Page: listPage, PageSize: limit})
	l, err := listers[d.Name](cmd.Context(), client, d.Name, q)
	if err != nil {
		return describeError(err)
	}

	// Past the end: fetch the last page instead.
	if len(l.Rows) == 0 && l.Total > 0 && q.Page > l.TotalPages {
		q.Page = paging.Clamp(q.Page, l.TotalPages)
		if l, err = listers[d.Name](cmd.Context(), client, d.Name, q); err != nil {
			return describeError(err)
		}
	}

	if flagJSON {
		return printJSON(l)
	}
	printTable(d, l.Rows)
	fmt.Printf("\npage %d of %d · %d total · %d/page\n", l.Page, l.TotalPages, l.Total, l.PageSize)
	return nil
}
