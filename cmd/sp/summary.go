package main

import (
	"fmt"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/staffproof/internal/domain"
	"github.com/abelbrown/staffproof/internal/query"
)

// summaryLimit bounds concurrent list requests.
const summaryLimit = 4

type summaryRow struct {
	Resource string         `json:"resource"`
	Total    int            `json:"total"`
	ByFilter map[string]int `json:"byFilter,omitempty"`
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Count records per collection",
	Long: `Summary fetches the first page of every collection in parallel and reports
totals, plus a count per value of each collection's first enumerated filter.`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	descs := domain.All()
	rows := make([]summaryRow, len(descs))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(summaryLimit)
	for i, d := range descs {
		rows[i] = summaryRow{Resource: d.Name}
		list := listers[d.Name]

		g.Go(func() error {
			l, err := list(ctx, client, d.Name, query.Build(query.Raw{}))
			if err != nil {
				return fmt.Errorf("%s: %w", d.Name, describeError(err))
			}
			mu.Lock()
			rows[i].Total = l.Total
			mu.Unlock()
			return nil
		})

		spec, ok := firstEnumFilter(d)
		if !ok {
			continue
		}
		for _, v := range spec.Values {
			g.Go(func() error {
				q := query.Build(query.Raw{Filters: map[string]any{spec.Key: v}})
				l, err := list(ctx, client, d.Name, q)
				if err != nil {
					return fmt.Errorf("%s %s=%s: %w", d.Name, spec.Key, v, describeError(err))
				}
				mu.Lock()
				if rows[i].ByFilter == nil {
					rows[i].ByFilter = make(map[string]int)
				}
				rows[i].ByFilter[spec.Key+"="+v] = l.Total
				mu.Unlock()
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if flagJSON {
		return printJSON(rows)
	}
	for i, r := range rows {
		fmt.Printf("%-14s %5d", r.Resource, r.Total)
		if spec, ok := firstEnumFilter(descs[i]); ok {
			for _, v := range spec.Values {
				fmt.Printf("  %s=%d", v, r.ByFilter[spec.Key+"="+v])
			}
		}
		fmt.Println()
	}
	return nil
}

func firstEnumFilter(d domain.Descriptor) (domain.FilterSpec, bool) {
	for _, f := range d.Filters {
		if f.Kind == domain.FilterExact && len(f.Values) > 0 {
			return f, true
		}
	}
	return domain.FilterSpec{}, false
}
