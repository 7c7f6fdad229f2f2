package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/abelbrown/staffproof/internal/domain"
	"github.com/abelbrown/staffproof/internal/fetch"
	"github.com/abelbrown/staffproof/internal/query"
)

// listing is one page rendered to table cells.
type listing struct {
	Items      any        `json:"items"`
	Rows       [][]string `json:"-"`
	Total      int        `json:"total"`
	TotalPages int        `json:"totalPages"`
	Page       int        `json:"page"`
	PageSize   int        `json:"pageSize"`
}

type lister func(ctx context.Context, c *fetch.Client, name string, q query.Query) (listing, error)

// listers decode each collection into its record type so rows use the same
// cells as the TUI.
var listers = map[string]lister{
	domain.Notifications: listAs[domain.Notification],
	domain.Blacklist:     listAs[domain.BlacklistEntry],
	domain.Billing:       listAs[domain.BillingRecord],
	domain.Employees:     listAs[domain.Employee],
	domain.Employers:     listAs[domain.Employer],
	domain.Cases:         listAs[domain.VerificationCase],
	domain.Verifiers:     listAs[domain.Verifier],
}

func listAs[T domain.Record](ctx context.Context, c *fetch.Client, name string, q query.Query) (listing, error) {
	p, err := fetch.NewResource[T](c, name).List(ctx, q)
	if err != nil {
		return listing{}, err
	}
	rows := make([][]string, len(p.Items))
	for i, item := range p.Items {
		rows[i] = append([]string{item.Key()}, item.Cells()...)
	}
	return listing{
		Items:      p.Items,
		Rows:       rows,
		Total:      p.Total,
		TotalPages: p.TotalPages,
		Page:       p.Page,
		PageSize:   p.PageSize,
	}, nil
}

// lookup resolves a collection name or lists the valid ones.
func lookup(name string) (domain.Descriptor, error) {
	d, ok := domain.Lookup(name)
	if !ok {
		return domain.Descriptor{}, fmt.Errorf("unknown resource %q (valid: %s)", name, strings.Join(domain.Names(), ", "))
	}
	return d, nil
}

// parseFilters turns key=value pairs into raw filters, checking keys and
// enumerated values against d.
func parseFilters(d domain.Descriptor, pairs []string) (map[string]any, error) {
	filters := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("invalid filter %q (expected key=value)", p)
		}
		spec, found := d.Filter(k)
		if !found {
			keys := make([]string, len(d.Filters))
			for i, f := range d.Filters {
				keys[i] = f.Key
			}
			return nil, fmt.Errorf("%s has no filter %q (valid: %s)", d.Name, k, strings.Join(keys, ", "))
		}
		if len(spec.Values) > 0 && v != "" && !containsValue(spec.Values, v) {
			return nil, fmt.Errorf("filter %s must be one of %s", k, strings.Join(spec.Values, ", "))
		}
		filters[k] = v
	}
	return filters, nil
}

func containsValue(values []string, v string) bool {
	for _, s := range values {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}

// printTable writes rows under the descriptor's columns, prefixed by an ID column.
func printTable(d domain.Descriptor, rows [][]string) {
	cols := append([]domain.Column{{Title: "ID", Width: 12}}, d.Columns...)
	header := make([]string, len(cols))
	for i, c := range cols {
		header[i] = c.Title
	}
	fmt.Println(formatRow(cols, header))
	for _, r := range rows {
		fmt.Println(formatRow(cols, r))
	}
}

func formatRow(cols []domain.Column, cells []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		var cell string
		if i < len(cells) {
			cell = cells[i]
		}
		parts[i] = runewidth.FillRight(runewidth.Truncate(cell, c.Width, "…"), c.Width)
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// describeError adds validation fields to err's message.
func describeError(err error) error {
	fe := fetch.AsError(err)
	if fe == nil || len(fe.Fields) == 0 {
		return err
	}
	var b strings.Builder
	b.WriteString(fe.Error())
	for k, v := range fe.Fields {
		fmt.Fprintf(&b, "\n  %s: %s", k, v)
	}
	return errors.New(b.String())
}
