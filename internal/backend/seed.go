package backend

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/abelbrown/staffproof/internal/domain"
	"github.com/abelbrown/staffproof/internal/logging"
	"github.com/abelbrown/staffproof/internal/store"
)

//go:embed seed.yaml
var seedYAML []byte

// decoders turn one collection's YAML node into stored documents, going
// through the typed record so malformed fixtures fail loudly.
var decoders = map[string]func(*yaml.Node) ([]store.Doc, error){
	domain.Notifications: decodeAs[domain.Notification],
	domain.Blacklist:     decodeAs[domain.BlacklistEntry],
	domain.Billing:       decodeAs[domain.BillingRecord],
	domain.Employees:     decodeAs[domain.Employee],
	domain.Employers:     decodeAs[domain.Employer],
	domain.Cases:         decodeAs[domain.VerificationCase],
	domain.Verifiers:     decodeAs[domain.Verifier],
}

func decodeAs[T any](n *yaml.Node) ([]store.Doc, error) {
	var records []T
	if err := n.Decode(&records); err != nil {
		return nil, err
	}
	docs := make([]store.Doc, 0, len(records))
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		var doc store.Doc
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// ParseSeed decodes seed YAML into documents per collection.
func ParseSeed(ctx context.Context, data []byte) (map[string][]store.Doc, error) {
	var root map[string]*yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("parse seed: %w", err)
	}

	var (
		mu  sync.Mutex
		out = make(map[string][]store.Doc, len(root))
	)
	g, ctx := errgroup.WithContext(ctx)
	for name, node := range root {
		decode, ok := decoders[name]
		if !ok {
			return nil, fmt.Errorf("seed: unknown collection %q", name)
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			docs, err := decode(node)
			if err != nil {
				return fmt.Errorf("seed %s: %w", name, err)
			}
			mu.Lock()
			out[name] = docs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Seed loads the embedded fixtures into collections that are still empty.
// Records are inserted oldest last so list order matches the YAML.
func Seed(ctx context.Context, s *store.Store) error {
	data, err := ParseSeed(ctx, seedYAML)
	if err != nil {
		return err
	}
	return s.Update(ctx, func(tx *store.Tx) error {
		for _, name := range domain.Names() {
			docs := data[name]
			n, err := tx.Count(ctx, name)
			if err != nil {
				return err
			}
			if n > 0 || len(docs) == 0 {
				continue
			}
			for i := len(docs) - 1; i >= 0; i-- {
				if _, err := tx.Insert(ctx, name, docs[i]); err != nil {
					return err
				}
			}
			logging.Info("seeded collection", "resource", name, "records", len(docs))
		}
		return nil
	})
}
