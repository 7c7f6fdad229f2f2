package fetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/abelbrown/staffproof/internal/query"
)

// Resource binds a Client to one named collection, e.g. "notifications".
type Resource[T any] struct {
	client *Client
	name   string
}

// NewResource creates a typed handle for the named collection.
func NewResource[T any](c *Client, name string) *Resource[T] {
	return &Resource[T]{client: c, name: name}
}

// Name returns the collection name.
func (r *Resource[T]) Name() string { return r.name }

func (r *Resource[T]) collectionPath() string {
	return "/api/" + url.PathEscape(r.name)
}

func (r *Resource[T]) itemPath(id string) string {
	return r.collectionPath() + "/" + url.PathEscape(id)
}

// List fetches one page.
func (r *Resource[T]) List(ctx context.Context, q query.Query) (Page[T], error) {
	body, err := r.client.do(ctx, http.MethodGet, r.collectionPath(), q.Values(), nil)
	if err != nil {
		return Page[T]{}, err
	}
	return decodePage[T](body, q)
}

// Create posts a new item and returns the server's representation.
func (r *Resource[T]) Create(ctx context.Context, payload T) (T, error) {
	return r.send(ctx, http.MethodPost, r.collectionPath(), payload)
}

// Update replaces an item.
func (r *Resource[T]) Update(ctx context.Context, id string, payload T) (T, error) {
	return r.send(ctx, http.MethodPut, r.itemPath(id), payload)
}

// Action invokes a narrower per-item endpoint such as /{id}/read.
func (r *Resource[T]) Action(ctx context.Context, id, action string, payload any) (T, error) {
	return r.send(ctx, http.MethodPut, r.itemPath(id)+"/"+url.PathEscape(action), payload)
}

// Delete removes an item.
func (r *Resource[T]) Delete(ctx context.Context, id string) error {
	body, err := r.client.do(ctx, http.MethodDelete, r.itemPath(id), nil, nil)
	if err != nil {
		return err
	}
	var res struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(body, &res); err != nil || res.Success == nil {
		return malformed("delete response has no success flag")
	}
	if !*res.Success {
		return &Error{Kind: KindServer, Status: http.StatusOK, Message: "server reported delete failure"}
	}
	return nil
}

// Bulk invokes a collection-wide action such as mark-all-read and returns the
// number of affected items.
func (r *Resource[T]) Bulk(ctx context.Context, action string) (int, error) {
	body, err := r.client.do(ctx, http.MethodPost, r.collectionPath()+"/"+url.PathEscape(action), nil, struct{}{})
	if err != nil {
		return 0, err
	}
	var res struct {
		Success  *bool `json:"success"`
		Affected int   `json:"affected"`
	}
	if err := json.Unmarshal(body, &res); err != nil || res.Success == nil {
		return 0, malformed("bulk response has no success flag")
	}
	if !*res.Success {
		return 0, &Error{Kind: KindServer, Status: http.StatusOK, Message: "server reported bulk failure"}
	}
	return res.Affected, nil
}

func (r *Resource[T]) send(ctx context.Context, method, path string, payload any) (T, error) {
	var zero T
	body, err := r.client.do(ctx, method, path, nil, payload)
	if err != nil {
		return zero, err
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return zero, malformed("response is not a %s record: %v", r.name, err)
	}
	return out, nil
}
