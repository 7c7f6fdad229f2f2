package backend

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abelbrown/staffproof/internal/assign"
	"github.com/abelbrown/staffproof/internal/domain"
	"github.com/abelbrown/staffproof/internal/logging"
	"github.com/abelbrown/staffproof/internal/store"
)

const maxBody = 1 << 20

// defaults fill fields a create left blank.
var defaults = map[string]store.Doc{
	domain.Notifications: {"read": false, "type": "info"},
	domain.Blacklist:     {"status": "active"},
	domain.Employees:     {"status": "pending"},
	domain.Employers:     {"status": "active", "plan": "basic"},
	domain.Cases:         {"status": "open", "priority": "medium"},
	domain.Verifiers:     {"active": true, "openCases": 0},
}

var errReadOnly = &httpError{status: http.StatusMethodNotAllowed, msg: "collection is read-only"}

// blank reports whether v carries no information.
func blank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == "" || zeroTime(x)
	}
	return false
}

// zeroTime reports whether s is an encoded zero time.Time.
func zeroTime(s string) bool {
	return strings.HasPrefix(s, "0001-01-01")
}

func decodeDoc(r *http.Request) (store.Doc, *httpError) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		return nil, &httpError{status: http.StatusBadRequest, msg: "unreadable body"}
	}
	doc := store.Doc{}
	if len(strings.TrimSpace(string(body))) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &httpError{status: http.StatusBadRequest, msg: "body is not a JSON object"}
	}
	return doc, nil
}

func validate(d domain.Descriptor, doc store.Doc) *httpError {
	fields := map[string]string{}
	for _, f := range d.Required {
		if blank(doc[f]) {
			fields[f] = "required"
		}
	}
	if len(fields) > 0 {
		return invalid(fields)
	}
	return nil
}

func intField(doc store.Doc, key string) int {
	switch v := doc[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	d := descriptorFrom(r.Context())
	if d.ReadOnly {
		writeStoreError(w, errReadOnly)
		return
	}
	doc, herr := decodeDoc(r)
	if herr != nil {
		writeStoreError(w, herr)
		return
	}
	delete(doc, "id")
	for k, v := range defaults[d.Name] {
		if blank(doc[k]) {
			doc[k] = v
		}
	}
	if strings.HasSuffix(d.SortField, "At") && blank(doc[d.SortField]) {
		doc[d.SortField] = s.now().UTC().Format(time.RFC3339)
	}
	if herr := validate(d, doc); herr != nil {
		writeStoreError(w, herr)
		return
	}

	var created store.Doc
	err := s.store.Update(r.Context(), func(tx *store.Tx) error {
		var err error
		created, err = tx.Insert(r.Context(), d.Name, doc)
		return err
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	logging.Info("record created", "resource", d.Name, "id", created.ID())
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	d := descriptorFrom(r.Context())
	if d.ReadOnly {
		writeStoreError(w, errReadOnly)
		return
	}
	id := chi.URLParam(r, "id")
	patch, herr := decodeDoc(r)
	if herr != nil {
		writeStoreError(w, herr)
		return
	}

	var updated store.Doc
	err := s.store.Update(r.Context(), func(tx *store.Tx) error {
		doc, err := tx.Get(r.Context(), d.Name, id)
		if err != nil {
			return err
		}
		for k, v := range patch {
			if str, ok := v.(string); k == "id" || (ok && zeroTime(str)) {
				continue
			}
			doc[k] = v
		}
		if herr := validate(d, doc); herr != nil {
			return herr
		}
		updated, err = tx.Put(r.Context(), d.Name, id, doc)
		return err
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	d := descriptorFrom(r.Context())
	id := chi.URLParam(r, "id")
	action := chi.URLParam(r, "action")
	if !d.HasAction(action) {
		writeError(w, http.StatusNotFound, "unknown action "+action, nil)
		return
	}
	body, herr := decodeDoc(r)
	if herr != nil {
		writeStoreError(w, herr)
		return
	}

	var updated store.Doc
	err := s.store.Update(r.Context(), func(tx *store.Tx) error {
		doc, err := tx.Get(r.Context(), d.Name, id)
		if err != nil {
			return err
		}
		switch action {
		case "read":
			doc["read"] = true
		case "close":
			if fieldString(doc, "status") != "closed" {
				if err := releaseVerifier(r, tx, doc); err != nil {
					return err
				}
				doc["status"] = "closed"
			}
		case "assign":
			if err := assignCase(r, tx, doc, fieldString(body, "verifierId")); err != nil {
				return err
			}
		}
		updated, err = tx.Put(r.Context(), d.Name, id, doc)
		return err
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	logging.Info("record action", "resource", d.Name, "id", id, "action", action)
	writeJSON(w, http.StatusOK, updated)
}

// assignCase points a case at a verifier and moves the open-case count.
// An empty verifierID picks the least loaded verifier.
func assignCase(r *http.Request, tx *store.Tx, doc store.Doc, verifierID string) error {
	ctx := r.Context()
	if fieldString(doc, "status") == "closed" {
		return invalid(map[string]string{"status": "case is closed"})
	}
	current := fieldString(doc, "verifierId")

	verifiers, err := tx.All(ctx, domain.Verifiers)
	if err != nil {
		return err
	}
	loads := make([]assign.Load, 0, len(verifiers))
	for _, v := range verifiers {
		l := assign.Load{
			ID:       v.ID(),
			Name:     fieldString(v, "name"),
			Open:     intField(v, "openCases"),
			Capacity: intField(v, "capacity"),
			Active:   v["active"] == true,
		}
		if l.ID == current && l.Open > 0 {
			l.Open--
		}
		loads = append(loads, l)
	}

	chosen, err := assign.Choose(loads, verifierID)
	switch {
	case errors.Is(err, assign.ErrUnknownVerifier):
		return invalid(map[string]string{"verifierId": err.Error()})
	case errors.Is(err, assign.ErrNoCapacity):
		return &httpError{status: http.StatusConflict, msg: err.Error()}
	case err != nil:
		return err
	}

	if chosen.ID != current {
		if err := releaseVerifier(r, tx, doc); err != nil {
			return err
		}
		if err := adjustOpen(r, tx, chosen.ID, +1); err != nil {
			return err
		}
	}
	doc["verifierId"] = chosen.ID
	doc["verifierName"] = chosen.Name
	if fieldString(doc, "status") == "open" {
		doc["status"] = "in_progress"
	}
	return nil
}

// releaseVerifier gives an open case's slot back to its verifier.
func releaseVerifier(r *http.Request, tx *store.Tx, doc store.Doc) error {
	id := fieldString(doc, "verifierId")
	if id == "" || fieldString(doc, "status") == "closed" {
		return nil
	}
	return adjustOpen(r, tx, id, -1)
}

func adjustOpen(r *http.Request, tx *store.Tx, verifierID string, delta int) error {
	v, err := tx.Get(r.Context(), domain.Verifiers, verifierID)
	if errors.Is(err, store.ErrNotFound) {
		// The verifier was removed; nothing to balance.
		return nil
	}
	if err != nil {
		return err
	}
	open := intField(v, "openCases") + delta
	if open < 0 {
		open = 0
	}
	v["openCases"] = open
	_, err = tx.Put(r.Context(), domain.Verifiers, verifierID, v)
	return err
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	d := descriptorFrom(r.Context())
	if d.ReadOnly {
		writeStoreError(w, errReadOnly)
		return
	}
	id := chi.URLParam(r, "id")

	err := s.store.Update(r.Context(), func(tx *store.Tx) error {
		if d.Name == domain.Cases {
			doc, err := tx.Get(r.Context(), d.Name, id)
			if err != nil {
				return err
			}
			if err := releaseVerifier(r, tx, doc); err != nil {
				return err
			}
		}
		return tx.Delete(r.Context(), d.Name, id)
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	logging.Info("record deleted", "resource", d.Name, "id", id)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	d := descriptorFrom(r.Context())
	action := chi.URLParam(r, "id")
	if !d.HasBulk(action) {
		writeError(w, http.StatusNotFound, "unknown bulk action "+action, nil)
		return
	}

	affected := 0
	err := s.store.Update(r.Context(), func(tx *store.Tx) error {
		docs, err := tx.All(r.Context(), d.Name)
		if err != nil {
			return err
		}
		for _, doc := range docs {
			read := doc["read"] == true
			switch {
			case action == "mark-all-read" && !read:
				doc["read"] = true
				if _, err := tx.Put(r.Context(), d.Name, doc.ID(), doc); err != nil {
					return err
				}
			case action == "clear-read" && read:
				if err := tx.Delete(r.Context(), d.Name, doc.ID()); err != nil {
					return err
				}
			default:
				continue
			}
			affected++
		}
		return nil
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	logging.Info("bulk action", "resource", d.Name, "action", action, "affected", affected)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "affected": affected})
}
