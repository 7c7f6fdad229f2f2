package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/abelbrown/staffproof/internal/store"
)

func newTestServer(t *testing.T) (*httptest.Server, *store.Store) {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := Seed(context.Background(), s); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}
	fixed := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(New(s, Options{Now: func() time.Time { return fixed }}).Handler())
	t.Cleanup(srv.Close)
	return srv, s
}

func call(t *testing.T, srv *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, srv.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, path, err)
	}
	defer resp.Body.Close()
	out := map[string]any{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("%s %s: body is not JSON: %v", method, path, err)
	}
	return resp.StatusCode, out
}

func ids(t *testing.T, v any) []string {
	t.Helper()
	list, ok := v.([]any)
	if !ok {
		t.Fatalf("expected a list, got %T", v)
	}
	out := make([]string, len(list))
	for i, item := range list {
		out[i], _ = item.(map[string]any)["id"].(string)
	}
	return out
}

func TestListEnvelopes(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := call(t, srv, "GET", "/api/notifications?page=2&limit=5", "")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if got := ids(t, body["data"]); strings.Join(got, ",") != "n6,n7,n8,n9,n10" {
		t.Errorf("page 2 = %v", got)
	}
	if body["total"] != float64(12) || body["totalPages"] != float64(3) {
		t.Errorf("total=%v totalPages=%v", body["total"], body["totalPages"])
	}

	_, body = call(t, srv, "GET", "/api/blacklist", "")
	if _, ok := body["records"]; !ok {
		t.Errorf("blacklist should use the records envelope: %v", body)
	}

	_, body = call(t, srv, "GET", "/api/cases?limit=5&page=3", "")
	pg, ok := body["pagination"].(map[string]any)
	if !ok {
		t.Fatalf("cases should use the pagination envelope: %v", body)
	}
	if pg["page"] != float64(3) || pg["limit"] != float64(5) || pg["total"] != float64(12) || pg["pages"] != float64(3) {
		t.Errorf("unexpected pagination: %v", pg)
	}
	if got := ids(t, body["items"]); len(got) != 2 {
		t.Errorf("last page should hold 2 cases, got %v", got)
	}
}

func TestListSearchAndFilters(t *testing.T) {
	srv, _ := newTestServer(t)

	_, body := call(t, srv, "GET", "/api/employers?search=ACME", "")
	if got := ids(t, body["records"]); len(got) != 1 || got[0] != "r1" {
		t.Errorf("search acme = %v", got)
	}

	_, body = call(t, srv, "GET", "/api/notifications?status=unread&type=alert", "")
	if got := ids(t, body["data"]); strings.Join(got, ",") != "n3,n10" {
		t.Errorf("unread alerts = %v", got)
	}

	_, body = call(t, srv, "GET", "/api/verifiers?active=yes", "")
	if got := ids(t, body["data"]); strings.Join(got, ",") != "v1,v2,v3" {
		t.Errorf("active verifiers sorted by name = %v", got)
	}

	_, body = call(t, srv, "GET", "/api/billing?issued=2026-09-20..2026-09-24", "")
	if got := ids(t, body["items"]); strings.Join(got, ",") != "i2,i3" {
		t.Errorf("issued range = %v", got)
	}
}

func TestListRejectsBadFilters(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := call(t, srv, "GET", "/api/cases?status=archived&color=red", "")
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", status)
	}
	fields, _ := body["fields"].(map[string]any)
	if fields["status"] == nil || fields["color"] != "unknown filter" {
		t.Errorf("unexpected fields: %v", fields)
	}
}

func TestPagePastEndIsEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	_, body := call(t, srv, "GET", "/api/notifications?page=9&limit=5", "")
	if got := ids(t, body["data"]); len(got) != 0 {
		t.Errorf("expected no items, got %v", got)
	}
	if body["totalPages"] != float64(3) {
		t.Errorf("totalPages = %v", body["totalPages"])
	}
}

func TestCreateUpdateDelete(t *testing.T) {
	srv, _ := newTestServer(t)

	status, created := call(t, srv, "POST", "/api/blacklist", `{"id":"tmp-1","name":"Eve Adams","company":"Globex","reason":"Fake payslips"}`)
	if status != http.StatusCreated {
		t.Fatalf("create status = %d: %v", status, created)
	}
	id, _ := created["id"].(string)
	if id == "" || id == "tmp-1" {
		t.Fatalf("server must assign its own id, got %q", id)
	}
	if created["status"] != "active" || created["createdAt"] != "2026-10-01T12:00:00Z" {
		t.Errorf("defaults not applied: %v", created)
	}

	_, body := call(t, srv, "GET", "/api/blacklist?limit=5", "")
	if got := ids(t, body["records"]); got[0] != id {
		t.Errorf("new entry should sort first, got %v", got)
	}

	status, updated := call(t, srv, "PUT", "/api/blacklist/"+id, `{"status":"removed","createdAt":"0001-01-01T00:00:00Z"}`)
	if status != http.StatusOK || updated["status"] != "removed" || updated["name"] != "Eve Adams" {
		t.Errorf("update = %d %v", status, updated)
	}
	if updated["createdAt"] != "2026-10-01T12:00:00Z" {
		t.Errorf("zero time must not overwrite createdAt: %v", updated["createdAt"])
	}

	status, body = call(t, srv, "DELETE", "/api/blacklist/"+id, "")
	if status != http.StatusOK || body["success"] != true {
		t.Errorf("delete = %d %v", status, body)
	}
	status, _ = call(t, srv, "DELETE", "/api/blacklist/"+id, "")
	if status != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", status)
	}
}

func TestCreateValidation(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := call(t, srv, "POST", "/api/employees", `{"department":"sales"}`)
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", status)
	}
	fields, _ := body["fields"].(map[string]any)
	if fields["name"] != "required" || fields["email"] != "required" {
		t.Errorf("unexpected fields: %v", fields)
	}
	if body["error"] != "validation failed" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestReadOnlyCollection(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, c := range []struct{ method, path, body string }{
		{"POST", "/api/billing", `{"invoiceNo":"X"}`},
		{"PUT", "/api/billing/i1", `{"status":"paid"}`},
		{"DELETE", "/api/billing/i1", ""},
	} {
		if status, _ := call(t, srv, c.method, c.path, c.body); status != http.StatusMethodNotAllowed {
			t.Errorf("%s %s = %d, want 405", c.method, c.path, status)
		}
	}
}

func TestMarkRead(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := call(t, srv, "PUT", "/api/notifications/n1/read", "")
	if status != http.StatusOK || body["read"] != true {
		t.Errorf("read = %d %v", status, body)
	}
	status, _ = call(t, srv, "PUT", "/api/notifications/n1/archive", "")
	if status != http.StatusNotFound {
		t.Errorf("unknown action status = %d", status)
	}
}

func TestBulkActions(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := call(t, srv, "POST", "/api/notifications/mark-all-read", "{}")
	if status != http.StatusOK || body["success"] != true || body["affected"] != float64(7) {
		t.Fatalf("mark-all-read = %d %v", status, body)
	}
	_, body = call(t, srv, "POST", "/api/notifications/mark-all-read", "{}")
	if body["affected"] != float64(0) {
		t.Errorf("second mark-all-read affected %v", body["affected"])
	}

	_, body = call(t, srv, "POST", "/api/notifications/clear-read", "{}")
	if body["affected"] != float64(12) {
		t.Errorf("clear-read affected %v", body["affected"])
	}
	_, body = call(t, srv, "GET", "/api/notifications", "")
	if body["total"] != float64(0) || body["totalPages"] != float64(1) {
		t.Errorf("after clear: total=%v pages=%v", body["total"], body["totalPages"])
	}

	status, _ = call(t, srv, "POST", "/api/cases/mark-all-read", "{}")
	if status != http.StatusNotFound {
		t.Errorf("bulk on cases status = %d", status)
	}
}

func openCases(t *testing.T, srv *httptest.Server, id string) float64 {
	t.Helper()
	_, v := call(t, srv, "GET", "/api/verifiers/"+id, "")
	n, _ := v["openCases"].(float64)
	return n
}

func TestAssignPicksLeastLoaded(t *testing.T) {
	srv, _ := newTestServer(t)

	// Chen has no open cases; Ben is full; Dana is inactive.
	status, c := call(t, srv, "PUT", "/api/cases/c1/assign", `{}`)
	if status != http.StatusOK {
		t.Fatalf("assign = %d %v", status, c)
	}
	if c["verifierId"] != "v3" || c["verifierName"] != "Chen Li" || c["status"] != "in_progress" {
		t.Errorf("unexpected assignment: %v", c)
	}
	if n := openCases(t, srv, "v3"); n != 1 {
		t.Errorf("v3 openCases = %v, want 1", n)
	}

	// Reassigning moves the slot.
	_, c = call(t, srv, "PUT", "/api/cases/c1/assign", `{"verifierId":"v1"}`)
	if c["verifierId"] != "v1" {
		t.Fatalf("explicit assign ignored: %v", c)
	}
	if openCases(t, srv, "v3") != 0 || openCases(t, srv, "v1") != 3 {
		t.Errorf("slot not moved: v3=%v v1=%v", openCases(t, srv, "v3"), openCases(t, srv, "v1"))
	}

	_, c = call(t, srv, "PUT", "/api/cases/c1/close", "")
	if c["status"] != "closed" || openCases(t, srv, "v1") != 2 {
		t.Errorf("close should release the slot: %v v1=%v", c["status"], openCases(t, srv, "v1"))
	}
}

func TestAssignErrors(t *testing.T) {
	srv, _ := newTestServer(t)

	status, body := call(t, srv, "PUT", "/api/cases/c3/assign", `{"verifierId":"v2"}`)
	if status != http.StatusConflict {
		t.Errorf("full verifier status = %d %v", status, body)
	}
	status, body = call(t, srv, "PUT", "/api/cases/c3/assign", `{"verifierId":"v99"}`)
	fields, _ := body["fields"].(map[string]any)
	if status != http.StatusUnprocessableEntity || fields["verifierId"] == nil {
		t.Errorf("unknown verifier = %d %v", status, body)
	}
	status, _ = call(t, srv, "PUT", "/api/cases/c4/assign", `{}`)
	if status != http.StatusUnprocessableEntity {
		t.Errorf("closed case status = %d", status)
	}
}

func TestUnknownResource(t *testing.T) {
	srv, _ := newTestServer(t)
	status, body := call(t, srv, "GET", "/api/payroll", "")
	if status != http.StatusNotFound || body["error"] != "unknown resource" {
		t.Errorf("got %d %v", status, body)
	}
}

func TestLatencyHonorsCancel(t *testing.T) {
	s, err := store.Open("")
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	srv := httptest.NewServer(New(s, Options{Latency: time.Minute}).Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, "GET", srv.URL+"/api/cases", nil)
	start := time.Now()
	if _, err := http.DefaultClient.Do(req); err == nil {
		t.Fatal("expected the request to time out")
	}
	if time.Since(start) > 5*time.Second {
		t.Errorf("latency middleware ignored cancellation")
	}
}

func TestSeedIsIdempotent(t *testing.T) {
	_, s := newTestServer(t)
	if err := Seed(context.Background(), s); err != nil {
		t.Fatalf("second Seed failed: %v", err)
	}
	s.View(context.Background(), func(tx *store.Tx) error {
		n, _ := tx.Count(context.Background(), "cases")
		if n != 12 {
			t.Errorf("cases = %d after reseed, want 12", n)
		}
		return nil
	})
}

func TestParseSeedRejectsUnknownCollection(t *testing.T) {
	_, err := ParseSeed(context.Background(), []byte("payroll:\n  - id: p1\n"))
	if err == nil {
		t.Fatal("expected an error for an unknown collection")
	}
}
