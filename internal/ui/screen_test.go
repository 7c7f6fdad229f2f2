package ui

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-runewidth"

	"github.com/abelbrown/staffproof/internal/controller"
	"github.com/abelbrown/staffproof/internal/domain"
	"github.com/abelbrown/staffproof/internal/fetch"
	"github.com/abelbrown/staffproof/internal/paging"
	"github.com/abelbrown/staffproof/internal/query"
)

// fakeNotes is an in-memory notifications API.
type fakeNotes struct {
	mu    sync.Mutex
	items []domain.Notification
	fail  *fetch.Error
}

func newFakeNotes(n int) *fakeNotes {
	f := &fakeNotes{}
	for i := 1; i <= n; i++ {
		f.items = append(f.items, domain.Notification{
			ID:    fmt.Sprintf("n%d", i),
			Title: fmt.Sprintf("Notice %d", i),
			Read:  i%2 == 0,
		})
	}
	return f
}

func (f *fakeNotes) setFail(err *fetch.Error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = err
}

func (f *fakeNotes) List(ctx context.Context, q query.Query) (fetch.Page[domain.Notification], error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return fetch.Page[domain.Notification]{}, f.fail
	}
	var kept []domain.Notification
	for _, n := range f.items {
		switch q.Filter("status") {
		case "unread":
			if n.Read {
				continue
			}
		case "read":
			if !n.Read {
				continue
			}
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(n.Title), strings.ToLower(q.Search)) {
			continue
		}
		kept = append(kept, n)
	}
	page := fetch.Page[domain.Notification]{
		Items:      []domain.Notification{},
		Total:      len(kept),
		TotalPages: paging.TotalPages(len(kept), q.PageSize),
		Page:       q.Page,
		PageSize:   q.PageSize,
	}
	start := (q.Page - 1) * q.PageSize
	for i := start; i < len(kept) && i < start+q.PageSize; i++ {
		page.Items = append(page.Items, kept[i])
	}
	return page, nil
}

func (f *fakeNotes) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	return n, nil
}

func (f *fakeNotes) Update(ctx context.Context, id string, n domain.Notification) (domain.Notification, error) {
	return n, nil
}

func (f *fakeNotes) Action(ctx context.Context, id, action string, payload any) (domain.Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			if action == "read" {
				f.items[i].Read = true
			}
			return f.items[i], nil
		}
	}
	return domain.Notification{}, &fetch.Error{Kind: fetch.KindServer, Status: http.StatusNotFound, Message: "not found"}
}

func (f *fakeNotes) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.items {
		if f.items[i].ID == id {
			f.items = append(f.items[:i], f.items[i+1:]...)
			return nil
		}
	}
	return &fetch.Error{Kind: fetch.KindServer, Status: http.StatusNotFound, Message: "not found"}
}

func (f *fakeNotes) Bulk(ctx context.Context, action string) (int, error) {
	return 0, nil
}

func newNoteScreen(t *testing.T, f *fakeNotes) *screen[domain.Notification] {
	t.Helper()
	desc, _ := domain.Lookup(domain.Notifications)
	ident := domain.IdentityOf[domain.Notification]()
	list := controller.New[domain.Notification](f, controller.Options[domain.Notification]{
		Resource: domain.Notifications,
		PageSize: 5,
		Debounce: -1,
		Backend:  f,
		Identity: ident,
	})
	t.Cleanup(list.Close)
	s := NewScreen(desc, list, ident, ScreenOptions[domain.Notification]{Preview: previewNotification})
	return s.(*screen[domain.Notification])
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func waitList(t *testing.T, s *screen[domain.Notification], what string, cond func(controller.State[domain.Notification]) bool) controller.State[domain.Notification] {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		st := s.list.State()
		if cond(st) {
			return st
		}
		select {
		case <-deadline:
			t.Fatalf("timeout waiting for %s: status=%s page=%d", what, st.Status, st.Page.Page)
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func readyOn(page int) func(controller.State[domain.Notification]) bool {
	return func(st controller.State[domain.Notification]) bool {
		return st.Status == controller.StatusReady && st.Page.Page == page
	}
}

func TestScreenStartOnce(t *testing.T) {
	s := newNoteScreen(t, newFakeNotes(3))
	if s.Start() == nil {
		t.Fatal("first Start should return the event relay")
	}
	if s.Start() != nil {
		t.Error("second Start should return nil")
	}
	waitList(t, s, "ready", readyOn(1))
}

func TestScreenPagingKeys(t *testing.T) {
	s := newNoteScreen(t, newFakeNotes(12))
	s.Start()
	waitList(t, s, "page 1", readyOn(1))

	s.Update(keyRune('l'))
	waitList(t, s, "page 2", readyOn(2))
	s.Update(tea.KeyMsg{Type: tea.KeyRight})
	waitList(t, s, "page 3", readyOn(3))
	s.Update(keyRune('h'))
	waitList(t, s, "back to page 2", readyOn(2))
}

func TestScreenCursorBounds(t *testing.T) {
	s := newNoteScreen(t, newFakeNotes(3))
	s.Start()
	waitList(t, s, "ready", readyOn(1))

	for i := 0; i < 5; i++ {
		s.Update(keyRune('j'))
	}
	if s.cursor != 2 {
		t.Errorf("cursor = %d, want 2", s.cursor)
	}
	for i := 0; i < 5; i++ {
		s.Update(keyRune('k'))
	}
	if s.cursor != 0 {
		t.Errorf("cursor = %d, want 0", s.cursor)
	}
}

func TestScreenFilterCycling(t *testing.T) {
	s := newNoteScreen(t, newFakeNotes(12))
	s.Start()
	waitList(t, s, "ready", readyOn(1))

	for _, want := range []string{"unread", "read", ""} {
		s.Update(keyRune('1'))
		st := waitList(t, s, "status="+want, func(st controller.State[domain.Notification]) bool {
			return st.Status == controller.StatusReady && st.Query.Filter("status") == want
		})
		if want != "" && st.Page.Total != 6 {
			t.Errorf("status=%s total = %d, want 6", want, st.Page.Total)
		}
	}

	s.Update(keyRune('1'))
	s.Update(keyRune('0'))
	waitList(t, s, "cleared", func(st controller.State[domain.Notification]) bool {
		return st.Status == controller.StatusReady && len(st.Query.Filters) == 0
	})
	if len(s.filters) != 0 {
		t.Errorf("screen filters not cleared: %v", s.filters)
	}
}

func TestScreenSearchCapturesKeys(t *testing.T) {
	s := newNoteScreen(t, newFakeNotes(12))
	s.Start()
	waitList(t, s, "ready", readyOn(1))

	s.Update(keyRune('/'))
	if !s.Capturing() {
		t.Fatal("/ should focus the search box")
	}
	for _, r := range "11" {
		s.Update(keyRune(r))
	}
	st := waitList(t, s, "search", func(st controller.State[domain.Notification]) bool {
		return st.Status == controller.StatusReady && st.Query.Search == "11"
	})
	if st.Page.Total != 1 {
		t.Errorf("search total = %d, want 1", st.Page.Total)
	}
	if st.Query.Filter("status") != "" {
		t.Error("digits typed into search must not cycle filters")
	}

	s.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if s.Capturing() {
		t.Error("esc should leave the search box")
	}
	s.Update(tea.KeyMsg{Type: tea.KeyEsc})
	waitList(t, s, "search cleared", func(st controller.State[domain.Notification]) bool {
		return st.Status == controller.StatusReady && st.Query.Search == ""
	})
}

func TestScreenMarkRead(t *testing.T) {
	f := newFakeNotes(3)
	s := newNoteScreen(t, f)
	s.Start()
	waitList(t, s, "ready", readyOn(1))

	cmd := s.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter should start a read mutation")
	}
	msg, ok := cmd().(mutationDone)
	if !ok || msg.Err != nil || msg.Key != "n1" {
		t.Fatalf("unexpected result: %+v", msg)
	}
	s.Update(msg)
	if !strings.Contains(s.flash, "read done") {
		t.Errorf("flash = %q", s.flash)
	}
	if item := s.list.State().Page.Items[0]; !item.Read {
		t.Errorf("n1 should be read: %+v", item)
	}
}

func TestScreenDeleteNeedsConfirmation(t *testing.T) {
	f := newFakeNotes(3)
	s := newNoteScreen(t, f)
	s.Start()
	waitList(t, s, "ready", readyOn(1))

	if cmd := s.Update(keyRune('d')); cmd != nil {
		t.Fatal("first d should only arm the delete")
	}
	s.Update(keyRune('j'))
	if cmd := s.Update(keyRune('d')); cmd != nil {
		t.Fatal("moving the cursor should disarm the delete")
	}
	cmd := s.Update(keyRune('d'))
	if cmd == nil {
		t.Fatal("second d should delete")
	}
	if msg := cmd().(mutationDone); msg.Err != nil || msg.Key != "n2" {
		t.Fatalf("unexpected result: %+v", msg)
	}
	st := s.list.State()
	if st.Page.Total != 2 || len(st.Page.Items) != 2 {
		t.Errorf("after delete: total=%d items=%d", st.Page.Total, len(st.Page.Items))
	}
}

func TestScreenViewStates(t *testing.T) {
	f := newFakeNotes(3)
	f.setFail(&fetch.Error{Kind: fetch.KindServer, Status: http.StatusBadGateway, Message: "upstream down"})
	s := newNoteScreen(t, f)
	s.Start()
	waitList(t, s, "error", func(st controller.State[domain.Notification]) bool {
		return st.Status == controller.StatusError
	})

	view := s.View(100, 20, "*")
	if !strings.Contains(view, "Could not load notifications") || !strings.Contains(view, "upstream down") {
		t.Errorf("first-load error state missing:\n%s", view)
	}

	f.setFail(nil)
	s.Update(keyRune('r'))
	waitList(t, s, "recovered", readyOn(1))
	view = s.View(100, 20, "*")
	if !strings.Contains(view, "Notice 1") {
		t.Errorf("rows missing:\n%s", view)
	}

	f.setFail(&fetch.Error{Kind: fetch.KindTimeout, Message: "request timed out"})
	s.Update(keyRune('r'))
	waitList(t, s, "error again", func(st controller.State[domain.Notification]) bool {
		return st.Status == controller.StatusError
	})
	view = s.View(100, 20, "*")
	if !strings.Contains(view, "request timed out") || !strings.Contains(view, "Notice 1") {
		t.Errorf("banner should sit above the last good page:\n%s", view)
	}
}

func TestRenderWindowMarksCurrent(t *testing.T) {
	got := renderWindow(12, 7)
	for _, want := range []string{"1", "...", "6", "[7]", "8", "12"} {
		if !strings.Contains(got, want) {
			t.Errorf("window %q missing %q", got, want)
		}
	}
}

func TestFitCellUsesDisplayWidth(t *testing.T) {
	tests := []struct {
		in    string
		width int
	}{
		{"short", 10},
		{"a very long title that overflows", 10},
		{"日本語のタイトル", 7},
		{"", 4},
	}
	for _, tt := range tests {
		got := fitCell(tt.in, tt.width)
		if w := runewidth.StringWidth(got); w != tt.width {
			t.Errorf("fitCell(%q, %d) width = %d (%q)", tt.in, tt.width, w, got)
		}
	}
}
