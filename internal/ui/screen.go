package ui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/abelbrown/staffproof/internal/controller"
	"github.com/abelbrown/staffproof/internal/domain"
	"github.com/abelbrown/staffproof/internal/fetch"
	"github.com/abelbrown/staffproof/internal/mutate"
	"github.com/abelbrown/staffproof/internal/query"
)

// defaultMutateTimeout bounds a mutation started from a key press.
const defaultMutateTimeout = 15 * time.Second

// Screen is one tab of the app.
type Screen interface {
	Descriptor() domain.Descriptor
	// Start issues the first fetch and returns the command that relays
	// controller events. It returns nil after the first call.
	Start() tea.Cmd
	Close()
	Update(msg tea.Msg) tea.Cmd
	View(width, height int, spin string) string
	// Capturing reports whether keys go to the search box.
	Capturing() bool
}

// ScreenOptions tunes a screen.
type ScreenOptions[T any] struct {
	// Preview returns the item as it will look after action succeeds, for
	// optimistic actions. Nil means the item is shown unchanged until the
	// server answers.
	Preview func(item T, action string) T

	MutateTimeout time.Duration
}

type screen[T domain.Record] struct {
	desc    domain.Descriptor
	list    *controller.List[T]
	ident   mutate.Identity[T]
	preview func(T, string) T
	timeout time.Duration

	started   bool
	cursor    int
	search    textinput.Model
	searching bool
	filters   map[string]string
	armed     string // key awaiting a second "d"
	flash     string
	flashErr  bool
}

// NewScreen binds a list controller to a screen.
func NewScreen[T domain.Record](desc domain.Descriptor, list *controller.List[T], ident mutate.Identity[T], opts ScreenOptions[T]) Screen {
	ti := textinput.New()
	ti.Placeholder = "search " + strings.ToLower(desc.Title)
	ti.Prompt = "/ "
	ti.CharLimit = 80

	timeout := opts.MutateTimeout
	if timeout <= 0 {
		timeout = defaultMutateTimeout
	}
	return &screen[T]{
		desc:    desc,
		list:    list,
		ident:   ident,
		preview: opts.Preview,
		timeout: timeout,
		search:  ti,
		filters: make(map[string]string),
	}
}

func (s *screen[T]) Descriptor() domain.Descriptor { return s.desc }

func (s *screen[T]) Capturing() bool { return s.searching }

func (s *screen[T]) Start() tea.Cmd {
	if s.started {
		return nil
	}
	s.started = true
	s.list.Start()
	return s.wait()
}

func (s *screen[T]) Close() { s.list.Close() }

// wait blocks for the next controller event.
func (s *screen[T]) wait() tea.Cmd {
	ch := s.list.Subscribe()
	name := s.desc.Name
	return func() tea.Msg {
		e := <-ch
		return listEvent{Resource: name, Type: e.Type, Err: e.Err}
	}
}

func (s *screen[T]) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case listEvent:
		s.clampCursor()
		return s.wait()

	case mutationDone:
		s.setFlash(msg)
		return nil

	case tea.KeyMsg:
		if s.searching {
			return s.handleSearchKey(msg)
		}
		return s.handleKey(msg)
	}
	return nil
}

func (s *screen[T]) setFlash(msg mutationDone) {
	if msg.Err == nil {
		s.flash, s.flashErr = msg.Verb+" done", false
		return
	}
	s.flashErr = true
	var fe *fetch.Error
	switch {
	case errors.Is(msg.Err, mutate.ErrBusy):
		s.flash = "still saving " + msg.Key
	case errors.Is(msg.Err, controller.ErrReadOnly):
		s.flash = s.desc.Title + " is read-only"
	case errors.As(msg.Err, &fe) && fe.Validation():
		s.flash = msg.Verb + " rejected: " + fieldSummary(fe)
	default:
		s.flash = msg.Verb + " failed: " + msg.Err.Error()
	}
}

// fieldSummary renders validation messages as "field: message" pairs.
func fieldSummary(fe *fetch.Error) string {
	if len(fe.Fields) == 0 {
		return fe.Message
	}
	keys := make([]string, 0, len(fe.Fields))
	for k := range fe.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + fe.Fields[k]
	}
	return strings.Join(parts, ", ")
}

func (s *screen[T]) handleSearchKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc", "enter":
		s.searching = false
		s.search.Blur()
		return nil
	}
	var cmd tea.Cmd
	s.search, cmd = s.search.Update(msg)
	s.list.SetSearch(s.search.Value())
	s.cursor = 0
	return cmd
}

func (s *screen[T]) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key != "d" {
		s.armed = ""
	}

	switch key {
	case "j", "down":
		if n := len(s.list.State().Page.Items); s.cursor < n-1 {
			s.cursor++
		}
	case "k", "up":
		if s.cursor > 0 {
			s.cursor--
		}
	case "l", "right", "n":
		s.cursor = 0
		s.list.Next()
	case "h", "left", "p":
		s.cursor = 0
		s.list.Previous()
	case "/":
		s.searching = true
		s.search.Focus()
		return textinput.Blink
	case "esc":
		if s.search.Value() != "" {
			s.search.SetValue("")
			s.list.SetSearch("")
			s.cursor = 0
		}
	case "0":
		s.filters = make(map[string]string)
		s.cursor = 0
		s.list.ClearFilters()
	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		s.cycleFilter(int(key[0] - '1'))
	case "+", "=":
		s.stepPageSize(1)
	case "-":
		s.stepPageSize(-1)
	case "r":
		s.flash = ""
		s.list.Refresh()
	case "enter":
		if s.desc.HasAction("read") {
			return s.itemAction("read", mutate.Optimistic)
		}
	case "a":
		if s.desc.HasAction("assign") {
			return s.itemAction("assign", mutate.RefetchAfterWrite)
		}
	case "x":
		if s.desc.HasAction("close") {
			return s.itemAction("close", mutate.Optimistic)
		}
	case "d":
		return s.delete()
	case "A":
		if s.desc.HasBulk("mark-all-read") {
			return s.bulk("mark-all-read")
		}
	case "C":
		if s.desc.HasBulk("clear-read") {
			return s.bulk("clear-read")
		}
	}
	return nil
}

func (s *screen[T]) cycleFilter(i int) {
	if i < 0 || i >= len(s.desc.Filters) {
		return
	}
	spec := s.desc.Filters[i]
	if len(spec.Values) == 0 {
		return
	}
	next := spec.Next(s.filters[spec.Key])
	if next == "" {
		delete(s.filters, spec.Key)
	} else {
		s.filters[spec.Key] = next
	}
	s.cursor = 0
	s.list.SetFilter(spec.Key, next)
}

func (s *screen[T]) stepPageSize(dir int) {
	current := s.list.State().Query.PageSize
	idx := 0
	for i, size := range query.PageSizes {
		if size == current {
			idx = i
		}
	}
	idx += dir
	if idx < 0 || idx >= len(query.PageSizes) {
		return
	}
	s.cursor = 0
	s.list.SetPageSize(query.PageSizes[idx])
}

func (s *screen[T]) selected() (T, bool) {
	var zero T
	items := s.list.State().Page.Items
	if s.cursor < 0 || s.cursor >= len(items) {
		return zero, false
	}
	return items[s.cursor], true
}

func (s *screen[T]) itemAction(action string, policy mutate.Policy) tea.Cmd {
	item, ok := s.selected()
	if !ok {
		return nil
	}
	key := s.ident.Key(item)
	payload := item
	if s.preview != nil {
		payload = s.preview(item, action)
	}
	if action == "assign" {
		// An empty verifier lets the server pick the least loaded one.
		var zero T
		payload = s.ident.WithKey(zero, key)
	}
	return s.mutate(action, mutate.Request[T]{
		Kind:     mutate.KindUpdate,
		TargetID: key,
		Action:   action,
		Payload:  payload,
		Policy:   policy,
	})
}

func (s *screen[T]) delete() tea.Cmd {
	if s.desc.ReadOnly {
		return nil
	}
	item, ok := s.selected()
	if !ok {
		return nil
	}
	key := s.ident.Key(item)
	if s.armed != key {
		s.armed = key
		s.flash, s.flashErr = "press d again to delete", false
		return nil
	}
	s.armed = ""
	return s.mutate("delete", mutate.Request[T]{Kind: mutate.KindDelete, TargetID: key, Policy: mutate.Optimistic})
}

func (s *screen[T]) bulk(action string) tea.Cmd {
	return s.mutate(action, mutate.Request[T]{Kind: mutate.KindBulk, TargetID: mutate.BulkTarget, Action: action})
}

func (s *screen[T]) mutate(verb string, req mutate.Request[T]) tea.Cmd {
	list, name, timeout := s.list, s.desc.Name, s.timeout
	s.flash, s.flashErr = verb+"…", false
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_, err := list.Mutate(ctx, req)
		return mutationDone{Resource: name, Verb: verb, Key: req.TargetID, Err: err}
	}
}

func (s *screen[T]) clampCursor() {
	n := len(s.list.State().Page.Items)
	if s.cursor >= n {
		s.cursor = n - 1
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
}

func (s *screen[T]) View(width, height int, spin string) string {
	state := s.list.State()
	var b strings.Builder

	b.WriteString(s.searchLine(width))
	b.WriteString("\n")
	used := 1

	if state.Err != nil && state.Loaded {
		b.WriteString(ErrorStyle.Width(width).Render(bannerText(state.Err)))
		b.WriteString("\n")
		used++
	}

	footer := s.footer(state, width, spin)
	bodyHeight := height - used - 1
	switch {
	case !state.Loaded && state.Status == controller.StatusError:
		b.WriteString(HelpStyle.Render(fmt.Sprintf("Could not load %s: %s\nPress r to retry.",
			strings.ToLower(s.desc.Title), state.Err.Message)))
	case !state.Loaded:
		b.WriteString(HelpStyle.Render(spin + " Loading " + strings.ToLower(s.desc.Title) + "…"))
	case len(state.Page.Items) == 0:
		b.WriteString(HelpStyle.Render("No " + strings.ToLower(s.desc.Title) + " match."))
	default:
		b.WriteString(renderTable(s.desc.Columns, state.Page.Items, s.cursor, state.IsPending, s.ident.Key, width, bodyHeight))
	}
	b.WriteString("\n")
	b.WriteString(footer)
	return b.String()
}

func bannerText(err *fetch.Error) string {
	msg := err.Message
	if msg == "" {
		msg = string(err.Kind) + " error"
	}
	if err.Validation() && len(err.Fields) > 0 {
		msg += " (" + fieldSummary(err) + ")"
	}
	return "⚠ " + msg + " · showing last loaded page · r to retry"
}

func (s *screen[T]) searchLine(width int) string {
	var chips []string
	for i, f := range s.desc.Filters {
		if len(f.Values) == 0 {
			continue
		}
		if v := s.filters[f.Key]; v != "" {
			chips = append(chips, FilterChip.Render(fmt.Sprintf("%d %s:%s", i+1, f.Label, v)))
		} else {
			chips = append(chips, StatusBarText.Render(fmt.Sprintf("%d %s ", i+1, f.Label)))
		}
	}
	left := s.search.View()
	if !s.searching && s.search.Value() == "" {
		left = StatusBarText.Render("/ search")
	}
	return SearchBar.Width(width).Render(left + "   " + strings.Join(chips, ""))
}

func (s *screen[T]) footer(state controller.State[T], width int, spin string) string {
	var parts []string
	if state.Status == controller.StatusLoading || state.Searching {
		parts = append(parts, spin)
	}
	parts = append(parts, renderWindow(state.Page.TotalPages, state.Page.Page))
	parts = append(parts, StatusBarText.Render(fmt.Sprintf("%d total · %d/page", state.Page.Total, state.Query.PageSize)))
	if s.flash != "" {
		style := FlashStyle
		if s.flashErr {
			style = ErrorStyle
		}
		parts = append(parts, style.Render(s.flash))
	}
	return strings.Join(parts, "  ")
}
