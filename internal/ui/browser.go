package ui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gravitrone/storesync/internal/api"
	"github.com/gravitrone/storesync/internal/config"
	"github.com/gravitrone/storesync/internal/deep"
	"github.com/gravitrone/storesync/internal/store"
	"github.com/gravitrone/storesync/internal/ui/components"
)

type browserMode int

const (
	modeList browserMode = iota
	modeDetail
	modeSearch
	modeEdit
	modeCreate
	modeConfirmDelete
)

const (
	listPageSize = 15
	errorTTL     = 4 * time.Second
)

// --- Messages ---

type storeChangedMsg struct{ event store.Event }

type opDoneMsg struct {
	op   string
	resp *api.Response
	err  error
}

type searchDoneMsg struct {
	query string
	ok    bool
	err   error
}

type clearErrMsg struct{ seq int }

type opFunc func(ctx context.Context) (*api.Response, error)

// --- Browser Model ---

// BrowserModel is a TUI over a single store. It renders from store snapshots
// and re-reads them whenever the store reports a committed action.
type BrowserModel struct {
	store       *store.Store
	def         config.StoreConfig
	toggles     []string
	changes     chan store.Event
	unsubscribe func()
	scroll      *ScrollSignal

	snap   store.State
	list   *components.List
	fields *components.List
	keys   []string

	mode      browserMode
	query     string
	input     string
	editField string
	pending   int
	err       string
	errSeq    int
	width     int
	height    int
}

// NewBrowser subscribes to s and builds the model. scroll may be nil; when
// it is the one wired into the store's ScrollTop hook, a replacing load puts
// the cursor back on the first row. Call Close when the program exits.
func NewBrowser(s *store.Store, def config.StoreConfig, scroll *ScrollSignal) BrowserModel {
	changes := make(chan store.Event, 64)
	unsubscribe := s.Subscribe(func(ev store.Event) {
		// The model re-reads the whole snapshot, so a dropped event is harmless.
		select {
		case changes <- ev:
		default:
		}
	})

	m := BrowserModel{
		store:       s,
		def:         def,
		toggles:     def.ToggleLabels(),
		changes:     changes,
		unsubscribe: unsubscribe,
		scroll:      scroll,
		list:        components.NewList(listPageSize),
		fields:      components.NewList(listPageSize),
	}
	m.refresh()
	return m
}

// Close detaches the model from the store.
func (m BrowserModel) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Init starts listening for store changes and loads the first page.
func (m BrowserModel) Init() tea.Cmd {
	s := m.store
	return tea.Batch(waitForChange(m.changes), m.start("list", func(ctx context.Context) (*api.Response, error) {
		return s.Refresh(ctx)
	}))
}

func waitForChange(ch <-chan store.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return storeChangedMsg{event: ev}
	}
}

// start wraps one blocking store call as a command. The caller counts it in
// pending.
func (m BrowserModel) start(op string, fn opFunc) tea.Cmd {
	return func() tea.Msg {
		resp, err := fn(context.Background())
		return opDoneMsg{op: op, resp: resp, err: err}
	}
}

func (m *BrowserModel) run(op string, fn opFunc) tea.Cmd {
	m.pending++
	return m.start(op, fn)
}

func (m *BrowserModel) setError(text string) tea.Cmd {
	m.errSeq++
	m.err = components.SanitizeOneLine(text)
	seq := m.errSeq
	return tea.Tick(errorTTL, func(time.Time) tea.Msg {
		return clearErrMsg{seq: seq}
	})
}

// refresh pulls a fresh snapshot and re-aligns both cursors with it.
func (m *BrowserModel) refresh() {
	m.snap = m.store.Snapshot()

	rows := make([]string, len(m.snap.Items))
	for i, item := range m.snap.Items {
		rows[i] = store.IDString(item["id"])
	}
	if m.scroll.take() {
		m.list.SetItems(rows)
	} else {
		m.list.Refresh(rows)
	}

	keys := make([]string, 0, len(m.snap.Item))
	for k := range m.snap.Item {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	m.keys = keys
	m.fields.Refresh(keys)
}

func (m BrowserModel) selectedItem() (store.Record, bool) {
	idx := m.list.Selected()
	if idx < 0 || idx >= len(m.snap.Items) {
		return nil, false
	}
	return m.snap.Items[idx], true
}

func (m BrowserModel) focusedID() any {
	if m.snap.Item == nil {
		return nil
	}
	return m.snap.Item["id"]
}

// --- Update ---

func (m BrowserModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case storeChangedMsg:
		m.refresh()
		return m, waitForChange(m.changes)
	case opDoneMsg:
		return m.handleOpDone(msg)
	case searchDoneMsg:
		m.done()
		m.refresh()
		if msg.query != m.query {
			return m, nil
		}
		if msg.err != nil {
			return m, m.setError(msg.err.Error())
		}
		if !msg.ok && strings.TrimSpace(msg.query) != "" {
			return m, m.setError("search failed")
		}
		return m, nil
	case clearErrMsg:
		if msg.seq == m.errSeq {
			m.err = ""
		}
		return m, nil
	case tea.KeyMsg:
		switch m.mode {
		case modeSearch:
			return m.updateSearch(msg)
		case modeEdit, modeCreate:
			return m.updateInput(msg)
		case modeConfirmDelete:
			return m.updateConfirm(msg)
		case modeDetail:
			return m.updateDetail(msg)
		}
		return m.updateList(msg)
	}
	return m, nil
}

// done settles one in-flight call. The first page load from Init is not
// counted, so the counter is clamped.
func (m *BrowserModel) done() {
	if m.pending > 0 {
		m.pending--
	}
}

func (m BrowserModel) handleOpDone(msg opDoneMsg) (tea.Model, tea.Cmd) {
	m.done()
	m.refresh()
	if msg.err != nil {
		return m, m.setError(fmt.Sprintf("%s: %v", msg.op, msg.err))
	}
	if msg.resp != nil && !msg.resp.OK() {
		text := fmt.Sprintf("%s: server returned %d", msg.op, msg.resp.Status)
		if msg.resp.Message != "" {
			text += ": " + msg.resp.Message
		}
		return m, m.setError(text)
	}

	switch msg.op {
	case "item":
		m.mode = modeDetail
		m.fields.SetItems(m.keys)
	case "insert":
		return m, m.reload()
	}
	return m, nil
}

func (m *BrowserModel) reload() tea.Cmd {
	s := m.store
	return m.run("list", func(ctx context.Context) (*api.Response, error) {
		return s.Refresh(ctx)
	})
}

func (m *BrowserModel) loadItem(id any) tea.Cmd {
	s := m.store
	key := store.IDString(id)
	return m.run("item", func(ctx context.Context) (*api.Response, error) {
		return s.Load(ctx, key, false, store.LoadOptions{})
	})
}

func (m BrowserModel) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.store
	if slot, ok := toggleSlot(msg); ok {
		if slot >= len(m.toggles) {
			return m, nil
		}
		tg := m.def.Toggles[m.toggles[slot]]
		return m, m.run("filter", func(ctx context.Context) (*api.Response, error) {
			return nil, s.ToggleQueryFilter(ctx, tg.Key, tg.Value, store.ToggleOptions{SetTimer: true})
		})
	}

	switch {
	case isQuit(msg):
		return m, tea.Quit
	case isDown(msg):
		if m.list.AtEnd() && len(m.snap.Items) < m.snap.Total {
			return m, m.run("more", func(ctx context.Context) (*api.Response, error) {
				return s.LoadMore(ctx, store.LoadOptions{})
			})
		}
		m.list.Down()
	case isUp(msg):
		m.list.Up()
	case isEnter(msg):
		if item, ok := m.selectedItem(); ok {
			return m, m.loadItem(item["id"])
		}
	case isKey(msg, "/"):
		m.mode = modeSearch
		m.query = ""
		s.ResetSearch()
	case isKey(msg, "n"):
		if len(m.snap.Items) == 0 {
			return m, nil
		}
		return m, m.run("more", func(ctx context.Context) (*api.Response, error) {
			return s.LoadMore(ctx, store.LoadOptions{})
		})
	case isKey(msg, "r"):
		return m, m.reload()
	case isKey(msg, "x"):
		s.ResetQueryFilter()
		return m, m.reload()
	case isKey(msg, "c"):
		m.mode = modeCreate
		m.input = ""
	case isKey(msg, "d"):
		if _, ok := m.selectedItem(); ok {
			m.mode = modeConfirmDelete
		}
	}
	return m, nil
}

func (m BrowserModel) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case isQuit(msg):
		return m, tea.Quit
	case isBack(msg):
		m.mode = modeList
	case isDown(msg):
		m.fields.Down()
	case isUp(msg):
		m.fields.Up()
	case isEnter(msg):
		idx := m.fields.Selected()
		if idx < len(m.keys) && m.keys[idx] != "id" {
			m.editField = m.keys[idx]
			m.input = components.FormatValue(m.snap.Item[m.editField])
			m.mode = modeEdit
		}
	case isKey(msg, "r"):
		if id := m.focusedID(); id != nil {
			return m, m.loadItem(id)
		}
	}
	return m, nil
}

func (m BrowserModel) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.store
	switch {
	case isBack(msg):
		if m.mode == modeEdit {
			m.mode = modeDetail
		} else {
			m.mode = modeList
		}
		m.input = ""
		return m, nil
	case isBackspace(msg):
		if m.input != "" {
			runes := []rune(m.input)
			m.input = string(runes[:len(runes)-1])
		}
		return m, nil
	case isKey(msg, "ctrl+u"):
		m.input = ""
		return m, nil
	case isEnter(msg):
		value := m.input
		m.input = ""
		if m.mode == modeEdit {
			m.mode = modeDetail
			id, field := m.focusedID(), m.editField
			return m, m.run("save", func(ctx context.Context) (*api.Response, error) {
				return s.SaveField(ctx, id, field, deep.ParseValue(value), true, store.SaveFieldOptions{})
			})
		}
		m.mode = modeList
		if strings.TrimSpace(value) == "" {
			return m, nil
		}
		return m, m.run("insert", func(ctx context.Context) (*api.Response, error) {
			return s.Insert(ctx, store.Record{"title": value})
		})
	}
	if text, ok := typedText(msg); ok {
		m.input += text
	}
	return m, nil
}

func (m BrowserModel) updateConfirm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.store
	switch {
	case isKey(msg, "y"):
		m.mode = modeList
		item, ok := m.selectedItem()
		if !ok {
			return m, nil
		}
		id := item["id"]
		return m, m.run("delete", func(ctx context.Context) (*api.Response, error) {
			return s.Delete(ctx, id, "id", nil)
		})
	case isKey(msg, "n"), isBack(msg):
		m.mode = modeList
	}
	return m, nil
}

func (m BrowserModel) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	s := m.store
	switch {
	case isBack(msg):
		m.mode = modeList
		m.query = ""
		s.ResetSearch()
		return m, nil
	case isKey(msg, "up"):
		s.DecSearchSelectIdx()
		m.refresh()
		return m, nil
	case isKey(msg, "down"):
		s.IncSearchSelectIdx()
		m.refresh()
		return m, nil
	case isEnter(msg):
		// A fresh result list selects nothing yet; enter opens the highlighted row.
		id := m.snap.Search.SelectedID
		if id == nil || deep.Equal(id, 0) {
			results, idx := m.snap.Search.Results, m.snap.Search.SelectedIndex
			if idx < 0 || idx >= len(results) {
				return m, nil
			}
			id = results[idx]["id"]
		}
		return m, m.loadItem(id)
	case isBackspace(msg):
		if m.query == "" {
			return m, nil
		}
		runes := []rune(m.query)
		m.query = string(runes[:len(runes)-1])
		return m, m.search()
	}
	if text, ok := typedText(msg); ok {
		if text == " " && m.query == "" {
			return m, nil
		}
		m.query += text
		return m, m.search()
	}
	return m, nil
}

func (m *BrowserModel) search() tea.Cmd {
	s := m.store
	query := m.query
	m.pending++
	return func() tea.Msg {
		ok, err := s.Search(context.Background(), strings.TrimSpace(query))
		return searchDoneMsg{query: query, ok: ok, err: err}
	}
}
