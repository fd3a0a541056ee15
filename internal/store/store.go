// Package store keeps a local, observable copy of one remote resource kind in
// sync with a CRUD-style HTTP API.
//
// A Store holds a paged collection, an optional focused record, the active
// query filter, an independent search cursor and a handful of transient status
// flags. All state changes go through actions: each action takes the lock,
// replaces the affected fields copy-on-write, releases the lock and then
// notifies subscribers exactly once. Records handed out by the Store are
// shared and must be treated as read-only.
//
// Remote operations (Load, List, Search, SaveField, Insert, Save, Delete)
// block the calling goroutine for the duration of one API call and feed the
// result back through the same actions. Overlapping loads are not sequenced:
// the response that arrives last wins.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/go-kit/log"

	"github.com/gravitrone/storesync/internal/api"
	"github.com/gravitrone/storesync/internal/deep"
	"github.com/gravitrone/storesync/internal/storage"
)

const (
	// DefaultLimit is the page size used when Options.Limit is zero.
	DefaultLimit = 25
	// DefaultFlashDelay is how long saved/inserted flags stay raised.
	DefaultFlashDelay = 2 * time.Second
	// DefaultDebounceDelay collapses bursts of filter toggles into one reload.
	DefaultDebounceDelay = 750 * time.Millisecond
)

var (
	// ErrNoID is returned by Save when no record id can be determined.
	ErrNoID = errors.New("no record id")
	// ErrNoContainer is returned by nested array operations when the
	// container record is absent or not supported.
	ErrNoContainer = errors.New("no container record")
	// ErrNoSearchResult is returned when a search index is out of range.
	ErrNoSearchResult = errors.New("no search result at index")
)

// Record is one entity as decoded from the API.
type Record = map[string]any

// Filter holds the active query criteria for page loads.
type Filter map[string]any

// Fetcher performs one API call. *api.Client satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, url string, opts api.FetchOptions, params map[string]any) (*api.Response, error)
}

// Endpoint is a URL prefix; an id (or nothing) is appended per call.
type Endpoint struct {
	URL    string
	Params map[string]any
}

// Endpoints groups the four URLs a store talks to.
type Endpoints struct {
	Load   Endpoint
	Save   Endpoint
	Delete Endpoint
	Search Endpoint
}

// BeforeLoadInfo is passed to Hooks.BeforeLoad.
type BeforeLoadInfo struct {
	ID          string
	AddData     []string
	QueryFilter Filter
}

// Hooks are optional callbacks. A nil hook is skipped.
type Hooks struct {
	BeforeLoad    func(BeforeLoadInfo)
	AfterLoad     func(resp *api.Response, opt LoadOptions)
	ParseElements func()
	// Tree is a secondary reload run after filter-triggered list reloads.
	Tree func(ctx context.Context) error
	// ScrollTop runs after a page replaces the collection.
	ScrollTop func()
}

// Options configures a Store at construction.
type Options struct {
	NamePlural    string
	API           Endpoints
	QueryFilter   Filter
	Sort          string
	ExtendedView  bool
	Limit         int
	Hooks         Hooks
	Storage       storage.KeyValue
	Logger        log.Logger
	FlashDelay    time.Duration
	DebounceDelay time.Duration
}

// Event is delivered to subscribers after every committed action.
type Event struct {
	Store  string
	Action string
}

type subscription struct {
	id int
	fn func(Event)
}

// Store is the reactive state container for one entity kind.
type Store struct {
	name          string
	namePlural    string
	api           Endpoints
	hooks         Hooks
	fetcher       Fetcher
	storage       storage.KeyValue
	logger        log.Logger
	flashDelay    time.Duration
	debounceDelay time.Duration
	timers        *scheduler

	mu sync.Mutex
	st state

	subMu   sync.RWMutex
	subs    []subscription
	nextSub int
}

type state struct {
	items           []Record
	item            Record
	extra           map[string]json.RawMessage
	queryFilter     Filter
	sort            string
	extendedView    bool
	limit           int
	offset          int
	total           int
	totalAppend     int
	searchResults   []Record
	totalSearch     int
	searchSelectID  any
	searchSelectIdx int
	saved           map[string]bool
	view            map[string]bool
	insertStatus    bool
}

// New builds the store for one entity kind. The query filter is restored from
// storage under "{name}QueryFilter", falling back to opts.QueryFilter.
func New(name string, fetcher Fetcher, opts Options) *Store {
	s := &Store{
		name:          name,
		namePlural:    opts.NamePlural,
		api:           opts.API,
		hooks:         opts.Hooks,
		fetcher:       fetcher,
		storage:       opts.Storage,
		logger:        opts.Logger,
		flashDelay:    opts.FlashDelay,
		debounceDelay: opts.DebounceDelay,
		timers:        newScheduler(),
	}
	if s.namePlural == "" {
		s.namePlural = name + "s"
	}
	if s.storage == nil {
		s.storage = storage.NewMemory()
	}
	if s.logger == nil {
		s.logger = log.NewNopLogger()
	}
	s.logger = log.With(s.logger, "store", name)
	if s.flashDelay <= 0 {
		s.flashDelay = DefaultFlashDelay
	}
	if s.debounceDelay <= 0 {
		s.debounceDelay = DefaultDebounceDelay
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	filter := Filter{}
	if saved, ok := s.storage.Get(s.filterKey()); ok {
		filter = pruneFilter(saved)
	} else if opts.QueryFilter != nil {
		filter = pruneFilter(opts.QueryFilter)
	}

	s.st = state{
		extra:          map[string]json.RawMessage{},
		queryFilter:    filter,
		sort:           opts.Sort,
		extendedView:   opts.ExtendedView,
		limit:          limit,
		searchResults:  []Record{},
		searchSelectID: 0,
		saved:          map[string]bool{},
		view:           map[string]bool{},
	}
	return s
}

// Name is the singular entity name.
func (s *Store) Name() string { return s.name }

// NamePlural is the collection's logical name.
func (s *Store) NamePlural() string { return s.namePlural }

// Close stops every pending timer.
func (s *Store) Close() {
	s.timers.stopAll()
}

// Subscribe registers fn for every committed action. Subscribers run
// synchronously on the goroutine that committed the action, after the lock
// is released, so they may read state or run further actions.
func (s *Store) Subscribe(fn func(Event)) (unsubscribe func()) {
	s.subMu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

func (s *Store) notify(ev Event) {
	s.subMu.RLock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.subMu.RUnlock()
	for _, sub := range subs {
		sub.fn(ev)
	}
}

// commit runs one action. fn mutates st under the lock and reports whether
// anything changed; subscribers are notified only on change.
func (s *Store) commit(action string, fn func(st *state) bool) {
	s.mu.Lock()
	changed := fn(&s.st)
	s.mu.Unlock()
	if !changed {
		return
	}
	stats.action(s.name, action)
	s.notify(Event{Store: s.name, Action: action})
}

func (s *Store) read(fn func(st *state)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.st)
}

func (s *Store) filterKey() string {
	return s.name + "QueryFilter"
}

// --- Snapshot ---

// SearchState is the search cursor part of a snapshot.
type SearchState struct {
	Results       []Record
	Total         int
	SelectedID    any
	SelectedIndex int
}

// State is a consistent copy of every observable field.
type State struct {
	Items        []Record
	Item         Record
	Extra        map[string]json.RawMessage
	QueryFilter  Filter
	Sort         string
	ExtendedView bool
	Limit        int
	Offset       int
	Total        int
	TotalAppend  int
	Search       SearchState
	Saved        map[string]bool
	View         map[string]bool
	InsertStatus bool
}

// Snapshot returns the current state. Maps and slices are copies; the records
// inside them are shared.
func (s *Store) Snapshot() State {
	var out State
	s.read(func(st *state) {
		out = State{
			Items:        cloneItems(st.items),
			Item:         st.item,
			Extra:        make(map[string]json.RawMessage, len(st.extra)),
			QueryFilter:  cloneFilter(st.queryFilter),
			Sort:         st.sort,
			ExtendedView: st.extendedView,
			Limit:        st.limit,
			Offset:       st.offset,
			Total:        st.total,
			TotalAppend:  st.totalAppend,
			Search: SearchState{
				Results:       cloneItems(st.searchResults),
				Total:         st.totalSearch,
				SelectedID:    st.searchSelectID,
				SelectedIndex: st.searchSelectIdx,
			},
			Saved:        make(map[string]bool, len(st.saved)),
			View:         make(map[string]bool, len(st.view)),
			InsertStatus: st.insertStatus,
		}
		for k, v := range st.extra {
			out.Extra[k] = v
		}
		for k, v := range st.saved {
			out.Saved[k] = v
		}
		for k, v := range st.view {
			out.View[k] = v
		}
	})
	return out
}

// Items returns the collection. Nil means no page has been loaded yet.
func (s *Store) Items() []Record {
	var out []Record
	s.read(func(st *state) { out = cloneItems(st.items) })
	return out
}

// Item returns the focused record, or nil.
func (s *Store) Item() Record {
	var out Record
	s.read(func(st *state) { out = st.item })
	return out
}

// QueryFilter returns a copy of the active filter.
func (s *Store) QueryFilter() Filter {
	var out Filter
	s.read(func(st *state) { out = cloneFilter(st.queryFilter) })
	return out
}

// IsSaved reports whether the Save Status flag for key is raised.
func (s *Store) IsSaved(key string) bool {
	var out bool
	s.read(func(st *state) { out = st.saved[key] })
	return out
}

// InsertStatus reports whether the inserted flash is raised.
func (s *Store) InsertStatus() bool {
	var out bool
	s.read(func(st *state) { out = st.insertStatus })
	return out
}

// Extra returns side data copied in by LoadOptions.AddData or SetExtra.
func (s *Store) Extra(name string) (json.RawMessage, bool) {
	var out json.RawMessage
	var ok bool
	s.read(func(st *state) { out, ok = st.extra[name] })
	return out, ok
}

// --- helpers ---

func cloneItems(items []Record) []Record {
	if items == nil {
		return nil
	}
	out := make([]Record, len(items))
	copy(out, items)
	return out
}

func cloneFilter(f Filter) Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// pruneFilter drops nil, empty and false values; zero stays.
func pruneFilter(f map[string]any) Filter {
	out := make(Filter, len(f))
	for k, v := range f {
		if deep.IsEmpty(v) {
			continue
		}
		out[k] = v
	}
	return out
}

// sameContent compares two values by their JSON serialization.
func sameContent(a, b any) bool {
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

// IDString renders an id for URLs and status keys. Whole floats print
// without a fraction, so a JSON 42 becomes "42".
func IDString(id any) string {
	switch v := id.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	b, err := json.Marshal(id)
	if err != nil {
		return ""
	}
	return string(b)
}

func findIndex(items []Record, field string, value any) int {
	if field == "" {
		field = "id"
	}
	for i, e := range items {
		if deep.Equal(e[field], value) {
			return i
		}
	}
	return -1
}

// Ptr returns a pointer to v, for LoadOptions overrides.
func Ptr[T any](v T) *T {
	return &v
}
