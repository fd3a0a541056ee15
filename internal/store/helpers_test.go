package store

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/gravitrone/storesync/internal/api"
	"github.com/gravitrone/storesync/internal/storage"
)

type fetchCall struct {
	URL    string
	Method string
	Params map[string]any
}

// fakeFetcher records calls and answers them through respond.
type fakeFetcher struct {
	mu      sync.Mutex
	calls   []fetchCall
	respond func(c fetchCall) (*api.Response, error)
}

func (f *fakeFetcher) Fetch(_ context.Context, url string, opts api.FetchOptions, params map[string]any) (*api.Response, error) {
	method := opts.Method
	if method == "" {
		method = "GET"
	}
	c := fetchCall{URL: url, Method: method, Params: params}
	f.mu.Lock()
	f.calls = append(f.calls, c)
	respond := f.respond
	f.mu.Unlock()
	if respond == nil {
		return &api.Response{Status: 200}, nil
	}
	return respond(c)
}

func (f *fakeFetcher) Calls() []fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]fetchCall, len(f.calls))
	copy(out, f.calls)
	return out
}

func (f *fakeFetcher) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func response(t *testing.T, status int, data any, total int) *api.Response {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return &api.Response{
		Status: status,
		Data:   raw,
		Total:  total,
		Fields: map[string]json.RawMessage{"data": raw},
	}
}

func testOptions() Options {
	return Options{
		NamePlural: "articles",
		API: Endpoints{
			Load:   Endpoint{URL: "/api/articles/"},
			Save:   Endpoint{URL: "/api/articles/"},
			Delete: Endpoint{URL: "/api/articles/"},
			Search: Endpoint{URL: "/api/articles/search", Params: map[string]any{"fields": "id,title"}},
		},
		Sort:          "-id",
		Limit:         10,
		Storage:       storage.NewMemory(),
		FlashDelay:    20 * time.Millisecond,
		DebounceDelay: 20 * time.Millisecond,
	}
}

func newTestStore(t *testing.T, f *fakeFetcher, mutate ...func(*Options)) *Store {
	t.Helper()
	opts := testOptions()
	for _, m := range mutate {
		m(&opts)
	}
	s := New("article", f, opts)
	t.Cleanup(s.Close)
	return s
}

// countEvents subscribes and returns a counter of delivered events.
func countEvents(s *Store) *atomic.Int32 {
	var n atomic.Int32
	s.Subscribe(func(Event) { n.Add(1) })
	return &n
}

func sampleItems() []Record {
	return []Record{
		{"id": 5, "title": "A"},
		{"id": 7, "title": "B"},
	}
}
