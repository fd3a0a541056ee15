package store

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-kit/log/level"

	"github.com/gravitrone/storesync/internal/deep"
)

// UpdateSearchResults replaces the search result sequence.
func (s *Store) UpdateSearchResults(items []Record) {
	if items == nil {
		items = []Record{}
	}
	s.commit("updateSearchResults", func(st *state) bool {
		st.searchResults = cloneItems(items)
		return true
	})
}

// UpdateSearchTotal sets the number of search results.
func (s *Store) UpdateSearchTotal(total int) {
	s.commit("updateSearchTotal", func(st *state) bool {
		st.totalSearch = total
		return true
	})
}

// UpdateSearchSelectID sets the id of the selected search result without
// moving the cursor index.
func (s *Store) UpdateSearchSelectID(id any) {
	s.commit("updateSearchSelectId", func(st *state) bool {
		st.searchSelectID = id
		return true
	})
}

// IncSearchSelectIdx moves the cursor down, stopping at the last result.
func (s *Store) IncSearchSelectIdx() {
	s.commit("incSearchSelectIdx", func(st *state) bool {
		st.searchSelectIdx = clampIndex(st.searchSelectIdx+1, st.totalSearch)
		st.searchSelectID = resultID(st.searchResults, st.searchSelectIdx)
		return true
	})
}

// DecSearchSelectIdx moves the cursor up, stopping at zero.
func (s *Store) DecSearchSelectIdx() {
	s.commit("decSearchSelectIdx", func(st *state) bool {
		st.searchSelectIdx = clampIndex(st.searchSelectIdx-1, st.totalSearch)
		st.searchSelectID = resultID(st.searchResults, st.searchSelectIdx)
		return true
	})
}

// ResetSearch clears results, total and selection in one action.
func (s *Store) ResetSearch() {
	s.commit("resetSearch", func(st *state) bool {
		resetSearchState(st)
		return true
	})
}

func resetSearchState(st *state) {
	st.searchResults = []Record{}
	st.totalSearch = 0
	st.searchSelectID = 0
	st.searchSelectIdx = 0
}

func clampIndex(idx, total int) int {
	if idx >= total {
		idx = total - 1
	}
	if idx < 0 {
		idx = 0
	}
	return idx
}

func resultID(results []Record, idx int) any {
	if idx < 0 || idx >= len(results) {
		return nil
	}
	return results[idx]["id"]
}

// Search runs one query against the search endpoint. Empty text clears the
// search state without a network call and reports false, as does a rejected
// response (status >= 400), which leaves the state untouched. A successful
// response without data counts as zero matches. Callers are expected to
// rate-limit keystrokes themselves.
func (s *Store) Search(ctx context.Context, text string) (bool, error) {
	if text == "" {
		s.ResetSearch()
		return false, nil
	}

	var params map[string]any
	s.read(func(st *state) {
		params = map[string]any{
			"sort":  st.sort,
			"limit": st.limit,
		}
	})
	for k, v := range s.api.Search.Params {
		params[k] = v
	}
	params["search"] = text

	resp, err := s.fetch(ctx, s.api.Search.URL, http.MethodGet, deep.Clean(params))
	if err != nil {
		return false, fmt.Errorf("search %s: %w", s.name, err)
	}
	if !resp.OK() {
		level.Debug(s.logger).Log("op", "search", "status", resp.Status, "reason", resp.Message, "msg", "no results applied")
		return false, nil
	}

	var items []Record
	if err := resp.DecodeData(&items); err != nil {
		return false, fmt.Errorf("search %s: %w", s.name, err)
	}
	if items == nil {
		items = []Record{}
	}
	s.commit("search", func(st *state) bool {
		st.searchResults = items
		st.totalSearch = len(items)
		st.searchSelectID = 0
		st.searchSelectIdx = 0
		return true
	})
	return true, nil
}

// searchElement returns {id, title} of a search result. Index 0 stands for
// the current selection.
func (s *Store) searchElement(idx int) (Record, error) {
	var out Record
	var err error
	s.read(func(st *state) {
		index := idx
		if index == 0 {
			index = st.searchSelectIdx
		}
		if index < 0 || index >= len(st.searchResults) {
			err = fmt.Errorf("%w: %d", ErrNoSearchResult, index)
			return
		}
		r := st.searchResults[index]
		out = Record{"id": r["id"], "title": r["title"]}
	})
	return out, err
}
