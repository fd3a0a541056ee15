package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-kit/log/level"

	"github.com/gravitrone/storesync/internal/api"
	"github.com/gravitrone/storesync/internal/deep"
)

var errNoResponse = errors.New("fetcher returned no response")

// LoadOptions tunes Load and List. Nil pointer fields fall back to the
// store's own pagination state.
type LoadOptions struct {
	// Query replaces the active filter for this call.
	Query Filter
	// SkipFilter sends no filter at all when Query is nil.
	SkipFilter bool
	Offset     *int
	Limit      *int
	Sort       *string
	// AddData names envelope fields (or included entries) to copy into Extra.
	AddData []string
	// SkipUpdate returns the response without touching the collection or item.
	SkipUpdate bool
}

// pageTurn reports whether the options only move the offset.
func (o LoadOptions) pageTurn() bool {
	return o.Offset != nil && o.Query == nil && o.Limit == nil && o.Sort == nil &&
		len(o.AddData) == 0 && !o.SkipFilter
}

// SaveFieldOptions tunes SaveField.
type SaveFieldOptions struct {
	// Query is sent alongside the field as "query".
	Query Filter
}

func (s *Store) fetch(ctx context.Context, url, method string, params map[string]any) (*api.Response, error) {
	resp, err := s.fetcher.Fetch(ctx, url, api.FetchOptions{Publish: true, Method: method}, params)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, errNoResponse
	}
	return resp, nil
}

// Load fetches one record (id set) into the focused item, or one page of the
// collection (id empty). Rejected responses (status >= 400) leave state
// untouched and are returned without an error.
func (s *Store) Load(ctx context.Context, id string, appendItems bool, opt LoadOptions) (*api.Response, error) {
	var (
		query    Filter
		offset   int
		limit    int
		sort     string
		extended bool
	)
	s.read(func(st *state) {
		switch {
		case id != "":
			query = Filter{}
		case opt.Query != nil:
			query = cloneFilter(opt.Query)
		case opt.SkipFilter:
			query = Filter{}
		default:
			query = cloneFilter(st.queryFilter)
		}
		offset, limit, sort, extended = st.offset, st.limit, st.sort, st.extendedView
	})
	if opt.Offset != nil {
		offset = *opt.Offset
	}
	if opt.Limit != nil {
		limit = *opt.Limit
	}
	if opt.Sort != nil {
		sort = *opt.Sort
	}

	if s.hooks.BeforeLoad != nil && !opt.SkipUpdate && !opt.pageTurn() {
		s.hooks.BeforeLoad(BeforeLoadInfo{
			ID:          id,
			AddData:     opt.AddData,
			QueryFilter: cloneFilter(query),
		})
	}

	params := map[string]any{
		"extendedView": extended,
		"offset":       offset,
		"limit":        limit,
		"sort":         sort,
	}
	for k, v := range query {
		params[k] = v
	}

	resp, err := s.fetch(ctx, s.api.Load.URL+id, http.MethodGet, deep.Clean(params))
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.name, err)
	}
	return s.HandleLoadResponse(resp, id, appendItems, opt)
}

// List loads a page of the collection.
func (s *Store) List(ctx context.Context, appendItems bool, opt LoadOptions) (*api.Response, error) {
	return s.Load(ctx, "", appendItems, opt)
}

// Refresh resets the offset and replaces the collection with the first page.
func (s *Store) Refresh(ctx context.Context) (*api.Response, error) {
	s.UpdateOffset(0)
	return s.List(ctx, false, LoadOptions{})
}

// LoadMore fetches the page after the current offset and appends it. The
// offset only advances once that page has been applied.
func (s *Store) LoadMore(ctx context.Context, opt LoadOptions) (*api.Response, error) {
	var next int
	s.read(func(st *state) { next = st.offset + st.limit })
	opt.Offset = Ptr(next)
	resp, err := s.List(ctx, true, opt)
	if err != nil || !resp.OK() {
		return resp, err
	}
	s.UpdateOffset(next)
	return resp, nil
}

// HandleLoadResponse applies a load response to the store.
func (s *Store) HandleLoadResponse(resp *api.Response, id string, appendItems bool, opt LoadOptions) (*api.Response, error) {
	if resp == nil || resp.Status >= 400 {
		stats.droppedResponse(s.name)
		if resp != nil {
			level.Debug(s.logger).Log("op", "load", "id", id, "status", resp.Status, "reason", resp.Message, "msg", "response dropped")
		}
		return resp, nil
	}

	for _, name := range opt.AddData {
		if raw, ok := resp.Field(name); ok {
			s.SetExtra(name, raw)
		}
	}
	if opt.SkipUpdate {
		return resp, nil
	}

	if id != "" {
		item, err := decodeItem(resp)
		if err != nil {
			return resp, fmt.Errorf("load %s %s: %w", s.name, id, err)
		}
		s.UpdateItem(item)
	} else {
		var items []Record
		if err := resp.DecodeData(&items); err != nil {
			return resp, fmt.Errorf("load %s: %w", s.namePlural, err)
		}
		if items == nil {
			items = []Record{}
		}
		s.Update(items, appendItems)
		if appendItems {
			s.UpdateTotalAppend(len(items))
		} else {
			if s.hooks.ScrollTop != nil {
				s.hooks.ScrollTop()
			}
			s.UpdateTotal(resp.Total)
		}
	}

	if s.hooks.AfterLoad != nil {
		s.hooks.AfterLoad(resp, opt)
	}
	if s.hooks.ParseElements != nil {
		s.hooks.ParseElements()
	}
	return resp, nil
}

// decodeItem takes the record out of a single-record response; a sequence
// yields its first element.
func decodeItem(resp *api.Response) (Record, error) {
	if resp.DataIsSequence() {
		var items []Record
		if err := resp.DecodeData(&items); err != nil {
			return nil, err
		}
		if len(items) == 0 {
			return nil, nil
		}
		return items[0], nil
	}
	var item Record
	if err := resp.DecodeData(&item); err != nil {
		return nil, err
	}
	return item, nil
}

// SaveField PATCHes a single field. With updateMemory the change is applied
// locally first. The "field.id" Save Status flag is raised before the call and
// cleared after the flash delay only when the server answers below 300.
func (s *Store) SaveField(ctx context.Context, id any, field string, value any, updateMemory bool, opt SaveFieldOptions) (*api.Response, error) {
	idStr := IDString(id)
	key := field + "." + idStr
	if updateMemory {
		s.UpdateField(id, field, value, "id")
	}
	s.UpdateSaved(key, true)

	body := map[string]any{field: value}
	if opt.Query != nil {
		body["query"] = map[string]any(opt.Query)
	}
	resp, err := s.fetch(ctx, s.api.Save.URL+idStr, http.MethodPatch, body)
	if err != nil {
		return nil, fmt.Errorf("save %s field %s: %w", s.name, field, err)
	}
	if resp.Status < 300 {
		s.timers.schedule(savedTimer(key), s.flashDelay, func() {
			s.UpdateSaved(key, false)
		})
	} else {
		level.Warn(s.logger).Log("op", "saveField", "id", idStr, "field", field, "status", resp.Status, "msg", "save status left raised")
	}
	return resp, nil
}

// Insert POSTs a new record. On success the inserted flag flashes; the raw
// response is always returned so callers can inspect failures.
func (s *Store) Insert(ctx context.Context, data Record) (*api.Response, error) {
	resp, err := s.fetch(ctx, s.api.Save.URL, http.MethodPost, data)
	if err != nil {
		return nil, fmt.Errorf("insert %s: %w", s.name, err)
	}
	if resp.Status < 400 {
		s.UpdateInsertStatus(true)
		s.timers.schedule(timerInsert, s.flashDelay, func() {
			s.UpdateInsertStatus(false)
		})
	}
	return resp, nil
}

// Save PATCHes data onto a record. The id comes from id, else data["id"],
// else the focused item. The Save Status flag for that id flashes whatever
// the response status.
func (s *Store) Save(ctx context.Context, data Record, id any) (*api.Response, error) {
	if isEmptyID(id) {
		id = data["id"]
	}
	if isEmptyID(id) {
		s.read(func(st *state) {
			if st.item != nil {
				id = st.item["id"]
			}
		})
	}
	if isEmptyID(id) {
		return nil, ErrNoID
	}
	key := IDString(id)

	resp, err := s.fetch(ctx, s.api.Save.URL+key, http.MethodPatch, data)
	if err != nil {
		return nil, fmt.Errorf("save %s %s: %w", s.name, key, err)
	}
	s.UpdateSaved(key, true)
	s.timers.schedule(savedTimer(key), s.flashDelay, func() {
		s.UpdateSaved(key, false)
	})
	return resp, nil
}

// Delete removes the element locally, then issues the DELETE. The local
// removal is not rolled back whatever the server answers.
func (s *Store) Delete(ctx context.Context, id any, field string, data Record) (*api.Response, error) {
	s.DeleteElement(id, field)
	var body map[string]any
	if len(data) > 0 {
		body = data
	}
	resp, err := s.fetch(ctx, s.api.Delete.URL+IDString(id), http.MethodDelete, body)
	if err != nil {
		return nil, fmt.Errorf("delete %s %s: %w", s.name, IDString(id), err)
	}
	return resp, nil
}

func isEmptyID(id any) bool {
	switch v := id.(type) {
	case nil:
		return true
	case string:
		return v == ""
	}
	return false
}
