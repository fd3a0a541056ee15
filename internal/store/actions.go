package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/go-kit/log/level"

	"github.com/gravitrone/storesync/internal/deep"
)

// Slot selects which part of the container a field update targets.
type Slot int

const (
	SlotCollection Slot = 1 << iota
	SlotItem
)

// FieldUpdate describes one UpdateFieldByName call.
type FieldUpdate struct {
	Slots  Slot
	ID     any
	Field  string
	Value  any
	FindBy string
}

// ToggleOptions tunes ToggleQueryFilter.
type ToggleOptions struct {
	// SetValue forces the key on instead of flipping it.
	SetValue bool
	// SkipUpdate suppresses the follow-up reload.
	SkipUpdate bool
	// SetTimer debounces the follow-up reload.
	SetTimer bool
	// ViewElement names a view toggle to flip.
	ViewElement string
	// Toggle receives the toggled value.
	Toggle func(value any)
}

// --- Collection ---

// Update replaces the collection, or appends to it. A replace with content
// equal to the current collection is a no-op.
func (s *Store) Update(items []Record, appendItems bool) {
	s.commit("update", func(st *state) bool {
		if appendItems {
			next := make([]Record, 0, len(st.items)+len(items))
			next = append(next, st.items...)
			next = append(next, items...)
			st.items = next
			return true
		}
		if items == nil {
			items = []Record{}
		}
		if st.items != nil && sameContent(st.items, items) {
			return false
		}
		st.items = cloneItems(items)
		return true
	})
}

// Add replaces the entry whose field matches item's, or appends item.
// Nothing happens while no collection is loaded.
func (s *Store) Add(item Record, field string) {
	if field == "" {
		field = "id"
	}
	s.commit("add", func(st *state) bool {
		if st.items == nil {
			return false
		}
		next := cloneItems(st.items)
		if idx := findIndex(next, field, item[field]); idx >= 0 {
			next[idx] = item
		} else {
			next = append(next, item)
		}
		st.items = next
		return true
	})
}

// Get finds the entry whose field equals value.
func (s *Store) Get(value any, field string) (Record, bool) {
	var out Record
	var ok bool
	s.read(func(st *state) {
		if idx := findIndex(st.items, field, value); idx >= 0 {
			out, ok = st.items[idx], true
		}
	})
	return out, ok
}

// DeleteElement removes every entry whose field equals value.
func (s *Store) DeleteElement(value any, field string) {
	if field == "" {
		field = "id"
	}
	s.commit("deleteElement", func(st *state) bool {
		if findIndex(st.items, field, value) < 0 {
			return false
		}
		next := make([]Record, 0, len(st.items)-1)
		for _, e := range st.items {
			if !deep.Equal(e[field], value) {
				next = append(next, e)
			}
		}
		st.items = next
		return true
	})
}

// UpdateField sets the dotted field on the collection entry found by findBy
// and, whenever a focused item exists, on the focused item as well.
func (s *Store) UpdateField(id any, field string, value any, findBy string) {
	s.updateField("updateField", FieldUpdate{
		Slots:  SlotCollection | SlotItem,
		ID:     id,
		Field:  field,
		Value:  value,
		FindBy: findBy,
	})
}

// UpdateFieldByName is UpdateField with an explicit choice of slots.
func (s *Store) UpdateFieldByName(u FieldUpdate) {
	s.updateField("updateFieldByName", u)
}

func (s *Store) updateField(action string, u FieldUpdate) {
	s.commit(action, func(st *state) bool {
		changed := false
		if u.Slots&SlotCollection != 0 {
			if idx := findIndex(st.items, u.FindBy, u.ID); idx >= 0 {
				next := cloneItems(st.items)
				next[idx] = deep.Set(next[idx], u.Field, u.Value)
				st.items = next
				changed = true
			}
		}
		if u.Slots&SlotItem != 0 && st.item != nil {
			st.item = deep.Set(st.item, u.Field, u.Value)
			changed = true
		}
		return changed
	})
}

// --- Focused item ---

// UpdateItem replaces the focused item unless the content is unchanged.
func (s *Store) UpdateItem(item Record) {
	s.commit("updateItem", func(st *state) bool {
		if sameContent(st.item, item) {
			return false
		}
		st.item = item
		return true
	})
}

// SetExtra stores side data under name.
func (s *Store) SetExtra(name string, raw json.RawMessage) {
	s.commit("setExtra", func(st *state) bool {
		next := make(map[string]json.RawMessage, len(st.extra)+1)
		for k, v := range st.extra {
			next[k] = v
		}
		next[name] = raw
		st.extra = next
		return true
	})
}

// --- Query filter ---

// UpdateQueryFilter replaces the filter and persists it.
func (s *Store) UpdateQueryFilter(filter Filter) {
	s.commit("updateQueryFilter", func(st *state) bool {
		s.applyQueryFilter(st, pruneFilter(filter))
		return true
	})
}

// ResetQueryFilter clears every filter key.
func (s *Store) ResetQueryFilter() {
	s.UpdateQueryFilter(Filter{})
}

// applyQueryFilter must run under the lock so the persisted copy follows
// the same order as the in-memory one.
func (s *Store) applyQueryFilter(st *state, filter Filter) {
	st.queryFilter = filter
	if err := s.storage.Set(s.filterKey(), map[string]any(filter)); err != nil {
		level.Error(s.logger).Log("op", "persistQueryFilter", "key", s.filterKey(), "error", err)
	}
}

// ToggleQueryFilter turns key on (set to value, default 1) or off, then reloads
// the first page together with the Tree hook. opt.SetTimer replaces the
// immediate reload with a single-flight debounced one, even when
// opt.SkipUpdate is set; opt.SkipUpdate alone reloads nothing.
func (s *Store) ToggleQueryFilter(ctx context.Context, key string, value any, opt ToggleOptions) error {
	if value == nil {
		value = 1
	}
	s.commit("toggleQueryFilter", func(st *state) bool {
		next := cloneFilter(st.queryFilter)
		if opt.SetValue || !truthy(next[key]) {
			next[key] = value
		} else {
			delete(next, key)
		}
		s.applyQueryFilter(st, pruneFilter(next))
		return true
	})

	if opt.ViewElement != "" {
		s.ToggleView(opt.ViewElement, false)
	}
	if opt.Toggle != nil {
		opt.Toggle(value)
	}

	if opt.SetTimer {
		s.timers.schedule(timerDebounce, s.debounceDelay, func() {
			if err := s.reload(context.Background()); err != nil {
				level.Error(s.logger).Log("op", "debouncedReload", "error", err)
			}
		})
		return nil
	}
	if opt.SkipUpdate {
		return nil
	}
	return s.reload(ctx)
}

// reload fetches the first page under the current filter. A filter change
// invalidates whatever pages LoadMore appended, so the offset restarts at 0.
func (s *Store) reload(ctx context.Context) error {
	_, err := s.Refresh(ctx)
	if s.hooks.Tree != nil {
		err = errors.Join(err, s.hooks.Tree(ctx))
	}
	return err
}

func truthy(v any) bool {
	if deep.IsEmpty(v) {
		return false
	}
	return !deep.Equal(v, 0)
}

// --- Pagination ---

// UpdateSort sets the sort expression sent with loads.
func (s *Store) UpdateSort(sort string) {
	s.commit("updateSort", func(st *state) bool {
		if st.sort == sort {
			return false
		}
		st.sort = sort
		return true
	})
}

// UpdateOffset sets the page offset.
func (s *Store) UpdateOffset(offset int) {
	s.commit("updateOffset", func(st *state) bool {
		if st.offset == offset {
			return false
		}
		st.offset = offset
		return true
	})
}

// UpdateLimit sets the page size. Non-positive values are ignored.
func (s *Store) UpdateLimit(limit int) {
	s.commit("updateLimit", func(st *state) bool {
		if limit <= 0 || st.limit == limit {
			return false
		}
		st.limit = limit
		return true
	})
}

// UpdateTotal sets the server-side match count of the last replacing load.
func (s *Store) UpdateTotal(total int) {
	s.commit("updateTotal", func(st *state) bool {
		st.total = total
		return true
	})
}

// UpdateTotalAppend records how many rows the last appended page carried.
func (s *Store) UpdateTotalAppend(total int) {
	s.commit("updateTotalAppend", func(st *state) bool {
		st.totalAppend = total
		return true
	})
}

// --- Flags ---

// UpdateSaved raises the Save Status flag for key, or clears it when val is false.
func (s *Store) UpdateSaved(key string, val bool) {
	s.commit("updateSaved", func(st *state) bool {
		if st.saved[key] == val {
			return false
		}
		next := make(map[string]bool, len(st.saved)+1)
		for k, v := range st.saved {
			next[k] = v
		}
		if val {
			next[key] = true
		} else {
			delete(next, key)
		}
		st.saved = next
		return true
	})
}

// UpdateInsertStatus sets the inserted flag.
func (s *Store) UpdateInsertStatus(val bool) {
	s.commit("updateInsertStatus", func(st *state) bool {
		if st.insertStatus == val {
			return false
		}
		st.insertStatus = val
		return true
	})
}

// ToggleView sets view[key] to true when value is true, otherwise flips it.
func (s *Store) ToggleView(key string, value bool) {
	s.commit("toggleView", func(st *state) bool {
		next := make(map[string]bool, len(st.view)+1)
		for k, v := range st.view {
			next[k] = v
		}
		next[key] = value || !st.view[key]
		st.view = next
		return true
	})
}
