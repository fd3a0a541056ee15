package store

import (
	"context"
	"fmt"

	"github.com/gravitrone/storesync/internal/api"
	"github.com/gravitrone/storesync/internal/deep"
)

// AddElement appends el to the array at arrayField inside the container
// record and saves the new array remotely. Elements are matched by integer
// id; an element that is already present is left alone and nothing is saved.
// Only SlotItem can hold nested arrays.
func (s *Store) AddElement(ctx context.Context, el Record, container Slot, arrayField string) (*api.Response, error) {
	if container != SlotItem {
		return nil, fmt.Errorf("%w: slot %d", ErrNoContainer, container)
	}
	el = deep.CloneMap(el)

	var next []any
	var err error
	s.commit("addElement", func(st *state) bool {
		if st.item == nil {
			err = ErrNoContainer
			return false
		}
		arr := nestedArray(st.item, arrayField)
		if indexByIntID(arr, el["id"]) >= 0 {
			return false
		}
		next = make([]any, 0, len(arr)+1)
		next = append(next, arr...)
		next = append(next, el)
		st.item = deep.Set(st.item, arrayField, next)
		return true
	})
	if err != nil || next == nil {
		return nil, err
	}
	return s.Save(ctx, Record{arrayField: next}, nil)
}

// AddSearchElement adds {id, title} of search result idx (0 meaning the
// current selection) via AddElement.
func (s *Store) AddSearchElement(ctx context.Context, idx int, container Slot, arrayField string) (*api.Response, error) {
	el, err := s.searchElement(idx)
	if err != nil {
		return nil, err
	}
	return s.AddElement(ctx, el, container, arrayField)
}

// RemoveElement drops the element with the given integer id from the array at
// arrayField and saves the new array remotely.
func (s *Store) RemoveElement(ctx context.Context, id any, container Slot, arrayField string) (*api.Response, error) {
	if container != SlotItem {
		return nil, fmt.Errorf("%w: slot %d", ErrNoContainer, container)
	}
	elID, ok := deep.IntID(id)
	if !ok {
		return nil, nil
	}

	var next []any
	var err error
	s.commit("removeElement", func(st *state) bool {
		if st.item == nil {
			err = ErrNoContainer
			return false
		}
		arr := nestedArray(st.item, arrayField)
		if indexByIntID(arr, elID) < 0 {
			return false
		}
		next = make([]any, 0, len(arr))
		for _, e := range arr {
			if n, ok := elementID(e); ok && n == elID {
				continue
			}
			next = append(next, e)
		}
		st.item = deep.Set(st.item, arrayField, next)
		return true
	})
	if err != nil || next == nil {
		return nil, err
	}
	return s.Save(ctx, Record{arrayField: next}, nil)
}

func nestedArray(item Record, path string) []any {
	v, ok := deep.Get(item, path)
	if !ok {
		return nil
	}
	switch arr := v.(type) {
	case []any:
		return arr
	case []Record:
		out := make([]any, len(arr))
		for i, r := range arr {
			out[i] = r
		}
		return out
	}
	return nil
}

func elementID(e any) (int64, bool) {
	m, ok := e.(map[string]any)
	if !ok {
		return 0, false
	}
	return deep.IntID(m["id"])
}

func indexByIntID(arr []any, id any) int {
	want, ok := deep.IntID(id)
	if !ok {
		return -1
	}
	for i, e := range arr {
		if n, ok := elementID(e); ok && n == want {
			return i
		}
	}
	return -1
}
