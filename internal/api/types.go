package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// FetchOptions controls a single Fetch call.
type FetchOptions struct {
	// Publish announces the call to OnFetch listeners.
	Publish bool
	// Method is one of GET, POST, PATCH, DELETE. Empty means GET.
	Method string
}

// FetchEvent describes one published fetch.
type FetchEvent struct {
	RequestID string
	Method    string
	URL       string
	Status    int
	Duration  time.Duration
	Err       error
}

// --- Response Envelope ---

// Response is the decoded result of one API call.
type Response struct {
	Status   int
	Data     json.RawMessage
	Total    int
	Included map[string]json.RawMessage
	// Fields holds every top-level key of the JSON envelope.
	Fields map[string]json.RawMessage
	// Message carries the server's error text for statuses >= 400.
	Message string
}

// OK reports whether the status is below 400.
func (r *Response) OK() bool {
	return r != nil && r.Status < 400
}

// HasData reports whether the envelope carried a non-null data field.
func (r *Response) HasData() bool {
	if r == nil {
		return false
	}
	d := bytes.TrimSpace(r.Data)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

// DataIsSequence reports whether data is a JSON array.
func (r *Response) DataIsSequence() bool {
	if r == nil {
		return false
	}
	d := bytes.TrimSpace(r.Data)
	return len(d) > 0 && d[0] == '['
}

// DecodeData unmarshals the data field into v.
func (r *Response) DecodeData(v any) error {
	if !r.HasData() {
		return nil
	}
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// Field returns a top-level envelope field, falling back to included[name].
func (r *Response) Field(name string) (json.RawMessage, bool) {
	if r == nil {
		return nil, false
	}
	if raw, ok := r.Fields[name]; ok && len(raw) > 0 {
		return raw, true
	}
	if raw, ok := r.Included[name]; ok && len(raw) > 0 {
		return raw, true
	}
	return nil, false
}
