package api

import "time"

// DefaultBaseURL is used when the config does not name a server.
const DefaultBaseURL = "http://localhost:8000"

// NewDefaultClient builds a client pointed at the default API URL.
func NewDefaultClient(apiKey string, timeout ...time.Duration) *Client {
	return NewClient(DefaultBaseURL, apiKey, timeout...)
}
