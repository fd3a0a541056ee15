package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
)

// Client wraps HTTP calls to a CRUD-style REST API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     log.Logger

	mu        sync.RWMutex
	listeners []func(FetchEvent)
}

// NewClient creates a new API client.
func NewClient(baseURL, apiKey string, timeout ...time.Duration) *Client {
	httpTimeout := 30 * time.Second
	if len(timeout) > 0 && timeout[0] > 0 {
		httpTimeout = timeout[0]
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: httpTimeout,
		},
		logger: log.NewNopLogger(),
	}
}

// SetAPIKey updates the bearer token used for subsequent requests.
func (c *Client) SetAPIKey(apiKey string) {
	c.apiKey = apiKey
}

// SetLogger replaces the client's logger.
func (c *Client) SetLogger(l log.Logger) {
	if l == nil {
		l = log.NewNopLogger()
	}
	c.logger = l
}

// WithTimeout clones the client with a different HTTP timeout.
func (c *Client) WithTimeout(timeout time.Duration) *Client {
	clone := NewClient(c.baseURL, c.apiKey, timeout)
	clone.logger = c.logger
	return clone
}

// OnFetch registers a listener that receives an event for every published fetch.
func (c *Client) OnFetch(fn func(FetchEvent)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Fetch performs one HTTP call. Reads (GET) encode params as a query string,
// writes send them as a JSON body. A response is returned for every status the
// server produces; the error is reserved for transport and decoding failures.
func (c *Client) Fetch(ctx context.Context, path string, opts FetchOptions, params map[string]any) (*Response, error) {
	method := opts.Method
	if method == "" {
		method = http.MethodGet
	}

	target := c.resolve(path)
	var body any
	if method == http.MethodGet {
		target = buildQuery(target, params)
	} else if params != nil {
		body = params
	}

	requestID := uuid.NewString()
	start := time.Now()
	status, raw, err := c.do(ctx, method, target, requestID, body)
	elapsed := time.Since(start)
	stats.observe(method, status, elapsed)

	if opts.Publish {
		c.publish(FetchEvent{
			RequestID: requestID,
			Method:    method,
			URL:       target,
			Status:    status,
			Duration:  elapsed,
			Err:       err,
		})
	}
	if err != nil {
		level.Warn(c.logger).Log("op", "fetch", "method", method, "url", target, "request_id", requestID, "error", err)
		return nil, err
	}

	resp, err := decodeResponse(status, raw)
	if err != nil {
		return nil, err
	}
	level.Debug(c.logger).Log("op", "fetch", "method", method, "url", target, "request_id", requestID, "status", status, "elapsed", elapsed)
	return resp, nil
}

// do executes an HTTP request and returns the status and raw response body.
func (c *Client) do(ctx context.Context, method, target, requestID string, body any) (int, []byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

func (c *Client) resolve(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

func (c *Client) publish(ev FetchEvent) {
	c.mu.RLock()
	listeners := append([]func(FetchEvent){}, c.listeners...)
	c.mu.RUnlock()
	for _, fn := range listeners {
		fn(ev)
	}
}

// decodeResponse splits a JSON envelope into data/total/included plus every
// top-level field. Non-JSON bodies yield a response with only Status set.
func decodeResponse(status int, body []byte) (*Response, error) {
	resp := &Response{Status: status}
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return resp, nil
	}
	if trimmed[0] != '{' {
		if trimmed[0] == '[' {
			resp.Data = json.RawMessage(trimmed)
		}
		return resp, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		if status >= 400 {
			return resp, nil
		}
		return nil, fmt.Errorf("decode response: %w", err)
	}
	resp.Fields = fields
	resp.Data = fields["data"]

	if raw, ok := fields["total"]; ok {
		var total float64
		if err := json.Unmarshal(raw, &total); err == nil {
			resp.Total = int(total)
		}
	}
	if raw, ok := fields["included"]; ok {
		var included map[string]json.RawMessage
		if err := json.Unmarshal(raw, &included); err == nil {
			resp.Included = included
		}
	}
	if status >= 400 {
		if msg, ok := extractAPIErrorBody(trimmed); ok {
			resp.Message = msg
		}
	}
	return resp, nil
}

func extractAPIErrorBody(body []byte) (string, bool) {
	if len(body) == 0 {
		return "", false
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", false
	}

	if msg, ok := parseErrorValue(payload["error"]); ok {
		return msg, true
	}
	if msg, ok := parseErrorValue(payload["detail"]); ok {
		return msg, true
	}
	if msg, ok := parseErrorValue(payload["message"]); ok {
		return msg, true
	}
	return "", false
}

func parseErrorValue(raw any) (string, bool) {
	switch value := raw.(type) {
	case string:
		msg := strings.TrimSpace(value)
		if msg == "" {
			return "", false
		}
		return msg, true
	case map[string]any:
		if nested, ok := parseErrorValue(value["error"]); ok {
			return nested, true
		}
		code, _ := value["code"].(string)
		message, _ := value["message"].(string)
		return formatAPIError(code, message)
	}
	return "", false
}

func formatAPIError(code, message string) (string, bool) {
	code = strings.TrimSpace(code)
	message = strings.TrimSpace(message)
	switch {
	case code != "" && message != "":
		return fmt.Sprintf("%s: %s", code, message), true
	case code != "":
		return code, true
	case message != "":
		return message, true
	default:
		return "", false
	}
}
