// Package cmdb is a REST client for NetBox-style CMDB backends: list
// endpoints return paginated {count, results} envelopes, objects are
// addressed by numeric id, and deletion goes through a name lookup
// first.
package cmdb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/automateyournetwork/netagent/pkg/config"
	"github.com/automateyournetwork/netagent/pkg/httpclient"
	"github.com/automateyournetwork/netagent/pkg/logger"
)

// BackendError reports a failed CMDB call: transport failure or a
// non-2xx response.
type BackendError struct {
	Operation  string
	Endpoint   string
	StatusCode int
	Message    string
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("cmdb: %s %s failed with status %d: %s", e.Operation, e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("cmdb: %s %s failed: %s", e.Operation, e.Endpoint, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// ListResponse is the paginated envelope every list endpoint returns.
type ListResponse struct {
	Count   int                      `json:"count"`
	Results []map[string]interface{} `json:"results"`
}

// Client talks to one CMDB instance with token authentication.
type Client struct {
	baseURL string
	token   string
	http    *httpclient.Client
}

// NewClient builds a CMDB client from configuration.
func NewClient(cfg config.CMDBConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
		),
	}
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body interface{}) (*http.Request, error) {
	u := c.baseURL + "/" + strings.Trim(endpoint, "/") + "/"
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(op string, req *http.Request) ([]byte, int, error) {
	// Non-2xx responses come back with both a response and an error, so
	// the response has to be inspected before the error.
	resp, err := c.http.Do(req)
	if resp != nil {
		defer resp.Body.Close()

		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, resp.StatusCode, &BackendError{Operation: op, Endpoint: req.URL.Path, StatusCode: resp.StatusCode, Message: "failed to read response", Err: readErr}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, resp.StatusCode, &BackendError{Operation: op, Endpoint: req.URL.Path, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		}
		return data, resp.StatusCode, nil
	}
	return nil, 0, &BackendError{Operation: op, Endpoint: req.URL.Path, Message: "request failed", Err: err}
}

// Get lists objects at an endpoint, optionally filtered. Config-style
// text fields in the results keep their embedded newlines intact so
// multi-line payloads read naturally downstream.
func (c *Client) Get(ctx context.Context, endpoint string, filters map[string]string) (*ListResponse, error) {
	query := url.Values{}
	for k, v := range filters {
		query.Set(k, v)
	}

	req, err := c.newRequest(ctx, http.MethodGet, endpoint, query, nil)
	if err != nil {
		return nil, &BackendError{Operation: "get", Endpoint: endpoint, Message: "failed to build request", Err: err}
	}

	data, _, err := c.do("get", req)
	if err != nil {
		return nil, err
	}

	var list ListResponse
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, &BackendError{Operation: "get", Endpoint: endpoint, Message: "failed to decode response", Err: err}
	}
	normalizeText(list.Results)
	return &list, nil
}

// Create posts a new object. The created object is returned as the
// backend rendered it.
func (c *Client) Create(ctx context.Context, endpoint string, payload map[string]interface{}) (map[string]interface{}, error) {
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, nil, payload)
	if err != nil {
		return nil, &BackendError{Operation: "create", Endpoint: endpoint, Message: "failed to build request", Err: err}
	}

	data, _, err := c.do("create", req)
	if err != nil {
		return nil, err
	}

	var created map[string]interface{}
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, &BackendError{Operation: "create", Endpoint: endpoint, Message: "failed to decode response", Err: err}
	}
	logger.Info("CMDB object created", "endpoint", endpoint, "id", created["id"])
	return created, nil
}

// Delete removes the object with the given name from an endpoint. The
// backend has no delete-by-name, so the name is first resolved to an id
// through the list endpoint. When the lookup matches nothing, no DELETE
// is issued and the call fails.
func (c *Client) Delete(ctx context.Context, endpoint, name string) error {
	list, err := c.Get(ctx, endpoint, map[string]string{"name": name})
	if err != nil {
		return err
	}
	if list.Count == 0 || len(list.Results) == 0 {
		return &BackendError{Operation: "delete", Endpoint: endpoint, Message: fmt.Sprintf("no object named %q", name)}
	}

	id, ok := objectID(list.Results[0])
	if !ok {
		return &BackendError{Operation: "delete", Endpoint: endpoint, Message: fmt.Sprintf("object %q has no usable id", name)}
	}

	req, err := c.newRequest(ctx, http.MethodDelete, fmt.Sprintf("%s/%d", strings.Trim(endpoint, "/"), id), nil, nil)
	if err != nil {
		return &BackendError{Operation: "delete", Endpoint: endpoint, Message: "failed to build request", Err: err}
	}

	if _, _, err := c.do("delete", req); err != nil {
		return err
	}
	logger.Info("CMDB object deleted", "endpoint", endpoint, "name", name, "id", id)
	return nil
}

func objectID(obj map[string]interface{}) (int64, bool) {
	raw, ok := obj["id"]
	if !ok {
		return 0, false
	}
	switch v := raw.(type) {
	case float64:
		return int64(v), true
	case json.Number:
		id, err := v.Int64()
		return id, err == nil
	default:
		return 0, false
	}
}

// normalizeText converts escaped newline sequences in string fields to
// real newlines. Backends that store device configs as text frequently
// double-escape them on the way out.
func normalizeText(results []map[string]interface{}) {
	for _, obj := range results {
		for k, v := range obj {
			if s, ok := v.(string); ok && strings.Contains(s, `\n`) {
				obj[k] = strings.ReplaceAll(s, `\n`, "\n")
			}
		}
	}
}
