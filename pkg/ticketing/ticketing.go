// Package ticketing is a REST client for ServiceNow-style ITSM
// backends. Records live in tables (incident, problem), are addressed
// externally by number (INC0010001) and internally by sys_id, and state
// changes on problems must walk the state model one step at a time.
package ticketing

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

// Problem state model. Closing a problem walks these in order; the
// backend rejects jumps.
const (
	StateInProgress = "3"
	StateResolved   = "6"
	StateClosed     = "107"
)

// BackendError reports a failed ticketing call.
type BackendError struct {
	Operation  string
	Table      string
	StatusCode int
	Message    string
	Err        error
}

func (e *BackendError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("ticketing: %s on %s failed with status %d: %s", e.Operation, e.Table, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("ticketing: %s on %s failed: %s", e.Operation, e.Table, e.Message)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Record is one row from a table, as the backend rendered it.
type Record map[string]interface{}

type listEnvelope struct {
	Result []Record `json:"result"`
}

type singleEnvelope struct {
	Result Record `json:"result"`
}

// Client talks to one ticketing instance with basic authentication.
type Client struct {
	baseURL  string
	username string
	password string
	http     *httpclient.Client
}

// NewClient builds a ticketing client from configuration.
func NewClient(cfg config.TicketingConfig) *Client {
	timeout := time.Duration(cfg.Timeout) * time.Second
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: timeout}),
		),
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body interface{}) (*http.Request, error) {
	u := c.baseURL + "/api/now/table/" + strings.Trim(path, "/")
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
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(op, table string, req *http.Request) ([]byte, error) {
	// Non-2xx responses come back with both a response and an error, so
	// the response has to be inspected before the error.
	resp, err := c.http.Do(req)
	if resp != nil {
		defer resp.Body.Close()

		data, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return nil, &BackendError{Operation: op, Table: table, StatusCode: resp.StatusCode, Message: "failed to read response", Err: readErr}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &BackendError{Operation: op, Table: table, StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(data))}
		}
		return data, nil
	}
	return nil, &BackendError{Operation: op, Table: table, Message: "request failed", Err: err}
}

// GetRecords lists records from a table with an optional encoded query
// (sysparm_query syntax).
func (c *Client) GetRecords(ctx context.Context, table, query string) ([]Record, error) {
	params := url.Values{}
	if query != "" {
		params.Set("sysparm_query", query)
	}

	req, err := c.newRequest(ctx, http.MethodGet, table, params, nil)
	if err != nil {
		return nil, &BackendError{Operation: "get", Table: table, Message: "failed to build request", Err: err}
	}

	data, err := c.do("get", table, req)
	if err != nil {
		return nil, err
	}

	var envelope listEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, &BackendError{Operation: "get", Table: table, Message: "failed to decode response", Err: err}
	}
	return envelope.Result, nil
}

// CreateRecord inserts a record into a table.
func (c *Client) CreateRecord(ctx context.Context, table string, fields map[string]interface{}) (Record, error) {
	req, err := c.newRequest(ctx, http.MethodPost, table, nil, fields)
	if err != nil {
		return nil, &BackendError{Operation: "create", Table: table, Message: "failed to build request", Err: err}
	}

	data, err := c.do("create", table, req)
	if err != nil {
		return nil, err
	}

	var envelope singleEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, &BackendError{Operation: "create", Table: table, Message: "failed to decode response", Err: err}
	}
	logger.Info("Ticket created", "table", table, "number", envelope.Result["number"])
	return envelope.Result, nil
}

// UpdateRecord patches a record addressed by its external number. The
// number is resolved to a sys_id through the table first.
func (c *Client) UpdateRecord(ctx context.Context, table, number string, fields map[string]interface{}) (Record, error) {
	sysID, err := c.resolveSysID(ctx, table, number)
	if err != nil {
		return nil, err
	}
	return c.patch(ctx, table, sysID, fields)
}

// TransitionProblem drives a problem record from its open state to
// closed: In Progress, then Resolved, then Closed, one PATCH per step.
// A failed step surfaces immediately and earlier steps are not rolled
// back; the record is left wherever the last successful step put it.
func (c *Client) TransitionProblem(ctx context.Context, number, notes string) error {
	sysID, err := c.resolveSysID(ctx, "problem", number)
	if err != nil {
		return err
	}

	steps := []map[string]interface{}{
		{"problem_state": StateInProgress, "state": StateInProgress},
		{"problem_state": StateResolved, "state": StateResolved, "resolution_code": "fix_applied", "fix_notes": notes},
		{"problem_state": StateClosed, "state": StateClosed},
	}

	for _, fields := range steps {
		if err := ctx.Err(); err != nil {
			return &BackendError{Operation: "transition", Table: "problem", Message: "interrupted", Err: err}
		}
		if _, err := c.patch(ctx, "problem", sysID, fields); err != nil {
			return err
		}
		logger.Debug("Problem state advanced", "number", number, "state", fields["state"])
	}
	logger.Info("Problem closed", "number", number)
	return nil
}

func (c *Client) resolveSysID(ctx context.Context, table, number string) (string, error) {
	records, err := c.GetRecords(ctx, table, "number="+number)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", &BackendError{Operation: "lookup", Table: table, Message: fmt.Sprintf("no record numbered %q", number)}
	}
	sysID, _ := records[0]["sys_id"].(string)
	if sysID == "" {
		return "", &BackendError{Operation: "lookup", Table: table, Message: fmt.Sprintf("record %q has no sys_id", number)}
	}
	return sysID, nil
}

func (c *Client) patch(ctx context.Context, table, sysID string, fields map[string]interface{}) (Record, error) {
	req, err := c.newRequest(ctx, http.MethodPatch, table+"/"+sysID, nil, fields)
	if err != nil {
		return nil, &BackendError{Operation: "update", Table: table, Message: "failed to build request", Err: err}
	}

	data, err := c.do("update", table, req)
	if err != nil {
		return nil, err
	}

	var envelope singleEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, &BackendError{Operation: "update", Table: table, Message: "failed to decode response", Err: err}
	}
	return envelope.Result, nil
}
