package remotestore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"satchel/internal/storage"
)

// Client talks to the authoritative store over HTTP. Records live under
// /v1/{table} and /v1/{table}/{id}; every response body is JSON.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

var (
	_ storage.Provider         = (*Client)(nil)
	_ storage.ConnectionTester = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// New creates a remote store client.
func New(baseURL, apiKey string, timeout time.Duration, opts ...Option) (*Client, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("remote base url required")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Name implements storage.Provider.
func (c *Client) Name() string { return storage.ProviderRemote }

// GetAll fetches every record in a logical table.
func (c *Client) GetAll(ctx context.Context, table string) ([]storage.Record, error) {
	var raw []map[string]any
	if err := c.request(ctx, "get all", table, http.MethodGet, "/v1/"+url.PathEscape(table), nil, &raw); err != nil {
		return nil, err
	}

	records := make([]storage.Record, 0, len(raw))
	for _, payload := range raw {
		rec, err := storage.FromPayload(table, payload)
		if err != nil {
			// A response the server itself mangled is a transport-class
			// failure, not a caller mistake.
			return nil, storage.Wrap(storage.ErrNetwork, table, "get all", "malformed record in response", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

// Get fetches a single record by id.
func (c *Client) Get(ctx context.Context, table, id string) (storage.Record, error) {
	var raw map[string]any
	if err := c.request(ctx, "get", table, http.MethodGet, recordPath(table, id), nil, &raw); err != nil {
		return storage.Record{}, err
	}
	rec, err := storage.FromPayload(table, raw)
	if err != nil {
		return storage.Record{}, storage.Wrap(storage.ErrNetwork, table, "get", "malformed record in response", err)
	}
	return rec, nil
}

// Save upserts a record by id. PUT keeps replays idempotent: re-sending a
// create after a lost acknowledgement overwrites the same row instead of
// manufacturing a duplicate.
func (c *Client) Save(ctx context.Context, rec storage.Record) (storage.Record, error) {
	if rec.Table == "" || rec.ID == "" {
		return storage.Record{}, storage.Wrap(storage.ErrValidation, rec.Table, "save", "record requires table and id", nil)
	}

	var raw map[string]any
	if err := c.request(ctx, "save", rec.Table, http.MethodPut, recordPath(rec.Table, rec.ID), rec.Payload(), &raw); err != nil {
		return storage.Record{}, err
	}
	stored, err := storage.FromPayload(rec.Table, raw)
	if err != nil {
		return storage.Record{}, storage.Wrap(storage.ErrNetwork, rec.Table, "save", "malformed record in response", err)
	}
	return stored, nil
}

// Update applies a partial mutation server-side and returns the merged record.
func (c *Client) Update(ctx context.Context, table, id string, partial map[string]any) (storage.Record, error) {
	var raw map[string]any
	if err := c.request(ctx, "update", table, http.MethodPatch, recordPath(table, id), partial, &raw); err != nil {
		return storage.Record{}, err
	}
	rec, err := storage.FromPayload(table, raw)
	if err != nil {
		return storage.Record{}, storage.Wrap(storage.ErrNetwork, table, "update", "malformed record in response", err)
	}
	return rec, nil
}

// Delete removes a record. A record the remote never had (or already dropped)
// counts as deleted so queued deletes replay cleanly.
func (c *Client) Delete(ctx context.Context, table, id string) error {
	err := c.request(ctx, "delete", table, http.MethodDelete, recordPath(table, id), nil, nil)
	if storage.IsNotFound(err) {
		return nil
	}
	return err
}

// TestConnection probes the remote health endpoint.
func (c *Client) TestConnection(ctx context.Context) error {
	return c.request(ctx, "probe", "health", http.MethodGet, "/v1/health", nil, nil)
}

// Online reports whether the remote currently answers its health probe.
func (c *Client) Online(ctx context.Context) bool {
	return c.TestConnection(ctx) == nil
}

func recordPath(table, id string) string {
	return "/v1/" + url.PathEscape(table) + "/" + url.PathEscape(id)
}

func (c *Client) request(ctx context.Context, op, table, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return storage.Wrap(storage.ErrValidation, table, op, "encode request", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return storage.Wrap(storage.ErrNetwork, table, op, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return storage.Wrap(storage.ErrNetwork, table, op, "execute request", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return c.statusError(op, table, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return storage.Wrap(storage.ErrNetwork, table, op, "decode response", err)
	}
	return nil
}

func (c *Client) statusError(op, table string, resp *http.Response) error {
	message := fmt.Sprintf("remote returned %d", resp.StatusCode)
	if snippet := readSnippet(resp.Body); snippet != "" {
		message = fmt.Sprintf("remote returned %d: %s", resp.StatusCode, snippet)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return storage.Wrap(storage.ErrAuthentication, table, op, message, nil)
	case resp.StatusCode == http.StatusNotFound:
		return storage.Wrap(storage.ErrNotFound, table, op, message, nil)
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		return storage.Wrap(storage.ErrValidation, table, op, message, nil)
	case resp.StatusCode >= 500:
		return storage.Wrap(storage.ErrNetwork, table, op, message, nil)
	default:
		// Odd but non-transient statuses (409, 405, 3xx without redirect
		// handling) stay generic so they never consume the fallback path
		// or the queue retry budget.
		return storage.Wrap(storage.ErrStorage, table, op, message, nil)
	}
}

func readSnippet(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, 512))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
