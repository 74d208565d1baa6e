// Package rest implements the notes gateway against a PostgREST-compatible
// table API, the interface exposed by hosted Postgres backends such as Supabase.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/starford/notepane/internal/apperr"
	"github.com/starford/notepane/internal/models"
)

const defaultTimeout = 10 * time.Second

// Options configures a Client.
type Options struct {
	BaseURL string
	APIKey  string
	Table   string
	Timeout time.Duration
	// RateLimit caps outbound requests per second; zero disables limiting.
	RateLimit float64
	Burst     int
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client talks to the notes table over HTTP.
//
// Client instances are safe for concurrent use by multiple goroutines.
type Client struct {
	baseURL    string
	apiKey     string
	table      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a Client.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("rest: base url is required")
	}
	if opts.Table == "" {
		opts.Table = "notes"
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		apiKey:     opts.APIKey,
		table:      opts.Table,
		httpClient: hc,
		limiter:    rate.NewLimiter(limit, burst),
	}, nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// List fetches every row ordered by updated_at descending.
func (c *Client) List(ctx context.Context) ([]models.Note, error) {
	q := url.Values{}
	q.Set("select", "*")
	q.Set("order", "updated_at.desc")

	var rows []row
	if err := c.do(ctx, http.MethodGet, q, nil, &rows); err != nil {
		return nil, fmt.Errorf("rest: list: %w", err)
	}
	return toNotes(rows)
}

// Insert creates a row and returns the stored representation.
func (c *Client) Insert(ctx context.Context, title, content string) (models.Note, error) {
	body := []map[string]string{{"title": title, "content": content}}
	var rows []row
	if err := c.do(ctx, http.MethodPost, nil, body, &rows); err != nil {
		return models.Note{}, fmt.Errorf("rest: insert: %w", err)
	}
	if len(rows) == 0 {
		return models.Note{}, fmt.Errorf("rest: insert: empty representation")
	}
	return rows[0].toNote()
}

// Update patches the row matching id. The table is expected to bump
// updated_at itself (column default plus an update trigger).
func (c *Client) Update(ctx context.Context, id, title, content string) error {
	var rows []row
	body := map[string]string{"title": title, "content": content}
	if err := c.do(ctx, http.MethodPatch, eqID(id), body, &rows); err != nil {
		return fmt.Errorf("rest: update: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("rest: update %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

// Delete removes the row matching id.
func (c *Client) Delete(ctx context.Context, id string) error {
	var rows []row
	if err := c.do(ctx, http.MethodDelete, eqID(id), nil, &rows); err != nil {
		return fmt.Errorf("rest: delete: %w", err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("rest: delete %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func eqID(id string) url.Values {
	q := url.Values{}
	q.Set("id", "eq."+id)
	return q
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Message)
}

// do performs a request against the table endpoint and decodes the JSON response into out.
func (c *Client) do(ctx context.Context, method string, query url.Values, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	endpoint := c.baseURL + "/rest/v1/" + url.PathEscape(c.table)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method != http.MethodGet {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode, Message: errorMessage(data)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// errorMessage extracts the PostgREST error message, falling back to the raw body.
func errorMessage(data []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(data, &e) == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(data))
}

type row struct {
	ID        json.RawMessage `json:"id"`
	Title     *string         `json:"title"`
	Content   *string         `json:"content"`
	UpdatedAt string          `json:"updated_at"`
}

func (r row) toNote() (models.Note, error) {
	id, err := rawID(r.ID)
	if err != nil {
		return models.Note{}, err
	}
	ts, err := parseTimestamp(r.UpdatedAt)
	if err != nil {
		return models.Note{}, fmt.Errorf("note %s: %w", id, err)
	}
	n := models.Note{ID: id, UpdatedAt: ts}
	if r.Title != nil {
		n.Title = *r.Title
	}
	if r.Content != nil {
		n.Content = *r.Content
	}
	return n, nil
}

func toNotes(rows []row) ([]models.Note, error) {
	out := make([]models.Note, 0, len(rows))
	for _, r := range rows {
		n, err := r.toNote()
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

// rawID accepts both string (uuid) and numeric (bigserial) primary keys.
func rawID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", fmt.Errorf("row without id")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("unsupported id %s", raw)
	}
	if _, err := strconv.ParseFloat(n.String(), 64); err != nil {
		return "", fmt.Errorf("unsupported id %s", raw)
	}
	return n.String(), nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
}

// parseTimestamp handles both timestamptz and timestamp column renderings.
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable updated_at %q", s)
}
