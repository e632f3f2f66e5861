// Package hospitalapi is a client for the external Hospital Directory API.
//
// Calls never interpret business outcomes: a non-2xx answer is returned as a
// Response with OK unset, and only transport failures (connection errors,
// timeouts, unreadable bodies) come back as errors.
package hospitalapi

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
)

// DefaultTimeout bounds a single API call when the caller configures none.
const DefaultTimeout = 10 * time.Second

// maxBodySize caps how much of a response body is read.
const maxBodySize = 1 << 20

// ErrMissingID is returned by Response.ID when the body has no usable id field.
var ErrMissingID = errors.New("API response did not include an id")

// NewHospital is the creation payload for POST /hospitals/.
type NewHospital struct {
	Name            string `json:"name"`
	Address         string `json:"address"`
	CreationBatchID string `json:"creationBatchId"`
	Phone           string `json:"phone,omitempty"`
}

// Response captures what the API answered.
type Response struct {
	OK         bool           // 2xx status
	StatusCode int            // HTTP status code
	Text       string         // raw body text
	Body       map[string]any // parsed JSON object, nil when the body is not one
	bodyErr    error          // why Body could not be parsed
}

// ID extracts the "id" field of a JSON object body, keeping its raw encoding
// so numeric and string ids round-trip unchanged.
func (r *Response) ID() (json.RawMessage, error) {
	if r.Body == nil {
		if r.bodyErr != nil {
			return nil, r.bodyErr
		}
		return nil, ErrMissingID
	}
	v, ok := r.Body["id"]
	if !ok || v == nil {
		return nil, ErrMissingID
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode id: %w", err)
	}
	return raw, nil
}

// TrimmedText returns the body text with surrounding whitespace removed.
func (r *Response) TrimmedText() string {
	return strings.TrimSpace(r.Text)
}

// Client talks to one Hospital Directory API deployment.
type Client struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a Client rooted at baseURL. Each call is bounded by timeout.
func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// CreateHospital posts one hospital record.
func (c *Client) CreateHospital(ctx context.Context, h NewHospital) (*Response, error) {
	payload, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("marshal hospital: %w", err)
	}
	return c.do(ctx, http.MethodPost, c.baseURL+"/hospitals/", payload)
}

// ActivateBatch activates every hospital created with the given batch id.
func (c *Client) ActivateBatch(ctx context.Context, batchID string) (*Response, error) {
	endpoint := c.baseURL + "/hospitals/batch/" + url.PathEscape(batchID) + "/activate"
	return c.do(ctx, http.MethodPatch, endpoint, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload []byte) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	r := &Response{
		OK:         resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
		Text:       string(data),
	}
	if len(bytes.TrimSpace(data)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&r.Body); err != nil {
			r.Body = nil
			r.bodyErr = fmt.Errorf("invalid JSON response: %w", err)
		}
	} else {
		r.bodyErr = fmt.Errorf("empty response body")
	}
	return r, nil
}
