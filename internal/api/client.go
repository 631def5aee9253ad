// Package api is the client for the chat server's REST endpoints: auth,
// user search, the contacts list and message history.
package api

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

	"github.com/c-pro/geche"
)

// Client talks to the REST API with an optional bearer token.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	search     geche.Geche[string, []User]
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer credential sent on authenticated calls.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithTimeout sets the per-request timeout of the default http.Client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithSearchCache caches search results per query.
func WithSearchCache(cache geche.Geche[string, []User]) Option {
	return func(c *Client) { c.search = cache }
}

// NewSearchCache returns a TTL cache suitable for WithSearchCache. Expired
// entries are swept until ctx is done.
func NewSearchCache(ctx context.Context, ttl time.Duration) geche.Geche[string, []User] {
	return geche.NewMapTTLCache[string, []User](ctx, ttl, ttl)
}

// New creates a client for the server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (b errorBody) text() string {
	if b.Error != "" {
		return b.Error
	}
	return b.Message
}

// statusError carries a non-2xx response up to the caller that classifies it.
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string {
	if e.msg == "" {
		return http.StatusText(e.status)
	}
	return e.msg
}

// doRequest performs a request and decodes a JSON response into out (if non-nil).
func (c *Client) doRequest(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var eb errorBody
		_ = json.Unmarshal(respBody, &eb)
		return &statusError{status: resp.StatusCode, msg: eb.text()}
	}
	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func fetchErr(op string, err error) error {
	fe := &FetchError{Op: op, Err: err}
	var se *statusError
	if errors.As(err, &se) {
		fe.Status = se.status
	}
	return fe
}

func pathEscape(parts ...string) string {
	escaped := make([]string, len(parts))
	for i, p := range parts {
		escaped[i] = url.PathEscape(p)
	}
	return strings.Join(escaped, "/")
}
