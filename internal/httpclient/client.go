// Package httpclient talks to other replication nodes over HTTP.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v5"

	apiv1 "github.com/stacklok/toolhive-replication-server/internal/api/v1"
	"github.com/stacklok/toolhive-replication-server/internal/auth"
	"github.com/stacklok/toolhive-replication-server/internal/config"
	"github.com/stacklok/toolhive-replication-server/internal/eventlog"
	"github.com/stacklok/toolhive-replication-server/internal/resource"
	"github.com/stacklok/toolhive-replication-server/internal/status"
	"github.com/stacklok/toolhive-replication-server/internal/verification"
)

const (
	// DefaultTimeout is the default timeout for HTTP requests
	DefaultTimeout = 10 * time.Second

	// DefaultMaxTries bounds attempts of a single call
	DefaultMaxTries = 3

	// MaxResponseSize is the maximum allowed response size (10MB)
	MaxResponseSize = 10 * 1024 * 1024

	// UserAgent is the user agent string used for HTTP requests
	UserAgent = "thv-replication-server/1.0"
)

// ErrUnreachable is returned when a node does not answer with a 2xx response
var ErrUnreachable = errors.New("node unreachable")

// Client calls the status, event and checksum endpoints of another node
type Client struct {
	baseURL    *url.URL
	node       string
	issuer     auth.TokenIssuer
	httpClient *http.Client
	maxTries   uint
	backOff    func() backoff.BackOff
}

var (
	_ eventlog.Source               = (*Client)(nil)
	_ verification.PrimaryChecksums = (*Client)(nil)
)

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

// WithTimeout sets the timeout of every request
func WithTimeout(timeout time.Duration) Option {
	return func(cl *Client) {
		if timeout > 0 {
			cl.httpClient.Timeout = timeout
		}
	}
}

// WithMaxTries bounds how often a call is attempted
func WithMaxTries(n uint) Option {
	return func(cl *Client) {
		if n > 0 {
			cl.maxTries = n
		}
	}
}

// WithBackOff sets the delay policy between attempts
func WithBackOff(newBackOff func() backoff.BackOff) Option {
	return func(cl *Client) {
		cl.backOff = newBackOff
	}
}

// NewClient creates a client for the node at baseURL.
// node is the name of the calling node, used as event consumer name.
func NewClient(baseURL, node string, issuer auth.TokenIssuer, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: invalid node URL %q", config.ErrConfiguration, baseURL)
	}
	if issuer == nil {
		return nil, fmt.Errorf("%w: token issuer is required", config.ErrConfiguration)
	}

	c := &Client{
		baseURL:    u,
		node:       node,
		issuer:     issuer,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		maxTries:   DefaultMaxTries,
		backOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// GetStatus fetches the status of the node
func (c *Client) GetStatus(ctx context.Context) (*status.Response, error) {
	var resp status.Response
	if err := c.do(ctx, http.MethodGet, c.endpoint("status", nil), nil, auth.ScopeNode, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return &resp, &StatusError{Message: resp.Error}
	}
	return &resp, nil
}

// PushStatus reports the status of the calling node
func (c *Client) PushStatus(ctx context.Context, st *status.NodeStatus) (*status.Response, error) {
	body, err := json.Marshal(st)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal status: %w", err)
	}

	var resp status.Response
	if err := c.do(ctx, http.MethodPost, c.endpoint("status", nil), body, auth.ScopeNode, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return &resp, &StatusError{Message: resp.Error}
	}
	return &resp, nil
}

// Drain fetches events after cursor from the primary
func (c *Client) Drain(ctx context.Context, cursor int64, limit int) ([]eventlog.Event, int64, error) {
	query := url.Values{}
	query.Set("after", strconv.FormatInt(cursor, 10))
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}
	if c.node != "" {
		query.Set("consumer", c.node)
	}

	var resp apiv1.EventsResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint("api/v1/events", query), nil, auth.ScopeNode, &resp); err != nil {
		return nil, cursor, err
	}
	if resp.Cursor < cursor {
		return nil, cursor, fmt.Errorf("primary returned cursor %d behind %d", resp.Cursor, cursor)
	}
	return resp.Events, resp.Cursor, nil
}

// PrimaryChecksum fetches the checksum the primary recorded for key
func (c *Client) PrimaryChecksum(ctx context.Context, key resource.Key) (string, error) {
	path := "api/v1/checksums/" + url.PathEscape(string(key.Type)) + "/" + key.ID

	var resp apiv1.ChecksumResponse
	err := c.do(ctx, http.MethodGet, c.endpoint(path, nil), nil, key.String(), &resp)
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		// A bare 404 comes from a wrong path, not from a missing resource
		var body apiv1.ErrorResponse
		if json.Unmarshal([]byte(httpErr.Message), &body) == nil {
			switch body.Code {
			case apiv1.ErrorCodeMissingOnPrimary:
				return "", verification.ErrMissingOnPrimary
			case apiv1.ErrorCodeNotRecorded:
				return "", verification.ErrNotRecorded
			}
		}
	}
	if err != nil {
		return "", err
	}
	if resp.Checksum == "" {
		return "", verification.ErrNotRecorded
	}
	return resp.Checksum, nil
}

func (c *Client) endpoint(path string, query url.Values) string {
	u := c.baseURL.JoinPath(path)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// do performs a call with retries and decodes a JSON body into out.
// Client errors other than 408 and 429 are not retried.
func (c *Client) do(ctx context.Context, method, endpoint string, body []byte, scope string, out any) error {
	header, err := c.issuer.Issue(ctx, scope)
	if err != nil {
		return fmt.Errorf("%w: failed to issue token: %v", config.ErrConfiguration, err)
	}

	data, err := backoff.Retry(ctx, func() ([]byte, error) {
		data, err := c.once(ctx, method, endpoint, body, header)
		var httpErr *HTTPError
		if errors.As(err, &httpErr) && !httpErr.Retryable() {
			return nil, backoff.Permanent(err)
		}
		return data, err
	}, backoff.WithBackOff(c.backOff()), backoff.WithMaxTries(c.maxTries))
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) once(ctx context.Context, method, endpoint string, body []byte, authHeader string) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", authHeader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrUnreachable, method, endpoint, err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, MaxResponseSize+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrUnreachable, err)
	}
	if len(data) > MaxResponseSize {
		return nil, backoff.Permanent(fmt.Errorf("response body exceeds maximum size of %d bytes", MaxResponseSize))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewHTTPError(resp.StatusCode, endpoint, string(data))
	}
	return data, nil
}
