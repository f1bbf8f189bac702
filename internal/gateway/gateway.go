// Package gateway is the HTTP client for the SMSMobileAPI inbox endpoint.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fjacquet/sms-ledger/internal/logging"
	"fjacquet/sms-ledger/internal/parsererror"
)

const (
	DefaultBaseURL = "https://api.smsmobileapi.com"
	DefaultTimeout = 30 * time.Second

	inboxPath = "/getsms/"
	opFetch   = "fetch inbox"
	// maxBodyBytes bounds the inbox response read into memory.
	maxBodyBytes = 32 << 20
)

// FetchOptions filters the inbox request.
type FetchOptions struct {
	UnreadOnly bool
	DeviceID   string
	// AfterUnix restricts results to messages after this epoch second. Zero
	// means no cutoff.
	AfterUnix int64
}

// Fetcher returns raw inbox records. Implementations must honour ctx.
type Fetcher interface {
	FetchInbox(ctx context.Context, opts FetchOptions) ([]map[string]any, error)
}

// Client talks to the gateway over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	logger     logging.Logger
}

var _ Fetcher = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithTimeout sets the hard deadline for one inbox request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a gateway client. The API key is required.
func NewClient(apiKey string, logger logging.Logger, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, &parsererror.ValidationError{Field: "gateway.api_key", Reason: "API key is not configured"}
	}
	if logger == nil {
		logger = logging.NewLogrusAdapter("info", "text")
	}
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		timeout: DefaultTimeout,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = sharedHTTPClient(c.timeout)
	}
	return c, nil
}

func sharedHTTPClient(timeout time.Duration) *http.Client {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 5,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: timeout,
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// FetchInbox requests the inbox and unwraps the message list. Any transport,
// status or decoding failure is returned as *parsererror.UpstreamError and
// no records.
func (c *Client) FetchInbox(ctx context.Context, opts FetchOptions) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.baseURL + inboxPath + "?" + c.query(opts).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &parsererror.UpstreamError{Op: opFetch, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	c.logger.Debug("Requesting gateway inbox",
		logging.F(logging.FieldEndpoint, c.baseURL+inboxPath),
		logging.F("unread_only", opts.UnreadOnly),
		logging.F("after", opts.AfterUnix))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &parsererror.UpstreamError{Op: opFetch, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &parsererror.UpstreamError{Op: opFetch, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &parsererror.UpstreamError{
			Op:         opFetch,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected response: %s", snippet(body)),
		}
	}

	records, err := Unwrap(body)
	if err != nil {
		return nil, &parsererror.UpstreamError{Op: opFetch, StatusCode: resp.StatusCode, Err: err}
	}

	c.logger.Info("Fetched gateway inbox",
		logging.F(logging.FieldCount, len(records)),
		logging.F(logging.FieldDuration, time.Since(start).Milliseconds()))
	return records, nil
}

func (c *Client) query(opts FetchOptions) url.Values {
	q := url.Values{}
	q.Set("apikey", c.apiKey)
	if opts.UnreadOnly {
		q.Set("onlyunread", "yes")
	}
	if opts.DeviceID != "" {
		q.Set("sIdentifiantPhone", opts.DeviceID)
	}
	if opts.AfterUnix > 0 {
		q.Set("after_timestamp_unix", strconv.FormatInt(opts.AfterUnix, 10))
	}
	return q
}

// Unwrap decodes an inbox payload. It accepts a bare list, {"result":{"sms":[...]}}
// or {"sms":[...]}; any other well-formed JSON yields an empty list. Numbers
// are kept as json.Number so long epochs survive intact.
func Unwrap(body []byte) ([]map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		if errors.Is(err, io.EOF) {
			return []map[string]any{}, nil
		}
		return nil, fmt.Errorf("decode inbox: %w", err)
	}

	switch v := payload.(type) {
	case []any:
		return records(v), nil
	case map[string]any:
		if result, ok := v["result"].(map[string]any); ok {
			if list, ok := result["sms"].([]any); ok {
				return records(list), nil
			}
		}
		if list, ok := v["sms"].([]any); ok {
			return records(list), nil
		}
	}
	return []map[string]any{}, nil
}

// records keeps the object entries of list; anything else is not a message.
func records(list []any) []map[string]any {
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
