// Package feed implements the HTTP client for the paginated changes feed.
//
// The client issues one page request at a time and classifies the outcome
// into a Result the crawler loop can switch on. It owns the HTTP session:
// cookies set by the server (notably the SERVER_ID sticky-routing cookie)
// are kept in a jar and replayed on every subsequent request.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"
)

// ServerIDCookieName is the upstream load-balancer's sticky-routing cookie.
const ServerIDCookieName = "SERVER_ID"

// Decoder turns a response body into a value. Callers may supply their own
// (for example a faster JSON codec); the default is encoding/json.
type Decoder func(data []byte, v any) error

// Options configures a Client.
type Options struct {
	// Host is the API origin, e.g. "https://public-api.example.com"
	Host string

	// FeedURL is the feed endpoint, e.g. "{host}/api/2.5/tenders"
	FeedURL string

	// Token, when set, is sent as "Authorization: Bearer <token>"
	Token string

	// UserAgent is required by the upstream API
	UserAgent string

	// Headers are merged into every request (caller-supplied extras)
	Headers map[string]string

	// Timeout bounds a single request. Default: 30s
	Timeout time.Duration

	// Decode overrides the response decoder. Default: json.Unmarshal
	Decode Decoder
}

// Client is the feed HTTP session shared by both crawler directions.
type Client struct {
	httpClient *http.Client
	base       *url.URL
	feedURL    string
	headers    map[string]string
	decode     Decoder
}

// NewClient creates the feed client with a fresh cookie jar.
func NewClient(opts Options) (*Client, error) {
	base, err := url.Parse(opts.Host)
	if err != nil {
		return nil, fmt.Errorf("invalid API host %q: %w", opts.Host, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	headers := map[string]string{
		"User-Agent": opts.UserAgent,
	}
	if opts.Token != "" {
		headers["Authorization"] = "Bearer " + opts.Token
	}
	for k, v := range opts.Headers {
		headers[k] = v
	}

	decode := opts.Decode
	if decode == nil {
		decode = json.Unmarshal
	}

	return &Client{
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		base:    base,
		feedURL: opts.FeedURL,
		headers: headers,
		decode:  decode,
	}, nil
}

// FeedURL returns the feed endpoint this client polls.
func (c *Client) FeedURL() string {
	return c.feedURL
}

// Decode runs the client's configured decoder.
func (c *Client) Decode(data []byte, v any) error {
	return c.decode(data, v)
}

// Fetch requests one feed page and classifies the outcome.
func (c *Client) Fetch(ctx context.Context, p Params) Result {
	status, body, err := c.GetRaw(ctx, c.feedURL+"?"+p.Query().Encode())
	if err != nil {
		return &TransientError{Err: err}
	}

	switch status {
	case http.StatusOK:
		var page pageWire
		if err := c.decode(body, &page); err != nil {
			return &TransientError{Err: fmt.Errorf("decode feed page: %w", err)}
		}
		return &Page{
			Data:       page.Data,
			NextOffset: page.NextPage.Offset,
			PrevOffset: page.PrevPage.Offset,
		}
	case http.StatusTooManyRequests:
		return &TooManyRequests{}
	case http.StatusPreconditionFailed:
		return &PreconditionFailed{}
	case http.StatusNotFound:
		return &OffsetInvalid{}
	default:
		return &UnexpectedStatus{Code: status, Body: string(body)}
	}
}

// GetRaw performs a GET with the session headers and cookie jar and returns
// the status and full body. Transport and body-read failures come back as an
// error; HTTP status handling is the caller's concern.
func (c *Client) GetRaw(ctx context.Context, rawURL string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return resp.StatusCode, body, nil
}

// ServerID returns the sticky-routing cookie value, or "" when unset.
func (c *Client) ServerID() string {
	for _, ck := range c.httpClient.Jar.Cookies(c.base) {
		if ck.Name == ServerIDCookieName {
			return ck.Value
		}
	}
	return ""
}

// SetServerID plants a persisted sticky-routing cookie into the session so
// a resumed crawler keeps hitting the same upstream backend.
func (c *Client) SetServerID(value string) {
	if value == "" {
		return
	}
	c.httpClient.Jar.SetCookies(c.base, []*http.Cookie{{
		Name:  ServerIDCookieName,
		Value: value,
		Path:  "/",
	}})
}
