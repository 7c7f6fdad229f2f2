// Package fetch talks to StaffProof collection endpoints.
//
// A Client owns the HTTP transport (timeout, auth, rate limit). A Resource
// binds a client to one collection and decodes its responses into typed
// values. Every failure is returned as a *Error; envelope variance between
// endpoints is normalized here and never leaks to callers.
package fetch

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

	"golang.org/x/time/rate"

	"github.com/abelbrown/staffproof/internal/logging"
)

// DefaultTimeout bounds each request.
const DefaultTimeout = 12 * time.Second

// maxBody caps response bodies read into memory.
const maxBody = 10 << 20

// Options configures a Client.
type Options struct {
	BaseURL       string        // e.g. http://localhost:8090
	Token         string        // bearer token; empty disables the header
	Timeout       time.Duration // per request; 0 means DefaultTimeout
	RatePerSecond float64       // 0 disables limiting
	UserAgent     string
	HTTPClient    *http.Client // optional override, mainly for tests
}

// Client performs requests against the collection API.
type Client struct {
	baseURL   string
	token     string
	timeout   time.Duration
	userAgent string
	client    *http.Client
	limiter   *rate.Limiter
}

// NewClient creates a Client from opts.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RatePerSecond > 0 {
		burst := int(opts.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: timeout}
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = "StaffProof/1.0"
	}
	return &Client{
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		token:     opts.Token,
		timeout:   timeout,
		userAgent: ua,
		client:    hc,
		limiter:   limiter,
	}
}

// Timeout returns the per-request timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

// do performs exactly one request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, classify(err)
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, &Error{Kind: KindNetwork, Message: fmt.Sprintf("failed to marshal request: %v", err), Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Message: fmt.Sprintf("failed to create request: %v", err), Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	logging.Debug("api request", "method", method, "url", endpoint)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, classify(err)
	}

	logging.Debug("api response", "method", method, "url", endpoint, "status", resp.StatusCode, "bytes", len(data))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, serverError(resp.StatusCode, data)
	}
	return data, nil
}

// errorBody is the error document the API returns on 4xx/5xx.
type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields"`
}

func serverError(status int, body []byte) *Error {
	e := &Error{Kind: KindServer, Status: status, Message: http.StatusText(status)}
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil {
		switch {
		case eb.Error != "":
			e.Message = eb.Error
		case eb.Message != "":
			e.Message = eb.Message
		}
		e.Fields = eb.Fields
	}
	return e
}
