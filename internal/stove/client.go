package stove

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/icholy/digest"
)

// AuthMode selects how the client authenticates against the device.
type AuthMode string

const (
	AuthNone   AuthMode = "none"
	AuthBasic  AuthMode = "basic"
	AuthDigest AuthMode = "digest"
)

// Defaults matching the vendor web UI behavior.
const (
	DefaultCGIPath    = "/recepcion_datos_4.cgi"
	DefaultTimeout    = 5 * time.Second
	DefaultRetries    = 3
	DefaultRetryDelay = 2100 * time.Millisecond
)

// Every request carries the operation id in this form field.
const fieldOperation = "idOperacion"

// Config holds construction parameters for a Client.
type Config struct {
	BaseURL    string // e.g. "http://192.168.1.50"
	CGIPath    string // defaults to DefaultCGIPath
	Timeout    time.Duration
	Retries    int // attempts for transient transport errors, >= 1
	RetryDelay time.Duration
	AuthMode   AuthMode
	Username   string
	Password   string
	Cookies    map[string]string // optional pre-set session cookies
}

// Client is a minimal HTTP client for stove controllers exposing a CGI
// endpoint that accepts POST form data. It handles transport reliability
// (bounded retries with a fixed delay) and tolerant response parsing; typed
// operations live on NetFlame.
type Client struct {
	endpoint   string
	retries    int
	retryDelay time.Duration
	authMode   AuthMode
	username   string
	password   string
	http       *http.Client
}

// NewClient validates cfg and builds a Client. Basic and digest modes fail
// fast when username or password is missing.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, &ConfigError{Msg: "base URL is required"}
	}
	path := cfg.CGIPath
	if path == "" {
		path = DefaultCGIPath
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	mode := cfg.AuthMode
	if mode == "" {
		mode = AuthNone
	}
	switch mode {
	case AuthNone:
	case AuthBasic, AuthDigest:
		if cfg.Username == "" || cfg.Password == "" {
			return nil, &ConfigError{Msg: fmt.Sprintf("%s auth requires username and password", mode)}
		}
	default:
		return nil, &ConfigError{Msg: fmt.Sprintf("unknown auth mode %q", mode)}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	retries := cfg.Retries
	if retries < 1 {
		retries = DefaultRetries
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = DefaultRetryDelay
	}

	httpClient := &http.Client{Timeout: timeout}
	if mode == AuthDigest {
		httpClient.Transport = &digest.Transport{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	c := &Client{
		endpoint:   base + path,
		retries:    retries,
		retryDelay: retryDelay,
		authMode:   mode,
		username:   cfg.Username,
		password:   cfg.Password,
		http:       httpClient,
	}

	if len(cfg.Cookies) > 0 {
		if err := c.presetCookies(cfg.Cookies); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// Endpoint returns the full CGI URL this client posts to.
func (c *Client) Endpoint() string { return c.endpoint }

func (c *Client) presetCookies(cookies map[string]string) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return &ConfigError{Msg: fmt.Sprintf("invalid endpoint URL %q: %v", c.endpoint, err)}
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return &ConfigError{Msg: fmt.Sprintf("cookie jar: %v", err)}
	}
	list := make([]*http.Cookie, 0, len(cookies))
	for name, value := range cookies {
		list = append(list, &http.Cookie{Name: name, Value: value})
	}
	jar.SetCookies(u, list)
	c.http.Jar = jar
	return nil
}

// Send issues an operation carrying only idOperacion.
func (c *Client) Send(ctx context.Context, op int) (Response, error) {
	return c.SendParams(ctx, op, nil)
}

// SendParams issues an operation with extra form fields (e.g. int_rx for
// a clock write). Transient failures (network errors, timeouts, and non-2xx
// statuses other than 401) are retried up to the configured attempt count
// with a fixed delay in between. A 401 is surfaced immediately so the caller
// can switch authentication strategy. Device-reported non-zero result codes
// become an *OperationError and are never retried.
func (c *Client) SendParams(ctx context.Context, op int, extra map[string]string) (Response, error) {
	form := url.Values{}
	form.Set(fieldOperation, strconv.Itoa(op))
	for k, v := range extra {
		form.Set(k, v)
	}
	payload := form.Encode()

	var lastErr error
	for attempt := 1; attempt <= c.retries; attempt++ {
		resp, err := c.attempt(ctx, op, payload)
		if err == nil {
			return resp, nil
		}

		var transient *transientError
		if !errors.As(err, &transient) {
			return Response{}, err
		}
		lastErr = transient.err

		if attempt < c.retries {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return Response{}, &TransportError{Msg: "request canceled during retry wait", Err: ctx.Err()}
			}
		}
	}

	return Response{}, &TransportError{
		Msg: fmt.Sprintf("HTTP error sending %s=%d to %s after %d attempts", fieldOperation, op, c.endpoint, c.retries),
		Err: lastErr,
	}
}

// transientError marks a failure that qualifies for another attempt.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

func (c *Client) attempt(ctx context.Context, op int, payload string) (Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(payload))
	if err != nil {
		return Response{}, &TransportError{Msg: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.authMode == AuthBasic {
		req.SetBasicAuth(c.username, c.password)
	}

	httpResp, err := c.http.Do(req)
	if err != nil {
		return Response{}, &transientError{err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode == http.StatusUnauthorized {
		return Response{}, &TransportError{
			Msg: "401 unauthorized: the device requires authentication (try basic or digest auth, or session cookies)",
		}
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return Response{}, &transientError{err: fmt.Errorf("unexpected HTTP status %s", httpResp.Status)}
	}

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return Response{}, &transientError{err: fmt.Errorf("read body: %w", err)}
	}

	resp := Parse(op, string(raw))
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		return Response{}, &OperationError{Op: op, Code: *resp.ErrorCode}
	}
	return resp, nil
}
