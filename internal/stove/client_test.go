package stove

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, url string, retries int, delay time.Duration) *Client {
	t.Helper()
	c, err := NewClient(Config{
		BaseURL:    url,
		Retries:    retries,
		RetryDelay: delay,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return c
}

func TestNewClientValidation(t *testing.T) {
	var cfgErr *ConfigError

	_, err := NewClient(Config{})
	if !errors.As(err, &cfgErr) {
		t.Errorf("missing base URL: expected *ConfigError, got %T", err)
	}

	_, err = NewClient(Config{BaseURL: "http://10.0.0.1", AuthMode: AuthBasic})
	if !errors.As(err, &cfgErr) {
		t.Errorf("basic auth without credentials: expected *ConfigError, got %T", err)
	}

	_, err = NewClient(Config{BaseURL: "http://10.0.0.1", AuthMode: "ntlm"})
	if !errors.As(err, &cfgErr) {
		t.Errorf("unknown auth mode: expected *ConfigError, got %T", err)
	}

	c, err := NewClient(Config{BaseURL: "http://10.0.0.1/"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Endpoint() != "http://10.0.0.1"+DefaultCGIPath {
		t.Errorf("unexpected endpoint %q", c.Endpoint())
	}
}

func TestSendPostsOperationForm(t *testing.T) {
	var gotOp, gotExtra string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		gotOp = r.PostFormValue("idOperacion")
		gotExtra = r.PostFormValue("on_off")
		w.Write([]byte("error=0\n"))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, 1, time.Millisecond)
	resp, err := c.SendParams(context.Background(), 1013, map[string]string{"on_off": "1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotOp != "1013" || gotExtra != "1" {
		t.Errorf("unexpected form values: idOperacion=%q on_off=%q", gotOp, gotExtra)
	}
	if !resp.StatusOK {
		t.Errorf("expected OK response, got %+v", resp)
	}
}

func TestSendRetriesTransientFailures(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("estado=7\n"))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, 3, 5*time.Millisecond)
	resp, err := c.Send(context.Background(), 1002)
	if err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
	if resp.Params["estado"] != "7" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestSendExhaustsRetries(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	delay := 20 * time.Millisecond
	c := newTestClient(t, ts.URL, 3, delay)

	start := time.Now()
	_, err := c.Send(context.Background(), 1002)
	elapsed := time.Since(start)

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if attempts != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", attempts)
	}
	// two inter-attempt delays must have elapsed
	if elapsed < 2*delay {
		t.Errorf("expected at least %v of retry delay, elapsed %v", 2*delay, elapsed)
	}
}

func TestSendConnectionErrorIsRetriedThenFails(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL
	ts.Close() // connection refused from now on

	c := newTestClient(t, url, 2, time.Millisecond)
	_, err := c.Send(context.Background(), 1002)

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if transportErr.Unwrap() == nil {
		t.Error("expected the underlying network error to be wrapped")
	}
}

func TestSendUnauthorizedFailsImmediately(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, 3, time.Second)

	start := time.Now()
	_, err := c.Send(context.Background(), 1002)
	elapsed := time.Since(start)

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
	if attempts != 1 {
		t.Errorf("401 must not be retried, got %d attempts", attempts)
	}
	if elapsed >= time.Second {
		t.Errorf("401 must not wait out a retry delay, elapsed %v", elapsed)
	}
}

func TestSendOperationErrorIsNotRetried(t *testing.T) {
	attempts := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.Write([]byte("error=3\n"))
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, 3, time.Millisecond)
	_, err := c.Send(context.Background(), 1013)

	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected *OperationError, got %T: %v", err, err)
	}
	if opErr.Code != 3 || opErr.Op != 1013 {
		t.Errorf("expected op 1013 code 3, got %+v", opErr)
	}
	if attempts != 1 {
		t.Errorf("device-reported errors must not be retried, got %d attempts", attempts)
	}
}

func TestSendBasicAuthHeader(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "user" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("error=0\n"))
	}))
	defer ts.Close()

	c, err := NewClient(Config{
		BaseURL:  ts.URL,
		AuthMode: AuthBasic,
		Username: "user",
		Password: "secret",
		Retries:  1,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.Send(context.Background(), 1094); err != nil {
		t.Fatalf("expected authenticated request to succeed, got %v", err)
	}
}

func TestSendContextCancelledDuringRetryWait(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := newTestClient(t, ts.URL, 3, 5*time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Send(ctx, 1002)
	if time.Since(start) >= time.Second {
		t.Error("cancellation should interrupt the retry wait")
	}

	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("expected *TransportError, got %T: %v", err, err)
	}
}
