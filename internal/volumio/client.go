package volumio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strings"
	"time"
)

// TransportError wraps any failure talking to the Volumio host: connection
// errors, timeouts, and non-JSON responses. Body carries the raw response
// when one was received.
type TransportError struct {
	Op   string
	Body []byte
	Err  error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("volumio %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("volumio %s failed", e.Op)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline expiry.
func (e *TransportError) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Client issues REST calls against a single Volumio host.
type Client struct {
	host       string
	timeout    time.Duration
	httpClient *http.Client
	debugAPI   bool
	logger     *log.Logger
}

// NewClient creates a client for the given host. Any scheme prefix on the
// host is stripped; the timeout applies to every request.
func NewClient(host string, timeout time.Duration, debugAPI bool, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		host:    NormalizeHost(host),
		timeout: timeout,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: timeout}).DialContext,
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		debugAPI: debugAPI,
		logger:   logger,
	}
}

// Host returns the normalized host this client talks to.
func (c *Client) Host() string { return c.host }

// Timeout returns the fixed request timeout.
func (c *Client) Timeout() time.Duration { return c.timeout }

// NormalizeHost strips a scheme prefix and trailing slashes from a
// configured host value.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if idx := strings.Index(host, "://"); idx != -1 {
		host = host[idx+3:]
	}
	return strings.TrimRight(host, "/")
}

// Command issues GET /api/v1/commands/?cmd={cmd} and returns the decoded
// response. The cmd string is the full command grammar including any
// &param=value suffixes, so it is concatenated rather than re-encoded.
func (c *Client) Command(ctx context.Context, cmd string) (json.RawMessage, error) {
	url := fmt.Sprintf("http://%s/api/v1/commands/?cmd=%s", c.host, cmd)
	return c.do(ctx, http.MethodGet, "command "+cmd, url, nil)
}

// GetJSON issues GET /api/v1/{path} and decodes the response into out.
func (c *Client) GetJSON(ctx context.Context, path string, out any) error {
	url := fmt.Sprintf("http://%s/api/v1/%s", c.host, strings.TrimLeft(path, "/"))
	raw, err := c.do(ctx, http.MethodGet, "get "+path, url, nil)
	if err != nil {
		return err
	}
	return c.decode("get "+path, raw, out)
}

// PostJSON issues POST /api/v1/{path} with a JSON body and decodes the
// response into out when out is non-nil.
func (c *Client) PostJSON(ctx context.Context, path string, body any, out any) error {
	url := fmt.Sprintf("http://%s/api/v1/%s", c.host, strings.TrimLeft(path, "/"))

	encoded, err := json.Marshal(body)
	if err != nil {
		return &TransportError{Op: "post " + path, Err: err}
	}

	raw, doErr := c.do(ctx, http.MethodPost, "post "+path, url, encoded)
	if doErr != nil {
		return doErr
	}
	if out == nil {
		return nil
	}
	return c.decode("post "+path, raw, out)
}

func (c *Client) do(ctx context.Context, method, op, url string, body []byte) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, &TransportError{Op: op, Err: context.DeadlineExceeded}
		}
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	if c.debugAPI {
		c.logger.Printf("API: %s -> %d %s", op, resp.StatusCode, payload)
	}

	if resp.StatusCode >= 400 {
		return nil, &TransportError{Op: op, Body: payload, Err: fmt.Errorf("http %d", resp.StatusCode)}
	}

	var raw json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, &TransportError{Op: op, Body: payload, Err: fmt.Errorf("non-JSON response: %w", err)}
	}
	return raw, nil
}

func (c *Client) decode(op string, raw json.RawMessage, out any) error {
	if err := json.Unmarshal(raw, out); err != nil {
		return &TransportError{Op: op, Body: raw, Err: fmt.Errorf("unexpected response shape: %w", err)}
	}
	return nil
}
