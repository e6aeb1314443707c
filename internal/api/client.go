package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/eliteGoblin/focusd/focuslock/internal/domain"
)

// APIError is a non-2xx response from the daemon.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Code)
	}
	return fmt.Sprintf("%s (http %d)", e.Message, e.StatusCode)
}

// Unwrap maps error codes back to domain errors so callers can use errors.Is.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case CodeInvalidDuration:
		return domain.ErrInvalidDuration
	case CodeNoOriginalLauncher:
		return domain.ErrNoOriginalLauncher
	case CodeChannelUnavailable:
		return domain.ErrChannelUnavailable
	default:
		return nil
	}
}

// Client talks to a running daemon's control API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the daemon listening on addr (host:port).
func NewClient(addr string) *Client {
	return &Client{
		baseURL: "http://" + addr,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NewClientWithHTTP creates a client with a custom base URL and http client (for testing).
func NewClientWithHTTP(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: baseURL, http: hc}
}

// Status returns the current lock status.
func (c *Client) Status(ctx context.Context) (domain.LockStatus, error) {
	var status domain.LockStatus
	err := c.do(ctx, http.MethodGet, "/v1/status", nil, &status)
	return status, err
}

// Lock starts a lock for minutes.
func (c *Client) Lock(ctx context.Context, minutes int) (domain.LockStatus, error) {
	var status domain.LockStatus
	err := c.do(ctx, http.MethodPost, "/v1/lock", LockRequest{Minutes: minutes}, &status)
	return status, err
}

// Unlock lifts the lock.
func (c *Client) Unlock(ctx context.Context, openSettings bool) (UnlockResponse, error) {
	var resp UnlockResponse
	err := c.do(ctx, http.MethodPost, "/v1/unlock", UnlockRequest{OpenSettings: openSettings}, &resp)
	return resp, err
}

// Ping reports whether the daemon answers.
func (c *Client) Ping(ctx context.Context) bool {
	_, err := c.Status(ctx)
	return err == nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("daemon not reachable: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if json.Unmarshal(data, &errResp) != nil || errResp.Error == "" {
			errResp.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{StatusCode: resp.StatusCode, Code: errResp.Code, Message: errResp.Error}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, out)
}
