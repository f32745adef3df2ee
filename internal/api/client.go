package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/eliteGoblin/focusd/autores/internal/domain"
)

// Client talks to a running daemon's control API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the daemon listening on addr (host:port).
func NewClient(addr string) *Client {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{},
	}
}

// Health pings the daemon.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// Modes lists supported display modes.
func (c *Client) Modes(ctx context.Context) ([]domain.Resolution, error) {
	var modes []domain.Resolution
	if err := c.do(ctx, http.MethodGet, "/api/modes", nil, &modes); err != nil {
		return nil, err
	}
	return modes, nil
}

// Current returns the active display mode.
func (c *Client) Current(ctx context.Context) (domain.Resolution, error) {
	var mode domain.Resolution
	err := c.do(ctx, http.MethodGet, "/api/mode", nil, &mode)
	return mode, err
}

// SetMode applies a display mode.
func (c *Client) SetMode(ctx context.Context, mode domain.Resolution) error {
	return c.do(ctx, http.MethodPut, "/api/mode", mode, nil)
}

// Revert expires any pending revert. It reports whether one was pending.
func (c *Client) Revert(ctx context.Context) (bool, error) {
	var resp RevertResponse
	if err := c.do(ctx, http.MethodPost, "/api/revert", nil, &resp); err != nil {
		return false, err
	}
	return resp.Pending, nil
}

// State returns the daemon status.
func (c *Client) State(ctx context.Context) (*StateResponse, error) {
	var resp StateResponse
	if err := c.do(ctx, http.MethodGet, "/api/state", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Events streams notifications to fn until ctx is canceled or the daemon
// closes the stream.
func (c *Client) Events(ctx context.Context, fn func(domain.Notification)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/events", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return decodeError(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var n domain.Notification
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &n); err != nil {
			continue
		}
		fn(n)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return scanner.Err()
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

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
		return fmt.Errorf("%w: %v", domain.ErrDaemonNotRunning, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// APIError is a non-2xx response from the daemon.
type APIError struct {
	Status  int
	Message string

	// structured is set when the body carried the API error envelope.
	structured bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("daemon returned %d: %s", e.Status, e.Message)
}

// Unwrap maps status codes back to domain sentinels.
func (e *APIError) Unwrap() error {
	if !e.structured {
		return nil
	}
	switch e.Status {
	case http.StatusNotFound:
		return domain.ErrModeNotFound
	case http.StatusConflict:
		return domain.ErrModeChangeRejected
	case http.StatusNotImplemented:
		return domain.ErrUnsupported
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var body errorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(data, &body); err != nil || body.Error.Message == "" {
		return &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	return &APIError{Status: resp.StatusCode, Message: body.Error.Message, structured: true}
}
