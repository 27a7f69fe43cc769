package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
)

// ErrDaemonUnavailable marks connection failures so callers can distinguish
// "daemon not running" from daemon-side errors and fall back to local
// inspection.
var ErrDaemonUnavailable = errors.New("verdant daemon unavailable")

// Client talks to the daemon's operational HTTP API.
type Client struct {
	base  *url.URL
	token string
	http  *http.Client
}

// NewClient builds a client for the daemon bound at bind ("host:port" or a
// full URL). An empty bind yields a nil client; calls on a nil client report
// ErrDaemonUnavailable.
func NewClient(bind, token string) (*Client, error) {
	bind = strings.TrimSpace(bind)
	if bind == "" {
		return nil, nil
	}
	if !strings.Contains(bind, "://") {
		bind = "http://" + bind
	}
	base, err := url.Parse(bind)
	if err != nil {
		return nil, fmt.Errorf("parse api bind %q: %w", bind, err)
	}
	base.Path = ""
	base.RawQuery = ""
	base.Fragment = ""

	return &Client{
		base:  base,
		token: strings.TrimSpace(token),
		// Request deadlines ride the caller's context.
		http: &http.Client{},
	}, nil
}

// Status fetches the daemon runtime snapshot.
func (c *Client) Status(ctx context.Context) (DaemonStatus, error) {
	var status DaemonStatus
	if err := c.getJSON(ctx, "/api/v1/status", &status); err != nil {
		return DaemonStatus{}, err
	}
	return status, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	if c == nil {
		return ErrDaemonUnavailable
	}

	endpoint := c.base.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return fmt.Errorf("%w at %s: %v", ErrDaemonUnavailable, c.base.Host, opErr.Err)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return fmt.Errorf("daemon rejected the request: check api_token in config.toml")
	}
	if resp.StatusCode >= 400 {
		var payload ErrorResponse
		if decodeErr := json.NewDecoder(resp.Body).Decode(&payload); decodeErr == nil && payload.Error != "" {
			return fmt.Errorf("daemon returned status %d: %s", resp.StatusCode, payload.Error)
		}
		return fmt.Errorf("daemon returned status %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
