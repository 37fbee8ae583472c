package discovery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// ErrRegistryUnavailable is returned when the registry cannot be reached or
// answers with an error.
var ErrRegistryUnavailable = errors.New("registry unavailable")

// Client talks to a Registry. Every client has its own instance id, so only
// the process that registered a name can remove it.
type Client struct {
	base     string
	instance uuid.UUID
	http     *http.Client
}

// NewClient returns a client of the registry at addr (host:port).
func NewClient(addr string, timeout time.Duration) *Client {
	return &Client{
		base:     "http://" + addr,
		instance: uuid.New(),
		http:     &http.Client{Timeout: timeout},
	}
}

func (c *Client) Instance() uuid.UUID {
	return c.instance
}

// List returns the names registered under prefix with their addresses.
func (c *Client) List(ctx context.Context, prefix string) (map[string]string, error) {
	u := c.base + "/peers?" + url.Values{"prefix": {prefix}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req, http.StatusOK)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var addresses map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&addresses); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistryUnavailable, err)
	}
	return addresses, nil
}

// Register binds name to address.
func (c *Client) Register(ctx context.Context, name, address string) error {
	body, err := json.Marshal(registration{Address: address, Instance: c.instance})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.base+"/peers/"+url.PathEscape(name), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req, http.StatusNoContent)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

// Unregister removes name, if this client registered it.
func (c *Client) Unregister(ctx context.Context, name string) error {
	u := c.base + "/peers/" + url.PathEscape(name) + "?" + url.Values{"instance": {c.instance.String()}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req, http.StatusNoContent)
	if err != nil {
		return err
	}
	return resp.Body.Close()
}

func (c *Client) do(req *http.Request, want int) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistryUnavailable, err)
	}
	if resp.StatusCode != want {
		defer resp.Body.Close()
		if resp.StatusCode == http.StatusForbidden {
			return nil, ErrNotOwner
		}
		return nil, fmt.Errorf("%w: %s %s returned %s", ErrRegistryUnavailable, req.Method, req.URL.Path, resp.Status)
	}
	return resp, nil
}
