package skytap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/projecteru2/envdo/types"
)

const (
	environmentsPath = "/configurations"
	vmsPath          = "/vms"

	defaultTimeout = 30 * time.Second
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.hc.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// Client reads and writes environments and VMs over the REST API.
// It holds no decision logic.
type Client struct {
	endpoint  string
	username  string
	token     string
	userAgent string
	hc        *http.Client
}

// New returns a Client for endpoint (e.g. https://cloud.skytap.com).
func New(endpoint, username, token string, opts ...Option) *Client {
	c := &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		username: username,
		token:    token,
		hc:       &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListEnvironments returns every environment visible to the account.
// The list representation may omit the nested VMs.
func (c *Client) ListEnvironments(ctx context.Context) ([]types.Environment, error) {
	body, err := c.do(ctx, http.MethodGet, environmentsPath, nil)
	if err != nil {
		return nil, err
	}
	var envs []types.Environment
	if err := json.Unmarshal(body, &envs); err != nil {
		return nil, fmt.Errorf("decode environments: %w", err)
	}
	return envs, nil
}

// FetchEnvironment returns the full environment including its VMs.
func (c *Client) FetchEnvironment(ctx context.Context, id string) (*types.Environment, error) {
	body, err := c.do(ctx, http.MethodGet, environmentsPath+"/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var env types.Environment
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode environment %s: %w", id, err)
	}
	return &env, nil
}

// FetchVM returns one VM.
func (c *Client) FetchVM(ctx context.Context, id string) (*types.VM, error) {
	body, err := c.do(ctx, http.MethodGet, vmsPath+"/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}
	var vm types.VM
	if err := json.Unmarshal(body, &vm); err != nil {
		return nil, fmt.Errorf("decode vm %s: %w", id, err)
	}
	return &vm, nil
}

type runstateRequest struct {
	Runstate types.Runstate `json:"runstate"`
}

type batchRunstateRequest struct {
	Multiselect []string       `json:"multiselect"`
	Runstate    types.Runstate `json:"runstate"`
}

// WriteVMRunstate requests a runstate change for a single VM.
func (c *Client) WriteVMRunstate(ctx context.Context, vmID string, state types.Runstate) error {
	body, err := json.Marshal(runstateRequest{Runstate: state})
	if err != nil {
		return fmt.Errorf("encode runstate: %w", err)
	}
	_, err = c.do(ctx, http.MethodPut, vmsPath+"/"+url.PathEscape(vmID), body)
	return err
}

// WriteBatchRunstate requests a runstate change for many VMs of one environment
// in a single request.
func (c *Client) WriteBatchRunstate(ctx context.Context, envID string, vmIDs []string, state types.Runstate) error {
	body, err := json.Marshal(batchRunstateRequest{Multiselect: vmIDs, Runstate: state})
	if err != nil {
		return fmt.Errorf("encode runstate: %w", err)
	}
	_, err = c.do(ctx, http.MethodPut, environmentsPath+"/"+url.PathEscape(envID), body)
	return err
}
