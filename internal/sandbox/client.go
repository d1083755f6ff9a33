package sandbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/atelier-run/atelier/internal/config"
)

// Client is an HTTP implementation of Collaborator.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a collaborator client from the sandbox configuration.
// Per-operation deadlines come from the caller's context, so the underlying
// HTTP client carries no timeout of its own.
func NewClient(cfg *config.SandboxConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{},
	}
}

type ensureRequest struct {
	OwnerID string `json:"owner_id"`
}

type startRequest struct {
	Prompt string `json:"prompt"`
}

func (c *Client) EnsureEnvironment(ctx context.Context, ownerID string) (*Environment, error) {
	body, err := json.Marshal(ensureRequest{OwnerID: ownerID})
	if err != nil {
		return nil, fmt.Errorf("encode environment request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/environments", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var env Environment
	if err := c.do(req, &env); err != nil {
		return nil, fmt.Errorf("ensure environment: %w", err)
	}

	if env.OwnerID == "" {
		env.OwnerID = ownerID
	}
	return &env, nil
}

func (c *Client) TransferFile(ctx context.Context, env *Environment, relPath string, r io.Reader) error {
	path := fmt.Sprintf("/environments/%s/files/%s", url.PathEscape(env.ID), url.PathEscape(relPath))

	req, err := c.newRequest(ctx, http.MethodPut, path, r)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Owner-Id", env.OwnerID)

	if err := c.do(req, nil); err != nil {
		return fmt.Errorf("transfer %s: %w", relPath, err)
	}
	return nil
}

func (c *Client) StartRun(ctx context.Context, env *Environment, prompt string) (*RunHandle, error) {
	body, err := json.Marshal(startRequest{Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("encode run request: %w", err)
	}

	path := fmt.Sprintf("/environments/%s/runs", url.PathEscape(env.ID))
	req, err := c.newRequest(ctx, http.MethodPost, path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Owner-Id", env.OwnerID)

	var handle RunHandle
	if err := c.do(req, &handle); err != nil {
		return nil, fmt.Errorf("start run: %w", err)
	}
	return &handle, nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("create sandbox request: %w", err)
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return nil
}
