// Package llm talks to the Ollama backend that hosts judge models.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// ErrInvocationFailed covers both an unreachable backend and a non-2xx reply.
var ErrInvocationFailed = errors.New("invocation failed")

const (
	DefaultBaseURL     = "http://localhost:11434"
	DefaultTimeout     = 120 * time.Second
	DefaultListTimeout = 10 * time.Second
)

type Option func(*Client)

type Client struct {
	base        url.URL
	http        *http.Client
	listTimeout time.Duration
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("parse ollama url: %q is not absolute", baseURL)
	}

	c := &Client{
		base:        *base,
		http:        &http.Client{Timeout: DefaultTimeout},
		listTimeout: DefaultListTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout bounds a single generate call. The timeout is set on a copy,
// so a client passed to WithHTTPClient is left untouched.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			hc := *c.http
			hc.Timeout = d
			c.http = &hc
		}
	}
}

func WithListTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.listTimeout = d
		}
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// Generate sends one non-streaming request and returns the model's text.
// An empty system prompt is left out of the request.
func (c *Client) Generate(ctx context.Context, model, prompt, system string) (string, error) {
	req := generateRequest{Model: model, Prompt: prompt, System: system, Stream: false}

	var resp generateResponse
	if err := c.do(ctx, http.MethodPost, "/api/generate", req, &resp); err != nil {
		return "", err
	}
	return resp.Response, nil
}

// ListModels returns the names of the models installed on the backend.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.listTimeout)
	defer cancel()

	var resp tagsResponse
	if err := c.do(ctx, http.MethodGet, "/api/tags", nil, &resp); err != nil {
		return nil, err
	}
	names := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

func (c *Client) do(ctx context.Context, method, path string, reqData, respData any) error {
	var body io.Reader
	if reqData != nil {
		b, err := json.Marshal(reqData)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	reqURL := c.base.JoinPath(path)
	request, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvocationFailed, err)
	}
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	request.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrInvocationFailed, method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %w", ErrInvocationFailed, err)
	}
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("%w: %s %s -> %d: %s", ErrInvocationFailed, method, path, resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, respData); err != nil {
		return fmt.Errorf("%w: unmarshal response: %w", ErrInvocationFailed, err)
	}
	return nil
}
