package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// envelope is the shape of every successful API response.
type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
}

// File is one file part of a multipart upload.
type File struct {
	Field  string
	Name   string
	Reader io.Reader
}

// Client is the API entry point for resource wrappers. All calls go through
// the gateway Transport and fail with *APIError.
type Client struct {
	http      *resty.Client
	transport *Transport
	store     TokenStore
	logger    zerolog.Logger
}

// NewClient creates a Client for opts.BaseURL backed by store.
func NewClient(store TokenStore, opts Options) (*Client, error) {
	transport, err := NewTransport(store, opts)
	if err != nil {
		return nil, err
	}

	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	c := &Client{
		transport: transport,
		store:     store,
		logger:    opts.logger(),
	}
	c.http = resty.New().
		SetDebug(false).
		SetBaseURL(opts.BaseURL).
		SetTimeout(timeout).
		SetTransport(transport).
		SetHeader("Accept", jsonContentType)

	return c, nil
}

// Store returns the session store the client reads and writes.
func (c *Client) Store() TokenStore { return c.store }

// Transport returns the gateway RoundTripper, for callers that need a
// plain *http.Client with the same session handling.
func (c *Client) Transport() *Transport { return c.transport }

func (c *Client) Get(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodGet, path, nil, out)
}

func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) Put(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPut, path, body, out)
}

func (c *Client) Patch(ctx context.Context, path string, body, out any) error {
	return c.Do(ctx, http.MethodPatch, path, body, out)
}

func (c *Client) Delete(ctx context.Context, path string, out any) error {
	return c.Do(ctx, http.MethodDelete, path, nil, out)
}

// Do sends body as JSON and decodes the envelope's data into out. out may
// be nil when the response is not needed.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	req := c.http.R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	return c.finish(path, resp, err, out)
}

// Upload posts a multipart form. The multipart encoder sets the boundary;
// the gateway leaves that Content-Type untouched.
func (c *Client) Upload(ctx context.Context, path string, fields map[string]string, files []File, out any) error {
	req := c.http.R().SetContext(ctx)
	if len(fields) > 0 {
		req.SetMultipartFormData(fields)
	}
	for _, f := range files {
		req.SetFileReader(f.Field, f.Name, f.Reader)
	}
	resp, err := req.Post(path)
	return c.finish(path, resp, err, out)
}

func (c *Client) finish(path string, resp *resty.Response, err error, out any) error {
	if err != nil {
		apiErr := Normalize(err, 0, nil)
		c.logFailure(path, apiErr)
		return apiErr
	}
	if resp.IsError() {
		apiErr := Normalize(nil, resp.StatusCode(), resp.Body())
		c.logFailure(path, apiErr)
		return apiErr
	}
	if err := decodeEnvelope(resp.Body(), out); err != nil {
		return &APIError{Message: err.Error(), Status: resp.StatusCode()}
	}
	return nil
}

// logFailure keeps expected 401s and client errors out of the warning log.
func (c *Client) logFailure(path string, apiErr *APIError) {
	level := zerolog.DebugLevel
	if apiErr.Status == 0 || apiErr.Status >= http.StatusInternalServerError {
		level = zerolog.WarnLevel
	}
	c.logger.WithLevel(level).
		Str("path", path).
		Int("status", apiErr.Status).
		Str("code", apiErr.Code).
		Msg(apiErr.Message)
}

// decodeEnvelope unwraps {status, data} into out. A body that is not an
// envelope is decoded into out as a whole.
func decodeEnvelope(body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 {
		body = env.Data
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
