// Package posthog is a minimal client for the PostHog cohort API.
package posthog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBody bounds how much of an error body is kept for logging.
const maxResponseBody = 64 * 1024

// CohortPath is the cohort creation endpoint relative to the host.
const CohortPath = "/api/cohort"

// PropertyFilter matches person records on a single property.
type PropertyFilter struct {
	Key      string `json:"key"`
	Value    []any  `json:"value"`
	Operator string `json:"operator"`
	Type     string `json:"type"`
}

// CohortGroup is one OR-group of property filters.
type CohortGroup struct {
	Properties []PropertyFilter `json:"properties"`
}

// CohortRequest is the POST /api/cohort body.
type CohortRequest struct {
	ID       string        `json:"id"`
	Groups   []CohortGroup `json:"groups"`
	IsStatic bool          `json:"is_static"`
	Name     string        `json:"name"`
}

// NewPropertyCohort builds a dynamic cohort of persons whose property exactly
// equals value.
func NewPropertyCohort(name, property string, value any) CohortRequest {
	return CohortRequest{
		ID: "new",
		Groups: []CohortGroup{{
			Properties: []PropertyFilter{{
				Key:      property,
				Value:    []any{value},
				Operator: "exact",
				Type:     "person",
			}},
		}},
		IsStatic: false,
		Name:     name,
	}
}

// Response is the outcome of a cohort API call that reached the server.
type Response struct {
	StatusCode int
	Body       string
}

// OK reports whether the status is in the 2xx range.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// ServerError reports whether the status is in the 5xx range.
func (r *Response) ServerError() bool {
	return r.StatusCode >= 500 && r.StatusCode < 600
}

// Client issues requests against a single PostHog host.
type Client struct {
	host    string
	headers http.Header
	http    *http.Client
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient returns a client for host. headers are sent on every request.
func NewClient(host string, headers http.Header, opts ...Option) *Client {
	c := &Client{
		host:    strings.TrimRight(host, "/"),
		headers: headers.Clone(),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CreateCohort posts req to {host}/api/cohort. A non-nil error means the call
// never produced an HTTP response; status classification is left to the caller.
func (c *Client) CreateCohort(ctx context.Context, req CohortRequest) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode cohort request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.host+CohortPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build cohort request: %w", err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("post cohort: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
	}, nil
}
