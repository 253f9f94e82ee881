// Package client implements a small generic REST API client shared by the
// external-provider integrations.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const userAgent = "allure/0.1"

// Client holds configuration for the REST client and provides methods that
// interact with a JSON API.
type Client struct {
	BaseURL *url.URL

	client *http.Client
}

// New returns a new REST API client. If httpClient is nil,
// http.DefaultClient is used. For authenticated APIs, pass an http.Client
// that performs the authentication (such as one built by golang.org/x/oauth2).
func New(baseURL *url.URL, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{BaseURL: baseURL, client: httpClient}
}

// NewRequest creates an HTTP request. A non-nil body is JSON encoded.
func (c *Client) NewRequest(ctx context.Context, method, urlStr string, body any) (*http.Request, error) {
	u, err := c.BaseURL.Parse(urlStr)
	if err != nil {
		return nil, err
	}

	var buf io.ReadWriter
	if body != nil {
		buf = new(bytes.Buffer)
		enc := json.NewEncoder(buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(body); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), buf)
	if err != nil {
		return nil, err
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}

// Do sends a request and decodes the JSON response body into v when both
// are non-nil. Any non-2xx status is returned as an error.
func (c *Client) Do(req *http.Request, v any) (*http.Response, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return resp, err
	}

	if resp.StatusCode >= 300 {
		return resp, fmt.Errorf("%s: %s", resp.Status, bytes.TrimSpace(data))
	}

	if v != nil && len(data) != 0 {
		if err := json.Unmarshal(data, v); err != nil && err != io.EOF {
			return resp, err
		}
	}

	return resp, nil
}
