// Package netbox provides a lightweight client for the NetBox REST API.
//
// Auth: token-based, via the Authorization: Token <token> header.
// All list endpoints are paginated with the standard count/next/results
// envelope; ListAll walks the pages for callers that need the full set.
package netbox

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultTimeout bounds a single HTTP round trip.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxAttempts is the total attempt budget for transient
	// failures (network errors and 5xx). 4xx is never retried.
	DefaultMaxAttempts = 3
)

// Client is a NetBox REST API client.
type Client struct {
	baseURL     string
	token       string
	maxAttempts int
	httpClient  *http.Client
}

// Options tune client behaviour beyond the required URL and token.
type Options struct {
	VerifySSL   bool
	Timeout     time.Duration
	MaxAttempts int
}

// New creates a client for the NetBox instance at baseURL.
func New(baseURL, token string, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = DefaultMaxAttempts
	}

	transport := &http.Transport{
		TLSClientConfig:     &tls.Config{InsecureSkipVerify: !opts.VerifySSL},
		MaxIdleConns:        16,
		MaxIdleConnsPerHost: 16,
		IdleConnTimeout:     30 * time.Second,
	}

	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		token:       token,
		maxAttempts: attempts,
		httpClient:  &http.Client{Timeout: timeout, Transport: transport},
	}
}

// endpointURL builds /api/<endpoint>/ or /api/<endpoint>/<id>/.
func (c *Client) endpointURL(endpoint string, id int64) string {
	endpoint = strings.Trim(endpoint, "/")
	if id > 0 {
		return fmt.Sprintf("%s/api/%s/%d/", c.baseURL, endpoint, id)
	}
	return fmt.Sprintf("%s/api/%s/", c.baseURL, endpoint)
}

// Get retrieves a single object by id and decodes it into out.
func (c *Client) Get(ctx context.Context, endpoint string, id int64, out any) error {
	return c.do(ctx, http.MethodGet, c.endpointURL(endpoint, id), nil, out)
}

// List fetches one page of a collection.
func (c *Client) List(ctx context.Context, endpoint string, params url.Values) (*Page, error) {
	uri := c.endpointURL(endpoint, 0)
	if len(params) > 0 {
		uri += "?" + params.Encode()
	}
	var page Page
	if err := c.do(ctx, http.MethodGet, uri, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// ListAll walks every page of a collection and returns the concatenated
// results. maxResults caps the collection size: a larger collection is an
// explicit error, never a silent truncation. maxResults <= 0 means no cap.
func (c *Client) ListAll(ctx context.Context, endpoint string, params url.Values, pageSize, maxResults int) ([]json.RawMessage, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	var results []json.RawMessage
	offset := 0
	for {
		q := url.Values{}
		for k, vs := range params {
			q[k] = vs
		}
		q.Set("limit", fmt.Sprint(pageSize))
		q.Set("offset", fmt.Sprint(offset))

		page, err := c.List(ctx, endpoint, q)
		if err != nil {
			return nil, err
		}
		if maxResults > 0 && page.Count > maxResults {
			return nil, fmt.Errorf("netbox: collection %s has %d objects, exceeds the configured limit of %d", endpoint, page.Count, maxResults)
		}

		results = append(results, page.Results...)
		offset += len(page.Results)

		if page.Next == nil || len(page.Results) == 0 || offset >= page.Count {
			return results, nil
		}
	}
}

// Post sends body as JSON to /api/<path>/ and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, c.endpointURL(path, 0), body, out)
}

// do performs one authenticated request with bounded retries. Transient
// failures (transport errors, 5xx) are retried with exponential backoff up
// to maxAttempts; 4xx surfaces immediately as *APIError.
func (c *Client) do(ctx context.Context, method, uri string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("netbox: encode request: %w", err)
		}
	}

	op := func() error {
		return c.doOnce(ctx, method, uri, payload, out)
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(c.maxAttempts-1)),
		ctx,
	)
	return backoff.Retry(op, bo)
}

func (c *Client) doOnce(ctx context.Context, method, uri string, payload []byte, out any) error {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, uri, reader)
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Str("method", method).Str("url", uri).Err(err).Msg("netbox request failed")
		return err // transport error, retryable
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("netbox: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(raw)}
		log.Debug().Str("method", method).Str("url", uri).Int("status", resp.StatusCode).Msg("netbox error response")
		if apiErr.ClientError() {
			return backoff.Permanent(apiErr)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return backoff.Permanent(fmt.Errorf("netbox: decode response: %w\nraw: %s", err, truncate(string(raw), 500)))
	}
	return nil
}

// IsRejection reports whether err is a 4xx API error, and returns it.
func IsRejection(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.ClientError() {
		return apiErr, true
	}
	return nil, false
}
