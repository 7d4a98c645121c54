package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Authorizer returns the Authorization header value for a request.
type Authorizer func(ctx context.Context) (string, error)

// StaticAuthorizer always sends the same header, e.g. a SAS token.
func StaticAuthorizer(header string) Authorizer {
	return func(context.Context) (string, error) { return header, nil }
}

// BearerAuthorizer fetches a bearer token for aud on every request.
func BearerAuthorizer(tokens TokenProvider, aud Audience) Authorizer {
	return func(ctx context.Context) (string, error) {
		tok, err := tokens.Token(ctx, aud)
		if err != nil {
			return "", err
		}
		return "Bearer " + tok, nil
	}
}

// StatusError is returned for any non-2xx data plane response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.URL, e.StatusCode, truncate(e.Body, 200))
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

// Client is a shared HTTP client for the Central, IoT Hub and DPS data
// planes. Every request carries api-version and an Authorization header.
type Client struct {
	baseURL    string
	apiVersion string
	authorize  Authorizer
	httpClient *http.Client
}

// NewClient creates a Client for baseURL. A nil httpClient uses
// http.DefaultClient.
func NewClient(baseURL, apiVersion string, authorize Authorizer, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiVersion: apiVersion,
		authorize:  authorize,
		httpClient: httpClient,
	}
}

// Response is a raw data plane response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Do sends a request. Relative paths are joined to the base URL, absolute
// URLs (next links) are used as-is. Non-2xx responses return a StatusError
// together with the response.
func (c *Client) Do(ctx context.Context, method, path string, params url.Values, payload interface{}, header http.Header) (*Response, error) {
	u, err := c.resolve(path, params)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.authorize != nil {
		auth, err := c.authorize(ctx)
		if err != nil {
			return nil, fmt.Errorf("authorizing %s %s: %w", method, path, err)
		}
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return out, &StatusError{Method: method, URL: path, StatusCode: resp.StatusCode, Body: string(body)}
	}
	return out, nil
}

func (c *Client) resolve(path string, params url.Values) (string, error) {
	raw := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		raw = c.baseURL + "/" + strings.TrimPrefix(path, "/")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", raw, err)
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	if c.apiVersion != "" && q.Get("api-version") == "" {
		q.Set("api-version", c.apiVersion)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Get performs an authenticated GET request and returns the response body.
func (c *Client) Get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	resp, err := c.Do(ctx, http.MethodGet, path, params, nil, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GetJSON performs an authenticated GET and unmarshals the response into dest.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, dest interface{}) error {
	body, err := c.Get(ctx, path, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("parsing response of %s: %w", path, err)
	}
	return nil
}

// pagedResponse is the {value, nextLink} envelope of Central list calls.
type pagedResponse struct {
	Value    []json.RawMessage `json:"value"`
	NextLink string            `json:"nextLink"`
}

// GetAll fetches all pages of a list endpoint by following nextLink.
func (c *Client) GetAll(ctx context.Context, path string) ([]json.RawMessage, error) {
	var all []json.RawMessage
	current := path
	for current != "" {
		body, err := c.Get(ctx, current, nil)
		if err != nil {
			return nil, err
		}
		var page pagedResponse
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("parsing response: %w", err)
		}
		all = append(all, page.Value...)
		current = page.NextLink
	}
	return all, nil
}

// Post performs an authenticated POST request with a JSON body.
func (c *Client) Post(ctx context.Context, path string, payload interface{}) ([]byte, int, error) {
	resp, err := c.Do(ctx, http.MethodPost, path, nil, payload, nil)
	return body(resp), status(resp), err
}

// Put performs an authenticated PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, path string, payload interface{}) ([]byte, int, error) {
	resp, err := c.Do(ctx, http.MethodPut, path, nil, payload, nil)
	return body(resp), status(resp), err
}

// Delete performs an authenticated DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	_, err := c.Do(ctx, http.MethodDelete, path, nil, nil, nil)
	if IsStatus(err, http.StatusNotFound) {
		return nil // already gone
	}
	return err
}

func body(r *Response) []byte {
	if r == nil {
		return nil
	}
	return r.Body
}

func status(r *Response) int {
	if r == nil {
		return 0
	}
	return r.StatusCode
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
