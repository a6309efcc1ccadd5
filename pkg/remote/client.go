// Package remote is the HTTP client for the map cache backend.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"tableflip.dev/cachemap/pkg/asset"
)

const (
	pathTagList    = "/eros/tags/list"
	pathTagsFor    = "/eros/tags/for_image"
	pathTagAdd     = "/eros/tags/add_to_image"
	pathTagRemove  = "/eros/tags/remove_from_image"
	pathAutoTag    = "/eros/tags/auto_tag"
	pathFetchFiles = "/eros/cache/fetch_files"
	pathDeleteMap  = "/eros/cache/delete_map"
	pathViewImage  = "/eros/cache/view_image"

	// maxErrorBody bounds how much of a failed response is kept in errors.
	maxErrorBody = 512
)

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("remote: %s %s returned status %d", e.Method, e.Path, e.Code)
	}
	return fmt.Sprintf("remote: %s %s returned status %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// ErrBaseURL is returned when the client has no usable server address.
var ErrBaseURL = errors.New("remote: base url required")

// TagCount is one entry of the global tag index.
type TagCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DeleteRequest describes a map deletion.
type DeleteRequest struct {
	Basename  string `json:"basename"`
	DeleteAll bool   `json:"delete_all"`
	Subfolder string `json:"subfolder,omitempty"`
	CachePath string `json:"cache_path,omitempty"`
}

// DeleteResult is the backend's answer to a deletion.
type DeleteResult struct {
	Success bool     `json:"success"`
	Deleted []string `json:"deleted"`
	Error   string   `json:"error,omitempty"`
}

// PreviewRequest addresses one image for display.
type PreviewRequest struct {
	StoragePath string
	Category    asset.Category
	Filename    string
	// CacheBust appends a timestamp token so intermediaries do not serve a
	// stale image after the file was rewritten.
	CacheBust bool
}

// Client talks to the backend. The zero value is not usable; use NewClient.
type Client struct {
	BaseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit caps outbound requests per second. Zero or negative disables
// the limiter.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// NewClient creates a client for the backend rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(20), 10),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListTags fetches the global tag index.
func (c *Client) ListTags(ctx context.Context) ([]TagCount, error) {
	var resp struct {
		Tags []TagCount `json:"tags"`
	}
	if err := c.getJSON(ctx, pathTagList, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Tags, nil
}

// ListFiles lists the image files of one category below storagePath.
func (c *Client) ListFiles(ctx context.Context, storagePath string, category asset.Category) ([]string, error) {
	q := url.Values{}
	q.Set("path", storagePath)
	q.Set("subfolder", string(category))
	var resp struct {
		Files []string `json:"files"`
	}
	if err := c.getJSON(ctx, pathFetchFiles, q, &resp); err != nil {
		return nil, err
	}
	return resp.Files, nil
}

// TagsFor fetches the tags of one basename.
func (c *Client) TagsFor(ctx context.Context, basename string) ([]string, error) {
	q := url.Values{}
	q.Set("path", basename)
	var resp struct {
		Tags []string `json:"tags"`
	}
	if err := c.getJSON(ctx, pathTagsFor, q, &resp); err != nil {
		return nil, err
	}
	return resp.Tags, nil
}

// AddTag attaches tag to basename.
func (c *Client) AddTag(ctx context.Context, basename, tag string) error {
	body := map[string]string{"path": basename, "tag": tag}
	return c.postJSON(ctx, pathTagAdd, body, nil)
}

// RemoveTag detaches tag from basename.
func (c *Client) RemoveTag(ctx context.Context, basename, tag string) error {
	body := map[string]string{"path": basename, "tag": tag}
	return c.postJSON(ctx, pathTagRemove, body, nil)
}

// AutoTag asks the backend to generate tags for basename. The response is
// backend defined and returned raw.
func (c *Client) AutoTag(ctx context.Context, basename string) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.postJSON(ctx, pathAutoTag, map[string]string{"path": basename}, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// DeleteMap requests deletion of one map (or all maps sharing the basename).
// A backend-reported failure is returned in the result, not as an error.
func (c *Client) DeleteMap(ctx context.Context, req DeleteRequest) (DeleteResult, error) {
	var res DeleteResult
	if err := c.postJSON(ctx, pathDeleteMap, req, &res); err != nil {
		return DeleteResult{}, err
	}
	return res, nil
}

// PreviewURL builds the image URL for req.
func (c *Client) PreviewURL(req PreviewRequest) string {
	q := url.Values{}
	q.Set("path", req.StoragePath)
	q.Set("subfolder", string(req.Category))
	q.Set("filename", req.Filename)
	if req.CacheBust {
		q.Set("t", strconv.FormatInt(c.now().UnixMilli(), 10))
	}
	return c.BaseURL + pathViewImage + "?" + q.Encode()
}

// Preview downloads the image bytes for req.
func (c *Client) Preview(ctx context.Context, req PreviewRequest) ([]byte, error) {
	if c.BaseURL == "" {
		return nil, ErrBaseURL
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.PreviewURL(req), nil)
	if err != nil {
		return nil, fmt.Errorf("remote: build preview request: %w", err)
	}
	resp, err := c.do(ctx, httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("remote: read preview: %w", err)
	}
	return data, nil
}

func (c *Client) getJSON(ctx context.Context, p string, q url.Values, out any) error {
	if c.BaseURL == "" {
		return ErrBaseURL
	}
	u := c.BaseURL + p
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("remote: build request %s: %w", p, err)
	}
	req.Header.Set("Accept", "application/json")
	return c.roundTrip(ctx, req, out)
}

func (c *Client) postJSON(ctx context.Context, p string, body any, out any) error {
	if c.BaseURL == "" {
		return ErrBaseURL
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("remote: encode %s: %w", p, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+p, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("remote: build request %s: %w", p, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return c.roundTrip(ctx, req, out)
}

func (c *Client) roundTrip(ctx context.Context, req *http.Request, out any) error {
	resp, err := c.do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("remote: decode %s: %w", req.URL.Path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("remote: rate limit: %w", err)
		}
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote: %s %s: %w", req.Method, req.URL.Path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
		return nil, &StatusError{
			Method: req.Method,
			Path:   req.URL.Path,
			Code:   resp.StatusCode,
			Body:   strings.TrimSpace(string(body)),
		}
	}
	return resp, nil
}
