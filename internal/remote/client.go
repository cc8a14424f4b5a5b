// Package remote implements the HTTP client for the bookmark service API.
// Every call either succeeds or rejects with a structured *Error carrying a
// code, message and retryability classification; transport-level loss of
// connectivity surfaces as ErrNoConnectivity instead.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second

	bookmarksPath = "/api/bookmarks"
)

// Client talks to the remote bookmark service.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewClient creates a client for the service at baseURL authenticating with
// the given bearer token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

// Bookmark is the wire shape of a bookmark record. Optional fields may be
// absent; translation to the domain model supplies defaults.
type Bookmark struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ReadingTime  int       `json:"reading_time"`
	IsArchived   bool      `json:"is_archived"`
	IsMarked     bool      `json:"is_marked"`
	ReadProgress int       `json:"read_progress"`
	Labels       []string  `json:"labels"`
	Created      time.Time `json:"created"`
	Updated      time.Time `json:"updated"`
	Resources    Resources `json:"resources"`

	// Legacy inline body fields still emitted by older server versions.
	Content string `json:"content,omitempty"`
	Body    string `json:"body,omitempty"`
	Text    string `json:"text,omitempty"`

	// Resource is a generic single-resource shape some responses carry
	// instead of the structured Resources block.
	Resource *Resource `json:"resource,omitempty"`
}

// Resources groups the typed resource links of a bookmark.
type Resources struct {
	Article   *Resource `json:"article,omitempty"`
	Image     *Resource `json:"image,omitempty"`
	Thumbnail *Resource `json:"thumbnail,omitempty"`
}

// Resource is a single downloadable asset reference.
type Resource struct {
	Src string `json:"src"`
}

// ListFilters are the server-side list query parameters.
type ListFilters struct {
	IsArchived *bool
	IsFavorite *bool
	IsRead     *bool
	Tags       []string
	Search     string
	Page       int
	PerPage    int
}

// ListResponse is one page of bookmarks.
type ListResponse struct {
	Items      []Bookmark `json:"items"`
	Page       int        `json:"page"`
	TotalPages int        `json:"total_pages"`
	TotalItems int        `json:"total_count"`
}

// CreatePayload creates a new bookmark on the remote service.
type CreatePayload struct {
	URL    string   `json:"url"`
	Title  string   `json:"title,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

// List fetches one page of bookmarks matching the filters.
func (c *Client) List(ctx context.Context, filters ListFilters) (*ListResponse, error) {
	u, err := url.Parse(c.baseURL + bookmarksPath)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	u.RawQuery = encodeFilters(filters).Encode()

	var resp ListResponse
	if err := c.do(ctx, http.MethodGet, u.String(), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Page < 1 {
		resp.Page = 1
	}
	if resp.TotalPages < 1 {
		resp.TotalPages = 1
	}
	return &resp, nil
}

// Get fetches a single bookmark by id.
func (c *Client) Get(ctx context.Context, id string) (*Bookmark, error) {
	var b Bookmark
	if err := c.do(ctx, http.MethodGet, c.baseURL+bookmarksPath+"/"+url.PathEscape(id), nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Create saves a new bookmark.
func (c *Client) Create(ctx context.Context, payload CreatePayload) (*Bookmark, error) {
	var b Bookmark
	if err := c.do(ctx, http.MethodPost, c.baseURL+bookmarksPath, payload, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Update applies a partial wire patch to a bookmark. Keys absent from the
// patch are left untouched by the server.
func (c *Client) Update(ctx context.Context, id string, patch map[string]any) (*Bookmark, error) {
	var b Bookmark
	if err := c.do(ctx, http.MethodPatch, c.baseURL+bookmarksPath+"/"+url.PathEscape(id), patch, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// Delete removes a bookmark.
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, c.baseURL+bookmarksPath+"/"+url.PathEscape(id), nil, nil)
}

// FetchContent downloads the article body referenced by a resource URL.
// Relative src values are resolved against the service base URL.
func (c *Client) FetchContent(ctx context.Context, src string) (string, error) {
	target := src
	if strings.HasPrefix(src, "/") {
		target = c.baseURL + src
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", statusError(resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Code: CodeBadResponse, Message: err.Error(), Timestamp: time.Now()}
	}
	return string(body), nil
}

// encodeFilters translates list filters to the wire query. Read state maps to
// the server's read_status enumeration; an empty tag list is omitted entirely.
func encodeFilters(filters ListFilters) url.Values {
	q := url.Values{}
	if filters.IsArchived != nil {
		q.Set("is_archived", boolParam(*filters.IsArchived))
	}
	if filters.IsFavorite != nil {
		q.Set("is_marked", boolParam(*filters.IsFavorite))
	}
	if filters.IsRead != nil {
		if *filters.IsRead {
			q.Add("read_status", "read")
		} else {
			q.Add("read_status", "unread")
			q.Add("read_status", "reading")
		}
	}
	if len(filters.Tags) > 0 {
		q.Set("labels", strings.Join(filters.Tags, ","))
	}
	if filters.Search != "" {
		q.Set("search", filters.Search)
	}
	if filters.Page > 0 {
		q.Set("page", fmt.Sprintf("%d", filters.Page))
	}
	if filters.PerPage > 0 {
		q.Set("per_page", fmt.Sprintf("%d", filters.PerPage))
	}
	return q
}

func boolParam(v bool) string {
	if v {
		return "true"
	}
	return "false"
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
}

func (c *Client) do(ctx context.Context, method, target string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{
			Code:       CodeBadResponse,
			Message:    fmt.Sprintf("decode response: %v", err),
			StatusCode: resp.StatusCode,
			Timestamp:  time.Now(),
		}
	}
	return nil
}

// statusError maps an HTTP error response to a structured Error. Rate limits
// and server errors are retryable; client errors are not.
func statusError(resp *http.Response) *Error {
	msg := readErrorMessage(resp)

	e := &Error{
		Message:    msg,
		StatusCode: resp.StatusCode,
		Timestamp:  time.Now(),
	}
	switch {
	case resp.StatusCode == http.StatusBadRequest:
		e.Code = CodeBadRequest
	case resp.StatusCode == http.StatusUnauthorized:
		e.Code = CodeUnauthorized
	case resp.StatusCode == http.StatusForbidden:
		e.Code = CodeForbidden
	case resp.StatusCode == http.StatusNotFound:
		e.Code = CodeNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		e.Code = CodeRateLimited
		e.Retryable = true
	case resp.StatusCode >= 500:
		e.Code = CodeServerError
		e.Retryable = true
	default:
		e.Code = CodeBadResponse
	}
	return e
}

func readErrorMessage(resp *http.Response) string {
	var payload struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err == nil && len(data) > 0 {
		if json.Unmarshal(data, &payload) == nil {
			if payload.Message != "" {
				return payload.Message
			}
			if payload.Error != "" {
				return payload.Error
			}
		}
	}
	return fmt.Sprintf("unexpected status %d", resp.StatusCode)
}

// classifyTransportError distinguishes timeouts (transient, retryable) from
// connectivity loss (short-circuits before any retry).
func classifyTransportError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &Error{
			Code:      CodeTimeout,
			Message:   err.Error(),
			Retryable: true,
			Timestamp: time.Now(),
		}
	}
	return fmt.Errorf("%w: %s", ErrNoConnectivity, err.Error())
}
