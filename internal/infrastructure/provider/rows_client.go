package provider

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
	"time"
)

// Rows client errors.
var (
	ErrRowQueryFailed = errors.New("row query failed")
	ErrRowWriteFailed = errors.New("row write failed")
	ErrRowNotFound    = errors.New("row not found")
)

// Post is a blog post row owned by the provider's row store.
type Post struct {
	ID        string    `json:"id,omitempty"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

// RowsClientConfig contains configuration for RowsClient.
type RowsClientConfig struct {
	// BaseURL is the base URL of the hosted backend.
	BaseURL string

	// AnonKey is the public API key sent with every row-store request.
	AnonKey string

	// Table is the posts table name. Defaults to "blogs".
	Table string

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client
}

// RowsClient reads and writes blog post rows through the provider's
// filtered row-store API. Every call carries the caller's own access
// token so row-level authorization stays enforced by the provider, not
// by this service.
type RowsClient struct {
	baseURL    string
	anonKey    string
	table      string
	httpClient *http.Client
}

const (
	defaultRowsHTTPTimeout = 30 * time.Second
	defaultPostsTable      = "blogs"
)

// NewRowsClient creates a new row-store client.
func NewRowsClient(cfg RowsClientConfig) *RowsClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultRowsHTTPTimeout,
		}
	}

	table := cfg.Table
	if table == "" {
		table = defaultPostsTable
	}

	return &RowsClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		anonKey:    cfg.AnonKey,
		table:      table,
		httpClient: httpClient,
	}
}

// ListPosts returns the caller's posts, newest first.
func (c *RowsClient) ListPosts(ctx context.Context, accessToken, userID string) ([]Post, error) {
	query := url.Values{}
	query.Set("user_id", "eq."+userID)
	query.Set("order", "created_at.desc")
	query.Set("select", "*")

	req, err := c.newRequest(ctx, http.MethodGet, accessToken, query, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRowQueryFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRowQueryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(ErrRowQueryFailed, resp)
	}

	var posts []Post
	if decodeErr := json.NewDecoder(resp.Body).Decode(&posts); decodeErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrRowQueryFailed, decodeErr)
	}

	return posts, nil
}

// GetPost returns a single post owned by the caller.
func (c *RowsClient) GetPost(ctx context.Context, accessToken, userID, postID string) (*Post, error) {
	query := url.Values{}
	query.Set("id", "eq."+postID)
	query.Set("user_id", "eq."+userID)
	query.Set("select", "*")

	req, err := c.newRequest(ctx, http.MethodGet, accessToken, query, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRowQueryFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRowQueryFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(ErrRowQueryFailed, resp)
	}

	var posts []Post
	if decodeErr := json.NewDecoder(resp.Body).Decode(&posts); decodeErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrRowQueryFailed, decodeErr)
	}
	if len(posts) == 0 {
		return nil, ErrRowNotFound
	}

	return &posts[0], nil
}

// CreatePost inserts a post row for the caller and returns the stored row.
func (c *RowsClient) CreatePost(ctx context.Context, accessToken string, post Post) (*Post, error) {
	body, err := json.Marshal([]Post{post})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRowWriteFailed, err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, accessToken, nil, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRowWriteFailed, err)
	}
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRowWriteFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, c.statusError(ErrRowWriteFailed, resp)
	}

	var created []Post
	if decodeErr := json.NewDecoder(resp.Body).Decode(&created); decodeErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrRowWriteFailed, decodeErr)
	}
	if len(created) == 0 {
		return nil, fmt.Errorf("%w: empty representation", ErrRowWriteFailed)
	}

	return &created[0], nil
}

// UpdatePost patches a post's title and content, scoped to the caller.
func (c *RowsClient) UpdatePost(ctx context.Context, accessToken, userID, postID string, title, content string) (*Post, error) {
	query := url.Values{}
	query.Set("id", "eq."+postID)
	query.Set("user_id", "eq."+userID)

	body, err := json.Marshal(map[string]string{
		"title":   title,
		"content": content,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRowWriteFailed, err)
	}

	req, err := c.newRequest(ctx, http.MethodPatch, accessToken, query, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRowWriteFailed, err)
	}
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRowWriteFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(ErrRowWriteFailed, resp)
	}

	var updated []Post
	if decodeErr := json.NewDecoder(resp.Body).Decode(&updated); decodeErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrRowWriteFailed, decodeErr)
	}
	if len(updated) == 0 {
		// Filter matched nothing: either the row is gone or it belongs
		// to someone else. Row-level security makes both look the same.
		return nil, ErrRowNotFound
	}

	return &updated[0], nil
}

// DeletePost removes a post row, scoped to the caller.
func (c *RowsClient) DeletePost(ctx context.Context, accessToken, userID, postID string) error {
	query := url.Values{}
	query.Set("id", "eq."+postID)
	query.Set("user_id", "eq."+userID)

	req, err := c.newRequest(ctx, http.MethodDelete, accessToken, query, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRowWriteFailed, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRowWriteFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return c.statusError(ErrRowWriteFailed, resp)
	}

	return nil
}

// newRequest builds a row-store request with auth headers and query filters.
func (c *RowsClient) newRequest(ctx context.Context, method, accessToken string, query url.Values, body io.Reader) (*http.Request, error) {
	reqURL := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, c.table)
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, err
	}

	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

// statusError wraps an unexpected row-store response.
func (c *RowsClient) statusError(sentinel error, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("%w: status %d: %s", sentinel, resp.StatusCode, string(body))
}
