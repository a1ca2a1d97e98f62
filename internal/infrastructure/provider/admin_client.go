package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/lllypuk/blogify/internal/directory"
)

// AdminClientConfig contains configuration for AdminClient.
type AdminClientConfig struct {
	// BaseURL is the base URL of the hosted backend (e.g. https://xyz.provider.co).
	BaseURL string

	// ServiceRoleKey is the privileged server-only API key. It must never
	// reach a browser; the admin directory endpoint rejects the anon key.
	ServiceRoleKey string

	// HTTPClient is an optional custom HTTP client.
	HTTPClient *http.Client
}

// AdminClient consumes the provider's privileged admin API.
// It implements directory.Lister.
type AdminClient struct {
	config     AdminClientConfig
	httpClient *http.Client
}

const defaultAdminHTTPTimeout = 30 * time.Second

// NewAdminClient creates a new admin API client.
func NewAdminClient(config AdminClientConfig) *AdminClient {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout: defaultAdminHTTPTimeout,
		}
	}

	return &AdminClient{
		config: AdminClientConfig{
			BaseURL:        strings.TrimSuffix(config.BaseURL, "/"),
			ServiceRoleKey: config.ServiceRoleKey,
		},
		httpClient: httpClient,
	}
}

// ListUsers returns one page of the account directory.
// page is 1-based, perPage is the requested page size.
func (c *AdminClient) ListUsers(ctx context.Context, page, perPage int) (*directory.Page, error) {
	reqURL := fmt.Sprintf("%s/auth/v1/admin/users?page=%d&per_page=%d",
		c.config.BaseURL, page, perPage)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setAuthHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list users request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("list users failed with status %d: %s", resp.StatusCode, string(body))
	}

	var pageResp directory.Page
	decodeErr := json.NewDecoder(resp.Body).Decode(&pageResp)
	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode users response: %w", decodeErr)
	}

	return &pageResp, nil
}

// setAuthHeaders attaches the service-role credentials to an admin request.
func (c *AdminClient) setAuthHeaders(req *http.Request) {
	req.Header.Set("apikey", c.config.ServiceRoleKey)
	req.Header.Set("Authorization", "Bearer "+c.config.ServiceRoleKey)
}
