// Package feed talks to the activity feed service.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	apperrors "github.com/utafrali/LevelUp/pkg/errors"
	"github.com/utafrali/LevelUp/pkg/httpclient"
	"github.com/utafrali/LevelUp/services/mission/internal/domain"
)

const serviceName = "feed-service"

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// CircuitOpenFallback replaces the breaker's raw error while the feed service
// circuit is open.
func CircuitOpenFallback(_ context.Context, _ error) (*http.Response, error) {
	return nil, apperrors.ServiceUnavailable("feed service is temporarily unavailable")
}

// Client creates and removes feed entries.
type Client struct {
	http    HTTPDoer
	baseURL string
}

// NewClient creates a feed client for the service at baseURL.
func NewClient(doer HTTPDoer, baseURL string) *Client {
	return &Client{http: doer, baseURL: baseURL}
}

type createEntryResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// CreateEntry posts a feed entry and returns its id.
func (c *Client) CreateEntry(ctx context.Context, entry domain.FeedEntry) (string, error) {
	body, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshal feed entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/feeds", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create feed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", entry.UserID)

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return "", fmt.Errorf("call feed service: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return "", httpclient.ParseResponseError(resp, serviceName)
	}
	defer func() { _ = resp.Body.Close() }()

	var out createEntryResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode feed response: %w", err)
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("feed service returned no entry id")
	}

	return out.Data.ID, nil
}

// DeleteEntry removes a feed entry. An entry that no longer exists counts as removed.
func (c *Client) DeleteEntry(ctx context.Context, id string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/v1/feeds/"+url.PathEscape(id), http.NoBody)
	if err != nil {
		return fmt.Errorf("create feed delete request: %w", err)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call feed service: %w", err)
	}
	if resp.StatusCode >= 300 {
		err := httpclient.ParseResponseError(resp, serviceName)
		if resp.StatusCode == http.StatusNotFound || errors.Is(err, apperrors.ErrNotFound) {
			return nil
		}
		return err
	}
	_ = resp.Body.Close()

	return nil
}
