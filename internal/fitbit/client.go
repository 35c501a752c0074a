// Package fitbit implements the subset of the Fitbit web API used by the
// sync loops: activity log listing, the activity taxonomy, TCX downloads,
// webhook subscriptions and OAuth2 token management.
package fitbit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the production API host.
const DefaultBaseURL = "https://api.fitbit.com"

// activityLogPageSize is the maximum the list endpoint allows per request.
// Only the first page is ever fetched, see the history loop.
const activityLogPageSize = 100

// Client calls the Fitbit web API on behalf of one user.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// ClientOption configures optional behaviour for a Client.
type ClientOption func(*Client)

// WithBaseURL points the client at a different API host.
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// NewClient constructs a Client authenticated with the given access token.
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    DefaultBaseURL,
		token:      token,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ActivityLogsAfter lists activities started after the given instant,
// oldest first. A single page is returned.
func (c *Client) ActivityLogsAfter(ctx context.Context, after time.Time) ([]ActivityLog, error) {
	query := url.Values{}
	query.Set("afterDate", after.UTC().Format("2006-01-02T15:04:05"))
	query.Set("sort", "asc")
	query.Set("limit", strconv.Itoa(activityLogPageSize))
	query.Set("offset", "0")

	var list activityLogList
	if err := c.get(ctx, "/1/user/-/activities/list.json?"+query.Encode(), &list); err != nil {
		return nil, err
	}
	return list.Activities, nil
}

// ActivityLogsOn lists activities that started on the given calendar day.
// The list endpoint only filters on a lower bound, so the result is
// narrowed client side.
func (c *Client) ActivityLogsOn(ctx context.Context, day time.Time) ([]ActivityLog, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	logs, err := c.ActivityLogsAfter(ctx, start)
	if err != nil {
		return nil, err
	}

	end := start.Add(24 * time.Hour)
	onDay := make([]ActivityLog, 0, len(logs))
	for _, entry := range logs {
		if entry.StartTime.Before(start) || !entry.StartTime.Before(end) {
			continue
		}
		onDay = append(onDay, entry)
	}
	return onDay, nil
}

// ActivityCategories fetches the full activity taxonomy.
func (c *Client) ActivityCategories(ctx context.Context) ([]Category, error) {
	var list categoryList
	if err := c.get(ctx, "/1/activities.json", &list); err != nil {
		return nil, err
	}
	return list.Categories, nil
}

// TCX downloads the trajectory document behind an activity's TCX link. A
// missing link yields no document and no error.
func (c *Client) TCX(ctx context.Context, link string) ([]byte, error) {
	if link == "" {
		return nil, nil
	}

	resp, err := c.do(ctx, http.MethodGet, link)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// Subscriptions lists the webhook subscriptions registered on the user's
// activities collection.
func (c *Client) Subscriptions(ctx context.Context) ([]Subscription, error) {
	var list subscriptionList
	if err := c.get(ctx, "/1/user/-/activities/apiSubscriptions.json", &list); err != nil {
		return nil, err
	}
	return list.APISubscriptions, nil
}

// AddSubscription registers a webhook subscription with the given
// identifier on the user's activities collection.
func (c *Client) AddSubscription(ctx context.Context, subscriptionID string) (Subscription, error) {
	path := "/1/user/-/activities/apiSubscriptions/" + url.PathEscape(subscriptionID) + ".json"

	resp, err := c.do(ctx, http.MethodPost, c.baseURL+path)
	if err != nil {
		return Subscription{}, err
	}
	defer resp.Body.Close()

	var sub Subscription
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return Subscription{}, fmt.Errorf("decode subscription response: %w", err)
	}
	return sub, nil
}

func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, c.baseURL+path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, rawURL string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := parseRetryAfter(resp, time.Now().UTC())
		resp.Body.Close()
		return nil, &RateLimitError{RetryAfter: retryAfter}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: unexpected status %d: %s", method, rawURL, resp.StatusCode, body)
	}
	return resp, nil
}

// parseRetryAfter turns a 429 response into the instant calls may resume.
// Fitbit sends the cooldown in seconds in the Retry-After header; without
// it a full hour is assumed, matching the provider's quota window.
func parseRetryAfter(resp *http.Response, now time.Time) time.Time {
	if raw := resp.Header.Get("Retry-After"); raw != "" {
		if seconds, err := strconv.Atoi(raw); err == nil && seconds >= 0 {
			return now.Add(time.Duration(seconds) * time.Second)
		}
	}
	return now.Add(time.Hour)
}
