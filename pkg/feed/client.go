// Package feed fetches health headlines from a JSON news feed.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTimeout   = 5 * time.Second
	maxErrorBodySize = 4096
	maxFeedBodySize  = 4 << 20
)

// ErrUnauthorized indicates the feed rejected the configured API key.
var ErrUnauthorized = errors.New("news feed unauthorized")

// ErrInvalidResponse indicates the feed returned a malformed payload.
var ErrInvalidResponse = errors.New("news feed invalid response")

// ErrNotFound indicates the feed URL does not exist.
var ErrNotFound = errors.New("news feed not found")

// Client polls a single feed URL.
type Client struct {
	url    string
	apiKey string
	client *http.Client
	now    func() time.Time
}

// Item is one headline from the feed.
type Item struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Summary     string    `json:"summary"`
	PublishedAt time.Time `json:"published_at"`
}

// NewClient creates a feed client. apiKey, when set, is sent as a bearer token.
func NewClient(feedURL, apiKey string, client *http.Client) (*Client, error) {
	trimmed := strings.TrimSpace(feedURL)
	if trimmed == "" {
		return nil, errors.New("news feed url required")
	}
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	} else if client.Timeout == 0 {
		client.Timeout = defaultTimeout
	}
	return &Client{
		url:    trimmed,
		apiKey: strings.TrimSpace(apiKey),
		client: client,
		now:    time.Now,
	}, nil
}

// Fetch downloads the feed. The payload may be a bare array of items or an
// object with an "items" array. Items without a title or URL are dropped.
func (c *Client) Fetch(ctx context.Context) ([]Item, error) {
	if c == nil {
		return nil, errors.New("news feed client not initialised")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send feed request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, c.errorForStatus(resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBodySize))
	if err != nil {
		return nil, fmt.Errorf("read feed body: %w", err)
	}
	items, err := decodeItems(body)
	if err != nil {
		return nil, err
	}
	return c.normalise(items), nil
}

func decodeItems(body []byte) ([]Item, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidResponse)
	}
	var items []Item
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
		}
		return items, nil
	}
	var envelope struct {
		Items []Item `json:"items"`
	}
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return envelope.Items, nil
}

func (c *Client) normalise(items []Item) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		item.Title = strings.TrimSpace(item.Title)
		item.URL = strings.TrimSpace(item.URL)
		if item.Title == "" || item.URL == "" {
			continue
		}
		item.Source = strings.TrimSpace(item.Source)
		item.Summary = strings.TrimSpace(item.Summary)
		if item.PublishedAt.IsZero() {
			item.PublishedAt = c.now().UTC()
		} else {
			item.PublishedAt = item.PublishedAt.UTC()
		}
		out = append(out, item)
	}
	return out
}

func (c *Client) errorForStatus(resp *http.Response) error {
	limited := io.LimitReader(resp.Body, maxErrorBodySize)
	buf, _ := io.ReadAll(limited)
	summary := strings.TrimSpace(string(buf))
	if summary == "" {
		summary = resp.Status
	}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, summary)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, summary)
	default:
		return fmt.Errorf("feed request failed: %s", summary)
	}
}
