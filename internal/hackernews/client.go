package hackernews

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultBaseURL = "https://hacker-news.firebaseio.com/v0"

// maxResponseBytes bounds a single API response read.
const maxResponseBytes = 1 << 20

// Item is one Hacker News item as returned by the Firebase API.
type Item struct {
	ID    int    `json:"id"`
	Type  string `json:"type"`
	Title string `json:"title"`
	Score int    `json:"score"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

// Client talks to the Hacker News Firebase API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient builds a Client. baseURL may be empty for the public API.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{httpClient: httpClient, baseURL: baseURL}
}

// TopStories returns the current top-story IDs.
func (c *Client) TopStories(ctx context.Context) ([]int, error) {
	var ids []int
	if err := c.getJSON(ctx, c.baseURL+"/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("fetch top stories: %w", err)
	}
	return ids, nil
}

// Item returns the full record for one story ID.
func (c *Client) Item(ctx context.Context, id int) (Item, error) {
	var item Item
	if err := c.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", c.baseURL, id), &item); err != nil {
		return Item{}, fmt.Errorf("fetch item %d: %w", id, err)
	}
	return item, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal body: %w", err)
	}
	return nil
}
