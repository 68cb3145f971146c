package hn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ibeckermayer/hnpipe/internal/types"
)

const BaseURL = "https://hacker-news.firebaseio.com"

// Item represents a Hacker News item as returned by the v0 API.
type Item struct {
	ID          int64   `json:"id"`
	Type        string  `json:"type"`
	By          string  `json:"by"`
	Time        int64   `json:"time"`
	Title       *string `json:"title"`
	URL         string  `json:"url"`
	Score       int     `json:"score"`
	Descendants int     `json:"descendants"`
	Kids        []int64 `json:"kids"`
	Text        string  `json:"text"`
}

// Story converts the item to the pipeline's story shape.
func (i Item) Story() types.Story {
	st := types.Story{
		ID:          i.ID,
		Kids:        i.Kids,
		By:          i.By,
		Time:        i.Time,
		Score:       i.Score,
		URL:         i.URL,
		Type:        i.Type,
		Descendants: i.Descendants,
		Text:        i.Text,
	}
	if i.Title == nil {
		st.TitleMissing = true
	} else {
		st.Title = *i.Title
	}
	return st
}

// Client fetches data from the HN API.
type Client struct {
	client  *http.Client
	baseURL string
}

// NewClient creates a client against baseURL. An empty baseURL means BaseURL,
// a nil httpClient means http.DefaultClient.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = BaseURL
	}
	return &Client{
		client:  httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

// TopStories fetches the ranked top story IDs, returning at most limit IDs.
// A non-positive limit returns the full list.
func (c *Client) TopStories(ctx context.Context, limit int) ([]int64, error) {
	var ids []int64
	if err := c.getJSON(ctx, c.baseURL+"/v0/topstories.json", &ids); err != nil {
		return nil, fmt.Errorf("fetching top stories: %w", err)
	}

	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids, nil
}

// GetItem fetches a single item by ID.
func (c *Client) GetItem(ctx context.Context, id int64) (*Item, error) {
	var item Item
	if err := c.getJSON(ctx, fmt.Sprintf("%s/v0/item/%d.json", c.baseURL, id), &item); err != nil {
		return nil, fmt.Errorf("fetching item %d: %w", id, err)
	}
	return &item, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
