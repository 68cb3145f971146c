package hn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.Client(), server.URL)
}

func TestTopStories_Limit(t *testing.T) {
	ids := []int64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/topstories.json", r.URL.Path)
		json.NewEncoder(w).Encode(ids)
	})

	got, err := client.TopStories(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, ids[:5], got)
}

func TestTopStories_LimitLargerThanAvailable(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]int64{1, 2, 3})
	})

	got, err := client.TopStories(context.Background(), 100)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestTopStories_ServerError(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := client.TopStories(context.Background(), 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestTopStories_InvalidJSON(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	})

	_, err := client.TopStories(context.Background(), 10)
	require.Error(t, err)
}

func TestGetItem(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v0/item/8863.json", r.URL.Path)
		w.Write([]byte(`{"by":"dhouston","descendants":71,"id":8863,"kids":[8952,9224],` +
			`"score":111,"time":1175714200,"title":"My YC app: Dropbox","type":"story",` +
			`"url":"http://www.getdropbox.com/u/2/screencast.html"}`))
	})

	item, err := client.GetItem(context.Background(), 8863)
	require.NoError(t, err)

	s := item.Story()
	assert.Equal(t, int64(8863), s.ID)
	assert.Equal(t, "My YC app: Dropbox", s.Title)
	assert.Equal(t, []int64{8952, 9224}, s.Kids)
	assert.Equal(t, "dhouston", s.By)
	assert.Equal(t, 111, s.Score)
	assert.Equal(t, 71, s.Descendants)
	assert.Equal(t, "story", s.Type)
}

func TestGetItem_NullBody(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	})

	item, err := client.GetItem(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, item.Title)
	assert.True(t, item.Story().TitleMissing)
}

func TestItemStory_EmptyTitleIsNotMissing(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":3,"title":"","type":"story"}`))
	})

	item, err := client.GetItem(context.Background(), 3)
	require.NoError(t, err)

	s := item.Story()
	assert.False(t, s.TitleMissing)
	assert.Equal(t, "", s.Title)
}

func TestGetItem_NotFound(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetItem(context.Background(), 99999)
	require.Error(t, err)
}

func TestGetItem_ContextCancelled(t *testing.T) {
	client := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":1}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetItem(ctx, 1)
	require.Error(t, err)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(nil, "")
	assert.Equal(t, BaseURL, c.baseURL)
	assert.Equal(t, http.DefaultClient, c.client)

	c = NewClient(nil, "http://example.com/")
	assert.Equal(t, "http://example.com", c.baseURL)
}
