package source

import (
	"context"

	"github.com/ibeckermayer/hnpipe/internal/hn"
	"github.com/ibeckermayer/hnpipe/internal/logger"
	"github.com/ibeckermayer/hnpipe/internal/types"
)

// APISource fetches the current top stories from the HN API.
type APISource struct {
	client        *hn.Client
	limit         int
	progressEvery int
	log           logger.Logger
}

// NewAPISource creates an adapter fetching up to limit stories.
func NewAPISource(client *hn.Client, limit, progressEvery int, log logger.Logger) *APISource {
	return &APISource{
		client:        client,
		limit:         limit,
		progressEvery: progressEvery,
		log:           logger.Component(log, "api_source"),
	}
}

func (s *APISource) Variant() types.Variant { return types.VariantAPI }

// Fetch requests the ranked id list and then every item, one at a time.
// Any failed request fails the whole batch.
func (s *APISource) Fetch(ctx context.Context) ([]types.Story, error) {
	ids, err := s.client.TopStories(ctx, s.limit)
	if err != nil {
		return nil, err
	}

	stories := make([]types.Story, 0, len(ids))
	for _, id := range ids {
		item, err := s.client.GetItem(ctx, id)
		if err != nil {
			return nil, err
		}
		stories = append(stories, item.Story())

		if s.progressEvery > 0 && len(stories)%s.progressEvery == 0 {
			s.log.Info("fetching items", logger.Int("fetched", len(stories)), logger.Int("total", len(ids)))
		}
	}

	return stories, nil
}
