package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/hnpipe/internal/types"
)

func TestTitles_BeforeMerge(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Titles(context.Background())
	assert.ErrorIs(t, err, ErrNoMergedTable)
}

func TestTitles_InsertionOrder(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	appendTo(t, s, APIIngestTable, story(1, "First"), story(2, "Second"))
	appendTo(t, s, SnapshotIngestTable, story(3, "Third"))
	_, err := s.Merge(ctx)
	require.NoError(t, err)

	titles, err := s.Titles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"First", "Second", "Third"}, titles)
}

func TestReplaceTopWords_Overwrites(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	words, err := s.TopWords(ctx)
	require.NoError(t, err)
	assert.Empty(t, words)

	require.NoError(t, s.ReplaceTopWords(ctx, []types.WordCount{
		{Word: "go", Count: 5}, {Word: "rust", Count: 4}, {Word: "zig", Count: 1},
	}))
	require.NoError(t, s.ReplaceTopWords(ctx, []types.WordCount{
		{Word: "python", Count: 9}, {Word: "go", Count: 2},
	}))

	words, err = s.TopWords(ctx)
	require.NoError(t, err)
	assert.Equal(t, []types.WordCount{{Word: "python", Count: 9}, {Word: "go", Count: 2}}, words)
	assert.Equal(t, int64(2), mustCount(t, s, TopWordsTable))
}

func TestMaterializations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.LatestMaterialization(ctx, StepMerge)
	assert.ErrorIs(t, err, ErrNoMaterialization)

	created := time.Date(2026, 10, 18, 9, 30, 0, 0, time.UTC)
	for i, step := range []StepName{StepAPIIngest, StepMerge, StepMerge} {
		m := &Materialization{
			RunID:     "run-1",
			Variant:   "api",
			Step:      step,
			Metadata:  map[string]any{"total_num_records": i + 1},
			Preview:   "| id |",
			CreatedAt: created.Add(time.Duration(i) * time.Minute),
		}
		id, err := s.SaveMaterialization(ctx, m)
		require.NoError(t, err)
		assert.Equal(t, id, m.ID)
	}

	latest, err := s.LatestMaterialization(ctx, StepMerge)
	require.NoError(t, err)
	assert.Equal(t, float64(3), latest.Metadata["total_num_records"])
	assert.True(t, created.Add(2*time.Minute).Equal(latest.CreatedAt))

	recent, err := s.RecentMaterializations(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Greater(t, recent[0].ID, recent[1].ID)
	assert.Equal(t, "| id |", recent[0].Preview)
}
