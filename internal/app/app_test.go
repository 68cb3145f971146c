package app

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibeckermayer/hnpipe/internal/config"
	"github.com/ibeckermayer/hnpipe/internal/logger"
	"github.com/ibeckermayer/hnpipe/internal/metrics"
	"github.com/ibeckermayer/hnpipe/internal/notifier/providers"
	"github.com/ibeckermayer/hnpipe/internal/scheduler"
	"github.com/ibeckermayer/hnpipe/internal/store"
	"github.com/ibeckermayer/hnpipe/internal/types"
)

func newHNServer(t *testing.T) *httptest.Server {
	t.Helper()
	titles := map[int64]string{1: "Go generics in practice", 2: "Why Go is boring", 3: "SQLite everywhere"}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v0/topstories.json" {
			json.NewEncoder(w).Encode([]int64{1, 2, 3})
			return
		}
		var id int64
		if _, err := fmt.Sscanf(r.URL.Path, "/v0/item/%d.json", &id); err != nil {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"id": id, "title": titles[id], "type": "story", "by": "pg"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestApp(t *testing.T) (*App, string) {
	t.Helper()
	dir := t.TempDir()
	srv := newHNServer(t)

	cfg := config.Default()
	cfg.Warehouse.Path = filepath.Join(dir, "hnpipe.db")
	cfg.Snapshot.Path = filepath.Join(dir, "hackernews.sqlite")
	cfg.API.BaseURL = srv.URL
	cfg.Signal.Path = filepath.Join(dir, "frontend", "reload_signal.txt")
	cfg.Schedule.Timezone = "UTC"

	path := filepath.Join(dir, "config.toml")
	require.NoError(t, cfg.Save(path))

	st, err := store.New(cfg.Warehouse.Path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	a, err := New(cfg, path, st, metrics.New(), logger.NewNop())
	require.NoError(t, err)
	return a, path
}

func TestRunPipeline_API(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()

	res, err := a.RunPipeline(ctx, types.VariantAPI)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.IngestTotal)
	assert.Equal(t, int64(3), res.Merge.Total)
	assert.Equal(t, types.WordCount{Word: "go", Count: 2}, res.TopWords[0])

	value, ok, err := providers.NewFileSignal(a.Config().Signal.Path).Read()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, res.Signal, value)
}

func TestRunPipeline_MissingSnapshotFails(t *testing.T) {
	a, _ := newTestApp(t)

	_, err := a.RunPipeline(context.Background(), types.VariantSnapshot)
	require.Error(t, err)

	n, err := a.Store().Count(context.Background(), store.SnapshotIngestTable)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestSchedule_AddsJobPerVariant(t *testing.T) {
	a, _ := newTestApp(t)
	s, err := scheduler.New("UTC", time.Minute, logger.NewNop())
	require.NoError(t, err)

	require.NoError(t, a.Schedule(s))

	var names []string
	for _, j := range s.ListJobs() {
		names = append(names, j.Name)
	}
	assert.ElementsMatch(t, []string{"pipeline_api", "pipeline_snapshot"}, names)
}

func TestReloadConfig(t *testing.T) {
	a, path := newTestApp(t)
	s, err := scheduler.New("UTC", time.Minute, logger.NewNop())
	require.NoError(t, err)
	require.NoError(t, a.Schedule(s))

	cfg := a.Config()
	updated := *cfg
	updated.Signal.Path = filepath.Join(filepath.Dir(path), "other", "reload_signal.txt")
	updated.Schedule.Enabled = false
	require.NoError(t, updated.Save(path))

	require.NoError(t, a.ReloadConfig())
	assert.Equal(t, updated.Signal.Path, a.Config().Signal.Path)
	assert.Empty(t, s.ListJobs())

	res, err := a.RunPipeline(context.Background(), types.VariantAPI)
	require.NoError(t, err)

	value, ok, err := providers.NewFileSignal(updated.Signal.Path).Read()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, res.Signal, value)
}

func TestReloadConfig_InvalidKeepsCurrent(t *testing.T) {
	a, path := newTestApp(t)
	before := a.Config()

	bad := *before
	bad.API.TopStories = 0
	require.NoError(t, bad.Save(path))

	assert.Error(t, a.ReloadConfig())
	assert.Same(t, before, a.Config())
}

func TestDashboard(t *testing.T) {
	a, _ := newTestApp(t)
	srv, err := a.Dashboard()
	require.NoError(t, err)
	require.NotNil(t, srv.Handler())
}
