package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/ibeckermayer/hnpipe/internal/config"
	"github.com/ibeckermayer/hnpipe/internal/dashboard"
	"github.com/ibeckermayer/hnpipe/internal/hn"
	"github.com/ibeckermayer/hnpipe/internal/logger"
	"github.com/ibeckermayer/hnpipe/internal/metrics"
	"github.com/ibeckermayer/hnpipe/internal/notifier"
	"github.com/ibeckermayer/hnpipe/internal/pipeline"
	"github.com/ibeckermayer/hnpipe/internal/scheduler"
	"github.com/ibeckermayer/hnpipe/internal/source"
	"github.com/ibeckermayer/hnpipe/internal/store"
	"github.com/ibeckermayer/hnpipe/internal/types"
)

// App holds the application state.
type App struct {
	mu         sync.RWMutex
	configPath string
	store      *store.Store // immutable after creation
	runner     *pipeline.Runner
	metrics    *metrics.Metrics
	log        logger.Logger

	// Mutable fields - use getSnapshot() for concurrent access.
	config    *config.Config
	scheduler *scheduler.Scheduler
}

// snapshot holds fields that may be replaced by ReloadConfig.
// Use getSnapshot() to obtain a consistent, point-in-time copy.
type snapshot struct {
	config    *config.Config
	scheduler *scheduler.Scheduler
}

// getSnapshot returns a snapshot of mutable fields under read lock.
func (a *App) getSnapshot() snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return snapshot{
		config:    a.config,
		scheduler: a.scheduler,
	}
}

// New wires the pipeline for cfg. configPath is re-read by ReloadConfig.
func New(cfg *config.Config, configPath string, st *store.Store, m *metrics.Metrics, log logger.Logger) (*App, error) {
	sources, n, err := buildSources(cfg, log)
	if err != nil {
		return nil, err
	}

	return &App{
		configPath: configPath,
		store:      st,
		runner:     pipeline.New(st, sources, n, m, log),
		metrics:    m,
		log:        logger.Component(log, "app"),
		config:     cfg,
	}, nil
}

// buildSources creates the adapters and the reload notifier from config.
func buildSources(cfg *config.Config, log logger.Logger) (source.Set, *notifier.Notifier, error) {
	httpClient := &http.Client{Timeout: cfg.API.RequestTimeout.Duration}
	client := hn.NewClient(httpClient, cfg.API.BaseURL)
	api := source.NewAPISource(client, cfg.API.TopStories, cfg.API.ProgressEvery, log)

	snap, err := source.NewSnapshotSource(cfg.Snapshot.Path, cfg.Snapshot.Table, log)
	if err != nil {
		return nil, nil, err
	}

	n, err := notifier.NewFromConfig(cfg.Signal)
	if err != nil {
		return nil, nil, err
	}

	return source.NewSet(api, snap), n, nil
}

// Config returns the active configuration.
func (a *App) Config() *config.Config {
	return a.getSnapshot().config
}

// Store returns the warehouse.
func (a *App) Store() *store.Store {
	return a.store
}

// Runner returns the pipeline runner.
func (a *App) Runner() *pipeline.Runner {
	return a.runner
}

// RunPipeline performs the full ingest -> merge -> aggregate -> signal flow.
func (a *App) RunPipeline(ctx context.Context, variant types.Variant) (*pipeline.Result, error) {
	return a.runner.Run(ctx, variant)
}

// Schedule registers one cron job per source variant on s.
func (a *App) Schedule(s *scheduler.Scheduler) error {
	a.mu.Lock()
	a.scheduler = s
	cfg := a.config
	a.mu.Unlock()

	return a.addJobs(s, cfg)
}

func (a *App) addJobs(s *scheduler.Scheduler, cfg *config.Config) error {
	jobs := map[types.Variant]string{
		types.VariantAPI:      cfg.Schedule.APICron,
		types.VariantSnapshot: cfg.Schedule.SnapshotCron,
	}
	for variant, expr := range jobs {
		v := variant
		err := s.AddPipelineJob(v, expr, func(ctx context.Context) error {
			_, err := a.RunPipeline(ctx, v)
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// Dashboard creates the dashboard server reading the configured signal.
func (a *App) Dashboard() (*dashboard.Server, error) {
	cfg := a.Config()
	reader, err := notifier.NewReaderFromConfig(cfg.Signal)
	if err != nil {
		return nil, err
	}
	return dashboard.New(cfg.Dashboard, a.store, reader, a.metrics, a.log)
}

// ReloadConfig reloads the configuration from disk. Source, signal and
// schedule settings take effect immediately; the warehouse path and the
// dashboard address need a restart.
func (a *App) ReloadConfig() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	sources, n, err := buildSources(cfg, a.log)
	if err != nil {
		return err
	}
	a.runner.Reconfigure(sources, n)

	a.mu.Lock()
	a.config = cfg
	s := a.scheduler
	a.mu.Unlock()

	if s != nil {
		if cfg.Schedule.Enabled {
			if err := a.addJobs(s, cfg); err != nil {
				return err
			}
		} else {
			s.RemoveJob(scheduler.JobName(types.VariantAPI))
			s.RemoveJob(scheduler.JobName(types.VariantSnapshot))
		}
	}

	a.log.Info("configuration reloaded")
	return nil
}
