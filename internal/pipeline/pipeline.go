// Package pipeline runs the ingest → merge → aggregate → signal chain.
package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ibeckermayer/hnpipe/internal/logger"
	"github.com/ibeckermayer/hnpipe/internal/metrics"
	"github.com/ibeckermayer/hnpipe/internal/notifier"
	"github.com/ibeckermayer/hnpipe/internal/source"
	"github.com/ibeckermayer/hnpipe/internal/store"
	"github.com/ibeckermayer/hnpipe/internal/topwords"
	"github.com/ibeckermayer/hnpipe/internal/types"
)

// ManualVariant tags materializations of steps run on their own.
const ManualVariant = "manual"

// Warehouse is the storage the runner needs.
type Warehouse interface {
	AppendTagged(ctx context.Context, table string, tagged []types.IngestedStory) (int64, error)
	Merge(ctx context.Context) (store.MergeResult, error)
	Titles(ctx context.Context) ([]string, error)
	ReplaceTopWords(ctx context.Context, words []types.WordCount) error
	SaveMaterialization(ctx context.Context, m *store.Materialization) (int64, error)
}

// Runner executes pipeline runs. Runs are serialized: the merge is a
// read-then-write over common_table and assumes a single writer.
type Runner struct {
	mu       sync.Mutex
	store    Warehouse
	sources  source.Set
	notifier *notifier.Notifier
	metrics  *metrics.Metrics
	log      logger.Logger
	limit    int
	now      func() time.Time
}

// Result summarizes one full run.
type Result struct {
	RunID       string
	Variant     types.Variant
	IngestTotal int64
	Merge       store.MergeResult
	TopWords    []types.WordCount
	Signal      string
	Duration    time.Duration
}

// New creates a Runner.
func New(st Warehouse, sources source.Set, n *notifier.Notifier, m *metrics.Metrics, log logger.Logger) *Runner {
	return &Runner{
		store:    st,
		sources:  sources,
		notifier: n,
		metrics:  m,
		log:      logger.Component(log, "pipeline"),
		limit:    topwords.DefaultLimit,
		now:      time.Now,
	}
}

// Reconfigure swaps the sources and notifier. It waits for a running run to finish.
func (r *Runner) Reconfigure(sources source.Set, n *notifier.Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sources = sources
	r.notifier = n
}

// Run executes the full chain for one variant.
func (r *Runner) Run(ctx context.Context, variant types.Variant) (*Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := &Result{RunID: uuid.NewString(), Variant: variant}
	log := r.log.With(logger.String("run_id", res.RunID), logger.String("variant", string(variant)))
	log.Info("run started")
	start := time.Now()

	err := r.run(ctx, res, log)
	res.Duration = time.Since(start)

	status := "success"
	if err != nil {
		status = "failure"
		log.Error("run failed", logger.Error(err), logger.Duration("duration", res.Duration))
	} else {
		log.Info("run completed",
			logger.Int64("merged_total", res.Merge.Total),
			logger.Int64("merged_added", res.Merge.Added),
			logger.Duration("duration", res.Duration))
	}
	r.metrics.RunsTotal.WithLabelValues(string(variant), status).Inc()

	return res, err
}

func (r *Runner) run(ctx context.Context, res *Result, log logger.Logger) error {
	var err error
	v := string(res.Variant)

	if res.IngestTotal, err = r.ingest(ctx, res.RunID, res.Variant, log); err != nil {
		return err
	}
	if res.Merge, err = r.merge(ctx, res.RunID, v, log); err != nil {
		return err
	}
	if res.TopWords, err = r.aggregate(ctx, res.RunID, v, log); err != nil {
		return err
	}
	if res.Signal, err = r.signal(ctx, res.RunID, v, log); err != nil {
		return err
	}
	return nil
}

// Ingest runs only the ingest step for a variant.
func (r *Runner) Ingest(ctx context.Context, variant types.Variant) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ingest(ctx, uuid.NewString(), variant, r.log)
}

// Merge runs only the merge step.
func (r *Runner) Merge(ctx context.Context) (store.MergeResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.merge(ctx, uuid.NewString(), ManualVariant, r.log)
}

// Aggregate runs only the top words step.
func (r *Runner) Aggregate(ctx context.Context) ([]types.WordCount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.aggregate(ctx, uuid.NewString(), ManualVariant, r.log)
}

// Signal writes the reload signal on its own.
func (r *Runner) Signal(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.signal(ctx, uuid.NewString(), ManualVariant, r.log)
}

func (r *Runner) ingest(ctx context.Context, runID string, variant types.Variant, log logger.Logger) (int64, error) {
	table, step, ok := ingestTarget(variant)
	if !ok {
		return 0, fmt.Errorf("%w: %q", source.ErrUnknownVariant, variant)
	}

	var total int64
	err := r.step(ctx, step, log, func() (*store.Materialization, error) {
		src, err := r.sources.Get(variant)
		if err != nil {
			return nil, err
		}

		stories, err := src.Fetch(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch %s stories: %w", variant, err)
		}

		tagged, err := store.Tag(stories, r.now())
		if err != nil {
			return nil, fmt.Errorf("tag %s stories: %w", variant, err)
		}
		total, err = r.store.AppendTagged(ctx, table, tagged)
		if err != nil {
			return nil, fmt.Errorf("append to %s: %w", table, err)
		}

		r.metrics.TableRows.WithLabelValues(table).Set(float64(total))
		r.metrics.RowsAdded.WithLabelValues(table).Add(float64(len(stories)))
		log.Info("ingested stories", logger.String("table", table),
			logger.Int("batch", len(stories)), logger.Int64("total_num_records", total))

		return &store.Materialization{
			RunID:   runID,
			Variant: string(variant),
			Step:    step,
			Metadata: map[string]any{
				"total_num_records": total,
				"batch_size":        len(stories),
			},
			Preview: storiesPreview(tagged),
		}, nil
	})
	return total, err
}

func (r *Runner) merge(ctx context.Context, runID, variant string, log logger.Logger) (store.MergeResult, error) {
	var res store.MergeResult
	err := r.step(ctx, store.StepMerge, log, func() (*store.Materialization, error) {
		var err error
		res, err = r.store.Merge(ctx)
		if err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}

		r.metrics.TableRows.WithLabelValues(store.CommonTable).Set(float64(res.Total))
		r.metrics.RowsAdded.WithLabelValues(store.CommonTable).Add(float64(res.Added))
		log.Info("merged sources", logger.Int64("added", res.Added),
			logger.Int64("total_num_records", res.Total), logger.Any("created", res.Created))

		return &store.Materialization{
			RunID:   runID,
			Variant: variant,
			Step:    store.StepMerge,
			Metadata: map[string]any{
				"total_num_records": res.Total,
				"added":             res.Added,
				"created":           res.Created,
			},
		}, nil
	})
	return res, err
}

func (r *Runner) aggregate(ctx context.Context, runID, variant string, log logger.Logger) ([]types.WordCount, error) {
	var words []types.WordCount
	err := r.step(ctx, store.StepTopWords, log, func() (*store.Materialization, error) {
		titles, err := r.store.Titles(ctx)
		if err != nil {
			return nil, fmt.Errorf("read titles: %w", err)
		}

		words, err = topwords.Compute(titles, r.limit)
		if err != nil {
			return nil, err
		}

		if err := r.store.ReplaceTopWords(ctx, words); err != nil {
			return nil, fmt.Errorf("replace top words: %w", err)
		}

		r.metrics.TableRows.WithLabelValues(store.TopWordsTable).Set(float64(len(words)))
		log.Info("computed top words", logger.Int("titles", len(titles)), logger.Int("words", len(words)))

		return &store.Materialization{
			RunID:    runID,
			Variant:  variant,
			Step:     store.StepTopWords,
			Metadata: map[string]any{"titles": len(titles), "words": len(words)},
			Preview:  wordsPreview(words),
		}, nil
	})
	return words, err
}

func (r *Runner) signal(ctx context.Context, runID, variant string, log logger.Logger) (string, error) {
	var value string
	err := r.step(ctx, store.StepReloadSignal, log, func() (*store.Materialization, error) {
		var err error
		value, err = r.notifier.SignalReload()
		if err != nil {
			return nil, err
		}

		r.metrics.ReloadSignals.Inc()
		log.Info("dashboard reload signal updated", logger.String("signal", value))

		return &store.Materialization{
			RunID:    runID,
			Variant:  variant,
			Step:     store.StepReloadSignal,
			Metadata: map[string]any{"signal_update_time": value},
		}, nil
	})
	return value, err
}

// step times fn, records its materialization and counts failures.
func (r *Runner) step(ctx context.Context, name store.StepName, log logger.Logger, fn func() (*store.Materialization, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	start := time.Now()
	m, err := fn()
	r.metrics.StepDuration.WithLabelValues(string(name)).Observe(time.Since(start).Seconds())

	if err != nil {
		r.metrics.StepFailures.WithLabelValues(string(name)).Inc()
		log.Error("step failed", logger.String("step", string(name)), logger.Error(err))
		return err
	}

	m.CreatedAt = r.now()
	if _, err := r.store.SaveMaterialization(ctx, m); err != nil {
		// The step itself succeeded; a lost record only affects `hnctl runs`.
		log.Warn("failed to record materialization", logger.String("step", string(name)), logger.Error(err))
	}
	return nil
}
