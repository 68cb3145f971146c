package dashboard

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ibeckermayer/hnpipe/internal/logger"
	"github.com/ibeckermayer/hnpipe/internal/notifier"
)

// pather is implemented by signal readers backed by a file.
type pather interface {
	Path() string
}

// Watcher polls the reload signal and reports value changes.
type Watcher struct {
	reader   notifier.Reader
	interval time.Duration
	log      logger.Logger

	last string
	seen bool
}

// NewWatcher creates a watcher polling reader every interval.
func NewWatcher(reader notifier.Reader, interval time.Duration, log logger.Logger) *Watcher {
	return &Watcher{
		reader:   reader,
		interval: interval,
		log:      logger.Component(log, "signal_watcher"),
	}
}

// Prime records the current signal as already seen and returns it.
func (w *Watcher) Prime() (string, error) {
	value, ok, err := w.reader.Read()
	if err != nil {
		return "", err
	}
	if ok {
		w.last, w.seen = value, true
	}
	return value, nil
}

// Run polls until ctx is cancelled, calling onChange with each new value.
// File events on the signal's directory trigger an early poll.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, value string)) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	var events <-chan fsnotify.Event
	var errs <-chan error
	if fw := w.watchDir(); fw != nil {
		defer fw.Close()
		events, errs = fw.Events, fw.Errors
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Check(ctx, onChange)
		case _, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			w.Check(ctx, onChange)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.log.Warn("file watch error", logger.Error(err))
		}
	}
}

// Check reads the signal once and calls onChange if the value differs from
// the last one seen. An empty file is a write in progress and is ignored.
func (w *Watcher) Check(ctx context.Context, onChange func(ctx context.Context, value string)) {
	value, ok, err := w.reader.Read()
	if err != nil {
		w.log.Warn("failed to read reload signal", logger.Error(err))
		return
	}
	if !ok || value == "" || (w.seen && value == w.last) {
		return
	}

	w.last, w.seen = value, true
	w.log.Debug("reload signal changed", logger.String("signal", value))
	onChange(ctx, value)
}

// watchDir starts an fsnotify watch on the signal's directory. Without one
// the watcher falls back to polling only.
func (w *Watcher) watchDir() *fsnotify.Watcher {
	p, ok := w.reader.(pather)
	if !ok {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		w.log.Debug("fsnotify unavailable, polling only", logger.Error(err))
		return nil
	}
	dir := filepath.Dir(p.Path())
	if err := fw.Add(dir); err != nil {
		w.log.Debug("cannot watch signal directory, polling only",
			logger.String("dir", dir), logger.Error(err))
		fw.Close()
		return nil
	}
	return fw
}
