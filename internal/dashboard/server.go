// Package dashboard serves the top words chart and reloads it when the
// pipeline writes a new reload signal.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ibeckermayer/hnpipe/internal/config"
	"github.com/ibeckermayer/hnpipe/internal/digest"
	"github.com/ibeckermayer/hnpipe/internal/logger"
	"github.com/ibeckermayer/hnpipe/internal/metrics"
	"github.com/ibeckermayer/hnpipe/internal/notifier"
	"github.com/ibeckermayer/hnpipe/internal/topwords"
	"github.com/ibeckermayer/hnpipe/internal/types"
)

const shutdownTimeout = 10 * time.Second

// Store is the read side of the warehouse used by the dashboard.
type Store interface {
	TopWords(ctx context.Context) ([]types.WordCount, error)
	Ping(ctx context.Context) error
}

// TopWordsResponse is the body of GET /api/top-words.
type TopWordsResponse struct {
	Version   uint64            `json:"version"`
	Signal    string            `json:"signal,omitempty"`
	UpdatedAt *time.Time        `json:"updated_at"`
	Words     []types.WordCount `json:"words"`
}

// Server is the dashboard HTTP server.
type Server struct {
	addr    string
	store   Store
	builder *digest.Builder
	hub     *Hub
	watcher *Watcher
	metrics *metrics.Metrics
	log     logger.Logger
	engine  *gin.Engine

	mu    sync.RWMutex
	words []types.WordCount
}

// New creates the dashboard server.
func New(cfg config.DashboardConfig, st Store, reader notifier.Reader, m *metrics.Metrics, log logger.Logger) (*Server, error) {
	builder, err := digest.New(topwords.DefaultLimit)
	if err != nil {
		return nil, err
	}

	log = logger.Component(log, "dashboard")
	s := &Server{
		addr:    cfg.Addr,
		store:   st,
		builder: builder,
		hub:     NewHub(),
		watcher: NewWatcher(reader, cfg.PollInterval.Duration, log),
		metrics: m,
		log:     log,
		words:   []types.WordCount{},
	}
	s.engine = s.routes()
	return s, nil
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/", s.handleIndex)
	r.GET("/top-words.txt", s.handlePlain)
	r.GET("/api/top-words", s.handleTopWords)
	r.GET("/api/events", s.handleEvents)
	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	return r
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Hub returns the event hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Reload re-reads the top words table and notifies connected browsers.
func (s *Server) Reload(ctx context.Context, signal string) error {
	words, err := s.store.TopWords(ctx)
	if err != nil {
		return fmt.Errorf("load top words: %w", err)
	}

	s.mu.Lock()
	s.words = words
	ev := s.hub.Publish(signal, time.Now())
	s.mu.Unlock()

	s.metrics.DashboardLoads.Inc()
	s.log.Info("reloaded top words",
		logger.Int("words", len(words)),
		logger.String("signal", signal),
		logger.Any("version", ev.Version))
	return nil
}

// Run listens on the configured address and serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve loads the current table, then serves HTTP on ln and watches the
// reload signal until ctx is cancelled. Open event streams are closed before
// the server shuts down.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	signal, err := s.watcher.Prime()
	if err != nil {
		s.log.Warn("failed to read reload signal", logger.Error(err))
	}
	if err := s.Reload(ctx, signal); err != nil {
		s.log.Warn("initial load failed", logger.Error(err))
	}

	srv := &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting HTTP server", logger.String("address", ln.Addr().String()))
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	watchCtx, cancelWatch := context.WithCancel(ctx)
	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		s.watcher.Run(watchCtx, func(ctx context.Context, value string) {
			if err := s.Reload(ctx, value); err != nil {
				s.log.Error("reload failed", logger.Error(err))
			}
		})
	}()
	defer func() {
		cancelWatch()
		<-watchDone
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.log.Info("shutting down HTTP server", logger.Int("streams", s.hub.Subscribers()))
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

func (s *Server) snapshot() ([]types.WordCount, Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.words, s.hub.Latest()
}

func (s *Server) handleIndex(c *gin.Context) {
	words, ev := s.snapshot()
	page, err := s.builder.Build(words, ev.Signal)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page.HTMLBody))
}

func (s *Server) handlePlain(c *gin.Context) {
	words, ev := s.snapshot()
	page, err := s.builder.Build(words, ev.Signal)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.String(http.StatusOK, page.PlainBody)
}

func (s *Server) handleTopWords(c *gin.Context) {
	words, ev := s.snapshot()
	resp := TopWordsResponse{Version: ev.Version, Signal: ev.Signal, Words: words}
	if !ev.UpdatedAt.IsZero() {
		resp.UpdatedAt = &ev.UpdatedAt
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleEvents(c *gin.Context) {
	events, unsubscribe := s.hub.Subscribe()
	defer unsubscribe()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("reload", ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "error": err.Error()})
		return
	}
	_, ev := s.snapshot()
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": ev.Version})
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			logger.String("method", c.Request.Method),
			logger.String("path", c.Request.URL.Path),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("duration", time.Since(start)))
	}
}
