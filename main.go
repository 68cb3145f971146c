// Command hnpipe runs the Hacker News pipeline on its cron schedule and
// serves the top words dashboard.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ibeckermayer/hnpipe/internal/app"
	"github.com/ibeckermayer/hnpipe/internal/config"
	"github.com/ibeckermayer/hnpipe/internal/logger"
	"github.com/ibeckermayer/hnpipe/internal/metrics"
	"github.com/ibeckermayer/hnpipe/internal/scheduler"
	"github.com/ibeckermayer/hnpipe/internal/store"
)

func main() {
	var configPath string

	cmd := &cobra.Command{
		Use:   "hnpipe",
		Short: "Scheduled Hacker News pipeline and top words dashboard",
		Long: `hnpipe ingests Hacker News top stories from the API and a SQLite
snapshot, merges them into common_table, recomputes top_words and signals
the dashboard to reload. Send SIGHUP to reload the config file.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), configPath)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "config file (default is the user config dir)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath string) error {
	if configPath == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	cfg, created, err := config.LoadOrCreate(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Development: cfg.Log.Development})
	if err != nil {
		return err
	}
	defer log.Sync()

	if created {
		log.Info("created default config", logger.String("path", configPath))
	}
	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	st, err := store.New(cfg.Warehouse.Path)
	if err != nil {
		return fmt.Errorf("open warehouse: %w", err)
	}
	defer st.Close()

	m := metrics.New()
	a, err := app.New(cfg, configPath, st, m, log)
	if err != nil {
		return err
	}

	log.Info("hnpipe starting",
		logger.String("config", configPath),
		logger.String("warehouse", cfg.Warehouse.Path))

	g, ctx := errgroup.WithContext(ctx)

	if cfg.Schedule.Enabled {
		sched, err := scheduler.New(cfg.Schedule.Timezone, cfg.Schedule.JobTimeout.Duration, log)
		if err != nil {
			return err
		}
		if err := a.Schedule(sched); err != nil {
			return err
		}
		sched.Start()
		g.Go(func() error {
			<-ctx.Done()
			<-sched.Stop().Done()
			return nil
		})
	}

	if cfg.Dashboard.Enabled {
		srv, err := a.Dashboard()
		if err != nil {
			return err
		}
		g.Go(func() error {
			return srv.Run(ctx)
		})
	}

	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				if err := a.ReloadConfig(); err != nil {
					log.Error("config reload failed", logger.Error(err))
				}
			}
		}
	})

	err = g.Wait()
	log.Info("hnpipe stopped")
	return err
}
