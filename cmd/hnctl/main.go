// Command hnctl is a CLI for running pipeline steps by hand and inspecting
// the warehouse.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ibeckermayer/hnpipe/internal/app"
	"github.com/ibeckermayer/hnpipe/internal/config"
	"github.com/ibeckermayer/hnpipe/internal/logger"
	"github.com/ibeckermayer/hnpipe/internal/metrics"
	"github.com/ibeckermayer/hnpipe/internal/store"
)

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// env is the state shared by subcommands, built lazily in PersistentPreRunE.
type env struct {
	configPath string
	verbose    bool

	cfg   *config.Config
	log   logger.Logger
	store *store.Store
	app   *app.App
}

func newRootCmd() *cobra.Command {
	e := &env{}

	root := &cobra.Command{
		Use:          "hnctl",
		Short:        "Run hnpipe steps and inspect the warehouse",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&e.configPath, "config", "", "config file (default is the user config dir)")
	root.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(
		newRunCmd(e),
		newMergeCmd(e),
		newAggregateCmd(e),
		newSignalCmd(e),
		newTopWordsCmd(e),
		newRunsCmd(e),
		newWipeCmd(e),
		newOpenCmd(e),
	)
	return root
}

// loadConfig resolves the config path and loads it, creating defaults on first use.
func (e *env) loadConfig() error {
	if e.cfg != nil {
		return nil
	}
	if e.configPath == "" {
		p, err := config.ConfigPath()
		if err != nil {
			return err
		}
		e.configPath = p
	}

	cfg, _, err := config.LoadOrCreate(e.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config %s: %w", e.configPath, err)
	}
	e.cfg = cfg
	return nil
}

// open loads config and opens the warehouse and app. Callers must call close.
func (e *env) open() error {
	if err := e.loadConfig(); err != nil {
		return err
	}

	level := e.cfg.Log.Level
	if e.verbose {
		level = "debug"
	}
	log, err := logger.New(logger.Config{Level: level, Development: true})
	if err != nil {
		return err
	}
	e.log = log

	st, err := store.New(e.cfg.Warehouse.Path)
	if err != nil {
		return fmt.Errorf("open warehouse: %w", err)
	}
	e.store = st

	a, err := app.New(e.cfg, e.configPath, st, metrics.New(), log)
	if err != nil {
		st.Close()
		return err
	}
	e.app = a
	return nil
}

func (e *env) close() {
	if e.store != nil {
		e.store.Close()
	}
	if e.log != nil {
		e.log.Sync()
	}
}

// withApp wraps a RunE so the warehouse is opened before and closed after.
func (e *env) withApp(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := e.open(); err != nil {
			return err
		}
		defer e.close()
		return fn(cmd, args)
	}
}
