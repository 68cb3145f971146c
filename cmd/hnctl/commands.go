package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/ibeckermayer/hnpipe/internal/source"
	"github.com/ibeckermayer/hnpipe/internal/store"
	"github.com/ibeckermayer/hnpipe/internal/types"
)

func newRunCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:       "run <api|snapshot>",
		Short:     "Run the full pipeline for one source now",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{string(types.VariantAPI), string(types.VariantSnapshot)},
		RunE: e.withApp(func(cmd *cobra.Command, args []string) error {
			variant, err := source.ParseVariant(args[0])
			if err != nil {
				return err
			}

			res, err := e.app.RunPipeline(cmd.Context(), variant)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "run %s (%s) finished in %s\n", res.RunID, res.Variant, res.Duration.Round(time.Millisecond))
			fmt.Fprintf(out, "  ingest total: %d\n", res.IngestTotal)
			fmt.Fprintf(out, "  merged: +%d (total %d)\n", res.Merge.Added, res.Merge.Total)
			fmt.Fprintf(out, "  top words: %d\n", len(res.TopWords))
			fmt.Fprintf(out, "  signal: %s\n", res.Signal)
			return nil
		}),
	}
}

func newMergeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "merge",
		Short: "Merge both ingest tables into common_table",
		Args:  cobra.NoArgs,
		RunE: e.withApp(func(cmd *cobra.Command, args []string) error {
			res, err := e.app.Runner().Merge(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "merged: +%d (total %d, created %t)\n", res.Added, res.Total, res.Created)
			return nil
		}),
	}
}

func newAggregateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "aggregate",
		Short: "Recompute top_words from common_table",
		Args:  cobra.NoArgs,
		RunE: e.withApp(func(cmd *cobra.Command, args []string) error {
			words, err := e.app.Runner().Aggregate(cmd.Context())
			if err != nil {
				return err
			}
			renderWords(cmd.OutOrStdout(), words)
			return nil
		}),
	}
}

func newSignalCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "signal",
		Short: "Write the dashboard reload signal",
		Args:  cobra.NoArgs,
		RunE: e.withApp(func(cmd *cobra.Command, args []string) error {
			value, err := e.app.Runner().Signal(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", value, e.cfg.Signal.Path)
			return nil
		}),
	}
}

func newTopWordsCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "top-words",
		Short: "Print the top_words table",
		Args:  cobra.NoArgs,
		RunE: e.withApp(func(cmd *cobra.Command, args []string) error {
			words, err := e.store.TopWords(cmd.Context())
			if err != nil {
				return err
			}
			if len(words) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "top_words is empty")
				return nil
			}
			renderWords(cmd.OutOrStdout(), words)
			return nil
		}),
	}
}

func newRunsCmd(e *env) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Print recent step materializations",
		Args:  cobra.NoArgs,
		RunE: e.withApp(func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			ms, err := e.store.RecentMaterializations(cmd.Context(), limit)
			if err != nil {
				return err
			}
			renderRuns(cmd.OutOrStdout(), ms)
			return nil
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of records to show")
	return cmd
}

func newWipeCmd(e *env) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "wipe",
		Short: "Delete all rows from the warehouse tables",
		Args:  cobra.NoArgs,
		RunE: e.withApp(func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to wipe without --yes")
			}
			if err := e.store.Wipe(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wiped %s\n", strings.Join(store.Tables, ", "))
			return nil
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deleting all records")
	return cmd
}

func newOpenCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:       "open <config|dashboard|data>",
		Short:     "Open the config file, dashboard or data directory",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"config", "dashboard", "data"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := e.loadConfig(); err != nil {
				return err
			}

			switch args[0] {
			case "config":
				return browser.OpenFile(e.configPath)
			case "dashboard":
				return browser.OpenURL("http://" + e.cfg.Dashboard.Addr)
			case "data":
				dir, err := filepath.Abs(filepath.Dir(e.cfg.Warehouse.Path))
				if err != nil {
					return err
				}
				return browser.OpenFile(dir)
			default:
				return fmt.Errorf("unknown target: %s", args[0])
			}
		},
	}
}

func renderWords(w io.Writer, words []types.WordCount) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Word", "Count"})
	for i, wc := range words {
		t.AppendRow(table.Row{i + 1, wc.Word, wc.Count})
	}
	t.Render()
}

func renderRuns(w io.Writer, ms []store.Materialization) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"ID", "Run", "Variant", "Step", "Metadata", "Created"})
	for _, m := range ms {
		t.AppendRow(table.Row{
			m.ID,
			shortID(m.RunID),
			m.Variant,
			m.Step,
			formatMetadata(m.Metadata),
			m.CreatedAt.Local().Format("2006-01-02 15:04:05"),
		})
	}
	t.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatMetadata renders metadata as key=value pairs in key order.
func formatMetadata(meta map[string]any) string {
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v, err := json.Marshal(meta[k])
		if err != nil {
			v = []byte(fmt.Sprint(meta[k]))
		}
		parts = append(parts, k+"="+string(v))
	}
	return strings.Join(parts, " ")
}
