package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"tollgate-hq/tollgate/pkg/cli"
	"tollgate-hq/tollgate/pkg/limiter"
	"tollgate-hq/tollgate/pkg/limiter/loader"
	"tollgate-hq/tollgate/pkg/limiter/store"
)

var limitsFlags struct {
	file    string
	watch   bool
	service string
	format  string
	output  string
}

var limitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "Manage the limit table",
	Long: `Manage the limit table from YAML limits documents.

The limit table is the administrative source of truth the limiters read.
Each service owns its rows; syncing a service's limits file creates,
updates, and deletes only rows carrying that service name.

Subcommands:
  load - Sync a limits file into the limit table
  list - List the limit rows owned by a service

Examples:
  # One-shot sync
  tollgate limits load --file limits.yaml

  # Keep syncing while the file changes
  tollgate limits load --file limits.yaml --watch

  # Inspect what a service has configured
  tollgate limits list --service data-pipeline`,
}

var limitsLoadCmd = &cobra.Command{
	Use:   "load",
	Short: "Sync a limits file into the limit table",
	Long: `Sync a YAML limits document into the limit table.

The document names its owning service and the limits it grants:

  service: data-pipeline
  limits:
    - resource: api-calls
      account: acct-1
      limit: 100
      windowSec: 60
    - resource: emr-clusters
      account: acct-1
      limit: 2

Rows owned by the service but absent from the document are deleted;
changed rows are rewritten; unchanged rows are left untouched. With
--watch the command stays running and re-syncs whenever the file
changes, until interrupted.`,
	RunE: loadLimits,
}

var limitsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the limit rows owned by a service",
	RunE:  listLimits,
}

func init() {
	rootCmd.AddCommand(limitsCmd)
	limitsCmd.AddCommand(limitsLoadCmd, limitsListCmd)

	limitsLoadCmd.Flags().StringVarP(&limitsFlags.file, "file", "f", "", "limits file (default: limits.path from config)")
	limitsLoadCmd.Flags().BoolVar(&limitsFlags.watch, "watch", false, "keep running and re-sync on file change")

	limitsListCmd.Flags().StringVarP(&limitsFlags.service, "service", "s", "", "service whose rows to list (required)")
	limitsListCmd.Flags().StringVar(&limitsFlags.format, "format", "text", "output format: text, json")
	limitsListCmd.Flags().StringVarP(&limitsFlags.output, "output", "o", "", "output file (default: stdout)")
	limitsListCmd.MarkFlagRequired("service")
}

func loadLimits(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return cli.NewConfigError("logging", err.Error())
	}

	path := limitsFlags.file
	if path == "" {
		path = cfg.Limits.Path
	}
	if path == "" {
		return cli.NewConfigError("limits.path", "no limits file given (use --file or set limits.path)")
	}

	st, tables, err := openStore(cfg)
	if err != nil {
		return cli.NewCommandError("limits load", err)
	}
	defer st.Close()

	ld, err := loader.New(loader.Config{
		Store:  st,
		Path:   path,
		Table:  tables.Limit,
		Index:  tables.ServiceIndex,
		Logger: logger,
	})
	if err != nil {
		return cli.NewCommandError("limits load", err)
	}

	ctx := context.Background()
	result, err := ld.Sync(ctx)
	if err != nil {
		return cli.NewCommandError("limits load", err)
	}

	fmt.Printf("Synced %q: %d created, %d updated, %d deleted, %d unchanged\n",
		result.Service, result.Created, result.Updated, result.Deleted, result.Unchanged)

	if !limitsFlags.watch && !cfg.Limits.Watch {
		return nil
	}

	// Watch mode: stay resident and re-sync on change.
	watcher, err := loader.NewWatcher(loader.WatcherConfig{Loader: ld, Logger: logger})
	if err != nil {
		return cli.NewCommandError("limits load", err)
	}
	defer watcher.Stop()

	fmt.Printf("Watching %s (interrupt to stop)\n", path)
	watchCtx := cli.SetupSignalHandler()
	if err := watcher.Watch(watchCtx); err != nil {
		return cli.NewCommandError("limits load", err)
	}
	return nil
}

func listLimits(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	if _, err := newLogger(cfg); err != nil {
		return cli.NewConfigError("logging", err.Error())
	}

	st, tables, err := openStore(cfg)
	if err != nil {
		return cli.NewCommandError("limits list", err)
	}
	defer st.Close()

	rows, err := st.QueryIndex(context.Background(), tables.Limit, tables.ServiceIndex, limitsFlags.service)
	if err != nil {
		return cli.NewCommandError("limits list", fmt.Errorf("query failed: %w", err))
	}

	out := os.Stdout
	if limitsFlags.output != "" {
		out, err = os.Create(limitsFlags.output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer out.Close()
	}

	switch limitsFlags.format {
	case "json":
		return outputLimitsJSON(out, rows)
	default:
		return outputLimitsText(out, limitsFlags.service, rows)
	}
}

func outputLimitsText(out *os.File, service string, rows []store.Row) error {
	fmt.Fprintf(out, "Limits owned by %q: %d\n\n", service, len(rows))

	if len(rows) == 0 {
		fmt.Fprintln(out, "No limit rows found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RESOURCE\tACCOUNT\tLIMIT\tWINDOW")
	for _, row := range rows {
		limit, _ := row.Attrs.Int64(limiter.AttrLimit)
		window := "-"
		if sec, ok := row.Attrs.Int64(limiter.AttrWindowSec); ok {
			window = fmt.Sprintf("%ds", sec)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", row.Key.Hash, row.Key.Range, limit, window)
	}
	return w.Flush()
}

func outputLimitsJSON(out *os.File, rows []store.Row) error {
	type limitRecord struct {
		Resource  string `json:"resource"`
		Account   string `json:"account"`
		Limit     int64  `json:"limit"`
		WindowSec int64  `json:"windowSec,omitempty"`
	}

	records := make([]limitRecord, 0, len(rows))
	for _, row := range rows {
		rec := limitRecord{Resource: row.Key.Hash, Account: row.Key.Range}
		rec.Limit, _ = row.Attrs.Int64(limiter.AttrLimit)
		rec.WindowSec, _ = row.Attrs.Int64(limiter.AttrWindowSec)
		records = append(records, rec)
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]any{
		"total":  len(records),
		"limits": records,
	})
}
