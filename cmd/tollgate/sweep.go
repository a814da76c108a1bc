package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"tollgate-hq/tollgate/pkg/cli"
	"tollgate-hq/tollgate/pkg/limiter/store"
)

var sweepFlags struct {
	schedule string
	follow   bool
}

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Purge expired rows from the store",
	Long: `Purge expired rows from the token and limit tables.

The memory and sqlite backends keep expired rows on disk until a sweep
removes them; redis expires rows natively and needs no sweeping. Reads
never return expired rows either way, so sweeping is about space, not
correctness.

Examples:
  # Purge once and exit
  tollgate sweep

  # Keep purging on the configured schedule until interrupted
  tollgate sweep --follow

  # Override the schedule
  tollgate sweep --follow --schedule "0 * * * *"`,
	RunE: runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)

	sweepCmd.Flags().BoolVar(&sweepFlags.follow, "follow", false, "keep running on the configured cron schedule")
	sweepCmd.Flags().StringVar(&sweepFlags.schedule, "schedule", "", "cron schedule override (default: sweeper.schedule from config)")
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return cli.NewConfigError("logging", err.Error())
	}

	st, tables, err := openStore(cfg)
	if err != nil {
		return cli.NewCommandError("sweep", err)
	}
	defer st.Close()

	purger, ok := st.(store.Purger)
	if !ok {
		fmt.Printf("Backend %q expires rows natively; nothing to sweep\n", cfg.Store.Backend)
		return nil
	}

	schedule := sweepFlags.schedule
	if schedule == "" {
		schedule = cfg.Sweeper.Schedule
	}

	sweeper := store.NewSweeper(purger, store.SweeperConfig{
		Tables:   []string{tables.Fungible, tables.NonFungible, tables.Limit},
		Schedule: schedule,
		Logger:   logger,
	})

	if !sweepFlags.follow {
		purged, err := sweeper.RunOnce(context.Background())
		if err != nil {
			return cli.NewCommandError("sweep", err)
		}
		fmt.Printf("Purged %d expired rows\n", purged)
		return nil
	}

	// Follow mode: purge on the schedule until interrupted.
	ctx := cli.SetupSignalHandler()
	if err := sweeper.Start(ctx); err != nil {
		return cli.NewCommandError("sweep", err)
	}
	fmt.Printf("Sweeping on schedule %q (interrupt to stop)\n", schedule)

	<-ctx.Done()
	return nil
}
