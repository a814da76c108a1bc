package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"tollgate-hq/tollgate/pkg/cli"
	"tollgate-hq/tollgate/pkg/limiter/events"
)

var eventsFlags struct {
	file string
}

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Process resource lifecycle events",
	Long: `Process resource lifecycle events against the token table.

Lifecycle events (cluster terminated, job completed) report that a held
resource is gone; processing one removes the non-fungible tokens bound
to its resource id, freeing the account's capacity.

Subcommands:
  replay - Process a file of recorded events`,
}

var eventsReplayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Process a file of recorded events",
	Long: `Process a file of recorded lifecycle events, one JSON object per
line, through the built-in processors (EMR cluster/step, Batch job).

Replaying is idempotent: tokens already removed stay removed, and
events whose resource id holds no tokens are no-ops. A malformed event
is reported but never stops the rest of the file.

Example:
  tollgate events replay --file events.jsonl`,
	RunE: replayEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsReplayCmd)

	eventsReplayCmd.Flags().StringVarP(&eventsFlags.file, "file", "f", "", "events file, one JSON object per line (required)")
	eventsReplayCmd.MarkFlagRequired("file")
}

func replayEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return cli.NewConfigError("", fmt.Sprintf("failed to load config: %v", err))
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return cli.NewConfigError("logging", err.Error())
	}

	batch, err := readEvents(eventsFlags.file)
	if err != nil {
		return cli.NewCommandError("events replay", err)
	}
	if len(batch) == 0 {
		fmt.Println("No events to process.")
		return nil
	}

	st, tables, err := openStore(cfg)
	if err != nil {
		return cli.NewCommandError("events replay", err)
	}
	defer st.Close()

	manager, err := events.NewManager(events.ManagerConfig{
		Store: st,
		Table: tables.NonFungible,
		Index: tables.ResourceIndex,
		Processors: []events.Processor{
			events.EMRClusterTerminated(),
			events.EMRStepCompleted(),
			events.BatchJobCompleted(),
		},
		Logger: logger,
	})
	if err != nil {
		return cli.NewCommandError("events replay", err)
	}

	removed, err := manager.ProcessBatch(context.Background(), batch)

	fmt.Printf("Processed %d events, removed %d tokens\n", len(batch), removed)
	if err != nil {
		fmt.Printf("Some events failed:\n%v\n", err)
		return cli.NewCommandError("events replay", fmt.Errorf("%d events processed with failures", len(batch)))
	}
	return nil
}

// readEvents reads a JSONL file into a batch, one event per non-empty line.
func readEvents(path string) ([]events.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	defer f.Close()

	var batch []events.Event
	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		var ev events.Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("line %d: invalid JSON: %w", line, err)
		}
		batch = append(batch, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read events file: %w", err)
	}
	return batch, nil
}
