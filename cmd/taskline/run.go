package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/taskline/taskline/internal/ai"
	"github.com/taskline/taskline/internal/buffer"
	"github.com/taskline/taskline/internal/dedup"
	"github.com/taskline/taskline/internal/pipeline"
	"github.com/taskline/taskline/internal/storage"
)

var runOnce bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the pipeline sweeper",
	Long: `Run the background sweeper: every sweep interval, finalize conversations
whose buffering window or silence threshold has elapsed, extract candidate
tasks from each, and record the ones that survive the duplicate check.

Runs until interrupted. With --once, performs a single sweep pass and exits.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		p, st, err := buildPipeline(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if runOnce {
			p.Sweep(ctx, time.Now().UTC())
			fmt.Printf("Sweep complete: %d created, %d suppressed, %d extraction failures\n",
				p.CountCreated(), p.CountSuppressed(), p.CountExtractionFailed())
			return nil
		}

		p.Start(ctx)

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		fmt.Printf("Taskline running (db %s, sweep every %s). Press Ctrl+C to stop.\n",
			cfg.DBPath, cfg.SweepInterval)
		<-sigCh

		fmt.Println("\nShutting down...")
		p.Stop()
		fmt.Printf("Stopped: %d created, %d suppressed, %d extraction failures this run\n",
			p.CountCreated(), p.CountSuppressed(), p.CountExtractionFailed())
		return nil
	},
}

// buildPipeline wires storage, the AI client, the buffer store, and the
// duplicate check into a pipeline using the resolved config.
func buildPipeline(ctx context.Context) (*pipeline.Pipeline, storage.Storage, error) {
	st, err := storage.NewStorage(ctx, &storage.Config{Path: cfg.DBPath})
	if err != nil {
		return nil, nil, fmt.Errorf("opening storage: %w", err)
	}

	client, err := ai.NewClient(&ai.Config{})
	if err != nil {
		st.Close()
		return nil, nil, fmt.Errorf("creating AI client: %w", err)
	}

	buf, err := buffer.NewStore(st, cfg)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	dedupCfg := dedup.DefaultConfig()
	dedupCfg.Lookback = cfg.DedupLookback
	dedupCfg.RequestTimeout = cfg.ClassifierTimeout
	dd, err := dedup.NewAIDeduplicator(client, st, dedupCfg)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	p, err := pipeline.New(buf, st, client, dd, cfg)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return p, st, nil
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runOnce, "once", false, "Perform a single sweep pass and exit")
}
