package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/codegraph/internal/graph"
	"github.com/rohankatakam/codegraph/internal/ids"
	"github.com/rohankatakam/codegraph/internal/orphans"
	"github.com/rohankatakam/codegraph/internal/queue"
	"github.com/rohankatakam/codegraph/internal/watcher"
)

var watchProjectName string

var watchCmd = &cobra.Command{
	Use:   "watch <path>",
	Short: "Watch a project tree and re-ingest changes continuously",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		name := watchProjectName
		if name == "" {
			name = filepath.Base(root)
		}

		store, err := graph.NewNeo4jStore(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password, cfg.Graph.Database)
		if err != nil {
			return fmt.Errorf("connect graph store: %w", err)
		}
		defer store.Close(ctx)

		orch := buildOrchestrator(store)
		opts := ingestionOptions(true)
		opts.ProjectName = name

		tracker, err := orphans.Open(cfg.OrphanDBPath, cfg.MaxOrphanFiles, cfg.OrphanRetentionDays, logger)
		if err != nil {
			logger.WithError(err).Warn("orphan tracking unavailable")
		} else {
			defer tracker.Close()
			orch.WithOrphanTracker(tracker)
			if _, err := orch.EvictStaleOrphans(ctx, time.Now()); err != nil {
				logger.WithError(err).Warn("orphan eviction failed")
			}
		}

		q := queue.New(queue.Options{
			BatchIntervalMs: cfg.BatchIntervalMs,
			MaxBatchSize:    cfg.MaxBatchSize,
		}, orch.HandleBatch(opts), logger)

		w, err := watcher.New(root, ids.ProjectID(name), q, logger)
		if err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer w.Close()

		logger.WithField("root", root).Info("watching for changes")

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig

		logger.Info("stopping watcher, draining queue")
		w.Close()
		q.FlushNow()
		return nil
	},
}

func init() {
	watchCmd.Flags().StringVar(&watchProjectName, "name", "", "project name (defaults to directory name)")
}
