package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/codegraph/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config to ~/.codegraph/config.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return err
		}
		path := filepath.Join(homeDir, ".codegraph", "config.yaml")
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists at %s", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		fmt.Printf("Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("batch_interval_ms:     %d\n", cfg.BatchIntervalMs)
		fmt.Printf("max_batch_size:        %d\n", cfg.MaxBatchSize)
		fmt.Printf("max_orphan_files:      %d\n", cfg.MaxOrphanFiles)
		fmt.Printf("orphan_retention_days: %d\n", cfg.OrphanRetentionDays)
		fmt.Printf("parse_concurrency:     %d\n", cfg.ParseConcurrency)
		fmt.Printf("graph.uri:             %s\n", cfg.Graph.URI)
		fmt.Printf("embedding.enabled:     %t\n", cfg.Embedding.Enabled)
		fmt.Printf("embedding.model:       %s\n", cfg.Embedding.Model)
		fmt.Printf("vision.enabled:        %t\n", cfg.Vision.Enabled)
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
}
