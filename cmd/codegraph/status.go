package main

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/codegraph/internal/graph"
	"github.com/rohankatakam/codegraph/internal/ids"
)

var statusProjectName string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show node counts in the graph store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		store, err := graph.NewNeo4jStore(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password, cfg.Graph.Database)
		if err != nil {
			return fmt.Errorf("connect graph store: %w", err)
		}
		defer store.Close(ctx)

		projectID := ""
		if statusProjectName != "" {
			projectID = ids.ProjectID(statusProjectName)
		}
		counts, err := store.CountNodes(ctx, projectID)
		if err != nil {
			return err
		}

		labels := make([]string, 0, len(counts))
		for label := range counts {
			labels = append(labels, label)
		}
		sort.Strings(labels)

		var total int64
		for _, label := range labels {
			fmt.Printf("%-20s %d\n", label, counts[label])
			total += counts[label]
		}
		fmt.Printf("%-20s %d\n", "total", total)
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusProjectName, "name", "", "restrict to one project")
}
