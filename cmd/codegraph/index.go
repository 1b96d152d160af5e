package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/codegraph/internal/embed"
	"github.com/rohankatakam/codegraph/internal/graph"
	"github.com/rohankatakam/codegraph/internal/ingestion"
	"github.com/rohankatakam/codegraph/internal/parser"
	"github.com/rohankatakam/codegraph/internal/preserve"
	"github.com/rohankatakam/codegraph/internal/resolver"
	"github.com/rohankatakam/codegraph/internal/vision"
)

var (
	indexProjectName  string
	indexNoEmbeddings bool
)

var indexCmd = &cobra.Command{
	Use:   "index <path>",
	Short: "Ingest a project tree into the graph",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		root, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		name := indexProjectName
		if name == "" {
			name = filepath.Base(root)
		}

		store, err := graph.NewNeo4jStore(ctx, cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password, cfg.Graph.Database)
		if err != nil {
			return fmt.Errorf("connect graph store: %w", err)
		}
		defer store.Close(ctx)

		orch := buildOrchestrator(store)
		stats, err := orch.IndexProject(ctx, root, name, ingestionOptions(!indexNoEmbeddings))
		if err != nil {
			return err
		}

		fmt.Printf("Indexed %s: %d created, %d updated, %d unchanged, %d nodes, %d embeddings (%d preserved) in %dms\n",
			name, stats.Created, stats.Updated, stats.Unchanged,
			stats.NodesCreated, stats.EmbeddingsGenerated, stats.EmbeddingsPreserved, stats.DurationMs)
		for _, w := range stats.Warnings {
			logger.Warn(w)
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexProjectName, "name", "", "project name (defaults to directory name)")
	indexCmd.Flags().BoolVar(&indexNoEmbeddings, "no-embeddings", false, "skip embedding generation")
}

// buildOrchestrator wires store, builder, preserver and the optional
// embedding provider.
func buildOrchestrator(store *graph.Neo4jStore) *ingestion.Orchestrator {
	var provider embed.Provider
	if cfg.Embedding.Enabled && cfg.Embedding.APIKey != "" {
		provider = embed.NewOpenAIProvider(
			cfg.Embedding.APIKey,
			cfg.Embedding.BaseURL,
			cfg.Embedding.Model,
			cfg.Embedding.RequestsPerSecond,
			store,
			logger,
		)
	}
	orch := ingestion.NewOrchestrator(store, graph.NewBuilder(logger), preserve.New(store, logger), provider, logger)

	if cfg.Vision.Enabled && cfg.Vision.APIKey != "" {
		describer, err := vision.NewGeminiDescriber(context.Background(), cfg.Vision.APIKey, cfg.Vision.Model, logger)
		if err != nil {
			logger.WithError(err).Warn("vision collaborator unavailable")
		} else {
			orch.WithVision(store, describer)
		}
	}
	return orch
}

func ingestionOptions(embeddings bool) ingestion.Options {
	return ingestion.Options{
		GenerateEmbeddings: embeddings,
		Aliases: resolver.AliasConfig{
			BaseURL: cfg.Aliases.BaseURL,
			Paths:   cfg.Aliases.Paths,
		},
		ParserOpts: parser.Options{
			ParseCodeBlocks:   cfg.Parsers.ParseCodeBlocks,
			ExtractText:       cfg.Parsers.ExtractText,
			UseOCR:            cfg.Parsers.UseOCR,
			MaxOCRPages:       cfg.Parsers.MaxOCRPages,
			ExtractImages:     cfg.Parsers.ExtractImages,
			ExtractDimensions: cfg.Parsers.ExtractDimensions,
			ParseGltfMetadata: cfg.Parsers.ParseGltfMetadata,
		},
		Concurrency: cfg.ParseConcurrency,
	}
}
