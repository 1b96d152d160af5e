// Package preserve captures embedding vectors and scope UUIDs before a
// batch's subgraphs are deleted, and restores them onto the rebuilt nodes.
package preserve

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/codegraph/internal/graph"
	"github.com/rohankatakam/codegraph/internal/resolver"
)

// Captured is one batch's snapshot, taken strictly before deletion.
type Captured struct {
	Embeddings []graph.EmbeddingRecord
	UUIDs      []graph.UUIDRecord
}

// Preserver wraps the store's capture/restore operations.
type Preserver struct {
	store  graph.Store
	logger *logrus.Logger
}

// New creates a preserver over a store.
func New(store graph.Store, logger *logrus.Logger) *Preserver {
	if logger == nil {
		logger = logrus.New()
	}
	return &Preserver{store: store, logger: logger}
}

// Capture snapshots embeddings and scope identities for the affected files.
func (p *Preserver) Capture(ctx context.Context, files []string, projectID string) (*Captured, error) {
	if len(files) == 0 {
		return &Captured{}, nil
	}

	embeddings, err := p.store.CaptureEmbeddings(ctx, files, projectID)
	if err != nil {
		return nil, fmt.Errorf("capture embeddings: %w", err)
	}
	uuids, err := p.store.CaptureScopeUUIDs(ctx, files, projectID)
	if err != nil {
		return nil, fmt.Errorf("capture scope uuids: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"files":      len(files),
		"embeddings": len(embeddings),
		"uuids":      len(uuids),
	}).Debug("captured metadata")

	return &Captured{Embeddings: embeddings, UUIDs: uuids}, nil
}

// Restore writes captured vectors back onto nodes whose (file, contentHash,
// field) still match. Records produced by a different provider or model than
// the current one are skipped; the re-embedder regenerates those.
func (p *Preserver) Restore(ctx context.Context, captured *Captured, currentProvider, currentModel string) (int, error) {
	if captured == nil || len(captured.Embeddings) == 0 {
		return 0, nil
	}

	eligible := make([]graph.EmbeddingRecord, 0, len(captured.Embeddings))
	skipped := 0
	for _, rec := range captured.Embeddings {
		if currentProvider != "" && rec.Provider != "" &&
			(rec.Provider != currentProvider || rec.Model != currentModel) {
			skipped++
			continue
		}
		eligible = append(eligible, rec)
	}

	restored, err := p.store.RestoreEmbeddings(ctx, eligible)
	if err != nil {
		return restored, fmt.Errorf("restore embeddings: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"restored": restored,
		"skipped":  skipped,
	}).Debug("restored metadata")
	return restored, nil
}

// UUIDMapping converts a snapshot into the resolver's existing-UUID mapping
// (name → candidates).
func UUIDMapping(captured *Captured) map[string][]resolver.Record {
	if captured == nil {
		return nil
	}
	mapping := make(map[string][]resolver.Record, len(captured.UUIDs))
	for _, rec := range captured.UUIDs {
		mapping[rec.Name] = append(mapping[rec.Name], resolver.Record{
			Name: rec.Name,
			File: rec.File,
			Kind: rec.Kind,
			UUID: rec.UUID,
		})
	}
	return mapping
}
