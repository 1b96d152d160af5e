package graph

import "context"

// Store is the graph database contract. Implementations must be safe for
// concurrent use; the orchestrator serializes graph-mutating work per
// project but distinct projects may run in parallel.
type Store interface {
	// UpsertGraph writes a batch. Idempotent on node UUIDs and on
	// (type, from, to) edge triples.
	UpsertGraph(ctx context.Context, g *Graph) (*UpsertStats, error)

	// DeleteNodesForFiles removes the subgraphs rooted at the given absolute
	// file paths and returns how many nodes went away.
	DeleteNodesForFiles(ctx context.Context, files []string, projectID string) (int, error)

	// ResolveChunkParents maps parent UUIDs to the label of the node that
	// currently holds each UUID; absent UUIDs are omitted.
	ResolveChunkParents(ctx context.Context, parentUUIDs []string) (map[string]string, error)

	// CaptureEmbeddings snapshots embedding vectors for nodes of the given
	// files before their subgraphs are deleted.
	CaptureEmbeddings(ctx context.Context, files []string, projectID string) ([]EmbeddingRecord, error)

	// CaptureScopeUUIDs snapshots scope identities for the given files.
	CaptureScopeUUIDs(ctx context.Context, files []string, projectID string) ([]UUIDRecord, error)

	// RestoreEmbeddings writes captured vectors back onto rebuilt nodes
	// whose (file, contentHash, field) still match, returning the restore
	// count.
	RestoreEmbeddings(ctx context.Context, records []EmbeddingRecord) (int, error)

	// FileHashes returns the stored rawContentHash per absolute path, the
	// pre-parse skip key for unchanged files.
	FileHashes(ctx context.Context, files []string, projectID string) (map[string]string, error)

	// CountNodes returns node counts per label for a project.
	CountNodes(ctx context.Context, projectID string) (map[string]int64, error)

	Close(ctx context.Context) error
}
