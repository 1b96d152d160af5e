package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/codegraph/internal/graph"
	"github.com/rohankatakam/codegraph/internal/ids"
	"github.com/rohankatakam/codegraph/internal/preserve"
	"github.com/rohankatakam/codegraph/internal/queue"
)

// memStore is an in-memory Store recording operation order.
type memStore struct {
	mu    sync.Mutex
	nodes map[string]graph.Node
	edges map[string]graph.Edge
	ops   []string
	// embeddings keyed by file|hash|field
	embeddings map[string]graph.EmbeddingRecord
	failUpsert error
}

func newMemStore() *memStore {
	return &memStore{
		nodes:      map[string]graph.Node{},
		edges:      map[string]graph.Edge{},
		embeddings: map[string]graph.EmbeddingRecord{},
	}
}

func (m *memStore) record(op string) {
	m.ops = append(m.ops, op)
}

func (m *memStore) UpsertGraph(ctx context.Context, g *graph.Graph) (*graph.UpsertStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("upsert")
	if m.failUpsert != nil {
		return nil, m.failUpsert
	}
	stats := &graph.UpsertStats{}
	for _, n := range g.Nodes {
		if _, ok := m.nodes[n.UUID]; !ok {
			stats.NodesCreated++
		}
		m.nodes[n.UUID] = n
	}
	for _, e := range g.Edges {
		if _, ok := m.edges[e.Key()]; !ok {
			stats.EdgesCreated++
		}
		m.edges[e.Key()] = e
	}
	return stats, nil
}

func (m *memStore) DeleteNodesForFiles(ctx context.Context, files []string, projectID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("delete")
	fileSet := map[string]bool{}
	for _, f := range files {
		fileSet[f] = true
	}
	count := 0
	for uuid, n := range m.nodes {
		if abs, ok := n.Properties["absolutePath"].(string); ok && fileSet[abs] {
			delete(m.nodes, uuid)
			count++
		}
	}
	return count, nil
}

func (m *memStore) ResolveChunkParents(ctx context.Context, parentUUIDs []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	for _, uuid := range parentUUIDs {
		if n, ok := m.nodes[uuid]; ok {
			out[uuid] = n.Label
		}
	}
	return out, nil
}

func (m *memStore) CaptureEmbeddings(ctx context.Context, files []string, projectID string) ([]graph.EmbeddingRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("capture")
	fileSet := map[string]bool{}
	for _, f := range files {
		fileSet[f] = true
	}
	var out []graph.EmbeddingRecord
	for _, rec := range m.embeddings {
		if fileSet[rec.File] {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memStore) CaptureScopeUUIDs(ctx context.Context, files []string, projectID string) ([]graph.UUIDRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fileSet := map[string]bool{}
	for _, f := range files {
		fileSet[f] = true
	}
	var out []graph.UUIDRecord
	for uuid, n := range m.nodes {
		if n.Label != graph.LabelScope {
			continue
		}
		abs, _ := n.Properties["absolutePath"].(string)
		if !fileSet[abs] {
			continue
		}
		name, _ := n.Properties["name"].(string)
		kind, _ := n.Properties["kind"].(string)
		out = append(out, graph.UUIDRecord{Name: name, File: abs, Kind: kind, UUID: uuid})
	}
	return out, nil
}

func (m *memStore) RestoreEmbeddings(ctx context.Context, records []graph.EmbeddingRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("restore")
	restored := 0
	for _, rec := range records {
		for _, n := range m.nodes {
			abs, _ := n.Properties["absolutePath"].(string)
			hash, _ := n.Properties["contentHash"].(string)
			if abs == rec.File && hash == rec.ContentHash {
				restored++
				break
			}
		}
	}
	return restored, nil
}

func (m *memStore) FileHashes(ctx context.Context, files []string, projectID string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]string{}
	fileSet := map[string]bool{}
	for _, f := range files {
		fileSet[f] = true
	}
	for _, n := range m.nodes {
		if n.Label != graph.LabelFile {
			continue
		}
		abs, _ := n.Properties["absolutePath"].(string)
		if fileSet[abs] {
			if h, ok := n.Properties["rawContentHash"].(string); ok {
				out[abs] = h
			}
		}
	}
	return out, nil
}

func (m *memStore) CountNodes(ctx context.Context, projectID string) (map[string]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[string]int64{}
	for _, n := range m.nodes {
		out[n.Label]++
	}
	return out, nil
}

func (m *memStore) Close(ctx context.Context) error { return nil }

func (m *memStore) scopeUUIDByName(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for uuid, n := range m.nodes {
		if n.Label == graph.LabelScope && n.Properties["name"] == name {
			return uuid
		}
	}
	return ""
}

func newOrchestrator(store graph.Store) *Orchestrator {
	return NewOrchestrator(store, graph.NewBuilder(nil), preserve.New(store, nil), nil, nil)
}

func writeFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	abs := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte(content), 0o644))
	return abs
}

func TestInitialIngestion(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/a.ts", "export function go(): void {}\n")

	store := newMemStore()
	o := newOrchestrator(store)

	stats, err := o.IndexProject(context.Background(), root, "demo", Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Created)
	assert.Greater(t, stats.NodesCreated, 0)
	assert.Empty(t, stats.Errors)

	counts, _ := store.CountNodes(context.Background(), "")
	assert.Equal(t, int64(1), counts[graph.LabelProject])
	assert.Equal(t, int64(1), counts[graph.LabelFile])
	assert.Equal(t, int64(1), counts[graph.LabelScope])
}

func TestOperationOrdering(t *testing.T) {
	root := t.TempDir()
	abs := writeFile(t, root, "a.ts", "export const x = 1\n")

	store := newMemStore()
	o := newOrchestrator(store)
	_, err := o.Reingest(context.Background(), []queue.Change{
		{Path: abs, ChangeType: queue.ChangeUpdated, ProjectID: ids.ProjectID("demo")},
	}, Options{})
	require.NoError(t, err)

	// Capture strictly precedes deletion, deletion precedes upsert. The
	// restore step short-circuits with nothing captured.
	require.Equal(t, []string{"capture", "delete", "upsert"}, store.ops)
}

func TestUnchangedFileSkipsRewrite(t *testing.T) {
	root := t.TempDir()
	abs := writeFile(t, root, "a.ts", "export const stable = 1\n")

	store := newMemStore()
	o := newOrchestrator(store)
	ctx := context.Background()
	pid := ids.ProjectID("demo")

	_, err := o.Reingest(ctx, []queue.Change{{Path: abs, ChangeType: queue.ChangeCreated, ProjectID: pid}}, Options{})
	require.NoError(t, err)
	store.ops = nil

	stats, err := o.Reingest(ctx, []queue.Change{{Path: abs, ChangeType: queue.ChangeUpdated, ProjectID: pid}}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Unchanged)
	assert.Equal(t, 0, stats.Updated)
	assert.Empty(t, store.ops, "byte-identical file must cause zero writes")
}

func TestScopeUUIDSurvivesBodyChange(t *testing.T) {
	root := t.TempDir()
	abs := writeFile(t, root, "x.ts", "export class A {\n  foo(): void {}\n}\n")

	store := newMemStore()
	o := newOrchestrator(store)
	ctx := context.Background()
	pid := ids.ProjectID("demo")

	_, err := o.Reingest(ctx, []queue.Change{{Path: abs, ChangeType: queue.ChangeCreated, ProjectID: pid}}, Options{})
	require.NoError(t, err)
	fooBefore := store.scopeUUIDByName("foo")
	require.NotEmpty(t, fooBefore)

	// Same signature, new body: identity must survive the rebuild.
	writeFile(t, root, "x.ts", "export class A {\n  foo(): void { console.log(1) }\n}\n")
	_, err = o.Reingest(ctx, []queue.Change{{Path: abs, ChangeType: queue.ChangeUpdated, ProjectID: pid}}, Options{})
	require.NoError(t, err)

	assert.Equal(t, fooBefore, store.scopeUUIDByName("foo"))
}

func TestDeletedFileRemovesSubgraph(t *testing.T) {
	root := t.TempDir()
	abs := writeFile(t, root, "gone.ts", "export const g = 1\n")

	store := newMemStore()
	o := newOrchestrator(store)
	ctx := context.Background()
	pid := ids.ProjectID("demo")

	_, err := o.Reingest(ctx, []queue.Change{{Path: abs, ChangeType: queue.ChangeCreated, ProjectID: pid}}, Options{})
	require.NoError(t, err)

	require.NoError(t, os.Remove(abs))
	stats, err := o.Reingest(ctx, []queue.Change{{Path: abs, ChangeType: queue.ChangeDeleted, ProjectID: pid}}, Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Deleted)
	counts, _ := store.CountNodes(ctx, "")
	assert.Zero(t, counts[graph.LabelScope])
	assert.Zero(t, counts[graph.LabelFile])
}

func TestStoreErrorSurfacesOnStats(t *testing.T) {
	root := t.TempDir()
	abs := writeFile(t, root, "err.ts", "export const e = 1\n")

	store := newMemStore()
	store.failUpsert = assert.AnError
	o := newOrchestrator(store)

	stats, err := o.Reingest(context.Background(), []queue.Change{
		{Path: abs, ChangeType: queue.ChangeCreated, ProjectID: ids.ProjectID("demo")},
	}, Options{})
	require.Error(t, err)
	assert.NotEmpty(t, stats.Errors)
}

func TestOrphanChangesUseReservedProject(t *testing.T) {
	root := t.TempDir()
	abs := writeFile(t, root, "stray.ts", "export const s = 1\n")

	store := newMemStore()
	o := newOrchestrator(store)

	_, err := o.Reingest(context.Background(), []queue.Change{
		{Path: abs, ChangeType: queue.ChangeCreated}, // no project id
	}, Options{})
	require.NoError(t, err)

	counts, _ := store.CountNodes(context.Background(), "")
	assert.Zero(t, counts[graph.LabelProject], "orphan batches never create a Project node")
	assert.Equal(t, int64(1), counts[graph.LabelFile])
}

func TestHandleBatchRefusesWhileBusy(t *testing.T) {
	store := newMemStore()
	o := newOrchestrator(store)
	handler := o.HandleBatch(Options{})

	o.mu.Lock()
	o.busy = true
	o.mu.Unlock()
	assert.False(t, handler([]queue.Change{{Path: "/x", ChangeType: queue.ChangeUpdated}}))

	o.mu.Lock()
	o.busy = false
	o.mu.Unlock()
	assert.True(t, handler(nil))
}

func TestShortestCommonDir(t *testing.T) {
	tests := []struct {
		paths []string
		want  string
	}{
		{[]string{"/a/b/c.ts"}, "/a/b"},
		{[]string{"/a/b/c.ts", "/a/b/d.ts"}, "/a/b"},
		{[]string{"/a/b/c.ts", "/a/x/y.ts"}, "/a"},
		{[]string{"/a/b/c.ts", "/q/r.ts"}, "/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ShortestCommonDir(tt.paths), "%v", tt.paths)
	}
}
