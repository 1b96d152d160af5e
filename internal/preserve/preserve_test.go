package preserve

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/codegraph/internal/graph"
)

// fakeStore implements graph.Store for capture/restore behavior.
type fakeStore struct {
	embeddings []graph.EmbeddingRecord
	uuids      []graph.UUIDRecord
	restored   []graph.EmbeddingRecord
}

func (f *fakeStore) UpsertGraph(ctx context.Context, g *graph.Graph) (*graph.UpsertStats, error) {
	return &graph.UpsertStats{}, nil
}

func (f *fakeStore) DeleteNodesForFiles(ctx context.Context, files []string, projectID string) (int, error) {
	return 0, nil
}

func (f *fakeStore) ResolveChunkParents(ctx context.Context, parentUUIDs []string) (map[string]string, error) {
	return nil, nil
}

func (f *fakeStore) CaptureEmbeddings(ctx context.Context, files []string, projectID string) ([]graph.EmbeddingRecord, error) {
	return f.embeddings, nil
}

func (f *fakeStore) CaptureScopeUUIDs(ctx context.Context, files []string, projectID string) ([]graph.UUIDRecord, error) {
	return f.uuids, nil
}

func (f *fakeStore) RestoreEmbeddings(ctx context.Context, records []graph.EmbeddingRecord) (int, error) {
	f.restored = records
	return len(records), nil
}

func (f *fakeStore) FileHashes(ctx context.Context, files []string, projectID string) (map[string]string, error) {
	return nil, nil
}

func (f *fakeStore) CountNodes(ctx context.Context, projectID string) (map[string]int64, error) {
	return nil, nil
}

func (f *fakeStore) Close(ctx context.Context) error { return nil }

func record(field, provider, model string) graph.EmbeddingRecord {
	return graph.EmbeddingRecord{
		File:        "/repo/a.ts",
		ContentHash: "abc",
		Field:       field,
		Vector:      []float64{0.1, 0.2},
		Provider:    provider,
		Model:       model,
	}
}

func TestCaptureCollectsBoth(t *testing.T) {
	store := &fakeStore{
		embeddings: []graph.EmbeddingRecord{record("content", "openai", "small")},
		uuids: []graph.UUIDRecord{
			{Name: "foo", File: "/repo/a.ts", Kind: "method", UUID: "scope:1"},
		},
	}
	p := New(store, nil)

	captured, err := p.Capture(context.Background(), []string{"/repo/a.ts"}, "project:demo")
	require.NoError(t, err)
	assert.Len(t, captured.Embeddings, 1)
	assert.Len(t, captured.UUIDs, 1)
}

func TestCaptureEmptyFiles(t *testing.T) {
	p := New(&fakeStore{}, nil)
	captured, err := p.Capture(context.Background(), nil, "project:demo")
	require.NoError(t, err)
	assert.Empty(t, captured.Embeddings)
}

func TestRestoreMatchingProvider(t *testing.T) {
	store := &fakeStore{}
	p := New(store, nil)

	captured := &Captured{Embeddings: []graph.EmbeddingRecord{
		record("content", "openai", "small"),
		record("name", "openai", "small"),
	}}
	restored, err := p.Restore(context.Background(), captured, "openai", "small")
	require.NoError(t, err)
	assert.Equal(t, 2, restored)
	assert.Len(t, store.restored, 2)
}

func TestRestoreSkipsChangedProvider(t *testing.T) {
	store := &fakeStore{}
	p := New(store, nil)

	captured := &Captured{Embeddings: []graph.EmbeddingRecord{
		record("content", "openai", "small"),
		record("content", "openai", "large"), // model changed
	}}
	restored, err := p.Restore(context.Background(), captured, "openai", "small")
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
	require.Len(t, store.restored, 1)
	assert.Equal(t, "small", store.restored[0].Model)
}

func TestRestoreWithoutCurrentProviderKeepsAll(t *testing.T) {
	store := &fakeStore{}
	p := New(store, nil)

	captured := &Captured{Embeddings: []graph.EmbeddingRecord{
		record("content", "openai", "small"),
	}}
	restored, err := p.Restore(context.Background(), captured, "", "")
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
}

func TestUUIDMapping(t *testing.T) {
	captured := &Captured{UUIDs: []graph.UUIDRecord{
		{Name: "foo", File: "/repo/a.ts", Kind: "method", UUID: "scope:1"},
		{Name: "foo", File: "/repo/b.ts", Kind: "function", UUID: "scope:2"},
		{Name: "Bar", File: "/repo/a.ts", Kind: "class", UUID: "scope:3"},
	}}
	mapping := UUIDMapping(captured)

	require.Len(t, mapping["foo"], 2)
	require.Len(t, mapping["Bar"], 1)
	assert.Equal(t, "scope:3", mapping["Bar"][0].UUID)

	assert.Nil(t, UUIDMapping(nil))
}

func TestRestoreSkipsDifferentProvider(t *testing.T) {
	// A record from another provider is skipped even when the model
	// string matches.
	store := &fakeStore{}
	p := New(store, nil)
	captured := &Captured{Embeddings: []graph.EmbeddingRecord{
		record("content", "voyage", "small"),
	}}
	restored, err := p.Restore(context.Background(), captured, "openai", "small")
	require.NoError(t, err)
	assert.Zero(t, restored)
}
