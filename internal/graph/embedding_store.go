package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/rohankatakam/codegraph/internal/embed"
)

// DirtyNodes lists nodes that carry content but no content vector yet —
// freshly inserted nodes and nodes whose contentHash changed (their vector
// was not restored).
func (s *Neo4jStore) DirtyNodes(ctx context.Context, projectID string, limit int) ([]embed.DirtyNode, error) {
	query := `
		MATCH (n)
		WHERE n.content IS NOT NULL
		  AND n.embedding_content IS NULL
		  AND ($projectId = '' OR EXISTS {
			MATCH (n)-[:BELONGS_TO]->(p {uuid: $projectId})
		  })
		RETURN n.uuid AS uuid, n.name AS name, n.content AS content
		LIMIT $limit
	`
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query,
		map[string]any{"projectId": projectID, "limit": limit},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, fmt.Errorf("list dirty nodes: %w", err)
	}

	nodes := make([]embed.DirtyNode, 0, len(result.Records))
	for _, rec := range result.Records {
		nodes = append(nodes, embed.DirtyNode{
			UUID:    stringValue(rec, "uuid"),
			Name:    stringValue(rec, "name"),
			Content: stringValue(rec, "content"),
		})
	}
	return nodes, nil
}

// SetEmbedding writes one vector onto a node.
func (s *Neo4jStore) SetEmbedding(ctx context.Context, uuid, field string, vector []float32, provider, model string) error {
	prop, ok := embeddingFields[field]
	if !ok {
		return fmt.Errorf("unknown embedding field %q", field)
	}
	vec := make([]float64, len(vector))
	for i, v := range vector {
		vec[i] = float64(v)
	}
	query := fmt.Sprintf(`
		MATCH (n {uuid: $uuid})
		SET n.%s = $vector,
		    n.embeddingProvider = $provider,
		    n.embeddingModel = $model
	`, prop)
	_, err := neo4j.ExecuteQuery(ctx, s.driver, query,
		map[string]any{"uuid": uuid, "vector": vec, "provider": provider, "model": model},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return fmt.Errorf("set embedding on %s: %w", uuid, err)
	}
	return nil
}
