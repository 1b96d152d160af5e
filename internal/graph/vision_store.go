package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// PendingVisionNode is a media or document node waiting for a vision pass:
// either an unanalyzed image or a text-less document flagged for OCR.
type PendingVisionNode struct {
	UUID         string
	AbsolutePath string
	Format       string
}

// PendingVisionNodes lists nodes flagged for the vision collaborator.
func (s *Neo4jStore) PendingVisionNodes(ctx context.Context, projectID string, limit int) ([]PendingVisionNode, error) {
	query := `
		MATCH (n)
		WHERE ((n:ImageFile AND n.analyzed = false AND n.visionDescription IS NULL)
		   OR n.needsGeminiVision = true)
		  AND ($projectId = '' OR EXISTS {
			MATCH (n)-[:BELONGS_TO]->(p {uuid: $projectId})
		  })
		RETURN n.uuid AS uuid, n.absolutePath AS path, n.format AS format
		LIMIT $limit
	`
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query,
		map[string]any{"projectId": projectID, "limit": limit},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, fmt.Errorf("list pending vision nodes: %w", err)
	}

	nodes := make([]PendingVisionNode, 0, len(result.Records))
	for _, rec := range result.Records {
		nodes = append(nodes, PendingVisionNode{
			UUID:         stringValue(rec, "uuid"),
			AbsolutePath: stringValue(rec, "path"),
			Format:       stringValue(rec, "format"),
		})
	}
	return nodes, nil
}

// SetVisionDescription stores a vision result and clears the pending flags.
func (s *Neo4jStore) SetVisionDescription(ctx context.Context, uuid, description string) error {
	query := `
		MATCH (n {uuid: $uuid})
		SET n.visionDescription = $description,
		    n.analyzed = true,
		    n.needsGeminiVision = false
	`
	_, err := neo4j.ExecuteQuery(ctx, s.driver, query,
		map[string]any{"uuid": uuid, "description": description},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return fmt.Errorf("set vision description on %s: %w", uuid, err)
	}
	return nil
}
