package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// embeddingFields are the node properties that carry vectors, one per
// embedded field of the entity.
var embeddingFields = map[string]string{
	"name":        "embedding_name",
	"description": "embedding_description",
	"content":     "embedding_content",
}

// Neo4jStore implements Store with Cypher over the v5 driver. All writes go
// through idempotent MERGE with UNWIND batching; parameters everywhere, no
// string-built values.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewNeo4jStore connects and verifies connectivity.
func NewNeo4jStore(ctx context.Context, uri, username, password, database string) (*Neo4jStore, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j: %w", err)
	}
	return &Neo4jStore{driver: driver, database: database}, nil
}

// UpsertGraph writes nodes then edges. Nodes batch per label and edges per
// type because labels and relationship types cannot be parameterized; both
// come from the fixed vocabulary in types.go, never from input.
func (s *Neo4jStore) UpsertGraph(ctx context.Context, g *Graph) (*UpsertStats, error) {
	stats := &UpsertStats{}

	byLabel := make(map[string][]map[string]any)
	for _, n := range g.Nodes {
		props := make(map[string]any, len(n.Properties))
		for k, v := range n.Properties {
			props[k] = v
		}
		byLabel[n.Label] = append(byLabel[n.Label], map[string]any{
			"uuid":  n.UUID,
			"props": props,
		})
	}
	for label, rows := range byLabel {
		query := fmt.Sprintf(`
			UNWIND $rows AS row
			MERGE (n:%s {uuid: row.uuid})
			SET n += row.props, n.uuid = row.uuid
		`, label)
		result, err := neo4j.ExecuteQuery(ctx, s.driver, query,
			map[string]any{"rows": rows},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(s.database))
		if err != nil {
			return stats, fmt.Errorf("upsert %s nodes: %w", label, err)
		}
		stats.NodesCreated += result.Summary.Counters().NodesCreated()
	}

	byType := make(map[string][]map[string]any)
	for _, e := range g.Edges {
		props := e.Properties
		if props == nil {
			props = map[string]any{}
		}
		byType[e.Type] = append(byType[e.Type], map[string]any{
			"from":  e.From,
			"to":    e.To,
			"props": props,
		})
	}
	for edgeType, rows := range byType {
		query := fmt.Sprintf(`
			UNWIND $rows AS row
			MATCH (a {uuid: row.from})
			MATCH (b {uuid: row.to})
			MERGE (a)-[r:%s]->(b)
			SET r += row.props
		`, edgeType)
		result, err := neo4j.ExecuteQuery(ctx, s.driver, query,
			map[string]any{"rows": rows},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(s.database))
		if err != nil {
			return stats, fmt.Errorf("upsert %s edges: %w", edgeType, err)
		}
		stats.EdgesCreated += result.Summary.Counters().RelationshipsCreated()
	}

	return stats, nil
}

// DeleteNodesForFiles detaches and deletes every node addressed at the given
// absolute paths, including payload nodes that carry the path on
// absolutePath. Files themselves match on the same property.
func (s *Neo4jStore) DeleteNodesForFiles(ctx context.Context, files []string, projectID string) (int, error) {
	if len(files) == 0 {
		return 0, nil
	}
	query := `
		MATCH (n)
		WHERE n.absolutePath IN $files
		  AND ($projectId = '' OR EXISTS {
			MATCH (n)-[:BELONGS_TO]->(p {uuid: $projectId})
		  })
		DETACH DELETE n
	`
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query,
		map[string]any{"files": files, "projectId": projectID},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return 0, fmt.Errorf("delete nodes for files: %w", err)
	}
	return result.Summary.Counters().NodesDeleted(), nil
}

// ResolveChunkParents maps each UUID to the label of the holding node.
func (s *Neo4jStore) ResolveChunkParents(ctx context.Context, parentUUIDs []string) (map[string]string, error) {
	out := make(map[string]string, len(parentUUIDs))
	if len(parentUUIDs) == 0 {
		return out, nil
	}
	query := `
		MATCH (n)
		WHERE n.uuid IN $uuids
		RETURN n.uuid AS uuid, head(labels(n)) AS label
	`
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query,
		map[string]any{"uuids": parentUUIDs},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, fmt.Errorf("resolve chunk parents: %w", err)
	}
	for _, rec := range result.Records {
		uuid, _ := rec.Get("uuid")
		label, _ := rec.Get("label")
		if u, ok := uuid.(string); ok {
			if l, ok := label.(string); ok {
				out[u] = l
			}
		}
	}
	return out, nil
}

// CaptureEmbeddings snapshots every stored vector for nodes of the given
// files, keyed by (file, contentHash, field).
func (s *Neo4jStore) CaptureEmbeddings(ctx context.Context, files []string, projectID string) ([]EmbeddingRecord, error) {
	if len(files) == 0 {
		return nil, nil
	}
	query := `
		MATCH (n)
		WHERE n.absolutePath IN $files AND n.contentHash IS NOT NULL
		RETURN n.absolutePath AS file, n.contentHash AS hash,
		       n.embedding_name AS name_vec,
		       n.embedding_description AS description_vec,
		       n.embedding_content AS content_vec,
		       n.embeddingProvider AS provider, n.embeddingModel AS model
	`
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query,
		map[string]any{"files": files},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, fmt.Errorf("capture embeddings: %w", err)
	}

	var records []EmbeddingRecord
	for _, rec := range result.Records {
		file := stringValue(rec, "file")
		hash := stringValue(rec, "hash")
		provider := stringValue(rec, "provider")
		model := stringValue(rec, "model")
		for field := range embeddingFields {
			vec := vectorValue(rec, field+"_vec")
			if len(vec) == 0 {
				continue
			}
			records = append(records, EmbeddingRecord{
				File:        file,
				ContentHash: hash,
				Field:       field,
				Vector:      vec,
				Provider:    provider,
				Model:       model,
			})
		}
	}
	return records, nil
}

// CaptureScopeUUIDs snapshots scope identities for the given files.
func (s *Neo4jStore) CaptureScopeUUIDs(ctx context.Context, files []string, projectID string) ([]UUIDRecord, error) {
	if len(files) == 0 {
		return nil, nil
	}
	query := `
		MATCH (n:Scope)
		WHERE n.absolutePath IN $files
		RETURN n.name AS name, n.absolutePath AS file, n.kind AS kind, n.uuid AS uuid
	`
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query,
		map[string]any{"files": files},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, fmt.Errorf("capture scope uuids: %w", err)
	}

	records := make([]UUIDRecord, 0, len(result.Records))
	for _, rec := range result.Records {
		records = append(records, UUIDRecord{
			Name: stringValue(rec, "name"),
			File: stringValue(rec, "file"),
			Kind: stringValue(rec, "kind"),
			UUID: stringValue(rec, "uuid"),
		})
	}
	return records, nil
}

// RestoreEmbeddings writes captured vectors back onto nodes whose (file,
// contentHash) still match. One query per embedded field, since property
// names cannot be parameterized.
func (s *Neo4jStore) RestoreEmbeddings(ctx context.Context, records []EmbeddingRecord) (int, error) {
	restored := 0
	for field, prop := range embeddingFields {
		var rows []map[string]any
		for _, r := range records {
			if r.Field != field {
				continue
			}
			rows = append(rows, map[string]any{
				"file":     r.File,
				"hash":     r.ContentHash,
				"vector":   r.Vector,
				"provider": r.Provider,
				"model":    r.Model,
			})
		}
		if len(rows) == 0 {
			continue
		}
		query := fmt.Sprintf(`
			UNWIND $rows AS row
			MATCH (n {absolutePath: row.file, contentHash: row.hash})
			SET n.%s = row.vector,
			    n.embeddingProvider = row.provider,
			    n.embeddingModel = row.model
			RETURN count(n) AS restored
		`, prop)
		result, err := neo4j.ExecuteQuery(ctx, s.driver, query,
			map[string]any{"rows": rows},
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(s.database))
		if err != nil {
			return restored, fmt.Errorf("restore %s embeddings: %w", field, err)
		}
		if len(result.Records) > 0 {
			if count, ok := result.Records[0].Get("restored"); ok {
				if c, ok := count.(int64); ok {
					restored += int(c)
				}
			}
		}
	}
	return restored, nil
}

// FileHashes returns the stored rawContentHash per absolute path.
func (s *Neo4jStore) FileHashes(ctx context.Context, files []string, projectID string) (map[string]string, error) {
	out := make(map[string]string, len(files))
	if len(files) == 0 {
		return out, nil
	}
	query := `
		MATCH (f:File)
		WHERE f.absolutePath IN $files
		RETURN f.absolutePath AS path, f.rawContentHash AS hash
	`
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query,
		map[string]any{"files": files},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, fmt.Errorf("fetch file hashes: %w", err)
	}
	for _, rec := range result.Records {
		path := stringValue(rec, "path")
		hash := stringValue(rec, "hash")
		if path != "" && hash != "" {
			out[path] = hash
		}
	}
	return out, nil
}

// CountNodes returns node counts per label for a project.
func (s *Neo4jStore) CountNodes(ctx context.Context, projectID string) (map[string]int64, error) {
	query := `
		MATCH (n)
		WHERE $projectId = '' OR EXISTS {
			MATCH (n)-[:BELONGS_TO]->(p {uuid: $projectId})
		}
		RETURN head(labels(n)) AS label, count(n) AS count
	`
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query,
		map[string]any{"projectId": projectID},
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, fmt.Errorf("count nodes: %w", err)
	}

	out := make(map[string]int64, len(result.Records))
	for _, rec := range result.Records {
		label, _ := rec.Get("label")
		count, _ := rec.Get("count")
		if l, ok := label.(string); ok {
			if c, ok := count.(int64); ok {
				out[l] = c
			}
		}
	}
	return out, nil
}

// Close shuts down the driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func stringValue(rec *neo4j.Record, key string) string {
	if v, ok := rec.Get(key); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func vectorValue(rec *neo4j.Record, key string) []float64 {
	v, ok := rec.Get(key)
	if !ok || v == nil {
		return nil
	}
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	vec := make([]float64, 0, len(items))
	for _, item := range items {
		if f, ok := item.(float64); ok {
			vec = append(vec, f)
		}
	}
	return vec
}
