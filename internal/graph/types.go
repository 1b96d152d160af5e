// Package graph defines the property-graph model, the store contract, and
// the builder that composes parser output into labeled nodes and typed
// edges.
package graph

// Node labels.
const (
	LabelProject          = "Project"
	LabelFile             = "File"
	LabelDirectory        = "Directory"
	LabelScope            = "Scope"
	LabelWebDocument      = "WebDocument"
	LabelVueSFC           = "VueSFC"
	LabelSvelteComponent  = "SvelteComponent"
	LabelStylesheet       = "Stylesheet"
	LabelMarkdownDocument = "MarkdownDocument"
	LabelMarkdownSection  = "MarkdownSection"
	LabelCodeBlock        = "CodeBlock"
	LabelDataFile         = "DataFile"
	LabelDataSection      = "DataSection"
	LabelImageFile        = "ImageFile"
	LabelThreeDFile       = "ThreeDFile"
	LabelDocumentFile     = "DocumentFile"
	LabelExternalLibrary  = "ExternalLibrary"
	LabelExternalURL      = "ExternalURL"
)

// Edge types.
const (
	EdgeBelongsTo       = "BELONGS_TO"
	EdgeDefinedIn       = "DEFINED_IN"
	EdgeInDirectory     = "IN_DIRECTORY"
	EdgeParentOf        = "PARENT_OF"
	EdgeHasParent       = "HAS_PARENT"
	EdgeContains        = "CONTAINS"
	EdgeHasSection      = "HAS_SECTION"
	EdgeHasChild        = "HAS_CHILD"
	EdgeConsumes        = "CONSUMES"
	EdgeInheritsFrom    = "INHERITS_FROM"
	EdgeImplements      = "IMPLEMENTS"
	EdgeUsesLibrary     = "USES_LIBRARY"
	EdgeUsesPackage     = "USES_PACKAGE"
	EdgeReferences      = "REFERENCES"
	EdgeReferencesImage = "REFERENCES_IMAGE"
	EdgeLinksTo         = "LINKS_TO"
)

// Node is one labeled node with its UUID and property bag.
type Node struct {
	UUID       string
	Label      string
	Properties map[string]any
}

// Edge is a typed relationship between two node UUIDs.
type Edge struct {
	Type       string
	From       string
	To         string
	Properties map[string]any
}

// Key is the dedup identity of an edge within a batch.
func (e Edge) Key() string {
	return e.Type + "|" + e.From + "|" + e.To
}

// Graph is one batch of nodes and edges bound for the store.
type Graph struct {
	ProjectID string
	Nodes     []Node
	Edges     []Edge
}

// BuildMetadata is the auxiliary map returned alongside a built graph.
type BuildMetadata struct {
	FilesProcessed         int
	NodesGenerated         int
	RelationshipsGenerated int
	ParseTimeMs            int64
	Warnings               []string
}

// UpsertStats reports what an upsert wrote.
type UpsertStats struct {
	NodesCreated int
	EdgesCreated int
}

// EmbeddingRecord is one captured embedding vector keyed by file, content
// hash and field, plus the provider/model that produced it.
type EmbeddingRecord struct {
	File        string
	ContentHash string
	Field       string // name, description, content
	Vector      []float64
	Provider    string
	Model       string
}

// UUIDRecord is one captured scope identity keyed by name, file and kind.
type UUIDRecord struct {
	Name string
	File string
	Kind string
	UUID string
}
