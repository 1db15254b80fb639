package graph

import (
	"context"
)

// Node represents a vertex to be written to the graph
type Node struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

// Relationship represents an edge between two nodes
type Relationship struct {
	Source     Node              `json:"source"`
	Target     Node              `json:"target"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

// SourceDocument is the text a GraphDocument was extracted from
type SourceDocument struct {
	PageContent string                 `json:"page_content"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// GraphDocument groups the nodes and relationships extracted from one source
type GraphDocument struct {
	Nodes         []Node          `json:"nodes"`
	Relationships []Relationship  `json:"relationships"`
	Source        *SourceDocument `json:"source,omitempty"`
}

// PageRecord is the extracted text of a single page. CharOffset is the number of
// characters on all preceding pages.
type PageRecord struct {
	PageNumber int    `json:"page_number"`
	CharOffset int    `json:"char_offset"`
	Text       string `json:"text"`
}

// Record is a single result row returned by a graph backend
type Record map[string]interface{}

// PropertyType describes one property of a label or relationship type
type PropertyType struct {
	Property string `json:"property" mapstructure:"property"`
	Type     string `json:"type" mapstructure:"type"`
}

// RelationshipTopology describes a relationship type between two labels
type RelationshipTopology struct {
	Start string `json:"start" mapstructure:"start"`
	Type  string `json:"type" mapstructure:"type"`
	End   string `json:"end" mapstructure:"end"`
}

// StructuredSchema is the machine readable form of the graph schema
type StructuredSchema struct {
	NodeProps     map[string][]PropertyType `json:"node_props"`
	RelProps      map[string][]PropertyType `json:"rel_props"`
	Relationships []RelationshipTopology    `json:"relationships"`
}

// PageExtractor splits raw content of a given MIME type into pages
type PageExtractor interface {
	ExtractPages(ctx context.Context, content []byte) ([]PageRecord, error)
	SupportedTypes() []string
}

// GraphExtractor turns the text of one page into a GraphDocument
type GraphExtractor interface {
	Extract(ctx context.Context, page PageRecord, source *SourceDocument) (*GraphDocument, error)
}

// DocumentWriter persists graph documents to a backend
type DocumentWriter interface {
	AddGraphDocuments(ctx context.Context, documents []GraphDocument, includeSource bool) error
}
