package graph

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// SnapshotNode is a deduplicated vertex in a KnowledgeGraphData snapshot
type SnapshotNode struct {
	ID         string            `json:"id"`
	Label      string            `json:"label"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties,omitempty"`
}

// SnapshotEdge is an aggregated edge in a KnowledgeGraphData snapshot
type SnapshotEdge struct {
	ID     string `json:"id"`
	Source string `json:"source"` // SnapshotNode ID
	Target string `json:"target"` // SnapshotNode ID
	Type   string `json:"type"`
	Weight int    `json:"weight"` // number of relationships collapsed into this edge
}

// KnowledgeGraphData is a local view of what a batch of documents writes to the backend
type KnowledgeGraphData struct {
	Nodes       []SnapshotNode `json:"nodes"`
	Edges       []SnapshotEdge `json:"edges"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// KnowledgeGraphGenerator folds graph documents into a KnowledgeGraphData snapshot,
// applying the same identity rules as ingestion: vertices are keyed by (type, id),
// properties are last-writer-wins and only come from a document's node list.
// Relationship endpoints add missing vertices without properties.
type KnowledgeGraphGenerator struct {
	nodes  map[string]SnapshotNode
	edges  map[string]SnapshotEdge
	mutex  sync.RWMutex
	logger *logrus.Logger
}

// NewKnowledgeGraphGenerator creates an empty generator
func NewKnowledgeGraphGenerator() *KnowledgeGraphGenerator {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &KnowledgeGraphGenerator{
		nodes:  make(map[string]SnapshotNode),
		edges:  make(map[string]SnapshotEdge),
		logger: logger,
	}
}

// AddDocument merges a document into the snapshot
func (g *KnowledgeGraphGenerator) AddDocument(doc *GraphDocument) error {
	g.mutex.Lock()
	defer g.mutex.Unlock()

	if doc == nil {
		return fmt.Errorf("cannot add nil document to graph")
	}

	for _, node := range doc.Nodes {
		g.mergeNode(node, true)
	}

	for _, rel := range doc.Relationships {
		sourceID := g.mergeNode(rel.Source, false)
		targetID := g.mergeNode(rel.Target, false)
		relType := NormalizeRelationshipType(rel.Type)

		edgeID := fmt.Sprintf("%s-%s-%s", sourceID, relType, targetID)
		edge, exists := g.edges[edgeID]
		if !exists {
			edge = SnapshotEdge{
				ID:     edgeID,
				Source: sourceID,
				Target: targetID,
				Type:   relType,
			}
		}
		edge.Weight++
		g.edges[edgeID] = edge
	}

	g.logger.WithFields(logrus.Fields{
		"nodes":         len(doc.Nodes),
		"relationships": len(doc.Relationships),
	}).Debug("Document merged into snapshot")

	return nil
}

// Generate returns the snapshot with nodes and edges in a stable order
func (g *KnowledgeGraphGenerator) Generate() *KnowledgeGraphData {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	nodes := make([]SnapshotNode, 0, len(g.nodes))
	for _, node := range g.nodes {
		nodes = append(nodes, node)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	edges := make([]SnapshotEdge, 0, len(g.edges))
	for _, edge := range g.edges {
		edges = append(edges, edge)
	}
	sort.Slice(edges, func(i, j int) bool { return edges[i].ID < edges[j].ID })

	return &KnowledgeGraphData{
		Nodes:       nodes,
		Edges:       edges,
		GeneratedAt: time.Now(),
	}
}

// mergeNode must be called with the write lock held
func (g *KnowledgeGraphGenerator) mergeNode(n Node, withProperties bool) string {
	key := n.Type + ":" + n.ID
	existing, ok := g.nodes[key]
	if !ok {
		existing = SnapshotNode{
			ID:         key,
			Label:      n.ID,
			Type:       n.Type,
			Properties: make(map[string]string, len(n.Properties)),
		}
	}
	if withProperties {
		for k, v := range n.Properties {
			existing.Properties[k] = v
		}
	}
	g.nodes[key] = existing
	return key
}
