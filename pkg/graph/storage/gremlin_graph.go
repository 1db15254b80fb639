package storage

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/athapong/gremlin-graph/pkg/graph"
	"github.com/athapong/gremlin-graph/pkg/graph/metrics"
)

// GremlinGraph wraps a graph backend connection: it introspects the schema and
// writes graph documents with find-or-create semantics.
//
// Security note: the credentials used here should be scoped to the permissions the
// caller actually needs, since arbitrary statements can be passed to Query.
type GremlinGraph struct {
	client  Client
	dialect Dialect
	logger  *logrus.Logger

	mutex            sync.RWMutex
	schema           string
	structuredSchema graph.StructuredSchema
}

// Option configures a GremlinGraph
type Option func(*GremlinGraph)

// WithClient uses an existing client and dialect instead of connecting from Config
func WithClient(client Client, dialect Dialect) Option {
	return func(g *GremlinGraph) {
		g.client = client
		g.dialect = dialect
	}
}

// WithLogger replaces the default JSON logger
func WithLogger(logger *logrus.Logger) Option {
	return func(g *GremlinGraph) {
		g.logger = logger
	}
}

// NewGremlinGraph resolves cfg and connects to the configured backend. No request is
// sent until the first operation.
func NewGremlinGraph(cfg Config, opts ...Option) (*GremlinGraph, error) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	g := &GremlinGraph{
		logger: logger,
		structuredSchema: graph.StructuredSchema{
			NodeProps:     map[string][]graph.PropertyType{},
			RelProps:      map[string][]graph.PropertyType{},
			Relationships: []graph.RelationshipTopology{},
		},
	}
	for _, opt := range opts {
		opt(g)
	}

	if g.client != nil {
		if g.dialect == nil {
			g.dialect = GremlinDialect{}
		}
		return g, nil
	}

	resolved, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}

	client, dialect, err := newClient(resolved, g.logger)
	if err != nil {
		return nil, err
	}
	g.client = client
	g.dialect = dialect

	g.logger.WithFields(logrus.Fields{
		"backend":    resolved.Backend,
		"url":        resolved.URL,
		"serializer": resolved.Serializer,
	}).Info("Graph client created")

	return g, nil
}

func newClient(cfg Config, logger *logrus.Logger) (Client, Dialect, error) {
	if cfg.Backend == BackendNeo4j {
		client, err := NewNeo4jClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		return client, CypherDialect{}, nil
	}

	dialect := GremlinDialect{TraversalSource: cfg.TraversalSource}
	if cfg.Serializer == SerializerGraphBinaryV1 {
		client, err := NewGremlinClient(cfg)
		if err != nil {
			return nil, nil, err
		}
		return client, dialect, nil
	}

	client, err := NewGraphSONClient(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return client, dialect, nil
}

// Schema returns the textual schema from the last successful refresh
func (g *GremlinGraph) Schema() string {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.schema
}

// StructuredSchema returns the structured schema from the last successful refresh
func (g *GremlinGraph) StructuredSchema() graph.StructuredSchema {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return g.structuredSchema
}

// Query runs a statement and returns one record per result row. Statements the
// backend rejects are reported as *graph.QueryError.
func (g *GremlinGraph) Query(ctx context.Context, query string, params map[string]interface{}) ([]graph.Record, error) {
	return g.submit(ctx, Statement{Op: OpQuery, Query: query, Bindings: params})
}

func (g *GremlinGraph) submit(ctx context.Context, stmt Statement) ([]graph.Record, error) {
	records, err := g.client.Submit(ctx, stmt)
	metrics.GraphQueries.WithLabelValues(string(stmt.Op), metrics.Status(err)).Inc()
	if err != nil {
		var queryErr *graph.QueryError
		if errors.As(err, &queryErr) {
			return nil, err
		}
		return nil, errors.Wrapf(err, "%s statement failed", stmt.Op)
	}
	return records, nil
}

// RefreshSchema runs the metadata queries and replaces both schema forms. If any
// query or decode fails, the previous schema is kept.
func (g *GremlinGraph) RefreshSchema(ctx context.Context) (err error) {
	defer func() {
		metrics.SchemaRefreshes.WithLabelValues(metrics.Status(err)).Inc()
	}()

	nodeRecords, err := g.Query(ctx, graph.NodePropertiesQuery, nil)
	if err != nil {
		return errors.Wrap(err, "node properties query")
	}
	relRecords, err := g.Query(ctx, graph.RelPropertiesQuery, nil)
	if err != nil {
		return errors.Wrap(err, "relationship properties query")
	}
	topologyRecords, err := g.Query(ctx, graph.RelQuery, nil)
	if err != nil {
		return errors.Wrap(err, "relationships query")
	}

	structured, schema, err := graph.BuildSchema(nodeRecords, relRecords, topologyRecords)
	if err != nil {
		return errors.Wrap(err, "failed to decode schema")
	}

	g.mutex.Lock()
	g.structuredSchema = structured
	g.schema = schema
	g.mutex.Unlock()

	g.logger.WithFields(logrus.Fields{
		"labels":             len(structured.NodeProps),
		"relationship_types": len(structured.RelProps),
		"relationships":      len(structured.Relationships),
	}).Info("Schema refreshed")

	return nil
}

// AddGraphDocuments writes the nodes and relationships of each document. Vertices are
// found or created by (type, id) and their properties overwritten; every relationship
// creates a new edge. Statements are independent round trips, so a failure leaves
// earlier writes in place.
//
// includeSource is accepted for API compatibility; linking source documents to the
// nodes they mention is disabled.
func (g *GremlinGraph) AddGraphDocuments(ctx context.Context, documents []graph.GraphDocument, includeSource bool) error {
	if includeSource {
		g.logger.Warn("includeSource requested but source document linking is disabled, ignoring")
	}

	for i, doc := range documents {
		for _, node := range doc.Nodes {
			if err := g.upsertNode(ctx, node); err != nil {
				return errors.Wrapf(err, "document %d: node %s/%s", i, node.Type, node.ID)
			}
		}

		for _, rel := range doc.Relationships {
			if err := g.addRelationship(ctx, rel); err != nil {
				return errors.Wrapf(err, "document %d: relationship %s-[%s]->%s", i, rel.Source.ID, rel.Type, rel.Target.ID)
			}
		}

		g.logger.WithFields(logrus.Fields{
			"document":      i,
			"nodes":         len(doc.Nodes),
			"relationships": len(doc.Relationships),
		}).Debug("Graph document written")
	}

	return nil
}

func (g *GremlinGraph) upsertNode(ctx context.Context, node graph.Node) error {
	if err := g.upsertVertex(ctx, node.Type, node.ID); err != nil {
		return err
	}
	if len(node.Properties) == 0 {
		return nil
	}
	_, err := g.submit(ctx, g.dialect.SetVertexProperties(node.Type, node.ID, node.Properties))
	return err
}

func (g *GremlinGraph) upsertVertex(ctx context.Context, label, id string) error {
	if _, err := g.submit(ctx, g.dialect.UpsertVertex(label, id)); err != nil {
		return err
	}
	metrics.VerticesUpserted.WithLabelValues(label).Inc()
	return nil
}

func (g *GremlinGraph) addRelationship(ctx context.Context, rel graph.Relationship) error {
	if err := g.upsertVertex(ctx, rel.Source.Type, rel.Source.ID); err != nil {
		return err
	}
	if err := g.upsertVertex(ctx, rel.Target.Type, rel.Target.ID); err != nil {
		return err
	}

	relType := graph.NormalizeRelationshipType(rel.Type)
	if _, err := g.submit(ctx, g.dialect.AddEdge(rel.Source, rel.Target, relType, rel.Properties)); err != nil {
		return err
	}
	metrics.EdgesCreated.WithLabelValues(relType).Inc()

	g.logger.WithFields(logrus.Fields{
		"source":   rel.Source.ID,
		"target":   rel.Target.ID,
		"rel_type": relType,
	}).Debug("Edge created")
	return nil
}

// Close releases the backend client
func (g *GremlinGraph) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
