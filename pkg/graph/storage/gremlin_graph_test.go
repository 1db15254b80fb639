package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athapong/gremlin-graph/pkg/graph"
)

type fakeEdge struct {
	source, target, label string
	props                 map[string]interface{}
}

// memoryClient interprets GremlinDialect statements against an in-memory graph and
// answers queries from canned results.
type memoryClient struct {
	vertices   map[string]map[string]interface{}
	edges      []fakeEdge
	statements []Statement
	results    map[string][]graph.Record
	failures   map[string]error
	closed     bool
}

func newMemoryClient() *memoryClient {
	return &memoryClient{
		vertices: make(map[string]map[string]interface{}),
		results:  make(map[string][]graph.Record),
		failures: make(map[string]error),
	}
}

func vertexKey(label, id interface{}) string {
	return fmt.Sprintf("%v/%v", label, id)
}

func (m *memoryClient) Submit(ctx context.Context, stmt Statement) ([]graph.Record, error) {
	m.statements = append(m.statements, stmt)
	if err, ok := m.failures[stmt.Query]; ok {
		return nil, err
	}

	b := stmt.Bindings
	switch stmt.Op {
	case OpUpsertVertex:
		key := vertexKey(b["vLabel"], b["vId"])
		if _, ok := m.vertices[key]; !ok {
			m.vertices[key] = map[string]interface{}{"id": b["vId"]}
		}
		return []graph.Record{{"id": b["vId"]}}, nil
	case OpSetProperties:
		v, ok := m.vertices[vertexKey(b["vLabel"], b["vId"])]
		if !ok {
			return nil, nil
		}
		for k, val := range boundProperties(b) {
			v[k] = val
		}
		return nil, nil
	case OpAddEdge:
		source := vertexKey(b["sLabel"], b["sId"])
		target := vertexKey(b["tLabel"], b["tId"])
		if m.vertices[source] == nil || m.vertices[target] == nil {
			return nil, nil
		}
		m.edges = append(m.edges, fakeEdge{
			source: source,
			target: target,
			label:  b["eLabel"].(string),
			props:  boundProperties(b),
		})
		return nil, nil
	default:
		return m.results[stmt.Query], nil
	}
}

func (m *memoryClient) Close() error {
	m.closed = true
	return nil
}

func boundProperties(b map[string]interface{}) map[string]interface{} {
	props := make(map[string]interface{})
	for i := 0; ; i++ {
		k, ok := b[fmt.Sprintf("k%d", i)]
		if !ok {
			return props
		}
		props[k.(string)] = b[fmt.Sprintf("v%d", i)]
	}
}

func newTestGraph(t *testing.T, client Client) *GremlinGraph {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	g, err := NewGremlinGraph(Config{}, WithClient(client, nil), WithLogger(logger))
	require.NoError(t, err)
	return g
}

func sampleDocument(born string) graph.GraphDocument {
	ada := graph.Node{ID: "Ada", Type: "Person", Properties: map[string]string{"name": "Ada", "born": born}}
	london := graph.Node{ID: "London", Type: "City", Properties: map[string]string{"name": "London"}}
	return graph.GraphDocument{
		Nodes: []graph.Node{ada, london},
		Relationships: []graph.Relationship{{
			Source:     ada,
			Target:     london,
			Type:       "lived in",
			Properties: map[string]string{"since": "1835"},
		}},
		Source: &graph.SourceDocument{PageContent: "Ada lived in London."},
	}
}

func TestAddGraphDocuments(t *testing.T) {
	client := newMemoryClient()
	g := newTestGraph(t, client)

	require.NoError(t, g.AddGraphDocuments(context.Background(), []graph.GraphDocument{sampleDocument("1815")}, false))

	assert.Len(t, client.vertices, 2)
	assert.Equal(t, map[string]interface{}{"id": "Ada", "name": "Ada", "born": "1815"}, client.vertices["Person/Ada"])

	require.Len(t, client.edges, 1)
	assert.Equal(t, fakeEdge{
		source: "Person/Ada",
		target: "City/London",
		label:  "LIVED_IN",
		props:  map[string]interface{}{"since": "1835"},
	}, client.edges[0])
}

func TestAddGraphDocumentsIsIdempotentForVertices(t *testing.T) {
	client := newMemoryClient()
	g := newTestGraph(t, client)
	ctx := context.Background()

	require.NoError(t, g.AddGraphDocuments(ctx, []graph.GraphDocument{sampleDocument("1815")}, false))
	require.NoError(t, g.AddGraphDocuments(ctx, []graph.GraphDocument{sampleDocument("1816")}, false))

	assert.Len(t, client.vertices, 2)
	// Last writer wins
	assert.Equal(t, "1816", client.vertices["Person/Ada"]["born"])
	// Every relationship creates an edge
	assert.Len(t, client.edges, 2)
}

func TestAddGraphDocumentsUpsertsMissingEndpoints(t *testing.T) {
	client := newMemoryClient()
	g := newTestGraph(t, client)

	doc := graph.GraphDocument{
		Relationships: []graph.Relationship{{
			Source: graph.Node{ID: "Ada", Type: "Person"},
			Target: graph.Node{ID: "Analytical Engine", Type: "Machine"},
			Type:   "is a",
		}},
	}
	require.NoError(t, g.AddGraphDocuments(context.Background(), []graph.GraphDocument{doc}, false))

	assert.Contains(t, client.vertices, "Person/Ada")
	assert.Contains(t, client.vertices, "Machine/Analytical Engine")
	require.Len(t, client.edges, 1)
	assert.Equal(t, "IS_A", client.edges[0].label)

	ops := make([]Op, 0, len(client.statements))
	for _, s := range client.statements {
		ops = append(ops, s.Op)
	}
	assert.Equal(t, []Op{OpUpsertVertex, OpUpsertVertex, OpAddEdge}, ops)
}

func TestAddGraphDocumentsSkipsEmptyPropertyWrites(t *testing.T) {
	client := newMemoryClient()
	g := newTestGraph(t, client)

	doc := graph.GraphDocument{Nodes: []graph.Node{{ID: "Ada", Type: "Person"}}}
	require.NoError(t, g.AddGraphDocuments(context.Background(), []graph.GraphDocument{doc}, false))

	require.Len(t, client.statements, 1)
	assert.Equal(t, OpUpsertVertex, client.statements[0].Op)
}

func TestAddGraphDocumentsStopsAtFirstFailure(t *testing.T) {
	client := newMemoryClient()
	g := newTestGraph(t, client)

	failing := GremlinDialect{}.SetVertexProperties("City", "London", map[string]string{"name": "London"}).Query
	client.failures[failing] = errors.New("connection reset")

	err := g.AddGraphDocuments(context.Background(), []graph.GraphDocument{sampleDocument("1815")}, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "document 0: node City/London")
	assert.Contains(t, err.Error(), "connection reset")

	// Writes before the failure stay in place
	assert.Equal(t, "1815", client.vertices["Person/Ada"]["born"])
	assert.Contains(t, client.vertices, "City/London")
	assert.Empty(t, client.edges)
}

func TestAddGraphDocumentsIncludeSourceIsIgnored(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	client := newMemoryClient()

	g, err := NewGremlinGraph(Config{}, WithClient(client, GremlinDialect{}), WithLogger(logger))
	require.NoError(t, err)

	require.NoError(t, g.AddGraphDocuments(context.Background(), []graph.GraphDocument{sampleDocument("1815")}, true))

	entries := hook.AllEntries()
	require.NotEmpty(t, entries)
	assert.Equal(t, logrus.WarnLevel, entries[0].Level)
	assert.Contains(t, entries[0].Message, "includeSource")
	assert.Len(t, client.vertices, 2)
}

func schemaResults(client *memoryClient) {
	client.results[graph.NodePropertiesQuery] = []graph.Record{
		{"output": map[string]interface{}{
			"labels":     "Person",
			"properties": []interface{}{map[string]interface{}{"property": "name", "type": "STRING"}},
		}},
	}
	client.results[graph.RelPropertiesQuery] = []graph.Record{}
	client.results[graph.RelQuery] = []graph.Record{
		{"output": map[string]interface{}{"start": "Person", "type": "KNOWS", "end": "Person"}},
	}
}

func TestRefreshSchema(t *testing.T) {
	client := newMemoryClient()
	schemaResults(client)
	g := newTestGraph(t, client)

	assert.Empty(t, g.Schema())
	assert.NotNil(t, g.StructuredSchema().NodeProps)

	require.NoError(t, g.RefreshSchema(context.Background()))

	assert.Equal(t, "Node properties are the following:\n"+
		"Person {name: STRING}\n"+
		"Relationship properties are the following:\n\n"+
		"The relationships are the following:\n"+
		"(:Person)-[:KNOWS]->(:Person)", g.Schema())
	assert.Equal(t, []graph.PropertyType{{Property: "name", Type: "STRING"}}, g.StructuredSchema().NodeProps["Person"])

	// Metadata queries are sent verbatim
	require.Len(t, client.statements, 3)
	assert.Equal(t, graph.NodePropertiesQuery, client.statements[0].Query)
	assert.Equal(t, graph.RelPropertiesQuery, client.statements[1].Query)
	assert.Equal(t, graph.RelQuery, client.statements[2].Query)
}

func TestRefreshSchemaIsAllOrNothing(t *testing.T) {
	client := newMemoryClient()
	schemaResults(client)
	g := newTestGraph(t, client)
	ctx := context.Background()

	require.NoError(t, g.RefreshSchema(ctx))
	before := g.Schema()
	beforeStructured := g.StructuredSchema()

	client.results[graph.NodePropertiesQuery] = []graph.Record{
		{"output": map[string]interface{}{"labels": "City", "properties": []interface{}{}}},
	}
	client.failures[graph.RelQuery] = errors.New("timeout")

	err := g.RefreshSchema(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relationships query")

	assert.Equal(t, before, g.Schema())
	assert.Equal(t, beforeStructured, g.StructuredSchema())
}

func TestRefreshSchemaDecodeFailureKeepsSchema(t *testing.T) {
	client := newMemoryClient()
	schemaResults(client)
	g := newTestGraph(t, client)
	ctx := context.Background()

	require.NoError(t, g.RefreshSchema(ctx))
	before := g.Schema()

	client.results[graph.RelQuery] = []graph.Record{{"unexpected": 1}}
	require.Error(t, g.RefreshSchema(ctx))
	assert.Equal(t, before, g.Schema())
}

func TestQuery(t *testing.T) {
	client := newMemoryClient()
	client.results["g.V().count()"] = []graph.Record{{"value": int64(3)}}
	g := newTestGraph(t, client)

	records, err := g.Query(context.Background(), "g.V().count()", map[string]interface{}{"x": 1})
	require.NoError(t, err)
	assert.Equal(t, []graph.Record{{"value": int64(3)}}, records)

	require.Len(t, client.statements, 1)
	assert.Equal(t, OpQuery, client.statements[0].Op)
	assert.Equal(t, map[string]interface{}{"x": 1}, client.statements[0].Bindings)
}

func TestQueryErrors(t *testing.T) {
	client := newMemoryClient()
	queryErr := &graph.QueryError{Query: "g.V(", Err: errors.New("unexpected token")}
	client.failures["g.V("] = queryErr
	client.failures["g.V()"] = errors.New("connection refused")
	g := newTestGraph(t, client)
	ctx := context.Background()

	_, err := g.Query(ctx, "g.V(", nil)
	require.Error(t, err)
	var target *graph.QueryError
	require.True(t, errors.As(err, &target))
	assert.Equal(t, "g.V(", target.Query)
	assert.Contains(t, err.Error(), "generated statement is not valid")

	_, err = g.Query(ctx, "g.V()", nil)
	require.Error(t, err)
	assert.False(t, errors.As(err, &target))
	assert.Contains(t, err.Error(), "query statement failed")
}

func TestClose(t *testing.T) {
	client := newMemoryClient()
	g := newTestGraph(t, client)

	require.NoError(t, g.Close())
	assert.True(t, client.closed)
}

func TestNewGremlinGraphSelectsClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		client  interface{}
		dialect Dialect
	}{
		{
			name:    "graphson over websocket",
			cfg:     Config{URL: "ws://localhost:8182/gremlin", Password: "secret"},
			client:  &GraphSONClient{},
			dialect: GremlinDialect{TraversalSource: "g"},
		},
		{
			name:    "custom traversal source",
			cfg:     Config{URL: "wss://example.com:443/", Password: "secret", TraversalSource: "gmodern", Serializer: "graphsonv3"},
			client:  &GraphSONClient{},
			dialect: GremlinDialect{TraversalSource: "gmodern"},
		},
		{
			name:    "neo4j",
			cfg:     Config{Backend: "neo4j", URL: "neo4j://localhost:7687", Password: "secret"},
			client:  &Neo4jClient{},
			dialect: CypherDialect{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)

			g, err := NewGremlinGraph(tt.cfg)
			require.NoError(t, err)
			defer g.Close()

			assert.IsType(t, tt.client, g.client)
			assert.Equal(t, tt.dialect, g.dialect)
		})
	}
}

func TestNewGremlinGraphDefaultSerializerUsesWebsocket(t *testing.T) {
	clearEnv(t)

	g, err := NewGremlinGraph(Config{URL: "wss://acct.gremlin.cosmos.azure.com:443/", Password: "k"})
	require.NoError(t, err)
	defer g.Close()

	client, ok := g.client.(*GraphSONClient)
	require.True(t, ok)
	assert.IsType(t, &cosmosExecutor{}, client.executor)
}

func TestNewGremlinGraphConfigurationError(t *testing.T) {
	clearEnv(t)

	_, err := NewGremlinGraph(Config{Password: "secret"})
	require.Error(t, err)

	var cfgErr *graph.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, EnvURL, cfgErr.EnvVar)
}
