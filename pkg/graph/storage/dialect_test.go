package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/athapong/gremlin-graph/pkg/graph"
)

var (
	ada    = graph.Node{ID: "Ada", Type: "Person"}
	london = graph.Node{ID: "London", Type: "City"}
)

func TestGremlinDialect(t *testing.T) {
	d := GremlinDialect{TraversalSource: "g"}

	t.Run("upsert vertex", func(t *testing.T) {
		stmt := d.UpsertVertex("Person", "Ada")
		assert.Equal(t, OpUpsertVertex, stmt.Op)
		assert.Equal(t,
			"g.V().hasLabel(vLabel).has('id', vId).fold().coalesce(unfold(), addV(vLabel).property('id', vId))",
			stmt.Query)
		assert.Equal(t, map[string]interface{}{"vLabel": "Person", "vId": "Ada"}, stmt.Bindings)
	})

	t.Run("set properties in key order", func(t *testing.T) {
		stmt := d.SetVertexProperties("Person", "Ada", map[string]string{"name": "Ada", "born": "1815"})
		assert.Equal(t, OpSetProperties, stmt.Op)
		assert.Equal(t, "g.V().hasLabel(vLabel).has('id', vId).property(single, k0, v0).property(single, k1, v1)", stmt.Query)
		assert.Equal(t, map[string]interface{}{
			"vLabel": "Person", "vId": "Ada",
			"k0": "born", "v0": "1815",
			"k1": "name", "v1": "Ada",
		}, stmt.Bindings)
	})

	t.Run("add edge", func(t *testing.T) {
		stmt := d.AddEdge(ada, london, "LIVED_IN", map[string]string{"since": "1835"})
		assert.Equal(t, OpAddEdge, stmt.Op)
		assert.Equal(t,
			"g.V().hasLabel(sLabel).has('id', sId).addE(eLabel).to(__.V().hasLabel(tLabel).has('id', tId)).property(k0, v0)",
			stmt.Query)
		assert.Equal(t, map[string]interface{}{
			"sLabel": "Person", "sId": "Ada",
			"tLabel": "City", "tId": "London",
			"eLabel": "LIVED_IN",
			"k0":     "since", "v0": "1835",
		}, stmt.Bindings)
	})

	t.Run("traversal source", func(t *testing.T) {
		assert.Contains(t, GremlinDialect{}.UpsertVertex("A", "1").Query, "g.V()")
		assert.Contains(t, GremlinDialect{TraversalSource: "gmodern"}.UpsertVertex("A", "1").Query, "gmodern.V()")
	})
}

func TestCypherDialect(t *testing.T) {
	d := CypherDialect{}

	stmt := d.UpsertVertex("Person", "Ada")
	assert.Equal(t, "MERGE (n:`Person` {id: $id})", stmt.Query)
	assert.Equal(t, map[string]interface{}{"id": "Ada"}, stmt.Bindings)

	stmt = d.SetVertexProperties("Person", "Ada", map[string]string{"born": "1815"})
	assert.Equal(t, "MATCH (n:`Person` {id: $id}) SET n += $props", stmt.Query)
	assert.Equal(t, map[string]interface{}{"born": "1815"}, stmt.Bindings["props"])

	stmt = d.AddEdge(ada, london, "LIVED_IN", nil)
	assert.Equal(t,
		"MATCH (s:`Person` {id: $sourceId}) MATCH (t:`City` {id: $targetId}) CREATE (s)-[r:`LIVED_IN`]->(t) SET r += $props",
		stmt.Query)
	assert.Equal(t, "Ada", stmt.Bindings["sourceId"])
	assert.Equal(t, "London", stmt.Bindings["targetId"])
	assert.Empty(t, stmt.Bindings["props"])

	// Backticks in labels are escaped
	assert.Equal(t, "MERGE (n:`Odd``Label` {id: $id})", d.UpsertVertex("Odd`Label", "x").Query)
}
