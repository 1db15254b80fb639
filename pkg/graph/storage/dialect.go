package storage

import (
	"fmt"
	"sort"
	"strings"

	"github.com/athapong/gremlin-graph/pkg/graph"
)

// GremlinDialect renders Gremlin-Groovy scripts with bound parameters.
// Vertices are identified by their label and an "id" property.
type GremlinDialect struct {
	TraversalSource string
}

func (d GremlinDialect) source() string {
	if d.TraversalSource == "" {
		return DefaultTraversalSource
	}
	return d.TraversalSource
}

// UpsertVertex uses fold/coalesce so lookup and creation happen in one traversal
func (d GremlinDialect) UpsertVertex(label, id string) Statement {
	return Statement{
		Op: OpUpsertVertex,
		Query: fmt.Sprintf(
			"%s.V().hasLabel(vLabel).has('id', vId).fold().coalesce(unfold(), addV(vLabel).property('id', vId))",
			d.source(),
		),
		Bindings: map[string]interface{}{
			"vLabel": label,
			"vId":    id,
		},
	}
}

func (d GremlinDialect) SetVertexProperties(label, id string, props map[string]string) Statement {
	bindings := map[string]interface{}{
		"vLabel": label,
		"vId":    id,
	}
	query := fmt.Sprintf("%s.V().hasLabel(vLabel).has('id', vId)", d.source()) + propertySteps("single, ", props, bindings)

	return Statement{Op: OpSetProperties, Query: query, Bindings: bindings}
}

func (d GremlinDialect) AddEdge(source, target graph.Node, edgeLabel string, props map[string]string) Statement {
	bindings := map[string]interface{}{
		"sLabel": source.Type,
		"sId":    source.ID,
		"tLabel": target.Type,
		"tId":    target.ID,
		"eLabel": edgeLabel,
	}
	query := fmt.Sprintf(
		"%s.V().hasLabel(sLabel).has('id', sId).addE(eLabel).to(__.V().hasLabel(tLabel).has('id', tId))",
		d.source(),
	) + propertySteps("", props, bindings)

	return Statement{Op: OpAddEdge, Query: query, Bindings: bindings}
}

// propertySteps appends one .property(kN, vN) step per property, keys in sorted order.
// Vertex writes pass "single, " so a value replaces the previous one whatever the
// backend's default cardinality is. Edge properties take no cardinality.
func propertySteps(cardinality string, props map[string]string, bindings map[string]interface{}) string {
	var b strings.Builder
	for i, key := range sortedKeys(props) {
		k, v := fmt.Sprintf("k%d", i), fmt.Sprintf("v%d", i)
		bindings[k] = key
		bindings[v] = props[key]
		fmt.Fprintf(&b, ".property(%s%s, %s)", cardinality, k, v)
	}
	return b.String()
}

// CypherDialect renders Cypher statements for Neo4j. MERGE makes the vertex upsert atomic.
type CypherDialect struct{}

func (CypherDialect) UpsertVertex(label, id string) Statement {
	return Statement{
		Op:       OpUpsertVertex,
		Query:    fmt.Sprintf("MERGE (n:%s {id: $id})", quoteIdentifier(label)),
		Bindings: map[string]interface{}{"id": id},
	}
}

func (CypherDialect) SetVertexProperties(label, id string, props map[string]string) Statement {
	return Statement{
		Op:    OpSetProperties,
		Query: fmt.Sprintf("MATCH (n:%s {id: $id}) SET n += $props", quoteIdentifier(label)),
		Bindings: map[string]interface{}{
			"id":    id,
			"props": toParams(props),
		},
	}
}

func (CypherDialect) AddEdge(source, target graph.Node, edgeLabel string, props map[string]string) Statement {
	return Statement{
		Op: OpAddEdge,
		Query: fmt.Sprintf(
			"MATCH (s:%s {id: $sourceId}) MATCH (t:%s {id: $targetId}) CREATE (s)-[r:%s]->(t) SET r += $props",
			quoteIdentifier(source.Type), quoteIdentifier(target.Type), quoteIdentifier(edgeLabel),
		),
		Bindings: map[string]interface{}{
			"sourceId": source.ID,
			"targetId": target.ID,
			"props":    toParams(props),
		},
	}
}

// quoteIdentifier backtick-quotes a label; labels cannot be bound as parameters in Cypher
func quoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func toParams(props map[string]string) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
