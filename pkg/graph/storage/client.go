package storage

import (
	"context"
	"fmt"

	"github.com/athapong/gremlin-graph/pkg/graph"
)

// Op classifies a statement for logging and metrics
type Op string

const (
	OpQuery         Op = "query"
	OpUpsertVertex  Op = "upsert_vertex"
	OpSetProperties Op = "set_properties"
	OpAddEdge       Op = "add_edge"
)

// Statement is a query string with its bound parameters
type Statement struct {
	Op       Op
	Query    string
	Bindings map[string]interface{}
}

// Client executes statements against a graph backend. Each call is one round trip.
type Client interface {
	Submit(ctx context.Context, stmt Statement) ([]graph.Record, error)
	Close() error
}

// Dialect renders ingestion statements in a backend's query language
type Dialect interface {
	// UpsertVertex finds the vertex with the given label and id or creates it
	UpsertVertex(label, id string) Statement
	// SetVertexProperties overwrites the given properties on an existing vertex
	SetVertexProperties(label, id string, props map[string]string) Statement
	// AddEdge creates a new edge between two existing vertices
	AddEdge(source, target graph.Node, edgeLabel string, props map[string]string) Statement
}

// toRecord turns a single result value into a Record. Map results are used as is,
// anything else is exposed under the "value" key.
func toRecord(v interface{}) graph.Record {
	switch m := normalizeValue(v).(type) {
	case map[string]interface{}:
		return graph.Record(m)
	default:
		return graph.Record{"value": m}
	}
}

// normalizeValue converts maps with non-string keys, as produced by GraphBinary, into
// string keyed maps so results can be decoded uniformly.
func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeValue(val)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalizeValue(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalizeValue(val)
		}
		return out
	default:
		return v
	}
}
