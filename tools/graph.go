package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/athapong/gremlin-graph/pkg/graph"
	"github.com/athapong/gremlin-graph/pkg/graph/processors"
)

// GraphStore is the part of storage.GremlinGraph the tools use
type GraphStore interface {
	graph.DocumentWriter
	RefreshSchema(ctx context.Context) error
	Schema() string
	Query(ctx context.Context, query string, params map[string]interface{}) ([]graph.Record, error)
}

type graphTools struct {
	store    GraphStore
	pipeline *graph.Pipeline
	logger   *logrus.Logger
}

// RegisterGraphTools adds the schema, query and ingest tools. pipeline must be built
// without a writer; ingested documents are written to store by the tool.
func RegisterGraphTools(s *server.MCPServer, store GraphStore, pipeline *graph.Pipeline) {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	t := &graphTools{store: store, pipeline: pipeline, logger: logger}

	schemaTool := mcp.NewTool("graph_schema",
		mcp.WithDescription("Describe the graph schema: vertex labels and their properties, edge types and their properties, and which labels each edge type connects."),
		mcp.WithBoolean("refresh",
			mcp.Description("Re-run the metadata queries before answering (default true)"),
		),
	)
	s.AddTool(schemaTool, errorGuard(logger, t.schemaHandler))

	queryTool := mcp.NewTool("graph_query",
		mcp.WithDescription("Run a query against the graph backend and return the result rows as JSON."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Statement in the backend's query language"),
		),
		mcp.WithString("params",
			mcp.Description("JSON object of bindings referenced by the query"),
		),
	)
	s.AddTool(queryTool, errorGuard(logger, t.queryHandler))

	ingestTool := mcp.NewTool("graph_ingest_pdf",
		mcp.WithDescription("Extract entities and relationships from a local PDF, HTML or text file and write them to the graph."),
		mcp.WithString("path",
			mcp.Required(),
			mcp.Description("Absolute path of the file to ingest"),
		),
		mcp.WithBoolean("include_source",
			mcp.Description("Link source pages to the nodes they mention (currently disabled)"),
		),
	)
	s.AddTool(ingestTool, errorGuard(logger, t.ingestHandler))
}

func (t *graphTools) schemaHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if request.GetBool("refresh", true) {
		if err := t.store.RefreshSchema(ctx); err != nil {
			return nil, err
		}
	}

	schema := t.store.Schema()
	if schema == "" {
		return mcp.NewToolResultText("Schema has not been loaded yet, call graph_schema with refresh=true"), nil
	}
	return mcp.NewToolResultText(schema), nil
}

func (t *graphTools) queryHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	params, err := parseParams(request.GetString("params", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	records, err := t.store.Query(ctx, query, params)
	if err != nil {
		var queryErr *graph.QueryError
		if errors.As(err, &queryErr) {
			return mcp.NewToolResultError(queryErr.Error()), nil
		}
		return nil, err
	}

	out, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode query results")
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (t *graphTools) ingestHandler(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	contentType := processors.ContentTypeForPath(path)
	if contentType == "" {
		return mcp.NewToolResultError(fmt.Sprintf("unsupported file type: %s", filepath.Ext(path))), nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read %s: %v", path, err)), nil
	}

	documents, err := t.pipeline.Process(ctx, content, contentType, map[string]interface{}{
		"document_id": uuid.New().String(),
		"source":      path,
	})
	if err != nil {
		return nil, err
	}

	if err := t.store.AddGraphDocuments(ctx, documents, request.GetBool("include_source", false)); err != nil {
		return nil, err
	}

	nodes, rels := 0, 0
	for _, doc := range documents {
		nodes += len(doc.Nodes)
		rels += len(doc.Relationships)
	}

	t.logger.WithFields(logrus.Fields{
		"path":          path,
		"documents":     len(documents),
		"nodes":         nodes,
		"relationships": rels,
	}).Info("File ingested")

	return mcp.NewToolResultText(fmt.Sprintf("Ingested %s: %d graph documents, %d nodes, %d relationships",
		filepath.Base(path), len(documents), nodes, rels)), nil
}

// parseParams decodes a JSON object of query bindings. An empty string means no bindings.
func parseParams(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return nil, nil
	}
	if !gjson.Valid(raw) {
		return nil, errors.New("params must be valid JSON")
	}
	parsed := gjson.Parse(raw)
	if !parsed.IsObject() {
		return nil, errors.New("params must be a JSON object")
	}
	params, _ := parsed.Value().(map[string]interface{})
	return params, nil
}
