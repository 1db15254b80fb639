package storage

import (
	"context"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v4/neo4j"
	"github.com/pkg/errors"

	"github.com/athapong/gremlin-graph/pkg/graph"
)

// Neo4jClient implements Client over Bolt, running each statement in its own session
type Neo4jClient struct {
	driver   neo4j.Driver
	uri      string
	database string
}

// NewNeo4jClient creates a new Neo4j client for a resolved config
func NewNeo4jClient(cfg Config) (*Neo4jClient, error) {
	auth := neo4j.BasicAuth(cfg.Username, cfg.Password, "")
	driver, err := neo4j.NewDriver(cfg.URL, auth)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create Neo4j driver")
	}

	return &Neo4jClient{
		driver:   driver,
		uri:      cfg.URL,
		database: cfg.Database,
	}, nil
}

// Submit implements Client
func (c *Neo4jClient) Submit(ctx context.Context, stmt Statement) ([]graph.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	session := c.driver.NewSession(neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: c.database,
	})
	defer session.Close()

	result, err := session.Run(stmt.Query, stmt.Bindings)
	if err != nil {
		return nil, classifyNeo4jError(stmt, err)
	}

	records := make([]graph.Record, 0)
	for result.Next() {
		record := result.Record()
		data := make(graph.Record, len(record.Keys))
		for i, key := range record.Keys {
			data[key] = normalizeValue(record.Values[i])
		}
		records = append(records, data)
	}
	if err := result.Err(); err != nil {
		return nil, classifyNeo4jError(stmt, err)
	}

	return records, nil
}

// Close implements Client
func (c *Neo4jClient) Close() error {
	if c.driver != nil {
		return c.driver.Close()
	}
	return nil
}

func classifyNeo4jError(stmt Statement, err error) error {
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && strings.Contains(neoErr.Code, "SyntaxError") {
		return &graph.QueryError{Query: stmt.Query, Err: err}
	}
	return err
}
