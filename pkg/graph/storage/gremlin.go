package storage

import (
	"context"
	"strings"

	gremlingo "github.com/apache/tinkerpop/gremlin-go/v3/driver"
	"github.com/pkg/errors"

	"github.com/athapong/gremlin-graph/pkg/graph"
)

// GremlinClient submits scripts over the gremlin-go websocket driver, which
// negotiates GraphBinary.
type GremlinClient struct {
	client *gremlingo.Client
}

// NewGremlinClient opens a gremlin-go client for a resolved config
func NewGremlinClient(cfg Config) (*GremlinClient, error) {
	client, err := gremlingo.NewClient(cfg.URL, func(settings *gremlingo.ClientSettings) {
		settings.TraversalSource = cfg.TraversalSource
		settings.AuthInfo = gremlingo.BasicAuthInfo(cfg.Username, cfg.Password)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to create gremlin client for %s", cfg.URL)
	}
	return &GremlinClient{client: client}, nil
}

// Submit implements Client
func (c *GremlinClient) Submit(ctx context.Context, stmt Statement) ([]graph.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resultSet, err := c.client.Submit(stmt.Query, stmt.Bindings)
	if err != nil {
		return nil, classifyGremlinError(stmt, err)
	}

	results, err := resultSet.All()
	if err != nil {
		return nil, classifyGremlinError(stmt, err)
	}

	values := make([]interface{}, 0, len(results))
	for _, r := range results {
		values = append(values, r.GetInterface())
	}
	return valuesToRecords(values), nil
}

// valuesToRecords converts driver result values to records, one per value
func valuesToRecords(values []interface{}) []graph.Record {
	records := make([]graph.Record, 0, len(values))
	for _, v := range values {
		records = append(records, toRecord(v))
	}
	return records
}

// Close implements Client
func (c *GremlinClient) Close() error {
	c.client.Close()
	return nil
}

// classifyGremlinError reports script evaluation, invalid argument and malformed
// request failures (status 597, 499 and 498) as query errors.
func classifyGremlinError(stmt Statement, err error) error {
	msg := strings.ToUpper(err.Error())
	for _, marker := range []string{"597", "SCRIPT EVALUATION", "SCRIPTEVALUATION", "499", "INVALID REQUEST ARGUMENTS", "498", "MALFORMED"} {
		if strings.Contains(msg, marker) {
			return &graph.QueryError{Query: stmt.Query, Err: err}
		}
	}
	return err
}
