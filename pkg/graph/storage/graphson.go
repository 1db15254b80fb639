package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/northwesternmutual/grammes"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/sirupsen/logrus"
	"github.com/supplyon/gremcos"

	"github.com/athapong/gremlin-graph/pkg/graph"
)

// graphSONExecutor runs a script over a GraphSON websocket connection and returns
// the data of every response frame.
type graphSONExecutor interface {
	Execute(query string, bindings map[string]interface{}) ([]json.RawMessage, error)
	Stop() error
}

// GraphSONClient submits scripts over websocket with a GraphSON serializer.
// graphsonv2 goes through gremcos, which also handles the Cosmos DB dialect of
// the protocol. graphsonv3 goes through grammes.
type GraphSONClient struct {
	executor graphSONExecutor
}

// NewGraphSONClient builds a client for a resolved config. Connections are opened
// on the first Submit.
func NewGraphSONClient(cfg Config, logger *logrus.Logger) (*GraphSONClient, error) {
	if err := checkWebsocketURL(cfg.URL); err != nil {
		return nil, &graph.ConfigurationError{Param: "url", EnvVar: EnvURL, Msg: err.Error()}
	}

	switch cfg.Serializer {
	case SerializerGraphSONV2:
		executor, err := newCosmosExecutor(cfg, logger)
		if err != nil {
			return nil, err
		}
		return &GraphSONClient{executor: executor}, nil
	case SerializerGraphSONV3:
		return &GraphSONClient{executor: newGrammesExecutor(cfg, logger)}, nil
	default:
		return nil, &graph.ConfigurationError{Param: "serializer", EnvVar: EnvSerializer, Msg: "not a GraphSON serializer: " + cfg.Serializer}
	}
}

func checkWebsocketURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("unsupported URL scheme %q, use ws or wss", u.Scheme)
	}
	return nil
}

type executeResult struct {
	frames []json.RawMessage
	err    error
}

// Submit implements Client. Neither driver takes a context, so a cancelled
// context returns early and the in-flight request is left to its read timeout.
func (c *GraphSONClient) Submit(ctx context.Context, stmt Statement) ([]graph.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan executeResult, 1)
	go func() {
		frames, err := c.executor.Execute(stmt.Query, stmt.Bindings)
		done <- executeResult{frames: frames, err: err}
	}()

	var result executeResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result = <-done:
	}
	if result.err != nil {
		return nil, classifyGraphSONError(stmt, result.err)
	}

	return decodeGraphSONFrames(result.frames)
}

// Close implements Client
func (c *GraphSONClient) Close() error {
	return c.executor.Stop()
}

// decodeGraphSONFrames flattens the result lists of all frames into records
func decodeGraphSONFrames(frames []json.RawMessage) ([]graph.Record, error) {
	records := make([]graph.Record, 0)
	for _, frame := range frames {
		if len(frame) == 0 {
			continue
		}

		var data interface{}
		if err := json.Unmarshal(frame, &data); err != nil {
			return nil, errors.Wrap(err, "failed to decode gremlin response")
		}

		switch rows := untypeGraphSON(data).(type) {
		case nil:
		case []interface{}:
			for _, row := range rows {
				records = append(records, toRecord(row))
			}
		default:
			records = append(records, toRecord(rows))
		}
	}
	return records, nil
}

// classifyGraphSONError maps client side status codes (malformed request, invalid
// arguments, script evaluation) to query errors.
func classifyGraphSONError(stmt Statement, err error) error {
	var cosmosErr gremcos.Error
	if errors.As(err, &cosmosErr) {
		if cosmosErr.Category == gremcos.ErrorCategoryClient {
			return &graph.QueryError{Query: stmt.Query, Err: err}
		}
		return err
	}
	return classifyGremlinError(stmt, err)
}

// untypeGraphSON strips GraphSON {"@type","@value"} wrappers, turning g:Map pair lists
// into maps and g:List/g:Set into slices.
func untypeGraphSON(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		typeName, hasType := t["@type"].(string)
		value, hasValue := t["@value"]
		if hasType && hasValue && len(t) == 2 {
			switch typeName {
			case "g:Map":
				pairs, _ := value.([]interface{})
				out := make(map[string]interface{}, len(pairs)/2)
				for i := 0; i+1 < len(pairs); i += 2 {
					out[fmt.Sprint(untypeGraphSON(pairs[i]))] = untypeGraphSON(pairs[i+1])
				}
				return out
			default:
				return untypeGraphSON(value)
			}
		}
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = untypeGraphSON(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = untypeGraphSON(val)
		}
		return out
	default:
		return v
	}
}

// cosmosExecutor runs scripts through a gremcos connection pool
type cosmosExecutor struct {
	cosmos    gremcos.Cosmos
	logWriter interface{ Close() error }
}

func newCosmosExecutor(cfg Config, logger *logrus.Logger) (*cosmosExecutor, error) {
	logWriter := logger.WriterLevel(logrus.DebugLevel)
	cosmos, err := gremcos.New(cfg.URL,
		gremcos.WithAuth(cfg.Username, cfg.Password),
		gremcos.WithLogger(zerolog.New(logWriter).With().Str("component", "gremcos").Logger()),
		gremcos.MetricsPrefix("graph"),
		gremcos.AutomaticRetries(3, 30*time.Second),
	)
	if err != nil {
		_ = logWriter.Close()
		return nil, errors.Wrapf(err, "failed to create gremlin client for %s", cfg.URL)
	}
	return &cosmosExecutor{cosmos: cosmos, logWriter: logWriter}, nil
}

func (e *cosmosExecutor) Execute(query string, bindings map[string]interface{}) ([]json.RawMessage, error) {
	if bindings == nil {
		bindings = map[string]interface{}{}
	}

	responses, err := e.cosmos.ExecuteWithBindings(query, bindings, map[string]interface{}{})
	if err != nil {
		return nil, err
	}

	frames := make([]json.RawMessage, 0, len(responses))
	for _, resp := range responses {
		if resp.IsEmpty() {
			continue
		}
		frames = append(frames, resp.Result.Data)
	}
	return frames, nil
}

func (e *cosmosExecutor) Stop() error {
	err := e.cosmos.Stop()
	if e.logWriter != nil {
		_ = e.logWriter.Close()
	}
	return err
}

// grammesConn is the part of *grammes.Client used here
type grammesConn interface {
	ExecuteBoundStringQuery(query string, bindings, rebindings map[string]string) ([][]byte, error)
	Close()
}

// grammesExecutor dials a grammes client on first use and speaks GraphSON v3
type grammesExecutor struct {
	dial func() (grammesConn, error)

	mutex sync.Mutex
	conn  grammesConn
}

func newGrammesExecutor(cfg Config, logger *logrus.Logger) *grammesExecutor {
	return &grammesExecutor{
		dial: func() (grammesConn, error) {
			client, err := grammes.DialWithWebSocket(cfg.URL,
				grammes.WithAuthUserPass(cfg.Username, cfg.Password),
				grammes.WithGremlinVersion(3),
				grammes.WithLogger(grammesLogger{entry: logger.WithField("component", "grammes")}),
			)
			if err != nil {
				return nil, errors.Wrapf(err, "failed to connect to %s", cfg.URL)
			}
			return client, nil
		},
	}
}

func (e *grammesExecutor) connection() (grammesConn, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.conn == nil {
		conn, err := e.dial()
		if err != nil {
			return nil, err
		}
		e.conn = conn
	}
	return e.conn, nil
}

func (e *grammesExecutor) Execute(query string, bindings map[string]interface{}) ([]json.RawMessage, error) {
	stringBindings, err := stringBindings(bindings)
	if err != nil {
		return nil, err
	}

	conn, err := e.connection()
	if err != nil {
		return nil, err
	}

	raw, err := conn.ExecuteBoundStringQuery(query, stringBindings, map[string]string{})
	if err != nil {
		return nil, err
	}

	frames := make([]json.RawMessage, 0, len(raw))
	for _, frame := range raw {
		frames = append(frames, json.RawMessage(frame))
	}
	return frames, nil
}

func (e *grammesExecutor) Stop() error {
	e.mutex.Lock()
	defer e.mutex.Unlock()

	if e.conn != nil {
		e.conn.Close()
		e.conn = nil
	}
	return nil
}

// stringBindings converts bindings for grammes, which only carries string values
func stringBindings(bindings map[string]interface{}) (map[string]string, error) {
	out := make(map[string]string, len(bindings))
	for k, v := range bindings {
		s, ok := v.(string)
		if !ok {
			return nil, errors.Errorf("binding %q is %T, graphsonv3 bindings must be strings", k, v)
		}
		out[k] = s
	}
	return out, nil
}

// grammesLogger forwards grammes client logs to logrus
type grammesLogger struct {
	entry *logrus.Entry
}

func (l grammesLogger) PrintQuery(q string) {
	l.entry.WithField("query", q).Debug("Submitting gremlin script")
}

func (l grammesLogger) Debug(msg string, fields map[string]interface{}) {
	l.entry.WithFields(logrus.Fields(fields)).Debug(msg)
}

func (l grammesLogger) Error(msg string, err error) {
	l.entry.WithError(err).Error(msg)
}

// Fatal does not exit; a failed connection is reported through the returned error.
func (l grammesLogger) Fatal(msg string, err error) {
	l.entry.WithError(err).Error(msg)
}
