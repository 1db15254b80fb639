package storage

import (
	"os"
	"regexp"
	"strings"

	"github.com/athapong/gremlin-graph/pkg/graph"
)

const (
	BackendGremlin = "gremlin"
	BackendNeo4j   = "neo4j"

	SerializerGraphSONV2    = "graphsonv2"
	SerializerGraphSONV3    = "graphsonv3"
	SerializerGraphBinaryV1 = "graphbinaryv1"

	DefaultUsername        = "/dbs/cosmicworks/colls/products"
	DefaultNeo4jUsername   = "neo4j"
	DefaultTraversalSource = "g"
	DefaultSerializer      = SerializerGraphSONV2
	DefaultDatabase        = "neo4j"

	EnvURL             = "GREMLIN_URI"
	EnvUsername        = "GREMLIN_USERNAME"
	EnvPassword        = "GREMLIN_PASSWORD"
	EnvTraversalSource = "GREMLIN_TRAVERSAL_SOURCE"
	EnvSerializer      = "GREMLIN_SERIALIZER"
	EnvBackend         = "GRAPH_BACKEND"
	EnvDatabase        = "NEO4J_DATABASE"
)

var traversalSourcePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Config holds the connection parameters of a graph backend. Empty fields are
// filled from the environment by Resolve.
type Config struct {
	Backend         string
	URL             string
	Username        string
	Password        string
	TraversalSource string
	Serializer      string
	Database        string
}

// Resolve returns a copy of c with every field set from, in order of precedence,
// the explicit value, the named environment variable, or the default.
func (c Config) Resolve() (Config, error) {
	out := Config{
		Backend:         strings.ToLower(firstNonEmpty(c.Backend, os.Getenv(EnvBackend), BackendGremlin)),
		URL:             firstNonEmpty(c.URL, os.Getenv(EnvURL)),
		Password:        firstNonEmpty(c.Password, os.Getenv(EnvPassword)),
		TraversalSource: firstNonEmpty(c.TraversalSource, os.Getenv(EnvTraversalSource), DefaultTraversalSource),
		Serializer:      strings.ToLower(firstNonEmpty(c.Serializer, os.Getenv(EnvSerializer), DefaultSerializer)),
		Database:        firstNonEmpty(c.Database, os.Getenv(EnvDatabase), DefaultDatabase),
	}

	defaultUsername := DefaultUsername
	if out.Backend == BackendNeo4j {
		defaultUsername = DefaultNeo4jUsername
	}
	out.Username = firstNonEmpty(c.Username, os.Getenv(EnvUsername), defaultUsername)

	switch out.Backend {
	case BackendGremlin, BackendNeo4j:
	default:
		return Config{}, &graph.ConfigurationError{Param: "backend", EnvVar: EnvBackend, Msg: "unsupported backend " + out.Backend + ", use gremlin or neo4j"}
	}

	if out.URL == "" {
		return Config{}, &graph.ConfigurationError{Param: "url", EnvVar: EnvURL, Msg: "no endpoint URL configured"}
	}
	if out.Password == "" {
		return Config{}, &graph.ConfigurationError{Param: "password", EnvVar: EnvPassword, Msg: "no password configured"}
	}

	switch out.Serializer {
	case SerializerGraphSONV2, SerializerGraphSONV3, SerializerGraphBinaryV1:
	default:
		return Config{}, &graph.ConfigurationError{
			Param:  "serializer",
			EnvVar: EnvSerializer,
			Msg:    "unsupported serializer " + out.Serializer + ", use graphsonv2, graphsonv3 or graphbinaryv1",
		}
	}

	if !traversalSourcePattern.MatchString(out.TraversalSource) {
		return Config{}, &graph.ConfigurationError{
			Param:  "traversal_source",
			EnvVar: EnvTraversalSource,
			Msg:    "traversal source must be a plain identifier, got " + out.TraversalSource,
		}
	}

	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
