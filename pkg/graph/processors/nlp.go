package processors

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/jdkato/prose/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/athapong/gremlin-graph/pkg/graph"
)

var (
	processingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "nlp_processing_duration_seconds",
			Help: "Time spent extracting graph documents from page text",
		},
		[]string{"processor_type"},
	)

	entityCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nlp_entities_extracted_total",
			Help: "Number of entities extracted",
		},
		[]string{"entity_type"},
	)
)

const (
	EntityTypePerson     = "person"
	EntityTypeLocation   = "location"
	EntityTypeTechnology = "technology"
	EntityTypeLanguage   = "language"
	EntityTypeDatabase   = "database"

	// RelationMentionedWith links entities that appear in the same sentence
	RelationMentionedWith = "mentioned with"
)

// Named entity labels produced by prose
var nerLabels = map[string]string{
	"PERSON": EntityTypePerson,
	"GPE":    EntityTypeLocation,
}

type entityPattern struct {
	re         *regexp.Regexp
	entityType string
}

// Vocabulary the statistical model does not tag
var entityPatterns = []entityPattern{
	{regexp.MustCompile(`(?i)\b(kubernetes|docker|terraform|kafka|gremlin|tinkerpop)\b`), EntityTypeTechnology},
	{regexp.MustCompile(`(?i)\b(java|python|golang|javascript|typescript|rust)\b`), EntityTypeLanguage},
	{regexp.MustCompile(`(?i)\b(mysql|postgresql|mongodb|redis|neo4j|cosmos db|neptune)\b`), EntityTypeDatabase},
}

func init() {
	prometheus.MustRegister(processingDuration)
	prometheus.MustRegister(entityCount)
}

// NLPExtractor builds graph documents without an LLM: entities found by prose's
// named entity recognizer and a small pattern list become nodes, and entities that
// share a sentence are linked with a "mentioned with" relationship.
type NLPExtractor struct {
	logger *logrus.Logger
}

// NewNLPExtractor creates a new NLP extractor
func NewNLPExtractor() *NLPExtractor {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &NLPExtractor{
		logger: logger,
	}
}

// Extract implements graph.GraphExtractor
func (e *NLPExtractor) Extract(ctx context.Context, page graph.PageRecord, source *graph.SourceDocument) (*graph.GraphDocument, error) {
	timer := prometheus.NewTimer(processingDuration.WithLabelValues("nlp"))
	defer timer.ObserveDuration()

	doc, err := prose.NewDocument(page.Text, prose.WithTagging(false), prose.WithExtraction(false))
	if err != nil {
		e.logger.WithError(err).Error("Failed to segment page text")
		return nil, err
	}

	kg := graph.RawKnowledgeGraph{
		Nodes: make([]graph.RawNode, 0),
		Rels:  make([]graph.RawRelationship, 0),
	}
	// first spelling seen on the page, keyed by entityKey
	canonical := make(map[string]graph.RawNode)
	seenPairs := mapset.NewSet[string]()
	pageProp := graph.RawProperty{Key: "source page", Value: strconv.Itoa(page.PageNumber)}

	for _, sent := range doc.Sentences() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entities, err := e.sentenceEntities(sent.Text)
		if err != nil {
			return nil, err
		}

		for i, ent := range entities {
			key := entityKey(ent.ID)
			if first, ok := canonical[key]; ok {
				entities[i] = first
				continue
			}
			canonical[key] = ent

			ent.Properties = []graph.RawProperty{pageProp}
			ent.HasProperties = true
			kg.Nodes = append(kg.Nodes, ent)
			entityCount.WithLabelValues(ent.Type).Inc()
		}

		for i := 0; i < len(entities); i++ {
			for j := i + 1; j < len(entities); j++ {
				if entities[i].ID == entities[j].ID {
					continue
				}
				if !seenPairs.Add(entities[i].ID + "\x00" + entities[j].ID) {
					continue
				}
				kg.Rels = append(kg.Rels, graph.RawRelationship{
					Source: entities[i],
					Target: entities[j],
					Type:   RelationMentionedWith,
				})
			}
		}
	}

	result := graph.MapToGraphDocument(kg, source)

	e.logger.WithFields(logrus.Fields{
		"page":          page.PageNumber,
		"nodes":         len(result.Nodes),
		"relationships": len(result.Relationships),
	}).Debug("NLP extraction completed")

	return &result, nil
}

// sentenceEntities returns the distinct entities of one sentence in order of appearance
func (e *NLPExtractor) sentenceEntities(text string) ([]graph.RawNode, error) {
	doc, err := prose.NewDocument(text, prose.WithSegmentation(false))
	if err != nil {
		return nil, err
	}

	seen := mapset.NewSet[string]()
	entities := make([]graph.RawNode, 0)
	add := func(name, entityType string) {
		name = strings.TrimSpace(name)
		if name == "" || !seen.Add(entityKey(name)) {
			return
		}
		entities = append(entities, graph.RawNode{ID: name, Type: entityType})
	}

	for _, ent := range doc.Entities() {
		if entityType, ok := nerLabels[ent.Label]; ok {
			add(ent.Text, entityType)
		}
	}

	for _, p := range entityPatterns {
		for _, match := range p.re.FindAllString(text, -1) {
			add(match, p.entityType)
		}
	}

	return entities, nil
}

// entityKey is the identity of an entity name within a page
func entityKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
