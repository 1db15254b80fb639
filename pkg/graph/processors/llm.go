package processors

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/athapong/gremlin-graph/pkg/graph"
	"github.com/athapong/gremlin-graph/pkg/graph/metrics"
)

const DefaultLLMModel = "gpt-4o-mini"

const extractionPrompt = `You are a top-tier algorithm designed for extracting information in structured formats to build a knowledge graph.
Extract the entities (nodes) and relations between them from the text provided by the user.
Answer with a single JSON object and nothing else, using exactly this shape:
{"nodes":[{"id":"...","type":"...","properties":[{"key":"...","value":"..."}]}],
 "rels":[{"source":{"id":"...","type":"..."},"target":{"id":"...","type":"..."},"type":"...","properties":[{"key":"...","value":"..."}]}]}
Rules:
- Node ids are human readable names found in the text, never integers.
- Node types are basic, general labels such as "Person" or "Organization".
- Relationship types are general and timeless, such as "WORKS AT" rather than "BECAME PROFESSOR".
- Use the same id for every mention of the same entity.
- Omit properties you cannot find in the text.`

// LLMExtractor asks an OpenAI compatible chat model for the entities and relations
// of a page and maps the answer to a graph document.
type LLMExtractor struct {
	client *openai.Client
	model  string
	logger *logrus.Logger
}

func NewLLMExtractor(client *openai.Client, model string) *LLMExtractor {
	if model == "" {
		model = DefaultLLMModel
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &LLMExtractor{
		client: client,
		model:  model,
		logger: logger,
	}
}

// Extract implements graph.GraphExtractor
func (e *LLMExtractor) Extract(ctx context.Context, page graph.PageRecord, source *graph.SourceDocument) (*graph.GraphDocument, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: extractionPrompt},
			{Role: openai.ChatMessageRoleUser, Content: page.Text},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0,
	})
	if err != nil {
		metrics.DocumentProcessingErrors.WithLabelValues("llm", "completion").Inc()
		return nil, errors.Wrapf(err, "completion for page %d failed", page.PageNumber)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.Errorf("completion for page %d returned no choices", page.PageNumber)
	}

	kg, err := graph.ParseKnowledgeGraph(stripCodeFence(resp.Choices[0].Message.Content))
	if err != nil {
		metrics.DocumentProcessingErrors.WithLabelValues("llm", "parse").Inc()
		return nil, errors.Wrapf(err, "page %d", page.PageNumber)
	}

	doc := graph.MapToGraphDocument(*kg, source)

	e.logger.WithFields(logrus.Fields{
		"page":          page.PageNumber,
		"model":         e.model,
		"nodes":         len(doc.Nodes),
		"relationships": len(doc.Relationships),
	}).Debug("LLM extraction completed")

	return &doc, nil
}

// Some models wrap JSON answers in markdown fences even in JSON mode
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
