package processors

import (
	"context"
	"strings"

	"github.com/athapong/gremlin-graph/pkg/graph"
)

// TextProcessor treats form feeds in plain text as page breaks
type TextProcessor struct{}

func NewTextProcessor() *TextProcessor {
	return &TextProcessor{}
}

// ExtractPages implements graph.PageExtractor
func (p *TextProcessor) ExtractPages(ctx context.Context, content []byte) ([]graph.PageRecord, error) {
	return Paginate(strings.Split(string(content), "\f")), nil
}

func (p *TextProcessor) SupportedTypes() []string {
	return []string{"text/plain", "text/markdown"}
}
