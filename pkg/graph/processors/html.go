package processors

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/athapong/gremlin-graph/pkg/graph"
)

// HTMLProcessor extracts the body text of an HTML document as a single page.
type HTMLProcessor struct{}

// NewHTMLProcessor creates a new instance of HTMLProcessor.
func NewHTMLProcessor() *HTMLProcessor {
	return &HTMLProcessor{}
}

// ExtractPages implements graph.PageExtractor
func (p *HTMLProcessor) ExtractPages(ctx context.Context, content []byte) ([]graph.PageRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to create document from HTML content: %w", err)
	}

	// Scripts and styles are not part of the readable text
	doc.Find("script, style").Remove()
	text := strings.Join(strings.Fields(doc.Find("body").Text()), " ")

	return Paginate([]string{text}), nil
}

// SupportedTypes returns the MIME types supported by the HTMLProcessor.
func (p *HTMLProcessor) SupportedTypes() []string {
	return []string{"text/html"}
}
