package processors

import (
	"path/filepath"
	"strings"

	"github.com/athapong/gremlin-graph/pkg/graph"
)

var extensionTypes = map[string]string{
	".pdf":      "application/pdf",
	".html":     "text/html",
	".htm":      "text/html",
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
}

// ContentTypeForPath returns the MIME type the page extractors register for the
// file extension of path, or "" when none does.
func ContentTypeForPath(path string) string {
	return extensionTypes[strings.ToLower(filepath.Ext(path))]
}

// RegisterPageExtractors adds every page extractor in this package to p
func RegisterPageExtractors(p *graph.Pipeline) {
	p.AddPageExtractor(NewPDFProcessor())
	p.AddPageExtractor(NewHTMLProcessor())
	p.AddPageExtractor(NewTextProcessor())
}
