package processors

import (
	"bytes"
	"context"
	"io"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"

	"github.com/athapong/gremlin-graph/pkg/graph"
	"github.com/athapong/gremlin-graph/pkg/graph/metrics"
)

// PDFProcessor extracts per-page text from PDF content
type PDFProcessor struct{}

func NewPDFProcessor() *PDFProcessor {
	return &PDFProcessor{}
}

// ExtractPages implements graph.PageExtractor
func (p *PDFProcessor) ExtractPages(ctx context.Context, content []byte) ([]graph.PageRecord, error) {
	return ParsePDFReader(bytes.NewReader(content), int64(len(content)))
}

func (p *PDFProcessor) SupportedTypes() []string {
	return []string{"application/pdf"}
}

// ParsePDF returns one record per page of the PDF at path, in document order
func ParsePDF(path string) ([]graph.PageRecord, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return extractPages(r)
}

// ParsePDFReader is ParsePDF for in-memory or already opened content
func ParsePDFReader(ra io.ReaderAt, size int64) ([]graph.PageRecord, error) {
	r, err := pdf.NewReader(ra, size)
	if err != nil {
		return nil, err
	}
	return extractPages(r)
}

func extractPages(r *pdf.Reader) ([]graph.PageRecord, error) {
	totalPage := r.NumPage()
	texts := make([]string, 0, totalPage)

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		p := r.Page(pageIndex)
		if p.V.IsNull() {
			texts = append(texts, "")
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			metrics.DocumentProcessingErrors.WithLabelValues("pdf", "page_text").Inc()
			return nil, errors.Wrapf(err, "page %d", pageIndex-1)
		}
		texts = append(texts, text)
	}

	metrics.PDFPagesExtracted.Add(float64(totalPage))
	return Paginate(texts), nil
}

// Paginate numbers pages from zero and records, for each page, the number of
// characters on the pages before it.
func Paginate(texts []string) []graph.PageRecord {
	pages := make([]graph.PageRecord, 0, len(texts))
	offset := 0
	for i, text := range texts {
		pages = append(pages, graph.PageRecord{
			PageNumber: i,
			CharOffset: offset,
			Text:       text,
		})
		offset += utf8.RuneCountInString(text)
	}
	return pages
}
