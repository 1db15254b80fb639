package graph

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

var (
	pipelineProcessingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "pipeline_processing_duration_seconds",
			Help: "Time spent turning a source file into graph documents",
		},
		[]string{"status"},
	)

	documentProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_documents_processed_total",
			Help: "Total number of graph documents produced by the pipeline",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(pipelineProcessingDuration)
	prometheus.MustRegister(documentProcessedTotal)
}

// Pipeline routes content to a page extractor by MIME type, extracts a graph
// document per page and hands the documents to a writer.
type Pipeline struct {
	pageExtractors []PageExtractor
	extractor      GraphExtractor
	writer         DocumentWriter
	mutex          sync.RWMutex
	logger         *logrus.Logger
	batchSize      int
	includeSource  bool
}

// NewPipeline creates a pipeline. writer may be nil, in which case documents are
// extracted but not written.
func NewPipeline(extractor GraphExtractor, writer DocumentWriter) *Pipeline {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	return &Pipeline{
		pageExtractors: make([]PageExtractor, 0),
		extractor:      extractor,
		writer:         writer,
		batchSize:      10,
		logger:         logger,
	}
}

// SetLogger replaces the pipeline logger
func (p *Pipeline) SetLogger(logger *logrus.Logger) {
	p.logger = logger
}

// SetIncludeSource is forwarded to AddGraphDocuments
func (p *Pipeline) SetIncludeSource(include bool) {
	p.includeSource = include
}

// AddPageExtractor registers a page extractor for its supported MIME types
func (p *Pipeline) AddPageExtractor(extractor PageExtractor) {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.pageExtractors = append(p.pageExtractors, extractor)
}

func (p *Pipeline) pageExtractorFor(mimeType string) PageExtractor {
	p.mutex.RLock()
	defer p.mutex.RUnlock()

	for _, pe := range p.pageExtractors {
		for _, t := range pe.SupportedTypes() {
			if strings.EqualFold(t, mimeType) {
				return pe
			}
		}
	}
	return nil
}

// Process extracts graph documents from content and writes them in batches.
// Pages without text are skipped.
func (p *Pipeline) Process(ctx context.Context, content []byte, mimeType string, metadata map[string]interface{}) ([]GraphDocument, error) {
	if p.extractor == nil {
		return nil, fmt.Errorf("no graph extractor configured in pipeline")
	}

	pageExtractor := p.pageExtractorFor(mimeType)
	if pageExtractor == nil {
		return nil, fmt.Errorf("no page extractor for content type %q", mimeType)
	}

	timer := prometheus.NewTimer(pipelineProcessingDuration.WithLabelValues("single"))
	defer timer.ObserveDuration()

	pages, err := pageExtractor.ExtractPages(ctx, content)
	if err != nil {
		return nil, fmt.Errorf("page extraction failed: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"content_type": mimeType,
		"pages":        len(pages),
	}).Info("Extracting graph documents")

	documents := make([]GraphDocument, 0, len(pages))
	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}

		source := &SourceDocument{
			PageContent: page.Text,
			Metadata:    pageMetadata(metadata, page),
		}

		doc, err := p.extractor.Extract(ctx, page, source)
		if err != nil {
			documentProcessedTotal.WithLabelValues("error").Inc()
			p.logger.WithError(err).WithField("page", page.PageNumber).Error("Failed to extract graph document")
			return documents, fmt.Errorf("page %d: %w", page.PageNumber, err)
		}
		if doc == nil {
			continue
		}

		documentProcessedTotal.WithLabelValues("success").Inc()
		documents = append(documents, *doc)
	}

	if p.writer == nil {
		return documents, nil
	}

	for i := 0; i < len(documents); i += p.batchSize {
		end := i + p.batchSize
		if end > len(documents) {
			end = len(documents)
		}

		if err := p.writer.AddGraphDocuments(ctx, documents[i:end], p.includeSource); err != nil {
			return documents, fmt.Errorf("writing documents %d-%d failed: %w", i, end-1, err)
		}
	}

	p.logger.WithField("documents", len(documents)).Info("Pipeline completed")
	return documents, nil
}

func pageMetadata(metadata map[string]interface{}, page PageRecord) map[string]interface{} {
	out := make(map[string]interface{}, len(metadata)+2)
	for k, v := range metadata {
		out[k] = v
	}
	out["page_number"] = page.PageNumber
	out["char_offset"] = page.CharOffset
	return out
}
