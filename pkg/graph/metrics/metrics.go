package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Backend metrics
	GraphQueries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_queries_total",
			Help: "Statements submitted to the graph backend",
		},
		[]string{"op", "status"},
	)

	// Ingestion metrics
	VerticesUpserted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_vertices_upserted_total",
			Help: "Vertices found or created during document ingestion",
		},
		[]string{"label"},
	)

	EdgesCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_edges_created_total",
			Help: "Edges created during document ingestion",
		},
		[]string{"rel_type"},
	)

	SchemaRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "graph_schema_refresh_total",
			Help: "Schema refresh attempts",
		},
		[]string{"status"},
	)

	// Extraction metrics
	PDFPagesExtracted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdf_pages_extracted_total",
		Help: "Pages extracted from PDF documents",
	})

	DocumentProcessingErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "document_processing_errors_total",
			Help: "Total number of document processing errors",
		},
		[]string{"processor", "error_type"},
	)
)

// Status returns the status label for an operation result
func Status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
