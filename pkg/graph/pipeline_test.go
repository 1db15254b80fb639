package graph_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/athapong/gremlin-graph/pkg/graph"
)

// linePages treats each line as a page
type linePages struct{}

func (linePages) ExtractPages(ctx context.Context, content []byte) ([]graph.PageRecord, error) {
	pages := make([]graph.PageRecord, 0)
	offset := 0
	for i, line := range strings.Split(string(content), "\n") {
		pages = append(pages, graph.PageRecord{PageNumber: i, CharOffset: offset, Text: line})
		offset += len(line)
	}
	return pages, nil
}

func (linePages) SupportedTypes() []string { return []string{"text/x-lines"} }

// wordNodes makes one node per word of the page
type wordNodes struct {
	failOn string
}

func (w wordNodes) Extract(ctx context.Context, page graph.PageRecord, source *graph.SourceDocument) (*graph.GraphDocument, error) {
	if w.failOn != "" && strings.Contains(page.Text, w.failOn) {
		return nil, errors.New("extraction failed")
	}
	doc := &graph.GraphDocument{Source: source}
	for _, word := range strings.Fields(page.Text) {
		doc.Nodes = append(doc.Nodes, graph.MapToBaseNode(graph.RawNode{ID: word, Type: "word"}))
	}
	return doc, nil
}

type recordingWriter struct {
	batches       [][]graph.GraphDocument
	includeSource []bool
}

func (r *recordingWriter) AddGraphDocuments(ctx context.Context, documents []graph.GraphDocument, includeSource bool) error {
	r.batches = append(r.batches, documents)
	r.includeSource = append(r.includeSource, includeSource)
	return nil
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestPipelineProcess(t *testing.T) {
	writer := &recordingWriter{}
	pipeline := graph.NewPipeline(wordNodes{}, writer)
	pipeline.SetLogger(quietLogger())
	pipeline.SetIncludeSource(true)
	pipeline.AddPageExtractor(linePages{})

	docs, err := pipeline.Process(context.Background(), []byte("Ada Babbage\n   \nLondon"), "text/x-lines",
		map[string]interface{}{"source": "notes.txt"})
	require.NoError(t, err)

	// Blank page skipped
	require.Len(t, docs, 2)
	assert.Len(t, docs[0].Nodes, 2)
	assert.Equal(t, "London", docs[1].Nodes[0].ID)

	require.NotNil(t, docs[1].Source)
	assert.Equal(t, "London", docs[1].Source.PageContent)
	assert.Equal(t, map[string]interface{}{
		"source":      "notes.txt",
		"page_number": 2,
		"char_offset": 14,
	}, docs[1].Source.Metadata)

	require.Len(t, writer.batches, 1)
	assert.Len(t, writer.batches[0], 2)
	assert.Equal(t, []bool{true}, writer.includeSource)
}

func TestPipelineBatches(t *testing.T) {
	writer := &recordingWriter{}
	pipeline := graph.NewPipeline(wordNodes{}, writer)
	pipeline.SetLogger(quietLogger())
	pipeline.AddPageExtractor(linePages{})

	lines := make([]string, 25)
	for i := range lines {
		lines[i] = "word"
	}
	docs, err := pipeline.Process(context.Background(), []byte(strings.Join(lines, "\n")), "TEXT/X-LINES", nil)
	require.NoError(t, err)

	assert.Len(t, docs, 25)
	require.Len(t, writer.batches, 3)
	assert.Len(t, writer.batches[0], 10)
	assert.Len(t, writer.batches[2], 5)
}

func TestPipelineWithoutWriter(t *testing.T) {
	pipeline := graph.NewPipeline(wordNodes{}, nil)
	pipeline.SetLogger(quietLogger())
	pipeline.AddPageExtractor(linePages{})

	docs, err := pipeline.Process(context.Background(), []byte("Ada"), "text/x-lines", nil)
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestPipelineErrors(t *testing.T) {
	t.Run("no extractor", func(t *testing.T) {
		_, err := graph.NewPipeline(nil, nil).Process(context.Background(), nil, "text/x-lines", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no graph extractor")
	})

	t.Run("unsupported content type", func(t *testing.T) {
		pipeline := graph.NewPipeline(wordNodes{}, nil)
		pipeline.AddPageExtractor(linePages{})

		_, err := pipeline.Process(context.Background(), nil, "application/pdf", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `no page extractor for content type "application/pdf"`)
	})

	t.Run("extraction failure stops the pipeline", func(t *testing.T) {
		writer := &recordingWriter{}
		pipeline := graph.NewPipeline(wordNodes{failOn: "boom"}, writer)
		pipeline.SetLogger(quietLogger())
		pipeline.AddPageExtractor(linePages{})

		docs, err := pipeline.Process(context.Background(), []byte("fine\nboom"), "text/x-lines", nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "page 1")
		assert.Len(t, docs, 1)
		assert.Empty(t, writer.batches)
	})
}
