package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/athapong/gremlin-graph/pkg/graph"
	"github.com/athapong/gremlin-graph/pkg/graph/processors"
	"github.com/athapong/gremlin-graph/pkg/graph/storage"
	"github.com/athapong/gremlin-graph/pkg/graph/visualizer"
	"github.com/athapong/gremlin-graph/services"
)

var (
	input           = flag.String("input", "", "PDF, HTML or text file, or a directory of them")
	envFile         = flag.String("env", ".env", "Path to environment file")
	extractorName   = flag.String("extractor", "llm", "Graph extractor to use (llm, nlp)")
	fromJSON        = flag.String("from-json", "", "Write graph documents previously saved with -dump instead of extracting")
	dump            = flag.String("dump", "", "Save extracted graph documents to this JSON file")
	dryRun          = flag.Bool("dry-run", false, "Extract only, do not connect to the graph backend")
	includeSource   = flag.Bool("include-source", false, "Link source pages to the nodes they mention")
	refreshSchema   = flag.Bool("refresh-schema", false, "Refresh and print the graph schema after writing (needs apoc, e.g. GRAPH_BACKEND=neo4j)")
	visualize       = flag.Bool("visualize", false, "Generate a visualization of the extracted graph")
	visualizeOutput = flag.String("viz-output", "knowledge_graph.html", "Output file for the visualization")
	logLevel        = flag.String("log-level", "info", "Logging level (debug, info, warn, error)")
)

func main() {
	flag.Parse()

	logger := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		logger.Fatalf("Invalid log level: %v", err)
	}
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	if err := godotenv.Load(*envFile); err != nil {
		logger.Warnf("Error loading env file %s: %v", *envFile, err)
	}

	if *input == "" && *fromJSON == "" {
		logger.Fatal("Either -input or -from-json must be specified")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var documents []graph.GraphDocument
	if *fromJSON != "" {
		documents, err = storage.NewJSONDocumentStore(*fromJSON).LoadDocuments(ctx)
		if err != nil {
			logger.Fatalf("Failed to load graph documents: %v", err)
		}
		logger.Infof("Loaded %d graph documents from %s", len(documents), *fromJSON)
	} else {
		documents, err = extract(ctx, logger)
		if err != nil {
			logger.Fatalf("Extraction failed: %v", err)
		}
	}

	if *dump != "" {
		if err := storage.NewJSONDocumentStore(*dump).StoreDocuments(ctx, documents); err != nil {
			logger.Fatalf("Failed to save graph documents: %v", err)
		}
		logger.Infof("Graph documents saved to %s", *dump)
	}

	if !*dryRun {
		if err := write(ctx, logger, documents); err != nil {
			logger.Fatalf("Failed to write graph: %v", err)
		}
	}

	if *visualize {
		generator := graph.NewKnowledgeGraphGenerator()
		for i := range documents {
			if err := generator.AddDocument(&documents[i]); err != nil {
				logger.Errorf("Failed to add document to graph: %v", err)
			}
		}
		snapshot := generator.Generate()

		viz := visualizer.NewD3Visualizer(*visualizeOutput)
		if err := viz.Visualize(snapshot); err != nil {
			logger.Errorf("Failed to visualize knowledge graph: %v", err)
		} else {
			logger.Infof("Visualization with %d nodes and %d edges saved to %s",
				len(snapshot.Nodes), len(snapshot.Edges), *visualizeOutput)
		}
	}
}

func extract(ctx context.Context, logger *logrus.Logger) ([]graph.GraphDocument, error) {
	extractor, err := newExtractor(*extractorName)
	if err != nil {
		return nil, err
	}

	pipeline := graph.NewPipeline(extractor, nil)
	pipeline.SetLogger(logger)
	processors.RegisterPageExtractors(pipeline)

	files, err := inputFiles(*input)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no supported input files found in %s", *input)
	}

	logger.Infof("Processing %d input files...", len(files))

	documents := make([]graph.GraphDocument, 0)
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			logger.Errorf("Failed to read file %s: %v", file, err)
			continue
		}

		docs, err := pipeline.Process(ctx, content, processors.ContentTypeForPath(file), map[string]interface{}{
			"document_id": uuid.New().String(),
			"filename":    filepath.Base(file),
			"source":      file,
		})
		if err != nil {
			return nil, fmt.Errorf("%s: %w", file, err)
		}
		documents = append(documents, docs...)
	}

	return documents, nil
}

func write(ctx context.Context, logger *logrus.Logger, documents []graph.GraphDocument) error {
	g, err := storage.NewGremlinGraph(storage.Config{}, storage.WithLogger(logger))
	if err != nil {
		return err
	}
	defer g.Close()

	if err := g.AddGraphDocuments(ctx, documents, *includeSource); err != nil {
		return err
	}
	logger.Infof("Wrote %d graph documents", len(documents))

	if *refreshSchema {
		printSchema(ctx, logger, g, os.Stdout)
	}
	return nil
}

type schemaSource interface {
	RefreshSchema(ctx context.Context) error
	Schema() string
}

// printSchema refreshes and prints the schema. The documents are already written
// at this point, so a failed refresh is only reported.
func printSchema(ctx context.Context, logger *logrus.Logger, g schemaSource, w io.Writer) {
	if err := g.RefreshSchema(ctx); err != nil {
		logger.Warnf("Graph written but schema refresh failed: %v", err)
		return
	}
	fmt.Fprintln(w, g.Schema())
}

func newExtractor(name string) (graph.GraphExtractor, error) {
	switch name {
	case "nlp":
		return processors.NewNLPExtractor(), nil
	case "llm":
		client, model, err := services.DefaultLLMClient()
		if err != nil {
			return nil, err
		}
		return processors.NewLLMExtractor(client, model), nil
	default:
		return nil, fmt.Errorf("unknown extractor %q (use llm or nlp)", name)
	}
}

// inputFiles returns path itself, or the supported files below it when it is a directory
func inputFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		if processors.ContentTypeForPath(path) == "" {
			return nil, fmt.Errorf("unsupported file type: %s", path)
		}
		return []string{path}, nil
	}

	var files []string
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && processors.ContentTypeForPath(p) != "" {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}
