package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/athapong/gremlin-graph/pkg/graph"
	"github.com/athapong/gremlin-graph/pkg/graph/processors"
	"github.com/athapong/gremlin-graph/pkg/graph/storage"
	"github.com/athapong/gremlin-graph/services"
	"github.com/athapong/gremlin-graph/tools"
)

func main() {
	envFile := flag.String("env", ".env", "Path to environment file")
	enableSSE := flag.Bool("sse", false, "Enable SSE server")
	sseAddr := flag.String("sse-addr", ":8080", "Address for SSE server to listen on")
	sseBasePath := flag.String("sse-base-path", "/mcp", "Base path for SSE endpoints")
	metricsAddr := flag.String("metrics-addr", "", "Address to serve Prometheus metrics on, disabled when empty")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil {
		log.Printf("Warning: Error loading env file %s: %v\n", *envFile, err)
	}

	// stdout belongs to the stdio transport
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stderr)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			log.Printf("Serving metrics on %s/metrics", *metricsAddr)
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Printf("Metrics server stopped: %v", err)
			}
		}()
	}

	g, err := storage.NewGremlinGraph(storage.Config{}, storage.WithLogger(logger))
	if err != nil {
		log.Fatalf("Failed to create graph client: %v", err)
	}
	defer g.Close()

	extractor, err := newExtractor(os.Getenv("GRAPH_EXTRACTOR"))
	if err != nil {
		log.Fatalf("Failed to create graph extractor: %v", err)
	}
	pipeline := graph.NewPipeline(extractor, nil)
	pipeline.SetLogger(logger)
	processors.RegisterPageExtractors(pipeline)

	mcpServer := server.NewMCPServer(
		"gremlin-graph",
		"1.0.0",
		server.WithLogging(),
		server.WithToolCapabilities(true),
	)

	tools.RegisterGraphTools(mcpServer, g, pipeline)

	if *enableSSE || os.Getenv("ENABLE_SSE") == "true" {
		sseServer := server.NewSSEServer(
			mcpServer,
			server.WithStaticBasePath(*sseBasePath),
			server.WithKeepAlive(true),
		)

		go func() {
			log.Printf("Starting SSE server on %s with base path %s", *sseAddr, *sseBasePath)
			if err := sseServer.Start(*sseAddr); err != nil {
				log.Fatalf("Failed to start SSE server: %v", err)
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := sseServer.Shutdown(ctx); err != nil {
			log.Printf("Error during SSE server shutdown: %v", err)
		}
		log.Println("SSE server shutdown complete")
	} else {
		if err := server.ServeStdio(mcpServer); err != nil {
			panic(fmt.Sprintf("Server error: %v", err))
		}
	}
}

// newExtractor picks the graph extractor named by GRAPH_EXTRACTOR, "nlp" by default
func newExtractor(name string) (graph.GraphExtractor, error) {
	switch name {
	case "", "nlp":
		return processors.NewNLPExtractor(), nil
	case "llm":
		client, model, err := services.DefaultLLMClient()
		if err != nil {
			return nil, err
		}
		return processors.NewLLMExtractor(client, model), nil
	default:
		return nil, fmt.Errorf("unknown GRAPH_EXTRACTOR %q (use nlp or llm)", name)
	}
}
