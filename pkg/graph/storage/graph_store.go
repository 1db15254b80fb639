package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"github.com/athapong/gremlin-graph/pkg/graph"
)

// DocumentStore persists graph documents outside the graph backend
type DocumentStore interface {
	// StoreDocuments replaces the stored documents
	StoreDocuments(ctx context.Context, documents []graph.GraphDocument) error

	// LoadDocuments returns the stored documents
	LoadDocuments(ctx context.Context) ([]graph.GraphDocument, error)
}

// JSONDocumentStore implements DocumentStore using a JSON file. It also implements
// graph.DocumentWriter by appending, so a pipeline can write to a file instead of
// a backend.
type JSONDocumentStore struct {
	filePath string
	mutex    sync.Mutex
}

// NewJSONDocumentStore creates a new JSON document store
func NewJSONDocumentStore(filePath string) *JSONDocumentStore {
	return &JSONDocumentStore{
		filePath: filePath,
	}
}

// StoreDocuments writes documents as indented JSON
func (s *JSONDocumentStore) StoreDocuments(ctx context.Context, documents []graph.GraphDocument) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.write(documents)
}

// LoadDocuments reads documents from the JSON file
func (s *JSONDocumentStore) LoadDocuments(ctx context.Context) ([]graph.GraphDocument, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.read()
}

// AddGraphDocuments appends documents to the file, creating it if needed.
// includeSource is ignored; sources are always stored with their documents.
func (s *JSONDocumentStore) AddGraphDocuments(ctx context.Context, documents []graph.GraphDocument, includeSource bool) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	existing, err := s.read()
	if err != nil && !os.IsNotExist(errors.Cause(err)) {
		return err
	}
	return s.write(append(existing, documents...))
}

func (s *JSONDocumentStore) write(documents []graph.GraphDocument) error {
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}

	if documents == nil {
		documents = []graph.GraphDocument{}
	}
	data, err := json.MarshalIndent(documents, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to encode graph documents")
	}

	return os.WriteFile(s.filePath, data, 0644)
}

func (s *JSONDocumentStore) read() ([]graph.GraphDocument, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	var documents []graph.GraphDocument
	if err := json.Unmarshal(data, &documents); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", s.filePath)
	}
	return documents, nil
}
