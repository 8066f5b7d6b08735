package graphjson

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"provgraph/internal/logger"
	"provgraph/pkg/models"
)

// Writer outputs the render document to a JSON file.
type Writer struct {
	path string
	mu   sync.Mutex
}

// NewWriter creates a JSON writer for render documents.
func NewWriter(path string) (*Writer, error) {
	if path == "" {
		return nil, fmt.Errorf("output path is empty")
	}
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	logger.Infof("Graph JSON writer initialized: %s", path)
	return &Writer{path: path}, nil
}

// WriteDocument replaces the output file with doc. The document is written
// to a sibling temp file first so readers never see a partial graph.
func (w *Writer) WriteDocument(doc *models.RenderDocument) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode render document: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(w.path), ".provgraph-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp output: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close output: %w", err)
	}
	if err := os.Rename(tmpName, w.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to move output into place: %w", err)
	}
	return nil
}

// Close is a no-op; each write is self-contained.
func (w *Writer) Close() error {
	return nil
}
