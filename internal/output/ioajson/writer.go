package ioajson

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"provgraph/internal/logger"
	"provgraph/pkg/models"
)

// Writer outputs rule-matched records to a JSON lines file. The file is
// opened on the first WriteEvents call, so a run that fails earlier leaves any
// previous matches file untouched.
type Writer struct {
	path    string
	file    *os.File
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewWriter creates a JSONL writer for IOA events.
func NewWriter(path string) (*Writer, error) {
	if path == "" {
		return nil, fmt.Errorf("ioa output path is empty")
	}
	return &Writer{path: path}, nil
}

func (w *Writer) open() error {
	dir := filepath.Dir(w.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	w.file = f
	w.encoder = json.NewEncoder(f)
	logger.Infof("IOA JSON writer initialized: %s", w.path)
	return nil
}

// WriteEvents writes a batch of IOA events. The first call truncates the file,
// even for an empty batch.
func (w *Writer) WriteEvents(events []*models.IOAEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		if err := w.open(); err != nil {
			return err
		}
	}
	for _, event := range events {
		if err := w.encoder.Encode(event); err != nil {
			return fmt.Errorf("failed to encode ioa event: %w", err)
		}
	}
	return nil
}

// Close closes the output file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}
