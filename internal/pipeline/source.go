package pipeline

import (
	"context"

	"provgraph/pkg/models"
)

// Source loads the raw records of one run.
type Source interface {
	Load(ctx context.Context) ([][]byte, error)
	Source() string
}

// DocumentWriter writes the render document.
type DocumentWriter interface {
	WriteDocument(doc *models.RenderDocument) error
	Close() error
}

// IOAWriter writes rule-matched records.
type IOAWriter interface {
	WriteEvents(events []*models.IOAEvent) error
	Close() error
}
