package courses

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/lectern/workflow"
)

// System defines the public contract for course set operations.
type System interface {
	Find(ctx context.Context, id uuid.UUID) (*CourseSet, error)
	FindByDocument(ctx context.Context, documentID uuid.UUID) (*CourseSet, error)
	// Generate runs the course workflow over a document under the configured
	// run timeout, stores the result (replacing any earlier set for the
	// document), exports it, and marks the document processed unless the run
	// failed. sink may be nil.
	Generate(ctx context.Context, documentID uuid.UUID, sink workflow.ProgressSink) (*CourseSet, error)
	// Export writes the set's JSON and HTML renderings to blob storage and
	// records the JSON key.
	Export(ctx context.Context, id uuid.UUID) (*CourseSet, error)
}
