package documents

import (
	"context"

	"github.com/google/uuid"

	"github.com/JaimeStill/lectern/pkg/repository"
)

// System defines the public contract for document domain operations.
type System interface {
	Find(ctx context.Context, id uuid.UUID) (*Document, error)
	// Content downloads the document text from blob storage.
	Content(ctx context.Context, doc *Document) (string, error)
	// ListPending returns up to limit documents awaiting course generation,
	// oldest first.
	ListPending(ctx context.Context, limit int) ([]Document, error)
	// Register stores a document, or refreshes it when the provider reports a
	// newer modification. Repeating a registration is a no-op.
	Register(ctx context.Context, cmd RegisterCommand) (*Document, Outcome, error)
	// MarkProcessed records that a document's courses were generated. It runs
	// on the caller's executor so it can join the transaction saving them.
	MarkProcessed(ctx context.Context, e repository.Executor, id uuid.UUID) error
}
