// Package documents implements the source document domain for Lectern.
// Document metadata lives in PostgreSQL and document text in blob storage;
// registration is idempotent on the upstream provider's identifier.
package documents

import (
	"time"

	"github.com/google/uuid"
)

// Document statuses.
const (
	StatusPending   = "pending"
	StatusProcessed = "processed"
)

// Document is a registered source document awaiting or past course generation.
type Document struct {
	ID           uuid.UUID  `json:"id"`
	ExternalID   string     `json:"external_id"`
	Title        string     `json:"title"`
	StorageKey   string     `json:"storage_key"`
	SizeBytes    int64      `json:"size_bytes"`
	LastModified *time.Time `json:"last_modified"`
	Status       string     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	ProcessedAt  *time.Time `json:"processed_at"`
}

// RegisterCommand carries a document supplied by the upstream provider.
// LastModified is the provider's modification time, when it reports one.
type RegisterCommand struct {
	ExternalID   string
	Title        string
	Content      string
	LastModified *time.Time
}

// Validate reports whether the command can be registered.
func (c RegisterCommand) Validate() error {
	if c.ExternalID == "" {
		return ErrMissingExternalID
	}
	if c.Content == "" {
		return ErrEmptyContent
	}
	return nil
}

// Outcome reports what Register did with a command.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
)

// registerAction decides whether an incoming command creates, refreshes, or
// leaves alone the stored document. A document is refreshed only when the
// provider reports a modification later than the one recorded.
func registerAction(existing *Document, cmd RegisterCommand) Outcome {
	if existing == nil {
		return OutcomeCreated
	}
	if cmd.LastModified == nil {
		return OutcomeUnchanged
	}
	if existing.LastModified == nil || cmd.LastModified.After(*existing.LastModified) {
		return OutcomeUpdated
	}
	return OutcomeUnchanged
}
