package documents

import (
	"errors"

	"github.com/JaimeStill/lectern/pkg/repository"
)

// Domain errors for document operations.
var (
	ErrNotFound          = errors.New("document not found")
	ErrDuplicate         = errors.New("document already exists")
	ErrMissingExternalID = errors.New("document external id is required")
	ErrEmptyContent      = errors.New("document content is empty")
)

var errs = repository.Errors{NotFound: ErrNotFound, Duplicate: ErrDuplicate}
