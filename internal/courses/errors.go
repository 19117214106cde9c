package courses

import (
	"errors"

	"github.com/JaimeStill/lectern/internal/documents"
	"github.com/JaimeStill/lectern/pkg/repository"
)

// Domain errors for course set operations.
var (
	ErrNotFound  = errors.New("course set not found")
	ErrDuplicate = errors.New("course set already exists")
	ErrTimeout   = errors.New("course generation exceeded its run timeout")
)

var errs = repository.Errors{
	NotFound:         ErrNotFound,
	Duplicate:        ErrDuplicate,
	MissingReference: documents.ErrNotFound,
}
