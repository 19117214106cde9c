package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes translated by Errors.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Errors maps database failures onto a domain's sentinel errors. A nil field
// leaves the matching failure unchanged.
type Errors struct {
	// NotFound replaces sql.ErrNoRows.
	NotFound error
	// Duplicate replaces a unique violation.
	Duplicate error
	// MissingReference replaces a foreign key violation, such as a row that
	// points at a document that does not exist.
	MissingReference error
}

// Map translates err. Constraint violations keep the constraint name as
// context; the sentinel stays matchable with errors.Is.
func (e Errors) Map(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) && e.NotFound != nil {
		return e.NotFound
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	var mapped error
	switch pgErr.Code {
	case pgUniqueViolation:
		mapped = e.Duplicate
	case pgForeignKeyViolation:
		mapped = e.MissingReference
	}

	switch {
	case mapped == nil:
		return err
	case pgErr.ConstraintName != "":
		return fmt.Errorf("%w (%s)", mapped, pgErr.ConstraintName)
	default:
		return mapped
	}
}
