package repository_test

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JaimeStill/lectern/pkg/repository"
)

var (
	errNotFound  = errors.New("not found")
	errDuplicate = errors.New("duplicate")
	errMissing   = errors.New("missing reference")
)

func TestErrorsMap(t *testing.T) {
	full := repository.Errors{NotFound: errNotFound, Duplicate: errDuplicate, MissingReference: errMissing}
	other := errors.New("boom")
	fk := &pgconn.PgError{Code: "23503"}

	tests := []struct {
		name   string
		errs   repository.Errors
		err    error
		want   error
		substr string
	}{
		{"nil", full, nil, nil, ""},
		{"no rows", full, fmt.Errorf("query: %w", sql.ErrNoRows), errNotFound, ""},
		{"unique violation", full, &pgconn.PgError{Code: "23505"}, errDuplicate, ""},
		{"foreign key violation", full, fmt.Errorf("insert: %w", fk), errMissing, ""},
		{
			"constraint name kept",
			full,
			&pgconn.PgError{Code: "23505", ConstraintName: "course_sets_document_id_key"},
			errDuplicate,
			"course_sets_document_id_key",
		},
		{"unmapped pg code", full, &pgconn.PgError{Code: "40001"}, nil, ""},
		{"nil field passes through", repository.Errors{NotFound: errNotFound}, fk, nil, ""},
		{"other", full, other, nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.errs.Map(tt.err)
			if tt.want == nil {
				if got != tt.err {
					t.Errorf("Map = %v, want %v unchanged", got, tt.err)
				}
				return
			}
			if !errors.Is(got, tt.want) {
				t.Errorf("Map = %v, want %v", got, tt.want)
			}
			if tt.substr != "" && !strings.Contains(got.Error(), tt.substr) {
				t.Errorf("Map = %q, want it to name %q", got, tt.substr)
			}
		})
	}
}

type payload struct {
	Names []string `json:"names"`
}

func TestJSON(t *testing.T) {
	in := repository.JSON[payload]{V: payload{Names: []string{"a", "b"}}}

	v, err := in.Value()
	if err != nil {
		t.Fatalf("Value failed: %v", err)
	}

	var out repository.JSON[payload]
	if err := out.Scan(v); err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if len(out.V.Names) != 2 || out.V.Names[1] != "b" {
		t.Errorf("Scan = %+v", out.V)
	}

	if err := out.Scan(nil); err != nil || out.V.Names != nil {
		t.Errorf("Scan(nil) = %+v, %v", out.V, err)
	}
	if err := out.Scan(42); err == nil {
		t.Error("expected error for unsupported type")
	}
	if err := out.Scan(`{"names":["c"]}`); err != nil || out.V.Names[0] != "c" {
		t.Errorf("Scan(string) = %+v, %v", out.V, err)
	}
}
