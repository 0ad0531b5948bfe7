package core

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"postgres duplicate key", errors.New("ERROR: duplicate key value violates unique constraint"), "DB001"},
		{"sqlite unique constraint", errors.New("constraint failed: UNIQUE constraint failed: reports.id"), "DB001"},
		{"sqlite foreign key", errors.New("FOREIGN KEY constraint failed"), "DB002"},
		{"connection refused", errors.New("dial tcp: connection refused"), "DB003"},
		{"sqlite busy", errors.New("database is locked (5) (SQLITE_BUSY)"), "DB005"},
		{"missing columns", &MissingColumnsError{Missing: []string{"Steps"}}, "VAL001"},
		{"row reason", errors.New(`Row 3: missing required value for "Expected Result"`), "VAL002"},
		{"title required", fmt.Errorf("create report: %w", ErrTitleRequired), "VAL003"},
		{"invalid status", fmt.Errorf("%w: %q", ErrInvalidStatus, "MAYBE"), "VAL004"},
		{"blank case field", requireCaseFields("", "ok"), "VAL006"},
		{"file too large", ErrFileTooLarge, "FILE001"},
		{"malformed file", fmt.Errorf("%w: bare quote", ErrMalformedFile), "FILE002"},
		{"unsupported file", ErrUnsupportedFile, "FILE003"},
		{"empty file", ErrEmptyFile, "FILE005"},
		{"evidence type", ErrEvidenceType, "EVD001"},
		{"forbidden looks like not found", fmt.Errorf("report r1: %w", ErrForbidden), "AUTH001"},
		{"not found", fmt.Errorf("report r1: %w", ErrNotFound), "AUTH001"},
		{"busy", ErrTooManyOperations, "OPS001"},
		{"cancelled", context.Canceled, "OPS002"},
		{"deadline", context.DeadlineExceeded, "OPS003"},
		{"unknown error returns default", errors.New("some random internal error"), "ERR000"},
		{"case insensitive matching", errors.New("DUPLICATE KEY value"), "DB001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError() code = %q, want %q", got.Code, tt.wantCode)
			}
		})
	}
}

func TestMapError_DeniedAndMissingIdentical(t *testing.T) {
	denied := MapError(ErrForbidden)
	missing := MapError(ErrNotFound)
	if denied != missing {
		t.Errorf("MapError(ErrForbidden) = %+v, MapError(ErrNotFound) = %+v, want identical", denied, missing)
	}
}

func TestFormatUserError(t *testing.T) {
	result := FormatUserError(ErrEmptyFile)

	expected := "The uploaded file is empty (Code: FILE005). Please upload a file with a header row"
	if result != expected {
		t.Errorf("FormatUserError() = %q, want %q", result, expected)
	}
	if FormatUserError(nil) != "" {
		t.Error("FormatUserError(nil) should be empty")
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error is not user facing", nil, false},
		{"known error is user facing", ErrFileTooLarge, true},
		{"unknown error is not user facing", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	if got := NewUserError(nil); got != nil {
		t.Errorf("NewUserError(nil) = %v, want nil", got)
	}

	techErr := fmt.Errorf("import: %w", ErrMalformedFile)
	userErr := NewUserError(techErr)

	if userErr.Error() != "The spreadsheet could not be read" {
		t.Errorf("Error() = %q, want user message", userErr.Error())
	}
	if !errors.Is(userErr, ErrMalformedFile) {
		t.Error("Unwrap() should expose the original error chain")
	}
}
