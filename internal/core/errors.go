package core

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("access denied")
	ErrMalformedFile   = errors.New("malformed file")
	ErrUnsupportedFile = errors.New("unsupported file type")
	ErrEmptyFile       = errors.New("empty file")
	ErrFileTooLarge    = errors.New("file too large")
	ErrEvidenceType    = errors.New("evidence file type not allowed")
	ErrTitleRequired   = errors.New("report title is required")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrFieldRequired   = errors.New("required field is empty")
)

// requireCaseFields rejects a test case whose title or expected result is
// blank after trimming. Values are checked as given; callers trim first.
func requireCaseFields(title, expected string) error {
	var blank []string
	if title == "" {
		blank = append(blank, ColCaseTitle)
	}
	if expected == "" {
		blank = append(blank, ColExpectedResult)
	}
	if len(blank) > 0 {
		return fmt.Errorf("%w: %s", ErrFieldRequired, strings.Join(blank, ", "))
	}
	return nil
}

// MissingColumnsError rejects a whole dataset whose header lacks required
// columns. Missing holds canonical names, Found the header as read.
type MissingColumnsError struct {
	Missing []string
	Found   []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}
