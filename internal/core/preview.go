package core

// preview.go implements the dry run of an import: the same parsing and
// checks, with nothing persisted.

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/JonMunkholm/assurelog/internal/logging"
)

// PreviewRowLimit is how many data rows the preview echoes back.
const PreviewRowLimit = 5

// ValidationPreview is the dry-run verdict on a spreadsheet.
type ValidationPreview struct {
	Valid          bool
	TotalRows      int
	ValidRows      int
	InvalidRows    []int
	MissingColumns []string
	FoundColumns   []string
	PreviewData    []map[string]string
}

// ValidateImport parses and checks a spreadsheet without persisting it.
// Missing columns do not fail the call; they make Valid false and every
// row that lacks a required cell is counted invalid.
func (s *Service) ValidateImport(ctx context.Context, id Identity, fileName string, data []byte) (*ValidationPreview, error) {
	if int64(len(data)) > s.maxImportSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(data), s.maxImportSize)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ds, err := ParseDataset(fileName, data)
	if err != nil {
		return nil, fmt.Errorf("validate %s: %w", fileName, err)
	}

	p := previewDataset(ds)
	logging.WithFields(ctx, "file", fileName, "user_id", id.ID).Debug("import validated",
		"valid", p.Valid,
		"total_rows", p.TotalRows,
		"valid_rows", p.ValidRows,
	)
	return p, nil
}

func previewDataset(ds *Dataset) *ValidationPreview {
	p := &ValidationPreview{
		TotalRows:      len(ds.Rows),
		InvalidRows:    []int{},
		MissingColumns: []string{},
		FoundColumns:   foundColumns(ds.Header),
		PreviewData:    []map[string]string{},
	}

	if err := CheckColumns(ds.Header); err != nil {
		var mc *MissingColumnsError
		if errors.As(err, &mc) {
			p.MissingColumns = mc.Missing
		}
	}

	cols := ResolveColumns(ds.Header)
	required := RequiredColumns()

	for _, row := range ds.Rows {
		ok := true
		for _, name := range required {
			if cellAt(cols, row.Cells, name) == "" {
				ok = false
				break
			}
		}
		if ok {
			p.ValidRows++
		} else {
			p.InvalidRows = append(p.InvalidRows, row.Line)
		}
	}

	for i := 0; i < len(ds.Rows) && i < PreviewRowLimit; i++ {
		p.PreviewData = append(p.PreviewData, rowMap(ds.Header, ds.Rows[i].Cells))
	}

	p.Valid = len(p.MissingColumns) == 0 && p.ValidRows > 0
	return p
}

// rowMap keys a row by its header names. Unnamed columns get "Column N".
func rowMap(header, cells []string) map[string]string {
	m := make(map[string]string, len(header))
	for i, h := range header {
		name := CleanCell(h)
		if name == "" {
			name = "Column " + strconv.Itoa(i+1)
		}
		value := ""
		if i < len(cells) {
			value = CleanCell(cells[i])
		}
		m[name] = value
	}
	return m
}
