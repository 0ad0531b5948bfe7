package core

// tabular.go turns an uploaded spreadsheet into a Dataset.
//
// CSV files are read with encoding/csv after stripping a UTF-8 BOM and
// replacing invalid UTF-8. XLSX workbooks are read with excelize; only
// the first sheet is imported. Legacy .xls is not supported.
//
// The header is the first row (within the first MaxHeaderSearchRows)
// carrying every required column; if no row does, the first non-blank
// row is used so the missing-column error can list what was found.

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// MaxHeaderSearchRows bounds how far down the header row is looked for.
const MaxHeaderSearchRows = 10

// DataRow is one non-blank data row. Line is its 1-indexed row in the file.
type DataRow struct {
	Line  int
	Cells []string
}

// Dataset is a parsed spreadsheet: a header plus its non-blank data rows.
type Dataset struct {
	Header     []string
	HeaderLine int
	Rows       []DataRow
}

type rawRow struct {
	line  int
	cells []string
}

// FileKind returns the lowercase extension of name without the dot.
func FileKind(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// ParseDataset parses data according to the extension of fileName.
func ParseDataset(fileName string, data []byte) (*Dataset, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	var (
		rows []rawRow
		err  error
	)

	switch FileKind(fileName) {
	case "csv":
		rows, err = readCSV(data)
	case "xlsx", "xlsm":
		rows, err = readXLSX(data)
	default:
		return nil, fmt.Errorf("%w: %q (use .xlsx or .csv)", ErrUnsupportedFile, fileName)
	}
	if err != nil {
		return nil, err
	}

	return buildDataset(rows)
}

func readCSV(data []byte) ([]rawRow, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	data = sanitizeUTF8(data)

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var rows []rawRow
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
		}
		line, _ := r.FieldPos(0)
		rows = append(rows, rawRow{line: line, cells: record})
	}

	return rows, nil
}

func readXLSX(data []byte) ([]rawRow, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyFile
	}

	records, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ErrMalformedFile, sheets[0], err)
	}

	rows := make([]rawRow, len(records))
	for i, rec := range records {
		rows[i] = rawRow{line: i + 1, cells: rec}
	}
	return rows, nil
}

func buildDataset(rows []rawRow) (*Dataset, error) {
	headerAt := findHeaderRow(rows)
	if headerAt < 0 {
		return nil, ErrEmptyFile
	}

	ds := &Dataset{
		Header:     rows[headerAt].cells,
		HeaderLine: rows[headerAt].line,
	}

	for _, r := range rows[headerAt+1:] {
		if isEmptyRow(r.cells) {
			continue
		}
		ds.Rows = append(ds.Rows, DataRow{Line: r.line, Cells: r.cells})
	}

	return ds, nil
}

func findHeaderRow(rows []rawRow) int {
	first := -1
	limit := min(len(rows), MaxHeaderSearchRows)

	for i := 0; i < limit; i++ {
		if isEmptyRow(rows[i].cells) {
			continue
		}
		if first < 0 {
			first = i
		}
		if CheckColumns(rows[i].cells) == nil {
			return i
		}
	}

	if first < 0 {
		for i := limit; i < len(rows); i++ {
			if !isEmptyRow(rows[i].cells) {
				return i
			}
		}
	}
	return first
}
