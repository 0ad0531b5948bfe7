package core

// validation.go checks imported rows against the spreadsheet column contract.
//
// Validation happens at two levels:
//  1. Header validation: every required column must be present (by its
//     English name or its Portuguese alias). Failing this rejects the
//     whole dataset before any row is looked at.
//  2. Row validation: every required cell must be non-empty after
//     trimming. A failing row is rejected with its file row number and
//     the import moves on to the next one.

import (
	"fmt"
	"strings"
)

// Column describes one column of the import contract.
type Column struct {
	Name        string   // canonical name, used in error messages
	Aliases     []string // other accepted header spellings
	Required    bool
	Description string
}

// Canonical column names.
const (
	ColID             = "ID"
	ColCaseTitle      = "Case Title"
	ColSteps          = "Steps"
	ColExpectedResult = "Expected Result"
	ColActualResult   = "Actual Result"
	ColStatus         = "Status"
	ColComments       = "Comments"
)

// ImportColumns is the column contract, required columns first.
var ImportColumns = []Column{
	{Name: ColID, Required: true, Description: "Test case identifier"},
	{Name: ColCaseTitle, Aliases: []string{"Caso de Teste"}, Required: true, Description: "Test case title"},
	{Name: ColSteps, Aliases: []string{"Passo-a-passo"}, Required: true, Description: "Steps to execute"},
	{Name: ColExpectedResult, Aliases: []string{"Resultado Esperado"}, Required: true, Description: "Expected result"},
	{Name: ColActualResult, Aliases: []string{"Resultado Obtido"}, Description: "Observed result"},
	{Name: ColStatus, Aliases: []string{"Estado"}, Description: "PASS, FAIL, BLOCKED or PENDING (Portuguese accepted)"},
	{Name: ColComments, Aliases: []string{"Comentários"}, Description: "Free-form notes, not imported"},
}

// RequiredColumns returns the canonical names of the required columns.
func RequiredColumns() []string {
	var names []string
	for _, c := range ImportColumns {
		if c.Required {
			names = append(names, c.Name)
		}
	}
	return names
}

// ColumnIndex maps canonical column names to positions in a row.
type ColumnIndex map[string]int

// ResolveColumns matches a header row against the contract. Columns that
// are not present are simply absent from the result.
func ResolveColumns(header []string) ColumnIndex {
	idx := MakeHeaderIndex(header)
	cols := make(ColumnIndex, len(ImportColumns))

	for _, c := range ImportColumns {
		for _, name := range append([]string{c.Name}, c.Aliases...) {
			if pos, ok := idx[headerKey(name)]; ok {
				cols[c.Name] = pos
				break
			}
		}
	}

	return cols
}

// CheckColumns verifies the header carries every required column.
// It returns a *MissingColumnsError listing what is missing and what was found.
func CheckColumns(header []string) error {
	cols := ResolveColumns(header)

	var missing []string
	for _, name := range RequiredColumns() {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return &MissingColumnsError{Missing: missing, Found: foundColumns(header)}
	}
	return nil
}

func foundColumns(header []string) []string {
	found := make([]string, 0, len(header))
	for _, h := range header {
		if h = CleanCell(strings.TrimPrefix(h, "\ufeff")); h != "" {
			found = append(found, h)
		}
	}
	return found
}

// RowFields is an accepted row with every field trimmed and the status
// normalized. Optional fields are "" when absent.
type RowFields struct {
	CaseNumber     string
	Title          string
	Steps          string
	ExpectedResult string
	ActualResult   string
	Status         Status
}

// RowResult is the verdict on one row: Accepted with Fields, or rejected
// with Reason.
type RowResult struct {
	Row      int
	Accepted bool
	Fields   RowFields
	Reason   string
}

// RowValidator validates data rows against a resolved header.
type RowValidator struct {
	cols     ColumnIndex
	statuses *StatusTable
}

// NewRowValidator checks the header once and returns a validator for its rows.
func NewRowValidator(header []string, statuses *StatusTable) (*RowValidator, error) {
	if err := CheckColumns(header); err != nil {
		return nil, err
	}
	if statuses == nil {
		statuses = DefaultStatusTable()
	}
	return &RowValidator{cols: ResolveColumns(header), statuses: statuses}, nil
}

// ValidateRow validates one row. rowNumber is the 1-indexed file row and is
// echoed into the rejection reason.
func (v *RowValidator) ValidateRow(rowNumber int, row []string) RowResult {
	var missing []string
	for _, name := range RequiredColumns() {
		if v.cell(row, name) == "" {
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return RowResult{Row: rowNumber, Reason: rowReason(rowNumber, missing)}
	}

	return RowResult{
		Row:      rowNumber,
		Accepted: true,
		Fields: RowFields{
			CaseNumber:     v.cell(row, ColID),
			Title:          v.cell(row, ColCaseTitle),
			Steps:          v.cell(row, ColSteps),
			ExpectedResult: v.cell(row, ColExpectedResult),
			ActualResult:   v.cell(row, ColActualResult),
			Status:         v.statuses.Normalize(v.cell(row, ColStatus)),
		},
	}
}

func (v *RowValidator) cell(row []string, name string) string {
	return cellAt(v.cols, row, name)
}

func cellAt(cols ColumnIndex, row []string, name string) string {
	pos, ok := cols[name]
	if !ok || pos >= len(row) {
		return ""
	}
	return CleanCell(row[pos])
}

func rowReason(rowNumber int, missing []string) string {
	quoted := make([]string, len(missing))
	for i, m := range missing {
		quoted[i] = fmt.Sprintf("%q", m)
	}
	if len(quoted) == 1 {
		return fmt.Sprintf("Row %d: missing required value for %s", rowNumber, quoted[0])
	}
	return fmt.Sprintf("Row %d: missing required values for %s", rowNumber, strings.Join(quoted, ", "))
}
