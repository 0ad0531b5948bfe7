package core

// templates.go describes the import column contract to clients, either as
// data for the template endpoint or as a ready-to-fill workbook.

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// TemplateColumn is one column of the published import contract.
type TemplateColumn struct {
	Name        string   `json:"name"`
	Aliases     []string `json:"aliases,omitempty"`
	Description string   `json:"description"`
}

// ImportTemplateInfo is the column contract as served to clients.
type ImportTemplateInfo struct {
	RequiredColumns []TemplateColumn `json:"required_columns"`
	OptionalColumns []TemplateColumn `json:"optional_columns"`
	StatusValues    []Status         `json:"status_values"`
}

// ImportTemplate returns the column contract.
func ImportTemplate() ImportTemplateInfo {
	info := ImportTemplateInfo{
		RequiredColumns: []TemplateColumn{},
		OptionalColumns: []TemplateColumn{},
		StatusValues:    append([]Status(nil), Statuses...),
	}

	for _, c := range ImportColumns {
		tc := TemplateColumn{Name: c.Name, Aliases: c.Aliases, Description: c.Description}
		if c.Required {
			info.RequiredColumns = append(info.RequiredColumns, tc)
		} else {
			info.OptionalColumns = append(info.OptionalColumns, tc)
		}
	}

	return info
}

// TemplateSheet is the sheet name used in the template workbook.
const TemplateSheet = "Test Cases"

// WriteTemplateXLSX writes an empty import workbook with the contract's
// header row and one example row.
func WriteTemplateXLSX(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", TemplateSheet); err != nil {
		return fmt.Errorf("template sheet: %w", err)
	}

	header := make([]any, len(ImportColumns))
	for i, c := range ImportColumns {
		header[i] = c.Name
	}
	example := []any{"TC-001", "Login with valid credentials", "Open login page; enter user and password; submit",
		"User lands on the dashboard", "", string(StatusPending), ""}

	if err := f.SetSheetRow(TemplateSheet, "A1", &header); err != nil {
		return fmt.Errorf("template header: %w", err)
	}
	if err := f.SetSheetRow(TemplateSheet, "A2", &example); err != nil {
		return fmt.Errorf("template example: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	return nil
}
