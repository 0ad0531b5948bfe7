package core

// import.go creates one report from a spreadsheet.
//
// The flow is:
//  1. Parse the file into a Dataset (fails fast on unreadable files)
//  2. Check the column contract once (fails fast, nothing persisted)
//  3. In one transaction: create the report header, validate every row,
//     stage accepted rows as test cases, and insert them
//  4. Return the tally plus every rejected row with its reason
//
// A bad row never stops the batch. A persistence error rolls the whole
// import back, report included.

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/assurelog/internal/logging"
)

// ImportRequest is one spreadsheet upload plus the report header hints.
type ImportRequest struct {
	FileName        string
	Data            []byte
	Title           string // blank means "Import <FileName>"
	TestEnvironment string
	FeatureScenario string
}

// RowFailure is one rejected row.
type RowFailure struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// ImportOutcome summarizes one import call.
type ImportOutcome struct {
	ReportID      string
	ImportedCount int
	TotalRows     int
	Errors        []string
	Failures      []RowFailure
}

// importBatch is the per-call accumulator for staged test cases and failures.
type importBatch struct {
	cases    []TestCase
	failures []RowFailure
}

// stageRows validates every data row in file order. Accepted rows become
// test cases of reportID positioned in staging order.
func stageRows(ds *Dataset, v *RowValidator, reportID string, now time.Time) importBatch {
	batch := importBatch{cases: make([]TestCase, 0, len(ds.Rows))}

	for _, row := range ds.Rows {
		res := v.ValidateRow(row.Line, row.Cells)
		if !res.Accepted {
			batch.failures = append(batch.failures, RowFailure{Row: res.Row, Reason: res.Reason})
			continue
		}

		batch.cases = append(batch.cases, TestCase{
			ID:                  uuid.NewString(),
			ReportID:            reportID,
			Position:            len(batch.cases),
			CaseNumber:          res.Fields.CaseNumber,
			Title:               res.Fields.Title,
			ScenarioDescription: res.Fields.Steps,
			ExpectedResult:      res.Fields.ExpectedResult,
			ActualResult:        res.Fields.ActualResult,
			Status:              res.Fields.Status,
			Evidence:            []Evidence{},
			CreatedAt:           now,
			UpdatedAt:           now,
		})
	}

	return batch
}

// DefaultImportTitle is the report title used when none is given.
func DefaultImportTitle(fileName string) string {
	return "Import " + fileName
}

// Import parses req, validates it and persists one new report with its
// accepted rows as test cases.
func (s *Service) Import(ctx context.Context, id Identity, req ImportRequest) (*ImportOutcome, error) {
	if int64(len(req.Data)) > s.maxImportSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(req.Data), s.maxImportSize)
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	logger := logging.WithFields(ctx, "file", req.FileName, "user_id", id.ID)
	start := time.Now()

	ds, err := ParseDataset(req.FileName, req.Data)
	if err != nil {
		logger.Info("import rejected", slog.Any("error", err))
		return nil, fmt.Errorf("import %s: %w", req.FileName, err)
	}

	validator, err := NewRowValidator(ds.Header, s.statuses)
	if err != nil {
		logger.Info("import rejected", slog.Any("error", err))
		return nil, fmt.Errorf("import %s: %w", req.FileName, err)
	}

	now := s.now().UTC()
	report := Report{
		ID:              uuid.NewString(),
		Title:           strings.TrimSpace(req.Title),
		Date:            DateOnly(now),
		MadeBy:          id.Username,
		TestEnvironment: strings.TrimSpace(req.TestEnvironment),
		FeatureScenario: strings.TrimSpace(req.FeatureScenario),
		OwnerID:         id.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if report.Title == "" {
		report.Title = DefaultImportTitle(req.FileName)
	}

	var batch importBatch
	err = s.store.InTx(ctx, func(repo Repository) error {
		if err := repo.CreateReport(ctx, &report); err != nil {
			return fmt.Errorf("create report: %w", err)
		}

		batch = stageRows(ds, validator, report.ID, now)

		if len(batch.cases) == 0 {
			return nil
		}
		if err := repo.InsertTestCases(ctx, batch.cases); err != nil {
			return fmt.Errorf("insert test cases: %w", err)
		}
		return nil
	})
	if err != nil {
		logger.Error("import failed", slog.Any("error", err))
		return nil, fmt.Errorf("import %s: %w", req.FileName, err)
	}

	outcome := &ImportOutcome{
		ReportID:      report.ID,
		ImportedCount: len(batch.cases),
		TotalRows:     len(ds.Rows),
		Errors:        make([]string, 0, len(batch.failures)),
		Failures:      batch.failures,
	}
	for _, f := range batch.failures {
		outcome.Errors = append(outcome.Errors, f.Reason)
	}
	if outcome.Failures == nil {
		outcome.Failures = []RowFailure{}
	}

	logger.Info("import finished",
		"report_id", report.ID,
		"total_rows", outcome.TotalRows,
		"imported", outcome.ImportedCount,
		"rejected", len(outcome.Failures),
		"duration", time.Since(start),
	)

	return outcome, nil
}
