package store

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/assurelog/internal/core"
)

const testCaseColumns = `tc.id, tc.report_id, tc.position, tc.case_number, tc.title,
	tc.scenario_description, tc.expected_result, tc.actual_result, tc.status,
	tc.created_at, tc.updated_at`

func scanTestCase(s scanner) (core.TestCase, error) {
	var tc core.TestCase
	var status string
	err := s.Scan(&tc.ID, &tc.ReportID, &tc.Position, &tc.CaseNumber, &tc.Title,
		&tc.ScenarioDescription, &tc.ExpectedResult, &tc.ActualResult, &status,
		&tc.CreatedAt, &tc.UpdatedAt)
	if err != nil {
		return tc, err
	}
	tc.Status = core.Status(status)
	tc.CreatedAt = tc.CreatedAt.UTC()
	tc.UpdatedAt = tc.UpdatedAt.UTC()
	tc.Evidence = []core.Evidence{}
	return tc, nil
}

// selectTestCases returns test cases matching cond in report, position order.
// Evidence is not loaded.
func (q *queries) selectTestCases(ctx context.Context, cond string, args ...any) ([]core.TestCase, error) {
	rows, err := q.query(ctx, `SELECT `+testCaseColumns+` FROM test_cases tc WHERE `+cond+
		` ORDER BY tc.report_id, tc.position`, args...)
	if err != nil {
		return nil, fmt.Errorf("select test cases: %w", err)
	}
	defer rows.Close()

	var cases []core.TestCase
	for rows.Next() {
		tc, err := scanTestCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan test case: %w", err)
		}
		cases = append(cases, tc)
	}
	return cases, rows.Err()
}

// InsertTestCases writes cases in slice order. Positions must already be set.
func (q *queries) InsertTestCases(ctx context.Context, cases []core.TestCase) error {
	for _, tc := range cases {
		if !tc.Status.Valid() {
			return fmt.Errorf("test case %s: %w: %q", tc.ID, core.ErrInvalidStatus, tc.Status)
		}
		_, err := q.exec(ctx, `
			INSERT INTO test_cases (id, report_id, position, case_number, title,
				scenario_description, expected_result, actual_result, status,
				created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tc.ID, tc.ReportID, tc.Position, tc.CaseNumber, tc.Title,
			tc.ScenarioDescription, tc.ExpectedResult, tc.ActualResult, string(tc.Status),
			tc.CreatedAt.UTC(), tc.UpdatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert test case %s: %w", tc.ID, err)
		}
	}
	return nil
}

func (q *queries) NextTestCasePosition(ctx context.Context, reportID string) (int, error) {
	var next int
	err := q.queryRow(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM test_cases WHERE report_id = ?`, reportID,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next position: %w", translateError(err))
	}
	return next, nil
}

// GetTestCase loads one test case with its evidence.
func (q *queries) GetTestCase(ctx context.Context, id string) (*core.TestCase, error) {
	tc, err := scanTestCase(q.queryRow(ctx, `SELECT `+testCaseColumns+` FROM test_cases tc WHERE tc.id = ?`, id))
	if err != nil {
		return nil, notFound(err, "test case "+id)
	}

	cases := []core.TestCase{tc}
	if err := q.loadEvidence(ctx, cases); err != nil {
		return nil, err
	}
	return &cases[0], nil
}

func (q *queries) UpdateTestCase(ctx context.Context, tc *core.TestCase) error {
	if !tc.Status.Valid() {
		return fmt.Errorf("test case %s: %w: %q", tc.ID, core.ErrInvalidStatus, tc.Status)
	}
	res, err := q.exec(ctx, `
		UPDATE test_cases
		SET case_number = ?, title = ?, scenario_description = ?,
			expected_result = ?, actual_result = ?, status = ?, updated_at = ?
		WHERE id = ?`,
		tc.CaseNumber, tc.Title, tc.ScenarioDescription,
		tc.ExpectedResult, tc.ActualResult, string(tc.Status), tc.UpdatedAt.UTC(), tc.ID,
	)
	if err != nil {
		return fmt.Errorf("update test case: %w", err)
	}
	return requireAffected(res, "test case "+tc.ID)
}

func (q *queries) DeleteTestCase(ctx context.Context, id string) error {
	res, err := q.exec(ctx, `DELETE FROM test_cases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete test case: %w", err)
	}
	return requireAffected(res, "test case "+id)
}
