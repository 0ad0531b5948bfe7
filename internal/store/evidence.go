package store

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/assurelog/internal/core"
)

const evidenceColumns = `e.stored_name, e.test_case_id, e.original_name, e.mime_type, e.position, e.created_at`

func scanEvidence(s scanner) (core.Evidence, error) {
	var e core.Evidence
	if err := s.Scan(&e.StoredName, &e.TestCaseID, &e.OriginalName, &e.MIMEType, &e.Position, &e.CreatedAt); err != nil {
		return e, err
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}

func (q *queries) selectEvidence(ctx context.Context, from, cond string, args ...any) ([]core.Evidence, error) {
	rows, err := q.query(ctx, `SELECT `+evidenceColumns+` FROM `+from+` WHERE `+cond+
		` ORDER BY e.test_case_id, e.position`, args...)
	if err != nil {
		return nil, fmt.Errorf("select evidence: %w", err)
	}
	defer rows.Close()

	var out []core.Evidence
	for rows.Next() {
		e, err := scanEvidence(rows)
		if err != nil {
			return nil, fmt.Errorf("scan evidence: %w", err)
		}
		if err := e.Validate(); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// loadEvidence fills Evidence for every test case in position order.
func (q *queries) loadEvidence(ctx context.Context, cases []core.TestCase) error {
	if len(cases) == 0 {
		return nil
	}

	index := make(map[string]int, len(cases))
	ids := make([]any, len(cases))
	for i := range cases {
		cases[i].Evidence = []core.Evidence{}
		index[cases[i].ID] = i
		ids[i] = cases[i].ID
	}

	for _, chunk := range chunks(ids, inChunk) {
		batch, err := q.selectEvidence(ctx, "evidence e", `e.test_case_id IN (`+placeholders(len(chunk))+`)`, chunk...)
		if err != nil {
			return err
		}
		for _, e := range batch {
			i := index[e.TestCaseID]
			cases[i].Evidence = append(cases[i].Evidence, e)
		}
	}
	return nil
}

// AddEvidence appends e after the test case's existing evidence and sets
// e.Position accordingly.
func (q *queries) AddEvidence(ctx context.Context, e *core.Evidence) error {
	var next int
	err := q.queryRow(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM evidence WHERE test_case_id = ?`, e.TestCaseID,
	).Scan(&next)
	if err != nil {
		return fmt.Errorf("next evidence position: %w", translateError(err))
	}
	e.Position = next

	if err := e.Validate(); err != nil {
		return err
	}

	_, err = q.exec(ctx, `
		INSERT INTO evidence (stored_name, test_case_id, original_name, mime_type, position, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.StoredName, e.TestCaseID, e.OriginalName, e.MIMEType, e.Position, e.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert evidence: %w", err)
	}
	return nil
}

func (q *queries) GetEvidence(ctx context.Context, storedName string) (*core.Evidence, error) {
	e, err := scanEvidence(q.queryRow(ctx, `SELECT `+evidenceColumns+` FROM evidence e WHERE e.stored_name = ?`, storedName))
	if err != nil {
		return nil, notFound(err, "evidence "+storedName)
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

func (q *queries) DeleteEvidence(ctx context.Context, storedName string) error {
	res, err := q.exec(ctx, `DELETE FROM evidence WHERE stored_name = ?`, storedName)
	if err != nil {
		return fmt.Errorf("delete evidence: %w", err)
	}
	return requireAffected(res, "evidence "+storedName)
}

// ListReportEvidence returns every evidence reference under a report.
func (q *queries) ListReportEvidence(ctx context.Context, reportID string) ([]core.Evidence, error) {
	out, err := q.selectEvidence(ctx,
		"evidence e JOIN test_cases tc ON tc.id = e.test_case_id",
		"tc.report_id = ?", reportID,
	)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []core.Evidence{}
	}
	return out, nil
}
