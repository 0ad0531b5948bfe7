package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/JonMunkholm/assurelog/internal/core"
)

const reportColumns = `r.id, r.title, r.report_date, r.made_by, r.test_environment,
	r.link, r.feature_scenario, r.owner_id, r.created_at, r.updated_at`

// sortColumns whitelists ORDER BY targets. Keys come from core.SortKey.
var sortColumns = map[core.SortKey]string{
	core.SortTitle:     "r.title",
	core.SortDate:      "r.report_date",
	core.SortMadeBy:    "r.made_by",
	core.SortCreatedAt: "r.created_at",
}

// inChunk bounds the number of parameters in one IN list.
const inChunk = 500

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (core.Report, error) {
	var r core.Report
	err := s.Scan(&r.ID, &r.Title, &r.Date, &r.MadeBy, &r.TestEnvironment,
		&r.Link, &r.FeatureScenario, &r.OwnerID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return r, err
	}
	r.Date = r.Date.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	r.UpdatedAt = r.UpdatedAt.UTC()
	return r, nil
}

func (q *queries) CreateReport(ctx context.Context, r *core.Report) error {
	_, err := q.exec(ctx, `
		INSERT INTO reports (id, title, report_date, made_by, test_environment,
			link, feature_scenario, owner_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Title, core.DateOnly(r.Date), r.MadeBy, r.TestEnvironment,
		r.Link, r.FeatureScenario, r.OwnerID, r.CreatedAt.UTC(), r.UpdatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

// GetReport loads one report with its test cases and evidence.
func (q *queries) GetReport(ctx context.Context, id string) (*core.Report, error) {
	r, err := scanReport(q.queryRow(ctx, `SELECT `+reportColumns+` FROM reports r WHERE r.id = ?`, id))
	if err != nil {
		return nil, notFound(err, "report "+id)
	}

	reports := []core.Report{r}
	if err := q.loadTestCases(ctx, reports); err != nil {
		return nil, err
	}
	return &reports[0], nil
}

func (q *queries) ReportOwner(ctx context.Context, id string) (string, error) {
	var owner string
	if err := q.queryRow(ctx, `SELECT owner_id FROM reports WHERE id = ?`, id).Scan(&owner); err != nil {
		return "", notFound(err, "report "+id)
	}
	return owner, nil
}

func (q *queries) UpdateReport(ctx context.Context, r *core.Report) error {
	res, err := q.exec(ctx, `
		UPDATE reports
		SET title = ?, report_date = ?, made_by = ?, test_environment = ?,
			link = ?, feature_scenario = ?, updated_at = ?
		WHERE id = ?`,
		r.Title, core.DateOnly(r.Date), r.MadeBy, r.TestEnvironment,
		r.Link, r.FeatureScenario, r.UpdatedAt.UTC(), r.ID,
	)
	if err != nil {
		return fmt.Errorf("update report: %w", err)
	}
	return requireAffected(res, "report "+r.ID)
}

// DeleteReport removes a report; test cases and evidence rows cascade.
func (q *queries) DeleteReport(ctx context.Context, id string) error {
	res, err := q.exec(ctx, `DELETE FROM reports WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete report: %w", err)
	}
	return requireAffected(res, "report "+id)
}

// ListReports runs a validated query. The owner scope, when set, is always
// the first condition. Results are fully populated.
func (q *queries) ListReports(ctx context.Context, rq core.ReportQuery) ([]core.Report, error) {
	wb := NewWhereBuilder(q.dialect)
	wb.Add("r.owner_id", rq.OwnerID)

	if rq.Search != "" {
		pattern := ContainsPattern(rq.Search)
		wb.AddRaw(`(`+wb.Like("r.title")+`
			OR `+wb.Like("r.feature_scenario")+`
			OR EXISTS (
				SELECT 1 FROM test_cases tc
				WHERE tc.report_id = r.id
				AND (`+wb.Like("tc.title")+`
					OR `+wb.Like("tc.case_number")+`
					OR `+wb.Like("tc.scenario_description")+`)
			))`,
			pattern, pattern, pattern, pattern, pattern,
		)
	}

	wb.AddContains(rq.Responsible, "r.made_by")
	wb.AddContains(rq.Feature, "r.feature_scenario")
	wb.AddContains(rq.Environment, "r.test_environment")
	wb.AddDateRange("r.report_date", rq.DateFrom, rq.DateTo)

	if rq.Status != "" {
		wb.AddRaw(`EXISTS (SELECT 1 FROM test_cases tc WHERE tc.report_id = r.id AND tc.status = ?)`, string(rq.Status))
	}

	where, args := wb.Build()

	col, ok := sortColumns[rq.Sort]
	if !ok {
		col = sortColumns[core.SortCreatedAt]
	}
	dir := "ASC"
	if rq.Descending {
		dir = "DESC"
	}

	query := `SELECT ` + reportColumns + ` FROM reports r` + where +
		` ORDER BY ` + col + ` ` + dir + `, r.id ASC`

	rows, err := q.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	reports := []core.Report{}
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		reports = append(reports, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	rows.Close()

	if err := q.loadTestCases(ctx, reports); err != nil {
		return nil, err
	}
	return reports, nil
}

// loadTestCases fills TestCases (and their Evidence) for every report
// using batched IN queries.
func (q *queries) loadTestCases(ctx context.Context, reports []core.Report) error {
	if len(reports) == 0 {
		return nil
	}

	index := make(map[string]int, len(reports))
	ids := make([]any, len(reports))
	for i := range reports {
		reports[i].TestCases = []core.TestCase{}
		index[reports[i].ID] = i
		ids[i] = reports[i].ID
	}

	var cases []core.TestCase
	for _, chunk := range chunks(ids, inChunk) {
		batch, err := q.selectTestCases(ctx, `tc.report_id IN (`+placeholders(len(chunk))+`)`, chunk...)
		if err != nil {
			return err
		}
		cases = append(cases, batch...)
	}

	if err := q.loadEvidence(ctx, cases); err != nil {
		return err
	}

	for _, tc := range cases {
		i := index[tc.ReportID]
		reports[i].TestCases = append(reports[i].TestCases, tc)
	}
	return nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func chunks(items []any, size int) [][]any {
	var out [][]any
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
