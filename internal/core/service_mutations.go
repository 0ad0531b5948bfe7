package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/JonMunkholm/assurelog/internal/logging"
)

// CreateReport creates an empty report owned by id. Date defaults to today
// and MadeBy to the caller's username.
func (s *Service) CreateReport(ctx context.Context, id Identity, in ReportInput) (*Report, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	now := s.now().UTC()
	r := &Report{
		ID:              uuid.NewString(),
		Title:           title,
		Date:            DateOnly(now),
		MadeBy:          strings.TrimSpace(in.MadeBy),
		TestEnvironment: strings.TrimSpace(in.TestEnvironment),
		Link:            strings.TrimSpace(in.Link),
		FeatureScenario: strings.TrimSpace(in.FeatureScenario),
		OwnerID:         id.ID,
		CreatedAt:       now,
		UpdatedAt:       now,
		TestCases:       []TestCase{},
	}
	if in.Date != nil {
		r.Date = DateOnly(*in.Date)
	}
	if r.MadeBy == "" {
		r.MadeBy = id.Username
	}

	if err := s.store.CreateReport(ctx, r); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	return r, nil
}

// UpdateReport applies patch to a report the caller may modify.
func (s *Service) UpdateReport(ctx context.Context, id Identity, reportID string, patch ReportPatch) (*Report, error) {
	var updated *Report
	err := s.store.InTx(ctx, func(repo Repository) error {
		if err := s.authorizeReport(ctx, repo, id, reportID); err != nil {
			return err
		}

		r, err := repo.GetReport(ctx, reportID)
		if err != nil {
			return fmt.Errorf("get report: %w", err)
		}
		if err := patch.Apply(r); err != nil {
			return err
		}
		r.UpdatedAt = s.now().UTC()

		if err := repo.UpdateReport(ctx, r); err != nil {
			return fmt.Errorf("update report: %w", err)
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteReport deletes a report, its test cases and every evidence blob
// they reference. Rows are removed first; blobs are removed after the
// commit, so a reference never outlives its blob. A blob that cannot be
// removed is logged as orphaned and does not fail the delete.
func (s *Service) DeleteReport(ctx context.Context, id Identity, reportID string) error {
	var evidence []Evidence
	err := s.store.InTx(ctx, func(repo Repository) error {
		if err := s.authorizeReport(ctx, repo, id, reportID); err != nil {
			return err
		}

		var err error
		evidence, err = repo.ListReportEvidence(ctx, reportID)
		if err != nil {
			return fmt.Errorf("list evidence: %w", err)
		}
		if err := repo.DeleteReport(ctx, reportID); err != nil {
			return fmt.Errorf("delete report: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	orphaned := s.purgeBlobs(ctx, evidence)
	logging.FromContext(ctx).Info("report deleted",
		"report_id", reportID,
		"user_id", id.ID,
		"blobs_deleted", len(evidence)-orphaned,
		"blobs_orphaned", orphaned,
	)
	return nil
}

// CreateTestCase appends a test case to the end of a report.
func (s *Service) CreateTestCase(ctx context.Context, id Identity, reportID string, in TestCaseInput) (*TestCase, error) {
	status := in.Status
	if status == "" {
		status = StatusPending
	}
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, in.Status)
	}
	title := strings.TrimSpace(in.Title)
	expected := strings.TrimSpace(in.ExpectedResult)
	if err := requireCaseFields(title, expected); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	tc := &TestCase{
		ID:                  uuid.NewString(),
		ReportID:            reportID,
		CaseNumber:          strings.TrimSpace(in.CaseNumber),
		Title:               title,
		ScenarioDescription: strings.TrimSpace(in.ScenarioDescription),
		ExpectedResult:      expected,
		ActualResult:        strings.TrimSpace(in.ActualResult),
		Status:              status,
		Evidence:            []Evidence{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	err := s.store.InTx(ctx, func(repo Repository) error {
		if err := s.authorizeReport(ctx, repo, id, reportID); err != nil {
			return err
		}

		pos, err := repo.NextTestCasePosition(ctx, reportID)
		if err != nil {
			return fmt.Errorf("next position: %w", err)
		}
		tc.Position = pos

		if err := repo.InsertTestCases(ctx, []TestCase{*tc}); err != nil {
			return fmt.Errorf("insert test case: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return tc, nil
}

// UpdateTestCase applies patch to a test case the caller may modify.
func (s *Service) UpdateTestCase(ctx context.Context, id Identity, testCaseID string, patch TestCasePatch) (*TestCase, error) {
	var updated *TestCase
	err := s.store.InTx(ctx, func(repo Repository) error {
		tc, err := s.authorizeTestCase(ctx, repo, id, testCaseID)
		if err != nil {
			return err
		}
		if err := patch.Apply(tc); err != nil {
			return err
		}
		tc.UpdatedAt = s.now().UTC()

		if err := repo.UpdateTestCase(ctx, tc); err != nil {
			return fmt.Errorf("update test case: %w", err)
		}
		updated = tc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTestCase deletes a test case, then its evidence blobs.
func (s *Service) DeleteTestCase(ctx context.Context, id Identity, testCaseID string) error {
	var evidence []Evidence
	err := s.store.InTx(ctx, func(repo Repository) error {
		tc, err := s.authorizeTestCase(ctx, repo, id, testCaseID)
		if err != nil {
			return err
		}
		if err := repo.DeleteTestCase(ctx, testCaseID); err != nil {
			return fmt.Errorf("delete test case: %w", err)
		}
		evidence = tc.Evidence
		return nil
	})
	if err != nil {
		return err
	}

	s.purgeBlobs(ctx, evidence)
	return nil
}

// purgeBlobs removes the blobs of already-deleted evidence rows and
// returns how many were left behind.
func (s *Service) purgeBlobs(ctx context.Context, evidence []Evidence) int {
	orphaned := 0
	for _, ev := range evidence {
		if !s.discardBlob(ctx, ev.StoredName) {
			orphaned++
		}
	}
	return orphaned
}
