package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/JonMunkholm/assurelog/internal/logging"
)

// authorizeReport checks that id may act on reportID. Missing reports give
// ErrNotFound; reports owned by someone else give ErrForbidden and a
// warning in the log. Callers at the edge render both the same way.
func (s *Service) authorizeReport(ctx context.Context, repo Repository, id Identity, reportID string) error {
	owner, err := repo.ReportOwner(ctx, reportID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("report %s: %w", reportID, ErrNotFound)
		}
		return fmt.Errorf("load report owner: %w", err)
	}

	if id.IsAdmin() || owner == id.ID {
		return nil
	}

	logging.FromContext(ctx).Warn("access denied",
		"user_id", id.ID,
		"username", id.Username,
		"report_id", reportID,
		"ip", GetIPAddressFromContext(ctx),
	)
	return fmt.Errorf("report %s: %w", reportID, ErrForbidden)
}

// authorizeTestCase loads a test case and checks access to its report.
func (s *Service) authorizeTestCase(ctx context.Context, repo Repository, id Identity, testCaseID string) (*TestCase, error) {
	tc, err := repo.GetTestCase(ctx, testCaseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("test case %s: %w", testCaseID, ErrNotFound)
		}
		return nil, fmt.Errorf("load test case: %w", err)
	}

	if err := s.authorizeReport(ctx, repo, id, tc.ReportID); err != nil {
		return nil, err
	}
	return tc, nil
}

// authorizeEvidence loads an evidence reference and checks access to the
// report that owns it.
func (s *Service) authorizeEvidence(ctx context.Context, repo Repository, id Identity, storedName string) (*Evidence, error) {
	if !ValidStoredName(storedName) {
		return nil, fmt.Errorf("evidence %q: %w", storedName, ErrNotFound)
	}

	ev, err := repo.GetEvidence(ctx, storedName)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("evidence %s: %w", storedName, ErrNotFound)
		}
		return nil, fmt.Errorf("load evidence: %w", err)
	}

	if _, err := s.authorizeTestCase(ctx, repo, id, ev.TestCaseID); err != nil {
		return nil, err
	}
	return ev, nil
}
