package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/assurelog/internal/logging"
)

// Default size caps, overridable through Options.
const (
	DefaultMaxImportSize   int64 = 20 << 20
	DefaultMaxEvidenceSize int64 = 16 << 20
)

// Service provides the core business logic for reports, imports and exports.
// Every operation takes the caller's Identity explicitly.
type Service struct {
	store    Store
	blobs    BlobStore
	renderer DocumentRenderer
	limiter  *Limiter
	statuses *StatusTable

	maxImportSize   int64
	maxEvidenceSize int64

	now func() time.Time
}

// Options configures a Service. Zero values fall back to defaults.
type Options struct {
	Renderer        DocumentRenderer
	Limiter         *Limiter
	Statuses        *StatusTable
	MaxImportSize   int64
	MaxEvidenceSize int64
	Now             func() time.Time
}

// NewService creates a new Service instance.
func NewService(store Store, blobs BlobStore, opts Options) *Service {
	s := &Service{
		store:           store,
		blobs:           blobs,
		renderer:        opts.Renderer,
		limiter:         opts.Limiter,
		statuses:        opts.Statuses,
		maxImportSize:   opts.MaxImportSize,
		maxEvidenceSize: opts.MaxEvidenceSize,
		now:             opts.Now,
	}

	if s.limiter == nil {
		s.limiter = NewLimiter(DefaultMaxConcurrent, DefaultMaxWaitTime)
	}
	if s.statuses == nil {
		s.statuses = DefaultStatusTable()
	}
	if s.maxImportSize <= 0 {
		s.maxImportSize = DefaultMaxImportSize
	}
	if s.maxEvidenceSize <= 0 {
		s.maxEvidenceSize = DefaultMaxEvidenceSize
	}
	if s.now == nil {
		s.now = time.Now
	}

	return s
}

// Limiter returns the limiter guarding imports and renders.
func (s *Service) Limiter() *Limiter {
	return s.limiter
}

// Statuses returns the status synonym table used by imports.
func (s *Service) Statuses() *StatusTable {
	return s.statuses
}

// MaxImportSize returns the spreadsheet size cap in bytes.
func (s *Service) MaxImportSize() int64 {
	return s.maxImportSize
}

// MaxEvidenceSize returns the evidence upload size cap in bytes.
func (s *Service) MaxEvidenceSize() int64 {
	return s.maxEvidenceSize
}

// GetReport returns one report with its test cases and evidence.
func (s *Service) GetReport(ctx context.Context, id Identity, reportID string) (*Report, error) {
	if err := s.authorizeReport(ctx, s.store, id, reportID); err != nil {
		return nil, err
	}

	report, err := s.store.GetReport(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", reportID, err)
	}
	return report, nil
}

// ListReports runs the report query engine for id and filter. Results
// carry their test cases and evidence.
func (s *Service) ListReports(ctx context.Context, id Identity, filter ReportFilter) ([]Report, error) {
	q := BuildReportQuery(id, filter)
	if len(q.Ignored) > 0 {
		logging.FromContext(ctx).Debug("ignored report filters",
			"user_id", id.ID,
			"ignored", q.Ignored,
		)
	}

	reports, err := s.store.ListReports(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	return reports, nil
}

// ExportReport renders one report to a document artifact.
func (s *Service) ExportReport(ctx context.Context, id Identity, reportID string) (*Artifact, error) {
	report, err := s.GetReport(ctx, id, reportID)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, id, []Report{*report}, ExportSingle)
}

// ExportReports renders every report in the caller's scope that matches
// filter into a single document.
func (s *Service) ExportReports(ctx context.Context, id Identity, filter ReportFilter) (*Artifact, error) {
	reports, err := s.ListReports(ctx, id, filter)
	if err != nil {
		return nil, err
	}
	return s.render(ctx, id, reports, ExportAll)
}

func (s *Service) render(ctx context.Context, id Identity, reports []Report, kind ExportKind) (*Artifact, error) {
	if s.renderer == nil {
		return nil, fmt.Errorf("export: no document renderer configured")
	}

	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	logger := logging.WithFields(ctx, "user_id", id.ID, "reports", len(reports))
	start := time.Now()

	artifact, err := s.renderer.RenderPDF(ctx, reports, kind)
	if err != nil {
		logger.Error("export failed", slog.Any("error", err))
		return nil, fmt.Errorf("export: %w", err)
	}

	logger.Info("export finished",
		"path", artifact.Path,
		"bytes", artifact.Size,
		"duration", time.Since(start),
	)
	return artifact, nil
}
