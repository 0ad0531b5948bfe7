package core

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"
)

// Status is the outcome recorded for a test case. The set is closed.
type Status string

const (
	StatusPass    Status = "PASS"
	StatusFail    Status = "FAIL"
	StatusBlocked Status = "BLOCKED"
	StatusPending Status = "PENDING"
)

// Statuses lists every valid status in display order.
var Statuses = []Status{StatusPass, StatusFail, StatusBlocked, StatusPending}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPass, StatusFail, StatusBlocked, StatusPending:
		return true
	}
	return false
}

// Role is the privilege level of an identity.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is the authenticated caller. It is produced by the auth layer
// and passed explicitly into every Service operation.
type Identity struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     Role   `json:"role"`
}

// IsAdmin reports whether the identity may see and modify every report.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// Report is one evidentiary test session. TestCases are kept in stored order.
type Report struct {
	ID              string
	Title           string
	Date            time.Time // calendar date, UTC midnight
	MadeBy          string
	TestEnvironment string
	Link            string
	FeatureScenario string
	OwnerID         string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	TestCases       []TestCase
}

// TestCase is one documented test execution within a report.
type TestCase struct {
	ID                  string
	ReportID            string
	Position            int
	CaseNumber          string
	Title               string
	ScenarioDescription string
	ExpectedResult      string
	ActualResult        string
	Status              Status
	Evidence            []Evidence
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Evidence is a reference to an uploaded blob. The blob itself lives in
// the BlobStore under StoredName.
type Evidence struct {
	TestCaseID   string
	StoredName   string
	OriginalName string
	MIMEType     string
	Position     int
	CreatedAt    time.Time
}

// EvidenceURLPrefix is the retrieval namespace for evidence blobs.
const EvidenceURLPrefix = "/api/uploads/"

// URL returns the stable retrieval path of the evidence blob.
func (e Evidence) URL() string {
	return EvidenceURLPrefix + e.StoredName
}

var storedNamePattern = regexp.MustCompile(`^[0-9a-f]{32}\.[a-z0-9]{1,8}$`)

// ValidStoredName reports whether name has the generated <hex>.<ext> shape.
// Anything else is rejected before it reaches the blob store.
func ValidStoredName(name string) bool {
	return storedNamePattern.MatchString(name)
}

// Validate checks an evidence reference before it is written or after it is read.
func (e Evidence) Validate() error {
	if !ValidStoredName(e.StoredName) {
		return fmt.Errorf("invalid evidence: stored name %q", e.StoredName)
	}
	if strings.TrimSpace(e.OriginalName) == "" {
		return fmt.Errorf("invalid evidence %s: original name is empty", e.StoredName)
	}
	if strings.TrimSpace(e.MIMEType) == "" {
		return fmt.Errorf("invalid evidence %s: mime type is empty", e.StoredName)
	}
	if e.Position < 0 {
		return fmt.Errorf("invalid evidence %s: negative position", e.StoredName)
	}
	return nil
}

// ReportPatch lists the report fields a partial update may change.
// A nil field is left untouched.
type ReportPatch struct {
	Title           *string
	Date            *time.Time
	MadeBy          *string
	TestEnvironment *string
	Link            *string
	FeatureScenario *string
}

// Apply writes each present field onto r.
func (p ReportPatch) Apply(r *Report) error {
	if p.Title != nil {
		title := strings.TrimSpace(*p.Title)
		if title == "" {
			return ErrTitleRequired
		}
		r.Title = title
	}
	if p.Date != nil {
		r.Date = DateOnly(*p.Date)
	}
	if p.MadeBy != nil {
		r.MadeBy = strings.TrimSpace(*p.MadeBy)
	}
	if p.TestEnvironment != nil {
		r.TestEnvironment = strings.TrimSpace(*p.TestEnvironment)
	}
	if p.Link != nil {
		r.Link = strings.TrimSpace(*p.Link)
	}
	if p.FeatureScenario != nil {
		r.FeatureScenario = strings.TrimSpace(*p.FeatureScenario)
	}
	return nil
}

// Empty reports whether the patch changes nothing.
func (p ReportPatch) Empty() bool {
	return p.Title == nil && p.Date == nil && p.MadeBy == nil &&
		p.TestEnvironment == nil && p.Link == nil && p.FeatureScenario == nil
}

// TestCasePatch lists the test case fields a partial update may change.
type TestCasePatch struct {
	CaseNumber          *string
	Title               *string
	ScenarioDescription *string
	ExpectedResult      *string
	ActualResult        *string
	Status              *Status
}

// Apply writes each present field onto tc.
func (p TestCasePatch) Apply(tc *TestCase) error {
	if p.Status != nil && !p.Status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, *p.Status)
	}
	title, expected := tc.Title, tc.ExpectedResult
	if p.Title != nil {
		title = strings.TrimSpace(*p.Title)
	}
	if p.ExpectedResult != nil {
		expected = strings.TrimSpace(*p.ExpectedResult)
	}
	if err := requireCaseFields(title, expected); err != nil {
		return err
	}

	if p.CaseNumber != nil {
		tc.CaseNumber = strings.TrimSpace(*p.CaseNumber)
	}
	tc.Title = title
	if p.ScenarioDescription != nil {
		tc.ScenarioDescription = strings.TrimSpace(*p.ScenarioDescription)
	}
	tc.ExpectedResult = expected
	if p.ActualResult != nil {
		tc.ActualResult = strings.TrimSpace(*p.ActualResult)
	}
	if p.Status != nil {
		tc.Status = *p.Status
	}
	return nil
}

// ReportInput carries the fields of a manually created report.
type ReportInput struct {
	Title           string
	Date            *time.Time // nil means today
	MadeBy          string     // blank means the creator's username
	TestEnvironment string
	Link            string
	FeatureScenario string
}

// TestCaseInput carries the fields of a manually created test case.
type TestCaseInput struct {
	CaseNumber          string
	Title               string
	ScenarioDescription string
	ExpectedResult      string
	ActualResult        string
	Status              Status // blank means PENDING
}

// Repository is the persistence surface the service works against.
// Implementations must return ErrNotFound for missing rows.
type Repository interface {
	CreateReport(ctx context.Context, r *Report) error
	GetReport(ctx context.Context, id string) (*Report, error)
	ReportOwner(ctx context.Context, id string) (string, error)
	UpdateReport(ctx context.Context, r *Report) error
	DeleteReport(ctx context.Context, id string) error
	ListReports(ctx context.Context, q ReportQuery) ([]Report, error)

	InsertTestCases(ctx context.Context, cases []TestCase) error
	NextTestCasePosition(ctx context.Context, reportID string) (int, error)
	GetTestCase(ctx context.Context, id string) (*TestCase, error)
	UpdateTestCase(ctx context.Context, tc *TestCase) error
	DeleteTestCase(ctx context.Context, id string) error

	AddEvidence(ctx context.Context, e *Evidence) error
	GetEvidence(ctx context.Context, storedName string) (*Evidence, error)
	DeleteEvidence(ctx context.Context, storedName string) error
	ListReportEvidence(ctx context.Context, reportID string) ([]Evidence, error)
}

// Store is a Repository that can scope work to one transaction.
// fn receives a Repository bound to the transaction; returning an error
// rolls everything back.
type Store interface {
	Repository
	InTx(ctx context.Context, fn func(Repository) error) error
}

// BlobStore owns the evidence binaries. Names are always ValidStoredName.
type BlobStore interface {
	Put(ctx context.Context, name string, r io.Reader) (int64, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

// ExportKind distinguishes single-report from bulk exports.
type ExportKind int

const (
	ExportSingle ExportKind = iota
	ExportAll
)

// Artifact is a rendered document written to disk.
type Artifact struct {
	Path         string // storage path, never derived from a report title
	DownloadName string // attachment name offered to the client
	ContentType  string
	Size         int64
}

// DocumentRenderer turns a populated report graph into an artifact.
type DocumentRenderer interface {
	RenderPDF(ctx context.Context, reports []Report, kind ExportKind) (*Artifact, error)
}
