// Package render turns populated reports into printable documents.
//
// Build produces a deterministic block model. WritePDF and HTML encode
// the same model, so both renditions carry identical block order and
// status classes. ArtifactWriter stores finished PDFs under collision-free
// names and implements core.DocumentRenderer.
package render

import (
	"bytes"
	"context"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/assurelog/internal/core"
	"github.com/JonMunkholm/assurelog/internal/logging"
)

// DisplayDateLayout is the day-first date format used in documents.
const DisplayDateLayout = "02/01/2006"

// Defaults for Options.
const (
	DefaultPrefetchConcurrency = 4
	DefaultMaxEvidenceBytes    = 16 << 20
)

// BlobReader opens stored evidence. core.BlobStore satisfies it.
type BlobReader interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Options tunes Build.
type Options struct {
	Title       string    // cover title; defaults per export kind
	GeneratedAt time.Time // printed on the cover; defaults to now
	Kind        core.ExportKind

	// Concurrency bounds simultaneous blob reads during prefetch.
	Concurrency int
	// MaxEvidenceBytes skips embedding blobs larger than this.
	MaxEvidenceBytes int64
}

// Document is the rendered block model.
type Document struct {
	Cover    Cover
	Sections []Section
}

// Cover is the first block of every document.
type Cover struct {
	Title       string
	GeneratedAt time.Time
	ReportCount int
}

// Section holds one report. Every section after the first starts on a
// new page.
type Section struct {
	PageBreakBefore bool
	Meta            Metadata
	Cases           []CaseBlock
	Empty           bool // the report has no test cases
}

// Metadata is the report header block. Blank fields are not printed.
type Metadata struct {
	Title           string
	Date            string
	MadeBy          string
	TestEnvironment string
	Link            string
	FeatureScenario string
}

// CaseBlock is one test case.
type CaseBlock struct {
	Heading        string
	Status         string
	StatusClass    string
	Fallback       bool // status was not one of the known four
	Scenario       string
	ExpectedResult string
	ActualResult   string
	Evidence       []EvidenceBlock
}

// EvidenceKind says how an evidence item is presented.
type EvidenceKind int

const (
	EvidenceImage       EvidenceKind = iota // embedded picture
	EvidenceFile                            // listed by name
	EvidencePlaceholder                     // blob missing or unreadable
)

// EvidenceBlock is one evidence item. Data and Format are set for images.
type EvidenceBlock struct {
	Kind     EvidenceKind
	Name     string
	MIMEType string
	URL      string
	Format   string // "png", "jpeg" or "gif"
	Data     []byte
}

// StatusClass maps a status to its CSS class. The second result is false
// when the status is unknown and the default class was used.
func StatusClass(s core.Status) (string, bool) {
	switch s {
	case core.StatusPass:
		return "status-pass", true
	case core.StatusFail:
		return "status-fail", true
	case core.StatusBlocked:
		return "status-blocked", true
	case core.StatusPending:
		return "status-pending", true
	default:
		return "status-default", false
	}
}

// Build assembles a document from fully loaded reports. Evidence blobs are
// read concurrently; read failures turn into placeholders and never fail
// the build.
func Build(ctx context.Context, reports []core.Report, blobs BlobReader, opts Options) *Document {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultPrefetchConcurrency
	}
	if opts.MaxEvidenceBytes <= 0 {
		opts.MaxEvidenceBytes = DefaultMaxEvidenceBytes
	}
	if opts.GeneratedAt.IsZero() {
		opts.GeneratedAt = time.Now()
	}
	if opts.Title == "" {
		opts.Title = defaultTitle(reports, opts.Kind)
	}

	fetched := prefetch(ctx, reports, blobs, opts)

	doc := &Document{
		Cover: Cover{
			Title:       opts.Title,
			GeneratedAt: opts.GeneratedAt,
			ReportCount: len(reports),
		},
		Sections: make([]Section, 0, len(reports)),
	}

	for i, r := range reports {
		sec := Section{
			PageBreakBefore: i > 0,
			Meta:            metadata(r),
			Empty:           len(r.TestCases) == 0,
		}
		for _, tc := range r.TestCases {
			sec.Cases = append(sec.Cases, buildCaseBlock(tc, fetched))
		}
		doc.Sections = append(doc.Sections, sec)
	}
	return doc
}

func defaultTitle(reports []core.Report, kind core.ExportKind) string {
	if kind == core.ExportSingle && len(reports) == 1 {
		return reports[0].Title
	}
	return "Test Evidence Reports"
}

func metadata(r core.Report) Metadata {
	m := Metadata{
		Title:           r.Title,
		MadeBy:          r.MadeBy,
		TestEnvironment: r.TestEnvironment,
		Link:            r.Link,
		FeatureScenario: r.FeatureScenario,
	}
	if !r.Date.IsZero() {
		m.Date = r.Date.UTC().Format(DisplayDateLayout)
	}
	return m
}

func buildCaseBlock(tc core.TestCase, fetched map[string]fetchResult) CaseBlock {
	class, known := StatusClass(tc.Status)
	status := string(tc.Status)
	if status == "" {
		status = "UNKNOWN"
	}

	cb := CaseBlock{
		Heading:        caseHeading(tc),
		Status:         status,
		StatusClass:    class,
		Fallback:       !known,
		Scenario:       strings.TrimSpace(tc.ScenarioDescription),
		ExpectedResult: tc.ExpectedResult,
		ActualResult:   tc.ActualResult,
	}
	for _, ev := range tc.Evidence {
		cb.Evidence = append(cb.Evidence, evidenceBlock(ev, fetched[ev.StoredName]))
	}
	return cb
}

func caseHeading(tc core.TestCase) string {
	switch {
	case tc.CaseNumber != "" && tc.Title != "":
		return tc.CaseNumber + ": " + tc.Title
	case tc.CaseNumber != "":
		return tc.CaseNumber
	default:
		return tc.Title
	}
}

func evidenceBlock(ev core.Evidence, res fetchResult) EvidenceBlock {
	b := EvidenceBlock{
		Name:     ev.OriginalName,
		MIMEType: ev.MIMEType,
		URL:      ev.URL(),
	}
	switch {
	case !res.ok:
		b.Kind = EvidencePlaceholder
	case res.format != "":
		b.Kind = EvidenceImage
		b.Format = res.format
		b.Data = res.data
	default:
		b.Kind = EvidenceFile
	}
	return b
}

type fetchResult struct {
	ok     bool
	format string
	data   []byte
}

// prefetch reads every referenced blob once, at most opts.Concurrency at
// a time. Only decodable images keep their bytes.
func prefetch(ctx context.Context, reports []core.Report, blobs BlobReader, opts Options) map[string]fetchResult {
	var names []string
	seen := make(map[string]bool)
	for _, r := range reports {
		for _, tc := range r.TestCases {
			for _, ev := range tc.Evidence {
				if !seen[ev.StoredName] {
					seen[ev.StoredName] = true
					names = append(names, ev.StoredName)
				}
			}
		}
	}

	results := make(map[string]fetchResult, len(names))
	if len(names) == 0 || blobs == nil {
		return results
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)

	for _, name := range names {
		g.Go(func() error {
			res := fetchOne(gctx, blobs, name, opts.MaxEvidenceBytes)
			mu.Lock()
			results[name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func fetchOne(ctx context.Context, blobs BlobReader, name string, limit int64) fetchResult {
	rc, err := blobs.Open(ctx, name)
	if err != nil {
		logging.FromContext(ctx).Debug("evidence unavailable", "stored_name", name, "error", err)
		return fetchResult{}
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, limit+1))
	if err != nil {
		logging.FromContext(ctx).Debug("evidence unreadable", "stored_name", name, "error", err)
		return fetchResult{}
	}
	if int64(len(data)) > limit {
		return fetchResult{ok: true}
	}

	_, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fetchResult{ok: true}
	}
	switch format {
	case "png", "jpeg", "gif":
		return fetchResult{ok: true, format: format, data: data}
	default:
		return fetchResult{ok: true}
	}
}
