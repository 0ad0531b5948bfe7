package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/JonMunkholm/assurelog/internal/core"
)

// BulkDownloadName is offered for exports of more than one report.
const BulkDownloadName = "assurelog_reports.pdf"

const maxDownloadNameRunes = 100

// ArtifactWriter renders reports into PDF files under Dir. File names are
// random and never derived from report content.
type ArtifactWriter struct {
	Dir   string
	Blobs BlobReader
	Now   func() time.Time

	Concurrency      int
	MaxEvidenceBytes int64
}

var _ core.DocumentRenderer = (*ArtifactWriter)(nil)

// NewArtifactWriter creates dir if needed.
func NewArtifactWriter(dir string, blobs BlobReader) (*ArtifactWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create generated dir: %w", err)
	}
	return &ArtifactWriter{Dir: dir, Blobs: blobs, Now: time.Now}, nil
}

// RenderPDF builds and writes one document for reports.
func (a *ArtifactWriter) RenderPDF(ctx context.Context, reports []core.Report, kind core.ExportKind) (*core.Artifact, error) {
	doc := Build(ctx, reports, a.Blobs, Options{
		Kind:             kind,
		GeneratedAt:      a.now(),
		Concurrency:      a.Concurrency,
		MaxEvidenceBytes: a.MaxEvidenceBytes,
	})
	return a.Write(doc, kind)
}

// Write encodes doc into a new file. Every call creates a distinct file.
func (a *ArtifactWriter) Write(doc *Document, kind core.ExportKind) (*core.Artifact, error) {
	prefix := "all_reports_"
	if kind == core.ExportSingle {
		prefix = "report_"
	}
	name := prefix + strings.ReplaceAll(uuid.NewString(), "-", "") + ".pdf"
	path := filepath.Join(a.Dir, name)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create artifact: %w", err)
	}

	werr := WritePDF(doc, f)
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		os.Remove(path)
		return nil, werr
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat artifact: %w", err)
	}

	return &core.Artifact{
		Path:         path,
		DownloadName: downloadName(doc, kind),
		ContentType:  "application/pdf",
		Size:         info.Size(),
	}, nil
}

func (a *ArtifactWriter) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func downloadName(doc *Document, kind core.ExportKind) string {
	if kind != core.ExportSingle || len(doc.Sections) != 1 {
		return BulkDownloadName
	}
	return SanitizeFileName(doc.Sections[0].Meta.Title) + ".pdf"
}

// SanitizeFileName reduces a title to characters safe in a
// Content-Disposition filename. Letters (including accented ones), digits,
// spaces, dots, dashes and underscores survive; anything else becomes "_".
func SanitizeFileName(title string) string {
	var b strings.Builder
	n := 0
	for _, r := range strings.TrimSpace(title) {
		if n >= maxDownloadNameRunes {
			break
		}
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == ' ', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
		n++
	}
	out := strings.Trim(b.String(), " .")
	if out == "" {
		return "report"
	}
	return out
}
