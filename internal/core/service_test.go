package core_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/assurelog/internal/blob"
	"github.com/JonMunkholm/assurelog/internal/core"
	"github.com/JonMunkholm/assurelog/internal/store"
)

var (
	owner    = core.Identity{ID: "owner", Username: "ana", Role: core.RoleUser}
	stranger = core.Identity{ID: "stranger", Username: "bo", Role: core.RoleUser}
	admin    = core.Identity{ID: "admin", Username: "root", Role: core.RoleAdmin}

	fixedNow = time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)
)

// recordingRenderer captures what the service asks it to render.
type recordingRenderer struct {
	mu    sync.Mutex
	calls [][]core.Report
	kinds []core.ExportKind
}

func (r *recordingRenderer) RenderPDF(_ context.Context, reports []core.Report, kind core.ExportKind) (*core.Artifact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, reports)
	r.kinds = append(r.kinds, kind)
	return &core.Artifact{Path: "/tmp/x.pdf", DownloadName: "x.pdf", ContentType: "application/pdf"}, nil
}

// flakyDeletes is a blob store whose nth Delete fails.
type flakyDeletes struct {
	core.BlobStore
	failOn int
	calls  int
	failed string
}

func (f *flakyDeletes) Delete(ctx context.Context, name string) error {
	f.calls++
	if f.calls == f.failOn {
		f.failed = name
		return errors.New("disk unavailable")
	}
	return f.BlobStore.Delete(ctx, name)
}

// failingInserts is a store whose transactions cannot insert test cases.
type failingInserts struct{ *store.DB }

func (f failingInserts) InTx(ctx context.Context, fn func(core.Repository) error) error {
	return f.DB.InTx(ctx, func(repo core.Repository) error {
		return fn(failingRepo{repo})
	})
}

type failingRepo struct{ core.Repository }

func (failingRepo) InsertTestCases(context.Context, []core.TestCase) error {
	return errors.New("insert failed")
}

type fixture struct {
	db       *store.DB
	blobs    *blob.FS
	renderer *recordingRenderer
	svc      *core.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := store.OpenSQLite(ctx, filepath.Join(dir, "core.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Migrate(ctx)
	require.NoError(t, err)

	blobs, err := blob.NewFS(filepath.Join(dir, "uploads"))
	require.NoError(t, err)

	f := &fixture{db: db, blobs: blobs, renderer: &recordingRenderer{}}
	f.svc = f.service(db, blobs)
	return f
}

func (f *fixture) service(st core.Store, blobs core.BlobStore) *core.Service {
	return core.NewService(st, blobs, core.Options{
		Renderer:        f.renderer,
		MaxEvidenceSize: 1024,
		Now:             func() time.Time { return fixedNow },
	})
}

func (f *fixture) countReports(t *testing.T) int {
	t.Helper()
	reports, err := f.svc.ListReports(context.Background(), admin, core.ReportFilter{})
	require.NoError(t, err)
	return len(reports)
}

const threeRows = "ID,Case Title,Steps,Expected Result,Actual Result,Status\n" +
	"TC-1,Login,Open page,Dashboard,Dashboard,Passou\n" +
	"TC-2,Logout,Click logout,,,Falhou\n" +
	"TC-3,Search,Type query,Results,No results,bloqueado\n"

func TestImport_PartialAcceptance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Import(ctx, owner, core.ImportRequest{
		FileName:        "sprint.csv",
		Data:            []byte(threeRows),
		TestEnvironment: " staging ",
	})
	require.NoError(t, err)

	assert.Equal(t, 2, out.ImportedCount)
	assert.Equal(t, 3, out.TotalRows)
	require.Len(t, out.Errors, 1)
	assert.Equal(t, `Row 3: missing required value for "Expected Result"`, out.Errors[0])
	assert.Equal(t, []core.RowFailure{{Row: 3, Reason: out.Errors[0]}}, out.Failures)

	rep, err := f.svc.GetReport(ctx, owner, out.ReportID)
	require.NoError(t, err)
	assert.Equal(t, "Import sprint.csv", rep.Title)
	assert.Equal(t, "ana", rep.MadeBy)
	assert.Equal(t, "staging", rep.TestEnvironment)
	assert.Equal(t, "2024-03-15", rep.Date.Format(core.ISODate))

	require.Len(t, rep.TestCases, 2)
	assert.Equal(t, "TC-1", rep.TestCases[0].CaseNumber)
	assert.Equal(t, core.StatusPass, rep.TestCases[0].Status)
	assert.Equal(t, 0, rep.TestCases[0].Position)
	assert.Equal(t, "TC-3", rep.TestCases[1].CaseNumber)
	assert.Equal(t, core.StatusBlocked, rep.TestCases[1].Status)
	assert.Equal(t, 1, rep.TestCases[1].Position)
	assert.Equal(t, "Type query", rep.TestCases[1].ScenarioDescription)
}

func TestImport_EmptyDatasetCreatesEmptyReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	out, err := f.svc.Import(ctx, owner, core.ImportRequest{
		FileName: "empty.csv",
		Data:     []byte("ID,Case Title,Steps,Expected Result\n"),
		Title:    "Nothing yet",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, out.ImportedCount)
	assert.Equal(t, 0, out.TotalRows)
	assert.Empty(t, out.Errors)

	rep, err := f.svc.GetReport(ctx, owner, out.ReportID)
	require.NoError(t, err)
	assert.Equal(t, "Nothing yet", rep.Title)
	assert.Empty(t, rep.TestCases)
}

func TestImport_RejectedFilesPersistNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		file    string
		data    string
		wantErr error
	}{
		{"missing columns", "a.csv", "ID,Case Title\nTC-1,Login\n", nil},
		{"unsupported", "a.txt", "ID\n", core.ErrUnsupportedFile},
		{"malformed xlsx", "a.xlsx", "not a zip", core.ErrMalformedFile},
		{"empty", "a.csv", "", core.ErrEmptyFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Import(ctx, owner, core.ImportRequest{FileName: tt.file, Data: []byte(tt.data)})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				var mc *core.MissingColumnsError
				require.ErrorAs(t, err, &mc)
				assert.Equal(t, []string{"Steps", "Expected Result"}, mc.Missing)
			}
		})
	}

	assert.Equal(t, 0, f.countReports(t))
}

func TestImport_ConcurrentImportsKeepTheirOwnRows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const workers, rows = 8, 4
	reportIDs := make([]string, workers)

	g, gctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			var b strings.Builder
			b.WriteString("ID,Case Title,Steps,Expected Result,Status\n")
			for r := 0; r < rows; r++ {
				fmt.Fprintf(&b, "W%d-%d,Case %d,Step,Done,PASS\n", w, r, r)
			}
			out, err := f.svc.Import(gctx, owner, core.ImportRequest{
				FileName: fmt.Sprintf("worker-%d.csv", w),
				Data:     []byte(b.String()),
			})
			if err != nil {
				return fmt.Errorf("worker %d: %w", w, err)
			}
			reportIDs[w] = out.ReportID
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, workers, f.countReports(t))
	for w, id := range reportIDs {
		rep, err := f.svc.GetReport(ctx, owner, id)
		require.NoError(t, err)
		assert.Equal(t, fmt.Sprintf("Import worker-%d.csv", w), rep.Title)

		require.Len(t, rep.TestCases, rows, "worker %d", w)
		for r, tc := range rep.TestCases {
			assert.Equal(t, fmt.Sprintf("W%d-%d", w, r), tc.CaseNumber)
			assert.Equal(t, r, tc.Position)
			assert.Equal(t, id, tc.ReportID)
		}
	}
}

func TestImport_StoreFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	svc := f.service(failingInserts{f.db}, f.blobs)

	_, err := svc.Import(context.Background(), owner, core.ImportRequest{
		FileName: "sprint.csv",
		Data:     []byte(threeRows),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert failed")

	assert.Equal(t, 0, f.countReports(t))
}

func TestImport_TooLarge(t *testing.T) {
	f := newFixture(t)
	svc := core.NewService(f.db, f.blobs, core.Options{MaxImportSize: 10})

	_, err := svc.Import(context.Background(), owner, core.ImportRequest{FileName: "a.csv", Data: []byte(threeRows)})
	assert.ErrorIs(t, err, core.ErrFileTooLarge)
}

func TestValidateImport_HasNoSideEffects(t *testing.T) {
	f := newFixture(t)

	p, err := f.svc.ValidateImport(context.Background(), owner, "sprint.csv", []byte(threeRows))
	require.NoError(t, err)
	assert.True(t, p.Valid)
	assert.Equal(t, 3, p.TotalRows)
	assert.Equal(t, 2, p.ValidRows)
	assert.Equal(t, []int{3}, p.InvalidRows)
	assert.Len(t, p.PreviewData, 3)

	assert.Equal(t, 0, f.countReports(t))
}

func TestAccess_ForeignReportsAreHidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rep, err := f.svc.CreateReport(ctx, owner, core.ReportInput{Title: "Mine"})
	require.NoError(t, err)
	tc, err := f.svc.CreateTestCase(ctx, owner, rep.ID, core.TestCaseInput{Title: "Case", ExpectedResult: "ok"})
	require.NoError(t, err)

	title := "Theirs now"
	checks := map[string]error{}
	_, checks["get"] = f.svc.GetReport(ctx, stranger, rep.ID)
	_, checks["update"] = f.svc.UpdateReport(ctx, stranger, rep.ID, core.ReportPatch{Title: &title})
	checks["delete"] = f.svc.DeleteReport(ctx, stranger, rep.ID)
	_, checks["export"] = f.svc.ExportReport(ctx, stranger, rep.ID)
	_, checks["create case"] = f.svc.CreateTestCase(ctx, stranger, rep.ID, core.TestCaseInput{Title: "x", ExpectedResult: "ok"})
	_, checks["update case"] = f.svc.UpdateTestCase(ctx, stranger, tc.ID, core.TestCasePatch{Title: &title})
	checks["delete case"] = f.svc.DeleteTestCase(ctx, stranger, tc.ID)

	for op, err := range checks {
		assert.ErrorIs(t, err, core.ErrForbidden, op)
	}

	_, err = f.svc.GetReport(ctx, stranger, "no-such-report")
	assert.ErrorIs(t, err, core.ErrNotFound)

	// Nothing changed, and admins see the report.
	got, err := f.svc.GetReport(ctx, admin, rep.ID)
	require.NoError(t, err)
	assert.Equal(t, "Mine", got.Title)
	require.Len(t, got.TestCases, 1)
	assert.Equal(t, "Case", got.TestCases[0].Title)
	assert.Empty(t, f.renderer.calls)
}

func TestListReports_ScopedByIdentity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, in := range []struct {
		id    core.Identity
		title string
	}{{owner, "A"}, {owner, "B"}, {stranger, "C"}} {
		_, err := f.svc.CreateReport(ctx, in.id, core.ReportInput{Title: in.title})
		require.NoError(t, err)
	}

	mine, err := f.svc.ListReports(ctx, owner, core.ReportFilter{SortBy: "title", SortOrder: "asc"})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "A", mine[0].Title)
	assert.Equal(t, "B", mine[1].Title)

	all, err := f.svc.ListReports(ctx, admin, core.ReportFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestReportMutations(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateReport(ctx, owner, core.ReportInput{Title: "   "})
	assert.ErrorIs(t, err, core.ErrTitleRequired)

	date := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	rep, err := f.svc.CreateReport(ctx, owner, core.ReportInput{Title: " Checkout ", Date: &date, MadeBy: "qa team"})
	require.NoError(t, err)
	assert.Equal(t, "Checkout", rep.Title)
	assert.Equal(t, "qa team", rep.MadeBy)
	assert.Equal(t, "2024-01-02", rep.Date.Format(core.ISODate))

	link := " https://tracker.example/T-1 "
	updated, err := f.svc.UpdateReport(ctx, owner, rep.ID, core.ReportPatch{Link: &link})
	require.NoError(t, err)
	assert.Equal(t, "https://tracker.example/T-1", updated.Link)
	assert.Equal(t, "Checkout", updated.Title)

	empty := ""
	_, err = f.svc.UpdateReport(ctx, owner, rep.ID, core.ReportPatch{Title: &empty})
	assert.ErrorIs(t, err, core.ErrTitleRequired)

	first, err := f.svc.CreateTestCase(ctx, owner, rep.ID, core.TestCaseInput{Title: "one", ExpectedResult: "ok"})
	require.NoError(t, err)
	assert.Equal(t, core.StatusPending, first.Status)
	second, err := f.svc.CreateTestCase(ctx, owner, rep.ID, core.TestCaseInput{Title: "two", ExpectedResult: "ok", Status: core.StatusPass})
	require.NoError(t, err)
	assert.Equal(t, 1, second.Position)

	_, err = f.svc.CreateTestCase(ctx, owner, rep.ID, core.TestCaseInput{Title: "bad", ExpectedResult: "ok", Status: "DONE"})
	assert.ErrorIs(t, err, core.ErrInvalidStatus)

	for _, in := range []core.TestCaseInput{
		{Title: "  ", ExpectedResult: "ok"},
		{Title: "no expectation"},
		{Title: "blank expectation", ExpectedResult: " \t "},
	} {
		_, err = f.svc.CreateTestCase(ctx, owner, rep.ID, in)
		assert.ErrorIs(t, err, core.ErrFieldRequired, "%+v", in)
	}

	blank := " "
	_, err = f.svc.UpdateTestCase(ctx, owner, first.ID, core.TestCasePatch{ExpectedResult: &blank})
	assert.ErrorIs(t, err, core.ErrFieldRequired)

	bad := core.Status("MAYBE")
	_, err = f.svc.UpdateTestCase(ctx, owner, first.ID, core.TestCasePatch{Status: &bad})
	assert.ErrorIs(t, err, core.ErrInvalidStatus)

	fail := core.StatusFail
	actual := "crashed"
	tc, err := f.svc.UpdateTestCase(ctx, owner, first.ID, core.TestCasePatch{Status: &fail, ActualResult: &actual})
	require.NoError(t, err)
	assert.Equal(t, core.StatusFail, tc.Status)
	assert.Equal(t, "crashed", tc.ActualResult)
	assert.Equal(t, "one", tc.Title)

	require.NoError(t, f.svc.DeleteTestCase(ctx, owner, first.ID))
	got, err := f.svc.GetReport(ctx, owner, rep.ID)
	require.NoError(t, err)
	require.Len(t, got.TestCases, 1)
	assert.Equal(t, "two", got.TestCases[0].Title)

	require.NoError(t, f.svc.DeleteReport(ctx, owner, rep.ID))
	_, err = f.svc.GetReport(ctx, owner, rep.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestEvidence_UploadOpenDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rep, err := f.svc.CreateReport(ctx, owner, core.ReportInput{Title: "Evidence"})
	require.NoError(t, err)
	tc, err := f.svc.CreateTestCase(ctx, owner, rep.ID, core.TestCaseInput{Title: "Case", ExpectedResult: "ok"})
	require.NoError(t, err)

	body := []byte("fake png bytes")
	ev, err := f.svc.UploadEvidence(ctx, owner, core.EvidenceUpload{
		TestCaseID:  tc.ID,
		FileName:    `C:\shots\Screen Shot.PNG`,
		ContentType: "application/octet-stream",
		Body:        bytes.NewReader(body),
	})
	require.NoError(t, err)
	assert.True(t, core.ValidStoredName(ev.StoredName))
	assert.True(t, strings.HasSuffix(ev.StoredName, ".png"))
	assert.Equal(t, "Screen Shot.PNG", ev.OriginalName)
	assert.Equal(t, "image/png", ev.MIMEType)
	assert.Equal(t, core.EvidenceURLPrefix+ev.StoredName, ev.URL())

	_, rc, err := f.svc.OpenEvidence(ctx, stranger, ev.StoredName)
	assert.ErrorIs(t, err, core.ErrForbidden)
	assert.Nil(t, rc)

	got, rc, err := f.svc.OpenEvidence(ctx, owner, ev.StoredName)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, body, data)
	assert.Equal(t, "image/png", core.EvidenceContentType(*got))

	rep2, err := f.svc.GetReport(ctx, owner, rep.ID)
	require.NoError(t, err)
	require.Len(t, rep2.TestCases[0].Evidence, 1)

	assert.ErrorIs(t, f.svc.DeleteEvidence(ctx, stranger, ev.StoredName), core.ErrForbidden)
	require.NoError(t, f.svc.DeleteEvidence(ctx, owner, ev.StoredName))

	_, err = f.blobs.Open(ctx, ev.StoredName)
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, _, err = f.svc.OpenEvidence(ctx, owner, ev.StoredName)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestEvidence_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rep, err := f.svc.CreateReport(ctx, owner, core.ReportInput{Title: "Evidence"})
	require.NoError(t, err)
	tc, err := f.svc.CreateTestCase(ctx, owner, rep.ID, core.TestCaseInput{Title: "Case", ExpectedResult: "ok"})
	require.NoError(t, err)

	upload := func(name string, body []byte) error {
		_, err := f.svc.UploadEvidence(ctx, owner, core.EvidenceUpload{
			TestCaseID: tc.ID, FileName: name, Body: bytes.NewReader(body),
		})
		return err
	}

	assert.ErrorIs(t, upload("run.exe", []byte("MZ")), core.ErrEvidenceType)
	assert.ErrorIs(t, upload("big.png", bytes.Repeat([]byte("x"), 2048)), core.ErrFileTooLarge)
	assert.ErrorIs(t, upload("empty.png", nil), core.ErrEmptyFile)

	_, _, err = f.svc.OpenEvidence(ctx, owner, "../../etc/passwd")
	assert.ErrorIs(t, err, core.ErrNotFound)

	got, err := f.svc.GetReport(ctx, owner, rep.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TestCases[0].Evidence)
}

func TestDeleteReport_BlobFailureLeavesNoDanglingReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rep, err := f.svc.CreateReport(ctx, owner, core.ReportInput{Title: "Two shots"})
	require.NoError(t, err)
	tc, err := f.svc.CreateTestCase(ctx, owner, rep.ID, core.TestCaseInput{Title: "Case", ExpectedResult: "ok"})
	require.NoError(t, err)

	var names []string
	for _, file := range []string{"a.png", "b.png"} {
		ev, err := f.svc.UploadEvidence(ctx, owner, core.EvidenceUpload{
			TestCaseID: tc.ID, FileName: file, Body: strings.NewReader("png"),
		})
		require.NoError(t, err)
		names = append(names, ev.StoredName)
	}

	blobs := &flakyDeletes{BlobStore: f.blobs, failOn: 2}
	require.NoError(t, f.service(f.db, blobs).DeleteReport(ctx, owner, rep.ID))
	require.NotEmpty(t, blobs.failed)

	_, err = f.svc.GetReport(ctx, owner, rep.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)

	for _, name := range names {
		// No reference survives, whatever happened to the blob.
		_, _, err := f.svc.OpenEvidence(ctx, owner, name)
		assert.ErrorIs(t, err, core.ErrNotFound, name)

		rc, err := f.blobs.Open(ctx, name)
		if name == blobs.failed {
			require.NoError(t, err, "undeletable blob is left orphaned")
			rc.Close()
		} else {
			assert.ErrorIs(t, err, core.ErrNotFound, name)
		}
	}
}

func TestDeleteEvidence_BlobFailureStillDropsReference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	rep, err := f.svc.CreateReport(ctx, owner, core.ReportInput{Title: "One shot"})
	require.NoError(t, err)
	tc, err := f.svc.CreateTestCase(ctx, owner, rep.ID, core.TestCaseInput{Title: "Case", ExpectedResult: "ok"})
	require.NoError(t, err)
	ev, err := f.svc.UploadEvidence(ctx, owner, core.EvidenceUpload{
		TestCaseID: tc.ID, FileName: "a.png", Body: strings.NewReader("png"),
	})
	require.NoError(t, err)

	broken := f.service(f.db, &flakyDeletes{BlobStore: f.blobs, failOn: 1})
	require.NoError(t, broken.DeleteEvidence(ctx, owner, ev.StoredName))

	got, err := f.svc.GetReport(ctx, owner, rep.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TestCases[0].Evidence)
}

func TestExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.svc.CreateReport(ctx, owner, core.ReportInput{Title: "A", FeatureScenario: "checkout"})
	require.NoError(t, err)
	_, err = f.svc.CreateReport(ctx, owner, core.ReportInput{Title: "B", FeatureScenario: "login"})
	require.NoError(t, err)
	_, err = f.svc.CreateReport(ctx, stranger, core.ReportInput{Title: "C", FeatureScenario: "checkout"})
	require.NoError(t, err)

	art, err := f.svc.ExportReport(ctx, owner, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", art.ContentType)

	_, err = f.svc.ExportReports(ctx, owner, core.ReportFilter{Feature: "checkout"})
	require.NoError(t, err)

	require.Len(t, f.renderer.calls, 2)
	assert.Equal(t, core.ExportSingle, f.renderer.kinds[0])
	assert.Equal(t, "A", f.renderer.calls[0][0].Title)
	assert.Equal(t, core.ExportAll, f.renderer.kinds[1])
	require.Len(t, f.renderer.calls[1], 1)
	assert.Equal(t, "A", f.renderer.calls[1][0].Title)

	noRenderer := core.NewService(f.db, f.blobs, core.Options{})
	_, err = noRenderer.ExportReport(ctx, owner, a.ID)
	assert.Error(t, err)
}

func TestLimiterBusyFailsFast(t *testing.T) {
	f := newFixture(t)
	limiter := core.NewLimiter(1, 20*time.Millisecond)
	svc := core.NewService(f.db, f.blobs, core.Options{Limiter: limiter})

	require.NoError(t, limiter.Acquire(context.Background()))
	defer limiter.Release()

	_, err := svc.Import(context.Background(), owner, core.ImportRequest{FileName: "a.csv", Data: []byte(threeRows)})
	assert.ErrorIs(t, err, core.ErrTooManyOperations)
	assert.Equal(t, 0, f.countReports(t))
}
