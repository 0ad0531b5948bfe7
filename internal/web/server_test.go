package web

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/assurelog/internal/auth"
	"github.com/JonMunkholm/assurelog/internal/blob"
	"github.com/JonMunkholm/assurelog/internal/config"
	"github.com/JonMunkholm/assurelog/internal/core"
	"github.com/JonMunkholm/assurelog/internal/render"
	"github.com/JonMunkholm/assurelog/internal/store"
)

var (
	alice = core.Identity{ID: "u-alice", Username: "alice", Role: core.RoleUser}
	bob   = core.Identity{ID: "u-bob", Username: "bob", Role: core.RoleUser}
	admin = core.Identity{ID: "u-admin", Username: "root", Role: core.RoleAdmin}
)

type testEnv struct {
	server *Server
	tokens *auth.Tokens
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	db, err := store.OpenSQLite(ctx, filepath.Join(dir, "assurelog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Migrate(ctx)
	require.NoError(t, err)

	blobs, err := blob.NewFS(filepath.Join(dir, "uploads"))
	require.NoError(t, err)
	artifacts, err := render.NewArtifactWriter(filepath.Join(dir, "generated"), blobs)
	require.NoError(t, err)

	svc := core.NewService(db, blobs, core.Options{Renderer: artifacts})

	tokens, err := auth.NewTokens("web-test-secret")
	require.NoError(t, err)

	cfg := &config.Config{
		Security: config.SecurityConfig{EnableCSP: true},
	}
	s := NewServer(Deps{Service: svc, Tokens: tokens, Blobs: blobs, DB: db, Config: cfg})
	t.Cleanup(s.Close)

	return &testEnv{server: s, tokens: tokens}
}

func (e *testEnv) token(t *testing.T, id core.Identity) string {
	t.Helper()
	tok, err := e.tokens.Issue(id, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, id *core.Identity, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if id != nil {
		req.Header.Set("Authorization", "Bearer "+e.token(t, *id))
	}
	rec := httptest.NewRecorder()
	e.server.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doJSON(t *testing.T, id core.Identity, method, path string, v any) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if v != nil {
		b, err := json.Marshal(v)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	}
	return e.do(t, &id, method, path, body, "application/json")
}

func (e *testEnv) upload(t *testing.T, id core.Identity, path, fileName, fileType string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	if fileType != "" {
		h.Set("Content-Type", fileType)
	}
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	return e.do(t, &id, http.MethodPost, path, &buf, mw.FormDataContentType())
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) createReport(t *testing.T, id core.Identity, title string) reportJSON {
	t.Helper()
	rec := e.doJSON(t, id, http.MethodPost, "/api/reports", map[string]string{
		"title":            title,
		"date":             "2024-03-01",
		"test_environment": "staging",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[reportJSON](t, rec)
}

func (e *testEnv) createTestCase(t *testing.T, id core.Identity, reportID string) testCaseJSON {
	t.Helper()
	rec := e.doJSON(t, id, http.MethodPost, "/api/reports/"+reportID+"/test-cases", map[string]string{
		"case_number":     "TC-1",
		"title":           "Login",
		"expected_result": "Dashboard",
		"status":          "pass",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[testCaseJSON](t, rec)
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, nil, http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[map[string]any](t, rec)
	assert.Equal(t, "ok", got["status"])
	assert.Equal(t, "ok", got["database"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestAPI_RequiresBearerToken(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			env.server.Router().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestMe(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, admin, http.MethodGet, "/api/me", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := decode[map[string]any](t, rec)
	assert.Equal(t, "root", got["username"])
	assert.Equal(t, true, got["is_admin"])
}

func TestReports_ForeignAndMissingLookIdentical(t *testing.T) {
	env := newTestEnv(t)
	rep := env.createReport(t, alice, "Alice private")

	foreign := env.doJSON(t, bob, http.MethodGet, "/api/reports/"+rep.ID, nil)
	missing := env.doJSON(t, bob, http.MethodGet, "/api/reports/does-not-exist", nil)

	assert.Equal(t, http.StatusNotFound, foreign.Code)
	assert.Equal(t, http.StatusNotFound, missing.Code)
	assert.JSONEq(t, missing.Body.String(), foreign.Body.String())

	for _, tc := range []struct {
		method, path string
		body         any
	}{
		{http.MethodPut, "/api/reports/" + rep.ID, map[string]string{"title": "stolen"}},
		{http.MethodDelete, "/api/reports/" + rep.ID, nil},
		{http.MethodGet, "/api/secure-reports/" + rep.ID + "/export-pdf", nil},
		{http.MethodGet, "/api/secure-reports/" + rep.ID + "/export-html", nil},
	} {
		rec := env.doJSON(t, bob, tc.method, tc.path, tc.body)
		assert.Equal(t, http.StatusNotFound, rec.Code, "%s %s", tc.method, tc.path)
		assert.JSONEq(t, missing.Body.String(), rec.Body.String())
	}

	// The owner still sees the original.
	rec := env.doJSON(t, alice, http.MethodGet, "/api/reports/"+rep.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice private", decode[reportJSON](t, rec).Title)

	// Admins see everything.
	rec = env.doJSON(t, admin, http.MethodGet, "/api/reports/"+rep.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListReports_ScopedToCaller(t *testing.T) {
	env := newTestEnv(t)
	env.createReport(t, alice, "Checkout flow")
	env.createReport(t, alice, "Login flow")
	env.createReport(t, bob, "Bob's flow")

	type listResponse struct {
		Reports []reportJSON `json:"reports"`
		Total   int          `json:"total"`
	}

	rec := env.doJSON(t, alice, http.MethodGet, "/api/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, decode[listResponse](t, rec).Total)

	rec = env.doJSON(t, alice, http.MethodGet, "/api/reports?search=checkout", nil)
	got := decode[listResponse](t, rec)
	require.Len(t, got.Reports, 1)
	assert.Equal(t, "Checkout flow", got.Reports[0].Title)

	rec = env.doJSON(t, admin, http.MethodGet, "/api/reports?sort_by=title&sort_order=asc", nil)
	got = decode[listResponse](t, rec)
	require.Len(t, got.Reports, 3)
	assert.Equal(t, "Bob's flow", got.Reports[0].Title)
}

func TestReportMutations(t *testing.T) {
	env := newTestEnv(t)
	rep := env.createReport(t, alice, "Draft")
	assert.Equal(t, "alice", rep.MadeBy)
	assert.Equal(t, "2024-03-01", rep.Date)

	rec := env.doJSON(t, alice, http.MethodPut, "/api/reports/"+rep.ID, map[string]string{"title": "Final"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[reportJSON](t, rec)
	assert.Equal(t, "Final", updated.Title)
	assert.Equal(t, "staging", updated.TestEnvironment)

	rec = env.doJSON(t, alice, http.MethodPut, "/api/reports/"+rep.ID, map[string]string{"title": "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(t, alice, http.MethodPut, "/api/reports/"+rep.ID, map[string]string{"colour": "red"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	tc := env.createTestCase(t, alice, rep.ID)
	assert.Equal(t, core.StatusPass, tc.Status)
	assert.Equal(t, 0, tc.Position)

	rec = env.doJSON(t, alice, http.MethodPut, "/api/test-cases/"+tc.ID, map[string]string{"status": "BOGUS"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(t, alice, http.MethodPost, "/api/reports/"+rep.ID+"/test-cases", map[string]string{
		"title": "Login", "expected_result": "   ",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VAL006", decode[ErrorResponse](t, rec).Code)

	rec = env.doJSON(t, alice, http.MethodPut, "/api/test-cases/"+tc.ID, map[string]string{"title": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.doJSON(t, alice, http.MethodPut, "/api/test-cases/"+tc.ID, map[string]string{"status": "FAIL"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, core.StatusFail, decode[testCaseJSON](t, rec).Status)

	rec = env.doJSON(t, bob, http.MethodDelete, "/api/test-cases/"+tc.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.doJSON(t, alice, http.MethodDelete, "/api/test-cases/"+tc.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.doJSON(t, alice, http.MethodDelete, "/api/reports/"+rep.ID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.doJSON(t, alice, http.MethodGet, "/api/reports/"+rep.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImport_PartialRows(t *testing.T) {
	env := newTestEnv(t)

	csv := "ID,Case Title,Steps,Expected Result,Status\n" +
		"TC-1,Login,Open page,Dashboard,Passou\n" +
		"TC-2,Logout,Click logout,,FAIL\n" +
		"TC-3,Search,Type query,Results,\n"

	rec := env.upload(t, alice, "/api/excel/import", "cases.csv", "text/csv", []byte(csv), map[string]string{
		"report_title":     "Sprint 12",
		"test_environment": "qa",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[importResponse](t, rec)
	assert.Equal(t, 2, got.ImportedCount)
	assert.Equal(t, 3, got.TotalRows)
	require.Len(t, got.Errors, 1)
	assert.True(t, strings.HasPrefix(got.Errors[0], "Row 3:"), got.Errors[0])
	assert.Contains(t, got.Errors[0], "Expected Result")

	rec = env.doJSON(t, alice, http.MethodGet, "/api/reports/"+got.ReportID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rep := decode[reportJSON](t, rec)
	assert.Equal(t, "Sprint 12", rep.Title)
	assert.Equal(t, "qa", rep.TestEnvironment)
	require.Len(t, rep.TestCases, 2)
	assert.Equal(t, core.StatusPass, rep.TestCases[0].Status)
	assert.Equal(t, core.StatusPending, rep.TestCases[1].Status)
	assert.Equal(t, "Type query", rep.TestCases[1].ScenarioDescription)
}

func TestImport_RejectsBadFiles(t *testing.T) {
	env := newTestEnv(t)

	rec := env.upload(t, alice, "/api/excel/import", "cases.csv", "text/csv",
		[]byte("ID,Caso de Teste,Foo\nTC-1,Login,x\n"), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, "VAL001", body.Code)
	assert.ElementsMatch(t, []string{"Steps", "Expected Result"}, body.MissingColumns)
	assert.Equal(t, []string{"ID", "Caso de Teste", "Foo"}, body.FoundColumns)

	raw := decode[map[string]any](t, env.upload(t, alice, "/api/excel/import", "cases.csv", "text/csv",
		[]byte("ID,Case Title\nTC-1,Login\n"), nil))
	assert.Contains(t, raw, "found_columns")

	rec = env.upload(t, alice, "/api/excel/import", "cases.pdf", "application/pdf", []byte("%PDF-1.4"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Nothing was persisted by the rejected imports.
	rec = env.doJSON(t, alice, http.MethodGet, "/api/reports", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, decode[map[string]any](t, rec)["total"])
}

func TestValidateImport_DoesNotPersist(t *testing.T) {
	env := newTestEnv(t)

	csv := "ID,Case Title,Steps,Expected Result\n" +
		"TC-1,Login,Open page,Dashboard\n" +
		"TC-2,Logout,,Signed out\n"

	rec := env.upload(t, alice, "/api/excel/validate", "cases.csv", "text/csv", []byte(csv), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode[previewResponse](t, rec)
	assert.True(t, got.Valid)
	assert.Equal(t, 2, got.TotalRows)
	assert.Equal(t, 1, got.ValidRows)
	assert.Equal(t, []int{3}, got.InvalidRows)
	assert.Empty(t, got.MissingColumns)
	require.Len(t, got.PreviewData, 2)
	assert.Equal(t, "TC-1", got.PreviewData[0]["ID"])

	rec = env.doJSON(t, alice, http.MethodGet, "/api/reports", nil)
	assert.EqualValues(t, 0, decode[map[string]any](t, rec)["total"])
}

func TestEvidence_Lifecycle(t *testing.T) {
	env := newTestEnv(t)
	rep := env.createReport(t, alice, "With screenshots")
	tc := env.createTestCase(t, alice, rep.ID)
	img := pngBytes(t)

	rec := env.upload(t, alice, "/api/uploads/"+tc.ID, "shot.png", "image/png", img, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	up := decode[evidenceResponse](t, rec)
	assert.Equal(t, core.EvidenceURLPrefix+up.Filename, up.URL)
	assert.True(t, core.ValidStoredName(up.Filename))

	rec = env.doJSON(t, alice, http.MethodGet, up.URL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "inline")
	assert.Equal(t, img, rec.Body.Bytes())

	rec = env.doJSON(t, alice, http.MethodGet, "/api/reports/"+rep.ID, nil)
	got := decode[reportJSON](t, rec)
	require.Len(t, got.TestCases, 1)
	require.Len(t, got.TestCases[0].Evidence, 1)
	assert.Equal(t, "shot.png", got.TestCases[0].Evidence[0].OriginalName)

	// Another user can neither read nor delete it.
	rec = env.doJSON(t, bob, http.MethodGet, up.URL, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = env.doJSON(t, bob, http.MethodDelete, up.URL, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.doJSON(t, alice, http.MethodDelete, up.URL, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.doJSON(t, alice, http.MethodGet, up.URL, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEvidence_Rejections(t *testing.T) {
	env := newTestEnv(t)
	rep := env.createReport(t, alice, "Rejections")
	tc := env.createTestCase(t, alice, rep.ID)

	rec := env.upload(t, alice, "/api/uploads/"+tc.ID, "script.exe", "", []byte("MZ"), nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.upload(t, bob, "/api/uploads/"+tc.ID, "shot.png", "image/png", pngBytes(t), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.doJSON(t, alice, http.MethodGet, "/api/uploads/..%2F..%2Fetc%2Fpasswd", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportPDF(t *testing.T) {
	env := newTestEnv(t)
	rep := env.createReport(t, alice, "Release: 1.0")
	tc := env.createTestCase(t, alice, rep.ID)
	rec := env.upload(t, alice, "/api/uploads/"+tc.ID, "shot.png", "image/png", pngBytes(t), nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.doJSON(t, alice, http.MethodGet, "/api/secure-reports/"+rep.ID+"/export-pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Release_ 1.0.pdf")
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))

	rec = env.doJSON(t, alice, http.MethodGet, "/api/secure-reports/export-all-pdf", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), render.BulkDownloadName)
	assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
}

func TestExportHTML(t *testing.T) {
	env := newTestEnv(t)
	rep := env.createReport(t, alice, "<b>Checkout</b>")
	env.createTestCase(t, alice, rep.ID)

	rec := env.doJSON(t, alice, http.MethodGet, "/api/secure-reports/"+rep.ID+"/export-html", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html"))

	body := rec.Body.String()
	assert.Contains(t, body, "&lt;b&gt;Checkout&lt;/b&gt;")
	assert.NotContains(t, body, "<b>Checkout</b>")
	assert.Contains(t, body, "TC-1: Login")
}

func TestImportTemplate(t *testing.T) {
	env := newTestEnv(t)

	rec := env.doJSON(t, alice, http.MethodGet, "/api/excel/template", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	info := decode[core.ImportTemplateInfo](t, rec)
	require.Len(t, info.RequiredColumns, len(core.RequiredColumns()))
	assert.Equal(t, core.ColID, info.RequiredColumns[0].Name)

	rec = env.doJSON(t, alice, http.MethodGet, "/api/excel/template?format=xlsx", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, xlsxContentType, rec.Header().Get("Content-Type"))

	// The workbook and its example row pass validation.
	rec = env.upload(t, alice, "/api/excel/validate", "template.xlsx", xlsxContentType, rec.Body.Bytes(), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decode[previewResponse](t, rec).Valid)
}

func TestRateLimiter(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.stop()

	assert.True(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.1"))
	assert.False(t, rl.allow("10.0.0.1"))
	assert.True(t, rl.allow("10.0.0.2"))

	rl.stop()
	rl.stop()
}
