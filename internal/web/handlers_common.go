package web

// handlers_common.go holds the JSON payloads and request parsing shared by
// the handlers.

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/assurelog/internal/core"
)

// maxJSONBody caps JSON request bodies.
const maxJSONBody = 1 << 20

// multipartOverhead is added to file caps to leave room for form fields.
const multipartOverhead = 1 << 20

type evidenceJSON struct {
	Filename     string    `json:"filename"`
	OriginalName string    `json:"original_name"`
	MIMEType     string    `json:"mime_type"`
	URL          string    `json:"url"`
	CreatedAt    time.Time `json:"created_at"`
}

type testCaseJSON struct {
	ID                  string         `json:"id"`
	ReportID            string         `json:"report_id"`
	Position            int            `json:"position"`
	CaseNumber          string         `json:"case_number"`
	Title               string         `json:"title"`
	ScenarioDescription string         `json:"scenario_description"`
	ExpectedResult      string         `json:"expected_result"`
	ActualResult        string         `json:"actual_result"`
	Status              core.Status    `json:"status"`
	Evidence            []evidenceJSON `json:"evidence"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

type reportJSON struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Date            string         `json:"date"`
	MadeBy          string         `json:"made_by"`
	TestEnvironment string         `json:"test_environment"`
	Link            string         `json:"link"`
	FeatureScenario string         `json:"feature_scenario"`
	OwnerID         string         `json:"owner_id"`
	TestCases       []testCaseJSON `json:"test_cases"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func toEvidenceJSON(ev core.Evidence) evidenceJSON {
	return evidenceJSON{
		Filename:     ev.StoredName,
		OriginalName: ev.OriginalName,
		MIMEType:     ev.MIMEType,
		URL:          ev.URL(),
		CreatedAt:    ev.CreatedAt,
	}
}

func toTestCaseJSON(tc core.TestCase) testCaseJSON {
	out := testCaseJSON{
		ID:                  tc.ID,
		ReportID:            tc.ReportID,
		Position:            tc.Position,
		CaseNumber:          tc.CaseNumber,
		Title:               tc.Title,
		ScenarioDescription: tc.ScenarioDescription,
		ExpectedResult:      tc.ExpectedResult,
		ActualResult:        tc.ActualResult,
		Status:              tc.Status,
		Evidence:            make([]evidenceJSON, 0, len(tc.Evidence)),
		CreatedAt:           tc.CreatedAt,
		UpdatedAt:           tc.UpdatedAt,
	}
	for _, ev := range tc.Evidence {
		out.Evidence = append(out.Evidence, toEvidenceJSON(ev))
	}
	return out
}

func toReportJSON(r core.Report) reportJSON {
	out := reportJSON{
		ID:              r.ID,
		Title:           r.Title,
		Date:            r.Date.Format(core.ISODate),
		MadeBy:          r.MadeBy,
		TestEnvironment: r.TestEnvironment,
		Link:            r.Link,
		FeatureScenario: r.FeatureScenario,
		OwnerID:         r.OwnerID,
		TestCases:       make([]testCaseJSON, 0, len(r.TestCases)),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	for _, tc := range r.TestCases {
		out.TestCases = append(out.TestCases, toTestCaseJSON(tc))
	}
	return out
}

// reportRequest is the body of POST /api/reports.
type reportRequest struct {
	Title           string `json:"title"`
	Date            string `json:"date"`
	MadeBy          string `json:"made_by"`
	TestEnvironment string `json:"test_environment"`
	Link            string `json:"link"`
	FeatureScenario string `json:"feature_scenario"`
}

func (req reportRequest) input() (core.ReportInput, error) {
	in := core.ReportInput{
		Title:           req.Title,
		MadeBy:          req.MadeBy,
		TestEnvironment: req.TestEnvironment,
		Link:            req.Link,
		FeatureScenario: req.FeatureScenario,
	}
	if strings.TrimSpace(req.Date) != "" {
		d, err := parseDate(req.Date)
		if err != nil {
			return in, err
		}
		in.Date = &d
	}
	return in, nil
}

// reportPatchRequest is the body of PUT /api/reports/{id}. Absent fields
// are left unchanged.
type reportPatchRequest struct {
	Title           *string `json:"title"`
	Date            *string `json:"date"`
	MadeBy          *string `json:"made_by"`
	TestEnvironment *string `json:"test_environment"`
	Link            *string `json:"link"`
	FeatureScenario *string `json:"feature_scenario"`
}

func (req reportPatchRequest) patch() (core.ReportPatch, error) {
	p := core.ReportPatch{
		Title:           req.Title,
		MadeBy:          req.MadeBy,
		TestEnvironment: req.TestEnvironment,
		Link:            req.Link,
		FeatureScenario: req.FeatureScenario,
	}
	if req.Date != nil {
		d, err := parseDate(*req.Date)
		if err != nil {
			return p, err
		}
		p.Date = &d
	}
	return p, nil
}

// testCaseRequest is the body of POST /api/reports/{id}/test-cases.
type testCaseRequest struct {
	CaseNumber          string `json:"case_number"`
	Title               string `json:"title"`
	ScenarioDescription string `json:"scenario_description"`
	ExpectedResult      string `json:"expected_result"`
	ActualResult        string `json:"actual_result"`
	Status              string `json:"status"`
}

func (req testCaseRequest) input() (core.TestCaseInput, error) {
	status, err := core.ParseStatus(req.Status)
	if err != nil {
		return core.TestCaseInput{}, err
	}
	return core.TestCaseInput{
		CaseNumber:          req.CaseNumber,
		Title:               req.Title,
		ScenarioDescription: req.ScenarioDescription,
		ExpectedResult:      req.ExpectedResult,
		ActualResult:        req.ActualResult,
		Status:              status,
	}, nil
}

// testCasePatchRequest is the body of PUT /api/test-cases/{id}.
type testCasePatchRequest struct {
	CaseNumber          *string `json:"case_number"`
	Title               *string `json:"title"`
	ScenarioDescription *string `json:"scenario_description"`
	ExpectedResult      *string `json:"expected_result"`
	ActualResult        *string `json:"actual_result"`
	Status              *string `json:"status"`
}

func (req testCasePatchRequest) patch() (core.TestCasePatch, error) {
	p := core.TestCasePatch{
		CaseNumber:          req.CaseNumber,
		Title:               req.Title,
		ScenarioDescription: req.ScenarioDescription,
		ExpectedResult:      req.ExpectedResult,
		ActualResult:        req.ActualResult,
	}
	if req.Status != nil {
		s, err := core.ParseStatus(*req.Status)
		if err != nil {
			return p, err
		}
		p.Status = &s
	}
	return p, nil
}

func parseDate(raw string) (time.Time, error) {
	d, ok := core.ParseISODate(strings.TrimSpace(raw))
	if !ok {
		return time.Time{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", errBadRequest, raw)
	}
	return d, nil
}

// decodeJSON reads a bounded JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// reportFilter reads the query-engine inputs from the URL.
func reportFilter(r *http.Request) core.ReportFilter {
	q := r.URL.Query()
	return core.ReportFilter{
		Search:      q.Get("search"),
		Responsible: q.Get("responsible"),
		DateFrom:    q.Get("date_from"),
		DateTo:      q.Get("date_to"),
		Status:      q.Get("status"),
		Feature:     q.Get("feature"),
		Environment: q.Get("environment"),
		SortBy:      q.Get("sort_by"),
		SortOrder:   q.Get("sort_order"),
	}
}

// readUpload reads the multipart "file" field, at most limit bytes.
func readUpload(w http.ResponseWriter, r *http.Request, limit int64) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartOverhead)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		if strings.Contains(err.Error(), "request body too large") {
			return "", nil, fmt.Errorf("%w: request exceeds %d bytes", core.ErrFileTooLarge, limit)
		}
		return "", nil, fmt.Errorf("%w: %v", errNoFile, err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, errNoFile
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return "", nil, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return "", nil, fmt.Errorf("%w: file exceeds %d bytes", core.ErrFileTooLarge, limit)
	}
	return header.Filename, data, nil
}

// attachment formats a Content-Disposition header value.
func attachment(disposition, name string) string {
	return mime.FormatMediaType(disposition, map[string]string{"filename": name})
}
