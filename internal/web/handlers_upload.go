package web

import (
	"bytes"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/assurelog/internal/core"
	"github.com/JonMunkholm/assurelog/internal/logging"
)

type importResponse struct {
	Message       string            `json:"message"`
	ReportID      string            `json:"report_id"`
	ImportedCount int               `json:"imported_count"`
	TotalRows     int               `json:"total_rows"`
	Errors        []string          `json:"errors"`
	Failures      []core.RowFailure `json:"failures"`
}

type previewResponse struct {
	Valid          bool                `json:"valid"`
	TotalRows      int                 `json:"total_rows"`
	ValidRows      int                 `json:"valid_rows"`
	InvalidRows    []int               `json:"invalid_rows"`
	MissingColumns []string            `json:"missing_columns"`
	FoundColumns   []string            `json:"found_columns"`
	PreviewData    []map[string]string `json:"preview_data"`
}

type evidenceResponse struct {
	Message  string `json:"message"`
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// handleImport turns an uploaded spreadsheet into a new report.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(w, r, s.service.MaxImportSize())
	if err != nil {
		respondError(w, r, err)
		return
	}

	out, err := s.service.Import(r.Context(), identity(r), core.ImportRequest{
		FileName:        name,
		Data:            data,
		Title:           r.FormValue("report_title"),
		TestEnvironment: r.FormValue("test_environment"),
		FeatureScenario: r.FormValue("feature_scenario"),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, importResponse{
		Message:       fmt.Sprintf("Imported %d of %d test cases", out.ImportedCount, out.TotalRows),
		ReportID:      out.ReportID,
		ImportedCount: out.ImportedCount,
		TotalRows:     out.TotalRows,
		Errors:        out.Errors,
		Failures:      out.Failures,
	})
}

// handleValidateImport is the dry run of handleImport.
func (s *Server) handleValidateImport(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(w, r, s.service.MaxImportSize())
	if err != nil {
		respondError(w, r, err)
		return
	}

	p, err := s.service.ValidateImport(r.Context(), identity(r), name, data)
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, previewResponse{
		Valid:          p.Valid,
		TotalRows:      p.TotalRows,
		ValidRows:      p.ValidRows,
		InvalidRows:    p.InvalidRows,
		MissingColumns: p.MissingColumns,
		FoundColumns:   p.FoundColumns,
		PreviewData:    p.PreviewData,
	})
}

// handleUploadEvidence attaches one file to a test case.
func (s *Server) handleUploadEvidence(w http.ResponseWriter, r *http.Request) {
	name, data, err := readUpload(w, r, s.service.MaxEvidenceSize())
	if err != nil {
		respondError(w, r, err)
		return
	}

	var contentType string
	if _, header, err := r.FormFile("file"); err == nil {
		contentType = header.Header.Get("Content-Type")
	}

	ev, err := s.service.UploadEvidence(r.Context(), identity(r), core.EvidenceUpload{
		TestCaseID:  chi.URLParam(r, "testCaseID"),
		FileName:    name,
		ContentType: contentType,
		Body:        bytes.NewReader(data),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, evidenceResponse{
		Message:  "File uploaded",
		Filename: ev.StoredName,
		URL:      ev.URL(),
	})
}

// handleDownloadEvidence streams an evidence blob inline.
func (s *Server) handleDownloadEvidence(w http.ResponseWriter, r *http.Request) {
	ev, rc, err := s.service.OpenEvidence(r.Context(), identity(r), chi.URLParam(r, "filename"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", core.EvidenceContentType(*ev))
	w.Header().Set("Content-Disposition", attachment("inline", ev.OriginalName))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, rc); err != nil {
		logging.FromContext(r.Context()).Warn("evidence stream interrupted",
			"stored_name", ev.StoredName,
			"error", err,
		)
	}
}

// handleDeleteEvidence removes an evidence reference and its blob.
func (s *Server) handleDeleteEvidence(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteEvidence(r.Context(), identity(r), chi.URLParam(r, "filename")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"message": "File deleted"})
}
