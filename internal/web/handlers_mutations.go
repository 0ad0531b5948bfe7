package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleCreateReport creates an empty report owned by the caller.
func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		respondError(w, r, err)
		return
	}

	report, err := s.service.CreateReport(r.Context(), identity(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toReportJSON(*report))
}

// handleUpdateReport applies a partial update to a report.
func (s *Server) handleUpdateReport(w http.ResponseWriter, r *http.Request) {
	var req reportPatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		respondError(w, r, err)
		return
	}

	report, err := s.service.UpdateReport(r.Context(), identity(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toReportJSON(*report))
}

// handleDeleteReport deletes a report with its test cases and evidence.
func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteReport(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"message": "Report deleted"})
}

// handleCreateTestCase appends a test case to a report.
func (s *Server) handleCreateTestCase(w http.ResponseWriter, r *http.Request) {
	var req testCaseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	in, err := req.input()
	if err != nil {
		respondError(w, r, err)
		return
	}

	tc, err := s.service.CreateTestCase(r.Context(), identity(r), chi.URLParam(r, "id"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, toTestCaseJSON(*tc))
}

// handleUpdateTestCase applies a partial update to a test case.
func (s *Server) handleUpdateTestCase(w http.ResponseWriter, r *http.Request) {
	var req testCasePatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		respondError(w, r, err)
		return
	}

	tc, err := s.service.UpdateTestCase(r.Context(), identity(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toTestCaseJSON(*tc))
}

// handleDeleteTestCase deletes a test case and its evidence.
func (s *Server) handleDeleteTestCase(w http.ResponseWriter, r *http.Request) {
	if err := s.service.DeleteTestCase(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"message": "Test case deleted"})
}
