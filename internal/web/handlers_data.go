package web

import (
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/assurelog/internal/core"
	"github.com/JonMunkholm/assurelog/internal/logging"
	"github.com/JonMunkholm/assurelog/internal/render"
)

// handleListReports runs the report query engine for the caller.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	reports, err := s.service.ListReports(r.Context(), identity(r), reportFilter(r))
	if err != nil {
		respondError(w, r, err)
		return
	}

	out := make([]reportJSON, 0, len(reports))
	for _, rep := range reports {
		out = append(out, toReportJSON(rep))
	}
	writeJSON(w, r, http.StatusOK, map[string]any{
		"reports": out,
		"total":   len(out),
	})
}

// handleGetReport returns one report with its test cases and evidence.
func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	report, err := s.service.GetReport(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, toReportJSON(*report))
}

// handleExportPDF renders one report and streams it as an attachment.
func (s *Server) handleExportPDF(w http.ResponseWriter, r *http.Request) {
	artifact, err := s.service.ExportReport(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.serveArtifact(w, r, artifact)
}

// handleExportAllPDF renders every report in the caller's scope matching
// the query filters into one document.
func (s *Server) handleExportAllPDF(w http.ResponseWriter, r *http.Request) {
	artifact, err := s.service.ExportReports(r.Context(), identity(r), reportFilter(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	s.serveArtifact(w, r, artifact)
}

func (s *Server) serveArtifact(w http.ResponseWriter, r *http.Request, artifact *core.Artifact) {
	f, err := os.Open(artifact.Path)
	if err != nil {
		respondError(w, r, err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", attachment("attachment", artifact.DownloadName))
	w.Header().Set("Content-Length", strconv.FormatInt(artifact.Size, 10))
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)

	if _, err := f.WriteTo(w); err != nil {
		logging.FromContext(r.Context()).Warn("artifact stream interrupted",
			"path", artifact.Path,
			"error", err,
		)
	}
}

// handleExportHTML returns a printable HTML rendition of one report.
func (s *Server) handleExportHTML(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	report, err := s.service.GetReport(ctx, identity(r), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	limiter := s.service.Limiter()
	if err := limiter.Acquire(ctx); err != nil {
		respondError(w, r, err)
		return
	}
	defer limiter.Release()

	doc := render.Build(ctx, []core.Report{*report}, s.blobs, render.Options{
		Kind:             core.ExportSingle,
		MaxEvidenceBytes: s.service.MaxEvidenceSize(),
	})

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := render.HTML(doc).Render(ctx, w); err != nil {
		logging.FromContext(ctx).Warn("html export interrupted", "report_id", report.ID, "error", err)
	}
}
