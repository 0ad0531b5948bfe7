package web

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/JonMunkholm/assurelog/internal/core"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleImportTemplate describes the import columns. With ?format=xlsx it
// returns a workbook ready to fill in instead.
func (s *Server) handleImportTemplate(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("format") != "xlsx" {
		writeJSON(w, r, http.StatusOK, core.ImportTemplate())
		return
	}

	var buf bytes.Buffer
	if err := core.WriteTemplateXLSX(&buf); err != nil {
		respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", attachment("attachment", "test_case_template.xlsx"))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	buf.WriteTo(w)
}
