package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/mdddj/blog-new/internal/blogmigrate"
	"github.com/mdddj/blog-new/internal/httputil"
)

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	b, err := s.data.Export(r.Context())
	if err != nil {
		s.logger.Error("bundle export failed", "error", err)
		httputil.WriteError(w, http.StatusInternalServerError, "export failed: "+err.Error())
		return
	}
	w.Header().Set("Content-Disposition", `attachment; filename="blog-export.json"`)
	httputil.WriteJSON(w, http.StatusOK, b)
}

// handleImport upserts a bundle. Row-level failures are part of the report,
// so any completed run answers 200.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var b blogmigrate.Bundle
	if !httputil.DecodeJSONLimit(w, r, &b, s.bodyLimit) {
		return
	}

	report, err := s.data.ImportBundle(r.Context(), &b, nil)
	if report == nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("bundle import ended early", "run_id", report.RunID, "error", err)
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

func (s *Server) handleImportSQL(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SQL string `json:"sql"`
	}
	if !httputil.DecodeJSONLimit(w, r, &body, s.bodyLimit) {
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.data.ImportSQL(r.Context(), body.SQL))
}
