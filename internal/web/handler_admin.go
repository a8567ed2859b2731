package web

import (
	"net/http"

	"github.com/vbonduro/opname/internal/service"
)

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	result, err := s.sweeper.RunOnce(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if result.Skipped {
		status = http.StatusAccepted
	}
	writeJSON(w, status, result, s.logger)
}

// handleLegacyImport migrates one flat legacy snapshot posted as JSON.
func (s *Server) handleLegacyImport(w http.ResponseWriter, r *http.Request) {
	snap, err := service.ParseSnapshot(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	report, err := s.migrator.Migrate(r.Context(), snap)
	if err != nil {
		if report != nil {
			s.logger.Error("legacy import incomplete", "audit_id", report.AuditID, "sections", report.Sections)
		}
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, report, s.logger)
}
