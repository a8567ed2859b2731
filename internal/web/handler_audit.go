package web

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/vbonduro/opname/internal/domain"
	"github.com/vbonduro/opname/internal/service"
)

func (s *Server) handleCreateAudit(w http.ResponseWriter, r *http.Request) {
	var in service.AuditInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.badRequest(w, r, "invalid audit body", err)
		return
	}

	audit, err := s.audits.CreateAudit(r.Context(), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, audit, s.logger)
}

func (s *Server) handleListAudits(w http.ResponseWriter, r *http.Request) {
	audits, err := s.audits.ListAudits(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if audits == nil {
		audits = []*domain.Audit{}
	}
	writeJSON(w, http.StatusOK, audits, s.logger)
}

func (s *Server) handleGetAudit(w http.ResponseWriter, r *http.Request) {
	detail, err := s.audits.GetAuditDetail(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail, s.logger)
}

func (s *Server) handleUpdateAudit(w http.ResponseWriter, r *http.Request) {
	var patch service.AuditPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		s.badRequest(w, r, "invalid audit body", err)
		return
	}

	audit, err := s.audits.UpdateAudit(r.Context(), r.PathValue("id"), patch)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, audit, s.logger)
}

func (s *Server) handleDeleteAudit(w http.ResponseWriter, r *http.Request) {
	if err := s.audits.DeleteAudit(r.Context(), r.PathValue("id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSubmitSection accepts either a full submission object or a bare
// question_id -> value map as the body.
func (s *Server) handleSubmitSection(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Type   string            `json:"section_type"`
		Values map[string]any    `json:"values"`
		Labels map[string]string `json:"labels"`
	}
	// A body with a "values" key is the wrapper form; anything else is the
	// bare answer map.
	var fields map[string]json.RawMessage
	if err := decodeJSON(w, r, &fields); err != nil {
		s.badRequest(w, r, "invalid section body", err)
		return
	}
	if _, wrapped := fields["values"]; wrapped {
		for key, dst := range map[string]any{"section_type": &body.Type, "values": &body.Values, "labels": &body.Labels} {
			value, ok := fields[key]
			if !ok {
				continue
			}
			if err := json.Unmarshal(value, dst); err != nil {
				s.badRequest(w, r, "invalid section body", err)
				return
			}
		}
	} else {
		body.Values = make(map[string]any, len(fields))
		for key, value := range fields {
			var v any
			if err := json.Unmarshal(value, &v); err != nil {
				s.badRequest(w, r, "invalid section body", err)
				return
			}
			body.Values[key] = v
		}
	}

	result, err := s.audits.SubmitSection(r.Context(), r.PathValue("id"), service.SectionSubmission{
		Name:   r.PathValue("section"),
		Type:   body.Type,
		Values: body.Values,
		Labels: body.Labels,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result, s.logger)
}

func (s *Server) handleAddContact(w http.ResponseWriter, r *http.Request) {
	var in service.ContactInput
	if err := decodeJSON(w, r, &in); err != nil {
		s.badRequest(w, r, "invalid contact body", err)
		return
	}

	contact, err := s.audits.AddContact(r.Context(), r.PathValue("id"), in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, contact, s.logger)
}

func (s *Server) handleListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := s.audits.ListContacts(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if contacts == nil {
		contacts = []*domain.Contact{}
	}
	writeJSON(w, http.StatusOK, contacts, s.logger)
}

func (s *Server) handleDeleteContact(w http.ResponseWriter, r *http.Request) {
	if err := s.audits.DeleteContact(r.Context(), r.PathValue("id"), r.PathValue("contactID")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePutAdvanced(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err != nil {
		s.badRequest(w, r, "failed to read body", err)
		return
	}

	data, err := s.audits.PutAdvancedData(r.Context(), r.PathValue("id"), r.PathValue("key"), payload)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, advancedResponse(data), s.logger)
}

func (s *Server) handleGetAdvanced(w http.ResponseWriter, r *http.Request) {
	data, err := s.audits.GetAdvancedData(r.Context(), r.PathValue("id"), r.PathValue("key"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, advancedResponse(data), s.logger)
}

// advancedResponse embeds the stored document as JSON rather than a string.
func advancedResponse(d *domain.AdvancedData) any {
	return struct {
		Key       string          `json:"key"`
		Payload   json.RawMessage `json:"payload"`
		UpdatedAt time.Time       `json:"updated_at"`
	}{Key: d.Key, Payload: json.RawMessage(d.Payload), UpdatedAt: d.UpdatedAt}
}

func (s *Server) handleCheckMedia(w http.ResponseWriter, r *http.Request) {
	gaps, err := s.audits.CheckMedia(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if gaps == nil {
		gaps = []domain.ConsistencyGap{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"gaps": gaps}, s.logger)
}
