package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// postEntry validates and posts a journal entry in one step. The entry is
// immutable from this point on.
func (s *Server) postEntry(w http.ResponseWriter, r *http.Request) {
	var req postEntryRequest
	if err := decodeStrict(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	e, err := toEntryDomain(req)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	posted, err := s.journalSvc.Post(r.Context(), e)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toEntryResponse(posted))
}

// postDraftEntry persists an entry without posting it.
func (s *Server) postDraftEntry(w http.ResponseWriter, r *http.Request) {
	var req postEntryRequest
	if err := decodeStrict(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	e, err := toEntryDomain(req)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	draft, err := s.journalSvc.SaveDraft(r.Context(), e)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toEntryResponse(draft))
}

func (s *Server) listEntries(w http.ResponseWriter, r *http.Request) {
	companyID, ok := queryCompanyID(w, r)
	if !ok {
		return
	}
	entries, err := s.journalSvc.List(r.Context(), companyID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]entryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, toEntryResponse(e))
	}
	toJSON(w, http.StatusOK, out)
}

func (s *Server) getEntry(w http.ResponseWriter, r *http.Request) {
	companyID, ok := queryCompanyID(w, r)
	if !ok {
		return
	}
	entryID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid entry id")
		return
	}
	e, err := s.store.EntryByID(r.Context(), companyID, entryID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toEntryResponse(e))
}

// deleteEntry removes a draft. Posted entries and closed years refuse with
// 409.
func (s *Server) deleteEntry(w http.ResponseWriter, r *http.Request) {
	companyID, ok := queryCompanyID(w, r)
	if !ok {
		return
	}
	entryID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid entry id")
		return
	}
	if err := s.journalSvc.Delete(r.Context(), companyID, entryID); err != nil {
		writeDomainErr(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// queryCompanyID parses the mandatory company_id query parameter.
func queryCompanyID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.URL.Query().Get("company_id")
	if raw == "" {
		badRequest(w, "company_id is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(w, "invalid company_id")
		return uuid.Nil, false
	}
	return id, true
}
