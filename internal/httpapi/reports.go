package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/buchwerk/fibu/internal/service/report"
)

func (s *Server) getBalanceSheet(w http.ResponseWriter, r *http.Request) {
	companyID, ok := queryCompanyID(w, r)
	if !ok {
		return
	}
	fiscalYearID, ok := queryFiscalYearID(w, r)
	if !ok {
		return
	}
	data, err := s.reportSvc.BalanceSheet(r.Context(), companyID, fiscalYearID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, data)
}

func (s *Server) getGuV(w http.ResponseWriter, r *http.Request) {
	companyID, ok := queryCompanyID(w, r)
	if !ok {
		return
	}
	fiscalYearID, ok := queryFiscalYearID(w, r)
	if !ok {
		return
	}
	opts := report.DefaultOptions()
	if r.URL.Query().Get("only_posted") == "false" {
		opts.OnlyPosted = false
	}
	if r.URL.Query().Get("include_empty") == "false" {
		opts.IncludeEmpty = false
	}
	guv, err := s.reportSvc.GuV(r.Context(), companyID, fiscalYearID, opts)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, guv)
}

func queryFiscalYearID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	raw := r.URL.Query().Get("fiscal_year_id")
	if raw == "" {
		badRequest(w, "fiscal_year_id is required")
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		badRequest(w, "invalid fiscal_year_id")
		return uuid.Nil, false
	}
	return id, true
}
