package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/buchwerk/fibu/internal/fibu"
)

func (s *Server) postFiscalYear(w http.ResponseWriter, r *http.Request) {
	var req postFiscalYearRequest
	if err := decodeStrict(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.CompanyID == uuid.Nil || req.Year < 1900 || req.Year > 9999 {
		badRequest(w, "company_id and a plausible year are required")
		return
	}
	fy, err := s.store.CreateFiscalYear(r.Context(), fibu.NewFiscalYear(req.CompanyID, req.Year))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toFiscalYearResponse(fy))
}

func (s *Server) listFiscalYears(w http.ResponseWriter, r *http.Request) {
	companyID, ok := queryCompanyID(w, r)
	if !ok {
		return
	}
	years, err := s.store.FiscalYearsByCompany(r.Context(), companyID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]fiscalYearResponse, 0, len(years))
	for _, fy := range years {
		out = append(out, toFiscalYearResponse(fy))
	}
	toJSON(w, http.StatusOK, out)
}

// postOpeningBalance books the EBK for a fiscal year from a one-sided list
// of account balances.
func (s *Server) postOpeningBalance(w http.ResponseWriter, r *http.Request) {
	fiscalYearID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid fiscal year id")
		return
	}
	var req postOpeningBalanceRequest
	if err := decodeStrict(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.CompanyID == uuid.Nil {
		badRequest(w, "company_id is required")
		return
	}
	lines, err := toOpeningLines(req.Lines)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	source := fibu.SheetSourceManual
	if req.Source != "" {
		source = fibu.SheetSource(req.Source)
	}
	sheet, err := s.yearSvc.PostOpeningBalance(r.Context(), req.CompanyID, fiscalYearID, lines, source)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toBalanceSheetResponse(sheet))
}

// closeFiscalYear runs the closing transition; by default the next year's
// opening balance is carried forward.
func (s *Server) closeFiscalYear(w http.ResponseWriter, r *http.Request) {
	fiscalYearID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid fiscal year id")
		return
	}
	var req closeFiscalYearRequest
	if err := decodeStrict(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.CompanyID == uuid.Nil {
		badRequest(w, "company_id is required")
		return
	}
	createNext := true
	if req.CreateNextOpening != nil {
		createNext = *req.CreateNextOpening
	}
	sheet, err := s.yearSvc.Close(r.Context(), req.CompanyID, fiscalYearID, createNext)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toBalanceSheetResponse(sheet))
}
