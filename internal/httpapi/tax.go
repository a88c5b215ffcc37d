package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/buchwerk/fibu/internal/fibu"
)

// getUStVA computes a VAT advance return for a date range without storing
// anything.
func (s *Server) getUStVA(w http.ResponseWriter, r *http.Request) {
	companyID, ok := queryCompanyID(w, r)
	if !ok {
		return
	}
	start, err := parseDate(r.URL.Query().Get("start_date"), "start_date")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	end, err := parseDate(r.URL.Query().Get("end_date"), "end_date")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	data, err := s.taxSvc.ComputeUStVA(r.Context(), companyID, start, end)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, data)
}

// postUStVAReport computes and stores a draft UStVA report.
func (s *Server) postUStVAReport(w http.ResponseWriter, r *http.Request) {
	var req postUStVARequest
	if err := decodeStrict(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	start, err := parseDate(req.StartDate, "start_date")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	end, err := parseDate(req.EndDate, "end_date")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	report, err := s.taxSvc.CreateUStVAReport(r.Context(), req.CompanyID, start, end)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toTaxReportResponse(report))
}

// postKStReport computes and stores a draft KSt report for a fiscal year.
func (s *Server) postKStReport(w http.ResponseWriter, r *http.Request) {
	var req postKStRequest
	if err := decodeStrict(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	adj, err := toAdjustments(req.Adjustments)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	report, err := s.taxSvc.CreateKStReport(r.Context(), req.CompanyID, req.FiscalYearID, adj)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toTaxReportResponse(report))
}

// recalculateKSt re-applies adjustments on a draft KSt report.
func (s *Server) recalculateKSt(w http.ResponseWriter, r *http.Request) {
	reportID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid report id")
		return
	}
	var req recalculateKStRequest
	if err := decodeStrict(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	adj, err := toAdjustments(req.Adjustments)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	report, err := s.taxSvc.RecalculateKSt(r.Context(), req.CompanyID, reportID, adj)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toTaxReportResponse(report))
}

// updateTaxStatus advances a report along draft -> submitted -> accepted.
func (s *Server) updateTaxStatus(w http.ResponseWriter, r *http.Request) {
	reportID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid report id")
		return
	}
	var req taxStatusRequest
	if err := decodeStrict(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	report, err := s.taxSvc.UpdateStatus(r.Context(), req.CompanyID, reportID, fibu.TaxReportStatus(req.Status))
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, toTaxReportResponse(report))
}
