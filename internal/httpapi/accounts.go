package httpapi

import (
	"net/http"

	chi "github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buchwerk/fibu/internal/fibu"
)

func (s *Server) postCompany(w http.ResponseWriter, r *http.Request) {
	var req postCompanyRequest
	if err := decodeStrict(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	if req.Name == "" {
		badRequest(w, "name is required")
		return
	}
	c, err := s.store.CreateCompany(r.Context(), fibu.Company{ID: uuid.New(), Name: req.Name})
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, companyResponse{ID: c.ID, Name: c.Name})
}

func (s *Server) getCompany(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid company id")
		return
	}
	c, err := s.store.CompanyByID(r.Context(), id)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusOK, companyResponse{ID: c.ID, Name: c.Name})
}

func (s *Server) postAccount(w http.ResponseWriter, r *http.Request) {
	var req postAccountRequest
	if err := decodeStrict(r, &req); err != nil {
		badRequest(w, "invalid JSON: "+err.Error())
		return
	}
	a := fibu.Account{
		CompanyID:        req.CompanyID,
		Code:             req.Code,
		Name:             req.Name,
		Type:             fibu.AccountType(req.Type),
		PresentationRule: req.PresentationRule,
	}
	if req.TaxRate != nil {
		rate, err := decimal.NewFromString(*req.TaxRate)
		if err != nil {
			badRequest(w, "tax_rate must be a decimal")
			return
		}
		a.TaxRate = &rate
	}
	created, err := s.accountSvc.Create(r.Context(), a)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	toJSON(w, http.StatusCreated, toAccountResponse(created))
}

func (s *Server) listAccounts(w http.ResponseWriter, r *http.Request) {
	companyID, ok := queryCompanyID(w, r)
	if !ok {
		return
	}
	accounts, err := s.accountSvc.List(r.Context(), companyID)
	if err != nil {
		writeDomainErr(w, err)
		return
	}
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	toJSON(w, http.StatusOK, out)
}
