// Package httpapi wires the HTTP surface of the bookkeeping service.
// It keeps handlers thin, delegating business rules to the service layer.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	chi "github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/buchwerk/fibu/internal/fibu"
	"github.com/buchwerk/fibu/internal/kontenplan"
	"github.com/buchwerk/fibu/internal/service/account"
	"github.com/buchwerk/fibu/internal/service/fiscalyear"
	"github.com/buchwerk/fibu/internal/service/journal"
	"github.com/buchwerk/fibu/internal/service/report"
	"github.com/buchwerk/fibu/internal/service/tax"
)

// Store bundles every repository and writer the handlers need. Both the
// memory and the postgres store satisfy it.
type Store interface {
	account.Repo
	account.Writer
	journal.Repo
	journal.Writer
	journal.BankReconciler
	report.Repo
	fiscalyear.Repo
	fiscalyear.Writer
	tax.Repo
	tax.Writer

	CreateCompany(ctx context.Context, c fibu.Company) (fibu.Company, error)
	CompanyByID(ctx context.Context, companyID uuid.UUID) (fibu.Company, error)
	FiscalYearsByCompany(ctx context.Context, companyID uuid.UUID) ([]fibu.FiscalYear, error)
}

// Server composes the services over a Store and exposes them via Chi routes.
type Server struct {
	store      Store
	journalSvc journal.Service
	accountSvc account.Service
	reportSvc  report.Service
	yearSvc    fiscalyear.Service
	taxSvc     tax.Service
	log        *slog.Logger
	rt         *chi.Mux
}

// New constructs the HTTP server with routes and middleware.
// The logger is used by request/response logging and panic recovery.
func New(store Store, table *kontenplan.Table, logger *slog.Logger) *Server {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(requestLogger(logger))
	r.Use(recoverer(logger))
	r.Use(metricsMiddleware)

	journalSvc := journal.New(store, store, store)
	accountSvc := account.New(store, store, table)
	reportSvc := report.New(store, table)
	s := &Server{
		store:      store,
		journalSvc: journalSvc,
		accountSvc: accountSvc,
		reportSvc:  reportSvc,
		yearSvc:    fiscalyear.New(store, store, journalSvc, reportSvc, accountSvc, table),
		taxSvc:     tax.New(store, store, reportSvc),
		log:        logger,
		rt:         r,
	}
	s.routes()
	return s
}

// Handler exposes the configured http.Handler.
func (s *Server) Handler() http.Handler { return s.rt }

// routes declares the public HTTP API endpoints.
func (s *Server) routes() {
	// Companies
	s.rt.Post("/v1/companies", s.postCompany)
	s.rt.Get("/v1/companies/{id}", s.getCompany)
	// Accounts
	s.rt.Post("/v1/accounts", s.postAccount)
	s.rt.Get("/v1/accounts", s.listAccounts)
	// Journal entries
	s.rt.Post("/v1/entries", s.postEntry)
	s.rt.Post("/v1/entries/draft", s.postDraftEntry)
	s.rt.Get("/v1/entries", s.listEntries)
	s.rt.Get("/v1/entries/{id}", s.getEntry)
	s.rt.Delete("/v1/entries/{id}", s.deleteEntry)
	// Fiscal years
	s.rt.Post("/v1/fiscal-years", s.postFiscalYear)
	s.rt.Get("/v1/fiscal-years", s.listFiscalYears)
	s.rt.Post("/v1/fiscal-years/{id}/opening-balance", s.postOpeningBalance)
	s.rt.Post("/v1/fiscal-years/{id}/close", s.closeFiscalYear)
	// Reports
	s.rt.Get("/v1/reports/balance-sheet", s.getBalanceSheet)
	s.rt.Get("/v1/reports/guv", s.getGuV)
	s.rt.Get("/v1/reports/ustva", s.getUStVA)
	s.rt.Post("/v1/reports/ustva", s.postUStVAReport)
	s.rt.Post("/v1/reports/kst", s.postKStReport)
	s.rt.Post("/v1/reports/tax/{id}/recalculate", s.recalculateKSt)
	s.rt.Post("/v1/reports/tax/{id}/status", s.updateTaxStatus)
	// Health and metrics (unversioned)
	s.rt.Get("/healthz", s.healthz)
	s.rt.Get("/readyz", s.readyz)
	s.rt.Method(http.MethodGet, "/metrics", metricsHandler())
}
