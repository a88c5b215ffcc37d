// Package memory provides a simple in-memory implementation used for
// development and tests. It keeps code paths easy to follow while allowing
// us to plug in a real DB later.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/buchwerk/fibu/internal/errs"
	"github.com/buchwerk/fibu/internal/fibu"
)

type accountKey struct {
	CompanyID uuid.UUID
	Code      string
}

type sheetKey struct {
	FiscalYearID uuid.UUID
	Type         fibu.SheetType
}

// Store is an in-memory implementation of every repository and writer the
// services consume. It is guarded by an RWMutex for concurrent reads/writes.
type Store struct {
	mu            sync.RWMutex
	companies     map[uuid.UUID]fibu.Company
	accounts      map[uuid.UUID]fibu.Account
	accountByCode map[accountKey]uuid.UUID
	entries       map[uuid.UUID]*fibu.JournalEntry
	fiscalYears   map[uuid.UUID]*fibu.FiscalYear
	sheets        map[sheetKey]fibu.BalanceSheet
	taxReports    map[uuid.UUID]fibu.TaxReport
	bankTx        map[uuid.UUID]fibu.BankTransactionStatus
}

// New constructs an empty in-memory store.
func New() *Store {
	return &Store{
		companies:     make(map[uuid.UUID]fibu.Company),
		accounts:      make(map[uuid.UUID]fibu.Account),
		accountByCode: make(map[accountKey]uuid.UUID),
		entries:       make(map[uuid.UUID]*fibu.JournalEntry),
		fiscalYears:   make(map[uuid.UUID]*fibu.FiscalYear),
		sheets:        make(map[sheetKey]fibu.BalanceSheet),
		taxReports:    make(map[uuid.UUID]fibu.TaxReport),
		bankTx:        make(map[uuid.UUID]fibu.BankTransactionStatus),
	}
}

// Seed helpers for local dev and tests.

func (s *Store) SeedCompany(c fibu.Company) {
	s.mu.Lock()
	s.companies[c.ID] = c
	s.mu.Unlock()
}

func (s *Store) SeedBankTransaction(id uuid.UUID, status fibu.BankTransactionStatus) {
	s.mu.Lock()
	s.bankTx[id] = status
	s.mu.Unlock()
}

// BankTransactionStatus reports the reconciliation state of a seeded bank
// transaction.
func (s *Store) BankTransactionStatus(id uuid.UUID) (fibu.BankTransactionStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.bankTx[id]
	return st, ok
}

// CreateCompany persists a new company.
func (s *Store) CreateCompany(_ context.Context, c fibu.Company) (fibu.Company, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	s.companies[c.ID] = c
	return c, nil
}

// CompanyByID returns a company.
func (s *Store) CompanyByID(_ context.Context, companyID uuid.UUID) (fibu.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.companies[companyID]
	if !ok {
		return fibu.Company{}, errs.ErrNotFound
	}
	return c, nil
}

// Companies lists all companies.
func (s *Store) Companies(_ context.Context) ([]fibu.Company, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fibu.Company, 0, len(s.companies))
	for _, c := range s.companies {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// CreateAccount persists a new account. The (company, code) pair is unique;
// a duplicate fails with ErrConflict.
func (s *Store) CreateAccount(_ context.Context, a fibu.Account) (fibu.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := accountKey{CompanyID: a.CompanyID, Code: a.Code}
	if _, exists := s.accountByCode[key]; exists {
		return fibu.Account{}, errs.ErrConflict
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	s.accounts[a.ID] = a
	s.accountByCode[key] = a.ID
	return a, nil
}

// AccountByCode returns a company's account by SKR03 code.
func (s *Store) AccountByCode(_ context.Context, companyID uuid.UUID, code string) (fibu.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.accountByCode[accountKey{CompanyID: companyID, Code: code}]
	if !ok {
		return fibu.Account{}, errs.ErrNotFound
	}
	return s.accounts[id], nil
}

// AccountsByCompany returns all accounts of a company ordered by code.
func (s *Store) AccountsByCompany(_ context.Context, companyID uuid.UUID) ([]fibu.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fibu.Account, 0)
	for _, a := range s.accounts {
		if a.CompanyID == companyID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

// AccountsByCodes resolves the given codes for a company. Unknown codes are
// simply absent from the result.
func (s *Store) AccountsByCodes(_ context.Context, companyID uuid.UUID, codes []string) (map[string]fibu.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]fibu.Account, len(codes))
	for _, code := range codes {
		if id, ok := s.accountByCode[accountKey{CompanyID: companyID, Code: code}]; ok {
			out[code] = s.accounts[id]
		}
	}
	return out, nil
}

// CreateJournalEntry persists an entry with its lines.
func (s *Store) CreateJournalEntry(_ context.Context, entry fibu.JournalEntry) (fibu.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := entry
	e.Lines = append([]fibu.LineItem(nil), entry.Lines...)
	s.entries[e.ID] = &e
	return e, nil
}

// EntryByID returns a single entry of a company.
func (s *Store) EntryByID(_ context.Context, companyID, entryID uuid.UUID) (fibu.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[entryID]
	if !ok || e.CompanyID != companyID {
		return fibu.JournalEntry{}, errs.ErrNotFound
	}
	return copyEntry(e), nil
}

// MarkEntryPosted sets posted_at if and only if it is still unset.
func (s *Store) MarkEntryPosted(_ context.Context, companyID, entryID uuid.UUID, at time.Time) (fibu.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok || e.CompanyID != companyID {
		return fibu.JournalEntry{}, errs.ErrNotFound
	}
	if e.PostedAt != nil {
		return fibu.JournalEntry{}, errs.ErrImmutableEntry
	}
	t := at
	e.PostedAt = &t
	return copyEntry(e), nil
}

// DeleteJournalEntry removes an entry. Posted entries are refused here as
// well; the store is the last line of defence for GoBD immutability.
func (s *Store) DeleteJournalEntry(_ context.Context, companyID, entryID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok || e.CompanyID != companyID {
		return errs.ErrNotFound
	}
	if e.PostedAt != nil {
		return errs.ErrImmutableEntry
	}
	delete(s.entries, entryID)
	return nil
}

// EntriesByCompany returns all entries of a company ordered by
// (booking_date, sequence, id).
func (s *Store) EntriesByCompany(_ context.Context, companyID uuid.UUID) ([]fibu.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fibu.JournalEntry, 0)
	for _, e := range s.entries {
		if e.CompanyID == companyID {
			out = append(out, copyEntry(e))
		}
	}
	sortEntries(out)
	return out, nil
}

// EntriesByFiscalYear returns a fiscal year's entries in ledger order.
func (s *Store) EntriesByFiscalYear(_ context.Context, companyID, fiscalYearID uuid.UUID) ([]fibu.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fibu.JournalEntry, 0)
	for _, e := range s.entries {
		if e.CompanyID == companyID && e.FiscalYearID == fiscalYearID {
			out = append(out, copyEntry(e))
		}
	}
	sortEntries(out)
	return out, nil
}

// EntriesByDateRange returns entries with a booking date inside [from, to].
func (s *Store) EntriesByDateRange(_ context.Context, companyID uuid.UUID, from, to time.Time) ([]fibu.JournalEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fibu.JournalEntry, 0)
	for _, e := range s.entries {
		if e.CompanyID != companyID {
			continue
		}
		if e.BookingDate.Before(from) || e.BookingDate.After(to) {
			continue
		}
		out = append(out, copyEntry(e))
	}
	sortEntries(out)
	return out, nil
}

// CreateFiscalYear persists a fiscal year. One fiscal year per company and
// calendar year.
func (s *Store) CreateFiscalYear(_ context.Context, fy fibu.FiscalYear) (fibu.FiscalYear, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.fiscalYears {
		if existing.CompanyID == fy.CompanyID && existing.Year == fy.Year {
			return fibu.FiscalYear{}, errs.ErrConflict
		}
	}
	if fy.ID == uuid.Nil {
		fy.ID = uuid.New()
	}
	stored := fy
	s.fiscalYears[fy.ID] = &stored
	return fy, nil
}

// FiscalYearByID returns a company's fiscal year.
func (s *Store) FiscalYearByID(_ context.Context, companyID, fiscalYearID uuid.UUID) (fibu.FiscalYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fy, ok := s.fiscalYears[fiscalYearID]
	if !ok || fy.CompanyID != companyID {
		return fibu.FiscalYear{}, errs.ErrNotFound
	}
	return *fy, nil
}

// FiscalYearByYear returns the fiscal year for a calendar year.
func (s *Store) FiscalYearByYear(_ context.Context, companyID uuid.UUID, year int) (fibu.FiscalYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fy := range s.fiscalYears {
		if fy.CompanyID == companyID && fy.Year == year {
			return *fy, nil
		}
	}
	return fibu.FiscalYear{}, errs.ErrNotFound
}

// FiscalYearForDate returns the fiscal year containing the booking date.
func (s *Store) FiscalYearForDate(_ context.Context, companyID uuid.UUID, date time.Time) (fibu.FiscalYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, fy := range s.fiscalYears {
		if fy.CompanyID == companyID && fy.Contains(date) {
			return *fy, nil
		}
	}
	return fibu.FiscalYear{}, errs.ErrNotFound
}

// FiscalYearsByCompany lists a company's fiscal years ordered by year.
func (s *Store) FiscalYearsByCompany(_ context.Context, companyID uuid.UUID) ([]fibu.FiscalYear, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fibu.FiscalYear, 0)
	for _, fy := range s.fiscalYears {
		if fy.CompanyID == companyID {
			out = append(out, *fy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Year < out[j].Year })
	return out, nil
}

// MarkOpeningPosted is the check-and-set for the opening transition. The
// write lock serializes concurrent callers; the second one fails.
func (s *Store) MarkOpeningPosted(_ context.Context, fiscalYearID uuid.UUID, at time.Time) (fibu.FiscalYear, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fy, ok := s.fiscalYears[fiscalYearID]
	if !ok {
		return fibu.FiscalYear{}, errs.ErrNotFound
	}
	if fy.Closed {
		return fibu.FiscalYear{}, errs.ErrFiscalYearClosed
	}
	if fy.OpeningPostedAt != nil {
		return fibu.FiscalYear{}, errs.ErrConflict
	}
	t := at
	fy.OpeningPostedAt = &t
	return *fy, nil
}

// CloseFiscalYear is the check-and-set for the closing transition. Of two
// concurrent closes only one passes; the second observes closed and fails.
func (s *Store) CloseFiscalYear(_ context.Context, fiscalYearID uuid.UUID, at time.Time) (fibu.FiscalYear, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fy, ok := s.fiscalYears[fiscalYearID]
	if !ok {
		return fibu.FiscalYear{}, errs.ErrNotFound
	}
	if fy.Closed {
		return fibu.FiscalYear{}, errs.ErrFiscalYearClosed
	}
	t := at
	fy.Closed = true
	fy.ClosingPostedAt = &t
	fy.ClosedAt = &t
	return *fy, nil
}

// CreateBalanceSheet stores a snapshot. At most one posted snapshot may
// exist per (fiscal year, sheet type).
func (s *Store) CreateBalanceSheet(_ context.Context, sheet fibu.BalanceSheet) (fibu.BalanceSheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := sheetKey{FiscalYearID: sheet.FiscalYearID, Type: sheet.Type}
	if existing, ok := s.sheets[key]; ok && existing.Posted() {
		return fibu.BalanceSheet{}, errs.ErrConflict
	}
	if sheet.ID == uuid.Nil {
		sheet.ID = uuid.New()
	}
	s.sheets[key] = sheet
	return sheet, nil
}

// BalanceSheetByType returns the snapshot for a fiscal year and sheet type.
func (s *Store) BalanceSheetByType(_ context.Context, fiscalYearID uuid.UUID, typ fibu.SheetType) (fibu.BalanceSheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sheet, ok := s.sheets[sheetKey{FiscalYearID: fiscalYearID, Type: typ}]
	if !ok {
		return fibu.BalanceSheet{}, errs.ErrNotFound
	}
	return sheet, nil
}

// CreateTaxReport persists a new tax report.
func (s *Store) CreateTaxReport(_ context.Context, r fibu.TaxReport) (fibu.TaxReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	s.taxReports[r.ID] = r
	return r, nil
}

// UpdateTaxReport replaces a stored tax report.
func (s *Store) UpdateTaxReport(_ context.Context, r fibu.TaxReport) (fibu.TaxReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.taxReports[r.ID]
	if !ok || existing.CompanyID != r.CompanyID {
		return fibu.TaxReport{}, errs.ErrNotFound
	}
	s.taxReports[r.ID] = r
	return r, nil
}

// TaxReportByID returns a company's tax report.
func (s *Store) TaxReportByID(_ context.Context, companyID, reportID uuid.UUID) (fibu.TaxReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.taxReports[reportID]
	if !ok || r.CompanyID != companyID {
		return fibu.TaxReport{}, errs.ErrNotFound
	}
	return r, nil
}

// TaxReportsByCompany lists a company's tax reports, newest first.
func (s *Store) TaxReportsByCompany(_ context.Context, companyID uuid.UUID) ([]fibu.TaxReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]fibu.TaxReport, 0)
	for _, r := range s.taxReports {
		if r.CompanyID == companyID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// ResetToPending implements journal.BankReconciler.
func (s *Store) ResetToPending(_ context.Context, bankTransactionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bankTx[bankTransactionID]; !ok {
		return errs.ErrNotFound
	}
	s.bankTx[bankTransactionID] = fibu.BankTxPending
	return nil
}

func copyEntry(e *fibu.JournalEntry) fibu.JournalEntry {
	out := *e
	out.Lines = append([]fibu.LineItem(nil), e.Lines...)
	return out
}

// sortEntries orders by (booking_date, sequence, id), the ledger's canonical
// order: opening first, closing last within a date.
func sortEntries(entries []fibu.JournalEntry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.BookingDate.Equal(b.BookingDate) {
			return a.BookingDate.Before(b.BookingDate)
		}
		if a.Sequence != b.Sequence {
			return a.Sequence < b.Sequence
		}
		return a.ID.String() < b.ID.String()
	})
}
