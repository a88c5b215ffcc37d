package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buchwerk/fibu/internal/errs"
	"github.com/buchwerk/fibu/internal/fibu"
)

func getTestDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set; skipping Postgres store tests")
	}
	return dsn
}

func mustOpen(t *testing.T, dsn string) *Store {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	return s
}

func applyInitSQL(t *testing.T, dsn string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open for init: %v", err)
	}
	defer s.Close()
	// Resolve init SQL path relative to this test file so CWD doesn't matter
	_, thisFile, _, _ := runtime.Caller(0)
	repoRoot := filepath.Clean(filepath.Join(filepath.Dir(thisFile), "../../../"))
	path := filepath.Join(repoRoot, "db", "migrations", "0001_init.sql")
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read init sql: %v", err)
	}
	if _, err := s.pool.Exec(ctx, string(b)); err != nil {
		t.Fatalf("apply init sql: %v", err)
	}
}

func truncateAll(t *testing.T, dsn string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open for truncate: %v", err)
	}
	defer s.Close()
	_, _ = s.pool.Exec(ctx, `truncate table tax_reports, balance_sheets, bank_transactions, entry_lines, entries, fiscal_years, accounts, companies cascade`)
}

func TestStore_LedgerRoundTrip(t *testing.T) {
	dsn := getTestDSN(t)
	applyInitSQL(t, dsn)
	truncateAll(t, dsn)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s := mustOpen(t, dsn)
	defer s.Close()

	if err := s.Ready(ctx); err != nil {
		t.Fatalf("ready: %v", err)
	}

	company, err := s.CreateCompany(ctx, fibu.Company{Name: "Test GmbH"})
	if err != nil {
		t.Fatalf("create company: %v", err)
	}

	bank, err := s.CreateAccount(ctx, fibu.Account{
		ID: uuid.New(), CompanyID: company.ID, Code: "1200", Name: "Bank",
		Type: fibu.AccountTypeAsset, Active: true,
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	revenue, err := s.CreateAccount(ctx, fibu.Account{
		ID: uuid.New(), CompanyID: company.ID, Code: "4000", Name: "Umsatzerlöse",
		Type: fibu.AccountTypeRevenue, Active: true,
	})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	// (company, code) is unique
	if _, err := s.CreateAccount(ctx, fibu.Account{
		ID: uuid.New(), CompanyID: company.ID, Code: "1200", Name: "Bank again",
		Type: fibu.AccountTypeAsset, Active: true,
	}); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("duplicate code: want ErrConflict, got %v", err)
	}

	fy, err := s.CreateFiscalYear(ctx, fibu.NewFiscalYear(company.ID, 2025))
	if err != nil {
		t.Fatalf("create fiscal year: %v", err)
	}

	amount := decimal.RequireFromString("119.00")
	entry := fibu.JournalEntry{
		ID: uuid.New(), CompanyID: company.ID, FiscalYearID: fy.ID,
		BookingDate: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		Description: "Invoice 2025-001", Type: fibu.EntryTypeNormal, Sequence: 1000,
		Lines: []fibu.LineItem{
			{ID: uuid.New(), AccountID: bank.ID, AccountCode: "1200", Side: fibu.SideDebit, Amount: amount},
			{ID: uuid.New(), AccountID: revenue.ID, AccountCode: "4000", Side: fibu.SideCredit, Amount: amount},
		},
	}
	if _, err := s.CreateJournalEntry(ctx, entry); err != nil {
		t.Fatalf("create entry: %v", err)
	}

	got, err := s.EntryByID(ctx, company.ID, entry.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if len(got.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(got.Lines))
	}
	if !got.Lines[0].Amount.Equal(amount) {
		t.Fatalf("amount round trip: want %s, got %s", amount, got.Lines[0].Amount)
	}

	// Posting is a one-way check-and-set.
	if _, err := s.MarkEntryPosted(ctx, company.ID, entry.ID, time.Now().UTC()); err != nil {
		t.Fatalf("mark posted: %v", err)
	}
	if _, err := s.MarkEntryPosted(ctx, company.ID, entry.ID, time.Now().UTC()); !errors.Is(err, errs.ErrImmutableEntry) {
		t.Fatalf("second post: want ErrImmutableEntry, got %v", err)
	}
	if err := s.DeleteJournalEntry(ctx, company.ID, entry.ID); !errors.Is(err, errs.ErrImmutableEntry) {
		t.Fatalf("delete posted: want ErrImmutableEntry, got %v", err)
	}
}

func TestStore_FiscalYearTransitions(t *testing.T) {
	dsn := getTestDSN(t)
	applyInitSQL(t, dsn)
	truncateAll(t, dsn)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	s := mustOpen(t, dsn)
	defer s.Close()

	company, err := s.CreateCompany(ctx, fibu.Company{Name: "Transitions GmbH"})
	if err != nil {
		t.Fatalf("create company: %v", err)
	}
	fy, err := s.CreateFiscalYear(ctx, fibu.NewFiscalYear(company.ID, 2025))
	if err != nil {
		t.Fatalf("create fiscal year: %v", err)
	}

	now := time.Now().UTC()
	if _, err := s.MarkOpeningPosted(ctx, fy.ID, now); err != nil {
		t.Fatalf("mark opening: %v", err)
	}
	if _, err := s.MarkOpeningPosted(ctx, fy.ID, now); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("second opening: want ErrConflict, got %v", err)
	}

	if _, err := s.CloseFiscalYear(ctx, fy.ID, now); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := s.CloseFiscalYear(ctx, fy.ID, now); !errors.Is(err, errs.ErrFiscalYearClosed) {
		t.Fatalf("second close: want ErrFiscalYearClosed, got %v", err)
	}

	sheet := fibu.BalanceSheet{
		FiscalYearID: fy.ID, Type: fibu.SheetTypeClosing, Source: fibu.SheetSourceCalculated,
		BalanceDate: fy.EndDate, PostedAt: &now,
		Data: fibu.BalanceReport{Aktiva: &fibu.BalanceNode{ID: "aktiva"}, Passiva: &fibu.BalanceNode{ID: "passiva"}, Balanced: true},
	}
	if _, err := s.CreateBalanceSheet(ctx, sheet); err != nil {
		t.Fatalf("create sheet: %v", err)
	}
	// Only one posted snapshot per (fiscal year, type).
	if _, err := s.CreateBalanceSheet(ctx, sheet); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("second posted sheet: want ErrConflict, got %v", err)
	}
	got, err := s.BalanceSheetByType(ctx, fy.ID, fibu.SheetTypeClosing)
	if err != nil {
		t.Fatalf("get sheet: %v", err)
	}
	if got.Data.Aktiva == nil || got.Data.Aktiva.ID != "aktiva" {
		t.Fatalf("sheet data round trip: %+v", got.Data)
	}
}
