package report_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buchwerk/fibu/internal/fibu"
	"github.com/buchwerk/fibu/internal/kontenplan"
	"github.com/buchwerk/fibu/internal/service/account"
	"github.com/buchwerk/fibu/internal/service/journal"
	"github.com/buchwerk/fibu/internal/service/report"
	"github.com/buchwerk/fibu/internal/storage/memory"
)

type fixture struct {
	store    *memory.Store
	journal  journal.Service
	reports  report.Service
	accounts account.Service
	company  fibu.Company
	year     fibu.FiscalYear
}

func newFixture(t *testing.T) (context.Context, *fixture) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	table := kontenplan.Default()
	company := fibu.Company{ID: uuid.New(), Name: "Report GmbH"}
	store.SeedCompany(company)
	fy, err := store.CreateFiscalYear(ctx, fibu.NewFiscalYear(company.ID, 2025))
	if err != nil {
		t.Fatalf("create fiscal year: %v", err)
	}
	f := &fixture{
		store:    store,
		journal:  journal.New(store, store, store),
		reports:  report.New(store, table),
		accounts: account.New(store, store, table),
		company:  company,
		year:     fy,
	}
	return ctx, f
}

func (f *fixture) mustAccount(t *testing.T, ctx context.Context, code string) {
	t.Helper()
	if _, err := f.accounts.FindOrCreateByCode(ctx, f.company.ID, code); err != nil {
		t.Fatalf("account %s: %v", code, err)
	}
}

func (f *fixture) post(t *testing.T, ctx context.Context, date time.Time, lines ...fibu.LineItem) fibu.JournalEntry {
	t.Helper()
	e, err := f.journal.Post(ctx, fibu.JournalEntry{
		CompanyID:   f.company.ID,
		BookingDate: date,
		Description: "booking",
		Type:        fibu.EntryTypeNormal,
		Lines:       lines,
	})
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return e
}

func line(code string, side fibu.Side, amt string) fibu.LineItem {
	return fibu.LineItem{AccountCode: code, Side: side, Amount: decimal.RequireFromString(amt)}
}

func eq(t *testing.T, what string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(decimal.RequireFromString(want)) {
		t.Fatalf("%s: want %s, got %s", what, want, got)
	}
}

// seedOperatingYear books the canonical mixed year: 10,000 revenue against
// 7,000 of expenses, leaving 3,000 in the bank.
func seedOperatingYear(t *testing.T, ctx context.Context, f *fixture) {
	for _, code := range []string{"1200", "4000", "5000", "6000", "7000", "7600"} {
		f.mustAccount(t, ctx, code)
	}
	f.post(t, ctx, time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		line("4000", fibu.SideCredit, "10000.00"),
		line("5000", fibu.SideDebit, "3000.00"),
		line("6000", fibu.SideDebit, "2000.00"),
		line("7600", fibu.SideDebit, "500.00"),
		line("7000", fibu.SideDebit, "1500.00"),
		line("1200", fibu.SideDebit, "3000.00"),
	)
}

func TestGuVSectionsAndNetIncome(t *testing.T) {
	ctx, f := newFixture(t)
	seedOperatingYear(t, ctx, f)

	guv, err := f.reports.GuV(ctx, f.company.ID, f.year.ID, report.DefaultOptions())
	if err != nil {
		t.Fatalf("guv: %v", err)
	}
	eq(t, "net income", guv.NetIncome, "3000.00")
	if guv.NetIncomeLabel != "Jahresüberschuss" {
		t.Fatalf("label: want Jahresüberschuss, got %q", guv.NetIncomeLabel)
	}
	if len(guv.Sections) != 17 {
		t.Fatalf("expected all 17 positions, got %d", len(guv.Sections))
	}

	bySection := map[string]fibu.GuVSection{}
	for _, sec := range guv.Sections {
		bySection[sec.ID] = sec
	}
	eq(t, "Umsatzerlöse", bySection["guv.umsatzerloese"].Subtotal, "10000.00")
	eq(t, "Materialaufwand", bySection["guv.materialaufwand"].Subtotal, "-3000.00")
	eq(t, "Personalaufwand", bySection["guv.personalaufwand"].Subtotal, "-2000.00")
	eq(t, "Abschreibungen", bySection["guv.abschreibungen"].Subtotal, "-500.00")
	eq(t, "sonstige Aufwendungen", bySection["guv.sonstige_betriebliche_aufwendungen"].Subtotal, "-1500.00")
	eq(t, "Jahresergebnis", bySection["guv.jahresergebnis"].Subtotal, "3000.00")
	if !bySection["guv.jahresergebnis"].Computed {
		t.Fatal("Jahresergebnis must be a computed position")
	}
}

// Recomputing the GuV over unchanged postings must yield the identical
// report; the aggregation has no hidden state.
func TestGuVRecomputationIsStable(t *testing.T) {
	ctx, f := newFixture(t)
	seedOperatingYear(t, ctx, f)

	first, err := f.reports.GuV(ctx, f.company.ID, f.year.ID, report.DefaultOptions())
	if err != nil {
		t.Fatalf("first guv: %v", err)
	}
	second, err := f.reports.GuV(ctx, f.company.ID, f.year.ID, report.DefaultOptions())
	if err != nil {
		t.Fatalf("second guv: %v", err)
	}
	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal first: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal second: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatalf("recomputed GuV differs:\n%s\nvs\n%s", a, b)
	}
}

func TestGuVNegativeResultLabel(t *testing.T) {
	ctx, f := newFixture(t)
	f.mustAccount(t, ctx, "1200")
	f.mustAccount(t, ctx, "7000")
	f.post(t, ctx, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		line("7000", fibu.SideDebit, "800.00"),
		line("1200", fibu.SideCredit, "800.00"),
	)
	guv, err := f.reports.GuV(ctx, f.company.ID, f.year.ID, report.DefaultOptions())
	if err != nil {
		t.Fatalf("guv: %v", err)
	}
	eq(t, "net income", guv.NetIncome, "-800.00")
	if guv.NetIncomeLabel != "Jahresfehlbetrag" {
		t.Fatalf("label: want Jahresfehlbetrag, got %q", guv.NetIncomeLabel)
	}
}

func TestBalanceSheetBalancesAgainstNetIncome(t *testing.T) {
	ctx, f := newFixture(t)
	seedOperatingYear(t, ctx, f)

	data, err := f.reports.BalanceSheet(ctx, f.company.ID, f.year.ID)
	if err != nil {
		t.Fatalf("balance sheet: %v", err)
	}
	if !data.Balanced {
		t.Fatalf("expected balanced sheet: aktiva %s, passiva %s, net %s",
			data.AktivaTotal, data.PassivaTotal, data.NetIncome)
	}
	eq(t, "aktiva total", data.AktivaTotal, "3000.00")
	eq(t, "passiva total", data.PassivaTotal, "0.00")
	eq(t, "net income", data.NetIncome, "3000.00")

	node := data.Aktiva.Find("aktiva.umlaufvermoegen.kasse_bank")
	if node == nil {
		t.Fatal("missing Kasse/Bank node")
	}
	eq(t, "bank own total", node.OwnTotal, "3000.00")
}

// A bank account in credit must land under Verbindlichkeiten, not Aktiva.
func TestBankInCreditMovesToPassiva(t *testing.T) {
	ctx, f := newFixture(t)
	f.mustAccount(t, ctx, "1200")
	f.mustAccount(t, ctx, "7000")
	f.post(t, ctx, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		line("7000", fibu.SideDebit, "250.00"),
		line("1200", fibu.SideCredit, "250.00"),
	)

	data, err := f.reports.BalanceSheet(ctx, f.company.ID, f.year.ID)
	if err != nil {
		t.Fatalf("balance sheet: %v", err)
	}
	aktivaBank := data.Aktiva.Find("aktiva.umlaufvermoegen.kasse_bank")
	if aktivaBank != nil && len(aktivaBank.Accounts) != 0 {
		t.Fatalf("overdrawn bank must not appear under Aktiva: %+v", aktivaBank.Accounts)
	}
	passivaBank := data.Passiva.Find("passiva.verbindlichkeiten.kreditinstitute")
	if passivaBank == nil || len(passivaBank.Accounts) != 1 {
		t.Fatalf("overdrawn bank missing under Verbindlichkeiten ggü. Kreditinstituten: %+v", passivaBank)
	}
	eq(t, "bank liability", passivaBank.Accounts[0].Amount, "250.00")
	if !data.Balanced {
		t.Fatal("sheet must still balance")
	}
}

func TestDraftsExcludedWhenOnlyPosted(t *testing.T) {
	ctx, f := newFixture(t)
	f.mustAccount(t, ctx, "1200")
	f.mustAccount(t, ctx, "4000")
	if _, err := f.journal.SaveDraft(ctx, fibu.JournalEntry{
		CompanyID:   f.company.ID,
		BookingDate: time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC),
		Description: "draft",
		Type:        fibu.EntryTypeNormal,
		Lines: []fibu.LineItem{
			line("1200", fibu.SideDebit, "100.00"),
			line("4000", fibu.SideCredit, "100.00"),
		},
	}); err != nil {
		t.Fatalf("save draft: %v", err)
	}

	balances, err := f.reports.NetBalances(ctx, f.company.ID, f.year.ID, report.DefaultOptions())
	if err != nil {
		t.Fatalf("net balances: %v", err)
	}
	if len(balances) != 0 {
		t.Fatalf("drafts must not count when OnlyPosted: %v", balances)
	}

	opts := report.Options{OnlyPosted: false, IncludeEmpty: true}
	balances, err = f.reports.NetBalances(ctx, f.company.ID, f.year.ID, opts)
	if err != nil {
		t.Fatalf("net balances: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("expected 2 balances with drafts included, got %d", len(balances))
	}
}

func TestNetBalancesDropNettedOutAccounts(t *testing.T) {
	ctx, f := newFixture(t)
	f.mustAccount(t, ctx, "1200")
	f.mustAccount(t, ctx, "4000")
	date := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	f.post(t, ctx, date,
		line("1200", fibu.SideDebit, "100.00"),
		line("4000", fibu.SideCredit, "100.00"),
	)
	f.post(t, ctx, date,
		line("4000", fibu.SideDebit, "100.00"),
		line("1200", fibu.SideCredit, "100.00"),
	)
	balances, err := f.reports.NetBalances(ctx, f.company.ID, f.year.ID, report.DefaultOptions())
	if err != nil {
		t.Fatalf("net balances: %v", err)
	}
	if len(balances) != 0 {
		t.Fatalf("netted-out accounts must be dropped: %v", balances)
	}
}

func TestPresentationRuleOverrideWins(t *testing.T) {
	ctx, f := newFixture(t)
	f.mustAccount(t, ctx, "4000")
	// A 1200 account pinned to the Wertpapiere section regardless of saldo.
	if _, err := f.store.CreateAccount(ctx, fibu.Account{
		ID: uuid.New(), CompanyID: f.company.ID, Code: "1200", Name: "Depotkonto",
		Type: fibu.AccountTypeAsset, PresentationRule: "wertpapiere", Active: true,
	}); err != nil {
		t.Fatalf("create account: %v", err)
	}
	f.post(t, ctx, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
		line("1200", fibu.SideDebit, "400.00"),
		line("4000", fibu.SideCredit, "400.00"),
	)
	data, err := f.reports.BalanceSheet(ctx, f.company.ID, f.year.ID)
	if err != nil {
		t.Fatalf("balance sheet: %v", err)
	}
	node := data.Aktiva.Find("aktiva.umlaufvermoegen.wertpapiere")
	if node == nil || len(node.Accounts) != 1 {
		t.Fatalf("override must place account under Wertpapiere: %+v", node)
	}
}
