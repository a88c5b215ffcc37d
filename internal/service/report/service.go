// Package report computes the fiscal-year reports: per-account net balances,
// the §275(2) HGB income statement and the §266 HGB balance sheet with
// saldo-dependent account placement.
package report

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buchwerk/fibu/internal/errs"
	"github.com/buchwerk/fibu/internal/fibu"
	"github.com/buchwerk/fibu/internal/kontenplan"
)

// Repo defines the read operations needed to build reports. Report building
// never writes.
type Repo interface {
	AccountsByCompany(ctx context.Context, companyID uuid.UUID) ([]fibu.Account, error)
	EntriesByFiscalYear(ctx context.Context, companyID, fiscalYearID uuid.UUID) ([]fibu.JournalEntry, error)
	FiscalYearByID(ctx context.Context, companyID, fiscalYearID uuid.UUID) (fibu.FiscalYear, error)
	BalanceSheetByType(ctx context.Context, fiscalYearID uuid.UUID, typ fibu.SheetType) (fibu.BalanceSheet, error)
}

// Options tune aggregation. The zero value is not useful; start from
// DefaultOptions.
type Options struct {
	// OnlyPosted excludes draft entries. Relaxing this is meant for preview
	// and test contexts only.
	OnlyPosted bool
	// IncludeEmpty keeps GuV positions without any balance in the output for
	// the canonical 17-position rendering.
	IncludeEmpty bool
}

// DefaultOptions aggregates posted entries only and renders all positions.
func DefaultOptions() Options { return Options{OnlyPosted: true, IncludeEmpty: true} }

// Balance is the aggregate of all line items of one account in a year.
type Balance struct {
	Account fibu.Account
	Debit   decimal.Decimal
	Credit  decimal.Decimal
}

// DebitNet returns debit minus credit, the convention the presentation rule
// engine expects.
func (b Balance) DebitNet() decimal.Decimal { return b.Debit.Sub(b.Credit) }

// Net returns the balance expressed positive on the account's natural side.
func (b Balance) Net() decimal.Decimal {
	if b.Account.Type.NaturalSide() == fibu.SideDebit {
		return b.Debit.Sub(b.Credit)
	}
	return b.Credit.Sub(b.Debit)
}

// Service builds reports for a company and fiscal year.
type Service interface {
	NetBalances(ctx context.Context, companyID, fiscalYearID uuid.UUID, opts Options) (map[string]Balance, error)
	GuV(ctx context.Context, companyID, fiscalYearID uuid.UUID, opts Options) (fibu.GuVReport, error)
	BalanceSheet(ctx context.Context, companyID, fiscalYearID uuid.UUID) (fibu.BalanceReport, error)
}

type service struct {
	repo  Repo
	table *kontenplan.Table
}

// New constructs the report service over the given static chart.
func New(repo Repo, table *kontenplan.Table) Service {
	return &service{repo: repo, table: table}
}

// NetBalances sums debit and credit amounts per account across the fiscal
// year. Closing (SBK) entries never count; draft entries count only when
// OnlyPosted is relaxed. Accounts that net out to less than a cent are
// dropped.
func (s *service) NetBalances(ctx context.Context, companyID, fiscalYearID uuid.UUID, opts Options) (map[string]Balance, error) {
	accounts, err := s.accountsByCode(ctx, companyID)
	if err != nil {
		return nil, err
	}
	entries, err := s.repo.EntriesByFiscalYear(ctx, companyID, fiscalYearID)
	if err != nil {
		return nil, err
	}

	out := make(map[string]Balance)
	for _, e := range entries {
		if e.Type == fibu.EntryTypeClosing {
			continue
		}
		if opts.OnlyPosted && !e.Posted() {
			continue
		}
		for _, ln := range e.Lines {
			b := out[ln.AccountCode]
			if b.Account.ID == uuid.Nil {
				b.Account = accounts[ln.AccountCode]
				b.Debit, b.Credit = decimal.Zero, decimal.Zero
			}
			switch ln.Side {
			case fibu.SideDebit:
				b.Debit = b.Debit.Add(ln.Amount)
			case fibu.SideCredit:
				b.Credit = b.Credit.Add(ln.Amount)
			}
			out[ln.AccountCode] = b
		}
	}

	for code, b := range out {
		if b.DebitNet().Abs().LessThan(fibu.Epsilon) {
			delete(out, code)
		}
	}
	return out, nil
}

// GuV partitions the aggregated balances into the 17 positions of §275(2)
// HGB in document order. Revenue positions carry credit-minus-debit
// subtotals, which negates expenses automatically, so the annual result is
// the plain sum. For a closed year the stored closing snapshot wins.
func (s *service) GuV(ctx context.Context, companyID, fiscalYearID uuid.UUID, opts Options) (fibu.GuVReport, error) {
	fy, err := s.repo.FiscalYearByID(ctx, companyID, fiscalYearID)
	if err != nil {
		return fibu.GuVReport{}, err
	}
	if fy.Closed {
		if sheet, err := s.repo.BalanceSheetByType(ctx, fiscalYearID, fibu.SheetTypeClosing); err == nil && sheet.Posted() {
			return sheet.Data.GuV, nil
		} else if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return fibu.GuVReport{}, err
		}
	}

	balances, err := s.NetBalances(ctx, companyID, fiscalYearID, opts)
	if err != nil {
		return fibu.GuVReport{}, err
	}
	return s.buildGuV(balances, opts), nil
}

func (s *service) buildGuV(balances map[string]Balance, opts Options) fibu.GuVReport {
	bySection := make(map[string][]fibu.AccountBalance)
	for code, b := range balances {
		// Carryforward and closing accounts never appear in the P&L.
		if len(code) > 0 && code[0] == '9' {
			continue
		}
		sectionID, ok := s.table.GuVSectionFor(code)
		if !ok {
			continue
		}
		bySection[sectionID] = append(bySection[sectionID], fibu.AccountBalance{
			Code:   code,
			Name:   b.Account.Name,
			Amount: b.Credit.Sub(b.Debit),
		})
	}

	report := fibu.GuVReport{NetIncome: decimal.Zero}
	operating := decimal.Zero
	for _, def := range s.table.GuVSections() {
		sec := fibu.GuVSection{Number: def.Number, ID: def.ID, Label: def.Label, Computed: def.Computed, Subtotal: decimal.Zero}
		if !def.Computed {
			accounts := bySection[def.ID]
			sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })
			for _, ab := range accounts {
				sec.Subtotal = sec.Subtotal.Add(ab.Amount)
			}
			sec.Accounts = accounts
			report.NetIncome = report.NetIncome.Add(sec.Subtotal)
			if def.Number <= 14 {
				operating = operating.Add(sec.Subtotal)
			}
		}
		if !opts.IncludeEmpty && !def.Computed && len(sec.Accounts) == 0 {
			continue
		}
		report.Sections = append(report.Sections, sec)
	}

	// Fill the derived positions now that the sums are known.
	for i := range report.Sections {
		switch report.Sections[i].ID {
		case "guv.ergebnis_nach_steuern":
			report.Sections[i].Subtotal = operating
		case "guv.jahresergebnis":
			report.Sections[i].Subtotal = report.NetIncome
		}
	}
	report.NetIncomeLabel = fibu.NetIncomeLabel(report.NetIncome)
	return report
}

// BalanceSheet builds the recursive Aktiva/Passiva tree. Each account's
// section is resolved from its running balance, so a bank account in credit
// lands under Verbindlichkeiten. For a closed year the stored posted
// snapshot is the source of truth; recomputation is only the fallback when
// no snapshot exists.
func (s *service) BalanceSheet(ctx context.Context, companyID, fiscalYearID uuid.UUID) (fibu.BalanceReport, error) {
	fy, err := s.repo.FiscalYearByID(ctx, companyID, fiscalYearID)
	if err != nil {
		return fibu.BalanceReport{}, err
	}
	if fy.Closed {
		if sheet, err := s.repo.BalanceSheetByType(ctx, fiscalYearID, fibu.SheetTypeClosing); err == nil && sheet.Posted() {
			return sheet.Data, nil
		} else if err != nil && !errors.Is(err, errs.ErrNotFound) {
			return fibu.BalanceReport{}, err
		}
	}
	opts := DefaultOptions()
	balances, err := s.NetBalances(ctx, companyID, fiscalYearID, opts)
	if err != nil {
		return fibu.BalanceReport{}, err
	}
	return s.buildBalanceSheet(balances, opts)
}

func (s *service) buildBalanceSheet(balances map[string]Balance, opts Options) (fibu.BalanceReport, error) {
	aktiva := cloneTree(s.table.Aktiva())
	passiva := cloneTree(s.table.Passiva())

	for code, b := range balances {
		if _, isGuV := s.table.GuVSectionFor(code); isGuV {
			continue
		}
		rsid, err := s.table.ResolveSection(b.Account, b.DebitNet())
		if err != nil {
			return fibu.BalanceReport{}, err
		}
		node := aktiva.Find(string(rsid))
		amount := b.DebitNet()
		if node == nil {
			node = passiva.Find(string(rsid))
			amount = amount.Neg()
		}
		if node == nil {
			// Parse guarantees rule targets exist; reaching this means the
			// table the service was built with is not the one that resolved.
			return fibu.BalanceReport{}, errs.ErrInvalidSectionReference
		}
		node.Accounts = append(node.Accounts, fibu.AccountBalance{Code: code, Name: b.Account.Name, Amount: amount})
	}

	sumTree(aktiva)
	sumTree(passiva)

	guv := s.buildGuV(balances, opts)
	diff := aktiva.Total.Sub(passiva.Total.Add(guv.NetIncome)).Round(2).Abs()
	return fibu.BalanceReport{
		Aktiva:       aktiva,
		Passiva:      passiva,
		GuV:          guv,
		NetIncome:    guv.NetIncome,
		AktivaTotal:  aktiva.Total,
		PassivaTotal: passiva.Total,
		Balanced:     diff.LessThanOrEqual(fibu.Epsilon),
	}, nil
}

func (s *service) accountsByCode(ctx context.Context, companyID uuid.UUID) (map[string]fibu.Account, error) {
	accounts, err := s.repo.AccountsByCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]fibu.Account, len(accounts))
	for _, a := range accounts {
		out[a.Code] = a
	}
	return out, nil
}

func cloneTree(n *kontenplan.Node) *fibu.BalanceNode {
	out := &fibu.BalanceNode{ID: n.ID, Label: n.Label, OwnTotal: decimal.Zero, Total: decimal.Zero}
	for _, c := range n.Children {
		out.Children = append(out.Children, cloneTree(c))
	}
	return out
}

// sumTree computes own and cumulative totals, leaves first, and orders the
// accounts of every node by code for deterministic output.
func sumTree(n *fibu.BalanceNode) {
	sort.Slice(n.Accounts, func(i, j int) bool { return n.Accounts[i].Code < n.Accounts[j].Code })
	n.OwnTotal = decimal.Zero
	for _, ab := range n.Accounts {
		n.OwnTotal = n.OwnTotal.Add(ab.Amount)
	}
	n.Total = n.OwnTotal
	for _, c := range n.Children {
		sumTree(c)
		n.Total = n.Total.Add(c.Total)
	}
}
