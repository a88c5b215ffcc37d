// Package fiscalyear implements the year state machine: posting the opening
// balance (EBK), closing the year with generated SBK entries and an
// immutable balance sheet snapshot, and carrying the closing balances
// forward into the next year. Transitions are linear and never reversed.
package fiscalyear

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buchwerk/fibu/internal/errs"
	"github.com/buchwerk/fibu/internal/fibu"
	"github.com/buchwerk/fibu/internal/kontenplan"
	"github.com/buchwerk/fibu/internal/service/account"
	"github.com/buchwerk/fibu/internal/service/journal"
	"github.com/buchwerk/fibu/internal/service/report"
)

// ContraAccountCode is the carryforward account absorbing the one-sided
// totals of EBK and SBK entries (SKR03 Saldenvorträge).
const ContraAccountCode = "9000"

// CarryforwardResultCode receives the prior year's net income when an
// opening balance is carried forward (Gewinnvortrag/Verlustvortrag).
const CarryforwardResultCode = "0860"

var centScale = decimal.NewFromInt(100)

// Repo defines the reads the state machine needs.
type Repo interface {
	FiscalYearByID(ctx context.Context, companyID, fiscalYearID uuid.UUID) (fibu.FiscalYear, error)
	FiscalYearByYear(ctx context.Context, companyID uuid.UUID, year int) (fibu.FiscalYear, error)
	BalanceSheetByType(ctx context.Context, fiscalYearID uuid.UUID, typ fibu.SheetType) (fibu.BalanceSheet, error)
}

// Writer defines the state-changing operations. MarkOpeningPosted and
// CloseFiscalYear are compare-and-swap: they fail when the transition
// already happened, and the store must serialize them so two concurrent
// callers cannot both succeed.
type Writer interface {
	CreateFiscalYear(ctx context.Context, fy fibu.FiscalYear) (fibu.FiscalYear, error)
	CreateJournalEntry(ctx context.Context, e fibu.JournalEntry) (fibu.JournalEntry, error)
	CreateBalanceSheet(ctx context.Context, sheet fibu.BalanceSheet) (fibu.BalanceSheet, error)
	MarkOpeningPosted(ctx context.Context, fiscalYearID uuid.UUID, at time.Time) (fibu.FiscalYear, error)
	CloseFiscalYear(ctx context.Context, fiscalYearID uuid.UUID, at time.Time) (fibu.FiscalYear, error)
}

// OpeningLine is one account balance of an opening balance import. The
// amount is relative to the account's natural side; a negative amount (a
// Verlustvortrag, an overdrawn bank account) flips to the opposite side.
type OpeningLine struct {
	AccountCode string
	Amount      decimal.Decimal
}

// Service drives the fiscal year transitions.
type Service interface {
	PostOpeningBalance(ctx context.Context, companyID, fiscalYearID uuid.UUID, lines []OpeningLine, source fibu.SheetSource) (fibu.BalanceSheet, error)
	Close(ctx context.Context, companyID, fiscalYearID uuid.UUID, createNextOpening bool) (fibu.BalanceSheet, error)
}

type service struct {
	repo     Repo
	writer   Writer
	journal  journal.Service
	reports  report.Service
	accounts account.Service
	table    *kontenplan.Table
}

func New(repo Repo, writer Writer, js journal.Service, rs report.Service, as account.Service, table *kontenplan.Table) Service {
	return &service{repo: repo, writer: writer, journal: js, reports: rs, accounts: as, table: table}
}

// PostOpeningBalance books the EBK entry for the year and stores the posted
// opening snapshot. The transition open -> opening-posted happens exactly
// once; a repeat call fails with ErrConflict.
func (s *service) PostOpeningBalance(ctx context.Context, companyID, fiscalYearID uuid.UUID, lines []OpeningLine, source fibu.SheetSource) (fibu.BalanceSheet, error) {
	fy, err := s.repo.FiscalYearByID(ctx, companyID, fiscalYearID)
	if err != nil {
		return fibu.BalanceSheet{}, err
	}
	if fy.Closed {
		return fibu.BalanceSheet{}, errs.ErrFiscalYearClosed
	}
	if fy.OpeningPosted() {
		return fibu.BalanceSheet{}, fmt.Errorf("opening balance already posted for %d: %w", fy.Year, errs.ErrConflict)
	}

	items, debitTotal, creditTotal, err := s.openingLineItems(ctx, companyID, lines)
	if err != nil {
		return fibu.BalanceSheet{}, err
	}
	if len(items) == 0 {
		return fibu.BalanceSheet{}, errs.ValidationErrors{"opening balance has no non-zero lines"}
	}
	if debitTotal.Sub(creditTotal).Abs().GreaterThan(fibu.Epsilon) {
		return fibu.BalanceSheet{}, errs.ValidationErrors{fmt.Sprintf(
			"opening balance is not balanced: aktiva %s vs passiva %s",
			debitTotal.StringFixed(2), creditTotal.StringFixed(2))}
	}

	contra, err := s.accounts.FindOrCreateByCode(ctx, companyID, ContraAccountCode)
	if err != nil {
		return fibu.BalanceSheet{}, err
	}
	// Two offsetting contra lines: one absorbing the asset side, one the
	// liability side. They keep the entry balanced by construction.
	if debitTotal.IsPositive() {
		items = append(items, fibu.LineItem{AccountCode: contra.Code, Side: fibu.SideCredit, Amount: debitTotal})
	}
	if creditTotal.IsPositive() {
		items = append(items, fibu.LineItem{AccountCode: contra.Code, Side: fibu.SideDebit, Amount: creditTotal})
	}

	entry := fibu.JournalEntry{
		CompanyID:   companyID,
		BookingDate: fy.StartDate,
		Description: fmt.Sprintf("Eröffnungsbilanz %d (EBK)", fy.Year),
		Type:        fibu.EntryTypeOpening,
		Lines:       items,
	}
	// Run the full ledger validation before claiming the transition, so a
	// rejected EBK leaves the year untouched and the caller can retry.
	if err := s.journal.Validate(ctx, entry); err != nil {
		return fibu.BalanceSheet{}, err
	}

	now := time.Now().UTC()
	fy, err = s.writer.MarkOpeningPosted(ctx, fiscalYearID, now)
	if err != nil {
		return fibu.BalanceSheet{}, err
	}

	if _, err := s.journal.Post(ctx, entry); err != nil {
		return fibu.BalanceSheet{}, err
	}

	data, err := s.reports.BalanceSheet(ctx, companyID, fiscalYearID)
	if err != nil {
		return fibu.BalanceSheet{}, err
	}
	sheet := fibu.BalanceSheet{
		ID:           uuid.New(),
		FiscalYearID: fiscalYearID,
		Type:         fibu.SheetTypeOpening,
		Source:       source,
		BalanceDate:  fy.StartDate,
		PostedAt:     &now,
		Data:         data,
	}
	return s.writer.CreateBalanceSheet(ctx, sheet)
}

// Close recomputes the year-end balance sheet and GuV, books the SBK
// reversal, stores the posted closing snapshot and marks the year closed,
// all as one forward-only transition. A second close observes the closed
// state and fails without creating anything.
func (s *service) Close(ctx context.Context, companyID, fiscalYearID uuid.UUID, createNextOpening bool) (fibu.BalanceSheet, error) {
	fy, err := s.repo.FiscalYearByID(ctx, companyID, fiscalYearID)
	if err != nil {
		return fibu.BalanceSheet{}, err
	}
	if fy.Closed {
		return fibu.BalanceSheet{}, errs.ErrFiscalYearClosed
	}
	if !fy.OpeningPosted() {
		return fibu.BalanceSheet{}, errs.ValidationErrors{"opening balance must be posted before closing"}
	}

	data, err := s.reports.BalanceSheet(ctx, companyID, fiscalYearID)
	if err != nil {
		return fibu.BalanceSheet{}, err
	}

	// Build the SBK before flipping the closed flag, so any resolution
	// failure leaves the year open and retryable.
	contra, err := s.accounts.FindOrCreateByCode(ctx, companyID, ContraAccountCode)
	if err != nil {
		return fibu.BalanceSheet{}, err
	}
	sbk, err := s.closingEntry(ctx, companyID, fy, data, contra)
	if err != nil {
		return fibu.BalanceSheet{}, err
	}

	now := time.Now().UTC()
	// The check-and-set on the closed flag is the serialization point: of
	// two concurrent closes only one passes, so SBK entries and the
	// snapshot are written at most once.
	fy, err = s.writer.CloseFiscalYear(ctx, fiscalYearID, now)
	if err != nil {
		return fibu.BalanceSheet{}, err
	}
	if sbk != nil {
		// The year is already flagged closed, so the generated SBK bypasses
		// the ledger gate and is written posted through the store directly.
		if _, err := s.writer.CreateJournalEntry(ctx, *sbk); err != nil {
			return fibu.BalanceSheet{}, err
		}
	}

	sheet, err := s.writer.CreateBalanceSheet(ctx, fibu.BalanceSheet{
		ID:           uuid.New(),
		FiscalYearID: fiscalYearID,
		Type:         fibu.SheetTypeClosing,
		Source:       fibu.SheetSourceCalculated,
		BalanceDate:  fy.EndDate,
		PostedAt:     &now,
		Data:         data,
	})
	if err != nil {
		return fibu.BalanceSheet{}, err
	}

	if createNextOpening {
		if err := s.carryForward(ctx, companyID, fy, data); err != nil {
			return fibu.BalanceSheet{}, err
		}
	}
	return sheet, nil
}

// openingLineItems turns the one-sided balance list into journal line items
// on each account's natural side, flipping negative amounts.
func (s *service) openingLineItems(ctx context.Context, companyID uuid.UUID, lines []OpeningLine) ([]fibu.LineItem, decimal.Decimal, decimal.Decimal, error) {
	items := make([]fibu.LineItem, 0, len(lines)+2)
	debitTotal, creditTotal := decimal.Zero, decimal.Zero
	for _, ln := range lines {
		if ln.AccountCode == ContraAccountCode {
			return nil, decimal.Zero, decimal.Zero, errs.ValidationErrors{"account 9000 is reserved as the opening contra account"}
		}
		amount := ln.Amount
		if amount.Abs().LessThan(fibu.Epsilon) {
			continue
		}
		if !amount.Mul(centScale).Equal(amount.Mul(centScale).Floor()) {
			return nil, decimal.Zero, decimal.Zero, errs.ValidationErrors{fmt.Sprintf(
				"account %s: amount %s has more than 2 decimal places", ln.AccountCode, amount)}
		}
		acc, err := s.accounts.FindOrCreateByCode(ctx, companyID, ln.AccountCode)
		if err != nil {
			return nil, decimal.Zero, decimal.Zero, err
		}
		side := acc.Type.NaturalSide()
		if amount.IsNegative() {
			amount = amount.Neg()
			if side == fibu.SideDebit {
				side = fibu.SideCredit
			} else {
				side = fibu.SideDebit
			}
		}
		if side == fibu.SideDebit {
			debitTotal = debitTotal.Add(amount)
		} else {
			creditTotal = creditTotal.Add(amount)
		}
		items = append(items, fibu.LineItem{AccountCode: acc.Code, Side: side, Amount: amount})
	}
	return items, debitTotal, creditTotal, nil
}

// closingEntry reverses every balance sheet account through the contra
// account. Returns nil when there is nothing to reverse.
func (s *service) closingEntry(ctx context.Context, companyID uuid.UUID, fy fibu.FiscalYear, data fibu.BalanceReport, contra fibu.Account) (*fibu.JournalEntry, error) {
	entryID := uuid.New()
	var items []fibu.LineItem
	debitTotal, creditTotal := decimal.Zero, decimal.Zero

	add := func(code string, side fibu.Side, amount decimal.Decimal) error {
		if amount.IsNegative() {
			amount = amount.Neg()
			if side == fibu.SideDebit {
				side = fibu.SideCredit
			} else {
				side = fibu.SideDebit
			}
		}
		if amount.LessThan(fibu.Epsilon) {
			return nil
		}
		acc, err := s.accounts.FindOrCreateByCode(ctx, companyID, code)
		if err != nil {
			return err
		}
		if side == fibu.SideDebit {
			debitTotal = debitTotal.Add(amount)
		} else {
			creditTotal = creditTotal.Add(amount)
		}
		items = append(items, fibu.LineItem{
			ID: uuid.New(), EntryID: entryID, AccountID: acc.ID,
			AccountCode: code, Side: side, Amount: amount,
		})
		return nil
	}

	// Aktiva balances close on the credit side, Passiva on the debit side.
	var walk func(n *fibu.BalanceNode, side fibu.Side) error
	walk = func(n *fibu.BalanceNode, side fibu.Side) error {
		for _, ab := range n.Accounts {
			if ab.Code == ContraAccountCode {
				continue
			}
			if err := add(ab.Code, side, ab.Amount); err != nil {
				return err
			}
		}
		for _, c := range n.Children {
			if err := walk(c, side); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(data.Aktiva, fibu.SideCredit); err != nil {
		return nil, err
	}
	if err := walk(data.Passiva, fibu.SideDebit); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, nil
	}

	if creditTotal.IsPositive() {
		items = append(items, fibu.LineItem{
			ID: uuid.New(), EntryID: entryID, AccountID: contra.ID,
			AccountCode: contra.Code, Side: fibu.SideDebit, Amount: creditTotal,
		})
	}
	if debitTotal.IsPositive() {
		items = append(items, fibu.LineItem{
			ID: uuid.New(), EntryID: entryID, AccountID: contra.ID,
			AccountCode: contra.Code, Side: fibu.SideCredit, Amount: debitTotal,
		})
	}

	now := time.Now().UTC()
	return &fibu.JournalEntry{
		ID:           entryID,
		CompanyID:    companyID,
		FiscalYearID: fy.ID,
		BookingDate:  fy.EndDate,
		Description:  fmt.Sprintf("Schlussbilanz %d (SBK)", fy.Year),
		Type:         fibu.EntryTypeClosing,
		Sequence:     fibu.EntryTypeClosing.DefaultSequence(),
		PostedAt:     &now,
		Lines:        items,
	}, nil
}

// carryForward opens the next year from the closing snapshot, moving the
// annual result into Gewinnvortrag/Verlustvortrag.
func (s *service) carryForward(ctx context.Context, companyID uuid.UUID, closed fibu.FiscalYear, data fibu.BalanceReport) error {
	next, err := s.repo.FiscalYearByYear(ctx, companyID, closed.Year+1)
	if errors.Is(err, errs.ErrNotFound) {
		next, err = s.writer.CreateFiscalYear(ctx, fibu.NewFiscalYear(companyID, closed.Year+1))
	}
	if err != nil {
		return err
	}

	amounts := make(map[string]decimal.Decimal)
	var order []string
	accumulate := func(code string, amount decimal.Decimal) {
		if _, seen := amounts[code]; !seen {
			order = append(order, code)
		}
		amounts[code] = amounts[code].Add(amount)
	}

	// Snapshot amounts are debit-positive on Aktiva and credit-positive on
	// Passiva; opening lines are natural-side relative, so flip whenever the
	// displayed side is not the account's natural side.
	var walk func(n *fibu.BalanceNode, side fibu.Side) error
	walk = func(n *fibu.BalanceNode, side fibu.Side) error {
		for _, ab := range n.Accounts {
			if ab.Code == ContraAccountCode {
				continue
			}
			typ, err := s.table.AccountTypeFor(ab.Code)
			if err != nil {
				return err
			}
			amount := ab.Amount
			if typ.NaturalSide() != side {
				amount = amount.Neg()
			}
			accumulate(ab.Code, amount)
		}
		for _, c := range n.Children {
			if err := walk(c, side); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(data.Aktiva, fibu.SideDebit); err != nil {
		return err
	}
	if err := walk(data.Passiva, fibu.SideCredit); err != nil {
		return err
	}
	if !data.NetIncome.IsZero() {
		accumulate(CarryforwardResultCode, data.NetIncome)
	}

	lines := make([]OpeningLine, 0, len(order))
	for _, code := range order {
		lines = append(lines, OpeningLine{AccountCode: code, Amount: amounts[code]})
	}
	_, err = s.PostOpeningBalance(ctx, companyID, next.ID, lines, fibu.SheetSourceCarryforward)
	return err
}
