package fibu

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Epsilon is the tolerance below which a balance is treated as zero.
// All report-level comparisons round to cents; one cent is the smallest
// amount that can appear on a posted line.
var Epsilon = decimal.New(1, -2)

// Side represents the accounting position of a line item.
type Side string

const (
	// SideDebit records a value on the debit (Soll) side of an account.
	SideDebit Side = "debit"
	// SideCredit records a value on the credit (Haben) side of an account.
	SideCredit Side = "credit"
)

// AccountType enumerates the broad classification of an account.
type AccountType string

const (
	// AccountTypeAsset increases on the debit side (Aktiva).
	AccountTypeAsset AccountType = "asset"
	// AccountTypeLiability increases on the credit side (Fremdkapital).
	AccountTypeLiability AccountType = "liability"
	// AccountTypeEquity captures the owners' residual interest (Eigenkapital).
	AccountTypeEquity AccountType = "equity"
	// AccountTypeExpense represents outflows that reduce the annual result.
	AccountTypeExpense AccountType = "expense"
	// AccountTypeRevenue represents inflows that increase the annual result.
	AccountTypeRevenue AccountType = "revenue"
)

// NaturalSide returns the side on which the account type carries a
// positive balance.
func (t AccountType) NaturalSide() Side {
	switch t {
	case AccountTypeAsset, AccountTypeExpense:
		return SideDebit
	default:
		return SideCredit
	}
}

// Valid reports whether t is one of the five known account types.
func (t AccountType) Valid() bool {
	switch t {
	case AccountTypeAsset, AccountTypeLiability, AccountTypeEquity, AccountTypeExpense, AccountTypeRevenue:
		return true
	}
	return false
}

// EntryType distinguishes regular postings from the opening (EBK) and
// closing (SBK) entries a fiscal year generates.
type EntryType string

const (
	EntryTypeNormal  EntryType = "normal"
	EntryTypeOpening EntryType = "opening"
	EntryTypeClosing EntryType = "closing"
)

// DefaultSequence returns the display/tie-break sequence assigned when the
// caller does not provide one. Opening entries sort before normal entries,
// closing entries after everything else on the same booking date.
func (t EntryType) DefaultSequence() int {
	switch t {
	case EntryTypeOpening:
		return 0
	case EntryTypeClosing:
		return 9000
	default:
		return 1000
	}
}

// Company is the root aggregate. Accounts, fiscal years, journal entries and
// tax reports all hang off a company and are destroyed with it.
type Company struct {
	ID   uuid.UUID
	Name string
}

// Account represents one account of the company's chart (SKR03 numbering).
type Account struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	// Code is the SKR03 account number, e.g. "1200". Unique per company.
	Code string
	Name string
	Type AccountType
	// TaxRate is the VAT rate attached to the account, if any (e.g. 0.19).
	TaxRate *decimal.Decimal
	// PresentationRule optionally overrides the rule derived from the
	// account's category (name of a kontenplan rule).
	PresentationRule string
	// System marks reserved accounts such as 9000 (Saldenvorträge).
	System bool
	Active bool
}

// JournalEntry is an append-only booking. Once PostedAt is set the entry and
// its line items are permanently read-only (GoBD).
type JournalEntry struct {
	ID           uuid.UUID
	CompanyID    uuid.UUID
	FiscalYearID uuid.UUID
	BookingDate  time.Time
	Description  string
	Type         EntryType
	// Sequence breaks ties between entries on the same booking date:
	// opening 0-999, normal 1000-8999, closing 9000-9999.
	Sequence int
	PostedAt *time.Time
	Lines    []LineItem
}

// Posted reports whether the entry has been made immutable.
func (e JournalEntry) Posted() bool { return e.PostedAt != nil }

// Totals returns the summed debit and credit amounts of all lines.
func (e JournalEntry) Totals() (debit, credit decimal.Decimal) {
	debit, credit = decimal.Zero, decimal.Zero
	for _, ln := range e.Lines {
		switch ln.Side {
		case SideDebit:
			debit = debit.Add(ln.Amount)
		case SideCredit:
			credit = credit.Add(ln.Amount)
		}
	}
	return debit, credit
}

// Balanced reports exact decimal equality of debit and credit totals.
func (e JournalEntry) Balanced() bool {
	d, c := e.Totals()
	return d.Equal(c)
}

// LineItem is one side of a booking on a single account.
type LineItem struct {
	ID        uuid.UUID
	EntryID   uuid.UUID
	AccountID uuid.UUID
	// AccountCode is denormalized for aggregation and display.
	AccountCode string
	Side        Side
	// Amount is always positive; the side carries the sign.
	Amount decimal.Decimal
	// Description overrides the entry description for display when set.
	Description string
	// BankTransactionID links the line to a reconciled bank transaction.
	BankTransactionID *uuid.UUID
}

// FiscalYear owns journal entries and balance sheet snapshots. Calendar
// years only for now.
type FiscalYear struct {
	ID        uuid.UUID
	CompanyID uuid.UUID
	Year      int
	StartDate time.Time
	EndDate   time.Time
	Closed    bool

	OpeningPostedAt *time.Time
	ClosingPostedAt *time.Time
	ClosedAt        *time.Time
}

// Contains reports whether the booking date falls inside [StartDate, EndDate].
func (fy FiscalYear) Contains(t time.Time) bool {
	day := t.Truncate(24 * time.Hour)
	return !day.Before(fy.StartDate) && !day.After(fy.EndDate)
}

// OpeningPosted reports whether the opening balance (EBK) has been booked.
func (fy FiscalYear) OpeningPosted() bool { return fy.OpeningPostedAt != nil }

// NewFiscalYear constructs a calendar fiscal year for the given company.
func NewFiscalYear(companyID uuid.UUID, year int) FiscalYear {
	return FiscalYear{
		ID:        uuid.New(),
		CompanyID: companyID,
		Year:      year,
		StartDate: time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
	}
}

// SheetType distinguishes opening from closing balance sheet snapshots.
type SheetType string

const (
	SheetTypeOpening SheetType = "opening"
	SheetTypeClosing SheetType = "closing"
)

// SheetSource records how a balance sheet snapshot came to be.
type SheetSource string

const (
	SheetSourceManual       SheetSource = "manual"
	SheetSourceCalculated   SheetSource = "calculated"
	SheetSourceCarryforward SheetSource = "carryforward"
)

// BalanceSheet is an immutable snapshot of the full report tree at the time
// an opening or closing balance was posted. At most one posted snapshot
// exists per (fiscal year, sheet type).
type BalanceSheet struct {
	ID           uuid.UUID
	FiscalYearID uuid.UUID
	Type         SheetType
	Source       SheetSource
	BalanceDate  time.Time
	PostedAt     *time.Time
	Data         BalanceReport
}

// Posted reports whether the snapshot is read-only.
func (b BalanceSheet) Posted() bool { return b.PostedAt != nil }

// BankTransactionStatus is the reconciliation state of an imported bank
// transaction. Only the transition back to pending is owned by this core;
// matching itself happens elsewhere.
type BankTransactionStatus string

const (
	BankTxPending    BankTransactionStatus = "pending"
	BankTxReconciled BankTransactionStatus = "reconciled"
)

// TaxReportType enumerates the derivations the tax service produces.
type TaxReportType string

const (
	TaxReportUStVA TaxReportType = "ustva"
	TaxReportKSt   TaxReportType = "kst"
)

// TaxReportStatus gates whether KSt adjustments may still be re-applied.
type TaxReportStatus string

const (
	TaxStatusDraft     TaxReportStatus = "draft"
	TaxStatusSubmitted TaxReportStatus = "submitted"
	TaxStatusAccepted  TaxReportStatus = "accepted"
)
