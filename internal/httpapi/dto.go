package httpapi

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buchwerk/fibu/internal/fibu"
	"github.com/buchwerk/fibu/internal/service/fiscalyear"
)

// dateLayout is the wire format for booking dates and report windows.
const dateLayout = "2006-01-02"

// --- Requests ---

type postCompanyRequest struct {
	Name string `json:"name"`
}

type postAccountRequest struct {
	CompanyID        uuid.UUID `json:"company_id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	TaxRate          *string   `json:"tax_rate,omitempty"`
	PresentationRule string    `json:"presentation_rule,omitempty"`
}

type entryLineRequest struct {
	AccountCode       string     `json:"account_code"`
	Side              string     `json:"side"`
	Amount            string     `json:"amount"`
	Description       string     `json:"description,omitempty"`
	BankTransactionID *uuid.UUID `json:"bank_transaction_id,omitempty"`
}

type postEntryRequest struct {
	CompanyID   uuid.UUID          `json:"company_id"`
	BookingDate string             `json:"booking_date"`
	Description string             `json:"description"`
	EntryType   string             `json:"entry_type,omitempty"`
	Lines       []entryLineRequest `json:"lines"`
}

type postFiscalYearRequest struct {
	CompanyID uuid.UUID `json:"company_id"`
	Year      int       `json:"year"`
}

type openingLineRequest struct {
	AccountCode string `json:"account_code"`
	Amount      string `json:"amount"`
}

type postOpeningBalanceRequest struct {
	CompanyID uuid.UUID            `json:"company_id"`
	Source    string               `json:"source,omitempty"`
	Lines     []openingLineRequest `json:"lines"`
}

type closeFiscalYearRequest struct {
	CompanyID         uuid.UUID `json:"company_id"`
	CreateNextOpening *bool     `json:"create_next_opening,omitempty"`
}

type postUStVARequest struct {
	CompanyID uuid.UUID `json:"company_id"`
	StartDate string    `json:"start_date"`
	EndDate   string    `json:"end_date"`
}

type kstAdjustmentsRequest struct {
	NonDeductibleExpenses string `json:"non_deductible_expenses,omitempty"`
	TaxFreeIncome         string `json:"tax_free_income,omitempty"`
	LossCarryforward      string `json:"loss_carryforward,omitempty"`
	Donations             string `json:"donations,omitempty"`
	SpecialDeductions     string `json:"special_deductions,omitempty"`
}

type postKStRequest struct {
	CompanyID    uuid.UUID             `json:"company_id"`
	FiscalYearID uuid.UUID             `json:"fiscal_year_id"`
	Adjustments  kstAdjustmentsRequest `json:"adjustments"`
}

type recalculateKStRequest struct {
	CompanyID   uuid.UUID             `json:"company_id"`
	Adjustments kstAdjustmentsRequest `json:"adjustments"`
}

type taxStatusRequest struct {
	CompanyID uuid.UUID `json:"company_id"`
	Status    string    `json:"status"`
}

// --- Responses ---

type companyResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type accountResponse struct {
	ID               uuid.UUID `json:"id"`
	CompanyID        uuid.UUID `json:"company_id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	Type             string    `json:"type"`
	TaxRate          *string   `json:"tax_rate,omitempty"`
	PresentationRule string    `json:"presentation_rule,omitempty"`
	System           bool      `json:"system"`
	Active           bool      `json:"active"`
}

type entryLineResponse struct {
	ID                uuid.UUID  `json:"id"`
	AccountID         uuid.UUID  `json:"account_id"`
	AccountCode       string     `json:"account_code"`
	Side              string     `json:"side"`
	Amount            string     `json:"amount"`
	Description       string     `json:"description,omitempty"`
	BankTransactionID *uuid.UUID `json:"bank_transaction_id,omitempty"`
}

type entryResponse struct {
	ID           uuid.UUID           `json:"id"`
	CompanyID    uuid.UUID           `json:"company_id"`
	FiscalYearID uuid.UUID           `json:"fiscal_year_id"`
	BookingDate  string              `json:"booking_date"`
	Description  string              `json:"description"`
	EntryType    string              `json:"entry_type"`
	Sequence     int                 `json:"sequence"`
	PostedAt     *time.Time          `json:"posted_at,omitempty"`
	Lines        []entryLineResponse `json:"lines"`
}

type fiscalYearResponse struct {
	ID              uuid.UUID  `json:"id"`
	CompanyID       uuid.UUID  `json:"company_id"`
	Year            int        `json:"year"`
	StartDate       string     `json:"start_date"`
	EndDate         string     `json:"end_date"`
	Closed          bool       `json:"closed"`
	OpeningPostedAt *time.Time `json:"opening_posted_at,omitempty"`
	ClosingPostedAt *time.Time `json:"closing_posted_at,omitempty"`
	ClosedAt        *time.Time `json:"closed_at,omitempty"`
}

type balanceSheetResponse struct {
	ID           uuid.UUID          `json:"id,omitempty"`
	FiscalYearID uuid.UUID          `json:"fiscal_year_id"`
	Type         string             `json:"type"`
	Source       string             `json:"source"`
	BalanceDate  string             `json:"balance_date"`
	PostedAt     *time.Time         `json:"posted_at,omitempty"`
	Data         fibu.BalanceReport `json:"data"`
}

type taxReportResponse struct {
	ID           uuid.UUID       `json:"id"`
	CompanyID    uuid.UUID       `json:"company_id"`
	Type         string          `json:"type"`
	Status       string          `json:"status"`
	FiscalYearID *uuid.UUID      `json:"fiscal_year_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	UStVA        *fibu.UStVAData `json:"ustva,omitempty"`
	KSt          *fibu.KStData   `json:"kst,omitempty"`
}

// --- Conversions ---

func parseDate(raw, field string) (time.Time, error) {
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a YYYY-MM-DD date", field)
	}
	return t.UTC(), nil
}

func parseAmount(raw, field string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%s must be a decimal amount", field)
	}
	return d, nil
}

func toEntryDomain(req postEntryRequest) (fibu.JournalEntry, error) {
	date, err := parseDate(req.BookingDate, "booking_date")
	if err != nil {
		return fibu.JournalEntry{}, err
	}
	typ := fibu.EntryTypeNormal
	if req.EntryType != "" {
		typ = fibu.EntryType(req.EntryType)
	}
	lines := make([]fibu.LineItem, 0, len(req.Lines))
	for i, ln := range req.Lines {
		amount, err := parseAmount(ln.Amount, fmt.Sprintf("lines[%d].amount", i))
		if err != nil {
			return fibu.JournalEntry{}, err
		}
		lines = append(lines, fibu.LineItem{
			AccountCode:       ln.AccountCode,
			Side:              fibu.Side(ln.Side),
			Amount:            amount,
			Description:       ln.Description,
			BankTransactionID: ln.BankTransactionID,
		})
	}
	return fibu.JournalEntry{
		CompanyID:   req.CompanyID,
		BookingDate: date,
		Description: req.Description,
		Type:        typ,
		Lines:       lines,
	}, nil
}

func toOpeningLines(reqs []openingLineRequest) ([]fiscalyear.OpeningLine, error) {
	lines := make([]fiscalyear.OpeningLine, 0, len(reqs))
	for i, ln := range reqs {
		amount, err := parseAmount(ln.Amount, fmt.Sprintf("lines[%d].amount", i))
		if err != nil {
			return nil, err
		}
		lines = append(lines, fiscalyear.OpeningLine{AccountCode: ln.AccountCode, Amount: amount})
	}
	return lines, nil
}

func toAdjustments(req kstAdjustmentsRequest) (fibu.KStAdjustments, error) {
	var adj fibu.KStAdjustments
	var err error
	if adj.NonDeductibleExpenses, err = parseAmount(req.NonDeductibleExpenses, "non_deductible_expenses"); err != nil {
		return adj, err
	}
	if adj.TaxFreeIncome, err = parseAmount(req.TaxFreeIncome, "tax_free_income"); err != nil {
		return adj, err
	}
	if adj.LossCarryforward, err = parseAmount(req.LossCarryforward, "loss_carryforward"); err != nil {
		return adj, err
	}
	if adj.Donations, err = parseAmount(req.Donations, "donations"); err != nil {
		return adj, err
	}
	if adj.SpecialDeductions, err = parseAmount(req.SpecialDeductions, "special_deductions"); err != nil {
		return adj, err
	}
	return adj, nil
}

func toAccountResponse(a fibu.Account) accountResponse {
	out := accountResponse{
		ID: a.ID, CompanyID: a.CompanyID, Code: a.Code, Name: a.Name,
		Type: string(a.Type), PresentationRule: a.PresentationRule,
		System: a.System, Active: a.Active,
	}
	if a.TaxRate != nil {
		rate := a.TaxRate.String()
		out.TaxRate = &rate
	}
	return out
}

func toEntryResponse(e fibu.JournalEntry) entryResponse {
	lines := make([]entryLineResponse, 0, len(e.Lines))
	for _, ln := range e.Lines {
		lines = append(lines, entryLineResponse{
			ID: ln.ID, AccountID: ln.AccountID, AccountCode: ln.AccountCode,
			Side: string(ln.Side), Amount: ln.Amount.StringFixed(2),
			Description: ln.Description, BankTransactionID: ln.BankTransactionID,
		})
	}
	return entryResponse{
		ID: e.ID, CompanyID: e.CompanyID, FiscalYearID: e.FiscalYearID,
		BookingDate: e.BookingDate.Format(dateLayout), Description: e.Description,
		EntryType: string(e.Type), Sequence: e.Sequence, PostedAt: e.PostedAt,
		Lines: lines,
	}
}

func toFiscalYearResponse(fy fibu.FiscalYear) fiscalYearResponse {
	return fiscalYearResponse{
		ID: fy.ID, CompanyID: fy.CompanyID, Year: fy.Year,
		StartDate: fy.StartDate.Format(dateLayout), EndDate: fy.EndDate.Format(dateLayout),
		Closed: fy.Closed, OpeningPostedAt: fy.OpeningPostedAt,
		ClosingPostedAt: fy.ClosingPostedAt, ClosedAt: fy.ClosedAt,
	}
}

func toBalanceSheetResponse(sheet fibu.BalanceSheet) balanceSheetResponse {
	return balanceSheetResponse{
		ID: sheet.ID, FiscalYearID: sheet.FiscalYearID, Type: string(sheet.Type),
		Source: string(sheet.Source), BalanceDate: sheet.BalanceDate.Format(dateLayout),
		PostedAt: sheet.PostedAt, Data: sheet.Data,
	}
}

func toTaxReportResponse(r fibu.TaxReport) taxReportResponse {
	return taxReportResponse{
		ID: r.ID, CompanyID: r.CompanyID, Type: string(r.Type), Status: string(r.Status),
		FiscalYearID: r.FiscalYearID, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt,
		UStVA: r.UStVA, KSt: r.KSt,
	}
}
