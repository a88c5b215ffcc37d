// Package tax derives the German tax reports from the ledger: the UStVA
// (VAT advance return) as a pure aggregation over a date range, and the KSt
// (corporate income tax) computation on top of the GuV net income.
package tax

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buchwerk/fibu/internal/errs"
	"github.com/buchwerk/fibu/internal/fibu"
	"github.com/buchwerk/fibu/internal/service/report"
)

// The UStVA code sets are fixed by the SKR03 convention, not configurable.
var (
	inputVATCodes         = map[string]string{"1571": "Abziehbare Vorsteuer 7 %", "1576": "Abziehbare Vorsteuer 19 %"}
	outputVATCodes        = map[string]string{"1771": "Umsatzsteuer 7 %", "1776": "Umsatzsteuer 19 %"}
	reverseChargeVATCodes = map[string]string{"1577": "Vorsteuer §13b UStG", "1787": "Umsatzsteuer §13b UStG"}
)

const kstRateBps = 1500 // 15.00 %
const soliRateBps = 55  // 5.5 % of the KSt amount

// Repo defines the reads the tax derivations need.
type Repo interface {
	EntriesByDateRange(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]fibu.JournalEntry, error)
	TaxReportByID(ctx context.Context, companyID, reportID uuid.UUID) (fibu.TaxReport, error)
}

// Writer persists tax reports.
type Writer interface {
	CreateTaxReport(ctx context.Context, r fibu.TaxReport) (fibu.TaxReport, error)
	UpdateTaxReport(ctx context.Context, r fibu.TaxReport) (fibu.TaxReport, error)
}

// Service computes and stores tax derivations. The Compute variants are pure
// and persist nothing; the Create variants store a draft report.
type Service interface {
	ComputeUStVA(ctx context.Context, companyID uuid.UUID, start, end time.Time) (fibu.UStVAData, error)
	CreateUStVAReport(ctx context.Context, companyID uuid.UUID, start, end time.Time) (fibu.TaxReport, error)
	ComputeKSt(ctx context.Context, companyID, fiscalYearID uuid.UUID, adj fibu.KStAdjustments) (fibu.KStData, error)
	CreateKStReport(ctx context.Context, companyID, fiscalYearID uuid.UUID, adj fibu.KStAdjustments) (fibu.TaxReport, error)
	// RecalculateKSt re-applies adjustments on a stored report. Allowed only
	// while the report is in draft status.
	RecalculateKSt(ctx context.Context, companyID, reportID uuid.UUID, adj fibu.KStAdjustments) (fibu.TaxReport, error)
	// UpdateStatus advances draft -> submitted -> accepted. Backward moves
	// are rejected.
	UpdateStatus(ctx context.Context, companyID, reportID uuid.UUID, status fibu.TaxReportStatus) (fibu.TaxReport, error)
}

type service struct {
	repo    Repo
	writer  Writer
	reports report.Service
}

func New(repo Repo, writer Writer, reports report.Service) Service {
	return &service{repo: repo, writer: writer, reports: reports}
}

// ComputeUStVA aggregates the posted VAT account movements inside
// [start, end] into the three UStVA sections. All amounts are absolute; the
// direction is carried by the section.
func (s *service) ComputeUStVA(ctx context.Context, companyID uuid.UUID, start, end time.Time) (fibu.UStVAData, error) {
	if companyID == uuid.Nil {
		return fibu.UStVAData{}, errs.ErrInvalid
	}
	if end.Before(start) {
		return fibu.UStVAData{}, errs.ValidationErrors{fmt.Sprintf(
			"invalid date range: end %s before start %s",
			end.Format("2006-01-02"), start.Format("2006-01-02"))}
	}

	entries, err := s.repo.EntriesByDateRange(ctx, companyID, start, end)
	if err != nil {
		return fibu.UStVAData{}, err
	}

	// Net per code is credit minus debit; the absolute value is reported.
	nets := make(map[string]decimal.Decimal)
	for _, e := range entries {
		if !e.Posted() || e.Type == fibu.EntryTypeClosing {
			continue
		}
		for _, ln := range e.Lines {
			if !vatCode(ln.AccountCode) {
				continue
			}
			amount := ln.Amount
			if ln.Side == fibu.SideDebit {
				amount = amount.Neg()
			}
			nets[ln.AccountCode] = nets[ln.AccountCode].Add(amount)
		}
	}

	data := fibu.UStVAData{
		PeriodStart:     start,
		PeriodEnd:       end,
		PeriodType:      periodType(start, end),
		NetVATLiability: decimal.Zero,
	}
	output := buildSection("output", "Umsatzsteuer", outputVATCodes, nets)
	input := buildSection("input", "Abziehbare Vorsteuer", inputVATCodes, nets)
	reverse := buildSection("reverse_charge", "Steuerschuldnerschaft des Leistungsempfängers (§13b UStG)", reverseChargeVATCodes, nets)
	data.Sections = []fibu.UStVASection{output, input, reverse}

	// Reverse-charge input and output offset each other, so the section nets
	// to zero and only output minus input remains.
	rcNet := absNet(nets, "1787").Sub(absNet(nets, "1577"))
	data.NetVATLiability = output.Subtotal.Sub(input.Subtotal).Add(rcNet)
	return data, nil
}

func (s *service) CreateUStVAReport(ctx context.Context, companyID uuid.UUID, start, end time.Time) (fibu.TaxReport, error) {
	data, err := s.ComputeUStVA(ctx, companyID, start, end)
	if err != nil {
		return fibu.TaxReport{}, err
	}
	now := time.Now().UTC()
	return s.writer.CreateTaxReport(ctx, fibu.TaxReport{
		ID:          uuid.New(),
		CompanyID:   companyID,
		Type:        fibu.TaxReportUStVA,
		Status:      fibu.TaxStatusDraft,
		PeriodStart: start,
		PeriodEnd:   end,
		CreatedAt:   now,
		UpdatedAt:   now,
		UStVA:       &data,
	})
}

// ComputeKSt derives the corporate income tax from the fiscal year's GuV net
// income and the supplied adjustments. A negative taxable income yields a
// zero tax amount, never a refund.
func (s *service) ComputeKSt(ctx context.Context, companyID, fiscalYearID uuid.UUID, adj fibu.KStAdjustments) (fibu.KStData, error) {
	if companyID == uuid.Nil || fiscalYearID == uuid.Nil {
		return fibu.KStData{}, errs.ErrInvalid
	}
	guv, err := s.reports.GuV(ctx, companyID, fiscalYearID, report.DefaultOptions())
	if err != nil {
		return fibu.KStData{}, err
	}

	taxable := guv.NetIncome.
		Add(adj.NonDeductibleExpenses).
		Sub(adj.TaxFreeIncome).
		Sub(adj.LossCarryforward).
		Sub(adj.Donations).
		Sub(adj.SpecialDeductions)

	kst := decimal.Zero
	if taxable.IsPositive() {
		kst = taxable.Mul(decimal.New(kstRateBps, -4)).Round(2)
	}
	soli := kst.Mul(decimal.New(soliRateBps, -3)).Round(2)

	return fibu.KStData{
		NetIncome:           guv.NetIncome,
		Adjustments:         adj,
		TaxableIncome:       taxable,
		KStAmount:           kst,
		SolidaritySurcharge: soli,
		TotalTax:            kst.Add(soli),
	}, nil
}

func (s *service) CreateKStReport(ctx context.Context, companyID, fiscalYearID uuid.UUID, adj fibu.KStAdjustments) (fibu.TaxReport, error) {
	data, err := s.ComputeKSt(ctx, companyID, fiscalYearID, adj)
	if err != nil {
		return fibu.TaxReport{}, err
	}
	now := time.Now().UTC()
	fyID := fiscalYearID
	return s.writer.CreateTaxReport(ctx, fibu.TaxReport{
		ID:           uuid.New(),
		CompanyID:    companyID,
		Type:         fibu.TaxReportKSt,
		Status:       fibu.TaxStatusDraft,
		FiscalYearID: &fyID,
		CreatedAt:    now,
		UpdatedAt:    now,
		KSt:          &data,
	})
}

func (s *service) RecalculateKSt(ctx context.Context, companyID, reportID uuid.UUID, adj fibu.KStAdjustments) (fibu.TaxReport, error) {
	r, err := s.repo.TaxReportByID(ctx, companyID, reportID)
	if err != nil {
		return fibu.TaxReport{}, err
	}
	if r.Type != fibu.TaxReportKSt || r.FiscalYearID == nil {
		return fibu.TaxReport{}, fmt.Errorf("report %s is not a KSt report: %w", reportID, errs.ErrInvalid)
	}
	if r.Status != fibu.TaxStatusDraft {
		return fibu.TaxReport{}, fmt.Errorf("report %s is %s: %w", reportID, r.Status, errs.ErrConflict)
	}
	data, err := s.ComputeKSt(ctx, companyID, *r.FiscalYearID, adj)
	if err != nil {
		return fibu.TaxReport{}, err
	}
	r.KSt = &data
	r.UpdatedAt = time.Now().UTC()
	return s.writer.UpdateTaxReport(ctx, r)
}

func (s *service) UpdateStatus(ctx context.Context, companyID, reportID uuid.UUID, status fibu.TaxReportStatus) (fibu.TaxReport, error) {
	r, err := s.repo.TaxReportByID(ctx, companyID, reportID)
	if err != nil {
		return fibu.TaxReport{}, err
	}
	if rank(status) == 0 {
		return fibu.TaxReport{}, errs.ValidationErrors{fmt.Sprintf("status %q is not draft|submitted|accepted", status)}
	}
	if rank(status) <= rank(r.Status) {
		return fibu.TaxReport{}, fmt.Errorf("cannot move report from %s to %s: %w", r.Status, status, errs.ErrConflict)
	}
	r.Status = status
	r.UpdatedAt = time.Now().UTC()
	return s.writer.UpdateTaxReport(ctx, r)
}

func rank(status fibu.TaxReportStatus) int {
	switch status {
	case fibu.TaxStatusDraft:
		return 1
	case fibu.TaxStatusSubmitted:
		return 2
	case fibu.TaxStatusAccepted:
		return 3
	}
	return 0
}

func vatCode(code string) bool {
	_, in := inputVATCodes[code]
	_, out := outputVATCodes[code]
	_, rc := reverseChargeVATCodes[code]
	return in || out || rc
}

func absNet(nets map[string]decimal.Decimal, code string) decimal.Decimal {
	return nets[code].Abs()
}

func buildSection(id, label string, codes map[string]string, nets map[string]decimal.Decimal) fibu.UStVASection {
	sec := fibu.UStVASection{ID: id, Label: label, Subtotal: decimal.Zero}
	ordered := make([]string, 0, len(codes))
	for code := range codes {
		ordered = append(ordered, code)
	}
	sort.Strings(ordered)
	for _, code := range ordered {
		amount := nets[code].Abs()
		if amount.LessThan(fibu.Epsilon) {
			continue
		}
		sec.Fields = append(sec.Fields, fibu.UStVAField{AccountCode: code, AccountName: codes[code], Amount: amount})
		sec.Subtotal = sec.Subtotal.Add(amount)
	}
	return sec
}

// periodType infers the label from the window length, end inclusive.
func periodType(start, end time.Time) fibu.UStVAPeriodType {
	days := int(end.Sub(start).Hours()/24) + 1
	switch {
	case days >= 28 && days <= 31:
		return fibu.UStVAPeriodMonthly
	case days >= 89 && days <= 92:
		return fibu.UStVAPeriodQuarterly
	case days >= 365 && days <= 366:
		return fibu.UStVAPeriodAnnual
	default:
		return fibu.UStVAPeriodCustom
	}
}
