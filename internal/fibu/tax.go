package fibu

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// UStVAPeriodType labels the length of a UStVA reporting window. It carries
// no semantics beyond display.
type UStVAPeriodType string

const (
	UStVAPeriodMonthly   UStVAPeriodType = "monthly"
	UStVAPeriodQuarterly UStVAPeriodType = "quarterly"
	UStVAPeriodAnnual    UStVAPeriodType = "annual"
	UStVAPeriodCustom    UStVAPeriodType = "custom"
)

// UStVAField is one VAT account's absolute turnover within the period.
type UStVAField struct {
	AccountCode string          `json:"account_code"`
	AccountName string          `json:"account_name"`
	Amount      decimal.Decimal `json:"amount"`
}

// UStVASection groups the fields of one direction of VAT.
type UStVASection struct {
	ID       string          `json:"id"`
	Label    string          `json:"label"`
	Fields   []UStVAField    `json:"fields"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// UStVAData is the generated payload of a VAT advance return.
type UStVAData struct {
	PeriodStart     time.Time       `json:"period_start"`
	PeriodEnd       time.Time       `json:"period_end"`
	PeriodType      UStVAPeriodType `json:"period_type"`
	Sections        []UStVASection  `json:"sections"`
	NetVATLiability decimal.Decimal `json:"net_vat_liability"`
}

// KStAdjustments are the user-supplied corrections applied on top of the
// commercial net income to reach the taxable income.
type KStAdjustments struct {
	NonDeductibleExpenses decimal.Decimal `json:"non_deductible_expenses"`
	TaxFreeIncome         decimal.Decimal `json:"tax_free_income"`
	LossCarryforward      decimal.Decimal `json:"loss_carryforward"`
	Donations             decimal.Decimal `json:"donations"`
	SpecialDeductions     decimal.Decimal `json:"special_deductions"`
}

// KStData is the generated payload of a corporate income tax computation.
type KStData struct {
	NetIncome           decimal.Decimal `json:"net_income"`
	Adjustments         KStAdjustments  `json:"adjustments"`
	TaxableIncome       decimal.Decimal `json:"taxable_income"`
	KStAmount           decimal.Decimal `json:"kst_amount"`
	SolidaritySurcharge decimal.Decimal `json:"solidarity_surcharge"`
	TotalTax            decimal.Decimal `json:"total_tax"`
}

// TaxReport is a stored derivation. Exactly one of UStVA and KSt is set,
// matching Type. Adjustments may only be re-applied while Status is draft.
type TaxReport struct {
	ID           uuid.UUID
	CompanyID    uuid.UUID
	Type         TaxReportType
	Status       TaxReportStatus
	PeriodStart  time.Time
	PeriodEnd    time.Time
	FiscalYearID *uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
	UStVA        *UStVAData
	KSt          *KStData
}
