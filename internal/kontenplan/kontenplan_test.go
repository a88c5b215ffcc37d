package kontenplan

import (
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/buchwerk/fibu/internal/errs"
	"github.com/buchwerk/fibu/internal/fibu"
)

func TestDefaultTableLoads(t *testing.T) {
	tbl := Default()
	if tbl == nil {
		t.Fatal("default table is nil")
	}
	if got := len(tbl.GuVSections()); got != 17 {
		t.Fatalf("expected 17 GuV positions, got %d", got)
	}
}

func TestCategoryAndTypeLookups(t *testing.T) {
	tbl := Default()
	cases := []struct {
		code string
		typ  fibu.AccountType
	}{
		{"1200", fibu.AccountTypeAsset},
		{"1000", fibu.AccountTypeAsset},
		{"1400", fibu.AccountTypeAsset},
		{"1600", fibu.AccountTypeLiability},
		{"1776", fibu.AccountTypeLiability},
		{"0800", fibu.AccountTypeEquity},
		{"0860", fibu.AccountTypeEquity},
		{"9000", fibu.AccountTypeEquity},
		{"4000", fibu.AccountTypeRevenue},
		{"5000", fibu.AccountTypeExpense},
		{"7600", fibu.AccountTypeExpense},
	}
	for _, tc := range cases {
		typ, err := tbl.AccountTypeFor(tc.code)
		if err != nil {
			t.Fatalf("AccountTypeFor(%s): %v", tc.code, err)
		}
		if typ != tc.typ {
			t.Fatalf("AccountTypeFor(%s) = %s, want %s", tc.code, typ, tc.typ)
		}
	}

	if _, err := tbl.CategoryFor("2500"); !errors.Is(err, errs.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory for unmapped code, got %v", err)
	}
}

func TestSectionCodesExpandsRangesSortedDeduped(t *testing.T) {
	tbl := Default()
	codes, err := tbl.SectionCodes("guv.materialaufwand")
	if err != nil {
		t.Fatalf("SectionCodes: %v", err)
	}
	if len(codes) != 1000 {
		t.Fatalf("expected 1000 material codes, got %d", len(codes))
	}
	if codes[0] != "5000" || codes[len(codes)-1] != "5999" {
		t.Fatalf("unexpected bounds: %s..%s", codes[0], codes[len(codes)-1])
	}
	if !sort.StringsAreSorted(codes) {
		t.Fatal("codes not sorted")
	}

	// Zero-padded widths survive expansion.
	codes, err = tbl.SectionCodes("aktiva.anlagevermoegen.immaterielle")
	if err != nil {
		t.Fatalf("SectionCodes: %v", err)
	}
	if codes[0] != "0010" {
		t.Fatalf("expected zero-padded 0010, got %s", codes[0])
	}

	if _, err := tbl.SectionCodes("no.such.section"); !errors.Is(err, errs.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
}

func TestBidirectionalResolvesBothSides(t *testing.T) {
	tbl := Default()
	bank := fibu.Account{Code: "1200", Type: fibu.AccountTypeAsset}

	pos, err := tbl.ResolveSection(bank, decimal.RequireFromString("0.01"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	neg, err := tbl.ResolveSection(bank, decimal.RequireFromString("-0.01"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if pos == neg {
		t.Fatalf("bidirectional account resolved to one section for both signs: %s", pos)
	}
	if pos != "aktiva.umlaufvermoegen.kasse_bank" {
		t.Fatalf("debit balance placed at %s", pos)
	}
	if neg != "passiva.verbindlichkeiten.kreditinstitute" {
		t.Fatalf("credit balance placed at %s", neg)
	}
}

func TestNearZeroFallsBackToNaturalType(t *testing.T) {
	tbl := Default()
	tiny := decimal.RequireFromString("0.004")

	bank := fibu.Account{Code: "1200", Type: fibu.AccountTypeAsset}
	rsid, err := tbl.ResolveSection(bank, tiny.Neg())
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rsid != "aktiva.umlaufvermoegen.kasse_bank" {
		t.Fatalf("near-zero asset balance should stay on the debit side, got %s", rsid)
	}

	ust := fibu.Account{Code: "1776", Type: fibu.AccountTypeLiability}
	rsid, err = tbl.ResolveSection(ust, tiny)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rsid != "passiva.verbindlichkeiten.steuern" {
		t.Fatalf("near-zero liability balance should stay on the credit side, got %s", rsid)
	}
}

func TestFixedRuleIgnoresBalanceSign(t *testing.T) {
	tbl := Default()
	vortrag := fibu.Account{Code: "0860", Type: fibu.AccountTypeEquity}
	for _, net := range []string{"100.00", "-1348.84"} {
		rsid, err := tbl.ResolveSection(vortrag, decimal.RequireFromString(net))
		if err != nil {
			t.Fatalf("resolve: %v", err)
		}
		if rsid != "passiva.eigenkapital.ergebnisvortrag" {
			t.Fatalf("fixed rule moved with balance %s: %s", net, rsid)
		}
	}
}

func TestPresentationRuleOverride(t *testing.T) {
	tbl := Default()
	acc := fibu.Account{Code: "1200", Type: fibu.AccountTypeAsset, PresentationRule: "wertpapiere"}
	rsid, err := tbl.ResolveSection(acc, decimal.RequireFromString("-500.00"))
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if rsid != "aktiva.umlaufvermoegen.wertpapiere" {
		t.Fatalf("override not applied, got %s", rsid)
	}
}

func TestParseRejectsDanglingSectionReference(t *testing.T) {
	bad := strings.ReplaceAll(string(embedded),
		"credit: passiva.verbindlichkeiten.kreditinstitute",
		"credit: passiva.verbindlichkeiten.nope")
	_, err := Parse([]byte(bad))
	if !errors.Is(err, errs.ErrInvalidSectionReference) {
		t.Fatalf("expected ErrInvalidSectionReference, got %v", err)
	}
}

func TestParseRejectsOverlappingRanges(t *testing.T) {
	bad := strings.Replace(string(embedded), `codes: ["1300-1349"]`, `codes: ["1200-1349"]`, 1)
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("expected overlap error")
	}
}
