package httpapi_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buchwerk/fibu/internal/fibu"
	"github.com/buchwerk/fibu/internal/httpapi"
	"github.com/buchwerk/fibu/internal/kontenplan"
	"github.com/buchwerk/fibu/internal/storage/memory"
)

type apiFixture struct {
	handler http.Handler
	company uuid.UUID
	year    uuid.UUID
}

type errorBody struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Details []string `json:"details"`
}

func newAPI(t *testing.T) *apiFixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &apiFixture{handler: httpapi.New(memory.New(), kontenplan.Default(), logger).Handler()}

	var company struct {
		ID uuid.UUID `json:"id"`
	}
	f.request(t, http.MethodPost, "/v1/companies", map[string]any{"name": "API GmbH"}, http.StatusCreated, &company)
	f.company = company.ID

	var year struct {
		ID uuid.UUID `json:"id"`
	}
	f.request(t, http.MethodPost, "/v1/fiscal-years", map[string]any{
		"company_id": f.company, "year": 2025,
	}, http.StatusCreated, &year)
	f.year = year.ID
	return f
}

// request performs a JSON round trip and decodes the response into out.
func (f *apiFixture) request(t *testing.T, method, path string, body any, wantStatus int, out any) {
	t.Helper()
	var buf io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		buf = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != wantStatus {
		t.Fatalf("%s %s: want status %d, got %d (body %s)", method, path, wantStatus, rec.Code, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			t.Fatalf("%s %s: decode response: %v (body %s)", method, path, err, rec.Body.String())
		}
	}
}

func (f *apiFixture) createAccount(t *testing.T, code, name, typ string) {
	t.Helper()
	f.request(t, http.MethodPost, "/v1/accounts", map[string]any{
		"company_id": f.company, "code": code, "name": name, "type": typ,
	}, http.StatusCreated, nil)
}

func (f *apiFixture) entryBody(lines ...map[string]any) map[string]any {
	return map[string]any{
		"company_id":   f.company,
		"booking_date": "2025-06-15",
		"description":  "Testbuchung",
		"lines":        lines,
	}
}

func ln(code, side, amount string) map[string]any {
	return map[string]any{"account_code": code, "side": side, "amount": amount}
}

func TestEntryLifecycle(t *testing.T) {
	f := newAPI(t)
	f.createAccount(t, "1200", "Bank", "asset")
	f.createAccount(t, "4400", "Erlöse 19 % USt", "revenue")

	var entry struct {
		ID       uuid.UUID `json:"id"`
		Sequence int       `json:"sequence"`
		PostedAt *string   `json:"posted_at"`
		Lines    []struct {
			Amount string `json:"amount"`
		} `json:"lines"`
	}
	f.request(t, http.MethodPost, "/v1/entries", f.entryBody(
		ln("1200", "debit", "119.00"),
		ln("4400", "credit", "119.00"),
	), http.StatusCreated, &entry)
	if entry.PostedAt == nil {
		t.Fatal("entry must be posted")
	}
	if entry.Sequence != 1000 {
		t.Fatalf("sequence: want 1000, got %d", entry.Sequence)
	}
	if entry.Lines[0].Amount != "119.00" {
		t.Fatalf("amount formatting: got %q", entry.Lines[0].Amount)
	}

	var list []json.RawMessage
	f.request(t, http.MethodGet, "/v1/entries?company_id="+f.company.String(), nil, http.StatusOK, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(list))
	}

	// GoBD: a posted entry cannot be deleted.
	var apiErr errorBody
	f.request(t, http.MethodDelete,
		fmt.Sprintf("/v1/entries/%s?company_id=%s", entry.ID, f.company),
		nil, http.StatusConflict, &apiErr)
	if apiErr.Code != "immutable_entry" {
		t.Fatalf("error code: want immutable_entry, got %q", apiErr.Code)
	}
}

func TestDraftCanBeDeleted(t *testing.T) {
	f := newAPI(t)
	f.createAccount(t, "1200", "Bank", "asset")
	f.createAccount(t, "4400", "Erlöse 19 % USt", "revenue")

	var draft struct {
		ID       uuid.UUID `json:"id"`
		PostedAt *string   `json:"posted_at"`
	}
	f.request(t, http.MethodPost, "/v1/entries/draft", f.entryBody(
		ln("1200", "debit", "10.00"),
		ln("4400", "credit", "10.00"),
	), http.StatusCreated, &draft)
	if draft.PostedAt != nil {
		t.Fatal("draft must not be posted")
	}
	f.request(t, http.MethodDelete,
		fmt.Sprintf("/v1/entries/%s?company_id=%s", draft.ID, f.company),
		nil, http.StatusNoContent, nil)
}

func TestUnbalancedEntryReturns422(t *testing.T) {
	f := newAPI(t)
	f.createAccount(t, "1200", "Bank", "asset")
	f.createAccount(t, "4400", "Erlöse 19 % USt", "revenue")

	var apiErr errorBody
	f.request(t, http.MethodPost, "/v1/entries", f.entryBody(
		ln("1200", "debit", "100.00"),
		ln("4400", "credit", "99.00"),
	), http.StatusUnprocessableEntity, &apiErr)
	if apiErr.Code != "validation_error" || len(apiErr.Details) == 0 {
		t.Fatalf("expected validation details, got %+v", apiErr)
	}
}

func TestReportEndpoints(t *testing.T) {
	f := newAPI(t)
	f.createAccount(t, "1200", "Bank", "asset")
	f.createAccount(t, "4400", "Erlöse 19 % USt", "revenue")
	f.request(t, http.MethodPost, "/v1/entries", f.entryBody(
		ln("1200", "debit", "3000.00"),
		ln("4400", "credit", "3000.00"),
	), http.StatusCreated, nil)

	query := fmt.Sprintf("company_id=%s&fiscal_year_id=%s", f.company, f.year)

	var guv fibu.GuVReport
	f.request(t, http.MethodGet, "/v1/reports/guv?"+query, nil, http.StatusOK, &guv)
	if !guv.NetIncome.Equal(decimal.RequireFromString("3000")) {
		t.Fatalf("net income: got %s", guv.NetIncome)
	}
	if guv.NetIncomeLabel != "Jahresüberschuss" {
		t.Fatalf("label: got %q", guv.NetIncomeLabel)
	}

	var sheet fibu.BalanceReport
	f.request(t, http.MethodGet, "/v1/reports/balance-sheet?"+query, nil, http.StatusOK, &sheet)
	if !sheet.Balanced {
		t.Fatalf("sheet must balance: %+v", sheet)
	}
	if !sheet.AktivaTotal.Equal(decimal.RequireFromString("3000")) {
		t.Fatalf("aktiva total: got %s", sheet.AktivaTotal)
	}
}

func TestFiscalYearCloseFlow(t *testing.T) {
	f := newAPI(t)
	f.createAccount(t, "1200", "Bank", "asset")
	f.createAccount(t, "4400", "Erlöse 19 % USt", "revenue")

	f.request(t, http.MethodPost, "/v1/fiscal-years/"+f.year.String()+"/opening-balance", map[string]any{
		"company_id": f.company,
		"lines": []map[string]any{
			{"account_code": "1200", "amount": "1000.00"},
			{"account_code": "0800", "amount": "1000.00"},
		},
	}, http.StatusCreated, nil)

	f.request(t, http.MethodPost, "/v1/entries", f.entryBody(
		ln("1200", "debit", "500.00"),
		ln("4400", "credit", "500.00"),
	), http.StatusCreated, nil)

	var sheet struct {
		Type string             `json:"type"`
		Data fibu.BalanceReport `json:"data"`
	}
	f.request(t, http.MethodPost, "/v1/fiscal-years/"+f.year.String()+"/close", map[string]any{
		"company_id": f.company, "create_next_opening": false,
	}, http.StatusOK, &sheet)
	if sheet.Type != "closing" || !sheet.Data.Balanced {
		t.Fatalf("unexpected closing sheet: %+v", sheet)
	}

	var apiErr errorBody
	f.request(t, http.MethodPost, "/v1/fiscal-years/"+f.year.String()+"/close", map[string]any{
		"company_id": f.company, "create_next_opening": false,
	}, http.StatusConflict, &apiErr)
	if apiErr.Code != "fiscal_year_closed" {
		t.Fatalf("error code: want fiscal_year_closed, got %q", apiErr.Code)
	}

	// Mutation in the closed year is refused as well.
	f.request(t, http.MethodPost, "/v1/entries", f.entryBody(
		ln("1200", "debit", "1.00"),
		ln("4400", "credit", "1.00"),
	), http.StatusConflict, &apiErr)
	if apiErr.Code != "fiscal_year_closed" {
		t.Fatalf("error code: want fiscal_year_closed, got %q", apiErr.Code)
	}
}

func TestUStVAEndpoint(t *testing.T) {
	f := newAPI(t)
	f.createAccount(t, "1200", "Bank", "asset")
	f.createAccount(t, "4400", "Erlöse 19 % USt", "revenue")
	f.createAccount(t, "1776", "Umsatzsteuer 19 %", "liability")

	body := f.entryBody(
		ln("1200", "debit", "119.00"),
		ln("4400", "credit", "100.00"),
		ln("1776", "credit", "19.00"),
	)
	body["booking_date"] = "2025-03-10"
	f.request(t, http.MethodPost, "/v1/entries", body, http.StatusCreated, nil)

	var data fibu.UStVAData
	f.request(t, http.MethodGet,
		"/v1/reports/ustva?company_id="+f.company.String()+"&start_date=2025-03-01&end_date=2025-03-31",
		nil, http.StatusOK, &data)
	if data.PeriodType != fibu.UStVAPeriodMonthly {
		t.Fatalf("period type: got %s", data.PeriodType)
	}
	if !data.NetVATLiability.Equal(decimal.RequireFromString("19")) {
		t.Fatalf("net VAT liability: got %s", data.NetVATLiability)
	}
}

func TestKStReportFlow(t *testing.T) {
	f := newAPI(t)
	f.createAccount(t, "1200", "Bank", "asset")
	f.createAccount(t, "4400", "Erlöse 19 % USt", "revenue")
	f.request(t, http.MethodPost, "/v1/entries", f.entryBody(
		ln("1200", "debit", "3000.00"),
		ln("4400", "credit", "3000.00"),
	), http.StatusCreated, nil)

	var report struct {
		ID     uuid.UUID     `json:"id"`
		Status string        `json:"status"`
		KSt    *fibu.KStData `json:"kst"`
	}
	f.request(t, http.MethodPost, "/v1/reports/kst", map[string]any{
		"company_id":     f.company,
		"fiscal_year_id": f.year,
		"adjustments":    map[string]any{"non_deductible_expenses": "500.00"},
	}, http.StatusCreated, &report)
	if report.Status != "draft" || report.KSt == nil {
		t.Fatalf("unexpected report: %+v", report)
	}
	if !report.KSt.KStAmount.Equal(decimal.RequireFromString("525")) {
		t.Fatalf("KSt amount: got %s", report.KSt.KStAmount)
	}
	if !report.KSt.SolidaritySurcharge.Equal(decimal.RequireFromString("28.88")) {
		t.Fatalf("Soli: got %s", report.KSt.SolidaritySurcharge)
	}

	f.request(t, http.MethodPost, "/v1/reports/tax/"+report.ID.String()+"/status", map[string]any{
		"company_id": f.company, "status": "submitted",
	}, http.StatusOK, nil)

	// Recalculation after submission is refused.
	var apiErr errorBody
	f.request(t, http.MethodPost, "/v1/reports/tax/"+report.ID.String()+"/recalculate", map[string]any{
		"company_id":  f.company,
		"adjustments": map[string]any{},
	}, http.StatusConflict, &apiErr)
	if apiErr.Code != "conflict" {
		t.Fatalf("error code: want conflict, got %q", apiErr.Code)
	}
}

func TestAccountTypeMismatchRejected(t *testing.T) {
	f := newAPI(t)
	var apiErr errorBody
	f.request(t, http.MethodPost, "/v1/accounts", map[string]any{
		"company_id": f.company, "code": "1200", "name": "Bank", "type": "revenue",
	}, http.StatusUnprocessableEntity, &apiErr)
	if apiErr.Code != "validation_error" {
		t.Fatalf("error code: want validation_error, got %q", apiErr.Code)
	}
}

func TestUnknownCompanyReturns404(t *testing.T) {
	f := newAPI(t)
	var apiErr errorBody
	f.request(t, http.MethodGet, "/v1/companies/"+uuid.NewString(), nil, http.StatusNotFound, &apiErr)
	if apiErr.Code != "not_found" {
		t.Fatalf("error code: want not_found, got %q", apiErr.Code)
	}
}

func TestHealthEndpoints(t *testing.T) {
	f := newAPI(t)
	f.request(t, http.MethodGet, "/healthz", nil, http.StatusOK, nil)
	f.request(t, http.MethodGet, "/readyz", nil, http.StatusOK, nil)
}
