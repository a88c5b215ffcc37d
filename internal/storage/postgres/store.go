// Package postgres provides a pgx-backed storage implementation that
// satisfies the repository and writer interfaces used by the services.
//
// It is intentionally small and explicit. Migrations that create the
// expected schema live under db/migrations. This package focuses on mapping
// between the domain entities and SQL rows and running the necessary
// statements/transactions. Monetary amounts are numeric(14,2) columns
// selected as text and parsed into decimals; balance sheet and tax report
// payloads are stored as JSON blobs.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/buchwerk/fibu/internal/errs"
	"github.com/buchwerk/fibu/internal/fibu"
)

// Store holds a pgx connection pool and implements the read/write interfaces
// used across the service layer. All methods are safe for concurrent use.
type Store struct {
	pool *pgxpool.Pool
}

// Open establishes a pgx pool using the provided connection string.
func Open(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool.
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ready pings the pool to verify connectivity.
func (s *Store) Ready(ctx context.Context) error { return s.pool.Ping(ctx) }

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// --- Companies ---

// CreateCompany inserts a company row.
func (s *Store) CreateCompany(ctx context.Context, c fibu.Company) (fibu.Company, error) {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `insert into companies (id, name) values ($1,$2)`, c.ID, c.Name)
	if err != nil {
		return fibu.Company{}, err
	}
	return c, nil
}

// CompanyByID fetches a single company.
func (s *Store) CompanyByID(ctx context.Context, companyID uuid.UUID) (fibu.Company, error) {
	var c fibu.Company
	err := s.pool.QueryRow(ctx, `select id, name from companies where id = $1`, companyID).Scan(&c.ID, &c.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return fibu.Company{}, errs.ErrNotFound
	}
	if err != nil {
		return fibu.Company{}, err
	}
	return c, nil
}

// --- Accounts ---

// CreateAccount inserts an account row. The (company_id, code) unique index
// maps to ErrConflict.
func (s *Store) CreateAccount(ctx context.Context, a fibu.Account) (fibu.Account, error) {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	var taxRate *string
	if a.TaxRate != nil {
		v := a.TaxRate.String()
		taxRate = &v
	}
	_, err := s.pool.Exec(ctx, `
		insert into accounts (id, company_id, code, name, type, tax_rate, presentation_rule, system, active)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, a.ID, a.CompanyID, a.Code, a.Name, a.Type, taxRate, a.PresentationRule, a.System, a.Active)
	if isUniqueViolation(err) {
		return fibu.Account{}, errs.ErrConflict
	}
	if err != nil {
		return fibu.Account{}, err
	}
	return a, nil
}

const accountCols = `id, company_id, code, name, type, tax_rate::text, coalesce(presentation_rule,''), system, active`

func scanAccount(row pgx.Row) (fibu.Account, error) {
	var a fibu.Account
	var taxRate *string
	if err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &taxRate, &a.PresentationRule, &a.System, &a.Active); err != nil {
		return fibu.Account{}, err
	}
	if taxRate != nil {
		r, err := decimal.NewFromString(*taxRate)
		if err != nil {
			return fibu.Account{}, fmt.Errorf("parse tax_rate: %w", err)
		}
		a.TaxRate = &r
	}
	return a, nil
}

// AccountByCode fetches a company's account by SKR03 code.
func (s *Store) AccountByCode(ctx context.Context, companyID uuid.UUID, code string) (fibu.Account, error) {
	row := s.pool.QueryRow(ctx, `select `+accountCols+` from accounts where company_id = $1 and code = $2`, companyID, code)
	a, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return fibu.Account{}, errs.ErrNotFound
	}
	return a, err
}

// AccountsByCompany returns all accounts of a company ordered by code.
func (s *Store) AccountsByCompany(ctx context.Context, companyID uuid.UUID) ([]fibu.Account, error) {
	rows, err := s.pool.Query(ctx, `select `+accountCols+` from accounts where company_id = $1 order by code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]fibu.Account, 0)
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// AccountsByCodes resolves the given codes for a company. Unknown codes are
// absent from the result.
func (s *Store) AccountsByCodes(ctx context.Context, companyID uuid.UUID, codes []string) (map[string]fibu.Account, error) {
	out := make(map[string]fibu.Account, len(codes))
	if len(codes) == 0 {
		return out, nil
	}
	rows, err := s.pool.Query(ctx, `select `+accountCols+` from accounts where company_id = $1 and code = any($2)`, companyID, codes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[a.Code] = a
	}
	return out, rows.Err()
}

// --- Journal entries ---

// CreateJournalEntry inserts an entry and its lines in one transaction.
func (s *Store) CreateJournalEntry(ctx context.Context, entry fibu.JournalEntry) (fibu.JournalEntry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fibu.JournalEntry{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		insert into entries (id, company_id, fiscal_year_id, booking_date, description, entry_type, sequence, posted_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.CompanyID, entry.FiscalYearID, entry.BookingDate, entry.Description, entry.Type, entry.Sequence, entry.PostedAt); err != nil {
		return fibu.JournalEntry{}, err
	}
	for _, ln := range entry.Lines {
		if _, err := tx.Exec(ctx, `
			insert into entry_lines (id, entry_id, account_id, account_code, side, amount, description, bank_transaction_id)
			values ($1,$2,$3,$4,$5,$6,$7,$8)
		`, ln.ID, entry.ID, ln.AccountID, ln.AccountCode, ln.Side, ln.Amount.StringFixed(2), ln.Description, ln.BankTransactionID); err != nil {
			return fibu.JournalEntry{}, fmt.Errorf("insert line: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fibu.JournalEntry{}, err
	}
	return entry, nil
}

// MarkEntryPosted sets posted_at if and only if it is still unset. The
// conditional update is the check-and-set; a posted entry is never touched.
func (s *Store) MarkEntryPosted(ctx context.Context, companyID, entryID uuid.UUID, at time.Time) (fibu.JournalEntry, error) {
	ct, err := s.pool.Exec(ctx, `
		update entries set posted_at = $1
		where id = $2 and company_id = $3 and posted_at is null
	`, at, entryID, companyID)
	if err != nil {
		return fibu.JournalEntry{}, err
	}
	if ct.RowsAffected() == 0 {
		// Missing or already posted; look once more to tell which.
		if _, err := s.EntryByID(ctx, companyID, entryID); err != nil {
			return fibu.JournalEntry{}, err
		}
		return fibu.JournalEntry{}, errs.ErrImmutableEntry
	}
	return s.EntryByID(ctx, companyID, entryID)
}

// DeleteJournalEntry removes a draft entry and its lines. Posted rows are
// refused at the SQL level as well.
func (s *Store) DeleteJournalEntry(ctx context.Context, companyID, entryID uuid.UUID) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `delete from entry_lines where entry_id = $1`, entryID); err != nil {
		return err
	}
	ct, err := tx.Exec(ctx, `
		delete from entries where id = $1 and company_id = $2 and posted_at is null
	`, entryID, companyID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		if _, err := s.EntryByID(ctx, companyID, entryID); err != nil {
			return err
		}
		return errs.ErrImmutableEntry
	}
	return tx.Commit(ctx)
}

const entryCols = `id, company_id, fiscal_year_id, booking_date, description, entry_type, sequence, posted_at`

// EntryByID returns an entry with lines populated.
func (s *Store) EntryByID(ctx context.Context, companyID, entryID uuid.UUID) (fibu.JournalEntry, error) {
	var e fibu.JournalEntry
	err := s.pool.QueryRow(ctx, `select `+entryCols+` from entries where id = $1 and company_id = $2`, entryID, companyID).
		Scan(&e.ID, &e.CompanyID, &e.FiscalYearID, &e.BookingDate, &e.Description, &e.Type, &e.Sequence, &e.PostedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return fibu.JournalEntry{}, errs.ErrNotFound
	}
	if err != nil {
		return fibu.JournalEntry{}, err
	}
	entries := []fibu.JournalEntry{e}
	if err := s.loadLines(ctx, entries); err != nil {
		return fibu.JournalEntry{}, err
	}
	return entries[0], nil
}

// EntriesByCompany returns all entries of a company in ledger order.
func (s *Store) EntriesByCompany(ctx context.Context, companyID uuid.UUID) ([]fibu.JournalEntry, error) {
	return s.queryEntries(ctx, `select `+entryCols+` from entries
		where company_id = $1
		order by booking_date, sequence, id`, companyID)
}

// EntriesByFiscalYear returns a fiscal year's entries in ledger order.
func (s *Store) EntriesByFiscalYear(ctx context.Context, companyID, fiscalYearID uuid.UUID) ([]fibu.JournalEntry, error) {
	return s.queryEntries(ctx, `select `+entryCols+` from entries
		where company_id = $1 and fiscal_year_id = $2
		order by booking_date, sequence, id`, companyID, fiscalYearID)
}

// EntriesByDateRange returns entries with booking_date inside [from, to].
func (s *Store) EntriesByDateRange(ctx context.Context, companyID uuid.UUID, from, to time.Time) ([]fibu.JournalEntry, error) {
	return s.queryEntries(ctx, `select `+entryCols+` from entries
		where company_id = $1 and booking_date >= $2 and booking_date <= $3
		order by booking_date, sequence, id`, companyID, from, to)
}

func (s *Store) queryEntries(ctx context.Context, sql string, args ...any) ([]fibu.JournalEntry, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]fibu.JournalEntry, 0)
	for rows.Next() {
		var e fibu.JournalEntry
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.FiscalYearID, &e.BookingDate, &e.Description, &e.Type, &e.Sequence, &e.PostedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := s.loadLines(ctx, entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (s *Store) loadLines(ctx context.Context, entries []fibu.JournalEntry) error {
	if len(entries) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(entries))
	idx := make(map[uuid.UUID]*fibu.JournalEntry, len(entries))
	for i := range entries {
		ids = append(ids, entries[i].ID)
		idx[entries[i].ID] = &entries[i]
	}
	rows, err := s.pool.Query(ctx, `
		select id, entry_id, account_id, account_code, side, amount::text, coalesce(description,''), bank_transaction_id
		from entry_lines
		where entry_id = any($1)
		order by account_code, id
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var ln fibu.LineItem
		var amount string
		if err := rows.Scan(&ln.ID, &ln.EntryID, &ln.AccountID, &ln.AccountCode, &ln.Side, &amount, &ln.Description, &ln.BankTransactionID); err != nil {
			return err
		}
		if ln.Amount, err = decimal.NewFromString(amount); err != nil {
			return fmt.Errorf("parse amount: %w", err)
		}
		if e := idx[ln.EntryID]; e != nil {
			e.Lines = append(e.Lines, ln)
		}
	}
	return rows.Err()
}

// --- Fiscal years ---

const fiscalYearCols = `id, company_id, year, start_date, end_date, closed, opening_posted_at, closing_posted_at, closed_at`

func scanFiscalYear(row pgx.Row) (fibu.FiscalYear, error) {
	var fy fibu.FiscalYear
	err := row.Scan(&fy.ID, &fy.CompanyID, &fy.Year, &fy.StartDate, &fy.EndDate, &fy.Closed, &fy.OpeningPostedAt, &fy.ClosingPostedAt, &fy.ClosedAt)
	return fy, err
}

// CreateFiscalYear inserts a fiscal year. One row per company and calendar
// year.
func (s *Store) CreateFiscalYear(ctx context.Context, fy fibu.FiscalYear) (fibu.FiscalYear, error) {
	if fy.ID == uuid.Nil {
		fy.ID = uuid.New()
	}
	_, err := s.pool.Exec(ctx, `
		insert into fiscal_years (id, company_id, year, start_date, end_date, closed)
		values ($1,$2,$3,$4,$5,false)
	`, fy.ID, fy.CompanyID, fy.Year, fy.StartDate, fy.EndDate)
	if isUniqueViolation(err) {
		return fibu.FiscalYear{}, errs.ErrConflict
	}
	if err != nil {
		return fibu.FiscalYear{}, err
	}
	return fy, nil
}

// FiscalYearByID fetches a company's fiscal year.
func (s *Store) FiscalYearByID(ctx context.Context, companyID, fiscalYearID uuid.UUID) (fibu.FiscalYear, error) {
	fy, err := scanFiscalYear(s.pool.QueryRow(ctx,
		`select `+fiscalYearCols+` from fiscal_years where id = $1 and company_id = $2`, fiscalYearID, companyID))
	if errors.Is(err, pgx.ErrNoRows) {
		return fibu.FiscalYear{}, errs.ErrNotFound
	}
	return fy, err
}

// FiscalYearByYear fetches the fiscal year for a calendar year.
func (s *Store) FiscalYearByYear(ctx context.Context, companyID uuid.UUID, year int) (fibu.FiscalYear, error) {
	fy, err := scanFiscalYear(s.pool.QueryRow(ctx,
		`select `+fiscalYearCols+` from fiscal_years where company_id = $1 and year = $2`, companyID, year))
	if errors.Is(err, pgx.ErrNoRows) {
		return fibu.FiscalYear{}, errs.ErrNotFound
	}
	return fy, err
}

// FiscalYearForDate fetches the fiscal year whose range contains the date.
func (s *Store) FiscalYearForDate(ctx context.Context, companyID uuid.UUID, date time.Time) (fibu.FiscalYear, error) {
	fy, err := scanFiscalYear(s.pool.QueryRow(ctx, `
		select `+fiscalYearCols+` from fiscal_years
		where company_id = $1 and start_date <= $2 and end_date >= $2
	`, companyID, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return fibu.FiscalYear{}, errs.ErrNotFound
	}
	return fy, err
}

// FiscalYearsByCompany lists a company's fiscal years ordered by year.
func (s *Store) FiscalYearsByCompany(ctx context.Context, companyID uuid.UUID) ([]fibu.FiscalYear, error) {
	rows, err := s.pool.Query(ctx,
		`select `+fiscalYearCols+` from fiscal_years where company_id = $1 order by year`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]fibu.FiscalYear, 0)
	for rows.Next() {
		fy, err := scanFiscalYear(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, fy)
	}
	return out, rows.Err()
}

// MarkOpeningPosted is the opening check-and-set. The conditional update
// serializes concurrent callers at the row level; the second caller sees
// zero rows affected.
func (s *Store) MarkOpeningPosted(ctx context.Context, fiscalYearID uuid.UUID, at time.Time) (fibu.FiscalYear, error) {
	ct, err := s.pool.Exec(ctx, `
		update fiscal_years set opening_posted_at = $1
		where id = $2 and closed = false and opening_posted_at is null
	`, at, fiscalYearID)
	if err != nil {
		return fibu.FiscalYear{}, err
	}
	if ct.RowsAffected() == 0 {
		return fibu.FiscalYear{}, s.fiscalYearTransitionErr(ctx, fiscalYearID)
	}
	fy, err := scanFiscalYear(s.pool.QueryRow(ctx, `select `+fiscalYearCols+` from fiscal_years where id = $1`, fiscalYearID))
	return fy, err
}

// CloseFiscalYear is the closing check-and-set. Of two concurrent closes
// only one update matches the closed = false predicate.
func (s *Store) CloseFiscalYear(ctx context.Context, fiscalYearID uuid.UUID, at time.Time) (fibu.FiscalYear, error) {
	ct, err := s.pool.Exec(ctx, `
		update fiscal_years set closed = true, closing_posted_at = $1, closed_at = $1
		where id = $2 and closed = false
	`, at, fiscalYearID)
	if err != nil {
		return fibu.FiscalYear{}, err
	}
	if ct.RowsAffected() == 0 {
		return fibu.FiscalYear{}, s.fiscalYearTransitionErr(ctx, fiscalYearID)
	}
	fy, err := scanFiscalYear(s.pool.QueryRow(ctx, `select `+fiscalYearCols+` from fiscal_years where id = $1`, fiscalYearID))
	return fy, err
}

// fiscalYearTransitionErr distinguishes a missing row from a lost
// check-and-set race.
func (s *Store) fiscalYearTransitionErr(ctx context.Context, fiscalYearID uuid.UUID) error {
	var closed bool
	var openingPostedAt *time.Time
	err := s.pool.QueryRow(ctx, `select closed, opening_posted_at from fiscal_years where id = $1`, fiscalYearID).
		Scan(&closed, &openingPostedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrNotFound
	}
	if err != nil {
		return err
	}
	if closed {
		return errs.ErrFiscalYearClosed
	}
	return errs.ErrConflict
}

// --- Balance sheet snapshots ---

// CreateBalanceSheet stores a snapshot with the report tree as a JSON blob.
// The partial unique index on posted snapshots per (fiscal_year_id, type)
// maps to ErrConflict.
func (s *Store) CreateBalanceSheet(ctx context.Context, sheet fibu.BalanceSheet) (fibu.BalanceSheet, error) {
	if sheet.ID == uuid.Nil {
		sheet.ID = uuid.New()
	}
	data, err := json.Marshal(sheet.Data)
	if err != nil {
		return fibu.BalanceSheet{}, err
	}
	_, err = s.pool.Exec(ctx, `
		insert into balance_sheets (id, fiscal_year_id, sheet_type, source, balance_date, posted_at, data)
		values ($1,$2,$3,$4,$5,$6,$7)
	`, sheet.ID, sheet.FiscalYearID, sheet.Type, sheet.Source, sheet.BalanceDate, sheet.PostedAt, data)
	if isUniqueViolation(err) {
		return fibu.BalanceSheet{}, errs.ErrConflict
	}
	if err != nil {
		return fibu.BalanceSheet{}, err
	}
	return sheet, nil
}

// BalanceSheetByType returns the latest snapshot for a fiscal year and type,
// posted snapshots first.
func (s *Store) BalanceSheetByType(ctx context.Context, fiscalYearID uuid.UUID, typ fibu.SheetType) (fibu.BalanceSheet, error) {
	var sheet fibu.BalanceSheet
	var data []byte
	err := s.pool.QueryRow(ctx, `
		select id, fiscal_year_id, sheet_type, source, balance_date, posted_at, data
		from balance_sheets
		where fiscal_year_id = $1 and sheet_type = $2
		order by (posted_at is null), balance_date desc
		limit 1
	`, fiscalYearID, typ).Scan(&sheet.ID, &sheet.FiscalYearID, &sheet.Type, &sheet.Source, &sheet.BalanceDate, &sheet.PostedAt, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return fibu.BalanceSheet{}, errs.ErrNotFound
	}
	if err != nil {
		return fibu.BalanceSheet{}, err
	}
	if err := json.Unmarshal(data, &sheet.Data); err != nil {
		return fibu.BalanceSheet{}, fmt.Errorf("decode balance sheet data: %w", err)
	}
	return sheet, nil
}

// --- Tax reports ---

// CreateTaxReport inserts a tax report with its generated payload as JSON.
func (s *Store) CreateTaxReport(ctx context.Context, r fibu.TaxReport) (fibu.TaxReport, error) {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	data, err := taxData(r)
	if err != nil {
		return fibu.TaxReport{}, err
	}
	_, err = s.pool.Exec(ctx, `
		insert into tax_reports (id, company_id, report_type, status, period_start, period_end, fiscal_year_id, created_at, updated_at, data)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, r.ID, r.CompanyID, r.Type, r.Status, r.PeriodStart, r.PeriodEnd, r.FiscalYearID, r.CreatedAt, r.UpdatedAt, data)
	if err != nil {
		return fibu.TaxReport{}, err
	}
	return r, nil
}

// UpdateTaxReport replaces status and payload of a stored report.
func (s *Store) UpdateTaxReport(ctx context.Context, r fibu.TaxReport) (fibu.TaxReport, error) {
	data, err := taxData(r)
	if err != nil {
		return fibu.TaxReport{}, err
	}
	ct, err := s.pool.Exec(ctx, `
		update tax_reports set status = $1, updated_at = $2, data = $3
		where id = $4 and company_id = $5
	`, r.Status, r.UpdatedAt, data, r.ID, r.CompanyID)
	if err != nil {
		return fibu.TaxReport{}, err
	}
	if ct.RowsAffected() == 0 {
		return fibu.TaxReport{}, errs.ErrNotFound
	}
	return r, nil
}

// TaxReportByID fetches a company's tax report.
func (s *Store) TaxReportByID(ctx context.Context, companyID, reportID uuid.UUID) (fibu.TaxReport, error) {
	var r fibu.TaxReport
	var data []byte
	err := s.pool.QueryRow(ctx, `
		select id, company_id, report_type, status, period_start, period_end, fiscal_year_id, created_at, updated_at, data
		from tax_reports
		where id = $1 and company_id = $2
	`, reportID, companyID).Scan(&r.ID, &r.CompanyID, &r.Type, &r.Status, &r.PeriodStart, &r.PeriodEnd, &r.FiscalYearID, &r.CreatedAt, &r.UpdatedAt, &data)
	if errors.Is(err, pgx.ErrNoRows) {
		return fibu.TaxReport{}, errs.ErrNotFound
	}
	if err != nil {
		return fibu.TaxReport{}, err
	}
	switch r.Type {
	case fibu.TaxReportUStVA:
		r.UStVA = &fibu.UStVAData{}
		err = json.Unmarshal(data, r.UStVA)
	case fibu.TaxReportKSt:
		r.KSt = &fibu.KStData{}
		err = json.Unmarshal(data, r.KSt)
	}
	if err != nil {
		return fibu.TaxReport{}, fmt.Errorf("decode tax report data: %w", err)
	}
	return r, nil
}

func taxData(r fibu.TaxReport) ([]byte, error) {
	switch r.Type {
	case fibu.TaxReportUStVA:
		return json.Marshal(r.UStVA)
	case fibu.TaxReportKSt:
		return json.Marshal(r.KSt)
	}
	return nil, fmt.Errorf("unknown tax report type %q: %w", r.Type, errs.ErrInvalid)
}

// --- Bank transactions ---

// ResetToPending implements journal.BankReconciler.
func (s *Store) ResetToPending(ctx context.Context, bankTransactionID uuid.UUID) error {
	ct, err := s.pool.Exec(ctx, `
		update bank_transactions set status = 'pending' where id = $1
	`, bankTransactionID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return errs.ErrNotFound
	}
	return nil
}
