// Package journal implements the ledger rules: balanced double-entry
// postings, GoBD immutability once an entry is posted, and fiscal-year
// gating of every mutation.
package journal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/buchwerk/fibu/internal/errs"
	"github.com/buchwerk/fibu/internal/fibu"
)

// Repo defines read operations needed by the service.
type Repo interface {
	AccountsByCodes(ctx context.Context, companyID uuid.UUID, codes []string) (map[string]fibu.Account, error)
	EntryByID(ctx context.Context, companyID, entryID uuid.UUID) (fibu.JournalEntry, error)
	EntriesByCompany(ctx context.Context, companyID uuid.UUID) ([]fibu.JournalEntry, error)
	FiscalYearForDate(ctx context.Context, companyID uuid.UUID, date time.Time) (fibu.FiscalYear, error)
}

// Writer defines write operations needed by the service.
type Writer interface {
	CreateJournalEntry(ctx context.Context, e fibu.JournalEntry) (fibu.JournalEntry, error)
	// MarkEntryPosted sets posted_at if and only if it is still unset;
	// a posted entry yields ErrImmutableEntry.
	MarkEntryPosted(ctx context.Context, companyID, entryID uuid.UUID, at time.Time) (fibu.JournalEntry, error)
	DeleteJournalEntry(ctx context.Context, companyID, entryID uuid.UUID) error
}

// BankReconciler is the external reconciliation collaborator. Deleting a
// draft whose lines were matched against bank transactions reverts those
// transactions to pending.
type BankReconciler interface {
	ResetToPending(ctx context.Context, bankTransactionID uuid.UUID) error
}

// Service exposes validation, posting and deletion of journal entries.
type Service interface {
	Validate(ctx context.Context, e fibu.JournalEntry) error
	SaveDraft(ctx context.Context, e fibu.JournalEntry) (fibu.JournalEntry, error)
	Post(ctx context.Context, e fibu.JournalEntry) (fibu.JournalEntry, error)
	Delete(ctx context.Context, companyID, entryID uuid.UUID) error
	List(ctx context.Context, companyID uuid.UUID) ([]fibu.JournalEntry, error)
}

type service struct {
	repo       Repo
	writer     Writer
	reconciler BankReconciler
}

// New constructs the ledger service. The reconciler may be nil when bank
// reconciliation is not wired (tests, CLI imports).
func New(repo Repo, writer Writer, reconciler BankReconciler) Service {
	return &service{repo: repo, writer: writer, reconciler: reconciler}
}

// two decimal places is the finest granularity a posted amount may carry.
var centScale = decimal.NewFromInt(100)

// Validate runs every pre-commit check and aggregates all violations so the
// caller can surface them at once. A closed fiscal year or a missing fiscal
// year for the booking date fail immediately since nothing else is
// meaningful then.
func (s *service) Validate(ctx context.Context, e fibu.JournalEntry) error {
	if e.CompanyID == uuid.Nil {
		return errs.ErrInvalid
	}
	switch e.Type {
	case fibu.EntryTypeNormal, fibu.EntryTypeOpening, fibu.EntryTypeClosing:
	default:
		return errs.ValidationErrors{fmt.Sprintf("entry_type %q is not normal|opening|closing", e.Type)}
	}

	fy, err := s.repo.FiscalYearForDate(ctx, e.CompanyID, e.BookingDate)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.ValidationErrors{fmt.Sprintf("no fiscal year contains booking date %s", e.BookingDate.Format("2006-01-02"))}
		}
		return err
	}
	if fy.Closed {
		return errs.ErrFiscalYearClosed
	}

	var v errs.ValidationErrors
	if len(e.Lines) < 2 {
		v = append(v, "at least 2 line items required")
	}

	codes := make([]string, 0, len(e.Lines))
	sumDebit, sumCredit := decimal.Zero, decimal.Zero
	for i, ln := range e.Lines {
		if ln.AccountCode == "" {
			v = append(v, fmt.Sprintf("line[%d]: account code required", i))
			continue
		}
		if !ln.Amount.IsPositive() {
			v = append(v, fmt.Sprintf("line[%d]: amount must be > 0", i))
		}
		if !ln.Amount.Mul(centScale).Equal(ln.Amount.Mul(centScale).Floor()) {
			v = append(v, fmt.Sprintf("line[%d]: amount %s has more than 2 decimal places", i, ln.Amount))
		}
		switch ln.Side {
		case fibu.SideDebit:
			sumDebit = sumDebit.Add(ln.Amount)
		case fibu.SideCredit:
			sumCredit = sumCredit.Add(ln.Amount)
		default:
			v = append(v, fmt.Sprintf("line[%d]: side must be debit or credit", i))
		}
		codes = append(codes, ln.AccountCode)
	}

	// Exact decimal equality, no tolerance at the ledger layer.
	if !sumDebit.Equal(sumCredit) {
		v = append(v, fmt.Sprintf("sum(debits) %s must equal sum(credits) %s", sumDebit.StringFixed(2), sumCredit.StringFixed(2)))
	}

	accs, err := s.repo.AccountsByCodes(ctx, e.CompanyID, codes)
	if err != nil {
		return err
	}
	for i, ln := range e.Lines {
		if ln.AccountCode == "" {
			continue
		}
		acc, ok := accs[ln.AccountCode]
		if !ok {
			v = append(v, fmt.Sprintf("line[%d]: unknown account %s", i, ln.AccountCode))
			continue
		}
		if !acc.Active {
			v = append(v, fmt.Sprintf("line[%d]: account %s is inactive", i, ln.AccountCode))
		}
		// Carryforward accounts are reserved for the EBK/SBK workflows.
		if acc.System && e.Type == fibu.EntryTypeNormal {
			v = append(v, fmt.Sprintf("line[%d]: account %s is reserved for opening/closing entries", i, ln.AccountCode))
		}
	}

	return v.OrNil()
}

// SaveDraft persists an entry without posting it. Drafts stay editable and
// deletable while their fiscal year is open.
func (s *service) SaveDraft(ctx context.Context, e fibu.JournalEntry) (fibu.JournalEntry, error) {
	if err := s.Validate(ctx, e); err != nil {
		return fibu.JournalEntry{}, err
	}
	prepared, err := s.prepare(ctx, e)
	if err != nil {
		return fibu.JournalEntry{}, err
	}
	return s.writer.CreateJournalEntry(ctx, prepared)
}

// Post validates the draft and persists it with posted_at set in the same
// write, making it permanently immutable. When the draft already exists its
// stored lines are posted; posting a posted entry fails.
func (s *service) Post(ctx context.Context, e fibu.JournalEntry) (fibu.JournalEntry, error) {
	if e.ID != uuid.Nil {
		stored, err := s.repo.EntryByID(ctx, e.CompanyID, e.ID)
		if err != nil {
			return fibu.JournalEntry{}, err
		}
		if stored.Posted() {
			return fibu.JournalEntry{}, errs.ErrImmutableEntry
		}
		if err := s.Validate(ctx, stored); err != nil {
			return fibu.JournalEntry{}, err
		}
		return s.writer.MarkEntryPosted(ctx, e.CompanyID, e.ID, time.Now().UTC())
	}
	if err := s.Validate(ctx, e); err != nil {
		return fibu.JournalEntry{}, err
	}
	prepared, err := s.prepare(ctx, e)
	if err != nil {
		return fibu.JournalEntry{}, err
	}
	now := time.Now().UTC()
	prepared.PostedAt = &now
	return s.writer.CreateJournalEntry(ctx, prepared)
}

// Delete removes a draft entry. Posted entries are immutable (GoBD) and a
// delete always fails with ErrImmutableEntry; drafts in closed years cannot
// be touched either. Lines linked to bank transactions revert those
// transactions to pending.
func (s *service) Delete(ctx context.Context, companyID, entryID uuid.UUID) error {
	if companyID == uuid.Nil || entryID == uuid.Nil {
		return errs.ErrInvalid
	}
	e, err := s.repo.EntryByID(ctx, companyID, entryID)
	if err != nil {
		return err
	}
	if e.Posted() {
		return errs.ErrImmutableEntry
	}
	fy, err := s.repo.FiscalYearForDate(ctx, companyID, e.BookingDate)
	if err == nil && fy.Closed {
		return errs.ErrFiscalYearClosed
	}
	if err := s.writer.DeleteJournalEntry(ctx, companyID, entryID); err != nil {
		return err
	}
	if s.reconciler != nil {
		for _, ln := range e.Lines {
			if ln.BankTransactionID == nil {
				continue
			}
			if err := s.reconciler.ResetToPending(ctx, *ln.BankTransactionID); err != nil {
				return fmt.Errorf("reset bank transaction %s: %w", ln.BankTransactionID, err)
			}
		}
	}
	return nil
}

// List returns all entries of a company ordered by (booking_date, sequence, id).
func (s *service) List(ctx context.Context, companyID uuid.UUID) ([]fibu.JournalEntry, error) {
	if companyID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return s.repo.EntriesByCompany(ctx, companyID)
}

// prepare assigns identities, the fiscal year, account links and the default
// sequence for the entry type.
func (s *service) prepare(ctx context.Context, e fibu.JournalEntry) (fibu.JournalEntry, error) {
	fy, err := s.repo.FiscalYearForDate(ctx, e.CompanyID, e.BookingDate)
	if err != nil {
		return fibu.JournalEntry{}, err
	}
	codes := make([]string, 0, len(e.Lines))
	for _, ln := range e.Lines {
		codes = append(codes, ln.AccountCode)
	}
	accs, err := s.repo.AccountsByCodes(ctx, e.CompanyID, codes)
	if err != nil {
		return fibu.JournalEntry{}, err
	}

	entryID := uuid.New()
	lines := make([]fibu.LineItem, 0, len(e.Lines))
	for _, ln := range e.Lines {
		ln.ID = uuid.New()
		ln.EntryID = entryID
		ln.AccountID = accs[ln.AccountCode].ID
		lines = append(lines, ln)
	}
	seq := e.Sequence
	if seq == 0 {
		seq = e.Type.DefaultSequence()
	}
	return fibu.JournalEntry{
		ID:           entryID,
		CompanyID:    e.CompanyID,
		FiscalYearID: fy.ID,
		BookingDate:  e.BookingDate,
		Description:  e.Description,
		Type:         e.Type,
		Sequence:     seq,
		Lines:        lines,
	}, nil
}
