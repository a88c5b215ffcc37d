// Package account implements the chart-of-accounts rules: codes unique per
// company, types consistent with the static kontenplan, and on-demand
// instantiation of accounts from the SKR03 templates.
package account

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/buchwerk/fibu/internal/errs"
	"github.com/buchwerk/fibu/internal/fibu"
	"github.com/buchwerk/fibu/internal/kontenplan"
)

type Repo interface {
	AccountsByCompany(ctx context.Context, companyID uuid.UUID) ([]fibu.Account, error)
	AccountByCode(ctx context.Context, companyID uuid.UUID, code string) (fibu.Account, error)
}

type Writer interface {
	CreateAccount(ctx context.Context, a fibu.Account) (fibu.Account, error)
}

type Service interface {
	ValidateCreate(a fibu.Account) error
	Create(ctx context.Context, a fibu.Account) (fibu.Account, error)
	List(ctx context.Context, companyID uuid.UUID) ([]fibu.Account, error)
	// FindOrCreateByCode resolves an account by SKR03 code, instantiating it
	// from the template table when it does not exist yet.
	FindOrCreateByCode(ctx context.Context, companyID uuid.UUID, code string) (fibu.Account, error)
}

type service struct {
	repo   Repo
	writer Writer
	table  *kontenplan.Table
}

func New(repo Repo, writer Writer, table *kontenplan.Table) Service {
	return &service{repo: repo, writer: writer, table: table}
}

func (s *service) ValidateCreate(a fibu.Account) error {
	if a.CompanyID == uuid.Nil {
		return errs.ErrInvalid
	}
	var v errs.ValidationErrors
	if a.Name == "" {
		v = append(v, "name is required")
	}
	if len(a.Code) != 4 {
		v = append(v, "code must be a 4-digit SKR03 number")
	} else if _, err := strconv.Atoi(a.Code); err != nil {
		v = append(v, "code must be numeric")
	}
	if !a.Type.Valid() {
		v = append(v, fmt.Sprintf("type %q is not a valid account type", a.Type))
	}
	if len(v) > 0 {
		return v
	}
	// The static table decides the type; a mismatch would misplace every
	// balance in the reports.
	inferred, err := s.table.AccountTypeFor(a.Code)
	if err != nil {
		return errs.ValidationErrors{fmt.Sprintf("code %s is not covered by the kontenplan", a.Code)}
	}
	if inferred != a.Type {
		return errs.ValidationErrors{fmt.Sprintf("code %s is %s per kontenplan, not %s", a.Code, inferred, a.Type)}
	}
	return nil
}

func (s *service) Create(ctx context.Context, a fibu.Account) (fibu.Account, error) {
	if err := s.ValidateCreate(a); err != nil {
		return fibu.Account{}, err
	}
	if _, err := s.repo.AccountByCode(ctx, a.CompanyID, a.Code); err == nil {
		return fibu.Account{}, fmt.Errorf("account code %s already exists: %w", a.Code, errs.ErrConflict)
	} else if !errors.Is(err, errs.ErrNotFound) {
		return fibu.Account{}, err
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Active = true
	return s.writer.CreateAccount(ctx, a)
}

func (s *service) List(ctx context.Context, companyID uuid.UUID) ([]fibu.Account, error) {
	if companyID == uuid.Nil {
		return nil, errs.ErrInvalid
	}
	return s.repo.AccountsByCompany(ctx, companyID)
}

func (s *service) FindOrCreateByCode(ctx context.Context, companyID uuid.UUID, code string) (fibu.Account, error) {
	if companyID == uuid.Nil || code == "" {
		return fibu.Account{}, errs.ErrInvalid
	}
	existing, err := s.repo.AccountByCode(ctx, companyID, code)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, errs.ErrNotFound) {
		return fibu.Account{}, err
	}
	a, err := s.fromTemplate(companyID, code)
	if err != nil {
		return fibu.Account{}, err
	}
	created, err := s.writer.CreateAccount(ctx, a)
	if err != nil {
		// Lost a race against a concurrent create; the stored account wins.
		if errors.Is(err, errs.ErrConflict) {
			return s.repo.AccountByCode(ctx, companyID, code)
		}
		return fibu.Account{}, err
	}
	return created, nil
}

func (s *service) fromTemplate(companyID uuid.UUID, code string) (fibu.Account, error) {
	typ, err := s.table.AccountTypeFor(code)
	if err != nil {
		return fibu.Account{}, err
	}
	a := fibu.Account{
		ID:        uuid.New(),
		CompanyID: companyID,
		Code:      code,
		Name:      templateName(code),
		Type:      typ,
		System:    code[0] == '9',
		Active:    true,
	}
	if rate, ok := templateTaxRates[code]; ok {
		r := rate
		a.TaxRate = &r
	}
	return a, nil
}
