package kontenplan

import (
	"github.com/shopspring/decimal"

	"github.com/buchwerk/fibu/internal/fibu"
)

// Rule maps an account category to its balance sheet section. A fixed rule
// always places the category at RSID. A bidirectional rule flips between
// DebitRSID and CreditRSID depending on the sign of the account's net
// balance (saldo-dependent placement, e.g. a bank account in credit shows
// up under Verbindlichkeiten gegenüber Kreditinstituten).
type Rule struct {
	Name       string `yaml:"name"`
	RSID       RSID   `yaml:"rsid,omitempty"`
	DebitRSID  RSID   `yaml:"debit,omitempty"`
	CreditRSID RSID   `yaml:"credit,omitempty"`
}

// Bidirectional reports whether the rule resolves per balance direction.
func (r Rule) Bidirectional() bool { return r.RSID == "" }

// Resolve returns the section for an account of the given natural type with
// the given net balance expressed as debit minus credit.
//
// Balances within a cent of zero are placed on the side matching the
// account's static natural type; otherwise a non-negative net balance is a
// debit balance and selects the debit-side section.
func (r Rule) Resolve(typ fibu.AccountType, debitNet decimal.Decimal) RSID {
	if !r.Bidirectional() {
		return r.RSID
	}
	if debitNet.Abs().LessThan(fibu.Epsilon) {
		if typ.NaturalSide() == fibu.SideDebit {
			return r.DebitRSID
		}
		return r.CreditRSID
	}
	if debitNet.IsNegative() {
		return r.CreditRSID
	}
	return r.DebitRSID
}

// sections returns every RSID the rule references.
func (r Rule) sections() []RSID {
	if r.Bidirectional() {
		return []RSID{r.DebitRSID, r.CreditRSID}
	}
	return []RSID{r.RSID}
}
