package fibu

import "github.com/shopspring/decimal"

// AccountBalance is one account's contribution to a report section.
type AccountBalance struct {
	Code   string          `json:"code"`
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// BalanceNode is a node of the recursive Aktiva/Passiva tree (§266 HGB).
// OwnTotal sums the directly attached account balances, Total adds the
// children's totals, computed leaves first.
type BalanceNode struct {
	ID       string           `json:"id"`
	Label    string           `json:"label"`
	Accounts []AccountBalance `json:"accounts,omitempty"`
	Children []*BalanceNode   `json:"children,omitempty"`
	OwnTotal decimal.Decimal  `json:"own_total"`
	Total    decimal.Decimal  `json:"total"`
}

// Child returns the direct child with the given id, or nil.
func (n *BalanceNode) Child(id string) *BalanceNode {
	for _, c := range n.Children {
		if c.ID == id {
			return c
		}
	}
	return nil
}

// Find walks the subtree for the node with the given id.
func (n *BalanceNode) Find(id string) *BalanceNode {
	if n.ID == id {
		return n
	}
	for _, c := range n.Children {
		if hit := c.Find(id); hit != nil {
			return hit
		}
	}
	return nil
}

// GuVSection is one position of the §275(2) HGB income statement.
// Computed positions (Ergebnis nach Steuern, Jahresüberschuss) carry no
// accounts; their subtotal is derived from the positions before them.
type GuVSection struct {
	Number   int              `json:"number"`
	ID       string           `json:"id"`
	Label    string           `json:"label"`
	Computed bool             `json:"computed,omitempty"`
	Accounts []AccountBalance `json:"accounts,omitempty"`
	Subtotal decimal.Decimal  `json:"subtotal"`
}

// GuVReport is the Gewinn- und Verlustrechnung (Gesamtkostenverfahren).
// Revenue positions carry positive subtotals, expense positions negative
// ones, so NetIncome is the plain sum over all non-computed positions.
type GuVReport struct {
	Sections       []GuVSection    `json:"sections"`
	NetIncome      decimal.Decimal `json:"net_income"`
	NetIncomeLabel string          `json:"net_income_label"`
}

// BalanceReport bundles the balance sheet with the GuV it depends on.
// Balanced is false when Aktiva != Passiva + NetIncome beyond the cent
// tolerance; callers decide whether to warn or block, the builder never
// fails on imbalance.
type BalanceReport struct {
	Aktiva       *BalanceNode    `json:"aktiva"`
	Passiva      *BalanceNode    `json:"passiva"`
	GuV          GuVReport       `json:"guv"`
	NetIncome    decimal.Decimal `json:"net_income"`
	AktivaTotal  decimal.Decimal `json:"aktiva_total"`
	PassivaTotal decimal.Decimal `json:"passiva_total"`
	Balanced     bool            `json:"balanced"`
}

// NetIncomeLabel returns the HGB label for a year's result.
func NetIncomeLabel(net decimal.Decimal) string {
	if net.IsNegative() {
		return "Jahresfehlbetrag"
	}
	return "Jahresüberschuss"
}
