// Package kontenplan holds the static chart-of-accounts table: account code
// ranges mapped to semantic categories (CIDs), presentation rules deciding
// balance sheet placement, the §266 HGB Aktiva/Passiva tree and the §275(2)
// HGB GuV positions. The table is loaded and validated once at startup;
// lookups are pure and safe for concurrent use.
package kontenplan

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/buchwerk/fibu/internal/errs"
	"github.com/buchwerk/fibu/internal/fibu"
)

// CID identifies an account's semantic category, independent of where the
// balance ends up in a report (e.g. "b.aktiva.umlaufvermoegen.bank").
type CID string

// RSID identifies a node of the Aktiva/Passiva tree or a GuV position where
// a balance is displayed.
type RSID string

// Node is one section of the balance sheet structure per §266 HGB.
type Node struct {
	ID       string  `yaml:"id"`
	Label    string  `yaml:"label"`
	Children []*Node `yaml:"children,omitempty"`
}

// Category binds a set of account code ranges to a CID. Balance sheet
// categories carry a presentation rule name; GuV categories carry the GuV
// position they report under.
type Category struct {
	CID   CID      `yaml:"cid"`
	Codes []string `yaml:"codes"`
	Rule  string   `yaml:"rule,omitempty"`
	GuV   string   `yaml:"guv,omitempty"`
}

// GuVSectionDef is one of the fixed 17 positions of the income statement.
// Computed positions derive their subtotal from the positions before them
// and never carry accounts.
type GuVSectionDef struct {
	Number   int    `yaml:"number"`
	ID       string `yaml:"id"`
	Label    string `yaml:"label"`
	Computed bool   `yaml:"computed,omitempty"`
}

type rawTable struct {
	Rules      []Rule          `yaml:"rules"`
	Categories []Category      `yaml:"categories"`
	Aktiva     *Node           `yaml:"aktiva"`
	Passiva    *Node           `yaml:"passiva"`
	GuV        []GuVSectionDef `yaml:"guv"`
}

// Table is the immutable lookup built from the static YAML chart.
type Table struct {
	rules      map[string]Rule
	categories []Category
	byCode     map[string]Category
	aktiva     *Node
	passiva    *Node
	aktivaIDs  map[RSID]struct{}
	passivaIDs map[RSID]struct{}
	guv        []GuVSectionDef
	guvByID    map[string]GuVSectionDef
}

//go:embed skr03.yaml
var embedded []byte

var (
	defaultOnce  sync.Once
	defaultTable *Table
)

// Default returns the embedded SKR03 table. A broken embedded table is a
// build defect, so Default panics instead of returning an error.
func Default() *Table {
	defaultOnce.Do(func() {
		t, err := Parse(embedded)
		if err != nil {
			panic(fmt.Sprintf("kontenplan: embedded table invalid: %v", err))
		}
		defaultTable = t
	})
	return defaultTable
}

// LoadFile parses and validates a table from a YAML file, for deployments
// that ship their own chart.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kontenplan: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds the table and validates every cross reference. Lookups after
// a successful Parse cannot hit a dangling rule or section.
func Parse(data []byte) (*Table, error) {
	var raw rawTable
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("kontenplan: parse: %w", err)
	}
	if raw.Aktiva == nil || raw.Passiva == nil {
		return nil, fmt.Errorf("kontenplan: aktiva and passiva trees are required")
	}

	t := &Table{
		rules:      make(map[string]Rule, len(raw.Rules)),
		categories: raw.Categories,
		byCode:     make(map[string]Category),
		aktiva:     raw.Aktiva,
		passiva:    raw.Passiva,
		aktivaIDs:  collectIDs(raw.Aktiva),
		passivaIDs: collectIDs(raw.Passiva),
		guv:        raw.GuV,
		guvByID:    make(map[string]GuVSectionDef, len(raw.GuV)),
	}

	for _, r := range raw.Rules {
		if r.Name == "" {
			return nil, fmt.Errorf("kontenplan: rule without name")
		}
		if _, dup := t.rules[r.Name]; dup {
			return nil, fmt.Errorf("kontenplan: duplicate rule %q", r.Name)
		}
		if r.Bidirectional() && (r.DebitRSID == "" || r.CreditRSID == "") {
			return nil, fmt.Errorf("kontenplan: rule %q needs rsid or debit+credit", r.Name)
		}
		for _, rsid := range r.sections() {
			if !t.knownSection(rsid) {
				return nil, fmt.Errorf("kontenplan: rule %q references %q: %w", r.Name, rsid, errs.ErrInvalidSectionReference)
			}
		}
		t.rules[r.Name] = r
	}

	for _, s := range raw.GuV {
		if _, dup := t.guvByID[s.ID]; dup {
			return nil, fmt.Errorf("kontenplan: duplicate guv section %q", s.ID)
		}
		t.guvByID[s.ID] = s
	}

	for _, c := range raw.Categories {
		if c.Rule == "" && c.GuV == "" {
			return nil, fmt.Errorf("kontenplan: category %q has neither rule nor guv section", c.CID)
		}
		if c.Rule != "" {
			if _, ok := t.rules[c.Rule]; !ok {
				return nil, fmt.Errorf("kontenplan: category %q references unknown rule %q", c.CID, c.Rule)
			}
		}
		if c.GuV != "" {
			if _, ok := t.guvByID[c.GuV]; !ok {
				return nil, fmt.Errorf("kontenplan: category %q references %q: %w", c.CID, c.GuV, errs.ErrInvalidSectionReference)
			}
		}
		codes, err := expandRanges(c.Codes)
		if err != nil {
			return nil, fmt.Errorf("kontenplan: category %q: %w", c.CID, err)
		}
		for _, code := range codes {
			if prev, dup := t.byCode[code]; dup {
				return nil, fmt.Errorf("kontenplan: code %s claimed by both %q and %q", code, prev.CID, c.CID)
			}
			t.byCode[code] = c
		}
	}

	return t, nil
}

// CategoryFor returns the semantic category of an account code.
func (t *Table) CategoryFor(code string) (CID, error) {
	c, ok := t.byCode[code]
	if !ok {
		return "", fmt.Errorf("account code %s: %w", code, errs.ErrUnknownCategory)
	}
	return c.CID, nil
}

// AccountTypeFor infers the static account type from the top-level branch
// the code's CID falls under. Codes 9000-9999 are carryforward accounts and
// always equity.
func (t *Table) AccountTypeFor(code string) (fibu.AccountType, error) {
	if strings.HasPrefix(code, "9") {
		return fibu.AccountTypeEquity, nil
	}
	cid, err := t.CategoryFor(code)
	if err != nil {
		return "", err
	}
	s := string(cid)
	switch {
	case strings.HasPrefix(s, "b.passiva.eigenkapital"):
		return fibu.AccountTypeEquity, nil
	case strings.HasPrefix(s, "b.passiva"):
		return fibu.AccountTypeLiability, nil
	case strings.HasPrefix(s, "b.aktiva"):
		return fibu.AccountTypeAsset, nil
	case strings.HasPrefix(s, "guv.ertraege"):
		return fibu.AccountTypeRevenue, nil
	case strings.HasPrefix(s, "guv.aufwendungen"):
		return fibu.AccountTypeExpense, nil
	}
	return "", fmt.Errorf("category %s has no type branch: %w", cid, errs.ErrUnknownCategory)
}

// SectionCodes expands every account code belonging to the given section id,
// deduplicated and sorted. Balance sheet sections collect the codes of all
// categories whose rule can place them there; GuV sections collect their
// member categories directly.
func (t *Table) SectionCodes(sectionID string) ([]string, error) {
	if !t.knownSection(RSID(sectionID)) {
		if _, ok := t.guvByID[sectionID]; !ok {
			return nil, fmt.Errorf("section %s: %w", sectionID, errs.ErrUnknownCategory)
		}
	}
	seen := make(map[string]struct{})
	for _, c := range t.categories {
		if !t.categoryFeeds(c, sectionID) {
			continue
		}
		codes, err := expandRanges(c.Codes)
		if err != nil {
			return nil, err
		}
		for _, code := range codes {
			seen[code] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}

func (t *Table) categoryFeeds(c Category, sectionID string) bool {
	if c.GuV == sectionID {
		return true
	}
	if c.Rule == "" {
		return false
	}
	for _, rsid := range t.rules[c.Rule].sections() {
		if string(rsid) == sectionID {
			return true
		}
	}
	return false
}

// RuleFor returns the presentation rule for an account: its static override
// when set, otherwise the rule of its category.
func (t *Table) RuleFor(acc fibu.Account) (Rule, error) {
	name := acc.PresentationRule
	if name == "" {
		c, ok := t.byCode[acc.Code]
		if !ok {
			return Rule{}, fmt.Errorf("account code %s: %w", acc.Code, errs.ErrUnknownCategory)
		}
		name = c.Rule
	}
	if name == "" {
		return Rule{}, fmt.Errorf("account %s has no balance sheet rule: %w", acc.Code, errs.ErrUnknownCategory)
	}
	r, ok := t.rules[name]
	if !ok {
		return Rule{}, fmt.Errorf("account %s references rule %q: %w", acc.Code, name, errs.ErrInvalidSectionReference)
	}
	return r, nil
}

// ResolveSection returns the balance sheet section for an account given its
// net balance expressed as debit minus credit.
func (t *Table) ResolveSection(acc fibu.Account, debitNet decimal.Decimal) (RSID, error) {
	r, err := t.RuleFor(acc)
	if err != nil {
		return "", err
	}
	return r.Resolve(acc.Type, debitNet), nil
}

// GuVSectionFor returns the GuV position a code reports under.
func (t *Table) GuVSectionFor(code string) (string, bool) {
	c, ok := t.byCode[code]
	if !ok || c.GuV == "" {
		return "", false
	}
	return c.GuV, true
}

// GuVSections returns the 17 positions in document order.
func (t *Table) GuVSections() []GuVSectionDef { return t.guv }

// Aktiva returns the asset-side section tree.
func (t *Table) Aktiva() *Node { return t.aktiva }

// Passiva returns the liability/equity-side section tree.
func (t *Table) Passiva() *Node { return t.passiva }

// OnAktiva reports whether the section lives in the Aktiva tree.
func (t *Table) OnAktiva(rsid RSID) bool {
	_, ok := t.aktivaIDs[rsid]
	return ok
}

func (t *Table) knownSection(rsid RSID) bool {
	if _, ok := t.aktivaIDs[rsid]; ok {
		return true
	}
	_, ok := t.passivaIDs[rsid]
	return ok
}

func collectIDs(n *Node) map[RSID]struct{} {
	out := make(map[RSID]struct{})
	var walk func(*Node)
	walk = func(n *Node) {
		out[RSID(n.ID)] = struct{}{}
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(n)
	return out
}

// expandRanges turns entries like "5000-5999" into individual codes,
// preserving the zero-padded width of the range bounds. Single codes pass
// through unchanged.
func expandRanges(specs []string) ([]string, error) {
	var out []string
	for _, spec := range specs {
		lo, hi, found := strings.Cut(spec, "-")
		if !found {
			out = append(out, spec)
			continue
		}
		from, err := strconv.Atoi(lo)
		if err != nil {
			return nil, fmt.Errorf("bad range %q: %w", spec, err)
		}
		to, err := strconv.Atoi(hi)
		if err != nil {
			return nil, fmt.Errorf("bad range %q: %w", spec, err)
		}
		if to < from {
			return nil, fmt.Errorf("bad range %q: end before start", spec)
		}
		width := len(lo)
		for i := from; i <= to; i++ {
			out = append(out, fmt.Sprintf("%0*d", width, i))
		}
	}
	return out, nil
}
