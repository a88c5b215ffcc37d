package memory

import (
	"github.com/buchwerk/fibu/internal/service/account"
	"github.com/buchwerk/fibu/internal/service/fiscalyear"
	"github.com/buchwerk/fibu/internal/service/journal"
	"github.com/buchwerk/fibu/internal/service/report"
	"github.com/buchwerk/fibu/internal/service/tax"
)

// Compile-time interface assertions documenting which interfaces Store satisfies.
var (
	_ account.Repo           = (*Store)(nil)
	_ account.Writer         = (*Store)(nil)
	_ journal.Repo           = (*Store)(nil)
	_ journal.Writer         = (*Store)(nil)
	_ journal.BankReconciler = (*Store)(nil)
	_ report.Repo            = (*Store)(nil)
	_ fiscalyear.Repo        = (*Store)(nil)
	_ fiscalyear.Writer      = (*Store)(nil)
	_ tax.Repo               = (*Store)(nil)
	_ tax.Writer             = (*Store)(nil)
)
