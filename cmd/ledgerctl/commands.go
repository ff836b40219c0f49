package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"finmate/internal/auth"
	"finmate/internal/backend"
	"finmate/internal/cli"
	"finmate/internal/config"
	"finmate/internal/core"
	"finmate/internal/log"
	"finmate/internal/services"
	gsheet "finmate/internal/sheets/google"

	"github.com/google/subcommands"
)

func commands(out io.Writer) []subcommands.Command {
	return []subcommands.Command{
		&projectCmd{out: out},
		&summaryCmd{out: out},
		&rolloverCmd{out: out},
		&exportCmd{out: out},
		&tokenCmd{out: out},
	}
}

func fail(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	return subcommands.ExitFailure
}

// open loads config and the ledger. CLI logs go to stderr so stdout stays
// parseable.
func open(ctx context.Context) (*config.Config, *services.LedgerService, *backend.BackendResult, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	level, _ := log.ParseLevel(cfg.LogLevel)
	if level < slog.LevelWarn {
		level = slog.LevelWarn
	}
	logger := log.New(log.Config{Level: level, Component: log.ComponentApp, Output: os.Stderr})

	// one-off commands do not publish events
	cfg.AMQPURL = ""
	ledger, res, err := cli.OpenLedger(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, ledger, res, nil
}

func periodFlag(s string, now time.Time) (core.PeriodKey, error) {
	if s == "" {
		return core.PeriodAt(now), nil
	}
	return core.ParsePeriodKey(s)
}

type projectCmd struct {
	out io.Writer
	cfg core.ForecastConfig
}

func (*projectCmd) Name() string     { return "project" }
func (*projectCmd) Synopsis() string { return "print a compound-growth projection" }
func (*projectCmd) Usage() string {
	return `ledgerctl project [-initial n] [-monthly n] [-rate pct] [-years n]

  Prints the year-by-year value of a monthly contribution plan.
`
}

func (c *projectCmd) SetFlags(f *flag.FlagSet) {
	def := core.DefaultForecast()
	f.Float64Var(&c.cfg.Initial, "initial", def.Initial, "starting balance")
	f.Float64Var(&c.cfg.MonthlyContribution, "monthly", def.MonthlyContribution, "contribution added every month")
	f.Float64Var(&c.cfg.AnnualRatePercent, "rate", def.AnnualRatePercent, "annual return in percent")
	f.IntVar(&c.cfg.Years, "years", def.Years, "number of years")
}

func (c *projectCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if err := c.cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return subcommands.ExitUsageError
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Year\tValue\tInvested\tInterest\t")
	for _, y := range services.Project(c.cfg) {
		fmt.Fprintf(tw, "%d\t%.0f\t%.0f\t%.0f\t\n", y.YearIndex, y.TotalValue, y.TotalInvested, y.InterestEarned)
	}
	if err := tw.Flush(); err != nil {
		return fail("%v", err)
	}
	return subcommands.ExitSuccess
}

type summaryCmd struct {
	out    io.Writer
	owner  string
	period string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "print one owner's monthly summary" }
func (*summaryCmd) Usage() string {
	return `ledgerctl summary -owner <id> [-period YYYY-MM]

  Prints income, expenses, savings and the expense breakdown of a month.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.owner, "owner", "", "ledger owner")
	f.StringVar(&c.period, "period", "", "month to summarise (defaults to the current one)")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	period, err := periodFlag(c.period, time.Now())
	if err != nil || c.owner == "" {
		fmt.Fprintln(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	_, ledger, res, err := open(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer res.Close()

	snap, st := ledger.Load(ctx, c.owner)
	if !st.Synced {
		return fail("load ledger: %s", st.Error)
	}
	writeSummary(c.out, snap, services.Summarize(snap, period))
	return subcommands.ExitSuccess
}

func writeSummary(w io.Writer, snap core.Snapshot, s core.PeriodSummary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Owner\t%s\n", snap.OwnerID)
	fmt.Fprintf(tw, "Period\t%s\n", s.Period)
	fmt.Fprintf(tw, "Income\t%s\n", core.FormatAmount(s.Income, snap.Currency))
	fmt.Fprintf(tw, "Expenses\t%s\n", core.FormatAmount(s.Expenses, snap.Currency))
	fmt.Fprintf(tw, "Savings\t%s\n", core.FormatAmount(s.Savings, snap.Currency))
	for _, g := range s.ExpensesBySubcategory {
		fmt.Fprintf(tw, "  %s\t%s\n", g.Name, core.FormatAmount(g.Amount, snap.Currency))
	}
	_ = tw.Flush()
}

type rolloverCmd struct {
	out   io.Writer
	owner string
	date  string
}

func (*rolloverCmd) Name() string     { return "rollover" }
func (*rolloverCmd) Synopsis() string { return "materialise recurring entries for a month" }
func (*rolloverCmd) Usage() string {
	return `ledgerctl rollover [-owner <id>] [-date YYYY-MM-DD]

  Rolls recurring templates into the month of -date. Without -owner every
  stored ledger is processed. Running it twice creates nothing new.
`
}

func (c *rolloverCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.owner, "owner", "", "ledger owner (all owners when empty)")
	f.StringVar(&c.date, "date", "", "day inside the target month (defaults to today)")
}

func (c *rolloverCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	asOf := time.Now()
	if c.date != "" {
		d, err := core.ParseDate(c.date)
		if err != nil {
			fmt.Fprintln(os.Stderr, c.Usage())
			return subcommands.ExitUsageError
		}
		asOf = d.Time
	}
	cfg, ledger, res, err := open(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer res.Close()

	if c.owner != "" {
		_, created, st := ledger.Rollover(ctx, c.owner, asOf)
		if !st.Synced {
			return fail("rollover %s: %s", c.owner, st.Error)
		}
		for _, e := range created {
			fmt.Fprintf(c.out, "%s\t%s\t%s\n", e.Date, e.Name, e.Amount.StringFixed(2))
		}
		fmt.Fprintf(c.out, "created %d entries for %s\n", len(created), c.owner)
		return subcommands.ExitSuccess
	}

	report, err := services.NewRolloverProcessor(ledger, res.Store, cfg.RolloverConcurrency, nil).ProcessAll(ctx, asOf)
	if err != nil {
		return fail("%v", err)
	}
	fmt.Fprintf(c.out, "owners=%d created=%d failed=%d\n", report.Owners, report.Created, len(report.Failed))
	if len(report.Failed) > 0 {
		fmt.Fprintf(c.out, "failed owners: %s\n", strings.Join(report.Failed, ", "))
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

type exportCmd struct {
	out    io.Writer
	owner  string
	period string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write a monthly summary row to Google Sheets" }
func (*exportCmd) Usage() string {
	return `ledgerctl export -owner <id> [-period YYYY-MM]

  Upserts the owner's summary row in the configured spreadsheet.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.owner, "owner", "", "ledger owner")
	f.StringVar(&c.period, "period", "", "month to export (defaults to the current one)")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	period, err := periodFlag(c.period, time.Now())
	if err != nil || c.owner == "" {
		fmt.Fprintln(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	cfg, ledger, res, err := open(ctx)
	if err != nil {
		return fail("%v", err)
	}
	defer res.Close()
	if !cfg.SheetsEnabled() {
		return fail("GOOGLE_SPREADSHEET_ID is not set")
	}

	creds, err := gsheet.LoadCredentials(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
	if err != nil {
		return fail("%v", err)
	}
	client, err := gsheet.New(ctx, gsheet.Options{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: creds,
	})
	if err != nil {
		return fail("%v", err)
	}

	snap, st := ledger.Load(ctx, c.owner)
	if !st.Synced {
		return fail("load ledger: %s", st.Error)
	}
	ref, err := client.ExportPeriod(ctx, c.owner, snap.Currency, services.Summarize(snap, period))
	if err != nil {
		return fail("export: %v", err)
	}
	fmt.Fprintln(c.out, ref)
	return subcommands.ExitSuccess
}

type tokenCmd struct {
	out   io.Writer
	owner string
	ttl   time.Duration
	// secret overrides JWT_SECRET in tests
	secret string
}

func (*tokenCmd) Name() string     { return "token" }
func (*tokenCmd) Synopsis() string { return "issue an API token for an owner" }
func (*tokenCmd) Usage() string {
	return `ledgerctl token -owner <id> [-ttl 720h]

  Prints a bearer token signed with JWT_SECRET.
`
}

func (c *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.owner, "owner", "", "ledger owner")
	f.DurationVar(&c.ttl, "ttl", 30*24*time.Hour, "token lifetime")
}

func (c *tokenCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.owner == "" || c.ttl <= 0 {
		fmt.Fprintln(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	secret := c.secret
	if secret == "" {
		secret = os.Getenv("JWT_SECRET")
	}
	issuer, err := auth.NewJWT(secret)
	if err != nil {
		return fail("%v", err)
	}
	token, err := issuer.Issue(c.owner, c.ttl)
	if err != nil {
		return fail("%v", err)
	}
	fmt.Fprintln(c.out, token)
	return subcommands.ExitSuccess
}
