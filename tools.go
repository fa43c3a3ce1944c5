package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"github.com/username/finwatch/src/config"
	"github.com/username/finwatch/src/database"
	"github.com/username/finwatch/src/logger"
	"github.com/username/finwatch/src/market"
	"github.com/username/finwatch/src/model"
	"github.com/username/finwatch/src/renderer"
	"github.com/username/finwatch/src/services"
	"github.com/username/finwatch/src/watchlist"
)

func printMarkdown(md string) {
	out, err := glamour.Render(md, "auto")
	if err != nil {
		fmt.Print(md)
		return
	}
	fmt.Print(out)
}

type searchCmd struct {
	typ string
}

func (*searchCmd) Name() string     { return "search" }
func (*searchCmd) Synopsis() string { return "search instruments in a market" }
func (*searchCmd) Usage() string {
	return `search [-type us|indian|crypto] <query>
`
}

func (c *searchCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.typ, "type", "us", "Market to search (us, indian, crypto).")
}

func (c *searchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	t, err := watchlist.ParseInstrumentType(c.typ)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	query := strings.Join(f.Args(), " ")
	if query == "" {
		fmt.Fprintln(os.Stderr, "a search query is required")
		return subcommands.ExitUsageError
	}
	config.LoadToolConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	results, err := market.NewDefaultRegistry(config.Cfg).Search(ctx, t, query)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	printMarkdown(renderer.SearchResults(t, query, results))
	return subcommands.ExitSuccess
}

type quoteCmd struct {
	typ string
}

func (*quoteCmd) Name() string     { return "quote" }
func (*quoteCmd) Synopsis() string { return "fetch live quotes for symbols" }
func (*quoteCmd) Usage() string {
	return `quote [-type us|indian|crypto] <SYMBOL>...
`
}

func (c *quoteCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.typ, "type", "us", "Market of the symbols (us, indian, crypto).")
}

func (c *quoteCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	t, err := watchlist.ParseInstrumentType(c.typ)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitUsageError
	}
	if f.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "at least one symbol is required")
		return subcommands.ExitUsageError
	}
	config.LoadToolConfig()
	logger.InitLogger(config.Cfg.LogLevel)

	symbols := make([]string, 0, f.NArg())
	for _, s := range f.Args() {
		symbols = append(symbols, watchlist.NormalizeSymbol(s))
	}
	quotes, err := market.NewDefaultRegistry(config.Cfg).Quotes(ctx, t, symbols)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	printMarkdown(renderer.Quotes(symbols, quotes))
	return subcommands.ExitSuccess
}

type reportCmd struct {
	userID   int64
	currency string
}

func (*reportCmd) Name() string     { return "report" }
func (*reportCmd) Synopsis() string { return "print a user's spending report" }
func (*reportCmd) Usage() string {
	return `report -user <id> [-currency <code>]
`
}

func (c *reportCmd) SetFlags(f *flag.FlagSet) {
	f.Int64Var(&c.userID, "user", 0, "User id to report on.")
	f.StringVar(&c.currency, "currency", "", "Display currency. Defaults to DISPLAY_CURRENCY.")
}

func (c *reportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.userID <= 0 {
		fmt.Fprintln(os.Stderr, "-user is required")
		return subcommands.ExitUsageError
	}
	config.LoadToolConfig()
	logger.InitLogger(config.Cfg.LogLevel)
	currency := c.currency
	if currency == "" {
		currency = config.Cfg.DisplayCurrency
	}

	conn, err := database.Open(config.Cfg.DatabasePath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer conn.Close()

	user, err := model.GetUserByID(ctx, conn, c.userID)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	backend, closeBackend, err := openWatchlistBackend(ctx, config.Cfg, conn)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	defer closeBackend()

	svc := services.NewLedgerService(model.NewLedgerRepository(conn), backend)
	sum, err := svc.Summary(ctx, user.OwnerID())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}
	st, err := svc.Stats(ctx, user.OwnerID())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	sp, err := svc.Spending(ctx, user.OwnerID())
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return subcommands.ExitFailure
	}

	suggestion := services.Suggest(st)
	printMarkdown(renderer.SpendingReport(sum, st, sp, currency) + "\n" + renderer.Callout(suggestion.Title, suggestion.Message))
	return subcommands.ExitSuccess
}
